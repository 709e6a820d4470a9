package models

import (
	"github.com/google/uuid"
)

// ensureID assigns a fresh UUID when the primary key is still zero. Postgres
// also defaults ids via gen_random_uuid(); sqlite relies on this.
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
