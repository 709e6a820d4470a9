package dbtypes

import (
	"database/sql/driver"

	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// StringArray persists an ordered list of strings as a postgres text[]. Other
// dialects store the same array literal in a text column.
type StringArray []string

func (a *StringArray) Scan(src any) error {
	if src == nil {
		*a = StringArray{}
		return nil
	}
	var parsed pq.StringArray
	if err := parsed.Scan(src); err != nil {
		return err
	}
	*a = StringArray(parsed)
	return nil
}

func (a StringArray) Value() (driver.Value, error) {
	if len(a) == 0 {
		return "{}", nil
	}
	return pq.StringArray(a).Value()
}

func (StringArray) GormDataType() string {
	return "text[]"
}

func (StringArray) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	if db.Dialector.Name() == "postgres" {
		return "text[]"
	}
	return "text"
}

// Contains reports whether value is present.
func (a StringArray) Contains(value string) bool {
	for _, v := range a {
		if v == value {
			return true
		}
	}
	return false
}

// Without returns a copy with every entry listed in remove dropped, order kept.
func (a StringArray) Without(remove []string) StringArray {
	if len(remove) == 0 {
		return append(StringArray{}, a...)
	}
	drop := make(map[string]struct{}, len(remove))
	for _, r := range remove {
		drop[r] = struct{}{}
	}
	out := make(StringArray, 0, len(a))
	for _, v := range a {
		if _, ok := drop[v]; ok {
			continue
		}
		out = append(out, v)
	}
	return out
}
