package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code Code
		want      Metadata
	}{
		{CodeValidation, Metadata{HTTPStatus: http.StatusBadRequest, PublicMessage: "validation failed", DetailsAllowed: true, ExposeMessage: true}},
		{CodeUnauthorized, Metadata{HTTPStatus: http.StatusUnauthorized, PublicMessage: "authentication required", ExposeMessage: true}},
		{CodeForbidden, Metadata{HTTPStatus: http.StatusForbidden, PublicMessage: "access denied", ExposeMessage: true}},
		{CodeNotFound, Metadata{HTTPStatus: http.StatusNotFound, PublicMessage: "resource not found", ExposeMessage: true}},
		{CodeRateLimit, Metadata{HTTPStatus: http.StatusTooManyRequests, PublicMessage: "rate limit exceeded", Retryable: true, ExposeMessage: true}},
		{CodeInternal, Metadata{HTTPStatus: http.StatusInternalServerError, PublicMessage: "internal server error", Retryable: true}},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, MetadataFor(tt.code))
			assert.Equal(t, tt.want.HTTPStatus, tt.code.Status())
		})
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, MetadataFor("SOMETHING_UNKNOWN").HTTPStatus)
}

func TestWrapKeepsCause(t *testing.T) {
	cause := stdErrors.New("db down")
	err := Internal(cause, "load product")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "INTERNAL_ERROR: load product: db down", err.Error())

	wrapped := fmt.Errorf("outer: %w", err)
	assert.True(t, IsCode(wrapped, CodeInternal))
	assert.False(t, IsCode(wrapped, CodeValidation))
	assert.False(t, IsCode(stdErrors.New("plain"), CodeInternal))
}

func TestConstructors(t *testing.T) {
	assert.Equal(t, "NOT_FOUND: order 7 not found", Newf(CodeNotFound, "order %d not found", 7).Error())
	assert.Equal(t, CodeUnauthorized, Unauthorized("x").Code())

	var nilErr *Error
	assert.Equal(t, CodeInternal, nilErr.Code())
	assert.Nil(t, nilErr.WithDetails("ignored"))
	assert.Equal(t, map[string]int{"max": 5}, Validation("too many").WithDetails(map[string]int{"max": 5}).Details())
}

func TestDumpExtractsPgxFields(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "users_email_key", TableName: "users"}
	dump := Dump(Wrap(CodeValidation, pgErr, "email already registered"))

	assert.Equal(t, CodeValidation, dump.Code)
	assert.Equal(t, "23505", dump.Postgres.Code)
	assert.Equal(t, "users_email_key", dump.Postgres.Constraint)
	assert.Len(t, dump.Chain, 2)

	fields := dump.Fields()
	assert.Equal(t, "users", fields["pg_table"])
	assert.NotContains(t, fields, "pg_detail")
}

func TestDumpExtractsPqFields(t *testing.T) {
	dump := Dump(fmt.Errorf("insert: %w", &pq.Error{Code: "23503", Constraint: "orders_product_id_fkey"}))

	assert.Equal(t, "23503", dump.Postgres.Code)
	assert.Equal(t, "orders_product_id_fkey", dump.Postgres.Constraint)
	assert.Empty(t, dump.Code)
	assert.Empty(t, Dump(nil).TopMessage)
}
