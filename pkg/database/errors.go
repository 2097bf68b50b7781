package database

import (
	"github.com/lib/pq"

	"github.com/docverify/docverify-backend/pkg/errors"
)

// MapPQError converts a PostgreSQL error to an AppError.
// Returns nil if the error is not a pq.Error or has no specific mapping.
func MapPQError(err error) *errors.AppError {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return nil
	}

	switch pqErr.Code {
	case "23505": // unique_violation
		return errors.Conflict("a record with this identifier already exists")
	case "22P02", "22023": // invalid_text_representation, invalid_parameter_value
		return errors.BadRequest("stored value could not be decoded")
	case "53300", "57P03": // too_many_connections, cannot_connect_now
		return errors.Unavailable("database is not accepting connections")
	default:
		return nil
	}
}
