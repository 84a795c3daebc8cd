package pkg

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// https://www.postgresql.org/docs/current/errcodes-appendix.html

// IsConnectionFailure reports whether err means the server connection is gone
// or was refused: class 08 (connection exception), class 28 (invalid
// authorization) and the 57P0x shutdown codes.
func IsConnectionFailure(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch {
	case len(pgErr.Code) != 5:
		return false
	case pgErr.Code[:2] == "08", pgErr.Code[:2] == "28":
		return true
	case pgErr.Code == "57P01", pgErr.Code == "57P02", pgErr.Code == "57P03":
		return true
	default:
		return false
	}
}
