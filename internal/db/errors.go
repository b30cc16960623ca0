package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rpattn/advfilters/internal/domain"
)

// transientCodes are PostgreSQL SQLSTATEs worth retrying: statement timeout
// or cancel, serialization failure, deadlock and too many connections.
var transientCodes = map[string]struct{}{
	"57014": {},
	"40001": {},
	"40P01": {},
	"53300": {},
	"57P03": {},
}

// IsTransient reports whether err is a storage failure that may succeed if
// the caller tries again.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}
	if pgconn.Timeout(err) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if _, ok := transientCodes[pgErr.Code]; ok {
			return true
		}
		// class 08: connection exception
		return strings.HasPrefix(pgErr.Code, "08")
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// Classify wraps err for op, marking transient failures as retryable.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsTransient(err) {
		return &domain.RetryableError{Op: op, Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}
