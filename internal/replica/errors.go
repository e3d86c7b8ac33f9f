package replica

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	"github.com/go-sql-driver/mysql"
)

// ErrorKind separates failures that may succeed on retry from failures that
// never will without operator intervention.
type ErrorKind int

const (
	// Transient - connection refused, timeout, lock wait, server gone away
	Transient ErrorKind = iota
	// Permanent - malformed query, auth failure, missing table, malformed row
	Permanent
)

func (k ErrorKind) String() string {
	switch k {
	case Transient:
		return "transient"
	case Permanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// QueryError wraps a backend failure with its classification. Exhausted is
// set when a transient failure survived all retry attempts, so the error log
// can distinguish "retry the run later" from "fix the query first".
type QueryError struct {
	Kind      ErrorKind
	Op        string
	Exhausted bool
	Err       error
}

func (e *QueryError) Error() string {
	tag := e.Kind.String()
	if e.Exhausted {
		tag = "transient-exhausted"
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, tag, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// IsPermanent reports whether err is classified as a permanent query failure.
func IsPermanent(err error) bool {
	var qe *QueryError
	return errors.As(err, &qe) && qe.Kind == Permanent
}

// IsExhausted reports whether err is a transient failure that used up all
// retry attempts.
func IsExhausted(err error) bool {
	var qe *QueryError
	return errors.As(err, &qe) && qe.Exhausted
}

// MySQL/MariaDB server error numbers that warrant a retry. Client-side
// failures (connection refused, server gone away) never arrive as
// *mysql.MySQLError; the driver surfaces them as net/driver errors, which
// classify handles separately.
var transientMySQLErrors = map[uint16]bool{
	1040: true, // ER_CON_COUNT_ERROR: too many connections
	1053: true, // ER_SERVER_SHUTDOWN
	1205: true, // ER_LOCK_WAIT_TIMEOUT
	1213: true, // ER_LOCK_DEADLOCK
}

// classify assigns an error kind. Network-level failures are transient;
// server-reported errors are permanent unless they are in the known
// transient set (lock waits, connection churn on the shared replicas).
func classify(err error) ErrorKind {
	if err == nil {
		return Transient
	}

	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		if transientMySQLErrors[mysqlErr.Number] {
			return Transient
		}
		return Permanent
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return Transient
	}
	if errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, mysql.ErrInvalidConn) ||
		errors.Is(err, context.DeadlineExceeded) {
		return Transient
	}

	// Anything else from the driver stack (malformed DSN, scan mismatch,
	// malformed rows) will not fix itself.
	return Permanent
}
