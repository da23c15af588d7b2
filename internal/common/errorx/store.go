package errorx

import (
	"errors"

	"github.com/amoylab/boom/internal/common/cnst"
	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// StoreFault describes a failed session store operation.
// Errno and SQLState are set only for errors raised by a SQL server.
type StoreFault struct {
	Op       string
	SID      string
	Errno    int
	Code     string
	SQLState string
	Err      error
}

// IsSQL reports whether the failure came from a SQL backend
func (f *StoreFault) IsSQL() bool {
	return f.SQLState != ""
}

// ClassifyStoreError logs a session store failure and returns its description.
// The error is never propagated: the store is a best effort cache.
func ClassifyStoreError(logger *zap.Logger, devMode bool, op, sid string, err error) *StoreFault {
	if err == nil {
		return nil
	}
	fault := &StoreFault{Op: op, SID: sid, Err: err}

	var myErr *mysql.MySQLError
	var pgErr *pgconn.PgError
	switch {
	case errors.As(err, &myErr):
		fault.Errno = int(myErr.Number)
		fault.Code = myErr.Message
		fault.SQLState = string(myErr.SQLState[:])
	case errors.As(err, &pgErr):
		fault.Code = pgErr.Message
		fault.SQLState = pgErr.Code
	}

	fields := []zap.Field{zap.String("op", op), zap.String("sid", sid)}
	if fault.IsSQL() {
		fields = append(fields,
			zap.Int("errno", fault.Errno),
			zap.String("code", fault.Code),
			zap.String("sqlState", fault.SQLState))
	}
	if devMode || !fault.IsSQL() {
		fields = append(fields, zap.Error(err))
	}

	if errors.Is(err, cnst.ErrSessionNotFound) {
		logger.Debug("session store miss", fields...)
	} else {
		logger.Warn("session store error", fields...)
	}
	return fault
}
