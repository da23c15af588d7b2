package errorx

import (
	"errors"
	"fmt"
	"testing"

	"github.com/amoylab/boom/internal/common/cnst"
	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestClassifyStoreError_MySQL(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	myErr := &mysql.MySQLError{Number: 1062, SQLState: [5]byte{'2', '3', '0', '0', '0'}, Message: "Duplicate entry"}

	f := ClassifyStoreError(zap.New(core), false, "create", "sid", fmt.Errorf("insert: %w", myErr))
	assert.True(t, f.IsSQL())
	assert.Equal(t, 1062, f.Errno)
	assert.Equal(t, "23000", f.SQLState)

	entries := logs.FilterLevelExact(zapcore.WarnLevel).All()
	assert.Len(t, entries, 1)
	ctx := entries[0].ContextMap()
	assert.Equal(t, int64(1062), ctx["errno"])
	assert.Equal(t, "23000", ctx["sqlState"])
	assert.NotContains(t, ctx, "error")
}

func TestClassifyStoreError_Postgres(t *testing.T) {
	f := ClassifyStoreError(zap.NewNop(), true, "create", "sid", &pgconn.PgError{Code: "23505", Message: "duplicate key"})
	assert.True(t, f.IsSQL())
	assert.Equal(t, "23505", f.SQLState)
	assert.Equal(t, "duplicate key", f.Code)
}

func TestClassifyStoreError_NotFoundIsDebug(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	f := ClassifyStoreError(zap.New(core), false, "update", "sid", cnst.ErrSessionNotFound)
	assert.False(t, f.IsSQL())
	assert.Equal(t, 1, logs.FilterLevelExact(zapcore.DebugLevel).Len())
	assert.Zero(t, logs.FilterLevelExact(zapcore.WarnLevel).Len())
}

func TestClassifyStoreError_Other(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	assert.Nil(t, ClassifyStoreError(zap.New(core), false, "read", "sid", nil))
	f := ClassifyStoreError(zap.New(core), false, "read", "sid", errors.New("redis: connection pool timeout"))
	assert.False(t, f.IsSQL())
	assert.Equal(t, 1, logs.FilterLevelExact(zapcore.WarnLevel).Len())
}
