package logging

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func statement() (string, int64) { return "SELECT * FROM users", 3 }

func TestGormLoggerLevels(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	l := NewGormLogger(zerolog.New(&buf))

	l.Trace(ctx, time.Now(), statement, gorm.ErrRecordNotFound)
	assert.Empty(t, buf.String())

	l.Trace(ctx, time.Now(), statement, nil)
	assert.Empty(t, buf.String())

	l.Trace(ctx, time.Now().Add(-time.Second), statement, nil)
	assert.Contains(t, buf.String(), `"level":"warn"`)
	assert.Contains(t, buf.String(), "slow sql statement")
	buf.Reset()

	l.Trace(ctx, time.Now(), statement, errors.New("disk I/O error"))
	assert.Contains(t, buf.String(), `"level":"error"`)
	assert.Contains(t, buf.String(), `"sql":"SELECT * FROM users"`)
	assert.Contains(t, buf.String(), `"rows":3`)
	buf.Reset()

	silent := l.LogMode(gormlogger.Silent)
	silent.Trace(ctx, time.Now(), statement, errors.New("disk I/O error"))
	silent.Error(ctx, "boom %d", 1)
	assert.Empty(t, buf.String())

	l.Warn(ctx, "pool %s", "exhausted")
	assert.Contains(t, buf.String(), "pool exhausted")
}
