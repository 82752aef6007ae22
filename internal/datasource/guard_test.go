package datasource

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"qwery/internal/apperr"
	"qwery/internal/model"
)

func TestCheckReadOnly(t *testing.T) {
	allowed := []string{
		"select 1",
		"  SELECT * FROM t;",
		"with x as (select 1) select * from x",
		"-- leading comment\nSELECT 1",
		"/* note */ explain select 1",
		"PRAGMA table_info(t)",
		"show tables",
		"SELECT ';' AS semi",
	}
	for _, q := range allowed {
		assert.NoError(t, CheckReadOnly(q), q)
	}

	rejected := []string{
		"DELETE FROM t",
		"drop table t",
		"SELECT 1; DROP TABLE t",
		"/* select */ UPDATE t SET a = 1",
		"insert into t values (1)",
	}
	for _, q := range rejected {
		err := CheckReadOnly(q)
		assert.True(t, apperr.Is(err, apperr.CodeQueryRejected), "%q: %v", q, err)
	}

	assert.True(t, apperr.Is(CheckReadOnly("  ;"), apperr.CodeBadRequest))
}

func TestCheckReadOnlyScansWholeStatement(t *testing.T) {
	allowed := []string{
		"SELECT replace(name, 'a', 'b') FROM t",
		"SELECT 'DELETE FROM t' AS s",
		`SELECT "update" FROM t`,
		"SELECT t.delete FROM t",
		"PRAGMA main.table_info(t)",
		"PRAGMA user_version",
		"EXPLAIN SELECT * FROM t",
	}
	for _, q := range allowed {
		assert.NoError(t, CheckReadOnly(q), q)
	}

	rejected := []string{
		"WITH d AS (DELETE FROM t RETURNING *) SELECT * FROM d",
		"EXPLAIN ANALYZE DELETE FROM t",
		"WITH c AS (SELECT 42 AS v) INSERT INTO t SELECT v FROM c",
		"PRAGMA user_version = 7",
		"PRAGMA user_version(7)",
		"PRAGMA journal_mode = WAL",
		"PRAGMA query_only(0)",
		"SELECT * INTO backup FROM t",
		"with x as (select 1) update t set a = 1",
		"SELECT 1 /* ; */ ; ATTACH 'x.db' AS x",
	}
	for _, q := range rejected {
		err := CheckReadOnly(q)
		assert.True(t, apperr.Is(err, apperr.CodeQueryRejected), "%q: %v", q, err)
	}
}

func TestQuoteIdentifier(t *testing.T) {
	got, err := QuoteIdentifier(model.ProviderPostgreSQL, "public.orders")
	assert.NoError(t, err)
	assert.Equal(t, `"public"."orders"`, got)

	got, err = QuoteIdentifier(model.ProviderMySQL, "we`ird")
	assert.NoError(t, err)
	assert.Equal(t, "`we``ird`", got)

	got, err = QuoteIdentifier(model.ProviderSQLite, `a"b`)
	assert.NoError(t, err)
	assert.Equal(t, `"a""b"`, got)

	_, err = QuoteIdentifier(model.ProviderSQLite, "a..b")
	assert.Error(t, err)
}
