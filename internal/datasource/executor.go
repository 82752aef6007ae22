// Package datasource runs queries against user datasources. One *sql.DB is
// kept per datasource and reopened when its connection settings change.
package datasource

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"qwery/internal/apperr"
	"qwery/internal/metrics"
	"qwery/internal/model"
)

const (
	DefaultRowLimit = 500
	MaxRowLimit     = 5000
)

// Result is a tabular query result. Rows hold at most the requested limit;
// Truncated reports that more rows were available.
type Result struct {
	Columns    []string `json:"columns"`
	Rows       [][]any  `json:"rows"`
	RowCount   int      `json:"row_count"`
	Truncated  bool     `json:"truncated"`
	DurationMS int64    `json:"duration_ms"`
}

type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type Table struct {
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
}

type pool struct {
	db          *sql.DB
	fingerprint string
}

type Executor struct {
	mu           sync.Mutex
	pools        map[string]*pool
	defaultLimit int
	sandbox      sandbox
	logger       zerolog.Logger
}

type Options struct {
	RowLimit int
	// SQLiteRoot is the only directory sqlite datasource files are opened
	// from. Empty disables sqlite datasources.
	SQLiteRoot string
	// Protected files are never opened as datasources.
	Protected []string
}

func NewExecutor(logger zerolog.Logger, opts Options) *Executor {
	limit := opts.RowLimit
	if limit <= 0 || limit > MaxRowLimit {
		limit = DefaultRowLimit
	}
	return &Executor{
		pools:        make(map[string]*pool),
		defaultLimit: limit,
		sandbox:      newSandbox(opts.SQLiteRoot, opts.Protected),
		logger:       logger,
	}
}

// Validate checks that the datasource's connection settings can be opened.
func (e *Executor) Validate(ds *model.Datasource) error {
	_, _, err := e.driverFor(ds)
	return err
}

// Query runs a statement and returns up to limit rows.
func (e *Executor) Query(ctx context.Context, ds *model.Datasource, query string, limit int) (*Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperr.BadRequest("query is empty")
	}
	if ds.Config.Data().IsReadOnly() {
		if err := CheckReadOnly(query); err != nil {
			return nil, err
		}
	}

	db, err := e.conn(ctx, ds)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	result, err := e.run(ctx, db, ds, query, e.clampLimit(limit))
	metrics.DatasourceQueryDuration.WithLabelValues(ds.Provider).Observe(time.Since(start).Seconds())
	metrics.DatasourceQueriesTotal.WithLabelValues(ds.Provider, metrics.Outcome(err)).Inc()
	if err != nil {
		e.logger.Debug().Err(err).Str("datasource_id", ds.ID).Msg("query failed")
		return nil, apperr.Wrap(apperr.CodeBadRequest, "query failed", err)
	}
	result.DurationMS = time.Since(start).Milliseconds()
	return result, nil
}

// Preview returns the first rows of a table.
func (e *Executor) Preview(ctx context.Context, ds *model.Datasource, table string, limit int) (*Result, error) {
	ident, err := QuoteIdentifier(ds.Provider, table)
	if err != nil {
		return nil, err
	}
	limit = e.clampLimit(limit)
	query := fmt.Sprintf("SELECT * FROM %s LIMIT %d", ident, limit+1)

	db, err := e.conn(ctx, ds)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	result, err := e.run(ctx, db, ds, query, limit)
	metrics.DatasourceQueriesTotal.WithLabelValues(ds.Provider, metrics.Outcome(err)).Inc()
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeBadRequest, fmt.Sprintf("preview of %s failed", table), err)
	}
	result.DurationMS = time.Since(start).Milliseconds()
	return result, nil
}

// Schema lists the tables and columns visible through the datasource.
func (e *Executor) Schema(ctx context.Context, ds *model.Datasource) ([]Table, error) {
	db, err := e.conn(ctx, ds)
	if err != nil {
		return nil, err
	}

	var tables []Table
	switch ds.Provider {
	case model.ProviderSQLite:
		tables, err = sqliteSchema(ctx, db)
	case model.ProviderPostgreSQL:
		tables, err = informationSchema(ctx, db,
			"table_schema NOT IN ('pg_catalog', 'information_schema')")
	case model.ProviderMySQL:
		tables, err = informationSchema(ctx, db, "table_schema = DATABASE()")
	default:
		return nil, apperr.BadRequest("unsupported provider: " + ds.Provider)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeDatasourceUnavailable, "read schema", err)
	}
	return tables, nil
}

// Ping opens the datasource and checks that it answers.
func (e *Executor) Ping(ctx context.Context, ds *model.Datasource) error {
	db, err := e.conn(ctx, ds)
	if err != nil {
		return err
	}
	if err := db.PingContext(ctx); err != nil {
		return apperr.Wrap(apperr.CodeDatasourceUnavailable, "datasource unavailable", err)
	}
	return nil
}

// Evict closes the cached pool of a datasource.
func (e *Executor) Evict(datasourceID string) {
	e.mu.Lock()
	p, ok := e.pools[datasourceID]
	delete(e.pools, datasourceID)
	e.mu.Unlock()

	if ok {
		if err := p.db.Close(); err != nil {
			e.logger.Warn().Err(err).Str("datasource_id", datasourceID).Msg("close datasource pool")
		}
	}
}

func (e *Executor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var errs []error
	for id, p := range e.pools {
		if err := p.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", id, err))
		}
		delete(e.pools, id)
	}
	return errors.Join(errs...)
}

func (e *Executor) clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return e.defaultLimit
	case limit > MaxRowLimit:
		return MaxRowLimit
	default:
		return limit
	}
}

func (e *Executor) conn(ctx context.Context, ds *model.Datasource) (*sql.DB, error) {
	driver, dsn, err := e.driverFor(ds)
	if err != nil {
		return nil, err
	}
	fingerprint := driver + "|" + dsn

	e.mu.Lock()
	defer e.mu.Unlock()

	if p, ok := e.pools[ds.ID]; ok {
		if p.fingerprint == fingerprint {
			return p.db, nil
		}
		_ = p.db.Close()
		delete(e.pools, ds.ID)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeDatasourceUnavailable, "open datasource", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxIdleTime(5 * time.Minute)

	e.pools[ds.ID] = &pool{db: db, fingerprint: fingerprint}
	e.logger.Debug().Str("datasource_id", ds.ID).Str("driver", driver).Msg("opened datasource pool")
	return db, nil
}

// driverFor builds the driver name and connection string. Read-only sqlite
// files are opened with mode=ro and query_only so the engine refuses writes.
func (e *Executor) driverFor(ds *model.Datasource) (driver, dsn string, err error) {
	cfg := ds.Config.Data()
	switch ds.Provider {
	case model.ProviderSQLite:
		raw := cfg.Path
		if raw == "" {
			raw = cfg.DSN
		}
		path, err := e.sandbox.resolve(raw)
		if err != nil {
			return "", "", err
		}
		if cfg.IsReadOnly() {
			return "sqlite", "file:" + path + "?mode=ro&_pragma=query_only(1)", nil
		}
		return "sqlite", "file:" + path + "?mode=rw", nil
	case model.ProviderPostgreSQL:
		if cfg.DSN == "" {
			return "", "", apperr.BadRequest("postgresql datasource needs a dsn")
		}
		return "pgx", cfg.DSN, nil
	case model.ProviderMySQL:
		if cfg.DSN == "" {
			return "", "", apperr.BadRequest("mysql datasource needs a dsn")
		}
		return "mysql", cfg.DSN, nil
	default:
		return "", "", apperr.BadRequest("unsupported provider: " + ds.Provider)
	}
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// run reads up to limit rows. Read-only postgres and mysql datasources run
// inside a READ ONLY transaction that is always rolled back.
func (e *Executor) run(ctx context.Context, db *sql.DB, ds *model.Datasource, query string, limit int) (*Result, error) {
	var q queryer = db
	if ds.Config.Data().IsReadOnly() && ds.Provider != model.ProviderSQLite {
		tx, err := db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
		if err != nil {
			return nil, err
		}
		defer func() { _ = tx.Rollback() }()
		q = tx
	}

	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	result := &Result{Columns: cols, Rows: make([][]any, 0)}
	for rows.Next() {
		if len(result.Rows) == limit {
			result.Truncated = true
			break
		}
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		result.Rows = append(result.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	result.RowCount = len(result.Rows)
	return result, nil
}

func sqliteSchema(ctx context.Context, db *sql.DB) ([]Table, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type IN ('table', 'view') AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, err
	}
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil, err
		}
		names = append(names, name)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	tables := make([]Table, 0, len(names))
	for _, name := range names {
		ident, _ := QuoteIdentifier(model.ProviderSQLite, name)
		colRows, err := db.QueryContext(ctx, "PRAGMA table_info("+ident+")")
		if err != nil {
			return nil, err
		}
		table := Table{Name: name}
		for colRows.Next() {
			var (
				cid     int
				col     string
				typ     string
				notNull int
				dflt    sql.NullString
				pk      int
			)
			if err := colRows.Scan(&cid, &col, &typ, &notNull, &dflt, &pk); err != nil {
				colRows.Close()
				return nil, err
			}
			table.Columns = append(table.Columns, Column{Name: col, Type: typ})
		}
		colRows.Close()
		tables = append(tables, table)
	}
	return tables, nil
}

func informationSchema(ctx context.Context, db *sql.DB, where string) ([]Table, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT table_name, column_name, data_type FROM information_schema.columns WHERE "+
			where+" ORDER BY table_name, ordinal_position")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []Table
	for rows.Next() {
		var table, col, typ string
		if err := rows.Scan(&table, &col, &typ); err != nil {
			return nil, err
		}
		if len(tables) == 0 || tables[len(tables)-1].Name != table {
			tables = append(tables, Table{Name: table})
		}
		last := &tables[len(tables)-1]
		last.Columns = append(last.Columns, Column{Name: col, Type: typ})
	}
	return tables, rows.Err()
}
