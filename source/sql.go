package source

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	_ "github.com/jackc/pgx/v4/stdlib"
	_ "github.com/mattn/go-sqlite3"
	_ "github.com/microsoft/go-mssqldb"
	_ "github.com/snowflakedb/gosnowflake"

	"github.com/jalad-shrimali/node-filter/config"
	"github.com/jalad-shrimali/node-filter/dataset"
	"github.com/jalad-shrimali/node-filter/failure"
)

// OpenStore opens the client store pool and verifies it answers.
func OpenStore(ctx context.Context, cfg *config.DatabaseConfig, logger *zap.Logger) (*sqlx.DB, error) {
	if cfg == nil {
		return nil, failure.New(failure.KindInvalidRequest, "store", "no client store configured")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("store")

	logger.Info("Connecting to client store", zap.String("target", cfg.String()))

	dsn, err := cfg.ConnectionString()
	if err != nil {
		return nil, failure.Wrap(failure.KindInvalidRequest, "store", err, "connection string")
	}
	db, err := sqlx.Open(cfg.DriverName(), dsn)
	if err != nil {
		return nil, failure.Wrap(failure.KindSourceUnreadable, "store", err, "open %s", cfg.String())
	}
	applyConnectionSettings(db, cfg.MaxOpenConns, cfg.MaxIdleConns, cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		if ctx.Err() != nil {
			return nil, failure.Wrap(failure.KindTimeout, "store", err, "connect %s", cfg.String())
		}
		return nil, failure.Wrap(failure.KindSourceUnreadable, "store", err, "connect %s", cfg.String())
	}

	stats := db.Stats()
	logger.Debug("Connection pool stats",
		zap.Int("open_connections", stats.OpenConnections),
		zap.Int("max_open", stats.MaxOpenConnections))
	return db, nil
}

func applyConnectionSettings(db *sqlx.DB, maxOpen, maxIdle int, maxLifetime time.Duration) {
	if maxOpen > 0 {
		db.SetMaxOpenConns(maxOpen)
	}
	if maxIdle > 0 {
		db.SetMaxIdleConns(maxIdle)
	}
	if maxLifetime > 0 {
		db.SetConnMaxLifetime(maxLifetime)
	}
}

// Query reads the result set of one SELECT.
type Query struct {
	DB    *sqlx.DB
	Label string
	SQL   string
	Args  []any
	// Timeout bounds the query; zero means only ctx applies.
	Timeout time.Duration
}

func (q *Query) Name() string {
	if q.Label != "" {
		return q.Label
	}
	return "query"
}

func (q *Query) context(ctx context.Context) (context.Context, context.CancelFunc) {
	if q.Timeout > 0 {
		return context.WithTimeout(ctx, q.Timeout)
	}
	return context.WithCancel(ctx)
}

// Columns runs the query with an always-false filter and reads the metadata.
func (q *Query) Columns(ctx context.Context) ([]string, error) {
	ctx, cancel := q.context(ctx)
	defer cancel()

	headerSQL := fmt.Sprintf("SELECT * FROM (%s) AS q WHERE 1 = 0", strings.TrimRight(strings.TrimSpace(q.SQL), ";"))
	rows, err := q.DB.QueryxContext(ctx, headerSQL, q.Args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", q.Name(), err)
	}
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", q.Name(), err)
	}
	return headerNames(cols), nil
}

func (q *Query) Read(ctx context.Context) (*dataset.Table, error) {
	ctx, cancel := q.context(ctx)
	defer cancel()

	rows, err := q.DB.QueryxContext(ctx, q.SQL, q.Args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", q.Name(), err)
	}
	defer rows.Close()

	raw, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", q.Name(), err)
	}
	cols := headerNames(raw)
	t := dataset.New(q.Name(), cols)

	for rows.Next() {
		m := make(map[string]any, len(raw))
		if err := rows.MapScan(m); err != nil {
			return nil, fmt.Errorf("%s row %d: %w", q.Name(), t.Len()+1, err)
		}
		row := make(dataset.Row, len(cols))
		for i, c := range raw {
			row[cols[i]] = dataset.FromAny(m[c])
		}
		t.Rows = append(t.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", q.Name(), err)
	}
	return t, nil
}
