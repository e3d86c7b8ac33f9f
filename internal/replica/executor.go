package replica

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/medwiki-tools/editor-stats/internal/config"
	"github.com/medwiki-tools/editor-stats/internal/logging"
)

// Target names one replica database and the host serving it.
type Target struct {
	Host     string
	Database string
}

// EditorRow is one aggregated (editor, edit count) pair from a replica.
type EditorRow struct {
	Identity string
	Count    int64
}

// TitleRow is one (page, language link) pair from the enwiki replica.
type TitleRow struct {
	PageTitle string
	LangCode  string
	LangTitle string
}

// WikiRow is one wiki catalog entry from meta_p.
type WikiRow struct {
	Lang   string
	DBName string
	URL    string
}

// Executor runs read-only queries against the wiki replicas with a bounded
// retry policy. Each query gets its own short-lived connection; the replicas
// kill idle sessions aggressively, so pooling buys nothing here.
type Executor struct {
	cfg   config.ReplicaConfig
	creds config.Credentials

	// OnAttempt is called after every failed attempt. Used by the progress
	// layer to surface retries without parsing log output.
	OnAttempt func(op string, attempt int, err error)

	sleep func(time.Duration) // test hook, nil means real timer
}

// NewExecutor builds an executor from replica settings and credentials.
func NewExecutor(cfg config.ReplicaConfig, creds config.Credentials) *Executor {
	return &Executor{cfg: cfg, creds: creds}
}

func (e *Executor) dsn(t Target) string {
	mc := mysql.NewConfig()
	mc.User = e.creds.User
	mc.Passwd = e.creds.Password
	mc.Net = "tcp"
	mc.Addr = fmt.Sprintf("%s:%d", t.Host, e.cfg.Port)
	mc.DBName = t.Database
	mc.Timeout = e.cfg.ConnectTimeout
	mc.ReadTimeout = e.cfg.ReadTimeout
	mc.Params = map[string]string{"charset": "utf8mb4"}
	return mc.FormatDSN()
}

// EditorCounts runs an aggregation query returning (identity, count) rows.
// Rows with an empty identity or a negative count fail the whole query.
func (e *Executor) EditorCounts(ctx context.Context, t Target, query string, args ...any) ([]EditorRow, error) {
	op := t.Database + "/editor-counts"
	return withRetry(ctx, e, op, func(ctx context.Context) ([]EditorRow, error) {
		var out []EditorRow
		err := e.query(ctx, t, query, args, func(rows *sql.Rows) error {
			for rows.Next() {
				var identity sql.NullString
				var count sql.NullInt64
				if err := rows.Scan(&identity, &count); err != nil {
					return err
				}
				row, err := makeEditorRow(identity, count)
				if err != nil {
					return err
				}
				out = append(out, row)
			}
			return nil
		})
		return out, err
	})
}

// TitleLinks runs the title/langlink query against enwiki.
func (e *Executor) TitleLinks(ctx context.Context, t Target, query string, args ...any) ([]TitleRow, error) {
	op := t.Database + "/title-links"
	return withRetry(ctx, e, op, func(ctx context.Context) ([]TitleRow, error) {
		var out []TitleRow
		err := e.query(ctx, t, query, args, func(rows *sql.Rows) error {
			for rows.Next() {
				var r TitleRow
				var lang, title sql.NullString
				if err := rows.Scan(&r.PageTitle, &lang, &title); err != nil {
					return err
				}
				r.LangCode = lang.String
				r.LangTitle = title.String
				out = append(out, r)
			}
			return nil
		})
		return out, err
	})
}

// WikiCatalog runs the wiki catalog query against meta_p.
func (e *Executor) WikiCatalog(ctx context.Context, t Target, query string, args ...any) ([]WikiRow, error) {
	op := t.Database + "/wiki-catalog"
	return withRetry(ctx, e, op, func(ctx context.Context) ([]WikiRow, error) {
		var out []WikiRow
		err := e.query(ctx, t, query, args, func(rows *sql.Rows) error {
			for rows.Next() {
				var r WikiRow
				var url sql.NullString
				if err := rows.Scan(&r.Lang, &r.DBName, &url); err != nil {
					return err
				}
				r.URL = url.String
				out = append(out, r)
			}
			return nil
		})
		return out, err
	})
}

// query performs a single attempt on a fresh connection.
func (e *Executor) query(ctx context.Context, t Target, query string, args []any, scan func(*sql.Rows) error) error {
	db, err := sql.Open("mysql", e.dsn(t))
	if err != nil {
		return err
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	if err := scan(rows); err != nil {
		return err
	}
	return rows.Err()
}

func makeEditorRow(identity sql.NullString, count sql.NullInt64) (EditorRow, error) {
	if !identity.Valid || identity.String == "" {
		return EditorRow{}, fmt.Errorf("malformed row: empty editor identity")
	}
	if !count.Valid || count.Int64 < 0 {
		return EditorRow{}, fmt.Errorf("malformed row: bad edit count for %q", identity.String)
	}
	return EditorRow{Identity: identity.String, Count: count.Int64}, nil
}

// withRetry runs fn up to MaxAttempts times, backing off between transient
// failures. Permanent failures and context cancellation return immediately.
func withRetry[T any](ctx context.Context, e *Executor, op string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 1; attempt <= e.cfg.MaxAttempts; attempt++ {
		out, err := fn(ctx)
		if err == nil {
			return out, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		if e.OnAttempt != nil {
			e.OnAttempt(op, attempt, err)
		}
		if classify(err) == Permanent {
			logging.Error("%s: %v", op, err)
			return zero, &QueryError{Kind: Permanent, Op: op, Err: err}
		}
		if attempt == e.cfg.MaxAttempts {
			break
		}

		delay := e.cfg.RetryBackoff << (attempt - 1)
		logging.Warn("%s: attempt %d/%d failed (%v), retrying in %s",
			op, attempt, e.cfg.MaxAttempts, err, delay)
		if err := e.wait(ctx, delay); err != nil {
			return zero, err
		}
	}

	return zero, &QueryError{Kind: Transient, Op: op, Exhausted: true, Err: lastErr}
}

func (e *Executor) wait(ctx context.Context, d time.Duration) error {
	if e.sleep != nil {
		e.sleep(d)
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
