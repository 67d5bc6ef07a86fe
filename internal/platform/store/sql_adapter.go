package store

import (
	"context"
	"errors"
	"time"

	"defectwatch/internal/platform/logger"
	"defectwatch/internal/platform/store/pg"

	"github.com/jackc/pgx/v5"
)

// pgAdapter wraps pg.PG and implements RowQuerier + TxRunner
// slow queries are logged through the store logger
type pgAdapter struct {
	p      *pg.PG
	log    logger.Logger
	slowMS int
}

func newPGAdapter(p *pg.PG, log logger.Logger, slowMS int) *pgAdapter {
	return &pgAdapter{p: p, log: log, slowMS: slowMS}
}

func (a *pgAdapter) Ping(ctx context.Context) error {
	if a == nil {
		return errors.New("pg: nil adapter")
	}
	var one int
	return a.QueryRow(ctx, "SELECT 1").Scan(&one)
}

func (a *pgAdapter) Close() error { a.p.Close(); return nil }

func (a *pgAdapter) Exec(ctx context.Context, sql string, args ...any) (CommandTag, error) {
	start := time.Now()
	ct, err := a.p.Pool.Exec(ctx, sql, args...)
	a.observe(sql, start, err)
	return tag{ct: ct}, err
}

func (a *pgAdapter) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	start := time.Now()
	rs, err := a.p.Pool.Query(ctx, sql, args...)
	a.observe(sql, start, err)
	if err != nil {
		return nil, err
	}
	return rows{r: rs}, nil
}

func (a *pgAdapter) QueryRow(ctx context.Context, sql string, args ...any) Row {
	start := time.Now()
	r := a.p.Pool.QueryRow(ctx, sql, args...)
	return row{
		r: r,
		after: func(scanErr error) {
			a.observe(sql, start, scanErr)
		},
	}
}

func (a *pgAdapter) Tx(ctx context.Context, fn func(q RowQuerier) error) error {
	tx, err := a.p.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	q := txQuerier{tx: tx}
	if err := fn(q); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

// observe logs failed and slow statements
func (a *pgAdapter) observe(sql string, start time.Time, err error) {
	elapsed := time.Since(start)
	switch {
	case err != nil && !errors.Is(err, pgx.ErrNoRows):
		a.log.Warn().Err(err).Str("sql", sql).Dur("elapsed", elapsed).Msg("pg query failed")
	case a.slowMS > 0 && elapsed >= time.Duration(a.slowMS)*time.Millisecond:
		a.log.Warn().Str("sql", sql).Dur("elapsed", elapsed).Msg("pg slow query")
	}
}

// adapters for pgx to our tiny Row/Rows/CommandTag

type row struct {
	r     pgx.Row
	after func(error)
}

func (x row) Scan(dst ...any) error {
	err := x.r.Scan(dst...)
	if x.after != nil {
		x.after(err)
	}
	return err
}

type rows struct{ r pgx.Rows }

func (x rows) Next() bool            { return x.r.Next() }
func (x rows) Scan(dst ...any) error { return x.r.Scan(dst...) }
func (x rows) Err() error            { return x.r.Err() }
func (x rows) Close()                { x.r.Close() }

type tag struct{ ct interface{ String() string } }

func (t tag) String() string { return t.ct.String() }

func (t tag) RowsAffected() int64 {
	if ra, ok := t.ct.(interface{ RowsAffected() int64 }); ok {
		return ra.RowsAffected()
	}
	return 0
}

// txQuerier exposes RowQuerier over a pgx.Tx
type txQuerier struct{ tx pgx.Tx }

func (q txQuerier) Exec(ctx context.Context, sql string, args ...any) (CommandTag, error) {
	ct, err := q.tx.Exec(ctx, sql, args...)
	return tag{ct: ct}, err
}

func (q txQuerier) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	rs, err := q.tx.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return rows{r: rs}, nil
}

func (q txQuerier) QueryRow(ctx context.Context, sql string, args ...any) Row {
	return row{r: q.tx.QueryRow(ctx, sql, args...)}
}
