package db

import (
	"context"
	"fmt"

	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5/pgxpool"
)

var _ Provider = (*PoolProvider)(nil)

// PoolProvider hands out connections from a pgxpool. Request semantics are the
// same as with ConnProvider, only the connection setup is amortized.
type PoolProvider struct {
	params Params
	pool   *pgxpool.Pool
}

func NewPoolProvider(ctx context.Context, params Params) (*PoolProvider, error) {
	poolConfig, err := pgxpool.ParseConfig(params.ConnString())
	if err != nil {
		return nil, fmt.Errorf("parse db config: %w", err)
	}

	if params.TracingEnabled {
		poolConfig.ConnConfig.Tracer = otelpgx.NewTracer()
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	return &PoolProvider{
		params: params,
		pool:   pool,
	}, nil
}

func (p *PoolProvider) Pool() *pgxpool.Pool {
	return p.pool
}

func (p *PoolProvider) Acquire(ctx context.Context) (Conn, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, &ConnectionError{
			Host:   p.params.Host,
			DBName: p.params.Name,
			Err:    err,
		}
	}
	return &pooledConn{Conn: conn}, nil
}

// Close blocks until all acquired connections are released.
func (p *PoolProvider) Close() {
	p.pool.Close()
}

type pooledConn struct {
	*pgxpool.Conn
}

func (c *pooledConn) Release(context.Context) error {
	c.Conn.Release()
	return nil
}
