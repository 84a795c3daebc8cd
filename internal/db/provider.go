package db

import (
	"context"
	"fmt"
	"net"
	"net/url"

	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	log "github.com/sirupsen/logrus"
)

// Conn is a single acquired database connection. It must be released
// exactly once, after which it is not usable anymore.
type Conn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Release(ctx context.Context) error
}

type Provider interface {
	Acquire(ctx context.Context) (Conn, error)
	Close()
}

type Params struct {
	Host           string
	Port           string
	Name           string
	User           string
	Password       string
	SSLMode        string
	TracingEnabled bool
}

// ConnString builds a postgres URL, escaping user and password.
func (p Params) ConnString() string {
	port := p.Port
	if port == "" {
		port = "5432"
	}
	query := url.Values{}
	if p.SSLMode != "" {
		query.Set("sslmode", p.SSLMode)
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(p.User, p.Password),
		Host:     net.JoinHostPort(p.Host, port),
		Path:     "/" + p.Name,
		RawQuery: query.Encode(),
	}
	return u.String()
}

var _ Provider = (*ConnProvider)(nil)

// ConnProvider opens a brand-new connection on every Acquire and closes it on
// Release. Nothing is shared between acquisitions.
type ConnProvider struct {
	params     Params
	connConfig *pgx.ConnConfig
}

func NewConnProvider(params Params) (*ConnProvider, error) {
	connConfig, err := pgx.ParseConfig(params.ConnString())
	if err != nil {
		return nil, fmt.Errorf("parse db config: %w", err)
	}

	if params.TracingEnabled {
		connConfig.Tracer = otelpgx.NewTracer()
	}

	return &ConnProvider{
		params:     params,
		connConfig: connConfig,
	}, nil
}

func (p *ConnProvider) Acquire(ctx context.Context) (Conn, error) {
	conn, err := pgx.ConnectConfig(ctx, p.connConfig.Copy())
	if err != nil {
		return nil, &ConnectionError{
			Host:   p.params.Host,
			DBName: p.params.Name,
			Err:    err,
		}
	}
	log.Tracef("db connection opened to %s/%s", p.params.Host, p.params.Name)
	return &singleConn{Conn: conn}, nil
}

// Close is a no-op, there is nothing held between acquisitions.
func (p *ConnProvider) Close() {}

type singleConn struct {
	*pgx.Conn
}

func (c *singleConn) Release(ctx context.Context) error {
	// a cancelled request context would still close the socket, but would skip
	// the graceful terminate message
	return c.Conn.Close(context.WithoutCancel(ctx))
}
