package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/apex/log"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joomcode/errorx"
	"github.com/relaycast/relaycast-go/common"
)

// PostgresCredentials resolves API keys from a Postgres table:
//
//	CREATE TABLE api_keys (
//	  app_pid text NOT NULL,
//	  key_id text NOT NULL,
//	  secret_key text NOT NULL,
//	  permissions jsonb NOT NULL DEFAULT '{}',
//	  enabled boolean NOT NULL DEFAULT true,
//	  PRIMARY KEY (app_pid, key_id)
//	);
type PostgresCredentials struct {
	config *PostgresConfig
	pool   *pgxpool.Pool

	secretQuery      string
	permissionsQuery string

	log *log.Entry
}

var _ CredentialPool = (*PostgresCredentials)(nil)

func NewPostgresCredentials(c *PostgresConfig) *PostgresCredentials {
	table := pgx.Identifier{c.Table}.Sanitize()

	return &PostgresCredentials{
		config:           c,
		secretQuery:      fmt.Sprintf("SELECT secret_key FROM %s WHERE app_pid = $1 AND key_id = $2 AND enabled", table),
		permissionsQuery: fmt.Sprintf("SELECT permissions FROM %s WHERE app_pid = $1 AND key_id = $2 AND enabled", table),
		log:              log.WithField("context", "credentials").WithField("provider", "postgres"),
	}
}

func (p *PostgresCredentials) Start(ctx context.Context) error {
	poolConfig, err := pgxpool.ParseConfig(p.config.URL)

	if err != nil {
		return errorx.Decorate(err, "invalid postgres url")
	}

	if p.config.MaxConns > 0 {
		poolConfig.MaxConns = p.config.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)

	if err != nil {
		return errorx.Decorate(err, "failed to create postgres pool")
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return errorx.Decorate(err, "failed to connect to postgres")
	}

	p.pool = pool

	p.log.Debugf("Connected to %s (max conns: %d)", poolConfig.ConnConfig.Host, poolConfig.MaxConns)

	return nil
}

func (p *PostgresCredentials) Shutdown(ctx context.Context) error {
	if p.pool != nil {
		p.pool.Close()
	}

	return nil
}

func (p *PostgresCredentials) Acquire(ctx context.Context) (CredentialConn, error) {
	if p.pool == nil {
		return nil, errorx.IllegalState.New("credentials pool is not started")
	}

	conn, err := p.pool.Acquire(ctx)

	if err != nil {
		return nil, errorx.Decorate(err, "failed to acquire postgres connection")
	}

	return &postgresConn{conn: conn, owner: p}, nil
}

type postgresConn struct {
	conn  *pgxpool.Conn
	owner *PostgresCredentials
}

func (c *postgresConn) SecretKey(ctx context.Context, tenantID string, keyID string) (string, error) {
	var secret string

	err := c.conn.QueryRow(ctx, c.owner.secretQuery, tenantID, keyID).Scan(&secret)

	if err != nil {
		return "", lookupError(err)
	}

	return secret, nil
}

func (c *postgresConn) Permissions(ctx context.Context, tenantID string, keyID string) (common.Permissions, error) {
	var raw []byte

	err := c.conn.QueryRow(ctx, c.owner.permissionsQuery, tenantID, keyID).Scan(&raw)

	if err != nil {
		return nil, lookupError(err)
	}

	var permissions common.Permissions

	if err := json.Unmarshal(raw, &permissions); err != nil {
		return nil, errorx.Decorate(err, "malformed permissions")
	}

	return permissions, nil
}

func (c *postgresConn) Release() {
	if c.conn != nil {
		c.conn.Release()
		c.conn = nil
	}
}

func lookupError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return common.ErrNotFound.New("key not found")
	}

	return errorx.Decorate(err, "failed to query credentials")
}
