package database

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/Prekzursil/event-link-sub001/internal/infra/config"
)

// All credential tables live in a dedicated schema so the service can share a
// database with the rest of the platform.
const authSchema = "auth"

// NewPostgresPool opens a pgx pool and verifies the server is reachable. A
// credential service that cannot reach its store should refuse to start
// rather than answer every request with errors.
func NewPostgresPool(ctx context.Context, cfg config.PostgresSettings, log *zap.Logger) (*pgxpool.Pool, error) {
	if log == nil {
		log = zap.NewNop()
	}

	poolConfig, err := pgxpool.ParseConfig(dsn(cfg, poolParams(cfg)))
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	log.Info("postgres connected",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database),
		zap.Int32("max_conns", poolConfig.MaxConns),
	)

	return pool, nil
}

// dsn renders the settings as a postgres URL. search_path pins every
// connection to the credential schema; extra parameters are merged in.
func dsn(cfg config.PostgresSettings, extra url.Values) string {
	q := url.Values{}
	q.Set("sslmode", cfg.SSLMode)
	q.Set("search_path", authSchema+",public")
	for key, values := range extra {
		for _, value := range values {
			q.Add(key, value)
		}
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:     "/" + cfg.Database,
		RawQuery: q.Encode(),
	}
	return u.String()
}

// poolParams renders the tunables as pool_* query parameters, which
// pgxpool.ParseConfig understands natively. The migration connection must
// omit them: the stdlib driver would pass them to the server as runtime
// parameters.
func poolParams(cfg config.PostgresSettings) url.Values {
	params := url.Values{}
	if cfg.MaxConns > 0 {
		params.Set("pool_max_conns", strconv.Itoa(int(cfg.MaxConns)))
	}
	if cfg.MinConns > 0 {
		params.Set("pool_min_conns", strconv.Itoa(int(cfg.MinConns)))
	}
	if cfg.MaxConnLifetime > 0 {
		params.Set("pool_max_conn_lifetime", cfg.MaxConnLifetime.String())
	}
	if cfg.MaxConnIdleTime > 0 {
		params.Set("pool_max_conn_idle_time", cfg.MaxConnIdleTime.String())
	}
	if cfg.HealthCheckPeriod > 0 {
		params.Set("pool_health_check_period", cfg.HealthCheckPeriod.String())
	}
	return params
}
