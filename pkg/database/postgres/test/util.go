package test

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	_ "github.com/jackc/pgx/v4/stdlib" //nolint:revive

	"github.com/code-payments/token-manager-server/pkg/retry"
	"github.com/code-payments/token-manager-server/pkg/retry/backoff"
)

const (
	imageRepository = "postgres"
	imageTag        = "15-alpine"

	// Docker kills the container after this long, even if the test binary
	// dies without cleaning up
	containerTTL = 2 * time.Minute

	startupTimeout = 30 * time.Second
	pingInterval   = 250 * time.Millisecond

	user     = "localtest"
	password = "localpassword"
	dbname   = "testdb"
)

// StartPostgresDB starts a throwaway postgres container and returns a pgx
// connection to it once it accepts queries. closeFunc removes the container.
func StartPostgresDB(pool *dockertest.Pool) (db *sql.DB, closeFunc func(), err error) {
	closeFunc = func() {}

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: imageRepository,
		Tag:        imageTag,
		Env: []string{
			"POSTGRES_USER=" + user,
			"POSTGRES_PASSWORD=" + password,
			"POSTGRES_DB=" + dbname,
		},
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		return nil, closeFunc, errors.Wrap(err, "failed to start postgres container")
	}

	closeFunc = func() {
		if err := pool.Purge(resource); err != nil {
			logrus.StandardLogger().WithError(err).Warn("failed to purge postgres container")
		}
	}

	// Expire never fails
	_ = resource.Expire(uint(containerTTL.Seconds()))

	dsn := (&url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(user, password),
		Host:     resource.GetHostPort("5432/tcp"),
		Path:     "/" + dbname,
		RawQuery: "sslmode=disable",
	}).String()

	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	_, err = retry.RetryContext(
		ctx,
		func() error {
			if db == nil {
				if db, err = sql.Open("pgx", dsn); err != nil {
					return err
				}
			}
			return db.PingContext(ctx)
		},
		retry.Backoff(backoff.Constant(pingInterval), pingInterval),
	)
	if err != nil {
		if db != nil {
			db.Close()
		}
		closeFunc()
		return nil, func() {}, errors.Wrap(err, fmt.Sprintf("postgres not ready within %v", startupTimeout))
	}

	return db, closeFunc, nil
}
