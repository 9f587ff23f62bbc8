package storage

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type migrationLogger struct {
	logger *slog.Logger
}

func (l migrationLogger) Printf(format string, v ...any) {
	l.logger.Info(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l migrationLogger) Verbose() bool {
	return false
}

var ErrInvalidDSN = errors.New("dsn must be a postgres:// or postgresql:// URL")

// Migrate applies the embedded orders schema to the database at dsn.
// A done ctx stops the migration after the current step.
func Migrate(ctx context.Context, dsn string) error {
	const op = "storage.Migrate"
	log := slog.With("op", op)

	dbURL, err := migrateURL(dsn)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, dbURL)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			log.Error("failed to close migrator",
				"err", errors.Join(srcErr, dbErr))
		}
	}()

	m.Log = migrationLogger{log}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			m.GracefulStop <- true
		case <-done:
		}
	}()

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info("no migrations to apply")
			return nil
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: stopped: %w", op, err)
	}
	log.Info("migrations applied")
	return nil
}

// migrateURL maps a postgres URL to the pgx5 driver of migrate.
// Key=value DSNs are not supported.
func migrateURL(dsn string) (string, error) {
	for _, scheme := range []string{"postgres://", "postgresql://"} {
		if rest, ok := strings.CutPrefix(dsn, scheme); ok {
			return "pgx5://" + rest, nil
		}
	}
	return "", ErrInvalidDSN
}
