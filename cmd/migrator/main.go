package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/niksmo/storefront/internal/adapter/storage"
	"github.com/niksmo/storefront/pkg/sigctx"
	"github.com/spf13/pflag"
)

const (
	dsnFlag   = "dsn"
	dsnEnvVar = "STOREFRONT_STORAGE_POSTGRES_DSN"
)

func main() {
	sigCtx, stop := sigctx.NotifyContext()
	defer stop()

	dsn := getDSN()
	validateDSN(dsn)

	if err := storage.Migrate(sigCtx, dsn); err != nil {
		slog.Error("failed to migrate", "err", err)
		stop()
		fallDown()
	}
}

func getDSN() string {
	dsn := pflag.StringP(dsnFlag, "d", "", "postgres connection string")
	pflag.Parse()
	if *dsn != "" {
		return *dsn
	}
	return os.Getenv(dsnEnvVar)
}

func validateDSN(dsn string) {
	if dsn == "" {
		slog.Error("too few args", "err", fmt.Errorf(
			"--%s flag or %s env: required", dsnFlag, dsnEnvVar,
		))
		fallDown()
	}
}

func fallDown() {
	os.Exit(2)
}
