package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/niksmo/inventory/config"
	"github.com/spf13/pflag"
)

const (
	configFlag        = "config"
	dsnFlag           = "dsn"
	migrationPathFlag = "migrations-path"
	downFlag          = "down"
)

type flagValues struct {
	configFile     string
	dsn            string
	migrationsPath string
	down           bool
}

func main() {
	fv := getFlagsValues()
	if fv.dsn == "" {
		fv.dsn = config.MustLoad(config.ResolvePath(fv.configFile)).Storage.DSN
	}
	validateFlags(fv)
	makeMigrations(fv)
}

type MigrationLogger struct {
	logger  *slog.Logger
	verbose bool
}

func NewMigrationLogger() *MigrationLogger {
	return &MigrationLogger{
		logger:  slog.Default(),
		verbose: true,
	}
}

func (ml *MigrationLogger) Printf(format string, v ...any) {
	ml.logger.Info(fmt.Sprintf(format, v...))
}

func (ml *MigrationLogger) Verbose() bool {
	return ml.verbose
}

func getFlagsValues() (fv flagValues) {
	pflag.StringVarP(&fv.configFile, configFlag, "c", "", "config file, storage.dsn is used when --dsn is empty")
	pflag.StringVarP(&fv.dsn, dsnFlag, "d", "", "postgres DSN")
	pflag.StringVarP(&fv.migrationsPath, migrationPathFlag, "m", "migrations", "migrations directory")
	pflag.BoolVar(&fv.down, downFlag, false, "roll back all migrations")
	pflag.Parse()
	return fv
}

func validateFlags(fv flagValues) {
	var errs []error

	if fv.dsn == "" {
		errs = append(errs, fmt.Errorf("--%s flag or storage.dsn: required", dsnFlag))
	}

	if fv.migrationsPath == "" {
		errs = append(errs, fmt.Errorf("--%s flag: required", migrationPathFlag))
	}

	if len(errs) != 0 {
		slog.Error("too few args", "err", errors.Join(errs...))
		fallDown()
	}
}

// databaseURL rewrites a postgres DSN for the pgx/v5 migrate driver.
func databaseURL(dsn string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "postgres", "postgresql", "pgx5":
		u.Scheme = "pgx5"
		return u.String(), nil
	}
	return "", fmt.Errorf("unsupported DSN scheme %q", u.Scheme)
}

func makeMigrations(fv flagValues) {
	dbURL, err := databaseURL(fv.dsn)
	if err != nil {
		slog.Error("invalid dsn", "err", err)
		fallDown()
	}

	m, err := migrate.New("file://"+fv.migrationsPath, dbURL)
	if err != nil {
		slog.Error("failed to migrate", "err", err)
		fallDown()
	}

	m.Log = NewMigrationLogger()

	apply, direction := m.Up, "up"
	if fv.down {
		apply, direction = m.Down, "down"
	}

	if err := apply(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			m.Log.Printf("no migrations to apply")
			return
		}
		slog.Error("failed to migrate", "direction", direction, "err", err)
		fallDown()
	}
	m.Log.Printf("migration applied: %s", direction)
}

func fallDown() {
	os.Exit(2)
}
