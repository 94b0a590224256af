package migrate

import (
	"embed"
	"errors"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/mpapenbr/regatta-scoring-go/log"
)

//go:embed migrations
var migrations embed.FS

type (
	Option   func(*migrator)
	migrator struct {
		sourceURL string
		l         *log.Logger
	}
	// adapter for migrate.Logger
	migrateLogger struct {
		l *log.Logger
	}
)

// WithSourceURL uses migrations from sourceURL (e.g. file:///migrations)
// instead of the embedded ones.
func WithSourceURL(sourceURL string) Option {
	return func(m *migrator) {
		m.sourceURL = sourceURL
	}
}

func WithLogger(l *log.Logger) Option {
	return func(m *migrator) {
		m.l = l
	}
}

func (m migrateLogger) Printf(format string, v ...any) {
	m.l.Sugar().Infof(strings.TrimSuffix(format, "\n"), v...)
}

func (m migrateLogger) Verbose() bool {
	return m.l.Enabled(log.DebugLevel)
}

func MigrateDb(dbURI string, opts ...Option) error {
	cfg := &migrator{l: log.Default().Named("migrate")}
	for _, opt := range opts {
		opt(cfg)
	}
	m, err := cfg.newMigrate(strings.Replace(dbURI, "postgresql://", "pgx://", 1))
	if err != nil {
		return err
	}
	defer m.Close()
	m.Log = migrateLogger{l: cfg.l}

	err = m.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	version, dirty, verr := m.Version()
	if verr == nil {
		cfg.l.Info("database migrated", log.Uint32("version", uint32(version)), log.Bool("dirty", dirty))
	}
	return nil
}

func (cfg *migrator) newMigrate(dbURL string) (*migrate.Migrate, error) {
	if cfg.sourceURL != "" {
		return migrate.New(cfg.sourceURL, dbURL)
	}
	source, err := iofs.New(migrations, "migrations")
	if err != nil {
		return nil, err
	}
	return migrate.NewWithSourceInstance("iofs", source, dbURL)
}
