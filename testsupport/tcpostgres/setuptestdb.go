//nolint:errcheck // testsetup
package tcpostgres

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/mpapenbr/regatta-scoring-go/log"
	"github.com/mpapenbr/regatta-scoring-go/pkg/db/migrate"
	database "github.com/mpapenbr/regatta-scoring-go/pkg/db/postgres"
)

// create a pg connection pool for the scoring testdatabase
func SetupTestDb() *pgxpool.Pool {
	ctx := context.Background()
	port, err := nat.NewPort("tcp", "5432")
	if err != nil {
		log.Fatal("invalid port", log.ErrorField(err))
	}
	container, err := StartPostgres(ctx,
		WithPort(port.Port()),
		WithCredentials("postgres", "password", "postgres"),
		WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Second)),
		WithName("regatta-scoring-test"),
	)
	if err != nil {
		log.Fatal("could not start container", log.ErrorField(err))
	}
	containerPort, _ := container.MappedPort(ctx, port)
	host, _ := container.Host(ctx)
	dbUrl := fmt.Sprintf("postgresql://postgres:password@%s:%s/postgres",
		host, containerPort.Port())

	return migrateAndConnect(dbUrl)
}

// SetupExternalTestDb uses the database given by TESTDB_URL
func SetupExternalTestDb() *pgxpool.Pool {
	return migrateAndConnect(os.Getenv("TESTDB_URL"))
}

func migrateAndConnect(dbUrl string) *pgxpool.Pool {
	if err := migrate.MigrateDb(dbUrl); err != nil {
		log.Fatal("could not migrate test database", log.ErrorField(err))
	}
	return database.InitWithUrl(dbUrl)
}

func ClearStandingTables(pool *pgxpool.Pool) {
	pool.Exec(context.Background(), "delete from standing_state")
	pool.Exec(context.Background(), "delete from standing_result")
}

func ClearSeriesTables(pool *pgxpool.Pool) {
	pool.Exec(context.Background(), "delete from race_result")
	pool.Exec(context.Background(), "delete from race")
	pool.Exec(context.Background(), "delete from series")
}

func ClearScoringSystemTables(pool *pgxpool.Pool) {
	pool.Exec(context.Background(), "delete from score_code")
	// children first
	pool.Exec(context.Background(), "delete from scoring_system where parent_id is not null")
	pool.Exec(context.Background(), "delete from scoring_system")
}

func ClearAllTables(pool *pgxpool.Pool) {
	ClearStandingTables(pool)
	ClearSeriesTables(pool)
	ClearScoringSystemTables(pool)
}
