package testdb

import (
	"context"
	"os"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mpapenbr/regatta-scoring-go/log"
	tcpg "github.com/mpapenbr/regatta-scoring-go/testsupport/tcpostgres"
)

var (
	once sync.Once
	pool *pgxpool.Pool
)

// InitTestDb returns a migrated database with empty tables.
// The database given by TESTDB_URL is used if set, otherwise a postgres
// container is started. The pool is shared by all tests of a package.
func InitTestDb() *pgxpool.Pool {
	once.Do(func() {
		if os.Getenv("TESTDB_URL") != "" {
			pool = tcpg.SetupExternalTestDb()
		} else {
			pool = tcpg.SetupTestDb()
		}
	})
	if err := pool.Ping(context.Background()); err != nil {
		log.Fatal("test database not available", log.ErrorField(err))
	}
	tcpg.ClearAllTables(pool)
	return pool
}
