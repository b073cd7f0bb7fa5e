package db

import (
	"database/sql"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// OpenPostgres opens the remote Postgres store using the given DSN. It does
// not ping: the process must be able to start offline, and reachability is
// owned by the connectivity monitor. Caller must call Close when done.
func OpenPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	return db, nil
}
