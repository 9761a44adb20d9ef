package sqlstore

import (
	"errors"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Driver names accepted by Open.
const (
	DriverSQLite   = "sqlite"   // modernc.org/sqlite
	DriverPostgres = "postgres" // github.com/lib/pq
	DriverPgx      = "pgx"      // github.com/jackc/pgx/v5/stdlib
)

// Dialect captures the SQL differences between the supported backends.
type Dialect struct {
	Name   string // migrations directory
	Driver string
}

var (
	DialectSQLite   = Dialect{Name: "sqlite", Driver: DriverSQLite}
	DialectPostgres = Dialect{Name: "postgres", Driver: DriverPostgres}
	DialectPgx      = Dialect{Name: "postgres", Driver: DriverPgx}
)

// DialectFor returns the dialect of a driver name.
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case DriverSQLite:
		return DialectSQLite, nil
	case DriverPostgres:
		return DialectPostgres, nil
	case DriverPgx:
		return DialectPgx, nil
	}
	return Dialect{}, errors.New("unsupported ledger driver " + strconv.Quote(driver))
}

func (d Dialect) postgres() bool {
	return d.Name == "postgres"
}

// Rebind rewrites ? placeholders to $n for postgres.
func (d Dialect) Rebind(query string) string {
	if !d.postgres() {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// inStrings renders "column IN (...)" for a list of strings.
func (d Dialect) inStrings(column string, values []string) (string, []any) {
	switch d.Driver {
	case DriverPostgres:
		return column + " = ANY(?)", []any{pq.Array(values)}
	case DriverPgx:
		return column + " = ANY(?)", []any{values}
	}
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return column + " IN (" + strings.TrimSuffix(strings.Repeat("?,", len(values)), ",") + ")", args
}

// isUniqueViolation reports a primary key or unique constraint failure from
// any of the supported drivers.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		code := sqliteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT || code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}
