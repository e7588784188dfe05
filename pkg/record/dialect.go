package record

import (
	"strconv"
	"strings"
)

// Dialect captures the SQL differences the helpers care about.
type Dialect int

const (
	// SQLite uses "?" placeholders and LastInsertId.
	SQLite Dialect = iota
	// Postgres uses "$n" placeholders and INSERT ... RETURNING.
	Postgres
)

// DialectFor picks a dialect from a database/sql driver name.
func DialectFor(driver string) Dialect {
	switch strings.ToLower(driver) {
	case "postgres", "pgx", "pq":
		return Postgres
	default:
		return SQLite
	}
}

func (d Dialect) String() string {
	if d == Postgres {
		return "postgres"
	}
	return "sqlite"
}

// Placeholder returns the n-th (1-based) bind placeholder.
func (d Dialect) Placeholder(n int) string {
	if d == Postgres {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

func (d Dialect) returning() bool {
	return d == Postgres
}
