package record

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// DefaultDriver is the database/sql driver registered by this package.
const DefaultDriver = "sqlite"

// Querier is the subset of *sql.DB and *sql.Tx the helpers need.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Option configures a Store.
type Option func(*Store)

// WithDialect overrides the dialect derived from the driver name.
func WithDialect(d Dialect) Option {
	return func(s *Store) {
		s.dialect = d
	}
}

// WithPrefix prepends prefix to every table name.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = strings.TrimSpace(prefix)
	}
}

// WithLogger routes query debug logs to logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Store runs the record helpers against a database or, inside WithTx,
// against the open transaction.
type Store struct {
	db      *sql.DB
	tx      *sql.Tx
	q       Querier
	dialect Dialect
	prefix  string
	logger  *zap.Logger
}

// New wraps an open database handle.
func New(db *sql.DB, options ...Option) *Store {
	s := &Store{db: db, q: db, dialect: SQLite, logger: zap.NewNop()}
	for _, opt := range options {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Open opens a database with driver and dsn. The dialect follows the driver
// name unless overridden. A sqlite ":memory:" dsn names one database shared
// by every pooled connection of the returned store.
func Open(driver, dsn string, options ...Option) (*Store, error) {
	if driver == "" {
		driver = DefaultDriver
	}
	if driver == DefaultDriver && dsn == ":memory:" {
		dsn = "file:pieform-" + uuid.NewString() + "?mode=memory&cache=shared"
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("record: open %s: %w", driver, err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("record: ping %s: %w", driver, err)
	}
	opts := append([]Option{WithDialect(DialectFor(driver))}, options...)
	return New(db, opts...), nil
}

// DB returns the underlying handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

// InTx reports whether the store is bound to a transaction.
func (s *Store) InTx() bool {
	return s.tx != nil
}

// Close closes the database. Closing a transaction-bound store is an error.
func (s *Store) Close() error {
	if s.tx != nil {
		return errors.New("record: cannot close a transaction-bound store")
	}
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Table returns the prefixed, validated table name.
func (s *Store) Table(name string) (string, error) {
	if err := checkIdentifier(name); err != nil {
		return "", err
	}
	return s.prefix + name, nil
}

// Exec runs a raw statement. Use it for schema setup and statements the
// helpers do not cover.
func (s *Store) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	s.logger.Debug("record exec", zap.String("sql", query), zap.Int("args", len(args)))
	res, err := s.q.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("record: exec: %w", err)
	}
	return res, nil
}

// WithTx runs fn inside a transaction. The transaction commits only when fn
// returns nil; any error, early return or panic rolls it back (panics are
// re-raised after the rollback). Calls on a transaction-bound store join the
// outer transaction.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx *Store) error) error {
	if s.tx != nil {
		return fn(ctx, s)
	}
	if s.db == nil {
		return errors.New("record: store has no database")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record: begin: %w", err)
	}
	bound := *s
	bound.tx = tx
	bound.q = tx

	finished := false
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			s.logger.Warn("record transaction rolled back after panic")
			panic(p)
		}
		if !finished {
			_ = tx.Rollback()
		}
	}()

	if err := fn(ctx, &bound); err != nil {
		finished = true
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Warn("record rollback failed", zap.Error(rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		finished = true
		return fmt.Errorf("record: commit: %w", err)
	}
	finished = true
	return nil
}

// QueryOption shapes multi-record reads.
type QueryOption func(*query)

type query struct {
	columns []string
	order   []string
	limit   int
	offset  int
}

// Columns restricts the selected columns.
func Columns(columns ...string) QueryOption {
	return func(q *query) {
		q.columns = append(q.columns, columns...)
	}
}

// OrderBy sorts by columns; suffix a column with " DESC" for descending.
func OrderBy(columns ...string) QueryOption {
	return func(q *query) {
		q.order = append(q.order, columns...)
	}
}

// Limit caps the number of rows returned.
func Limit(n int) QueryOption {
	return func(q *query) {
		q.limit = n
	}
}

// Offset skips n rows.
func Offset(n int) QueryOption {
	return func(q *query) {
		q.offset = n
	}
}

// Get returns the single record matching where. found is false when no row
// matches; more than one match is ErrMultipleRecords.
func (s *Store) Get(ctx context.Context, table string, where Filter, options ...QueryOption) (Record, bool, error) {
	records, err := s.List(ctx, table, where, append(options, Limit(2))...)
	if err != nil {
		return nil, false, err
	}
	switch len(records) {
	case 0:
		return nil, false, nil
	case 1:
		return records[0], true, nil
	default:
		return nil, false, fmt.Errorf("%w in %s", ErrMultipleRecords, table)
	}
}

// List returns every record matching where (all rows for an empty filter).
func (s *Store) List(ctx context.Context, table string, where Filter, options ...QueryOption) ([]Record, error) {
	q := query{}
	for _, opt := range options {
		if opt != nil {
			opt(&q)
		}
	}
	stmt, args, err := s.selectSQL(table, where, q)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("record query", zap.String("sql", stmt), zap.Int("args", len(args)))
	rows, err := s.q.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("record: query %s: %w", table, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("record: columns %s: %w", table, err)
	}

	var out []Record
	for rows.Next() {
		values := make([]any, len(columns))
		pointers := make([]any, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, fmt.Errorf("record: scan %s: %w", table, err)
		}
		rec := make(Record, len(columns))
		for i, column := range columns {
			if b, ok := values[i].([]byte); ok {
				rec[column] = string(b)
				continue
			}
			rec[column] = values[i]
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("record: iterate %s: %w", table, err)
	}
	return out, nil
}

// Field returns one column of the single record matching where.
func (s *Store) Field(ctx context.Context, table, column string, where Filter) (any, bool, error) {
	if err := checkIdentifier(column); err != nil {
		return nil, false, err
	}
	rec, found, err := s.Get(ctx, table, where, Columns(column))
	if err != nil || !found {
		return nil, found, err
	}
	return rec[column], true, nil
}

// Count returns the number of records matching where.
func (s *Store) Count(ctx context.Context, table string, where Filter) (int64, error) {
	name, err := s.Table(table)
	if err != nil {
		return 0, err
	}
	clause, args, err := s.whereSQL(where, 1)
	if err != nil {
		return 0, err
	}
	stmt := "SELECT COUNT(*) FROM " + quote(name) + clause
	s.logger.Debug("record count", zap.String("sql", stmt))

	var n int64
	if err := s.q.QueryRowContext(ctx, stmt, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("record: count %s: %w", table, err)
	}
	return n, nil
}

// Exists reports whether any record matches where.
func (s *Store) Exists(ctx context.Context, table string, where Filter) (bool, error) {
	n, err := s.Count(ctx, table, where)
	return n > 0, err
}

// Insert writes rec into table.
func (s *Store) Insert(ctx context.Context, table string, rec Record) error {
	stmt, args, err := s.insertSQL(table, rec)
	if err != nil {
		return err
	}
	_, err = s.Exec(ctx, stmt, args...)
	return err
}

// InsertID writes rec and returns the generated primary key pk.
func (s *Store) InsertID(ctx context.Context, table string, rec Record, pk string) (int64, error) {
	if err := checkIdentifier(pk); err != nil {
		return 0, err
	}
	stmt, args, err := s.insertSQL(table, rec)
	if err != nil {
		return 0, err
	}
	if s.dialect.returning() {
		stmt += " RETURNING " + quote(pk)
		s.logger.Debug("record insert", zap.String("sql", stmt))
		var id int64
		if err := s.q.QueryRowContext(ctx, stmt, args...).Scan(&id); err != nil {
			return 0, fmt.Errorf("record: insert %s: %w", table, err)
		}
		return id, nil
	}
	res, err := s.Exec(ctx, stmt, args...)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("record: insert id %s: %w", table, err)
	}
	return id, nil
}

// Update sets columns on every record matching where and returns the number
// of affected rows. An empty filter is refused.
func (s *Store) Update(ctx context.Context, table string, set Record, where Filter) (int64, error) {
	if len(where) == 0 {
		return 0, ErrUnfiltered
	}
	if len(set) == 0 {
		return 0, ErrNoColumns
	}
	name, err := s.Table(table)
	if err != nil {
		return 0, err
	}
	columns := sortedKeys(set)
	assignments := make([]string, 0, len(columns))
	args := make([]any, 0, len(columns)+len(where))
	for i, column := range columns {
		if err := checkIdentifier(column); err != nil {
			return 0, err
		}
		assignments = append(assignments, quote(column)+" = "+s.dialect.Placeholder(i+1))
		args = append(args, set[column])
	}
	clause, whereArgs, err := s.whereSQL(where, len(columns)+1)
	if err != nil {
		return 0, err
	}
	stmt := "UPDATE " + quote(name) + " SET " + strings.Join(assignments, ", ") + clause
	res, err := s.Exec(ctx, stmt, append(args, whereArgs...)...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// SetField updates a single column on the records matching where.
func (s *Store) SetField(ctx context.Context, table, column string, value any, where Filter) (int64, error) {
	return s.Update(ctx, table, Record{column: value}, where)
}

// Delete removes the records matching where. An empty filter is refused.
func (s *Store) Delete(ctx context.Context, table string, where Filter) (int64, error) {
	if len(where) == 0 {
		return 0, ErrUnfiltered
	}
	name, err := s.Table(table)
	if err != nil {
		return 0, err
	}
	clause, args, err := s.whereSQL(where, 1)
	if err != nil {
		return 0, err
	}
	res, err := s.Exec(ctx, "DELETE FROM "+quote(name)+clause, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) selectSQL(table string, where Filter, q query) (string, []any, error) {
	name, err := s.Table(table)
	if err != nil {
		return "", nil, err
	}
	selectList := "*"
	if len(q.columns) > 0 {
		quoted := make([]string, 0, len(q.columns))
		for _, column := range q.columns {
			if err := checkIdentifier(column); err != nil {
				return "", nil, err
			}
			quoted = append(quoted, quote(column))
		}
		selectList = strings.Join(quoted, ", ")
	}

	clause, args, err := s.whereSQL(where, 1)
	if err != nil {
		return "", nil, err
	}
	var b strings.Builder
	b.WriteString("SELECT " + selectList + " FROM " + quote(name) + clause)

	if len(q.order) > 0 {
		terms := make([]string, 0, len(q.order))
		for _, term := range q.order {
			column, direction := splitOrder(term)
			if err := checkIdentifier(column); err != nil {
				return "", nil, err
			}
			terms = append(terms, quote(column)+direction)
		}
		b.WriteString(" ORDER BY " + strings.Join(terms, ", "))
	}
	if q.limit > 0 {
		b.WriteString(" LIMIT " + strconv.Itoa(q.limit))
	}
	if q.offset > 0 {
		if q.limit <= 0 && s.dialect == SQLite {
			// SQLite requires a LIMIT before OFFSET.
			b.WriteString(" LIMIT -1")
		}
		b.WriteString(" OFFSET " + strconv.Itoa(q.offset))
	}
	return b.String(), args, nil
}

func splitOrder(term string) (string, string) {
	fields := strings.Fields(term)
	if len(fields) == 2 {
		switch strings.ToUpper(fields[1]) {
		case "DESC":
			return fields[0], " DESC"
		case "ASC":
			return fields[0], " ASC"
		}
	}
	return strings.TrimSpace(term), ""
}

func (s *Store) whereSQL(where Filter, start int) (string, []any, error) {
	if len(where) == 0 {
		return "", nil, nil
	}
	columns := sortedKeys(where)
	terms := make([]string, 0, len(columns))
	args := make([]any, 0, len(columns))
	n := start
	for _, column := range columns {
		if err := checkIdentifier(column); err != nil {
			return "", nil, err
		}
		value := where[column]
		if value == nil {
			terms = append(terms, quote(column)+" IS NULL")
			continue
		}
		terms = append(terms, quote(column)+" = "+s.dialect.Placeholder(n))
		args = append(args, value)
		n++
	}
	return " WHERE " + strings.Join(terms, " AND "), args, nil
}

func (s *Store) insertSQL(table string, rec Record) (string, []any, error) {
	if len(rec) == 0 {
		return "", nil, ErrNoColumns
	}
	name, err := s.Table(table)
	if err != nil {
		return "", nil, err
	}
	columns := sortedKeys(rec)
	quoted := make([]string, 0, len(columns))
	placeholders := make([]string, 0, len(columns))
	args := make([]any, 0, len(columns))
	for i, column := range columns {
		if err := checkIdentifier(column); err != nil {
			return "", nil, err
		}
		quoted = append(quoted, quote(column))
		placeholders = append(placeholders, s.dialect.Placeholder(i+1))
		args = append(args, rec[column])
	}
	stmt := "INSERT INTO " + quote(name) + " (" + strings.Join(quoted, ", ") + ") VALUES (" + strings.Join(placeholders, ", ") + ")"
	return stmt, args, nil
}
