// Package record provides thin get/insert/update/delete helpers keyed by
// table name and filter over database/sql. Reads report absence through a
// found flag rather than an error. Writes are not transactional on their own;
// wrap related writes in Store.WithTx.
package record

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var (
	// ErrMultipleRecords is returned by single-record reads that match more
	// than one row.
	ErrMultipleRecords = errors.New("record: more than one record matched")
	// ErrUnfiltered guards updates and deletes issued without a filter.
	ErrUnfiltered = errors.New("record: refusing to write without a filter")
	// ErrInvalidIdentifier is returned for table or column names that are not
	// plain identifiers.
	ErrInvalidIdentifier = errors.New("record: invalid identifier")
	// ErrNoColumns is returned for inserts and updates with nothing to write.
	ErrNoColumns = errors.New("record: no columns to write")
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Record is one row keyed by column name. Text columns are returned as
// strings, integers as int64, NULL as nil.
type Record map[string]any

// Filter selects rows by column equality. A nil value matches NULL.
type Filter map[string]any

// Where is shorthand for a single-column filter.
func Where(column string, value any) Filter {
	return Filter{column: value}
}

// String returns the column as text ("" for NULL or missing).
func (r Record) String(column string) string {
	switch v := r[column].(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}

// Int returns the column as an integer (0 when NULL, missing or not numeric).
func (r Record) Int(column string) int64 {
	switch v := r[column].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case float64:
		return int64(v)
	case bool:
		if v {
			return 1
		}
		return 0
	case string:
		n, _ := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		return n
	case []byte:
		n, _ := strconv.ParseInt(strings.TrimSpace(string(v)), 10, 64)
		return n
	default:
		return 0
	}
}

// Bool returns the column as a flag using Int semantics.
func (r Record) Bool(column string) bool {
	return r.Int(column) != 0
}

func sortedKeys[M ~map[string]any](m M) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func checkIdentifier(name string) error {
	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidIdentifier, name)
	}
	return nil
}

func quote(name string) string {
	return `"` + name + `"`
}
