package store

import (
	"fmt"
	"sort"
	"strings"
)

// Allowlist is the immutable set of identifiers that may appear in generated
// SQL. Identifiers cannot be bound as parameters, so membership is the only
// guard against identifier injection.
//
// The zero Allowlist rejects every table. Allowlist values are safe to share
// between goroutines; WithColumns returns a modified copy.
type Allowlist struct {
	tables map[string]struct{}
	// columns holds per-table column sets. A table without an entry accepts
	// any column identifier.
	columns map[string]map[string]struct{}
}

// NewAllowlist returns an Allowlist permitting exactly the named tables.
func NewAllowlist(tables ...string) Allowlist {
	a := Allowlist{tables: make(map[string]struct{}, len(tables))}
	for _, t := range tables {
		a.tables[t] = struct{}{}
	}
	return a
}

// WithColumns returns a copy of a that also restricts the column identifiers
// accepted for table. The table must already be allowed.
func (a Allowlist) WithColumns(table string, columns ...string) (Allowlist, error) {
	if _, err := a.CheckTable(table); err != nil {
		return a, err
	}

	out := Allowlist{
		tables:  a.tables,
		columns: make(map[string]map[string]struct{}, len(a.columns)+1),
	}
	for t, set := range a.columns {
		out.columns[t] = set
	}

	set := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		set[c] = struct{}{}
	}
	out.columns[table] = set
	return out, nil
}

// CheckTable returns name if it is exactly (case-sensitive, untrimmed) an
// allowed table, otherwise an error wrapping ErrTableNotAllowed.
func (a Allowlist) CheckTable(name string) (string, error) {
	if _, ok := a.tables[name]; !ok {
		return "", fmt.Errorf("%w: %q", ErrTableNotAllowed, name)
	}
	return name, nil
}

// Contains reports whether name is an allowed table.
func (a Allowlist) Contains(name string) bool {
	_, ok := a.tables[name]
	return ok
}

// Tables returns the allowed table names in sorted order.
func (a Allowlist) Tables() []string {
	out := make([]string, 0, len(a.tables))
	for t := range a.tables {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// RestrictsColumns reports whether table has a column allowlist.
func (a Allowlist) RestrictsColumns(table string) bool {
	_, ok := a.columns[table]
	return ok
}

// CheckColumn validates a single column identifier for table.
func (a Allowlist) CheckColumn(table, column string) error {
	set, ok := a.columns[table]
	if !ok {
		return nil
	}
	if _, ok := set[column]; !ok {
		return fmt.Errorf("%w: %q in table %q", ErrColumnNotAllowed, column, table)
	}
	return nil
}

// CheckColumnList validates a comma-separated projection such as "id, title".
// Each entry is trimmed of spaces; "*" is always accepted.
func (a Allowlist) CheckColumnList(table, list string) error {
	if !a.RestrictsColumns(table) {
		return nil
	}
	for _, entry := range strings.Split(list, ",") {
		column := strings.TrimSpace(entry)
		if column == "*" {
			continue
		}
		if err := a.CheckColumn(table, column); err != nil {
			return err
		}
	}
	return nil
}
