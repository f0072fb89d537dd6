// Package records is the generic persistence for the application tables
// (profiles, tasks and transactions). Every table and column name that
// reaches SQL is checked against a fixed schema first.
package records

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dmitrijs2005/lifedash/internal/common"
	"github.com/dmitrijs2005/lifedash/internal/shared"
)

// Kind decides how a column is bound and how it is read back.
type Kind int

const (
	KindText Kind = iota
	KindUUID
	KindNumber
	KindDate
	KindTime
)

// Table describes one application table.
type Table struct {
	Name string
	// Owner is the column holding the id of the user a row belongs to.
	Owner   string
	columns map[string]Kind
	order   []string
}

func newTable(name, owner string, cols ...column) *Table {
	t := &Table{Name: name, Owner: owner, columns: make(map[string]Kind, len(cols))}
	for _, c := range cols {
		t.columns[c.name] = c.kind
		t.order = append(t.order, c.name)
	}
	return t
}

type column struct {
	name string
	kind Kind
}

var tables = map[string]*Table{
	shared.TableProfiles: newTable(shared.TableProfiles, "id",
		column{"id", KindUUID},
		column{"email", KindText},
		column{"full_name", KindText},
		column{"role", KindText},
		column{"created_at", KindTime},
		column{"updated_at", KindTime},
	),
	shared.TableTasks: newTable(shared.TableTasks, "user_id",
		column{"id", KindUUID},
		column{"user_id", KindUUID},
		column{"title", KindText},
		column{"description", KindText},
		column{"category", KindText},
		column{"priority", KindText},
		column{"status", KindText},
		column{"due_date", KindDate},
		column{"created_at", KindTime},
	),
	shared.TableTransactions: newTable(shared.TableTransactions, "user_id",
		column{"id", KindUUID},
		column{"user_id", KindUUID},
		column{"type", KindText},
		column{"amount", KindNumber},
		column{"description", KindText},
		column{"category", KindText},
		column{"account", KindText},
		column{"date", KindDate},
		column{"created_at", KindTime},
	),
}

// Lookup returns the table called name or an invalid-argument error.
func Lookup(name string) (*Table, error) {
	t, ok := tables[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown table %q", common.ErrorInvalidArgument, name)
	}
	return t, nil
}

// Column returns the kind of the named column.
func (t *Table) Column(name string) (Kind, error) {
	k, ok := t.columns[name]
	if !ok {
		return 0, fmt.Errorf("%w: unknown column %s.%s", common.ErrorInvalidArgument, t.Name, name)
	}
	return k, nil
}

// Has reports whether the table has the named column.
func (t *Table) Has(name string) bool {
	_, ok := t.columns[name]
	return ok
}

func (t *Table) selectList() string {
	exprs := make([]string, len(t.order))
	for i, name := range t.order {
		exprs[i] = readExpr(name, t.columns[name])
	}
	return strings.Join(exprs, ", ")
}

func readExpr(name string, kind Kind) string {
	switch kind {
	case KindUUID:
		return name + "::text AS " + name
	case KindNumber:
		return name + "::float8 AS " + name
	case KindDate:
		return "to_char(" + name + ", 'YYYY-MM-DD') AS " + name
	case KindTime:
		return "to_char(" + name + ` AT TIME ZONE 'UTC', 'YYYY-MM-DD"T"HH24:MI:SS.US"Z"') AS ` + name
	default:
		return name
	}
}

// sortedKeys returns the keys of m in order so generated SQL is stable.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
