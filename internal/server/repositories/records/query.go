package records

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/lifedash/internal/shared"
)

// args collects positional parameters. Values are bound as text and cast
// in SQL, so the driver never has to guess a column type.
type args []any

func (a *args) bind(kind Kind, v any) string {
	*a = append(*a, textValue(v))
	p := "$" + strconv.Itoa(len(*a))
	switch kind {
	case KindUUID:
		return p + "::text::uuid"
	case KindNumber:
		return p + "::text::numeric"
	case KindDate:
		return p + "::text::date"
	case KindTime:
		return p + "::text::timestamptz"
	default:
		return p
	}
}

func textValue(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}

// where renders filter as a WHERE clause, or "" for an empty filter.
func where(t *Table, f shared.Filter, a *args) (string, error) {
	var conds []string
	for _, col := range sortedKeys(f.Eq) {
		kind, err := t.Column(col)
		if err != nil {
			return "", err
		}
		if f.Eq[col] == nil {
			conds = append(conds, col+" IS NULL")
			continue
		}
		conds = append(conds, col+" = "+a.bind(kind, f.Eq[col]))
	}
	for _, col := range sortedKeys(f.Gte) {
		kind, err := t.Column(col)
		if err != nil {
			return "", err
		}
		conds = append(conds, col+" >= "+a.bind(kind, f.Gte[col]))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), nil
}
