package surreal

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/framebase/framebase/pkg/store"
)

// Field names are interpolated into SurrealQL because SET targets cannot
// be parametrized. Only plain identifiers are accepted; everything else is
// rejected before any query is built.
var fieldNameRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func validateFieldName(name string) error {
	if !fieldNameRE.MatchString(name) {
		return fmt.Errorf("invalid field name %q", name)
	}
	return nil
}

// removeFieldQuery builds the collection-wide statement unsetting field on
// every record of the table bound to $tb.
func removeFieldQuery(field string) (string, error) {
	if err := validateFieldName(field); err != nil {
		return "", err
	}
	return fmt.Sprintf("UPDATE type::table($tb) SET %s = NONE RETURN NONE", field), nil
}

// bulkUpdateQuery builds one multi-statement query applying ops in order,
// one UPDATE per op. Each statement returns the ids it touched so the
// caller can tell applied updates from missing documents by position.
// Values are parametrized; only validated field names are interpolated.
func bulkUpdateQuery(collection string, ops []store.Update) (string, map[string]any, error) {
	vars := map[string]any{"tb": collection}
	stmts := make([]string, 0, len(ops))
	for i, op := range ops {
		idVar := fmt.Sprintf("id%d", i)
		vars[idVar] = op.ID

		keys := make([]string, 0, len(op.Set))
		for k := range op.Set {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		assignments := make([]string, 0, len(keys)+len(op.Unset))
		for j, k := range keys {
			if err := validateFieldName(k); err != nil {
				return "", nil, fmt.Errorf("update %d: %w", i, err)
			}
			valVar := fmt.Sprintf("v%d_%d", i, j)
			vars[valVar] = op.Set[k]
			assignments = append(assignments, fmt.Sprintf("%s = $%s", k, valVar))
		}
		for _, k := range op.Unset {
			if err := validateFieldName(k); err != nil {
				return "", nil, fmt.Errorf("update %d: %w", i, err)
			}
			assignments = append(assignments, k+" = NONE")
		}

		stmt := fmt.Sprintf("UPDATE type::thing($tb, $%s)", idVar)
		if len(assignments) > 0 {
			stmt += " SET " + strings.Join(assignments, ", ")
		}
		stmt += " RETURN VALUE id"
		stmts = append(stmts, stmt)
	}
	return strings.Join(stmts, ";\n"), vars, nil
}

// acquireLeaseQuery takes or renews the lease bound to $name inside one
// transaction. A held, unexpired lease owned by someone else makes the
// transaction throw, which surfaces as a query error containing the THROW
// message.
const acquireLeaseQuery = `BEGIN TRANSACTION;
LET $existing = (SELECT * FROM type::thing('dataset_leases', $name));
IF $existing[0] != NONE AND $existing[0].holder != $holder AND $existing[0].expires > time::now() {
    THROW 'lease held';
};
UPSERT type::thing('dataset_leases', $name) SET holder = $holder, expires = $expires RETURN NONE;
COMMIT TRANSACTION;`
