package db

import (
	"os"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The policies in the migrations are the database-side half of the tenant
// binding this package performs. Every table carrying a tenant_id column
// must be enabled, forced and covered by a policy, or a connection without
// BYPASSRLS reads other tenants' rows no matter what is bound.
func TestEveryTenantScopedTableHasPolicy(t *testing.T) {
	schemaSQL, err := os.ReadFile("../../../migrations/0001_schema.sql")
	require.NoError(t, err)
	rlsSQL, err := os.ReadFile("../../../migrations/0002_rls.sql")
	require.NoError(t, err)
	rls := string(rlsSQL)

	tables := tenantScopedTables(string(schemaSQL))
	require.NotEmpty(t, tables)
	assert.Contains(t, tables, "roles")
	assert.Contains(t, tables, "permission_overrides")

	// role_permissions has no tenant_id column; it scopes through its
	// owning role and still needs its own policy.
	tables = append(tables, "role_permissions")

	for _, table := range tables {
		assert.Contains(t, rls, "ALTER TABLE "+table+" ENABLE ROW LEVEL SECURITY", table)
		assert.Contains(t, rls, "ALTER TABLE "+table+" FORCE ROW LEVEL SECURITY", table)
		assert.Regexp(t, `CREATE POLICY \w+ ON `+table+`\s`, rls, table)
	}
}

var createTableRe = regexp.MustCompile(`(?s)CREATE TABLE IF NOT EXISTS (\w+) \((.*?)\n\);`)

func tenantScopedTables(schema string) []string {
	var tables []string
	for _, m := range createTableRe.FindAllStringSubmatch(schema, -1) {
		name, body := m[1], m[2]
		if name == "tenants" {
			continue
		}
		if strings.Contains(body, "tenant_id") {
			tables = append(tables, name)
		}
	}
	return tables
}
