package migrations

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Embedded(t *testing.T) {
	pg, err := Load(PostgresFS, "postgres")
	require.NoError(t, err)
	require.NotEmpty(t, pg)
	assert.Equal(t, "001_whale_flow.sql", pg[0].Name)

	ch, err := Load(ClickhouseFS, "clickhouse")
	require.NoError(t, err)
	require.NotEmpty(t, ch)
	for _, m := range ch {
		_, err := splitStatements(m.SQL)
		assert.NoError(t, err, m.Name)
	}
}

func TestLoad_OrdersAndFilters(t *testing.T) {
	fsys := fstest.MapFS{
		"m/002_b.sql":   {Data: []byte("SELECT 2;")},
		"m/001_a.sql":   {Data: []byte("SELECT 1;")},
		"m/003_c.sql":   {Data: []byte("  \n")},
		"m/README.md":   {Data: []byte("notes")},
		"m/sub/004.sql": {Data: []byte("SELECT 4;")},
	}

	got, err := Load(fsys, "m")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "001_a.sql", got[0].Name)
	assert.Equal(t, "002_b.sql", got[1].Name)
	assert.Equal(t, "SELECT 2;", got[1].SQL)
}

func TestLoad_MissingDir(t *testing.T) {
	_, err := Load(fstest.MapFS{}, "nope")
	assert.Error(t, err)
}

func TestPending(t *testing.T) {
	all := []Migration{{Name: "001.sql"}, {Name: "002.sql"}, {Name: "003.sql"}}

	got := pending(all, map[string]bool{"002.sql": true})
	require.Len(t, got, 2)
	assert.Equal(t, "001.sql", got[0].Name)
	assert.Equal(t, "003.sql", got[1].Name)

	assert.Empty(t, pending(all, map[string]bool{"001.sql": true, "002.sql": true, "003.sql": true}))
}

func TestSplitStatements(t *testing.T) {
	input := `
-- header comment
CREATE TABLE a (x Int64) ENGINE = Memory;

CREATE TABLE b (y String) -- trailing comment; not a split
ENGINE = Memory;
`
	stmts, err := splitStatements(input)
	require.NoError(t, err)
	require.Len(t, stmts, 2)
	assert.Equal(t, "CREATE TABLE a (x Int64) ENGINE = Memory", stmts[0])
	assert.Contains(t, stmts[1], "CREATE TABLE b")
	assert.Contains(t, stmts[1], "ENGINE = Memory")
	assert.NotContains(t, stmts[1], "trailing")
}

func TestSplitStatements_QuotedSemicolons(t *testing.T) {
	stmts, err := splitStatements("SELECT 'a;b'; SELECT 'it''s; fine' -- x\n; SELECT '--kept'")
	require.NoError(t, err)
	require.Len(t, stmts, 3)
	assert.Equal(t, "SELECT 'a;b'", stmts[0])
	assert.Equal(t, "SELECT 'it''s; fine'", stmts[1])
	assert.Equal(t, "SELECT '--kept'", stmts[2])
}

func TestSplitStatements_Unterminated(t *testing.T) {
	_, err := splitStatements("SELECT 'open;")
	assert.Error(t, err)
}

func TestDatabaseFromDSN(t *testing.T) {
	db, err := databaseFromDSN("clickhouse://default:@localhost:9000/whaleflow?dial_timeout=5s")
	require.NoError(t, err)
	assert.Equal(t, "whaleflow", db)

	_, err = databaseFromDSN("clickhouse://localhost:9000")
	assert.Error(t, err)
}
