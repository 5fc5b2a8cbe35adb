package fixture_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/redblack/pkg/fixture"
	"github.com/Sumatoshi-tech/redblack/pkg/rbtree"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestDemo(t *testing.T) {
	t.Parallel()

	demo := fixture.Demo()

	assert.Equal(t, fixture.DemoName, demo.Name)
	assert.Equal(t, []int{10, 5, 15, 3, 7, 12, 17, 1, 9, 14, 20, 8, 11, 18, 6, 2}, demo.Keys())

	for _, entry := range demo.Entries {
		assert.Equal(t, entry.Key, entry.Value)
	}

	tree := rbtree.New(nil)
	require.NoError(t, demo.InsertInto(tree))
	require.NoError(t, tree.Validate())

	value, found := tree.Search(11)
	require.True(t, found)
	assert.Equal(t, 11, value)

	_, found = tree.Search(99)
	assert.False(t, found)
}

func TestInsertIntoStopsAtFirstError(t *testing.T) {
	t.Parallel()

	arena := rbtree.NewArena(0)
	arena.MaxNodes = 4
	tree := rbtree.New(arena)

	err := fixture.Demo().InsertInto(tree)
	require.ErrorIs(t, err, rbtree.ErrArenaExhausted)
	assert.Contains(t, err.Error(), "fixture demo")
	assert.Equal(t, 4, tree.Len())
}

func TestLoadJSONEntries(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "pairs.json", `{
  "name": "pairs",
  "entries": [
    {"key": 3, "value": 30},
    {"key": -1},
    {"key": 7, "value": 0}
  ]
}`)

	fix, err := fixture.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "pairs", fix.Name)
	assert.Equal(t, []fixture.Entry{{Key: 3, Value: 30}, {Key: -1, Value: -1}, {Key: 7, Value: 0}}, fix.Entries)
}

func TestLoadYAMLKeys(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "ascending.yml", "keys: [1, 2, 3]\n")

	fix, err := fixture.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "ascending", fix.Name, "unnamed fixtures take the file name")
	assert.Equal(t, []int{1, 2, 3}, fix.Keys())
	assert.Equal(t, 2, fix.Entries[1].Value)
}

func TestLoadYAMLEntries(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "mixed.yaml", `
name: mixed
entries:
  - key: 5
    value: 50
  - key: 5
    value: 51
`)

	fix, err := fixture.Load(path)
	require.NoError(t, err)
	assert.Equal(t, []fixture.Entry{{Key: 5, Value: 50}, {Key: 5, Value: 51}}, fix.Entries)
}

func TestLoadErrors(t *testing.T) {
	t.Parallel()

	_, err := fixture.Load(writeFile(t, "keys.txt", "1 2 3"))
	require.ErrorIs(t, err, fixture.ErrUnknownFormat)

	_, err = fixture.Load(filepath.Join(t.TempDir(), "absent.json"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestParseRejectsSchemaViolations(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		format  fixture.Format
		content string
	}{
		{"not_json", fixture.FormatJSON, `{"keys": [1, 2`},
		{"not_yaml", fixture.FormatYAML, "keys: [1, 2\n"},
		{"not_object", fixture.FormatJSON, `[1, 2, 3]`},
		{"empty_yaml", fixture.FormatYAML, ""},
		{"neither", fixture.FormatJSON, `{"name": "x"}`},
		{"both", fixture.FormatJSON, `{"keys": [1], "entries": [{"key": 1}]}`},
		{"float_key", fixture.FormatJSON, `{"keys": [1.5]}`},
		{"string_key", fixture.FormatYAML, "keys: [one]\n"},
		{"missing_key", fixture.FormatJSON, `{"entries": [{"value": 1}]}`},
		{"unknown_field", fixture.FormatYAML, "keys: [1]\nshape: left\n"},
		{"empty_name", fixture.FormatJSON, `{"name": "", "keys": [1]}`},
		{"overflow", fixture.FormatJSON, `{"keys": [99999999999999999999999]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := fixture.Parse([]byte(tt.content), tt.format)
			require.ErrorIs(t, err, fixture.ErrInvalidFixture)
		})
	}
}

func TestParseListsEverySchemaError(t *testing.T) {
	t.Parallel()

	_, err := fixture.Parse([]byte(`{"entries": [{"key": "a"}, {"key": 1, "value": true}]}`), fixture.FormatJSON)
	require.ErrorIs(t, err, fixture.ErrInvalidFixture)
	assert.Contains(t, err.Error(), "entries.0.key")
	assert.Contains(t, err.Error(), "entries.1.value")
}

func TestParseUnknownFormat(t *testing.T) {
	t.Parallel()

	_, err := fixture.Parse([]byte("{}"), "toml")
	require.ErrorIs(t, err, fixture.ErrUnknownFormat)
}

func TestMarshalRoundTrip(t *testing.T) {
	t.Parallel()

	for _, format := range []fixture.Format{fixture.FormatJSON, fixture.FormatYAML} {
		for _, fix := range []fixture.Fixture{fixture.Demo(), {Entries: []fixture.Entry{{Key: -4, Value: 9}}}, {}} {
			data, err := fix.Marshal(format)
			require.NoError(t, err)

			parsed, err := fixture.Parse(data, format)
			require.NoError(t, err, string(data))
			assert.Equal(t, fix.Name, parsed.Name)
			assert.Equal(t, len(fix.Entries), len(parsed.Entries))
			assert.Equal(t, fix.Keys(), parsed.Keys())
		}
	}
}

func TestFormatOf(t *testing.T) {
	t.Parallel()

	for path, want := range map[string]fixture.Format{
		"a.json":    fixture.FormatJSON,
		"b.YAML":    fixture.FormatYAML,
		"dir/c.yml": fixture.FormatYAML,
	} {
		got, err := fixture.FormatOf(path)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}
