package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type baseRow struct {
	ID      string `db:"id"`
	Version int64  `db:"version"`
}

type sampleRow struct {
	baseRow
	Number  string `db:"document_number"`
	Skipped string `db:"-"`
	Untagged string
	Total   int    `db:"total"`
}

func TestExtractDBColumns(t *testing.T) {
	cols := ExtractDBColumns[sampleRow]()
	assert.Equal(t, []string{"id", "version", "document_number", "total"}, cols)
}

func TestStructValues_FollowsColumnOrder(t *testing.T) {
	row := sampleRow{
		baseRow: baseRow{ID: "a", Version: 3},
		Number:  "INV-2026-0001",
		Skipped: "ignored",
		Total:   10,
	}

	values := StructValues(&row)
	require.Len(t, values, 4)
	assert.Equal(t, []any{"a", int64(3), "INV-2026-0001", 10}, values)
}

func TestStructToMap(t *testing.T) {
	m := StructToMap(sampleRow{baseRow: baseRow{ID: "a", Version: 1}, Number: "X"})

	assert.Equal(t, "a", m["id"])
	assert.Equal(t, int64(1), m["version"])
	assert.Equal(t, "X", m["document_number"])
	assert.NotContains(t, m, "Skipped")
	assert.Nil(t, StructToMap(42))
}
