package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColumnLetters(t *testing.T) {
	tests := []struct {
		col  int
		want string
	}{
		{1, "A"},
		{2, "B"},
		{26, "Z"},
		{27, "AA"},
		{28, "AB"},
		{52, "AZ"},
		{53, "BA"},
		{702, "ZZ"},
		{703, "AAA"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ColumnLetters(tt.col), "col %d", tt.col)
	}
}

func TestCellRefRoundTrip(t *testing.T) {
	refs := []CellRef{
		{Row: 1, Col: 1},
		{Row: 1, Col: 27},
		{Row: 15, Col: 2},
		{Row: 1048576, Col: 703},
	}
	for _, ref := range refs {
		parsed, err := ParseCellRef(ref.Name())
		require.NoError(t, err, "parse %s", ref.Name())
		assert.Equal(t, ref, parsed)
	}
}

func TestParseCellRefRejectsGarbage(t *testing.T) {
	for _, name := range []string{"", "A", "1", "A0", "0A", "!!", "A1B"} {
		_, err := ParseCellRef(name)
		assert.Error(t, err, "input %q", name)
	}
}

func TestMergeRange(t *testing.T) {
	m, err := ParseMergeRange("B2:D4")
	require.NoError(t, err)

	assert.Equal(t, CellRef{Row: 2, Col: 2}, m.Anchor())
	assert.Equal(t, 3, m.RowSpan())
	assert.Equal(t, 3, m.ColSpan())
	assert.True(t, m.Contains(CellRef{Row: 3, Col: 3}))
	assert.False(t, m.Contains(CellRef{Row: 5, Col: 3}))
	assert.True(t, m.IsAnchor(CellRef{Row: 2, Col: 2}))
	assert.False(t, m.IsAnchor(CellRef{Row: 2, Col: 3}))
	assert.Equal(t, "B2:D4", m.Ref())
}

func TestParseMergeRangeSingleCell(t *testing.T) {
	m, err := ParseMergeRange("C5:C5")
	require.NoError(t, err)
	assert.Equal(t, 1, m.RowSpan())
	assert.Equal(t, 1, m.ColSpan())
	assert.True(t, m.IsAnchor(CellRef{Row: 5, Col: 3}))
}
