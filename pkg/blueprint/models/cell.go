// Package models defines the data structures shared by the blueprint pipeline.
package models

import (
	"fmt"
	"strings"
)

// CellRef identifies a single cell by 1-based row and column.
type CellRef struct {
	// Row is the row index (1-based).
	Row int `json:"row"`
	// Col is the column index (1-based).
	Col int `json:"col"`
}

// Valid reports whether both coordinates are positive.
func (r CellRef) Valid() bool {
	return r.Row >= 1 && r.Col >= 1
}

// Name returns the canonical textual form, e.g. {1,1} -> "A1", {1,27} -> "AA1".
func (r CellRef) Name() string {
	return ColumnLetters(r.Col) + fmt.Sprintf("%d", r.Row)
}

// ColumnLetters converts a 1-based column index to its letter form using
// bijective base-26 (A=1 ... Z=26, AA=27).
func ColumnLetters(col int) string {
	if col < 1 {
		return ""
	}
	var b []byte
	for col > 0 {
		col--
		b = append([]byte{byte('A' + col%26)}, b...)
		col /= 26
	}
	return string(b)
}

// ParseCellRef parses a textual cell reference like "AA12" back into a CellRef.
// Parsing is the exact inverse of Name.
func ParseCellRef(name string) (CellRef, error) {
	s := strings.ToUpper(strings.TrimSpace(name))
	i := 0
	col := 0
	for ; i < len(s); i++ {
		c := s[i]
		if c < 'A' || c > 'Z' {
			break
		}
		col = col*26 + int(c-'A'+1)
	}
	if i == 0 || i == len(s) {
		return CellRef{}, fmt.Errorf("invalid cell reference %q", name)
	}
	row := 0
	for ; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return CellRef{}, fmt.Errorf("invalid cell reference %q", name)
		}
		row = row*10 + int(c-'0')
	}
	ref := CellRef{Row: row, Col: col}
	if !ref.Valid() {
		return CellRef{}, fmt.Errorf("invalid cell reference %q", name)
	}
	return ref, nil
}

// MergeRange is an inclusive rectangular merged region. Start is the anchor
// (top-left); Start.Row <= End.Row and Start.Col <= End.Col.
type MergeRange struct {
	Start CellRef `json:"start"`
	End   CellRef `json:"end"`
}

// Valid reports whether the range is a well-formed rectangle.
func (m MergeRange) Valid() bool {
	return m.Start.Valid() && m.End.Valid() &&
		m.Start.Row <= m.End.Row && m.Start.Col <= m.End.Col
}

// Contains reports whether the cell lies inside the range.
func (m MergeRange) Contains(r CellRef) bool {
	return r.Row >= m.Start.Row && r.Row <= m.End.Row &&
		r.Col >= m.Start.Col && r.Col <= m.End.Col
}

// Anchor returns the top-left cell of the range.
func (m MergeRange) Anchor() CellRef {
	return m.Start
}

// IsAnchor reports whether r is the anchor cell of the range.
func (m MergeRange) IsAnchor(r CellRef) bool {
	return r == m.Start
}

// Ref returns the range in "A1:D3" form.
func (m MergeRange) Ref() string {
	return m.Start.Name() + ":" + m.End.Name()
}

// RowSpan returns the number of rows covered by the range.
func (m MergeRange) RowSpan() int {
	return m.End.Row - m.Start.Row + 1
}

// ColSpan returns the number of columns covered by the range.
func (m MergeRange) ColSpan() int {
	return m.End.Col - m.Start.Col + 1
}

// ParseMergeRange parses a range in "A1:D3" form. A single reference like
// "B2" is accepted as a degenerate one-cell range.
func ParseMergeRange(ref string) (MergeRange, error) {
	parts := strings.SplitN(ref, ":", 2)
	start, err := ParseCellRef(parts[0])
	if err != nil {
		return MergeRange{}, err
	}
	end := start
	if len(parts) == 2 {
		end, err = ParseCellRef(parts[1])
		if err != nil {
			return MergeRange{}, err
		}
	}
	m := MergeRange{Start: start, End: end}
	if !m.Valid() {
		return MergeRange{}, fmt.Errorf("invalid merge range %q", ref)
	}
	return m, nil
}
