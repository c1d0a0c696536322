package scanner

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/exportdocs/blueprint/pkg/blueprint/models"
	"github.com/exportdocs/blueprint/pkg/blueprint/rules"
)

// maxFormatSampleRows bounds how many data rows are sampled when deriving a
// column's number format from existing data.
const maxFormatSampleRows = 10

// analyzeColumns walks the header band and builds a ColumnInfo per column.
// Cells covered by a merge inherit the anchor's text; columns swallowed by a
// colspan are not emitted twice.
func (s *Scanner) analyzeColumns(f *excelize.File, sheet string, grid [][]string,
	merges []models.MergeRange, headerRow int) ([]models.ColumnInfo, error) {

	var headerMerges []models.MergeRange
	for _, m := range merges {
		if m.Start.Row <= headerRow && headerRow <= m.End.Row {
			headerMerges = append(headerMerges, m)
		}
	}

	cols := gridCols(grid)
	processed := map[int]bool{}
	var out []models.ColumnInfo

	for col := 1; col <= cols; col++ {
		if processed[col] {
			continue
		}

		value := cellAt(grid, headerRow, col)
		if value == "" {
			for _, m := range headerMerges {
				if m.Start.Col <= col && col <= m.End.Col {
					value = cellAt(grid, m.Start.Row, m.Start.Col)
					break
				}
			}
		}
		if value == "" {
			continue
		}

		id := s.columnID(value, col)

		width, err := f.GetColWidth(sheet, models.ColumnLetters(col))
		if err != nil || width <= 0 {
			width = fallbackColWidth
		}

		colSpan, rowSpan := 1, 1
		for _, m := range headerMerges {
			if m.Start.Col == col && m.Start.Row == headerRow {
				colSpan = m.ColSpan()
				rowSpan = m.RowSpan()
				for c := m.Start.Col; c <= m.End.Col; c++ {
					processed[c] = true
				}
				break
			}
		}

		format := s.sampleColumnFormat(f, sheet, grid, col, headerRow+1)
		if format == "" {
			format = rules.FormatFor(id)
		}

		style := StyleAt(f, sheet, headerRow, col)
		alignment := style.Horizontal
		if alignment == "" {
			alignment = "center"
		}

		column := models.ColumnInfo{
			ID:        id,
			Header:    value,
			Index:     col,
			Width:     width,
			Format:    format,
			Alignment: alignment,
			RowSpan:   rowSpan,
			ColSpan:   colSpan,
			WrapText:  style.WrapText,
		}

		if rowSpan == 1 && colSpan > 1 {
			column.Children = s.childColumns(f, sheet, grid, headerRow+1, col, colSpan)
		}

		out = append(out, column)
		processed[col] = true
	}
	return out, nil
}

// childColumns collects sub-headers sitting on the row below a colspan>1
// parent.
func (s *Scanner) childColumns(f *excelize.File, sheet string, grid [][]string,
	row, startCol, span int) []models.ColumnInfo {

	var children []models.ColumnInfo
	for col := startCol; col < startCol+span; col++ {
		value := cellAt(grid, row, col)
		if value == "" {
			continue
		}
		id := s.columnID(value, col)
		width, err := f.GetColWidth(sheet, models.ColumnLetters(col))
		if err != nil || width <= 0 {
			width = fallbackColWidth
		}
		children = append(children, models.ColumnInfo{
			ID:     id,
			Header: value,
			Index:  col,
			Width:  width,
			Format: rules.FormatFor(id),
		})
	}
	return children
}

// columnID resolves a header text to a system identifier: operator mappings
// first, then the vocabulary. Headers that match neither stay unknown;
// identifiers are never invented from header text, the operator must map
// them explicitly.
func (s *Scanner) columnID(headerText string, col int) string {
	text := strings.TrimSpace(headerText)
	if id, ok := s.Mappings[text]; ok {
		return id
	}
	for header, id := range s.Mappings {
		if strings.EqualFold(header, text) {
			return id
		}
	}
	if def := rules.MatchKeyword(text); def != nil {
		return def.ID
	}
	return fmt.Sprintf("col_unknown_%d", col)
}

// sampleColumnFormat inspects the first data rows of a column and returns
// the most common explicit number format, or "" when the data carries none.
func (s *Scanner) sampleColumnFormat(f *excelize.File, sheet string, grid [][]string,
	col, startRow int) string {

	counts := map[string]int{}
	end := startRow + maxFormatSampleRows
	if end > len(grid)+1 {
		end = len(grid) + 1
	}
	for row := startRow; row < end; row++ {
		if cellAt(grid, row, col) == "" {
			continue
		}
		format := s.numberFormatAt(f, sheet, row, col)
		if format != "" && format != "General" {
			counts[format]++
		}
	}

	best, bestCount := "", 0
	for format, count := range counts {
		if count > bestCount || (count == bestCount && format < best) {
			best, bestCount = format, count
		}
	}
	return best
}
