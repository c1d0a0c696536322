// Package scanner reads a raw workbook and discovers its layout: the header
// band per sheet, column identities, merges, styling and row geometry.
package scanner

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/exportdocs/blueprint/pkg/blueprint/models"
	"github.com/exportdocs/blueprint/pkg/blueprint/rules"
)

const (
	// maxScanRows bounds the header band search.
	maxScanRows = 15
	// minKeywordMatches is the threshold a row must clear to count as a
	// header band. Below it the structural fallback takes over.
	minKeywordMatches = 3
	// structuralWidthTolerance admits rows slightly narrower than the
	// widest candidate during structural fallback.
	structuralWidthTolerance = 2
	// fallbackColWidth is the last-resort column width.
	fallbackColWidth = 10.0
	// defaultRowHeight is the generic sheet default; rows reporting it are
	// treated as having no explicit height.
	defaultRowHeight = 15.0
)

var numericPattern = regexp.MustCompile(`^-?\d+(\.\d+)?$`)

// ErrNoHeaderBand is returned when no sheet of a workbook yields a header
// band, not even through the degraded fallbacks.
var ErrNoHeaderBand = errors.New("no header band detected")

// Scanner analyzes workbooks. Mappings are operator-confirmed header text to
// system identifier bindings applied before the built-in vocabulary.
type Scanner struct {
	Mappings models.ColumnMapping
	logger   *slog.Logger
}

// New returns a Scanner that honors the given confirmed mappings.
func New(mappings models.ColumnMapping) *Scanner {
	return &Scanner{
		Mappings: mappings,
		logger:   slog.With("component", "scanner"),
	}
}

// Scan analyzes every sheet of the workbook at path. Sheets where no header
// band can be found are skipped; if that leaves nothing, the first sheet is
// admitted through a degraded first-row fallback so a bundle can still be
// built. The customer code defaults to the upper-cased file stem.
func (s *Scanner) Scan(path string) (*models.WorkbookAnalysis, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	analysis := &models.WorkbookAnalysis{
		FilePath:     path,
		CustomerCode: strings.ToUpper(stem),
	}

	sheetList := f.GetSheetList()
	for _, name := range sheetList {
		sheet, err := s.analyzeSheet(f, name)
		if err != nil {
			s.logger.Warn("sheet analysis failed, skipping", "sheet", name, "error", err)
			continue
		}
		if sheet == nil {
			continue
		}
		analysis.Sheets = append(analysis.Sheets, *sheet)
	}

	if len(analysis.Sheets) == 0 && len(sheetList) > 0 {
		s.logger.Warn("no header band detected on any sheet, using first-sheet fallback",
			"sheet", sheetList[0])
		sheet, err := s.fallbackAnalysis(f, sheetList[0])
		if err != nil {
			return nil, fmt.Errorf("fallback analysis of %s: %w", sheetList[0], err)
		}
		analysis.Sheets = append(analysis.Sheets, *sheet)
	}
	if len(analysis.Sheets) == 0 {
		return nil, fmt.Errorf("%w in workbook %s", ErrNoHeaderBand, path)
	}
	return analysis, nil
}

// analyzeSheet produces the SheetAnalysis for one sheet, or nil when no
// header band can be located.
func (s *Scanner) analyzeSheet(f *excelize.File, name string) (*models.SheetAnalysis, error) {
	grid, err := f.GetRows(name)
	if err != nil {
		return nil, err
	}
	merges, err := sheetMerges(f, name)
	if err != nil {
		return nil, err
	}

	headerRow, fallback := s.findHeaderRow(grid)
	if headerRow == 0 {
		return nil, nil
	}
	s.logger.Info("header band located", "sheet", name, "row", headerRow, "fallback", fallback)

	columns, err := s.analyzeColumns(f, name, grid, merges, headerRow)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(columns))
	for _, col := range columns {
		ids = append(ids, col.ID)
	}
	dataSource := rules.ClassifySheet(name, ids)

	multiRow, dataStart := dataStartRow(merges, headerRow)

	sheet := &models.SheetAnalysis{
		Name:           name,
		HeaderRow:      headerRow,
		Columns:        columns,
		DataSource:     dataSource,
		MultiRowHeader: multiRow,
		DataStartRow:   dataStart,
		HeaderFont:     s.fontAt(f, name, headerRow, 1),
		DataFont:       s.fontAt(f, name, dataStart, 1),
		Heights:        s.rowHeights(f, name, headerRow, dataStart, dataSource, len(grid)),
		StaticHints:    s.staticHints(grid, headerRow, columns),
		Fallback:       fallback,
	}
	sheet.Layout = s.captureLayout(f, name, grid, merges, headerRow)
	return sheet, nil
}

// findHeaderRow scans the top of the grid for the row that best matches the
// column vocabulary. A row needs at least minKeywordMatches hits; rows are
// then ranked by text-cell count, match count, and finally topmost position.
// When no row clears the threshold the structural fallback runs; its result
// is flagged so callers know detection degraded.
func (s *Scanner) findHeaderRow(grid [][]string) (row int, fallback bool) {
	limit := len(grid)
	if limit > maxScanRows {
		limit = maxScanRows
	}

	bestRow, bestText, bestMatches := 0, 0, 0
	for r := 1; r <= limit; r++ {
		textCount, matches := 0, 0
		for _, raw := range grid[r-1] {
			value := strings.TrimSpace(raw)
			if value == "" {
				continue
			}
			textCount++
			if s.matchesVocabulary(value) {
				matches++
			}
		}
		if matches < minKeywordMatches {
			continue
		}
		if bestRow == 0 || textCount > bestText || (textCount == bestText && matches > bestMatches) {
			bestRow, bestText, bestMatches = r, textCount, matches
		}
	}
	if bestRow != 0 {
		return bestRow, false
	}
	return s.findHeaderRowStructural(grid), true
}

// matchesVocabulary reports whether value is a confirmed operator mapping or
// an exact vocabulary keyword.
func (s *Scanner) matchesVocabulary(value string) bool {
	for header := range s.Mappings {
		if strings.EqualFold(header, value) {
			return true
		}
	}
	return rules.MatchKeyword(value) != nil
}

// findHeaderRowStructural is the legacy fallback: pick the widest text-heavy
// row. Rows that are mostly numeric are data, not headers.
func (s *Scanner) findHeaderRowStructural(grid [][]string) int {
	type candidate struct {
		row, maxCol, cells int
	}
	limit := len(grid)
	if limit > maxScanRows {
		limit = maxScanRows
	}

	var candidates []candidate
	for r := 1; r <= limit; r++ {
		cells, maxCol, numeric := 0, 0, 0
		for c, raw := range grid[r-1] {
			value := strings.TrimSpace(raw)
			if value == "" {
				continue
			}
			cells++
			maxCol = c + 1
			if numericPattern.MatchString(value) {
				numeric++
			}
		}
		if cells == 0 {
			continue
		}
		if float64(numeric)/float64(cells) > 0.3 {
			continue
		}
		candidates = append(candidates, candidate{row: r, maxCol: maxCol, cells: cells})
	}
	if len(candidates) == 0 {
		return 0
	}

	maxWidth := 0
	for _, c := range candidates {
		if c.maxCol > maxWidth {
			maxWidth = c.maxCol
		}
	}
	best := candidate{}
	for _, c := range candidates {
		if c.maxCol < maxWidth-structuralWidthTolerance {
			continue
		}
		if best.row == 0 || c.cells > best.cells {
			best = c
		}
	}
	if best.row == 0 {
		best = candidates[0]
	}
	s.logger.Info("structural fallback selected header row", "row", best.row, "cells", best.cells)
	return best.row
}

// fallbackAnalysis admits the first sheet with its first non-empty row as a
// degraded header band. Every column comes out unknown, so rendering falls
// back to defaults, but a bundle can still be produced.
func (s *Scanner) fallbackAnalysis(f *excelize.File, name string) (*models.SheetAnalysis, error) {
	grid, err := f.GetRows(name)
	if err != nil {
		return nil, err
	}
	merges, err := sheetMerges(f, name)
	if err != nil {
		return nil, err
	}

	headerRow := 1
scan:
	for r, cells := range grid {
		for _, raw := range cells {
			if strings.TrimSpace(raw) != "" {
				headerRow = r + 1
				break scan
			}
		}
	}

	columns, err := s.analyzeColumns(f, name, grid, merges, headerRow)
	if err != nil {
		return nil, err
	}
	_, dataStart := dataStartRow(merges, headerRow)
	sheet := &models.SheetAnalysis{
		Name:         name,
		HeaderRow:    headerRow,
		Columns:      columns,
		DataSource:   rules.ClassifySheet(name, nil),
		DataStartRow: dataStart,
		HeaderFont:   s.fontAt(f, name, headerRow, 1),
		DataFont:     s.fontAt(f, name, dataStart, 1),
		Heights:      s.rowHeights(f, name, headerRow, dataStart, rules.ClassifySheet(name, nil), len(grid)),
		Fallback:     true,
	}
	sheet.Layout = s.captureLayout(f, name, grid, merges, headerRow)
	return sheet, nil
}

// dataStartRow returns whether the header spans multiple rows and the first
// data row, which sits past the deepest merge anchored at the header row.
func dataStartRow(merges []models.MergeRange, headerRow int) (multiRow bool, start int) {
	start = headerRow + 1
	for _, m := range merges {
		if m.Start.Row == headerRow && m.End.Row > headerRow {
			multiRow = true
			if m.End.Row+1 > start {
				start = m.End.Row + 1
			}
		}
	}
	return multiRow, start
}

// sheetMerges reads the merged ranges of a sheet into model form.
func sheetMerges(f *excelize.File, sheet string) ([]models.MergeRange, error) {
	raw, err := f.GetMergeCells(sheet)
	if err != nil {
		return nil, err
	}
	out := make([]models.MergeRange, 0, len(raw))
	for _, mc := range raw {
		m, err := models.ParseMergeRange(mc.GetStartAxis() + ":" + mc.GetEndAxis())
		if err != nil {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

// cellAt returns the trimmed value of a cell from a GetRows grid, tolerating
// the ragged row lengths excelize produces.
func cellAt(grid [][]string, row, col int) string {
	if row < 1 || row > len(grid) {
		return ""
	}
	cells := grid[row-1]
	if col < 1 || col > len(cells) {
		return ""
	}
	return strings.TrimSpace(cells[col-1])
}

// gridCols returns the widest row length of the grid.
func gridCols(grid [][]string) int {
	cols := 0
	for _, row := range grid {
		if len(row) > cols {
			cols = len(row)
		}
	}
	return cols
}
