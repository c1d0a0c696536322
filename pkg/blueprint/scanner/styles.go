package scanner

import (
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/exportdocs/blueprint/pkg/blueprint/models"
	"github.com/exportdocs/blueprint/pkg/blueprint/rules"
)

// builtinNumFmts covers the built-in format codes the pipeline cares about;
// everything else is either General or comes through as a custom format.
var builtinNumFmts = map[int]string{
	1:  "0",
	2:  "0.00",
	3:  "#,##0",
	4:  "#,##0.00",
	9:  "0%",
	10: "0.00%",
	49: "@",
}

// StyleAt resolves the full style of a cell. Lookup failures collapse to the
// zero style, which means "inherit sheet default".
func StyleAt(f *excelize.File, sheet string, row, col int) models.CellStyle {
	cell := models.CellRef{Row: row, Col: col}.Name()
	idx, err := f.GetCellStyle(sheet, cell)
	if err != nil {
		return models.CellStyle{}
	}
	style, err := f.GetStyle(idx)
	if err != nil || style == nil {
		return models.CellStyle{}
	}

	out := models.CellStyle{}
	if style.Font != nil {
		out.Font = &models.FontStyle{
			Name:   style.Font.Family,
			Size:   style.Font.Size,
			Bold:   style.Font.Bold,
			Italic: style.Font.Italic,
			Color:  style.Font.Color,
		}
	}
	if style.Alignment != nil {
		out.Horizontal = style.Alignment.Horizontal
		out.Vertical = style.Alignment.Vertical
		out.WrapText = style.Alignment.WrapText
	}
	if style.CustomNumFmt != nil {
		out.NumberFormat = *style.CustomNumFmt
	} else if fmtStr, ok := builtinNumFmts[style.NumFmt]; ok {
		out.NumberFormat = fmtStr
	}
	if style.Fill.Type == "pattern" && len(style.Fill.Color) > 0 {
		out.FillColor = style.Fill.Color[0]
	}
	if len(style.Border) > 0 {
		edges := models.BorderEdges{}
		for _, b := range style.Border {
			name := borderStyleName(b.Style)
			switch b.Type {
			case "left":
				edges.Left = name
			case "right":
				edges.Right = name
			case "top":
				edges.Top = name
			case "bottom":
				edges.Bottom = name
			}
		}
		if edges != (models.BorderEdges{}) {
			out.Border = &edges
		}
	}
	return out
}

// borderStyleName maps excelize border style indexes to names. Only the
// styles templates actually use are distinguished; the rest report "thin".
func borderStyleName(style int) string {
	switch style {
	case 0:
		return ""
	case 2:
		return "medium"
	case 5:
		return "thick"
	case 6:
		return "double"
	default:
		return "thin"
	}
}

// fontAt extracts the font of a cell with sensible fallbacks for blank
// templates.
func (s *Scanner) fontAt(f *excelize.File, sheet string, row, col int) models.FontStyle {
	style := StyleAt(f, sheet, row, col)
	font := models.FontStyle{Name: "Times New Roman", Size: 12}
	if style.Font != nil {
		if style.Font.Name != "" {
			font.Name = style.Font.Name
		}
		if style.Font.Size > 0 {
			font.Size = style.Font.Size
		}
		font.Bold = style.Font.Bold
		font.Italic = style.Font.Italic
	}
	return font
}

// numberFormatAt returns the number format string of a cell, or "".
func (s *Scanner) numberFormatAt(f *excelize.File, sheet string, row, col int) string {
	return StyleAt(f, sheet, row, col).NumberFormat
}

// rowHeights determines header/data/footer heights. Explicit heights win;
// rows reporting the generic sheet default degrade to the standard height
// table for the data source rather than failing the scan.
func (s *Scanner) rowHeights(f *excelize.File, sheet string, headerRow, dataStart int,
	dataSource string, maxRow int) models.RowHeights {

	standard, ok := rules.StandardRowHeights[dataSource]
	if !ok {
		standard = rules.StandardRowHeights["dataset_default"]
	}

	explicit := func(row int) (float64, bool) {
		h, err := f.GetRowHeight(sheet, row)
		if err != nil || h <= 0 || h == defaultRowHeight {
			return 0, false
		}
		return h, true
	}

	heights := models.RowHeights{
		Header: standard.Header,
		Data:   standard.Data,
		Footer: standard.Footer,
	}
	if h, ok := explicit(headerRow); ok {
		heights.Header = h
		heights.Footer = h
	} else {
		s.logger.Warn("no explicit header row height, using standard fallback",
			"sheet", sheet, "row", headerRow, "height", standard.Header)
	}

	// Median of the first few data rows smooths over a single odd row.
	var sampled []float64
	end := dataStart + 10
	if end > maxRow+1 {
		end = maxRow + 1
	}
	for row := dataStart; row < end; row++ {
		if h, ok := explicit(row); ok {
			sampled = append(sampled, h)
		}
	}
	if len(sampled) > 0 {
		sort.Float64s(sampled)
		heights.Data = sampled[len(sampled)/2]
	}
	return heights
}

// staticHints samples static marker content: the values of a "Mark & Nº"
// column just below the header, and a leather description fallback two rows
// under the header.
func (s *Scanner) staticHints(grid [][]string, headerRow int, columns []models.ColumnInfo) map[string][]string {
	hints := map[string][]string{}

	for _, col := range columns {
		if col.ID != "col_static" {
			continue
		}
		var values []string
		seen := map[string]bool{}
		for row := headerRow + 1; row <= headerRow+4 && row <= len(grid); row++ {
			value := cellAt(grid, row, col.Index)
			if value != "" && !seen[value] {
				seen[value] = true
				values = append(values, value)
			}
		}
		if len(values) > 0 {
			hints[col.ID] = values
		}
	}

	for _, col := range columns {
		if col.ID != "col_desc" {
			continue
		}
		value := strings.ToUpper(cellAt(grid, headerRow+2, col.Index))
		if strings.Contains(value, "COW") || strings.Contains(value, "LEATHER") {
			hints["description_fallback"] = []string{value}
		}
	}

	if len(hints) == 0 {
		return nil
	}
	return hints
}

// captureLayout records everything strictly above the header band (the
// metadata area) plus the column widths: content, styles, merges and row
// heights. The sanitizer and the renderer both consume this record.
func (s *Scanner) captureLayout(f *excelize.File, sheet string, grid [][]string,
	merges []models.MergeRange, headerRow int) *models.SheetLayout {

	layout := models.NewSheetLayout()
	cols := gridCols(grid)

	for col := 1; col <= cols; col++ {
		letter := models.ColumnLetters(col)
		if w, err := f.GetColWidth(sheet, letter); err == nil && w > 0 {
			layout.ColWidths[letter] = w
		}
	}

	for _, m := range merges {
		if m.End.Row < headerRow {
			layout.HeaderMerges = append(layout.HeaderMerges, m.Ref())
		}
	}

	for row := 1; row < headerRow; row++ {
		if h, err := f.GetRowHeight(sheet, row); err == nil && h > 0 && h != defaultRowHeight {
			layout.HeaderRowHeights[row] = h
		}
		for col := 1; col <= cols; col++ {
			ref := models.CellRef{Row: row, Col: col}
			if value := cellAt(grid, row, col); value != "" {
				layout.HeaderContent[ref.Name()] = value
			}
			if style := StyleAt(f, sheet, row, col); !style.IsZero() {
				layout.HeaderStyles[ref.Name()] = style
			}
		}
	}
	return layout
}
