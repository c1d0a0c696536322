// Package sanitizer turns a populated customer workbook into a blank,
// reusable template: data rows go, headers, footers, merges, widths and
// styling stay.
//
// Sanitization is best-effort by contract. Whatever goes wrong, the build
// must still get a template, so every failure falls back to a byte-exact
// copy of the original file; the failure is logged and recorded on the
// result so an operator can spot a template that still carries stale data.
package sanitizer

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/exportdocs/blueprint/pkg/blueprint/models"
	"github.com/exportdocs/blueprint/pkg/blueprint/scanner"
)

// footerScanCols bounds how many columns the footer search inspects.
const footerScanCols = 20

// Placeholder tokens injected next to metadata labels above the header band.
// The invoice renderer substitutes them at generation time.
const (
	PlaceholderInvoice = "JFINV"
	PlaceholderDate    = "JFTIME"
	PlaceholderRef     = "JFREF"
)

// Result reports what sanitization produced.
type Result struct {
	// TemplatePath is where the template was written.
	TemplatePath string
	// Fallback is true when sanitization failed and TemplatePath holds an
	// unmodified copy of the source file.
	Fallback bool
	// FallbackReason carries the failure that triggered the fallback.
	FallbackReason string
}

// Sanitizer cleans workbooks guided by a scan analysis.
type Sanitizer struct {
	logger *slog.Logger
}

// New returns a ready Sanitizer.
func New() *Sanitizer {
	return &Sanitizer{logger: slog.With("component", "sanitizer")}
}

// Sanitize writes a blank template for srcPath to destPath. The analysis
// tells it where each sheet's header band sits and receives the captured
// footer layout as a side effect. The returned error is non-nil only when
// even the fallback copy could not be written; sanitization failures
// themselves degrade to the fallback and never abort a build.
func (s *Sanitizer) Sanitize(srcPath string, analysis *models.WorkbookAnalysis, destPath string) (*Result, error) {
	if err := s.sanitize(srcPath, analysis, destPath); err != nil {
		s.logger.Warn("sanitization failed, falling back to original file as template",
			"source", srcPath, "error", err)
		if copyErr := copyFile(srcPath, destPath); copyErr != nil {
			return nil, copyErr
		}
		return &Result{
			TemplatePath:   destPath,
			Fallback:       true,
			FallbackReason: err.Error(),
		}, nil
	}
	return &Result{TemplatePath: destPath}, nil
}

func (s *Sanitizer) sanitize(srcPath string, analysis *models.WorkbookAnalysis, destPath string) error {
	f, err := excelize.OpenFile(srcPath)
	if err != nil {
		return err
	}
	defer f.Close()

	for i := range analysis.Sheets {
		sheet := &analysis.Sheets[i]
		if err := s.cleanSheet(f, sheet); err != nil {
			return err
		}
	}
	return f.SaveAs(destPath)
}

// cleanSheet strips the table body of one sheet. The original table runs
// from the header band to the total row inclusive; everything below it (the
// signature block) shifts up and is captured into the sheet layout at its
// shifted coordinates. Sheets without a detectable total row are treated as
// static forms and left intact.
func (s *Sanitizer) cleanSheet(f *excelize.File, sheet *models.SheetAnalysis) error {
	grid, err := f.GetRows(sheet.Name)
	if err != nil {
		return err
	}
	maxRow := len(grid)
	layout := sheet.Layout
	if layout == nil {
		layout = models.NewSheetLayout()
		sheet.Layout = layout
	}

	searchStart := sheet.DataStartRow
	if searchStart <= sheet.HeaderRow {
		searchStart = sheet.HeaderRow + 1
	}
	footerStart := s.findFooterStart(f, sheet.Name, grid, searchStart)
	if footerStart == 0 {
		s.logger.Warn("no footer detected, preserving sheet as static form", "sheet", sheet.Name)
		s.injectPlaceholders(f, sheet.Name, grid, sheet.HeaderRow)
		return nil
	}

	deleteStart := sheet.HeaderRow
	rowsToDelete := footerStart - deleteStart + 1
	if rowsToDelete <= 0 {
		return nil
	}
	s.logger.Info("stripping table body",
		"sheet", sheet.Name, "from", deleteStart, "to", footerStart, "rows", rowsToDelete)

	// Capture the signature area below the total row before indices move,
	// keyed by where each cell lands after the shift.
	for row := footerStart + 1; row <= maxRow; row++ {
		shifted := row - rowsToDelete
		if shifted < 1 {
			continue
		}
		if h, err := f.GetRowHeight(sheet.Name, row); err == nil && h > 0 {
			layout.FooterRowHeights[shifted] = h
		}
		for col := 1; col <= len(grid[row-1]); col++ {
			value := strings.TrimSpace(grid[row-1][col-1])
			ref := models.CellRef{Row: shifted, Col: col}.Name()
			if value != "" {
				layout.FooterContent[ref] = value
			}
			if style := scanner.StyleAt(f, sheet.Name, row, col); !style.IsZero() {
				layout.FooterStyles[ref] = style
			}
		}
	}

	// Merges overlapping the deletion zone would survive as ghost ranges
	// after the rows under them vanish, so they are dissolved first. Ranges
	// below the zone are left alone; RemoveRow shifts them up intact.
	merges, err := f.GetMergeCells(sheet.Name)
	if err != nil {
		return err
	}
	for _, mc := range merges {
		m, err := models.ParseMergeRange(mc.GetStartAxis() + ":" + mc.GetEndAxis())
		if err != nil {
			continue
		}
		if m.Start.Row <= footerStart && m.End.Row >= deleteStart {
			if err := f.UnmergeCell(sheet.Name, m.Start.Name(), m.End.Name()); err != nil {
				return err
			}
		}
	}

	for i := 0; i < rowsToDelete; i++ {
		if err := f.RemoveRow(sheet.Name, deleteStart); err != nil {
			return err
		}
	}

	// Record the footer merges at their post-shift coordinates.
	merges, err = f.GetMergeCells(sheet.Name)
	if err != nil {
		return err
	}
	for _, mc := range merges {
		m, err := models.ParseMergeRange(mc.GetStartAxis() + ":" + mc.GetEndAxis())
		if err != nil {
			continue
		}
		if m.Start.Row >= deleteStart {
			layout.FooterMerges = append(layout.FooterMerges, m.Ref())
		}
	}

	s.injectPlaceholders(f, sheet.Name, grid, sheet.HeaderRow)
	return nil
}

// findFooterStart locates the total row by scanning bottom-up, stopping at
// the first data row so a table with no data rows at all still resolves.
// A row with a "total" label and a SUM formula is a certain
// hit; failing that, the lowest row with just the label is taken, which is
// usually the grand total.
func (s *Sanitizer) findFooterStart(f *excelize.File, sheet string, grid [][]string, searchStart int) int {
	best := 0
	for row := len(grid); row >= searchStart; row-- {
		hasTotal, hasSum := false, false
		cols := len(grid[row-1])
		if cols > footerScanCols {
			cols = footerScanCols
		}
		for col := 1; col <= cols; col++ {
			value := strings.TrimSpace(grid[row-1][col-1])
			if value == "" {
				continue
			}
			if strings.Contains(strings.ToLower(value), "total") {
				hasTotal = true
			}
			cell := models.CellRef{Row: row, Col: col}.Name()
			if formula, err := f.GetCellFormula(sheet, cell); err == nil &&
				strings.HasPrefix(strings.ToUpper(formula), "SUM") {
				hasSum = true
			}
		}
		if hasTotal && hasSum {
			return row
		}
		if hasTotal && best == 0 {
			best = row
		}
	}
	if best != 0 {
		s.logger.Warn("strict footer detection failed, using relaxed total match",
			"sheet", sheet, "row", best)
	}
	return best
}

// injectPlaceholders scans the metadata area above the header band for
// labels like "Invoice No" or "Date:" and writes the renderer's placeholder
// token into the cell to their right.
func (s *Sanitizer) injectPlaceholders(f *excelize.File, sheet string, grid [][]string, headerRow int) {
	injected := map[string]bool{}
	for row := 1; row < headerRow && row <= len(grid); row++ {
		cols := len(grid[row-1])
		if cols > 15 {
			cols = 15
		}
		for col := 1; col <= cols; col++ {
			value := strings.TrimSpace(grid[row-1][col-1])
			if value == "" || strings.HasPrefix(strings.ToUpper(value), "JF") {
				continue
			}
			placeholder := classifyLabel(value)
			if placeholder == "" {
				continue
			}
			target := models.CellRef{Row: row, Col: col + 1}.Name()
			if injected[target] {
				continue
			}
			current, _ := f.GetCellValue(sheet, target)
			if strings.HasPrefix(strings.ToUpper(strings.TrimSpace(current)), "JF") {
				continue
			}
			s.logger.Info("injecting placeholder",
				"sheet", sheet, "label", value, "cell", target, "placeholder", placeholder)
			if err := f.SetCellValue(sheet, target, placeholder); err == nil {
				injected[target] = true
			}
		}
	}
}

// classifyLabel maps a metadata label to its placeholder token, or "".
// Matching is deliberately restrictive for date and reference labels so
// long strings like "Shipping Date Agreement" or addresses do not trigger
// an injection.
func classifyLabel(value string) string {
	lower := strings.ToLower(strings.TrimSpace(value))
	clean := strings.TrimSpace(strings.TrimRight(lower, ":."))
	normalized := strings.Join(strings.Fields(strings.ReplaceAll(clean, ".", " ")), " ")

	switch {
	case strings.Contains(normalized, "invoice no"),
		strings.Contains(normalized, "inv no"),
		normalized == "inv":
		return PlaceholderInvoice
	case strings.Contains(clean, "date") && len(clean) < 15:
		return PlaceholderDate
	case len(clean) < 15 && (strings.Contains(normalized, "ref no") ||
		strings.Contains(normalized, "ref num") ||
		normalized == "ref" || normalized == "reference" ||
		(strings.HasSuffix(clean, "ref") && len(clean) < 10) ||
		(strings.Contains(clean, "ref") && (strings.Contains(clean, "inv") || strings.Contains(clean, "cust")))):
		return PlaceholderRef
	}
	return ""
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
