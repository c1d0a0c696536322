package scanner

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/exportdocs/blueprint/pkg/blueprint/models"
)

// packingListFile fabricates a typical customer packing list: two metadata
// rows, a header band at row 3 with one unrecognized column, three data rows
// and a totals row.
func packingListFile(t *testing.T) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetName("Sheet1", "PACKING LIST"))

	sheet := "PACKING LIST"
	f.SetCellValue(sheet, "A1", "SHIPPER: ACME LEATHER CO")
	f.SetCellValue(sheet, "A2", "INVOICE NO.:")

	headers := []string{"P.O Nº", "ITEM Nº", "Description", "PCS", "Unknown1"}
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 3)
		require.NoError(t, err)
		f.SetCellValue(sheet, cell, h)
	}
	for r := 4; r <= 6; r++ {
		f.SetCellValue(sheet, "A"+itoa(r), "PO-100")
		f.SetCellValue(sheet, "B"+itoa(r), "ITM-9")
		f.SetCellValue(sheet, "C"+itoa(r), "BLUE LEATHER")
		f.SetCellValue(sheet, "D"+itoa(r), 120)
		f.SetCellValue(sheet, "E"+itoa(r), "x")
	}
	f.SetCellValue(sheet, "A8", "TOTAL:")
	f.SetCellValue(sheet, "D8", 360)

	path := filepath.Join(t.TempDir(), "jf25058.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func itoa(n int) string {
	cell, _ := excelize.CoordinatesToCellName(1, n)
	return cell[1:]
}

func TestScanFindsHeaderBand(t *testing.T) {
	path := packingListFile(t)

	analysis, err := New(nil).Scan(path)
	require.NoError(t, err)

	assert.Equal(t, "JF25058", analysis.CustomerCode)
	require.Len(t, analysis.Sheets, 1)

	sheet := analysis.Sheets[0]
	assert.Equal(t, 3, sheet.HeaderRow)
	assert.False(t, sheet.Fallback)
	assert.False(t, sheet.MultiRowHeader)
	assert.Equal(t, 4, sheet.DataStartRow)
	assert.Equal(t, models.SourceProcessedTables, sheet.DataSource)

	ids := make([]string, len(sheet.Columns))
	for i, col := range sheet.Columns {
		ids[i] = col.ID
	}
	assert.Equal(t, []string{"col_po", "col_item", "col_desc", "col_qty_pcs", "col_unknown_5"}, ids)

	assert.Equal(t, []string{"Unknown1"}, analysis.UnknownHeaders())
}

func TestScanAppliesConfirmedMappings(t *testing.T) {
	path := packingListFile(t)

	mapping := models.ColumnMapping{"Unknown1": "col_remarks"}
	analysis, err := New(mapping).Scan(path)
	require.NoError(t, err)

	sheet := analysis.Sheets[0]
	assert.Equal(t, "col_remarks", sheet.Columns[4].ID)
	assert.Equal(t, "Unknown1", sheet.Columns[4].Header)
	assert.Empty(t, analysis.UnknownHeaders())
}

func TestScanCapturesMetadataLayout(t *testing.T) {
	path := packingListFile(t)

	analysis, err := New(nil).Scan(path)
	require.NoError(t, err)

	layout := analysis.Sheets[0].Layout
	require.NotNil(t, layout)
	assert.Equal(t, "SHIPPER: ACME LEATHER CO", layout.HeaderContent["A1"])
	assert.Equal(t, "INVOICE NO.:", layout.HeaderContent["A2"])
	// Header band content is not part of the metadata area.
	assert.NotContains(t, layout.HeaderContent, "A3")
}

func TestScanRowHeightFallback(t *testing.T) {
	path := packingListFile(t)

	analysis, err := New(nil).Scan(path)
	require.NoError(t, err)

	// The fixture declares no explicit heights, so the standard table for
	// the data source applies.
	heights := analysis.Sheets[0].Heights
	assert.Equal(t, 27.0, heights.Header)
	assert.Equal(t, 27.0, heights.Data)
	assert.Equal(t, 27.0, heights.Footer)
}

func TestScanDescriptionFallbackHint(t *testing.T) {
	path := packingListFile(t)

	analysis, err := New(nil).Scan(path)
	require.NoError(t, err)

	hints := analysis.Sheets[0].StaticHints
	require.Contains(t, hints, "description_fallback")
	assert.Equal(t, []string{"BLUE LEATHER"}, hints["description_fallback"])
}

func TestScanMultiRowHeader(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	sheet := "Sheet1"

	f.SetCellValue(sheet, "A2", "P.O Nº")
	f.SetCellValue(sheet, "B2", "Description")
	f.SetCellValue(sheet, "C2", "Quantity")
	f.SetCellValue(sheet, "C3", "PCS")
	f.SetCellValue(sheet, "D3", "SF")
	require.NoError(t, f.MergeCell(sheet, "A2", "A3"))
	require.NoError(t, f.MergeCell(sheet, "B2", "B3"))
	require.NoError(t, f.MergeCell(sheet, "C2", "D2"))

	path := filepath.Join(t.TempDir(), "multi.xlsx")
	require.NoError(t, f.SaveAs(path))

	analysis, err := New(nil).Scan(path)
	require.NoError(t, err)
	require.Len(t, analysis.Sheets, 1)

	s := analysis.Sheets[0]
	assert.Equal(t, 2, s.HeaderRow)
	assert.True(t, s.MultiRowHeader)
	assert.Equal(t, 4, s.DataStartRow)

	var qty *models.ColumnInfo
	for i := range s.Columns {
		if s.Columns[i].ID == "col_qty_header" {
			qty = &s.Columns[i]
		}
	}
	require.NotNil(t, qty, "quantity super-header not detected")
	assert.Equal(t, 2, qty.ColSpan)
	require.Len(t, qty.Children, 2)
	assert.Equal(t, "col_qty_pcs", qty.Children[0].ID)
	assert.Equal(t, "col_qty_sf", qty.Children[1].ID)
}

func TestScanStructuralFallback(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	sheet := "Sheet1"

	f.SetCellValue(sheet, "A1", "internal form")
	for i, h := range []string{"Alpha", "Beta", "Gamma", "Delta"} {
		cell, err := excelize.CoordinatesToCellName(i+1, 2)
		require.NoError(t, err)
		f.SetCellValue(sheet, cell, h)
	}

	path := filepath.Join(t.TempDir(), "form.xlsx")
	require.NoError(t, f.SaveAs(path))

	analysis, err := New(nil).Scan(path)
	require.NoError(t, err)
	require.Len(t, analysis.Sheets, 1)

	s := analysis.Sheets[0]
	assert.True(t, s.Fallback)
	assert.Equal(t, 2, s.HeaderRow)
	for _, col := range s.Columns {
		assert.True(t, col.Unknown(), "column %q should be unknown", col.Header)
	}
}

func TestScanSkipsNumericRows(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	sheet := "Sheet1"

	// A data-looking row above the real header must not win the
	// structural fallback.
	for i, v := range []int{1, 2, 3, 4} {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		require.NoError(t, err)
		f.SetCellValue(sheet, cell, v)
	}
	for i, h := range []string{"ColA", "ColB", "ColC", "ColD"} {
		cell, err := excelize.CoordinatesToCellName(i+1, 2)
		require.NoError(t, err)
		f.SetCellValue(sheet, cell, h)
	}

	path := filepath.Join(t.TempDir(), "numeric.xlsx")
	require.NoError(t, f.SaveAs(path))

	analysis, err := New(nil).Scan(path)
	require.NoError(t, err)
	assert.Equal(t, 2, analysis.Sheets[0].HeaderRow)
}
