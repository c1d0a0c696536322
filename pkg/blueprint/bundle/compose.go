// Package bundle composes the per-customer configuration, persists bundle
// directories atomically and resolves them back for consumers.
package bundle

import (
	"time"

	"github.com/exportdocs/blueprint/pkg/blueprint/models"
	"github.com/exportdocs/blueprint/pkg/blueprint/rules"
)

// Identifiers that are structural rather than data-bearing; they get no
// data-flow mapping of their own.
var structuralIDs = map[string]bool{
	"col_static":     true,
	"col_qty_header": true,
	"col_no":         true,
}

// defaultFieldMappings carries the built-in data-flow behavior per data
// source: description fallbacks and the computed amount column.
var defaultFieldMappings = map[string]map[string]models.FieldMapping{
	models.SourceAggregation: {
		"col_po":         {},
		"col_item":       {},
		"col_unit_price": {},
		"col_desc":       {FallbackOnNone: "LEATHER", FallbackOnDAF: "LEATHER"},
		"col_qty_sf":     {},
		"col_amount":     {Formula: "{col_qty_sf} * {col_unit_price}"},
	},
	models.SourceProcessedTables: {
		"col_po":      {},
		"col_item":    {},
		"col_desc":    {FallbackOnNone: "LEATHER", FallbackOnDAF: "LEATHER"},
		"col_qty_pcs": {},
		"col_qty_sf":  {},
		"col_net":     {},
		"col_gross":   {},
		"col_cbm":     {},
	},
}

// ComposeConfig assembles the typed bundle config from a workbook analysis.
// Every identifier referenced by the layout ends up with an auto-mapping, a
// confirmed binding or an explicit fallback; nothing dangles.
func ComposeConfig(analysis *models.WorkbookAnalysis, customerCode string) *models.BundleConfig {
	cfg := &models.BundleConfig{
		Meta: models.Meta{
			ConfigVersion:  models.ConfigVersion,
			Customer:       customerCode,
			CreatedAt:      time.Now().Format("2006-01-02"),
			Description:    "Auto-generated master config for " + customerCode,
			SourceTemplate: analysis.FilePath,
			Generator:      "blueprint",
		},
		Processing: models.Processing{
			DataSources: map[string]string{},
			SourceFile:  analysis.FilePath,
		},
		LayoutBundle: map[string]models.SheetLayoutConfig{},
		StylingBundle: models.StylingBundle{
			Defaults: models.StylingDefaults{
				Borders: models.BorderDefaults{
					DefaultBorder: "full_grid",
					DefaultStyle:  "thin",
					Exceptions:    map[string]string{"col_static": "side_only"},
				},
			},
			Sheets: map[string]models.SheetStyling{},
		},
		Defaults: models.Defaults{
			Footer: models.FooterDefaults{
				ShowTotal:       true,
				ShowPalletCount: true,
				TotalText:       "TOTAL:",
				MergeTotalCells: true,
				SumColumns:      []string{"col_qty_pcs", "col_qty_sf", "col_net", "col_gross", "col_cbm"},
			},
		},
	}

	for i := range analysis.Sheets {
		sheet := &analysis.Sheets[i]
		cfg.Processing.Sheets = append(cfg.Processing.Sheets, sheet.Name)
		cfg.Processing.DataSources[sheet.Name] = sheet.DataSource
		cfg.LayoutBundle[sheet.Name] = models.SheetLayoutConfig{
			Structure: composeStructure(sheet),
			DataFlow:  composeDataFlow(sheet),
			Content:   composeContent(sheet),
			Footer:    composeFooter(sheet),
		}
		cfg.StylingBundle.Sheets[sheet.Name] = composeStyling(sheet)
	}
	return cfg
}

func composeStructure(sheet *models.SheetAnalysis) models.Structure {
	structure := models.Structure{HeaderRow: sheet.HeaderRow}
	for _, col := range sheet.Columns {
		sc := models.StructureColumn{ID: col.ID, Header: col.Header}
		if col.Format != "@" {
			sc.Format = col.Format
		}
		if col.RowSpan > 1 {
			sc.RowSpan = col.RowSpan
		}
		if col.ColSpan > 1 {
			sc.ColSpan = col.ColSpan
		}
		for _, child := range col.Children {
			cc := models.StructureColumn{ID: child.ID, Header: child.Header}
			if child.Format != "@" {
				cc.Format = child.Format
			}
			sc.Children = append(sc.Children, cc)
		}
		structure.Columns = append(structure.Columns, sc)
	}
	return structure
}

func composeDataFlow(sheet *models.SheetAnalysis) models.DataFlow {
	flow := models.DataFlow{Mappings: map[string]models.FieldMapping{}}
	defaults := defaultFieldMappings[sheet.DataSource]

	for _, col := range sheet.AllColumns() {
		mapping, isDefault := defaults[col.ID]
		if !isDefault {
			if structuralIDs[col.ID] {
				continue
			}
			mapping = models.FieldMapping{}
		}
		mapping.Header = col.Header

		if col.ID == "col_desc" {
			if hint, ok := sheet.StaticHints["description_fallback"]; ok && len(hint) > 0 {
				mapping.FallbackOnNone = hint[0]
				mapping.FallbackOnDAF = hint[0]
			}
		}

		// Aggregation rows are read positionally downstream, so the mapping
		// carries the 0-based source column index.
		if sheet.DataSource == models.SourceAggregation {
			key := col.Index - 1
			mapping.SourceKey = &key
		}
		flow.Mappings[col.ID] = mapping
	}
	return flow
}

func composeContent(sheet *models.SheetAnalysis) models.Content {
	content := models.Content{Static: map[string][]string{}}
	for hint, values := range sheet.StaticHints {
		if hint == "description_fallback" {
			continue
		}
		content.Static[hint] = values
	}
	if len(content.Static) == 0 {
		for _, col := range sheet.Columns {
			if col.ID == "col_static" {
				content.Static["col_static"] = []string{"VENDOR#:", "Des: LEATHER", "MADE IN CAMBODIA"}
				break
			}
		}
	}
	return content
}

func composeFooter(sheet *models.SheetAnalysis) models.Footer {
	ids := map[string]bool{}
	for _, col := range sheet.AllColumns() {
		ids[col.ID] = true
	}

	totalCol := "col_po"
	if ids["col_no"] {
		totalCol = "col_no"
	}
	palletCol := "col_item"
	if ids["col_desc"] {
		palletCol = "col_desc"
	}

	var sums []string
	for _, id := range rules.DefaultFooterSums[sheet.DataSource] {
		if ids[id] {
			sums = append(sums, id)
		}
	}

	footer := models.Footer{
		TotalTextColumnID:   totalCol,
		TotalText:           "TOTAL OF:",
		PalletCountColumnID: palletCol,
		SumColumnIDs:        sums,
		MergeRules:          []string{},
		AddOns:              map[string]models.FooterAddOn{},
	}

	if sheet.DataSource == models.SourceProcessedTables {
		footer.AddOns["before_footer"] = models.FooterAddOn{
			Enabled:  true,
			ColumnID: "col_po",
			Text:     "LEATHER (HS.CODE: 4107.12.00)",
			Merge:    2,
		}
	} else {
		footer.AddOns["before_footer"] = models.FooterAddOn{
			ColumnID: "col_po",
			Text:     "HS.CODE: 4107.12.00",
		}
	}
	footer.AddOns["weight_summary"] = models.FooterAddOn{
		Enabled:    sheet.DataSource == models.SourceAggregation,
		LabelColID: "col_po",
		ValueColID: "col_item",
		Mode:       []string{"daf", "standard"},
	}
	footer.AddOns["leather_summary"] = models.FooterAddOn{
		Enabled: sheet.DataSource == models.SourceProcessedTables,
		Mode:    []string{"daf", "standard"},
	}
	return footer
}

func composeStyling(sheet *models.SheetAnalysis) models.SheetStyling {
	styling := models.SheetStyling{
		Columns:     map[string]models.ColumnStyle{},
		RowContexts: map[string]models.RowContextStyle{},
	}

	for _, col := range sheet.AllColumns() {
		styling.Columns[col.ID] = models.ColumnStyle{
			Format:    col.Format,
			Alignment: col.Alignment,
			Width:     roundWidth(col.Width),
			WrapText:  col.WrapText,
		}
	}

	styling.RowContexts["header"] = models.RowContextStyle{
		Bold:        true,
		FontSize:    sheet.HeaderFont.Size,
		FontName:    sheet.HeaderFont.Name,
		BorderStyle: "thin",
		RowHeight:   sheet.Heights.Header,
	}
	styling.RowContexts["data"] = models.RowContextStyle{
		FontSize:    sheet.DataFont.Size,
		FontName:    sheet.DataFont.Name,
		BorderStyle: "thin",
		RowHeight:   sheet.Heights.Data,
	}
	styling.RowContexts["footer"] = models.RowContextStyle{
		Bold:        true,
		FontSize:    sheet.HeaderFont.Size,
		FontName:    sheet.HeaderFont.Name,
		BorderStyle: "thin",
		RowHeight:   sheet.Heights.Footer,
	}
	return styling
}

func roundWidth(w float64) float64 {
	return float64(int(w*100+0.5)) / 100
}
