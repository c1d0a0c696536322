package models

import (
	"encoding/json"
	"fmt"
	"os"
)

// ConfigVersion marks the bundle config schema revision.
const ConfigVersion = "2.2_strict_mode"

// Meta identifies a bundle config.
type Meta struct {
	ConfigVersion  string `json:"config_version"`
	Customer       string `json:"customer"`
	CreatedAt      string `json:"created_at"`
	Description    string `json:"description,omitempty"`
	SourceTemplate string `json:"source_template,omitempty"`
	Generator      string `json:"generator,omitempty"`
}

// Processing names the sheets to process and their data sources.
type Processing struct {
	Sheets      []string          `json:"sheets"`
	DataSources map[string]string `json:"data_sources"`
	SourceFile  string            `json:"source_file,omitempty"`
}

// StructureColumn is one column of a sheet's table structure.
type StructureColumn struct {
	ID       string            `json:"id"`
	Header   string            `json:"header"`
	Format   string            `json:"format,omitempty"`
	RowSpan  int               `json:"rowspan,omitempty"`
	ColSpan  int               `json:"colspan,omitempty"`
	Children []StructureColumn `json:"children,omitempty"`
}

// Structure describes where the table sits and which columns it has.
type Structure struct {
	HeaderRow int               `json:"header_row"`
	Columns   []StructureColumn `json:"columns"`
}

// FieldMapping routes a system column identifier to source data.
type FieldMapping struct {
	// Header is the source header text this identifier was bound to.
	Header string `json:"header,omitempty"`
	// SourceKey is the 0-based column index for aggregation sheets, whose
	// rows are read positionally.
	SourceKey *int `json:"source_key,omitempty"`
	// FallbackOnNone is the fixed value used when source data is empty.
	FallbackOnNone string `json:"fallback_on_none,omitempty"`
	// FallbackOnDAF is the fixed value used in the DAF invoice variant.
	FallbackOnDAF string `json:"fallback_on_DAF,omitempty"`
	// Formula computes the value from other fields, e.g.
	// "{col_qty_sf} * {col_unit_price}".
	Formula string `json:"formula,omitempty"`
}

// DataFlow holds the per-identifier mappings for one sheet.
type DataFlow struct {
	Mappings map[string]FieldMapping `json:"mappings"`
}

// Content holds static cell content reproduced on every generated invoice.
type Content struct {
	Static map[string][]string `json:"static"`
}

// FooterAddOn is an optional footer feature toggle.
type FooterAddOn struct {
	Enabled     bool     `json:"enabled"`
	ColumnID    string   `json:"column_id,omitempty"`
	Text        string   `json:"text,omitempty"`
	Merge       int      `json:"merge,omitempty"`
	LabelColID  string   `json:"label_col_id,omitempty"`
	ValueColID  string   `json:"value_col_id,omitempty"`
	Mode        []string `json:"mode,omitempty"`
}

// Footer configures the totals row of a sheet.
type Footer struct {
	TotalTextColumnID   string                 `json:"total_text_column_id"`
	TotalText           string                 `json:"total_text"`
	PalletCountColumnID string                 `json:"pallet_count_column_id,omitempty"`
	SumColumnIDs        []string               `json:"sum_column_ids"`
	MergeRules          []string               `json:"merge_rules"`
	AddOns              map[string]FooterAddOn `json:"add_ons,omitempty"`
}

// SheetLayoutConfig groups the four layout sections of one sheet.
type SheetLayoutConfig struct {
	Structure Structure `json:"structure"`
	DataFlow  DataFlow  `json:"data_flow"`
	Content   Content   `json:"content"`
	Footer    Footer    `json:"footer"`
}

// ColumnStyle is the per-column styling applied to data cells.
type ColumnStyle struct {
	Format    string  `json:"format"`
	Alignment string  `json:"alignment"`
	Width     float64 `json:"width"`
	WrapText  bool    `json:"wrap_text,omitempty"`
}

// RowContextStyle is the styling for a row context (header, data, footer).
type RowContextStyle struct {
	Bold        bool    `json:"bold"`
	FontSize    float64 `json:"font_size"`
	FontName    string  `json:"font_name"`
	BorderStyle string  `json:"border_style"`
	RowHeight   float64 `json:"row_height"`
}

// SheetStyling bundles column and row-context styles of one sheet.
type SheetStyling struct {
	Columns     map[string]ColumnStyle     `json:"columns"`
	RowContexts map[string]RowContextStyle `json:"row_contexts"`
}

// BorderDefaults configures the default table borders.
type BorderDefaults struct {
	DefaultBorder string            `json:"default_border"`
	DefaultStyle  string            `json:"default_style"`
	Exceptions    map[string]string `json:"exceptions,omitempty"`
}

// StylingDefaults holds the styling applied when a sheet supplies none.
type StylingDefaults struct {
	Borders BorderDefaults `json:"borders"`
}

// StylingBundle groups the global styling defaults with per-sheet styling.
type StylingBundle struct {
	Defaults StylingDefaults         `json:"defaults"`
	Sheets   map[string]SheetStyling `json:"sheets"`
}

// FooterDefaults are the global footer toggles.
type FooterDefaults struct {
	ShowTotal       bool     `json:"show_total"`
	ShowPalletCount bool     `json:"show_pallet_count"`
	TotalText       string   `json:"total_text"`
	MergeTotalCells bool     `json:"merge_total_cells"`
	SumColumns      []string `json:"sum_columns"`
}

// Defaults holds the global toggles of a bundle.
type Defaults struct {
	Footer FooterDefaults `json:"footer"`
}

// BundleConfig is the persisted per-customer configuration. It is an
// explicit tagged schema: named, typed sub-sections instead of the
// open-ended nested maps the format grew out of.
type BundleConfig struct {
	Meta          Meta                         `json:"_meta"`
	Processing    Processing                   `json:"processing"`
	LayoutBundle  map[string]SheetLayoutConfig `json:"layout_bundle"`
	StylingBundle StylingBundle                `json:"styling_bundle"`
	Defaults      Defaults                     `json:"defaults"`
}

// Validate checks the config for internal consistency: required meta
// fields, and a layout plus styling entry for every processed sheet with no
// dangling column references in the data flow.
func (c *BundleConfig) Validate() error {
	if c.Meta.ConfigVersion == "" || c.Meta.Customer == "" || c.Meta.CreatedAt == "" {
		return fmt.Errorf("config meta incomplete: version=%q customer=%q created_at=%q",
			c.Meta.ConfigVersion, c.Meta.Customer, c.Meta.CreatedAt)
	}
	if len(c.Processing.Sheets) == 0 {
		return fmt.Errorf("config for %s lists no sheets to process", c.Meta.Customer)
	}
	for _, sheet := range c.Processing.Sheets {
		layout, ok := c.LayoutBundle[sheet]
		if !ok {
			return fmt.Errorf("sheet %q listed in processing but missing from layout_bundle", sheet)
		}
		if _, ok := c.StylingBundle.Sheets[sheet]; !ok {
			return fmt.Errorf("sheet %q listed in processing but missing from styling_bundle", sheet)
		}
		known := map[string]bool{}
		for _, col := range layout.Structure.Columns {
			known[col.ID] = true
			for _, child := range col.Children {
				known[child.ID] = true
			}
		}
		for id := range layout.DataFlow.Mappings {
			if !known[id] {
				return fmt.Errorf("sheet %q: data_flow references %q which is not in the structure", sheet, id)
			}
		}
	}
	return nil
}

// LoadBundleConfig reads and validates a bundle config file.
func LoadBundleConfig(path string) (*BundleConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg BundleConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse bundle config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
