package models

// Data source classification for a sheet.
const (
	// SourceAggregation is a single financial table (invoice, contract).
	SourceAggregation = "aggregation"
	// SourceProcessedTables is one or more line-item tables (packing list).
	SourceProcessedTables = "processed_tables_multi"
)

// ColumnInfo describes a single column found in the header band.
type ColumnInfo struct {
	// ID is the system column identifier, or "col_unknown_<n>" when the
	// header text matched neither the vocabulary nor an operator mapping.
	ID string `json:"id"`
	// Header is the header text as found in the source.
	Header string `json:"header"`
	// Index is the column index (1-based).
	Index int `json:"index"`
	// Width is the column width in Excel units.
	Width float64 `json:"width"`
	// Format is the Excel number format pattern ("@" for text).
	Format string `json:"format"`
	// Alignment is the horizontal alignment of the header cell.
	Alignment string `json:"alignment"`
	// RowSpan and ColSpan reflect a merged super-header covering this column.
	RowSpan int `json:"rowspan,omitempty"`
	ColSpan int `json:"colspan,omitempty"`
	// Children holds sub-columns sitting under a colspan>1 parent.
	Children []ColumnInfo `json:"children,omitempty"`
	WrapText bool         `json:"wrap_text,omitempty"`
}

// Unknown reports whether the column could not be identified.
func (c ColumnInfo) Unknown() bool {
	return IsUnknownColumnID(c.ID)
}

// IsUnknownColumnID reports whether id is a scanner-assigned placeholder for
// an unrecognized header.
func IsUnknownColumnID(id string) bool {
	return len(id) >= len("col_unknown") && id[:len("col_unknown")] == "col_unknown"
}

// RowHeights holds the detected row heights per row context.
type RowHeights struct {
	Header float64 `json:"header"`
	Data   float64 `json:"data"`
	Footer float64 `json:"footer"`
}

// SheetAnalysis is the complete scan result for one sheet.
type SheetAnalysis struct {
	Name       string       `json:"name"`
	HeaderRow  int          `json:"header_row"`
	Columns    []ColumnInfo `json:"columns"`
	DataSource string       `json:"data_source"`

	HeaderFont FontStyle  `json:"header_font"`
	DataFont   FontStyle  `json:"data_font"`
	Heights    RowHeights `json:"row_heights"`

	// MultiRowHeader is true when merges anchored at the header row extend
	// downward; DataStartRow then points past the deepest such merge.
	MultiRowHeader bool `json:"multi_row_header,omitempty"`
	DataStartRow   int  `json:"data_start_row"`

	// StaticHints holds sampled static content such as the "Mark & Nº"
	// column values or a description fallback.
	StaticHints map[string][]string `json:"static_hints,omitempty"`

	// Layout preserves the sheet's structural attributes for the sanitizer.
	Layout *SheetLayout `json:"layout,omitempty"`

	// Fallback is true when the header band did not clear the keyword
	// threshold and the sheet was still admitted via structural or
	// first-row detection.
	Fallback bool `json:"fallback,omitempty"`
}

// AllColumns returns parent columns followed by their children, flattened.
func (s *SheetAnalysis) AllColumns() []ColumnInfo {
	out := make([]ColumnInfo, 0, len(s.Columns))
	for _, col := range s.Columns {
		out = append(out, col)
		out = append(out, col.Children...)
	}
	return out
}

// WorkbookAnalysis is the scan result for a whole workbook.
type WorkbookAnalysis struct {
	FilePath     string          `json:"file_path"`
	CustomerCode string          `json:"customer_code"`
	Sheets       []SheetAnalysis `json:"sheets"`
}

// UnknownHeaders returns the deduplicated header texts across all sheets
// that did not map to a system column identifier.
func (w *WorkbookAnalysis) UnknownHeaders() []string {
	seen := map[string]bool{}
	var out []string
	for i := range w.Sheets {
		for _, col := range w.Sheets[i].AllColumns() {
			if col.Unknown() && !seen[col.Header] {
				seen[col.Header] = true
				out = append(out, col.Header)
			}
		}
	}
	return out
}

// HeaderEntry is an unrecognized header surfaced to the operator, paired
// with the reconciler's best-effort suggestion (empty when it has none).
type HeaderEntry struct {
	Text       string `json:"text"`
	Suggestion string `json:"suggestion,omitempty"`
}

// ColumnMapping binds system column identifiers to source header texts.
// It is immutable once a blueprint has been persisted.
type ColumnMapping map[string]string

// Clone returns a copy so callers cannot mutate a frozen mapping.
func (m ColumnMapping) Clone() ColumnMapping {
	out := make(ColumnMapping, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
