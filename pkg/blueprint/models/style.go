package models

// FontStyle captures the font attributes of a cell.
type FontStyle struct {
	Name   string  `json:"name,omitempty"`
	Size   float64 `json:"size,omitempty"`
	Bold   bool    `json:"bold,omitempty"`
	Italic bool    `json:"italic,omitempty"`
	Color  string  `json:"color,omitempty"`
}

// BorderEdges records the border style per edge; empty means no border.
type BorderEdges struct {
	Left   string `json:"left,omitempty"`
	Right  string `json:"right,omitempty"`
	Top    string `json:"top,omitempty"`
	Bottom string `json:"bottom,omitempty"`
}

// CellStyle is the resolved style of a single cell. Zero-valued fields mean
// "inherit the sheet default".
type CellStyle struct {
	Font         *FontStyle   `json:"font,omitempty"`
	Horizontal   string       `json:"horizontal,omitempty"`
	Vertical     string       `json:"vertical,omitempty"`
	WrapText     bool         `json:"wrap_text,omitempty"`
	NumberFormat string       `json:"number_format,omitempty"`
	FillColor    string       `json:"fill_color,omitempty"`
	Border       *BorderEdges `json:"border,omitempty"`
}

// IsZero reports whether the style carries no attributes at all.
func (s CellStyle) IsZero() bool {
	return s.Font == nil && s.Horizontal == "" && s.Vertical == "" &&
		!s.WrapText && s.NumberFormat == "" && s.FillColor == "" && s.Border == nil
}
