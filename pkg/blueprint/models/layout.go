package models

// GridPadding is the margin, in cells, added beyond the detected region when
// computing the grid extent for viewers.
const GridPadding = 2

// SheetLayout preserves the structural attributes of a sheet that the
// sanitizer strips around and the renderer later restores: content, styles
// and merges of the metadata area above the header band, the footer area
// below the table, column widths and row heights.
//
// Keys of the content and style maps are canonical cell names ("A1").
// Footer entries use coordinates as they appear after data rows have been
// removed.
type SheetLayout struct {
	HeaderContent    map[string]string    `json:"header_content"`
	HeaderStyles     map[string]CellStyle `json:"header_styles"`
	HeaderMerges     []string             `json:"header_merges"`
	HeaderRowHeights map[int]float64      `json:"header_row_heights"`

	FooterContent    map[string]string    `json:"footer_content"`
	FooterStyles     map[string]CellStyle `json:"footer_styles"`
	FooterMerges     []string             `json:"footer_merges"`
	FooterRowHeights map[int]float64      `json:"footer_row_heights"`

	ColWidths map[string]float64 `json:"col_widths"`
}

// NewSheetLayout returns a SheetLayout with all maps allocated.
func NewSheetLayout() *SheetLayout {
	return &SheetLayout{
		HeaderContent:    map[string]string{},
		HeaderStyles:     map[string]CellStyle{},
		HeaderRowHeights: map[int]float64{},
		FooterContent:    map[string]string{},
		FooterStyles:     map[string]CellStyle{},
		FooterRowHeights: map[int]float64{},
		ColWidths:        map[string]float64{},
	}
}

// Extent returns the maximum row and column touched by any content, style or
// merge record, plus GridPadding in each direction. Viewers use this as the
// grid size so the area just beyond the detected region stays inspectable.
func (l *SheetLayout) Extent() (rows, cols int) {
	touch := func(ref CellRef) {
		if ref.Row > rows {
			rows = ref.Row
		}
		if ref.Col > cols {
			cols = ref.Col
		}
	}
	for name := range l.HeaderContent {
		if ref, err := ParseCellRef(name); err == nil {
			touch(ref)
		}
	}
	for name := range l.HeaderStyles {
		if ref, err := ParseCellRef(name); err == nil {
			touch(ref)
		}
	}
	for name := range l.FooterContent {
		if ref, err := ParseCellRef(name); err == nil {
			touch(ref)
		}
	}
	for name := range l.FooterStyles {
		if ref, err := ParseCellRef(name); err == nil {
			touch(ref)
		}
	}
	for _, ref := range append(append([]string{}, l.HeaderMerges...), l.FooterMerges...) {
		if m, err := ParseMergeRange(ref); err == nil {
			touch(m.End)
		}
	}
	if rows == 0 && cols == 0 {
		return 0, 0
	}
	return rows + GridPadding, cols + GridPadding
}

// Grid reconstructs the header area as a dense matrix of cell values for
// visual inspection. Cells covered by a merge but not its anchor are left
// empty so merged regions render once.
func (l *SheetLayout) Grid() [][]string {
	rows, cols := l.Extent()
	if rows == 0 || cols == 0 {
		return nil
	}
	grid := make([][]string, rows)
	for i := range grid {
		grid[i] = make([]string, cols)
	}
	merges := make([]MergeRange, 0, len(l.HeaderMerges))
	for _, ref := range l.HeaderMerges {
		if m, err := ParseMergeRange(ref); err == nil {
			merges = append(merges, m)
		}
	}
	place := func(name, value string) {
		ref, err := ParseCellRef(name)
		if err != nil || ref.Row > rows || ref.Col > cols {
			return
		}
		for _, m := range merges {
			if m.Contains(ref) && !m.IsAnchor(ref) {
				return
			}
		}
		grid[ref.Row-1][ref.Col-1] = value
	}
	for name, value := range l.HeaderContent {
		place(name, value)
	}
	for name, value := range l.FooterContent {
		place(name, value)
	}
	return grid
}
