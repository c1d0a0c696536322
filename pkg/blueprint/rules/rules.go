// Package rules is the single source of truth for the blueprint business
// rules: the closed vocabulary of system column identifiers, sheet
// classification, column formats and footer defaults.
package rules

import (
	"sort"
	"strings"
)

// ColumnDef defines how a system column behaves.
type ColumnDef struct {
	// ID is the internal system identifier, e.g. "col_qty_pcs".
	ID string
	// Label is the human-readable name shown to operators.
	Label string
	// Keywords are the header synonyms that map to this column. Matching
	// is exact and case-insensitive; substrings are not enough.
	Keywords []string
	// Format is the Excel number format for data cells ("@" is text).
	Format string
	// Width is the standard column width fallback.
	Width float64
}

// Columns is the closed set of system column identifiers.
var Columns = map[string]ColumnDef{
	"col_static": {
		ID:       "col_static",
		Label:    "Mark & Nº",
		Keywords: []string{"mark", "mark & n", "mark & no", "mark & nº", "mark and no"},
		Format:   "@",
		Width:    24.71,
	},
	"col_po": {
		ID:       "col_po",
		Label:    "PO Number",
		Keywords: []string{"p.o", "po", "p.o.", "p.o nº", "p.o. nº", "po no"},
		Format:   "@",
		Width:    28.0,
	},
	"col_item": {
		ID:       "col_item",
		Label:    "Item Number",
		Keywords: []string{"item", "item n", "item no", "item nº", "item. no", "item. nº"},
		Format:   "@",
		Width:    22.14,
	},
	"col_desc": {
		ID:       "col_desc",
		Label:    "Description",
		Keywords: []string{"description", "desc"},
		Format:   "@",
		Width:    26.0,
	},
	"col_qty_header": {
		ID:       "col_qty_header",
		Label:    "Quantity",
		Keywords: []string{"quantity", "qty"},
		Format:   "@",
		Width:    15.0,
	},
	"col_qty_pcs": {
		ID:       "col_qty_pcs",
		Label:    "Quantity (PCS)",
		Keywords: []string{"pcs"},
		Format:   "#,##0",
		Width:    15.0,
	},
	"col_qty_sf": {
		ID:       "col_qty_sf",
		Label:    "Quantity (SF)",
		Keywords: []string{"sf", "sqft", "ft2", "quantity(sf)"},
		Format:   "#,##0.00",
		Width:    15.0,
	},
	"col_unit_price": {
		ID:       "col_unit_price",
		Label:    "Unit Price",
		Keywords: []string{"unit price", "unit", "price", "unit price (usd)", "unit price(usd)"},
		Format:   "#,##0.00",
		Width:    15.0,
	},
	"col_amount": {
		ID:       "col_amount",
		Label:    "Amount",
		Keywords: []string{"amount", "total", "value", "amount (usd)", "total value(usd)"},
		Format:   "#,##0.00",
		Width:    18.0,
	},
	"col_net": {
		ID:       "col_net",
		Label:    "Net Weight",
		Keywords: []string{"n.w", "net", "nw", "net weight", "n.w (kgs)"},
		Format:   "#,##0.00",
		Width:    15.0,
	},
	"col_gross": {
		ID:       "col_gross",
		Label:    "Gross Weight",
		Keywords: []string{"g.w", "gross", "gw", "gross weight", "g.w (kgs)"},
		Format:   "#,##0.00",
		Width:    15.0,
	},
	"col_cbm": {
		ID:       "col_cbm",
		Label:    "CBM",
		Keywords: []string{"cbm", "m3"},
		Format:   "0.00",
		Width:    15.0,
	},
	"col_no": {
		ID:       "col_no",
		Label:    "Row Number",
		Keywords: []string{"no", "no."},
		Format:   "@",
		Width:    15.0,
	},
	"col_pallet": {
		ID:       "col_pallet",
		Label:    "Pallet",
		Keywords: []string{"pallet", "plt"},
		Format:   "@",
		Width:    15.0,
	},
	"col_remarks": {
		ID:       "col_remarks",
		Label:    "Remarks",
		Keywords: []string{"remark", "remarks", "note", "notes", "comment"},
		Format:   "@",
		Width:    20.0,
	},
}

// Sheet classification keyword sets. Membership is a substring check against
// the lowercased sheet name.
var (
	aggregationSheets     = []string{"invoice", "contract", "inv", "commercial", "shipping", "bill"}
	processedTablesSheets = []string{"packing list", "packing", "pl", "detail", "content", "weight"}
)

// MatchKeyword resolves a header text to a column definition with an exact,
// case-insensitive keyword comparison. It returns nil when nothing matches;
// substring hits are deliberately not accepted, an ambiguous header must go
// through operator confirmation instead.
func MatchKeyword(headerText string) *ColumnDef {
	header := strings.ToLower(strings.TrimSpace(headerText))
	if header == "" {
		return nil
	}
	for _, id := range sortedIDs() {
		def := Columns[id]
		for _, kw := range def.Keywords {
			if kw == header {
				d := def
				return &d
			}
		}
	}
	return nil
}

// Suggest returns a best-effort guess for an unmatched header. Candidates
// are every column with a keyword appearing inside the header text or vice
// versa; among them, a keyword equal to the header's trailing token wins
// ("Total PCS" counts pieces, not totals), then the longest keyword, then
// stable ID order. The result is a hint only and must be confirmed by an
// operator before use.
func Suggest(headerText string) string {
	header := strings.ToLower(strings.TrimSpace(headerText))
	if header == "" {
		return ""
	}
	tokens := strings.Fields(header)
	lastToken := tokens[len(tokens)-1]

	bestID := ""
	bestScore := 0
	for _, id := range sortedIDs() {
		for _, kw := range Columns[id].Keywords {
			// Two-letter keywords ("po", "sf") generate too many false
			// hits as substrings, so only longer ones qualify.
			if len(kw) < 3 {
				continue
			}
			if !strings.Contains(header, kw) && !strings.Contains(kw, header) {
				continue
			}
			score := len(kw)
			if kw == lastToken {
				score += 1000
			}
			if score > bestScore {
				bestScore = score
				bestID = id
			}
		}
	}
	return bestID
}

// IsKnownID reports whether id belongs to the closed vocabulary.
func IsKnownID(id string) bool {
	_, ok := Columns[id]
	return ok
}

// FormatFor returns the Excel number format for a column ID, defaulting
// to text.
func FormatFor(id string) string {
	if def, ok := Columns[id]; ok {
		return def.Format
	}
	return "@"
}

// ClassifySheet maps a sheet name plus its detected column IDs to a data
// source. Named sheets win; otherwise the presence of packing-list columns
// (pcs or net weight) marks it as processed tables.
func ClassifySheet(sheetName string, columnIDs []string) string {
	name := strings.ToLower(sheetName)
	for _, s := range aggregationSheets {
		if strings.Contains(name, s) {
			return "aggregation"
		}
	}
	for _, s := range processedTablesSheets {
		if strings.Contains(name, s) {
			return "processed_tables_multi"
		}
	}
	for _, id := range columnIDs {
		if id == "col_qty_pcs" || id == "col_net" {
			return "processed_tables_multi"
		}
	}
	return "aggregation"
}

// DefaultFooterSums lists the columns summed in the footer per data source.
var DefaultFooterSums = map[string][]string{
	"aggregation":            {"col_qty_sf", "col_amount"},
	"processed_tables_multi": {"col_qty_pcs", "col_qty_sf", "col_net", "col_gross", "col_cbm"},
}

// StandardRowHeights are the fallback heights used when the source sheet
// declares none.
var StandardRowHeights = map[string]struct{ Header, Data, Footer float64 }{
	"dataset_default":        {Header: 30.0, Data: 27.0, Footer: 30.0},
	"aggregation":            {Header: 35.0, Data: 35.0, Footer: 35.0},
	"processed_tables_multi": {Header: 27.0, Data: 27.0, Footer: 27.0},
}

// Option is one vocabulary entry exposed to operator UIs.
type Option struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description"`
}

// Options returns the vocabulary sorted by ID, for mapping dropdowns.
func Options() []Option {
	ids := sortedIDs()
	out := make([]Option, 0, len(ids))
	for _, id := range ids {
		out = append(out, Option{
			ID:          id,
			Label:       Columns[id].Label,
			Description: "Internal ID: " + id,
		})
	}
	return out
}

func sortedIDs() []string {
	ids := make([]string, 0, len(Columns))
	for id := range Columns {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
