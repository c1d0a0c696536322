package models

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *BundleConfig {
	return &BundleConfig{
		Meta: Meta{
			ConfigVersion: ConfigVersion,
			Customer:      "JF",
			CreatedAt:     "2026-08-30",
		},
		Processing: Processing{
			Sheets:      []string{"PACKING LIST"},
			DataSources: map[string]string{"PACKING LIST": SourceProcessedTables},
		},
		LayoutBundle: map[string]SheetLayoutConfig{
			"PACKING LIST": {
				Structure: Structure{
					HeaderRow: 3,
					Columns: []StructureColumn{
						{ID: "col_po", Header: "P.O Nº"},
						{ID: "col_qty_pcs", Header: "PCS"},
					},
				},
				DataFlow: DataFlow{Mappings: map[string]FieldMapping{
					"col_po":      {Header: "P.O Nº"},
					"col_qty_pcs": {Header: "PCS"},
				}},
			},
		},
		StylingBundle: StylingBundle{
			Sheets: map[string]SheetStyling{"PACKING LIST": {}},
		},
	}
}

func TestValidateAcceptsCompleteConfig(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidateRejectsIncompleteMeta(t *testing.T) {
	cfg := validConfig()
	cfg.Meta.Customer = ""
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsMissingLayout(t *testing.T) {
	cfg := validConfig()
	cfg.Processing.Sheets = append(cfg.Processing.Sheets, "INVOICE")
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "INVOICE")
}

func TestValidateRejectsDanglingDataFlow(t *testing.T) {
	cfg := validConfig()
	layout := cfg.LayoutBundle["PACKING LIST"]
	layout.DataFlow.Mappings["col_cbm"] = FieldMapping{}
	cfg.LayoutBundle["PACKING LIST"] = layout

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "col_cbm")
}

func TestLoadBundleConfig(t *testing.T) {
	data, err := json.Marshal(validConfig())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "JF_config.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := LoadBundleConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "JF", cfg.Meta.Customer)
	assert.Equal(t, SourceProcessedTables, cfg.Processing.DataSources["PACKING LIST"])

	// Sections serialize under their wire names.
	assert.Contains(t, string(data), `"_meta"`)
	assert.Contains(t, string(data), `"layout_bundle"`)
	assert.Contains(t, string(data), `"styling_bundle"`)
}

func TestLoadBundleConfigRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"_meta":{}}`), 0o644))
	_, err := LoadBundleConfig(path)
	assert.Error(t, err)
}
