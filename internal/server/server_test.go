package server

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/exportdocs/blueprint/internal/config"
	"github.com/exportdocs/blueprint/pkg/blueprint"
	"github.com/exportdocs/blueprint/pkg/blueprint/bundle"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Server: config.ServerConfig{
			Host:           "127.0.0.1",
			Port:           0,
			RequestTimeout: 30 * time.Second,
		},
		Store: config.StoreConfig{
			BundleRoot:    filepath.Join(t.TempDir(), "bundles"),
			UploadDir:     t.TempDir(),
			MaxUploadSize: 8 << 20,
		},
	}
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := testConfig(t)
	store, err := bundle.NewStore(cfg.Store.BundleRoot)
	require.NoError(t, err)
	generator := blueprint.NewGenerator(store, blueprint.DefaultOptions())
	return NewServer(cfg, generator)
}

// workbookBytes fabricates an xlsx with a recognizable header band plus one
// unknown column.
func workbookBytes(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetName("Sheet1", "PACKING LIST"))
	sheet := "PACKING LIST"
	for i, h := range []string{"P.O Nº", "Description", "PCS", "Unknown1"} {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		require.NoError(t, err)
		f.SetCellValue(sheet, cell, h)
	}
	f.SetCellValue(sheet, "A2", "PO-1")
	f.SetCellValue(sheet, "C2", 10)

	path := filepath.Join(t.TempDir(), "jf25058.xlsx")
	require.NoError(t, f.SaveAs(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}

func uploadRequest(t *testing.T, url, filename string, body []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(body)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, url, &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func doJSON(t *testing.T, handler http.Handler, req *http.Request, out any) int {
	t.Helper()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if out != nil {
		body, err := io.ReadAll(rec.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, out), "body: %s", body)
	}
	return rec.Code
}

func TestScanThenGenerate(t *testing.T) {
	srv := newTestServer(t)

	var scanResp blueprint.ScanOutcome
	code := doJSON(t, srv.Handler(),
		uploadRequest(t, "/api/blueprint/scan", "jf25058.xlsx", workbookBytes(t)), &scanResp)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, blueprint.StatusNeedsMapping, scanResp.Status)
	require.NotEmpty(t, scanResp.FileToken)
	require.Len(t, scanResp.UnknownHeaders, 1)
	assert.Equal(t, "Unknown1", scanResp.UnknownHeaders[0].Text)

	payload, err := json.Marshal(generateRequest{
		FileToken:    scanResp.FileToken,
		CustomerCode: "JF",
		Mappings:     map[string]string{"Unknown1": "col_remarks"},
	})
	require.NoError(t, err)

	var genResp blueprint.BuildResult
	req := httptest.NewRequest(http.MethodPost, "/api/blueprint/generate", bytes.NewReader(payload))
	code = doJSON(t, srv.Handler(), req, &genResp)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "JF", genResp.CustomerCode)
	assert.FileExists(t, genResp.ConfigPath)
	assert.FileExists(t, genResp.TemplatePath)
}

func TestGenerateRemovesUpload(t *testing.T) {
	cfg := testConfig(t)
	store, err := bundle.NewStore(cfg.Store.BundleRoot)
	require.NoError(t, err)
	srv := NewServer(cfg, blueprint.NewGenerator(store, blueprint.DefaultOptions()))

	var scanResp blueprint.ScanOutcome
	code := doJSON(t, srv.Handler(),
		uploadRequest(t, "/api/blueprint/scan", "jf25058.xlsx", workbookBytes(t)), &scanResp)
	require.Equal(t, http.StatusOK, code)

	entries, err := os.ReadDir(cfg.Store.UploadDir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "scan should park the upload in its own directory")

	payload, err := json.Marshal(generateRequest{
		FileToken:    scanResp.FileToken,
		CustomerCode: "JF",
		Mappings:     map[string]string{"Unknown1": "col_remarks"},
	})
	require.NoError(t, err)
	code = doJSON(t, srv.Handler(),
		httptest.NewRequest(http.MethodPost, "/api/blueprint/generate", bytes.NewReader(payload)), nil)
	require.Equal(t, http.StatusOK, code)

	entries, err = os.ReadDir(cfg.Store.UploadDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "a consumed session should not leak its upload")
}

func TestScanRejectsNonXlsx(t *testing.T) {
	srv := newTestServer(t)
	var resp errorResponse
	code := doJSON(t, srv.Handler(),
		uploadRequest(t, "/api/blueprint/scan", "data.csv", []byte("a,b,c")), &resp)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.NotEmpty(t, resp.Error)
}

func TestGenerateUnknownTokenGone(t *testing.T) {
	srv := newTestServer(t)
	payload := `{"file_token":"nope","customer_code":"JF"}`

	var resp errorResponse
	req := httptest.NewRequest(http.MethodPost, "/api/blueprint/generate", bytes.NewReader([]byte(payload)))
	code := doJSON(t, srv.Handler(), req, &resp)
	assert.Equal(t, http.StatusGone, code)
}

func TestGenerateMissingToken(t *testing.T) {
	srv := newTestServer(t)
	var resp errorResponse
	req := httptest.NewRequest(http.MethodPost, "/api/blueprint/generate", bytes.NewReader([]byte(`{}`)))
	code := doJSON(t, srv.Handler(), req, &resp)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestGenerateBadMappingUnprocessable(t *testing.T) {
	srv := newTestServer(t)

	var scanResp blueprint.ScanOutcome
	code := doJSON(t, srv.Handler(),
		uploadRequest(t, "/api/blueprint/scan", "jf25058.xlsx", workbookBytes(t)), &scanResp)
	require.Equal(t, http.StatusOK, code)

	payload, err := json.Marshal(generateRequest{
		FileToken:    scanResp.FileToken,
		CustomerCode: "JF",
		Mappings:     map[string]string{"Unknown1": "col_bogus"},
	})
	require.NoError(t, err)

	var resp errorResponse
	req := httptest.NewRequest(http.MethodPost, "/api/blueprint/generate", bytes.NewReader(payload))
	code = doJSON(t, srv.Handler(), req, &resp)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "reconcile", resp.Step)
}

func TestOptionsEndpoint(t *testing.T) {
	srv := newTestServer(t)

	var resp struct {
		Options []struct {
			ID    string `json:"id"`
			Label string `json:"label"`
		} `json:"options"`
	}
	req := httptest.NewRequest(http.MethodGet, "/api/blueprint/options", nil)
	code := doJSON(t, srv.Handler(), req, &resp)
	assert.Equal(t, http.StatusOK, code)
	assert.NotEmpty(t, resp.Options)
}

func TestResolveNotFound(t *testing.T) {
	srv := newTestServer(t)
	var resp errorResponse
	req := httptest.NewRequest(http.MethodGet, "/api/blueprint/resolve?filename=QQ1.xlsx", nil)
	code := doJSON(t, srv.Handler(), req, &resp)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)
	var resp map[string]string
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	code := doJSON(t, srv.Handler(), req, &resp)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", resp["status"])
}
