package server

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/jalad-shrimali/node-filter/config"
	"github.com/jalad-shrimali/node-filter/failure"
	"github.com/jalad-shrimali/node-filter/task"
	"github.com/jalad-shrimali/node-filter/variant"
)

func xlsx(t *testing.T, rows [][]any) []byte {
	t.Helper()
	x := excelize.NewFile()
	defer x.Close()
	for r, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, r+1)
		require.NoError(t, err)
		vals := row
		require.NoError(t, x.SetSheetRow("Sheet1", cell, &vals))
	}
	buf, err := x.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := config.DefaultConfig()
	cfg.OutputDir = t.TempDir()
	reg, err := variant.NewRegistry(nil)
	require.NoError(t, err)
	return New(task.NewService(cfg, reg, nil, nil), cfg.OutputDir, nil, true), cfg.OutputDir
}

type upload struct {
	field, name string
	data        []byte
}

func post(t *testing.T, s *Server, path string, fields map[string]string, files ...upload) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for _, f := range files {
		fw, err := mw.CreateFormFile(f.field, f.name)
		require.NoError(t, err)
		_, err = fw.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

var (
	scheduleRows = [][]any{
		{"NODO_N", "FECHA TRABAJO"},
		{"Nodo SCZ001", "2024-03-01"},
		{"SCZ002", "2024-03-02"},
	}
	clientRows = [][]any{
		{"NRO_CUENTA", "NOMBRE_CLIENTE", "NODO", "NUEVO_SEGMENTO"},
		{100, "ACME", "SCZ001 Centro", "LARGE"},
		{200, "Hogar", "SCZ002", "MASIVO"},
		{300, "Lejos", "CBB100", "LARGE"},
	}
)

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(t)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestPreviewEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	w := post(t, s, "/preview",
		map[string]string{"variant": "cubo-trabajos", "filter": "b2c", "max_rows": "5"},
		upload{"schedule", "cronograma.xlsx", xlsx(t, scheduleRows)},
		upload{"clients", "cubo.xlsx", xlsx(t, clientRows)},
	)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var rows []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, float64(200), rows[0]["NRO_CUENTA"])
	assert.Equal(t, "2024-03-02", rows[0]["FECHA_TRABAJO"])
}

func TestExportAndDownload(t *testing.T) {
	s, out := newTestServer(t)
	w := post(t, s, "/export",
		map[string]string{"variant": "cubo-trabajos"},
		upload{"schedule", "cronograma.xlsx", xlsx(t, scheduleRows)},
		upload{"clients", "cubo.xlsx", xlsx(t, clientRows)},
	)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res struct {
		Status   string   `json:"status"`
		Download string   `json:"download"`
		Sheets   []string `json:"sheets"`
		Rows     int      `json:"rows"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "success", res.Status)
	assert.Equal(t, []string{"01-03-2024", "02-03-2024"}, res.Sheets)
	assert.Equal(t, 2, res.Rows)
	require.True(t, strings.HasPrefix(res.Download, "/download/"))
	assert.FileExists(t, filepath.Join(out, strings.TrimPrefix(res.Download, "/download/")))

	dl := httptest.NewRecorder()
	s.Handler().ServeHTTP(dl, httptest.NewRequest(http.MethodGet, res.Download, nil))
	require.Equal(t, http.StatusOK, dl.Code)
	f, err := excelize.OpenReader(bytes.NewReader(dl.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"01-03-2024", "02-03-2024"}, f.GetSheetList())
}

func TestErrorStatuses(t *testing.T) {
	s, _ := newTestServer(t)
	schedule := upload{"schedule", "cronograma.xlsx", xlsx(t, scheduleRows)}
	clients := upload{"clients", "cubo.xlsx", xlsx(t, clientRows)}

	cases := []struct {
		name   string
		fields map[string]string
		files  []upload
		status int
		kind   failure.Kind
	}{
		{"no schedule", map[string]string{"variant": "cubo-trabajos"}, []upload{clients},
			http.StatusBadRequest, failure.KindInvalidRequest},
		{"unknown filter", map[string]string{"variant": "cubo-trabajos", "filter": "vip"}, []upload{schedule, clients},
			http.StatusBadRequest, failure.KindInvalidFilter},
		{"missing columns", map[string]string{"variant": "cubo-trabajos"},
			[]upload{schedule, {"clients", "cubo.xlsx", xlsx(t, [][]any{{"NRO_CUENTA"}, {1}})}},
			http.StatusBadRequest, failure.KindSchemaMismatch},
		{"legacy xls", map[string]string{"variant": "cubo-trabajos"},
			[]upload{schedule, {"clients", "cubo.xls", []byte("binary")}},
			http.StatusBadRequest, failure.KindSourceUnreadable},
		{"empty result", map[string]string{"variant": "cubo-trabajos"},
			[]upload{schedule, {"clients", "cubo.xlsx", xlsx(t, clientRows[:1])}},
			http.StatusUnprocessableEntity, failure.KindEmptyResult},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := post(t, s, "/preview", tc.fields, tc.files...)
			assert.Equal(t, tc.status, w.Code, w.Body.String())
			var body map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tc.kind.String(), body["kind"])
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestDownloadOnlyServesWorkbooks(t *testing.T) {
	s, out := newTestServer(t)
	require.NoError(t, os.WriteFile(filepath.Join(out, "notes.txt"), []byte("x"), 0o644))

	for path, status := range map[string]int{
		"/download/notes.txt":    http.StatusBadRequest,
		"/download/missing.xlsx": http.StatusNotFound,
	} {
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, status, w.Code, path)
	}
}

func TestColumnsAndVariants(t *testing.T) {
	s, _ := newTestServer(t)
	w := post(t, s, "/columns", nil, upload{"file", "cronograma.xlsx", xlsx(t, scheduleRows)})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"columns":["NODO_N","FECHA TRABAJO"]}`, w.Body.String())

	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/variants", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var list []struct {
		Name    string   `json:"name"`
		Filters []string `json:"filters"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 3)
	assert.Equal(t, "cartera-ip", list[0].Name)
	assert.Contains(t, list[0].Filters, "has-public-ip")
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusGatewayTimeout, statusFor(failure.KindTimeout))
	assert.Equal(t, http.StatusInternalServerError, statusFor(failure.KindWriteError))
	assert.Equal(t, http.StatusInternalServerError, statusFor(failure.KindUnknown))
}
