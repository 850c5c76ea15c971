package source

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/jalad-shrimali/node-filter/config"
	"github.com/jalad-shrimali/node-filter/dataset"
	"github.com/jalad-shrimali/node-filter/failure"
)

// writeWorkbook saves rows to the first sheet of a new workbook.
func writeWorkbook(t *testing.T, name string, rows [][]any) string {
	t.Helper()
	x := excelize.NewFile()
	defer x.Close()
	for r, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, r+1)
		require.NoError(t, err)
		vals := row
		require.NoError(t, x.SetSheetRow("Sheet1", cell, &vals))
	}
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, x.SaveAs(path))
	return path
}

func scheduleRows() [][]any {
	return [][]any{
		{},
		{"NODO_N", " FECHA TRABAJO ", "", "DEPARTAMENTO"},
		{"Nodo SCZ001", "2024-03-01", "x", "SANTA CRUZ"},
		{},
		{"LPZ010", "02/03/2024", nil, "LA PAZ"},
	}
}

func TestLoadSpreadsheet(t *testing.T) {
	path := writeWorkbook(t, "cronograma.xlsx", scheduleRows())
	src, err := Open(path)
	require.NoError(t, err)

	tb, err := Load(context.Background(), src, []string{"NODO_N", "FECHA TRABAJO"})
	require.NoError(t, err)

	assert.Equal(t, []string{"NODO_N", "FECHA TRABAJO", "COLUMN_3", "DEPARTAMENTO"}, tb.Columns)
	require.Equal(t, 2, tb.Len())
	assert.Equal(t, "Nodo SCZ001", tb.Rows[0].Text("NODO_N"))
	assert.True(t, tb.Rows[1].Get("COLUMN_3").IsNull())
	assert.Equal(t, "LA PAZ", tb.Rows[1].Text("DEPARTAMENTO"))
}

func TestLoadSpreadsheetDateSerial(t *testing.T) {
	x := excelize.NewFile()
	require.NoError(t, x.SetSheetRow("Sheet1", "A1", &[]any{"NODO_N", "FECHA TRABAJO"}))
	require.NoError(t, x.SetCellValue("Sheet1", "A2", "SCZ001"))
	require.NoError(t, x.SetCellValue("Sheet1", "B2", 45352))
	path := filepath.Join(t.TempDir(), "serial.xlsx")
	require.NoError(t, x.SaveAs(path))
	x.Close()

	tb, err := Load(context.Background(), &Spreadsheet{Path: path}, nil)
	require.NoError(t, err)
	d, ok := dataset.ParseDate(tb.Rows[0].Get("FECHA TRABAJO"))
	require.True(t, ok)
	assert.Equal(t, "2024-03-01", d.Format(dataset.DateLayout))
}

func TestLoadMissingColumns(t *testing.T) {
	path := writeWorkbook(t, "clientes.xlsx", [][]any{
		{"NODO_N", "DEPARTAMENTO"},
		{"SCZ001", "SANTA CRUZ"},
	})

	_, err := Load(context.Background(), &Spreadsheet{Path: path}, []string{"NODO_N", "FECHA TRABAJO"})
	var fe *failure.Error
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, failure.KindSchemaMismatch, fe.Kind)
	assert.Equal(t, []string{"FECHA TRABAJO"}, fe.Missing)

	_, err = Load(context.Background(), &Spreadsheet{Path: path}, []string{"ZONA_GRUPO", "NODO_N", "ES_B2B"})
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, []string{"ZONA_GRUPO", "ES_B2B"}, fe.Missing)
}

func TestLoadAliases(t *testing.T) {
	path := writeWorkbook(t, "cronograma.xlsx", [][]any{
		{"Nodo", "Fecha  de Trabajo"},
		{"SCZ001", "2024-03-01"},
	})

	tb, err := Load(context.Background(), &Spreadsheet{Path: path}, []string{"NODO_N", "FECHA TRABAJO"},
		WithAliases(map[string]string{"nodo": "NODO_N", "FECHA DE TRABAJO": "FECHA TRABAJO"}))
	require.NoError(t, err)
	assert.Equal(t, []string{"NODO_N", "FECHA TRABAJO"}, tb.Columns)
	assert.Equal(t, "SCZ001", tb.Rows[0].Text("NODO_N"))
}

func TestOpenErrors(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope.xlsx"))
	assert.True(t, errors.Is(err, failure.SourceNotFound))

	dir := t.TempDir()
	legacy := filepath.Join(dir, "viejo.xls")
	require.NoError(t, os.WriteFile(legacy, []byte("x"), 0o644))
	_, err = Open(legacy)
	assert.True(t, errors.Is(err, failure.SourceUnreadable))
	assert.Contains(t, err.Error(), ".xls")

	broken := filepath.Join(dir, "roto.xlsx")
	require.NoError(t, os.WriteFile(broken, []byte("not a zip"), 0o644))
	src, err := Open(broken)
	require.NoError(t, err)
	_, err = Load(context.Background(), src, nil)
	assert.True(t, errors.Is(err, failure.SourceUnreadable))
}

func TestListColumns(t *testing.T) {
	path := writeWorkbook(t, "cronograma.xlsx", scheduleRows())
	cols, err := ListColumns(context.Background(), &Spreadsheet{Path: path})
	require.NoError(t, err)
	assert.Equal(t, []string{"NODO_N", "FECHA TRABAJO", "COLUMN_3", "DEPARTAMENTO"}, cols)
}

func TestCSVMatchesSpreadsheet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cronograma.csv")
	require.NoError(t, os.WriteFile(path, []byte(
		"\ufeffNODO_N,FECHA TRABAJO,,DEPARTAMENTO\n"+
			"Nodo SCZ001,2024-03-01,x,SANTA CRUZ\n"+
			",,,\n"+
			"LPZ010,02/03/2024\n"), 0o644))

	fromCSV, err := Load(context.Background(), &CSV{Path: path}, []string{"NODO_N"})
	require.NoError(t, err)
	fromXLSX, err := Load(context.Background(), &Spreadsheet{Path: writeWorkbook(t, "c.xlsx", scheduleRows())}, []string{"NODO_N"})
	require.NoError(t, err)

	assert.Equal(t, fromXLSX.Columns, fromCSV.Columns)
	require.Equal(t, fromXLSX.Len(), fromCSV.Len())
	for i := range fromXLSX.Rows {
		for _, c := range []string{"NODO_N", "FECHA TRABAJO"} {
			assert.Equal(t, fromXLSX.Rows[i].Text(c), fromCSV.Rows[i].Text(c))
		}
	}

	cols, err := ListColumns(context.Background(), &CSV{Path: path})
	require.NoError(t, err)
	assert.Equal(t, fromCSV.Columns, cols)
}

func TestQuerySource(t *testing.T) {
	ctx := context.Background()
	db, err := OpenStore(ctx, &config.DatabaseConfig{
		Driver:       config.DriverSQLite,
		Path:         ":memory:",
		MaxOpenConns: 1,
	}, nil)
	require.NoError(t, err)
	defer db.Close()

	db.MustExec(`CREATE TABLE CUBO_TRABAJOS (NRO_CUENTA INTEGER, NOMBRE_CLIENTE TEXT, NODO TEXT, NUEVO_SEGMENTO TEXT)`)
	db.MustExec(`INSERT INTO CUBO_TRABAJOS VALUES (100, 'ACME', 'SCZ001 Centro', 'LARGE'), (101, 'Pérez', 'LPZ010', NULL)`)

	q := &Query{DB: db, Label: "CUBO_TRABAJOS", SQL: "SELECT * FROM CUBO_TRABAJOS ORDER BY NRO_CUENTA;"}

	cols, err := ListColumns(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, []string{"NRO_CUENTA", "NOMBRE_CLIENTE", "NODO", "NUEVO_SEGMENTO"}, cols)

	tb, err := Load(ctx, q, []string{"NRO_CUENTA", "NODO"})
	require.NoError(t, err)
	require.Equal(t, 2, tb.Len())
	n, ok := tb.Rows[0].Get("NRO_CUENTA").Float()
	require.True(t, ok)
	assert.Equal(t, 100.0, n)
	assert.Equal(t, "SCZ001 Centro", tb.Rows[0].Text("NODO"))
	assert.True(t, tb.Rows[1].Get("NUEVO_SEGMENTO").IsNull())

	_, err = Load(ctx, &Query{DB: db, SQL: "SELECT * FROM NO_EXISTE"}, nil)
	assert.True(t, errors.Is(err, failure.SourceUnreadable))
}

func TestOpenStoreWithoutConfig(t *testing.T) {
	_, err := OpenStore(context.Background(), nil, nil)
	assert.Equal(t, failure.KindInvalidRequest, failure.KindOf(err))
}
