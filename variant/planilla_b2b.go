package variant

import (
	"github.com/jalad-shrimali/node-filter/nodekey"
	"github.com/jalad-shrimali/node-filter/reconcile"
	"github.com/jalad-shrimali/node-filter/report"
)

/* ──────────── client spreadsheet with ES_B2B flag ──────────── */

func planillaB2B() *Variant {
	return &Variant{
		Name:        "planilla-b2b",
		Description: "clients spreadsheet joined on node code and department, one sheet per month",

		ClientColumns: []string{
			"CLIENTENRO", "CLIENTE_NOMBRE_COMPLETO", "ZONA_GRUPO",
			"DEPARTAMENTO", "PRODUCTO_IP", "ES_B2B", "CLIENTE_TELEFONO",
		},
		ScheduleColumns: []string{"NODO_N", "FECHA TRABAJO", "DEPARTAMENTO"},
		ClientAliases: map[string]string{
			"cliente nro": "CLIENTENRO", "nro cliente": "CLIENTENRO",
			"cliente nombre completo": "CLIENTE_NOMBRE_COMPLETO",
			"zona grupo": "ZONA_GRUPO",
			"producto ip": "PRODUCTO_IP",
			"es b2b": "ES_B2B", "b2b": "ES_B2B",
			"cliente telefono": "CLIENTE_TELEFONO", "telefono": "CLIENTE_TELEFONO",
		},
		ScheduleAliases: scheduleAliases,

		// ZONA_GRUPO carries the node code inside a zone description.
		Keys: reconcile.KeySpec{
			ClientKey:          "ZONA_GRUPO",
			ScheduleKey:        "NODO_N",
			ClientNormalizer:   nodekey.New(nodekey.Extract),
			ScheduleNormalizer: nodekey.New(nodekey.Strip),
			ClientDepartment:   "DEPARTAMENTO",
			ScheduleDepartment: "DEPARTAMENTO",
			Department:         reconcile.DepartmentExact,
			ScheduleDate:       "FECHA TRABAJO",
			Account:            "CLIENTENRO",
		},
		SegmentSource: "ES_B2B",
		Segments:      reconcile.FlagSegments(),
		Output: []reconcile.Rename{
			{From: "FECHA TRABAJO", To: "FECHA TRABAJO"},
			{From: "NODO_N", To: "NODO_N"},
			{From: "DEPARTAMENTO", To: "DEPARTAMENTO"},
			{From: "CLIENTENRO", To: "CLIENTENRO"},
			{From: "CLIENTE_NOMBRE_COMPLETO", To: "CLIENTE_NOMBRE_COMPLETO"},
			{From: "PRODUCTO_IP", To: "PRODUCTO_IP"},
			{From: "CLIENTE_TELEFONO", To: "CLIENTE_TELEFONO"},
			{From: "ES_B2B", To: "ES_B2B"},
		},

		GroupBy:    report.ByMonth,
		DateColumn: "FECHA TRABAJO",
	}
}
