package variant

import (
	"github.com/jalad-shrimali/node-filter/nodekey"
	"github.com/jalad-shrimali/node-filter/reconcile"
	"github.com/jalad-shrimali/node-filter/report"
)

/* ──────────── consolidated work cube view ──────────── */

func cuboTrabajos() *Variant {
	return &Variant{
		Name:        "cubo-trabajos",
		Description: "clients from CUBO_TRABAJOS classified by NUEVO_SEGMENTO, one sheet per work date",

		ClientColumns:   []string{"NRO_CUENTA", "NOMBRE_CLIENTE", "NODO", "NUEVO_SEGMENTO"},
		ScheduleColumns: []string{"NODO_N", "FECHA TRABAJO"},
		ClientAliases: map[string]string{
			"nro cuenta": "NRO_CUENTA", "cuenta": "NRO_CUENTA",
			"nombre cliente": "NOMBRE_CLIENTE",
			"nodo": "NODO",
			"segmento": "NUEVO_SEGMENTO", "nuevo segmento": "NUEVO_SEGMENTO",
			"email it": "EMAIL_IT",
		},
		ScheduleAliases: scheduleAliases,

		ClientsQuery: `SELECT NRO_CUENTA, NOMBRE_CLIENTE, NODO, EJECUTIVO_CORPORATE,
       EMAIL_IT, TIPO_PRODUCTO, NUEVO_SEGMENTO
  FROM CUBO_TRABAJOS`,

		// Client NODO holds zone text such as "SCZ001 Centro".
		Keys: reconcile.KeySpec{
			ClientKey:          "NODO",
			ScheduleKey:        "NODO_N",
			ClientNormalizer:   nodekey.New(nodekey.Auto),
			ScheduleNormalizer: nodekey.New(nodekey.Strip),
			ScheduleDate:       "FECHA TRABAJO",
			Account:            "NRO_CUENTA",
		},
		SegmentSource: "NUEVO_SEGMENTO",
		Segments:      reconcile.ProductSegments(),
		Output: []reconcile.Rename{
			{From: "NRO_CUENTA", To: "NRO_CUENTA"},
			{From: "NOMBRE_CLIENTE", To: "CLIENTE_NOMBRE_COMPLETO"},
			{From: "NODO", To: "ZONA_GRUPO"},
			{From: "EJECUTIVO_CORPORATE", To: "EJECUTIVO_CORPORATE"},
			{From: "EMAIL_IT", To: "EMAIL_IT"},
			{From: "TIPO_PRODUCTO", To: "TIPO_PRODUCTO"},
			{From: "NUEVO_SEGMENTO", To: "NUEVO_SEGMENTO"},
			{From: reconcile.SegmentColumn, To: reconcile.SegmentColumn},
			{From: "FECHA TRABAJO", To: "FECHA_TRABAJO"},
		},

		GroupBy:    report.ByDate,
		DateColumn: "FECHA_TRABAJO",
	}
}
