package variant

import (
	"github.com/jalad-shrimali/node-filter/nodekey"
	"github.com/jalad-shrimali/node-filter/reconcile"
	"github.com/jalad-shrimali/node-filter/report"
)

/* ──────────── portfolio cache view + public IP view ──────────── */

func carteraIP() *Variant {
	return &Variant{
		Name:        "cartera-ip",
		Description: "clients from VISTAS_CACHE_CUBO_CARTERAS with the VISTA_TIENE_IP flag, one sheet per work date",

		ClientColumns:   []string{"NRO_CUENTA", "NOMBRE_CLIENTE", "NODO"},
		ScheduleColumns: []string{"NODO_N", "FECHA TRABAJO"},
		ClientAliases: map[string]string{
			"nro cuenta": "NRO_CUENTA", "cuenta": "NRO_CUENTA", "clientenro": "NRO_CUENTA",
			"nombre cliente": "NOMBRE_CLIENTE", "cliente_nombre_completo": "NOMBRE_CLIENTE",
			"nodo": "NODO", "zona_grupo": "NODO",
			"telefono contacto": "TELEFONO_CONTACTO", "cliente_telefono": "TELEFONO_CONTACTO",
			"bandera ip": "BANDERA_IP",
		},
		ScheduleAliases: scheduleAliases,

		ClientsQuery: `SELECT NRO_CUENTA, NOMBRE_CLIENTE, NODO, EJECUTIVO_CORPORATE,
       CORREO_TITULAR_PYME, TELEFONO_CONTACTO, TIPO_PRODUCTO
  FROM VISTAS_CACHE_CUBO_CARTERAS`,
		PublicIPQuery: `SELECT CLIENTENRO, BANDERA_IP FROM VISTA_TIENE_IP`,
		PublicIP: &reconcile.EnrichSpec{
			ClientAccount: "NRO_CUENTA",
			FlagAccount:   "CLIENTENRO",
			FlagColumn:    "BANDERA_IP",
		},

		Keys: reconcile.KeySpec{
			ClientKey:          "NODO",
			ScheduleKey:        "NODO_N",
			ClientNormalizer:   nodekey.New(nodekey.Strip),
			ScheduleNormalizer: nodekey.New(nodekey.Strip),
			ScheduleDate:       "FECHA TRABAJO",
			Account:            "NRO_CUENTA",
		},
		Output: []reconcile.Rename{
			{From: "NRO_CUENTA", To: "NRO_CUENTA"},
			{From: "NOMBRE_CLIENTE", To: "CLIENTE_NOMBRE_COMPLETO"},
			{From: "NODO", To: "ZONA_GRUPO"},
			{From: "EJECUTIVO_CORPORATE", To: "EJECUTIVO_CORPORATE"},
			{From: "CORREO_TITULAR_PYME", To: "CORREO_TITULAR_PYME"},
			{From: "TELEFONO_CONTACTO", To: "CLIENTE_TELEFONO"},
			{From: "BANDERA_IP", To: "BANDERA_IP"},
			{From: "FECHA TRABAJO", To: "FECHA_TRABAJO"},
		},

		GroupBy:          report.ByDate,
		DateColumn:       "FECHA_TRABAJO",
		DropDateOnExport: true,
	}
}

// schedule headers seen across cronograma revisions
var scheduleAliases = map[string]string{
	"nodo n": "NODO_N", "nodo_n": "NODO_N", "nodo": "NODO_N",
	"fecha trabajo": "FECHA TRABAJO", "fecha_trabajo": "FECHA TRABAJO", "fecha de trabajo": "FECHA TRABAJO",
	"departamento": "DEPARTAMENTO", "depto": "DEPARTAMENTO",
}
