// Package domain models violent-crime incident exports and the indicator
// self-check exercise built on top of them.
//
// # Data Source
//
// Incident exports are semicolon-delimited CSV files produced by the state
// police records system, one row per registered occurrence. Uploads arrive
// either over HTTP (one file per session) or as a single Kafka message whose
// value is the whole file. Each upload rebuilds the working dataset wholesale;
// there is no incremental update.
//
// # Export Conventions
//
// Required columns:
//
//	LATITUDE, LONGITUDE              decimal comma, e.g. "-30,0346"
//	DATA_FATO                        day/month/year, e.g. "05/03/2023"
//	CODIGO_NATUREZA_PRINCIPAL        nature (category) code, e.g. "C01157"
//	SETOR                            policing sector label
//	UNID_REGISTRO_NIVEL_6            registering unit label
//
// Optional columns:
//
//	MES_DESCRICAO                    month label used by the month histogram
//
// Any other column is ignored. A missing required column rejects the whole
// upload with a [SchemaError]; a malformed coordinate or date only drops the
// row it appears on.
//
// Violent-crime allow-list:
//
//	B01121 B02001 B01148 C01157 C01158 D01213 D01217 C01159
//
// Rows with any other nature code are excluded before coordinates and dates
// are parsed. The list is fixed and not configurable.
//
// # Indicators
//
// IMV, IMT and ICCP are rates per 100,000 inhabitants. The exercise generates
// (or accepts) yearly counts, asks for the rate of each year and the
// percentage variation between consecutive years, and grades each answer
// against an absolute tolerance. Rates and variations are truncated, not
// rounded, to two decimals. See [Rate], [Variation] and [Grade].
package domain
