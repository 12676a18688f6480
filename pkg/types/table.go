package types

import "time"

// Row is one timestamp of the unified table. All quantity columns are always
// present; a quantity with no source data at this timestamp is 0, never null.
type Row struct {
	TS           time.Time `json:"ts"`
	ImportKWH    float64   `json:"import_kwh"`
	InjectionKWH float64   `json:"injection_kwh"`
	PVKWH        float64   `json:"pv_kwh"`
	Belpex       float64   `json:"BELPEX"`
	PVGISKWH     float64   `json:"PVGIS_kwh"`
}

// Table is the merged result: one row per distinct timestamp seen in any
// meter series, sorted ascending. The merge step builds it; consumers only
// read.
type Table []Row

// Bounds returns the first and last timestamps of the table. The table must
// not be empty.
func (t Table) Bounds() (min, max time.Time) {
	return t[0].TS, t[len(t)-1].TS
}
