package types

import (
	"fmt"
	"sort"
	"time"
)

// Column names in the unified table. Meter series are tagged with one of the
// first three before merging; the price and PV estimate series keep their own.
const (
	ColumnImport    = "import_kwh"
	ColumnInjection = "injection_kwh"
	ColumnPV        = "pv_kwh"
	ColumnBelpex    = "BELPEX"
	ColumnPVGIS     = "PVGIS_kwh"
)

// Register labels as they appear in the standard meter export.
const (
	RegisterImport    = "Afname Actief"
	RegisterInjection = "Injectie Actief"
	RegisterAuxiliary = "Hulpverbruik Actief"
)

// Native resolutions of the supported sources.
const (
	MeterResolution = 15 * time.Minute
	PriceResolution = time.Hour
)

// Sample is one reading or price tick at one instant.
type Sample struct {
	TS    time.Time `json:"ts"`
	Value float64   `json:"value"`
}

// Series is an ordered run of samples for a single quantity. It is produced
// by exactly one parser or estimator invocation and is immutable afterwards.
// Timestamps are unique; a source that yields duplicates is rejected at parse
// time rather than silently collapsed.
type Series struct {
	Column     string
	Resolution time.Duration
	Samples    []Sample
}

// NewSeries sorts the samples ascending and verifies timestamp uniqueness.
func NewSeries(column string, resolution time.Duration, samples []Sample) (Series, error) {
	sort.Slice(samples, func(i, j int) bool {
		return samples[i].TS.Before(samples[j].TS)
	})
	for i := 1; i < len(samples); i++ {
		if samples[i].TS.Equal(samples[i-1].TS) {
			return Series{}, fmt.Errorf("duplicate timestamp %s in %s series",
				samples[i].TS.Format("2006-01-02 15:04"), column)
		}
	}
	return Series{Column: column, Resolution: resolution, Samples: samples}, nil
}

// Empty reports whether the series carries no samples.
func (s Series) Empty() bool {
	return len(s.Samples) == 0
}
