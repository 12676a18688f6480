// Package merge aligns canonical series of differing native resolution onto
// one quarter-hourly timeline and builds the unified table.
package merge

import (
	"fmt"
	"sort"
	"time"

	"github.com/energiemix/energiemix/pkg/metrics"
	"github.com/energiemix/energiemix/pkg/types"
)

// calendarKey matches a timestamp by month, day, hour and minute while
// ignoring the year. PV estimates are computed for a reference year and are
// joined onto meter data from any other year through this key.
type calendarKey struct {
	month  time.Month
	day    int
	hour   int
	minute int
}

func keyOf(ts time.Time) calendarKey {
	return calendarKey{month: ts.Month(), day: ts.Day(), hour: ts.Hour(), minute: ts.Minute()}
}

// Merge combines the meter series, the optional price series and the
// optional PV estimate into the unified table:
//
//  1. Meter series are outer-joined on exact timestamp equality.
//  2. The price series is left-joined on the timestamp floored to the hour,
//     so every quarter within an hour carries that hour's price.
//  3. The PV estimate is left-joined on the year-agnostic calendar key.
//  4. Quantities with no source value become 0; rows sort ascending.
//
// It fails with types.ErrNoValidInput when every meter series is empty.
func Merge(meter []types.Series, price *types.Series, pvgis *types.Series) (types.Table, error) {
	rows := make(map[time.Time]*types.Row)
	any := false
	for _, s := range meter {
		if s.Empty() {
			continue
		}
		any = true
		for _, smp := range s.Samples {
			row, ok := rows[smp.TS]
			if !ok {
				row = &types.Row{TS: smp.TS}
				rows[smp.TS] = row
			}
			switch s.Column {
			case types.ColumnImport:
				row.ImportKWH = smp.Value
			case types.ColumnInjection:
				row.InjectionKWH = smp.Value
			case types.ColumnPV:
				row.PVKWH = smp.Value
			default:
				return nil, fmt.Errorf("series has unknown meter column %q", s.Column)
			}
		}
	}
	if !any {
		return nil, types.ErrNoValidInput
	}

	if price != nil && !price.Empty() {
		hourly := make(map[time.Time]float64, len(price.Samples))
		for _, smp := range price.Samples {
			hourly[smp.TS.Truncate(time.Hour)] = smp.Value
		}
		for ts, row := range rows {
			if v, ok := hourly[ts.Truncate(time.Hour)]; ok {
				row.Belpex = v
			}
		}
	}

	if pvgis != nil && !pvgis.Empty() {
		byKey := make(map[calendarKey]float64, len(pvgis.Samples))
		for _, smp := range pvgis.Samples {
			byKey[keyOf(smp.TS)] = smp.Value
		}
		for ts, row := range rows {
			if v, ok := byKey[keyOf(ts)]; ok {
				row.PVGISKWH = v
			}
		}
	}

	table := make(types.Table, 0, len(rows))
	for _, row := range rows {
		table = append(table, *row)
	}
	sort.Slice(table, func(i, j int) bool { return table[i].TS.Before(table[j].TS) })

	metrics.MergedRows.Observe(float64(len(table)))
	return table, nil
}

// FilterRange keeps the rows whose date component falls within [start, end],
// comparing dates only so a same-day start and end selects exactly that day.
// It fails with types.ErrEndBeforeStart when the end date precedes the start
// date.
func FilterRange(table types.Table, start, end time.Time) (types.Table, error) {
	startDay := truncateToDay(start)
	endDay := truncateToDay(end)
	if endDay.Before(startDay) {
		return nil, types.ErrEndBeforeStart
	}

	filtered := make(types.Table, 0, len(table))
	for _, row := range table {
		day := truncateToDay(row.TS)
		if day.Before(startDay) || day.After(endDay) {
			continue
		}
		filtered = append(filtered, row)
	}
	return filtered, nil
}

func truncateToDay(ts time.Time) time.Time {
	return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, ts.Location())
}
