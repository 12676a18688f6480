package pv

import (
	"sort"
	"time"

	"github.com/energiemix/energiemix/pkg/types"
)

// quarterHourSeries converts summed hourly power (watts, keyed by hour
// start) into a quarter-hourly energy series: each hour's kWh is spread
// evenly over its four 15-minute slots.
func quarterHourSeries(hourlyWatts map[time.Time]float64) types.Series {
	hours := make([]time.Time, 0, len(hourlyWatts))
	for h := range hourlyWatts {
		hours = append(hours, h)
	}
	sort.Slice(hours, func(i, j int) bool { return hours[i].Before(hours[j]) })

	samples := make([]types.Sample, 0, len(hours)*4)
	for _, h := range hours {
		kwh := hourlyWatts[h] / 1000
		for q := 0; q < 4; q++ {
			samples = append(samples, types.Sample{
				TS:    h.Add(time.Duration(q) * 15 * time.Minute),
				Value: kwh / 4,
			})
		}
	}
	return types.Series{
		Column:     types.ColumnPVGIS,
		Resolution: types.MeterResolution,
		Samples:    samples,
	}
}
