package merge

import (
	"testing"
	"time"

	"github.com/energiemix/energiemix/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quarterSeries(column string, start time.Time, values ...float64) types.Series {
	samples := make([]types.Sample, len(values))
	for i, v := range values {
		samples[i] = types.Sample{TS: start.Add(time.Duration(i) * 15 * time.Minute), Value: v}
	}
	return types.Series{Column: column, Resolution: types.MeterResolution, Samples: samples}
}

func TestMerge(t *testing.T) {
	start := time.Date(2023, 6, 15, 10, 0, 0, 0, time.UTC)

	t.Run("OuterJoinOnTimestamp", func(t *testing.T) {
		imp := quarterSeries(types.ColumnImport, start, 1, 2)
		inj := quarterSeries(types.ColumnInjection, start.Add(15*time.Minute), 3, 4)

		table, err := Merge([]types.Series{imp, inj}, nil, nil)
		require.NoError(t, err)
		require.Len(t, table, 3)

		assert.Equal(t, 1.0, table[0].ImportKWH)
		assert.Equal(t, 0.0, table[0].InjectionKWH)
		assert.Equal(t, 2.0, table[1].ImportKWH)
		assert.Equal(t, 3.0, table[1].InjectionKWH)
		assert.Equal(t, 0.0, table[2].ImportKWH)
		assert.Equal(t, 4.0, table[2].InjectionKWH)
	})

	t.Run("Idempotence", func(t *testing.T) {
		a := quarterSeries(types.ColumnImport, start, 1, 2, 3)
		b := quarterSeries(types.ColumnInjection, start, 1, 2, 3)

		table, err := Merge([]types.Series{a, b}, nil, nil)
		require.NoError(t, err)
		// Same timestamps in two quantities must not double the row count.
		assert.Len(t, table, 3)
	})

	t.Run("ZeroFillTotality", func(t *testing.T) {
		imp := quarterSeries(types.ColumnImport, start, 1)

		table, err := Merge([]types.Series{imp}, nil, nil)
		require.NoError(t, err)
		require.Len(t, table, 1)
		row := table[0]
		assert.Equal(t, 0.0, row.InjectionKWH)
		assert.Equal(t, 0.0, row.PVKWH)
		assert.Equal(t, 0.0, row.Belpex)
		assert.Equal(t, 0.0, row.PVGISKWH)
	})

	t.Run("HourlyPriceSpreadOverQuarters", func(t *testing.T) {
		imp := quarterSeries(types.ColumnImport, start, 1, 1, 1, 1, 1)
		price := types.Series{
			Column:     types.ColumnBelpex,
			Resolution: types.PriceResolution,
			Samples: []types.Sample{
				{TS: start, Value: 0.05},
				{TS: start.Add(time.Hour), Value: 0.07},
			},
		}

		table, err := Merge([]types.Series{imp}, &price, nil)
		require.NoError(t, err)
		require.Len(t, table, 5)
		for i := 0; i < 4; i++ {
			assert.Equal(t, 0.05, table[i].Belpex, "quarter %d", i)
		}
		assert.Equal(t, 0.07, table[4].Belpex)
	})

	t.Run("MissingPriceHourIsZero", func(t *testing.T) {
		imp := quarterSeries(types.ColumnImport, start, 1)
		price := types.Series{
			Column:     types.ColumnBelpex,
			Resolution: types.PriceResolution,
			Samples:    []types.Sample{{TS: start.Add(3 * time.Hour), Value: 0.1}},
		}

		table, err := Merge([]types.Series{imp}, &price, nil)
		require.NoError(t, err)
		assert.Equal(t, 0.0, table[0].Belpex)
	})

	t.Run("YearAgnosticPVMatch", func(t *testing.T) {
		meterTS := time.Date(2023, 6, 15, 10, 15, 0, 0, time.UTC)
		imp := types.Series{Column: types.ColumnImport, Samples: []types.Sample{
			{TS: meterTS, Value: 1},
			{TS: time.Date(2023, 6, 16, 10, 15, 0, 0, time.UTC), Value: 1},
		}}
		pvgis := types.Series{Column: types.ColumnPVGIS, Samples: []types.Sample{
			{TS: time.Date(2020, 6, 15, 10, 15, 0, 0, time.UTC), Value: 0.8},
		}}

		table, err := Merge([]types.Series{imp}, nil, &pvgis)
		require.NoError(t, err)
		require.Len(t, table, 2)
		// 2020-06-15 10:15 matches 2023-06-15 10:15 but not the 16th.
		assert.Equal(t, 0.8, table[0].PVGISKWH)
		assert.Equal(t, 0.0, table[1].PVGISKWH)
	})

	t.Run("AllEmptyIsNoValidInput", func(t *testing.T) {
		empty := types.Series{Column: types.ColumnImport}
		_, err := Merge([]types.Series{empty, {Column: types.ColumnInjection}}, nil, nil)
		assert.ErrorIs(t, err, types.ErrNoValidInput)
	})

	t.Run("SortedAscending", func(t *testing.T) {
		imp := types.Series{Column: types.ColumnImport, Samples: []types.Sample{
			{TS: start.Add(30 * time.Minute), Value: 3},
			{TS: start, Value: 1},
			{TS: start.Add(15 * time.Minute), Value: 2},
		}}

		table, err := Merge([]types.Series{imp}, nil, nil)
		require.NoError(t, err)
		for i := 1; i < len(table); i++ {
			assert.True(t, table[i-1].TS.Before(table[i].TS))
		}
	})
}

func TestFilterRange(t *testing.T) {
	day := func(d int, hour int) types.Row {
		return types.Row{TS: time.Date(2023, 6, d, hour, 0, 0, 0, time.UTC)}
	}
	table := types.Table{day(14, 23), day(15, 0), day(15, 12), day(15, 23), day(16, 0)}

	t.Run("SameDayStartAndEnd", func(t *testing.T) {
		d := time.Date(2023, 6, 15, 0, 0, 0, 0, time.UTC)
		filtered, err := FilterRange(table, d, d)
		require.NoError(t, err)
		require.Len(t, filtered, 3)
		for _, row := range filtered {
			assert.Equal(t, 15, row.TS.Day())
		}
	})

	t.Run("EndBeforeStart", func(t *testing.T) {
		_, err := FilterRange(table,
			time.Date(2023, 6, 16, 0, 0, 0, 0, time.UTC),
			time.Date(2023, 6, 15, 0, 0, 0, 0, time.UTC))
		assert.ErrorIs(t, err, types.ErrEndBeforeStart)
	})

	t.Run("TimeOfDayIgnoredInBounds", func(t *testing.T) {
		// An end date at midnight still includes that whole day.
		filtered, err := FilterRange(table,
			time.Date(2023, 6, 14, 18, 0, 0, 0, time.UTC),
			time.Date(2023, 6, 15, 0, 0, 0, 0, time.UTC))
		require.NoError(t, err)
		assert.Len(t, filtered, 4)
	})
}

func TestBounds(t *testing.T) {
	table := types.Table{
		{TS: time.Date(2023, 6, 14, 0, 0, 0, 0, time.UTC)},
		{TS: time.Date(2023, 6, 16, 0, 0, 0, 0, time.UTC)},
	}
	min, max := table.Bounds()
	assert.Equal(t, 14, min.Day())
	assert.Equal(t, 16, max.Day())
}
