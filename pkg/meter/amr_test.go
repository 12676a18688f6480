package meter

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/energiemix/energiemix/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// amrRow builds one AMR data row: day start, filler fields, indicator at
// field 8, two filler fields, then 96 quarter-hour values.
func amrRow(dayStart, indicator string, values []string) string {
	fields := make([]string, 0, amrFirstValueField+amrValueCount)
	fields = append(fields, dayStart)
	for i := 1; i < amrIndicatorField; i++ {
		fields = append(fields, fmt.Sprintf("x%d", i))
	}
	fields = append(fields, indicator, "x8", "x9")
	fields = append(fields, values...)
	return strings.Join(fields, ";")
}

func amrValues(fill string) []string {
	values := make([]string, amrValueCount)
	for i := range values {
		values[i] = fill
	}
	return values
}

const amrPreamble = "AMR EXPORT\nMeter 541448811111111111\n\n \n"

func TestParseAMR(t *testing.T) {
	t.Run("IntervalIndexing", func(t *testing.T) {
		values := amrValues("0,000")
		values[0] = "1,234"
		values[95] = "5,678"
		data := amrPreamble + amrRow("15062023 00:00", "KWT", values) + "\n"

		series, err := ParseAMR(strings.NewReader(data), "amr.csv", types.ColumnImport)
		require.NoError(t, err)
		require.Len(t, series.Samples, amrValueCount)

		// First value column is the interval ending 00:15.
		first := series.Samples[0]
		assert.Equal(t, time.Date(2023, 6, 15, 0, 15, 0, 0, time.UTC), first.TS)
		assert.Equal(t, 1.234, first.Value)

		// 96th value column is 24:00, i.e. next-day midnight.
		last := series.Samples[95]
		assert.Equal(t, time.Date(2023, 6, 16, 0, 0, 0, 0, time.UTC), last.TS)
		assert.Equal(t, 5.678, last.Value)
	})

	t.Run("NonKWTRowsIgnored", func(t *testing.T) {
		data := amrPreamble +
			amrRow("15062023 00:00", "GAS", amrValues("9,999")) + "\n" +
			amrRow("16062023 00:00", "KWT", amrValues("0,100")) + "\n"

		series, err := ParseAMR(strings.NewReader(data), "amr.csv", types.ColumnImport)
		require.NoError(t, err)
		assert.Len(t, series.Samples, amrValueCount)
		assert.Equal(t, 0.1, series.Samples[0].Value)
	})

	t.Run("UnparseableValueDefaultsToZero", func(t *testing.T) {
		values := amrValues("0,500")
		values[10] = "??"
		data := amrPreamble + amrRow("15062023 00:00", "KWT", values) + "\n"

		series, err := ParseAMR(strings.NewReader(data), "amr.csv", types.ColumnImport)
		require.NoError(t, err)
		assert.Equal(t, 0.0, series.Samples[10].Value)
		assert.Equal(t, 0.5, series.Samples[11].Value)
	})

	t.Run("NoKWTRowsIsWarning", func(t *testing.T) {
		data := amrPreamble + amrRow("15062023 00:00", "GAS", amrValues("1,0")) + "\n"

		series, err := ParseAMR(strings.NewReader(data), "amr.csv", types.ColumnImport)
		var warn *types.EmptyFilterWarning
		require.ErrorAs(t, err, &warn)
		assert.Equal(t, "KWT", warn.Filter)
		assert.True(t, series.Empty())
	})

	t.Run("BadDayStartIsParseError", func(t *testing.T) {
		data := amrPreamble + amrRow("not-a-date", "KWT", amrValues("1,0")) + "\n"

		_, err := ParseAMR(strings.NewReader(data), "amr.csv", types.ColumnImport)
		var perr *types.ParseError
		require.ErrorAs(t, err, &perr)
	})

	t.Run("TwoDaysChainAtMidnight", func(t *testing.T) {
		data := amrPreamble +
			amrRow("15062023 00:00", "KWT", amrValues("0,100")) + "\n" +
			amrRow("16062023 00:00", "KWT", amrValues("0,200")) + "\n"

		series, err := ParseAMR(strings.NewReader(data), "amr.csv", types.ColumnImport)
		require.NoError(t, err)
		require.Len(t, series.Samples, 2*amrValueCount)
		// Day one's 24:00 sample and day two's 00:15 sample are distinct.
		assert.Equal(t, time.Date(2023, 6, 16, 0, 0, 0, 0, time.UTC), series.Samples[95].TS)
		assert.Equal(t, time.Date(2023, 6, 16, 0, 15, 0, 0, time.UTC), series.Samples[96].TS)
	})

	t.Run("DuplicateDayIsParseError", func(t *testing.T) {
		data := amrPreamble +
			amrRow("15062023 00:00", "KWT", amrValues("0,100")) + "\n" +
			amrRow("15062023 00:00", "KWT", amrValues("0,200")) + "\n"

		_, err := ParseAMR(strings.NewReader(data), "amr.csv", types.ColumnImport)
		var perr *types.ParseError
		require.ErrorAs(t, err, &perr)
	})
}
