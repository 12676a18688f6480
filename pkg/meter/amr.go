package meter

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/energiemix/energiemix/pkg/types"
)

const (
	// amrHeaderLines is the number of leading non-data lines in an AMR export.
	amrHeaderLines = 4
	// amrIndicator marks a row carrying quarter-hourly energy values.
	amrIndicator = "KWT"
	// amrIndicatorField is the 0-based index of the indicator field.
	amrIndicatorField = 7
	// amrFirstValueField is the 0-based index of the first of 96 value fields.
	amrFirstValueField = 10
	// amrValueCount is the number of quarter-hour values per day row.
	amrValueCount = 96

	amrDayLayout = "02012006 15:04"
)

// ParseAMR decodes a raw AMR interval-block export: 4 leading non-data
// lines, then headerless ';'-separated rows. A row is retained when its 8th
// field equals "KWT"; its first field is the start-of-day timestamp and
// fields 11 through 106 hold the 96 quarter-hour values of that day.
//
// Value index i maps to dayStart + (i+1)*15min: the first value column is
// the interval ending 00:15 and the 96th is 24:00, rolling into the next
// day. Unparseable values default to 0 rather than failing the row. A file
// with zero KWT rows yields an empty series and an *types.EmptyFilterWarning.
func ParseAMR(r io.Reader, name, column string) (types.Series, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var samples []types.Sample
	matched := 0
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if lineNo <= amrHeaderLines {
			continue
		}
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Split(line, ";")
		if len(fields) <= amrIndicatorField {
			continue
		}
		if strings.TrimSpace(fields[amrIndicatorField]) != amrIndicator {
			continue
		}
		matched++
		dayStart, err := time.ParseInLocation(amrDayLayout, strings.TrimSpace(fields[0]), time.UTC)
		if err != nil {
			return types.Series{}, &types.ParseError{
				File:   name,
				Reason: fmt.Sprintf("line %d: bad day start %q", lineNo, fields[0]),
				Err:    err,
			}
		}
		if len(fields) < amrFirstValueField+amrValueCount {
			return types.Series{}, &types.ParseError{
				File:   name,
				Reason: fmt.Sprintf("line %d: expected %d value fields, got %d", lineNo, amrValueCount, len(fields)-amrFirstValueField),
			}
		}
		for i := 0; i < amrValueCount; i++ {
			v, err := parseCommaFloat(fields[amrFirstValueField+i])
			if err != nil {
				v = 0
			}
			samples = append(samples, types.Sample{
				TS:    dayStart.Add(time.Duration(i+1) * 15 * time.Minute),
				Value: v,
			})
		}
	}
	if err := scanner.Err(); err != nil {
		return types.Series{}, &types.ParseError{File: name, Reason: "read failed", Err: err}
	}

	if matched == 0 {
		return types.Series{Column: column, Resolution: types.MeterResolution},
			&types.EmptyFilterWarning{File: name, Filter: amrIndicator}
	}

	series, err := types.NewSeries(column, types.MeterResolution, samples)
	if err != nil {
		return types.Series{}, &types.ParseError{File: name, Reason: "duplicate timestamps", Err: err}
	}
	return series, nil
}
