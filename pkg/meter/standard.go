package meter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/energiemix/energiemix/pkg/types"
)

// Column headers of the standard register-tagged export.
const (
	headerStartDate = "Van (datum)"
	headerStartTime = "Van (tijdstip)"
	headerRegister  = "Register"
	headerVolume    = "Volume"
)

// dateLayouts are tried in order for the date column. Ambiguous numeric
// dates are day-before-month.
var dateLayouts = []string{
	"02-01-2006",
	"2-1-2006",
	"02/01/2006",
	"2/1/2006",
}

var timeLayouts = []string{
	"15:04:05",
	"15:04",
}

// ParseStandard decodes a standard register-tagged meter export and keeps
// only the rows whose register label equals register. The file uses ';' as
// field separator and ',' as decimal separator. A missing required column or
// a date/volume cell that cannot convert fails the whole file; zero matching
// rows is a warning (*types.EmptyFilterWarning) with an empty series.
func ParseStandard(r io.Reader, name, register, column string) (types.Series, error) {
	cr := csv.NewReader(r)
	cr.Comma = ';'
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil {
		return types.Series{}, &types.ParseError{File: name, Reason: "invalid csv", Err: err}
	}
	if len(records) == 0 {
		return types.Series{}, &types.ParseError{File: name, Reason: "empty file"}
	}

	idx, err := columnIndexes(records[0], name)
	if err != nil {
		return types.Series{}, err
	}

	var samples []types.Sample
	for i, rec := range records[1:] {
		line := i + 2
		if isBlank(rec) {
			continue
		}
		if !validRow(rec, idx) {
			return types.Series{}, &types.ParseError{
				File:   name,
				Reason: fmt.Sprintf("line %d has too few fields", line),
			}
		}
		ts, err := parseDateTime(rec[idx.date], rec[idx.tm])
		if err != nil {
			return types.Series{}, &types.ParseError{
				File:   name,
				Reason: fmt.Sprintf("line %d: bad timestamp", line),
				Err:    err,
			}
		}
		if strings.TrimSpace(rec[idx.register]) != register {
			continue
		}
		v, err := parseCommaFloat(rec[idx.volume])
		if err != nil {
			return types.Series{}, &types.ParseError{
				File:   name,
				Reason: fmt.Sprintf("line %d: bad volume %q", line, rec[idx.volume]),
				Err:    err,
			}
		}
		samples = append(samples, types.Sample{TS: ts, Value: v})
	}

	if len(samples) == 0 {
		return types.Series{Column: column, Resolution: types.MeterResolution},
			&types.EmptyFilterWarning{File: name, Filter: register}
	}

	series, err := types.NewSeries(column, types.MeterResolution, samples)
	if err != nil {
		return types.Series{}, &types.ParseError{File: name, Reason: "duplicate timestamps", Err: err}
	}
	return series, nil
}

type columnIdx struct {
	date, tm, register, volume int
}

func columnIndexes(header []string, name string) (columnIdx, error) {
	idx := columnIdx{date: -1, tm: -1, register: -1, volume: -1}
	for i, h := range header {
		switch strings.TrimSpace(h) {
		case headerStartDate:
			idx.date = i
		case headerStartTime:
			idx.tm = i
		case headerRegister:
			idx.register = i
		case headerVolume:
			idx.volume = i
		}
	}
	var missing []string
	for _, c := range []struct {
		name string
		i    int
	}{
		{headerStartDate, idx.date},
		{headerStartTime, idx.tm},
		{headerRegister, idx.register},
		{headerVolume, idx.volume},
	} {
		if c.i < 0 {
			missing = append(missing, c.name)
		}
	}
	if len(missing) > 0 {
		return idx, &types.ParseError{
			File:   name,
			Reason: "missing required columns: " + strings.Join(missing, ", "),
		}
	}
	return idx, nil
}

func (c columnIdx) max() int {
	m := c.date
	for _, i := range []int{c.tm, c.register, c.volume} {
		if i > m {
			m = i
		}
	}
	return m
}

func validRow(rec []string, idx columnIdx) bool {
	return len(rec) > idx.max()
}

func isBlank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func parseDateTime(date, tm string) (time.Time, error) {
	date = strings.TrimSpace(date)
	tm = strings.TrimSpace(tm)
	var d time.Time
	var err error
	for _, layout := range dateLayouts {
		if d, err = time.ParseInLocation(layout, date, time.UTC); err == nil {
			break
		}
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognized date %q", date)
	}
	for _, layout := range timeLayouts {
		var t time.Time
		if t, err = time.Parse(layout, tm); err == nil {
			return time.Date(d.Year(), d.Month(), d.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", tm)
}

func parseCommaFloat(s string) (float64, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	return strconv.ParseFloat(s, 64)
}
