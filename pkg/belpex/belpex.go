// Package belpex parses the day-ahead BELPEX price export into an hourly
// price series in EUR/kWh.
package belpex

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/energiemix/energiemix/pkg/types"
)

const (
	headerDate = "Date"
	headerEuro = "Euro"
)

// The Euro column may embed currency symbols or unit text around the number;
// only the first signed decimal-comma run is the price.
var priceRe = regexp.MustCompile(`-?\d+(?:,\d+)?`)

var dateTimeLayouts = []string{
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"02-01-2006 15:04:05",
	"02-01-2006 15:04",
	"2/01/2006 15:04",
	"02/01/2006",
	"02-01-2006",
}

// Parse decodes a BELPEX price file. The file is Windows-1252 encoded and
// ';' separated, with a day-before-month Date column and a Euro column in
// EUR/MWh. Cells whose price cannot be extracted are skipped; the remaining
// samples form an hourly series keyed by the floor-to-hour timestamp, with
// values converted to EUR/kWh.
func Parse(r io.Reader, name string) (types.Series, error) {
	decoded := transform.NewReader(r, charmap.Windows1252.NewDecoder())
	cr := csv.NewReader(decoded)
	cr.Comma = ';'
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil {
		return types.Series{}, &types.ParseError{File: name, Reason: "invalid csv", Err: err}
	}
	if len(records) == 0 {
		return types.Series{}, &types.ParseError{File: name, Reason: "empty file"}
	}

	dateIdx, euroIdx := -1, -1
	for i, h := range records[0] {
		switch strings.TrimSpace(h) {
		case headerDate:
			dateIdx = i
		case headerEuro:
			euroIdx = i
		}
	}
	if dateIdx < 0 || euroIdx < 0 {
		return types.Series{}, &types.ParseError{
			File:   name,
			Reason: fmt.Sprintf("missing %q or %q column", headerDate, headerEuro),
		}
	}

	var samples []types.Sample
	for i, rec := range records[1:] {
		if len(rec) <= dateIdx || len(rec) <= euroIdx {
			continue
		}
		ts, err := parseDayFirst(rec[dateIdx])
		if err != nil {
			return types.Series{}, &types.ParseError{
				File:   name,
				Reason: fmt.Sprintf("line %d: bad date %q", i+2, rec[dateIdx]),
				Err:    err,
			}
		}
		price, ok := extractPrice(rec[euroIdx])
		if !ok {
			// Missing marker: the hour simply has no price.
			continue
		}
		samples = append(samples, types.Sample{TS: ts.Truncate(time.Hour), Value: price})
	}

	series, err := types.NewSeries(types.ColumnBelpex, types.PriceResolution, samples)
	if err != nil {
		return types.Series{}, &types.ParseError{File: name, Reason: "duplicate hours", Err: err}
	}
	return series, nil
}

// LoadBundled reads the fixed deployment price file. A missing file is
// ErrPriceFileNotFound: fatal to price attachment only.
func LoadBundled(path string) (types.Series, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return types.Series{}, fmt.Errorf("%w: %s", types.ErrPriceFileNotFound, path)
		}
		return types.Series{}, err
	}
	defer f.Close()
	return Parse(f, path)
}

// extractPrice pulls the first decimal-comma number out of a Euro cell and
// converts EUR/MWh to EUR/kWh.
func extractPrice(cell string) (float64, bool) {
	m := priceRe.FindString(cell)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", "."), 64)
	if err != nil {
		return 0, false
	}
	return v / 1000, true
}

func parseDayFirst(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}
