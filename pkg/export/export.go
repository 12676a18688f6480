// Package export renders the unified table as an XLSX workbook in two
// layouts: the table as-is, or one sheet per quantity in the shape of the
// standard meter export.
package export

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/energiemix/energiemix/pkg/metrics"
	"github.com/energiemix/energiemix/pkg/types"
)

// Layout names accepted by the export endpoint.
const (
	LayoutCombined = "combined"
	LayoutSplit    = "split"
)

const (
	combinedSheet  = "Data"
	dateTimeFormat = "2006-01-02 15:04"
	dateFormat     = "02-01-2006"
	timeFormat     = "15:04:05"
	unitLabel      = "KWH"
)

// Render produces the workbook bytes for the given layout.
func Render(table types.Table, layout string) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	switch layout {
	case LayoutCombined:
		data, err = Combined(table)
	case LayoutSplit:
		data, err = Split(table)
	default:
		return nil, fmt.Errorf("unknown export layout: %s", layout)
	}
	if err != nil {
		return nil, err
	}
	metrics.Exports.WithLabelValues(layout).Inc()
	return data, nil
}

// Combined writes the unified table unchanged onto a single sheet.
func Combined(table types.Table) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", combinedSheet); err != nil {
		return nil, err
	}

	headers := []string{"Date", types.ColumnImport, types.ColumnInjection, types.ColumnPV, types.ColumnBelpex, types.ColumnPVGIS}
	for col, h := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(combinedSheet, cell, h); err != nil {
			return nil, err
		}
	}
	for i, row := range table {
		values := []interface{}{
			row.TS.Format(dateTimeFormat),
			row.ImportKWH,
			row.InjectionKWH,
			row.PVKWH,
			row.Belpex,
			row.PVGISKWH,
		}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(combinedSheet, cell, v); err != nil {
				return nil, err
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// splitQuantity maps one unified-table column onto a sheet in the standard
// meter row shape.
type splitQuantity struct {
	sheet    string
	register string
	value    func(types.Row) float64
}

var splitQuantities = []splitQuantity{
	{"Afname", types.RegisterImport, func(r types.Row) float64 { return r.ImportKWH }},
	{"Injectie", types.RegisterInjection, func(r types.Row) float64 { return r.InjectionKWH }},
	{"Hulpverbruik", types.RegisterAuxiliary, func(r types.Row) float64 { return r.PVKWH }},
	{"PVGIS", "PVGIS Productie", func(r types.Row) float64 { return r.PVGISKWH }},
}

// Split writes one sheet per quantity whose values do not sum to exactly
// zero over the table, each re-expressed in the standard meter file row
// shape with a 15-minute end timestamp and decimal-comma volumes. Zero-sum
// quantities get no sheet at all.
func Split(table types.Table) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	first := true
	for _, q := range splitQuantities {
		sum := 0.0
		for _, row := range table {
			sum += q.value(row)
		}
		if sum == 0 {
			continue
		}
		if first {
			if err := f.SetSheetName("Sheet1", q.sheet); err != nil {
				return nil, err
			}
			first = false
		} else {
			if _, err := f.NewSheet(q.sheet); err != nil {
				return nil, err
			}
		}
		if err := writeSplitSheet(f, q, table); err != nil {
			return nil, err
		}
	}
	if first {
		return nil, fmt.Errorf("no quantity column has data in the selected range")
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeSplitSheet(f *excelize.File, q splitQuantity, table types.Table) error {
	headers := []string{"Van (datum)", "Van (tijdstip)", "Tot (datum)", "Tot (tijdstip)", "Register", "Volume", "Eenheid"}
	for col, h := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(q.sheet, cell, h); err != nil {
			return err
		}
	}
	for i, row := range table {
		end := row.TS.Add(15 * time.Minute)
		values := []interface{}{
			row.TS.Format(dateFormat),
			row.TS.Format(timeFormat),
			end.Format(dateFormat),
			end.Format(timeFormat),
			q.register,
			commaDecimal(q.value(row)),
			unitLabel,
		}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(q.sheet, cell, v); err != nil {
				return err
			}
		}
	}
	return nil
}

// commaDecimal formats a volume the way the source files spell numbers.
func commaDecimal(v float64) string {
	return strings.ReplaceAll(strconv.FormatFloat(v, 'f', -1, 64), ".", ",")
}

// Filename encodes the selected date range and layout.
func Filename(start, end time.Time, layout string) string {
	return fmt.Sprintf("energiemix_%s_%s_%s.xlsx",
		layout, start.Format("2006-01-02"), end.Format("2006-01-02"))
}
