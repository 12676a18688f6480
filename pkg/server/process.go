package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/energiemix/energiemix/pkg/belpex"
	"github.com/energiemix/energiemix/pkg/log"
	"github.com/energiemix/energiemix/pkg/merge"
	"github.com/energiemix/energiemix/pkg/meter"
	"github.com/energiemix/energiemix/pkg/metrics"
	"github.com/energiemix/energiemix/pkg/types"
)

const (
	maxUploadBytes = 32 << 20
	previewRows    = 5
)

// meterSlots maps the multipart field names onto the register filter and the
// unified-table column each file feeds.
var meterSlots = []struct {
	field    string
	register string
	column   string
}{
	{"import", types.RegisterImport, types.ColumnImport},
	{"injection", types.RegisterInjection, types.ColumnInjection},
	{"auxiliary", types.RegisterAuxiliary, types.ColumnPV},
}

type processResponse struct {
	Session  string       `json:"session"`
	Rows     int          `json:"rows"`
	MinDate  string       `json:"minDate"`
	MaxDate  string       `json:"maxDate"`
	Preview  []previewRow `json:"preview"`
	Warnings []string     `json:"warnings,omitempty"`
	Errors   []string     `json:"errors,omitempty"`
}

type previewRow struct {
	Date         string  `json:"date"`
	ImportKWH    float64 `json:"import_kwh"`
	InjectionKWH float64 `json:"injection_kwh"`
	PVKWH        float64 `json:"pv_kwh"`
	Belpex       float64 `json:"BELPEX"`
	PVGISKWH     float64 `json:"PVGIS_kwh"`
}

// report collects per-file warnings and errors so one bad input never aborts
// the siblings.
type report struct {
	warnings []string
	errors   []string
}

func (rp *report) warn(format string, args ...interface{}) {
	rp.warnings = append(rp.warnings, fmt.Sprintf(format, args...))
}

func (rp *report) fail(format string, args ...interface{}) {
	rp.errors = append(rp.errors, fmt.Sprintf(format, args...))
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSONError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}

	fileType := r.FormValue("fileType")
	if fileType == "" {
		fileType = "standard"
	}
	if fileType != "standard" && fileType != "amr" {
		writeJSONError(w, "fileType must be standard or amr", http.StatusBadRequest)
		return
	}

	var rp report

	meterSeries := make([]types.Series, 0, len(meterSlots))
	for _, slot := range meterSlots {
		file, header, err := r.FormFile(slot.field)
		if errors.Is(err, http.ErrMissingFile) {
			continue
		}
		if err != nil {
			rp.fail("%s: %v", slot.field, err)
			continue
		}
		series := s.parseMeterFile(file, header.Filename, fileType, slot.register, slot.column, &rp)
		file.Close()
		meterSeries = append(meterSeries, series)
	}

	price := s.priceSeries(r, &rp)
	pvgis := s.pvSeries(r, &rp)

	table, err := merge.Merge(meterSeries, price, pvgis)
	if err != nil {
		if errors.Is(err, types.ErrNoValidInput) {
			msg := "no meter file produced any data"
			if len(rp.errors) > 0 {
				msg += ": " + rp.errors[0]
			}
			writeJSONError(w, msg, http.StatusBadRequest)
			return
		}
		log.Ctx(ctx).ErrorContext(ctx, "merge failed", slog.Any("error", err))
		writeJSONError(w, "failed to merge series", http.StatusInternalServerError)
		return
	}

	session, err := s.sessions.Put(table)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to store session", slog.Any("error", err))
		writeJSONError(w, "failed to store result", http.StatusInternalServerError)
		return
	}

	min, max := table.Bounds()
	resp := processResponse{
		Session:  session,
		Rows:     len(table),
		MinDate:  min.Format("2006-01-02"),
		MaxDate:  max.Format("2006-01-02"),
		Warnings: rp.warnings,
		Errors:   rp.errors,
	}
	for i := 0; i < len(table) && i < previewRows; i++ {
		row := table[i]
		resp.Preview = append(resp.Preview, previewRow{
			Date:         row.TS.Format("2006-01-02 15:04"),
			ImportKWH:    row.ImportKWH,
			InjectionKWH: row.InjectionKWH,
			PVKWH:        row.PVKWH,
			Belpex:       row.Belpex,
			PVGISKWH:     row.PVGISKWH,
		})
	}

	log.Ctx(ctx).InfoContext(ctx, "processed upload",
		slog.Int("rows", len(table)),
		slog.Int("warnings", len(rp.warnings)),
		slog.Int("errors", len(rp.errors)))

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		panic(http.ErrAbortHandler)
	}
}

// parseMeterFile parses one uploaded meter file, recording warnings and
// errors on the report. A failed parse contributes an empty series so the
// remaining files still merge.
func (s *Server) parseMeterFile(file multipart.File, name, fileType, register, column string, rp *report) types.Series {
	var (
		series types.Series
		err    error
	)
	if fileType == "amr" {
		series, err = meter.ParseAMR(file, name, column)
	} else {
		series, err = meter.ParseStandard(file, name, register, column)
	}

	var warning *types.EmptyFilterWarning
	switch {
	case err == nil:
		metrics.FilesParsed.WithLabelValues(fileType, metrics.ResultOK).Inc()
	case errors.As(err, &warning):
		metrics.FilesParsed.WithLabelValues(fileType, metrics.ResultOK).Inc()
		rp.warn("%s", warning.Error())
	default:
		metrics.FilesParsed.WithLabelValues(fileType, metrics.ResultError).Inc()
		rp.fail("%s", err.Error())
		return types.Series{Column: column}
	}
	return series
}

// priceSeries parses the uploaded price file, falling back to the bundled
// file when one is configured. A missing or broken price source leaves the
// price column at zero.
func (s *Server) priceSeries(r *http.Request, rp *report) *types.Series {
	file, header, err := r.FormFile("belpex")
	if err == nil {
		defer file.Close()
		series, perr := belpex.Parse(file, header.Filename)
		if perr != nil {
			metrics.FilesParsed.WithLabelValues("belpex", metrics.ResultError).Inc()
			rp.fail("%s", perr.Error())
			return nil
		}
		metrics.FilesParsed.WithLabelValues("belpex", metrics.ResultOK).Inc()
		return &series
	}
	if !errors.Is(err, http.ErrMissingFile) {
		rp.fail("belpex: %v", err)
		return nil
	}

	if s.belpexPath == "" {
		return nil
	}
	series, err := belpex.LoadBundled(s.belpexPath)
	if err != nil {
		rp.warn("bundled price file: %v", err)
		return nil
	}
	return &series
}

// pvSeries runs the configured estimator when PV is enabled. An estimator
// failure is reported but never aborts the run.
func (s *Server) pvSeries(r *http.Request, rp *report) *types.Series {
	enabled, _ := strconv.ParseBool(r.FormValue("pvEnabled"))
	if !enabled {
		return nil
	}

	req, err := pvRequestFromForm(r)
	if err != nil {
		rp.fail("pv: %v", err)
		return nil
	}

	est, err := s.estimators.Estimator(s.pvDesign)
	if err != nil {
		rp.fail("pv: %v", err)
		return nil
	}

	series, err := est.Estimate(r.Context(), req)
	if err != nil {
		rp.fail("pv estimate: %v", err)
	}
	if series.Empty() {
		return nil
	}
	return &series
}

func pvRequestFromForm(r *http.Request) (types.PVRequest, error) {
	req := types.PVRequest{}

	var err error
	if req.Lat, err = formFloat(r, "lat"); err != nil {
		return req, err
	}
	if req.Lon, err = formFloat(r, "lon"); err != nil {
		return req, err
	}
	if req.LossPercent, err = formFloat(r, "loss"); err != nil {
		return req, err
	}
	if year := r.FormValue("year"); year != "" {
		req.Year, err = strconv.Atoi(year)
		if err != nil {
			return req, fmt.Errorf("invalid year: %w", err)
		}
	}

	for i := 1; i <= types.MaxSegments; i++ {
		peak := r.FormValue(fmt.Sprintf("peak%d", i))
		if peak == "" {
			continue
		}
		seg := types.Segment{}
		if seg.PeakPowerKW, err = strconv.ParseFloat(peak, 64); err != nil {
			return req, fmt.Errorf("invalid peak%d: %w", i, err)
		}
		if seg.TiltDeg, err = formFloat(r, fmt.Sprintf("tilt%d", i)); err != nil {
			return req, err
		}
		if seg.AzimuthDeg, err = formFloat(r, fmt.Sprintf("azimuth%d", i)); err != nil {
			return req, err
		}
		req.Segments = append(req.Segments, seg)
	}

	if err := req.Validate(); err != nil {
		return req, err
	}
	return req, nil
}

func formFloat(r *http.Request, field string) (float64, error) {
	v := r.FormValue(field)
	if v == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", field, err)
	}
	return f, nil
}
