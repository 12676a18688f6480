package pv

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/energiemix/energiemix/pkg/log"
	"github.com/energiemix/energiemix/pkg/metrics"
	"github.com/energiemix/energiemix/pkg/types"
)

// pvgisTimeLayout is the timestamp format of PVGIS csv time series.
const pvgisTimeLayout = "20060102:1504"

// SeriesCalc estimates production with one PVGIS seriescalc call per
// segment: the remote service simulates each plane and returns its hourly
// power, which is summed across segments locally. A failing segment is
// skipped and reported; only when every segment fails is the estimate empty.
type SeriesCalc struct {
	baseURL string
	client  *http.Client
	cache   resultCache
}

// Estimate implements Estimator.
func (s *SeriesCalc) Estimate(ctx context.Context, req types.PVRequest) (types.Series, error) {
	if err := req.Validate(); err != nil {
		return types.Series{}, err
	}
	key := req.CacheKey()
	if series, ok := s.cache.get(key); ok {
		log.Ctx(ctx).DebugContext(ctx, "pv estimate served from cache", slog.String("design", DesignSeries))
		return series, nil
	}

	totals := make(map[time.Time]float64)
	var failures []error
	for i, seg := range req.Segments {
		hourly, err := s.fetchSegment(ctx, req, seg)
		if err != nil {
			metrics.PVGISRequests.WithLabelValues(DesignSeries, metrics.ResultError).Inc()
			log.Ctx(ctx).WarnContext(ctx, "pv segment fetch failed, skipping segment",
				slog.Int("segment", i+1), slog.Any("error", err))
			failures = append(failures, fmt.Errorf("segment %d: %w", i+1, err))
			continue
		}
		metrics.PVGISRequests.WithLabelValues(DesignSeries, metrics.ResultOK).Inc()
		for ts, watts := range hourly {
			totals[ts] += watts
		}
	}
	if len(failures) == len(req.Segments) {
		return types.Series{Column: types.ColumnPVGIS, Resolution: types.MeterResolution},
			errors.Join(failures...)
	}

	series := quarterHourSeries(totals)
	s.cache.put(key, series)
	return series, nil
}

// fetchSegment requests the hourly power series (watts, keyed by hour start)
// for one plane from the seriescalc endpoint.
func (s *SeriesCalc) fetchSegment(ctx context.Context, req types.PVRequest, seg types.Segment) (map[time.Time]float64, error) {
	endpoint := s.baseURL + "/seriescalc"
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(req.Lat, 'f', 5, 64))
	q.Set("lon", strconv.FormatFloat(req.Lon, 'f', 5, 64))
	q.Set("startyear", strconv.Itoa(req.Year))
	q.Set("endyear", strconv.Itoa(req.Year))
	q.Set("pvcalculation", "1")
	q.Set("peakpower", strconv.FormatFloat(seg.PeakPowerKW, 'f', 3, 64))
	q.Set("loss", strconv.FormatFloat(req.LossPercent, 'f', 2, 64))
	q.Set("angle", strconv.FormatFloat(seg.TiltDeg, 'f', 1, 64))
	q.Set("aspect", strconv.FormatFloat(seg.AzimuthDeg, 'f', 1, 64))
	q.Set("raddatabase", "PVGIS-SARAH2")
	q.Set("outputformat", "csv")

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, &types.RemoteFetchError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &types.RemoteFetchError{Endpoint: endpoint, Status: resp.StatusCode}
	}
	return parseSeriesCalcCSV(resp.Body)
}

// parseSeriesCalcCSV reads the power column from a seriescalc csv response.
// The payload wraps the data in free-form metadata; the data block starts at
// the header line beginning "time,".
func parseSeriesCalcCSV(r io.Reader) (map[time.Time]float64, error) {
	scanner := bufio.NewScanner(r)
	hourly := make(map[time.Time]float64)
	inData := false
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !inData {
			if strings.HasPrefix(line, "time,") {
				inData = true
			}
			continue
		}
		if line == "" {
			break
		}
		fields := strings.Split(line, ",")
		if len(fields) < 2 {
			break
		}
		ts, err := time.ParseInLocation(pvgisTimeLayout, fields[0], time.UTC)
		if err != nil {
			// Footer notes follow the data block.
			break
		}
		watts, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, fmt.Errorf("bad power value %q: %w", fields[1], err)
		}
		hourly[ts.Truncate(time.Hour)] += watts
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(hourly) == 0 {
		return nil, fmt.Errorf("no data rows in seriescalc response")
	}
	return hourly, nil
}
