package pv

import (
	"bufio"
	"context"
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

const (
	tmyAttempts    = 3
	tmyBackoffBase = 500 * time.Millisecond
)

// TMY estimates production from a single typical-meteorological-year fetch:
// one remote call per estimate regardless of segment count, followed by a
// local deterministic conversion model per segment. A transport failure
// after the bounded retries fails the whole estimate.
type TMY struct {
	baseURL string
	client  *http.Client
	cache   resultCache

	attempts int
	backoff  time.Duration
}

// NewTMY creates a TMY estimator against the given PVGIS base URL.
func NewTMY(baseURL string, client *http.Client) *TMY {
	return &TMY{
		baseURL:  baseURL,
		client:   client,
		attempts: tmyAttempts,
		backoff:  tmyBackoffBase,
	}
}

// Estimate implements Estimator.
func (t *TMY) Estimate(ctx context.Context, req types.PVRequest) (types.Series, error) {
	if err := req.Validate(); err != nil {
		return types.Series{}, err
	}
	key := req.CacheKey()
	if series, ok := t.cache.get(key); ok {
		log.Ctx(ctx).DebugContext(ctx, "pv estimate served from cache", slog.String("design", DesignTMY))
		return series, nil
	}

	weather, err := t.fetchTMY(ctx, req.Lat, req.Lon)
	if err != nil {
		metrics.PVGISRequests.WithLabelValues(DesignTMY, metrics.ResultError).Inc()
		return types.Series{}, err
	}
	metrics.PVGISRequests.WithLabelValues(DesignTMY, metrics.ResultOK).Inc()

	totals := make(map[time.Time]float64, len(weather))
	for _, w := range weather {
		var watts float64
		for _, seg := range req.Segments {
			watts += segmentPowerW(w, req.Lat, req.Lon, seg, req.LossPercent)
		}
		totals[w.TS] = watts
	}

	series := quarterHourSeries(totals)
	t.cache.put(key, series)
	return series, nil
}

// fetchTMY downloads the hourly typical-year weather dataset with a bounded
// retry: up to t.attempts tries, exponential backoff from t.backoff, retried
// only on 5xx statuses.
func (t *TMY) fetchTMY(ctx context.Context, lat, lon float64) ([]weatherHour, error) {
	endpoint := t.baseURL + "/tmy"
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(lat, 'f', 5, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', 5, 64))
	q.Set("outputformat", "csv")
	reqURL := endpoint + "?" + q.Encode()

	delay := t.backoff
	for attempt := 1; ; attempt++ {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, err
		}
		resp, err := t.client.Do(httpReq)
		if err != nil {
			return nil, &types.RemoteFetchError{Endpoint: endpoint, Err: err}
		}
		if resp.StatusCode >= 500 && attempt < t.attempts {
			resp.Body.Close()
			metrics.PVGISRetries.Inc()
			log.Ctx(ctx).WarnContext(ctx, "tmy fetch failed, retrying",
				slog.Int("status", resp.StatusCode),
				slog.Int("attempt", attempt),
				slog.Duration("backoff", delay))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
			continue
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, &types.RemoteFetchError{Endpoint: endpoint, Status: resp.StatusCode}
		}
		weather, err := parseTMYCSV(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("parse tmy response: %w", err)
		}
		return weather, nil
	}
}

// parseTMYCSV reads the hourly weather rows from a tmy csv response. The
// data block starts at the header line beginning "time(UTC)" and carries the
// ambient temperature and the three irradiance components the conversion
// model needs.
func parseTMYCSV(r io.Reader) ([]weatherHour, error) {
	scanner := bufio.NewScanner(r)
	var (
		weather              []weatherHour
		inData               bool
		t2m, ghi, dni, dhi   = -1, -1, -1, -1
		timeIdx              = -1
	)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !inData {
			if strings.HasPrefix(line, "time(UTC)") {
				for i, h := range strings.Split(line, ",") {
					switch strings.TrimSpace(h) {
					case "time(UTC)":
						timeIdx = i
					case "T2m":
						t2m = i
					case "G(h)":
						ghi = i
					case "Gb(n)":
						dni = i
					case "Gd(h)":
						dhi = i
					}
				}
				if timeIdx < 0 || t2m < 0 || ghi < 0 || dni < 0 || dhi < 0 {
					return nil, fmt.Errorf("tmy header misses required columns: %q", line)
				}
				inData = true
			}
			continue
		}
		if line == "" {
			break
		}
		fields := strings.Split(line, ",")
		max := timeIdx
		for _, i := range []int{t2m, ghi, dni, dhi} {
			if i > max {
				max = i
			}
		}
		if len(fields) <= max {
			break
		}
		ts, err := time.ParseInLocation(pvgisTimeLayout, fields[timeIdx], time.UTC)
		if err != nil {
			// Footer notes follow the data block.
			break
		}
		w := weatherHour{TS: ts.Truncate(time.Hour)}
		if w.TempC, err = strconv.ParseFloat(fields[t2m], 64); err != nil {
			return nil, fmt.Errorf("bad T2m %q: %w", fields[t2m], err)
		}
		if w.GHI, err = strconv.ParseFloat(fields[ghi], 64); err != nil {
			return nil, fmt.Errorf("bad G(h) %q: %w", fields[ghi], err)
		}
		if w.DNI, err = strconv.ParseFloat(fields[dni], 64); err != nil {
			return nil, fmt.Errorf("bad Gb(n) %q: %w", fields[dni], err)
		}
		if w.DHI, err = strconv.ParseFloat(fields[dhi], 64); err != nil {
			return nil, fmt.Errorf("bad Gd(h) %q: %w", fields[dhi], err)
		}
		weather = append(weather, w)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(weather) == 0 {
		return nil, fmt.Errorf("no data rows in tmy response")
	}
	return weather, nil
}
