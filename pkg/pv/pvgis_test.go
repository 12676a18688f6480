package pv

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/energiemix/energiemix/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seriesCalcFixture(watts float64) string {
	return fmt.Sprintf(`Latitude (decimal degrees):	50.800
Longitude (decimal degrees):	4.400
Slope: 35 deg.

time,P,G(i),H_sun,T2m,WS10m,Int
20200615:1010,%.1f,600.0,40.0,20.0,2.0,0.0
20200615:1110,%.1f,650.0,42.0,21.0,2.0,0.0

P: PV system power (W)
`, watts, watts)
}

func seriesRequest(segments ...types.Segment) types.PVRequest {
	return types.PVRequest{
		Lat:         50.8,
		Lon:         4.4,
		LossPercent: 14,
		Year:        2020,
		Segments:    segments,
	}
}

func TestSeriesCalcEstimate(t *testing.T) {
	t.Run("OneCallPerSegmentSummed", func(t *testing.T) {
		requests := 0
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests++
			require.Equal(t, "/seriescalc", r.URL.Path)
			q := r.URL.Query()
			assert.Equal(t, "1", q.Get("pvcalculation"))
			assert.Equal(t, "2020", q.Get("startyear"))
			assert.Equal(t, "2020", q.Get("endyear"))
			switch q.Get("peakpower") {
			case "5.000":
				_, _ = w.Write([]byte(seriesCalcFixture(2000)))
			case "3.000":
				_, _ = w.Write([]byte(seriesCalcFixture(1000)))
			default:
				t.Errorf("unexpected peakpower %q", q.Get("peakpower"))
			}
		}))
		defer ts.Close()

		est := &SeriesCalc{baseURL: ts.URL, client: ts.Client()}
		series, err := est.Estimate(context.Background(), seriesRequest(
			types.Segment{PeakPowerKW: 5, TiltDeg: 35, AzimuthDeg: 0},
			types.Segment{PeakPowerKW: 3, TiltDeg: 20, AzimuthDeg: 45},
		))
		require.NoError(t, err)
		assert.Equal(t, 2, requests)

		// Two hours expand into eight quarter samples; 3000 W summed over an
		// hour is 3 kWh, 0.75 kWh per quarter.
		require.Len(t, series.Samples, 8)
		assert.Equal(t, time.Date(2020, 6, 15, 10, 0, 0, 0, time.UTC), series.Samples[0].TS)
		assert.InDelta(t, 0.75, series.Samples[0].Value, 1e-9)
		assert.Equal(t, time.Date(2020, 6, 15, 10, 45, 0, 0, time.UTC), series.Samples[3].TS)
		assert.Equal(t, time.Date(2020, 6, 15, 11, 0, 0, 0, time.UTC), series.Samples[4].TS)
	})

	t.Run("FailingSegmentSkipped", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("peakpower") == "3.000" {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			_, _ = w.Write([]byte(seriesCalcFixture(2000)))
		}))
		defer ts.Close()

		est := &SeriesCalc{baseURL: ts.URL, client: ts.Client()}
		series, err := est.Estimate(context.Background(), seriesRequest(
			types.Segment{PeakPowerKW: 5, TiltDeg: 35, AzimuthDeg: 0},
			types.Segment{PeakPowerKW: 3, TiltDeg: 20, AzimuthDeg: 45},
		))
		require.NoError(t, err, "a single failing segment must not fail the estimate")
		require.Len(t, series.Samples, 8)
		// Only the healthy segment contributes: 2 kWh/h, 0.5 per quarter.
		assert.InDelta(t, 0.5, series.Samples[0].Value, 1e-9)
	})

	t.Run("AllSegmentsFailingIsEmptyWithError", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer ts.Close()

		est := &SeriesCalc{baseURL: ts.URL, client: ts.Client()}
		series, err := est.Estimate(context.Background(), seriesRequest(
			types.Segment{PeakPowerKW: 5, TiltDeg: 35, AzimuthDeg: 0},
		))
		require.Error(t, err)
		assert.True(t, series.Empty())
	})

	t.Run("CachesIdenticalRequests", func(t *testing.T) {
		requests := 0
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests++
			_, _ = w.Write([]byte(seriesCalcFixture(2000)))
		}))
		defer ts.Close()

		est := &SeriesCalc{baseURL: ts.URL, client: ts.Client()}
		req := seriesRequest(types.Segment{PeakPowerKW: 5, TiltDeg: 35, AzimuthDeg: 0})

		_, err := est.Estimate(context.Background(), req)
		require.NoError(t, err)
		_, err = est.Estimate(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, 1, requests)
	})
}

func TestEstimatorMap(t *testing.T) {
	m := NewMap()
	m.SetEstimator(DesignTMY, NewTMY("http://unused.invalid", &http.Client{}))

	e, err := m.Estimator(DesignTMY)
	require.NoError(t, err)
	assert.NotNil(t, e)

	_, err = m.Estimator("magic")
	assert.Error(t, err)
}
