package types

import (
	"fmt"
	"strings"
)

// MaxSegments is the most planar sub-arrays one estimate request may carry.
const MaxSegments = 5

// Segment describes one planar sub-array of a PV installation. Azimuth uses
// the PVGIS convention: 0 is south, -90 east, 90 west.
type Segment struct {
	PeakPowerKW float64 `json:"peakPowerKW"`
	TiltDeg     float64 `json:"tiltDeg"`
	AzimuthDeg  float64 `json:"azimuthDeg"`
}

// PVRequest is the input to a production estimate: one location and loss
// percentage shared by up to MaxSegments segments. Year is the reference
// simulation year and is only meaningful to estimators that fetch a specific
// year; typical-year estimators ignore it.
type PVRequest struct {
	Lat         float64   `json:"lat"`
	Lon         float64   `json:"lon"`
	LossPercent float64   `json:"lossPercent"`
	Year        int       `json:"year"`
	Segments    []Segment `json:"segments"`
}

// Validate checks the request bounds before any remote call is made.
func (r PVRequest) Validate() error {
	if len(r.Segments) == 0 {
		return fmt.Errorf("at least one PV segment is required")
	}
	if len(r.Segments) > MaxSegments {
		return fmt.Errorf("at most %d PV segments are supported, got %d", MaxSegments, len(r.Segments))
	}
	if r.Lat < -90 || r.Lat > 90 {
		return fmt.Errorf("latitude %g out of range [-90, 90]", r.Lat)
	}
	if r.Lon < -180 || r.Lon > 180 {
		return fmt.Errorf("longitude %g out of range [-180, 180]", r.Lon)
	}
	if r.LossPercent < 0 || r.LossPercent > 100 {
		return fmt.Errorf("system loss %g%% out of range [0, 100]", r.LossPercent)
	}
	for i, seg := range r.Segments {
		if seg.PeakPowerKW <= 0 {
			return fmt.Errorf("segment %d: peak power must be positive", i+1)
		}
		if seg.TiltDeg < 0 || seg.TiltDeg > 90 {
			return fmt.Errorf("segment %d: tilt %g out of range [0, 90]", i+1, seg.TiltDeg)
		}
		if seg.AzimuthDeg < -180 || seg.AzimuthDeg > 180 {
			return fmt.Errorf("segment %d: azimuth %g out of range [-180, 180]", i+1, seg.AzimuthDeg)
		}
	}
	return nil
}

// CacheKey identifies an estimate input. Two requests with the same key must
// produce the same series, so estimators reuse the previous result.
func (r PVRequest) CacheKey() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%.5f,%.5f,%.2f,%d", r.Lat, r.Lon, r.LossPercent, r.Year)
	for _, seg := range r.Segments {
		fmt.Fprintf(&b, "|%.3f,%.1f,%.1f", seg.PeakPowerKW, seg.TiltDeg, seg.AzimuthDeg)
	}
	return b.String()
}
