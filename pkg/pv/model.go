package pv

import (
	"math"
	"time"

	"github.com/energiemix/energiemix/pkg/types"
)

// Physical constants of the conversion model.
const (
	// noctC is the nominal operating cell temperature.
	noctC = 45.0
	// tempCoeffPerC derates crystalline silicon output per degree above 25°C.
	tempCoeffPerC = -0.004
	// groundAlbedo is the assumed ground reflectance.
	groundAlbedo = 0.2
	// stcIrradiance is the standard test condition irradiance in W/m².
	stcIrradiance = 1000.0
)

// weatherHour is one hour of typical-year weather input: ambient temperature
// and global-horizontal, beam-normal and diffuse-horizontal irradiance in
// W/m².
type weatherHour struct {
	TS    time.Time
	TempC float64
	GHI   float64
	DNI   float64
	DHI   float64
}

// segmentPowerW computes one segment's AC power (watts) for one weather
// hour: plane-of-array transposition, NOCT cell temperature, temperature
// derating and the flat system loss.
func segmentPowerW(w weatherHour, lat, lon float64, seg types.Segment, lossPercent float64) float64 {
	poa := planeOfArrayIrradiance(w, lat, lon, seg.TiltDeg, seg.AzimuthDeg)
	if poa <= 0 {
		return 0
	}
	cellTemp := w.TempC + (noctC-20)/800*poa
	derate := 1 + tempCoeffPerC*(cellTemp-25)
	if derate < 0 {
		derate = 0
	}
	watts := seg.PeakPowerKW * 1000 * (poa / stcIrradiance) * derate * (1 - lossPercent/100)
	if watts < 0 {
		return 0
	}
	return watts
}

// planeOfArrayIrradiance transposes the horizontal irradiance components
// onto a plane with the given tilt and azimuth (PVGIS convention: azimuth 0
// is south, negative east, positive west). Beam uses the incidence angle,
// diffuse an isotropic sky, plus an isotropic ground reflectance term.
func planeOfArrayIrradiance(w weatherHour, lat, lon, tiltDeg, azimuthDeg float64) float64 {
	if w.GHI <= 0 && w.DHI <= 0 {
		return 0
	}
	cosInc, sunUp := cosIncidence(w.TS, lat, lon, tiltDeg, azimuthDeg)

	tilt := radians(tiltDeg)
	poa := w.DHI * (1 + math.Cos(tilt)) / 2
	poa += w.GHI * groundAlbedo * (1 - math.Cos(tilt)) / 2
	if sunUp && cosInc > 0 {
		poa += w.DNI * cosInc
	}
	return poa
}

// cosIncidence returns the cosine of the sun's incidence angle on the tilted
// plane at the given instant (UTC), and whether the sun is above the
// horizon.
func cosIncidence(ts time.Time, lat, lon, tiltDeg, azimuthDeg float64) (float64, bool) {
	n := float64(ts.YearDay())

	// Solar declination (Cooper) and equation of time, both in the usual
	// engineering approximations.
	decl := radians(23.45 * math.Sin(2*math.Pi*(284+n)/365))
	b := 2 * math.Pi * (n - 81) / 364
	eotMinutes := 9.87*math.Sin(2*b) - 7.53*math.Cos(b) - 1.5*math.Sin(b)

	clockHours := float64(ts.Hour()) + float64(ts.Minute())/60
	solarHours := clockHours + lon/15 + eotMinutes/60
	hourAngle := radians(15 * (solarHours - 12))

	phi := radians(lat)
	beta := radians(tiltDeg)
	gamma := radians(azimuthDeg)

	sinElev := math.Sin(phi)*math.Sin(decl) + math.Cos(phi)*math.Cos(decl)*math.Cos(hourAngle)
	if sinElev <= 0 {
		return 0, false
	}

	// Duffie & Beckman incidence angle for an arbitrarily oriented plane,
	// surface azimuth measured from south.
	cosInc := math.Sin(decl)*math.Sin(phi)*math.Cos(beta) -
		math.Sin(decl)*math.Cos(phi)*math.Sin(beta)*math.Cos(gamma) +
		math.Cos(decl)*math.Cos(phi)*math.Cos(beta)*math.Cos(hourAngle) +
		math.Cos(decl)*math.Sin(phi)*math.Sin(beta)*math.Cos(gamma)*math.Cos(hourAngle) +
		math.Cos(decl)*math.Sin(beta)*math.Sin(gamma)*math.Sin(hourAngle)
	return cosInc, true
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
