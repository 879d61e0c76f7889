// Package domain defines the imagery fetch contract shared by the
// orchestrator and the provider clients.
package domain

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// PeriodWindow is one named date range, shared by every property in a
// batch. Start and End are inclusive calendar dates.
type PeriodWindow struct {
	Name  string
	Start time.Time
	End   time.Time
}

var ErrInvalidWindow = errors.New("invalid_period_window")

// NewPeriodWindow builds a window and enforces start <= end. Ordering
// between the "before" and "after" windows is caller policy and is not
// checked here.
func NewPeriodWindow(name string, start, end time.Time) (PeriodWindow, error) {
	if end.Before(start) {
		return PeriodWindow{}, fmt.Errorf("%w: %s start %s after end %s",
			ErrInvalidWindow, name, start.Format("2006-01-02"), end.Format("2006-01-02"))
	}
	return PeriodWindow{Name: name, Start: start, End: end}, nil
}

// IndexValues holds the three raw index statistics for one property and
// one period.
type IndexValues struct {
	Vegetation float64
	BuiltUp    float64
	Water      float64
}

// IndexResult is the outcome of one fetch. Failure is data: a failed
// fetch produces a result with Err set, never an error to the caller.
type IndexResult struct {
	PropertyID string
	Window     string
	Values     IndexValues
	Err        string
}

func (r IndexResult) Succeeded() bool { return r.Err == "" }

// BoundingBox is a WGS84 box in [minLon, minLat, maxLon, maxLat] order.
type BoundingBox struct {
	MinLon float64
	MinLat float64
	MaxLon float64
	MaxLat float64
}

const (
	squareMetersPerAcre = 4046.86
	minRadiusMeters     = 50.0
	metersPerDegree     = 111000.0
)

// BoundsFor derives the request geometry from a point and its extent in
// acres. The extent is treated as a circular area; the radius never drops
// below 50 meters so point locations still cover several pixels.
func BoundsFor(lat, lon, extentAcres float64) BoundingBox {
	radius := minRadiusMeters
	if extentAcres > 0 {
		r := math.Sqrt(extentAcres * squareMetersPerAcre / math.Pi)
		if r > radius {
			radius = r
		}
	}
	d := radius / metersPerDegree
	return BoundingBox{
		MinLon: lon - d,
		MinLat: lat - d,
		MaxLon: lon + d,
		MaxLat: lat + d,
	}
}
