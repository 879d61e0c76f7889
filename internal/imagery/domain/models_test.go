package domain

import (
	"math"
	"testing"
	"time"
)

func TestNewPeriodWindowRejectsInvertedDates(t *testing.T) {
	start := time.Date(2023, 1, 31, 0, 0, 0, 0, time.UTC)
	end := time.Date(2022, 11, 1, 0, 0, 0, 0, time.UTC)
	if _, err := NewPeriodWindow("before", start, end); err == nil {
		t.Fatal("expected error for start after end")
	}
}

func TestNewPeriodWindowAllowsAfterBeforeBefore(t *testing.T) {
	// Window ordering between before and after is caller policy; each
	// window only has to be internally consistent.
	w, err := NewPeriodWindow("after", time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2022, 3, 31, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("new window: %v", err)
	}
	if w.Name != "after" {
		t.Fatalf("unexpected name %q", w.Name)
	}
}

func TestBoundsForPointLocationUsesMinimumRadius(t *testing.T) {
	box := BoundsFor(14.382015, 79.523023, 0)
	d := 50.0 / 111000.0
	if math.Abs(box.MaxLon-79.523023-d) > 1e-9 {
		t.Fatalf("expected 50m radius box, got %+v", box)
	}
	if box.MinLat >= box.MaxLat || box.MinLon >= box.MaxLon {
		t.Fatalf("degenerate box: %+v", box)
	}
}

func TestBoundsForLargeExtentExceedsMinimum(t *testing.T) {
	// 10 acres is ~40,469 sq meters, radius ~113.5m.
	small := BoundsFor(14.0, 79.0, 0)
	large := BoundsFor(14.0, 79.0, 10)
	if large.MaxLon-large.MinLon <= small.MaxLon-small.MinLon {
		t.Fatal("larger extent should widen the box")
	}
	wantRadius := math.Sqrt(10 * 4046.86 / math.Pi)
	gotRadius := (large.MaxLon - large.MinLon) / 2 * 111000
	if math.Abs(gotRadius-wantRadius) > 0.01 {
		t.Fatalf("expected radius %.2fm, got %.2fm", wantRadius, gotRadius)
	}
}

func TestBoundsForSmallExtentClampsToMinimum(t *testing.T) {
	// 0.1 acres has a ~11m radius, below the 50m floor.
	clamped := BoundsFor(14.0, 79.0, 0.1)
	point := BoundsFor(14.0, 79.0, 0)
	if clamped != point {
		t.Fatalf("expected clamp to the 50m floor: %+v vs %+v", clamped, point)
	}
}

func TestTransientClassification(t *testing.T) {
	if Transient(&ProviderError{Reason: "invalid coordinates", Transient: false}) {
		t.Fatal("definitive rejection must not be transient")
	}
	if !Transient(&ProviderError{Reason: "status 503", Transient: true}) {
		t.Fatal("5xx must be transient")
	}
}
