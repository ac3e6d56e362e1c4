package partner

import (
	"math"
	"testing"

	"feastly/internal/types"
)

func TestDistanceKm_KnownDistances(t *testing.T) {
	tests := []struct {
		name      string
		a, b      types.Point
		wantKm    float64
		tolerance float64
	}{
		{
			name:      "same point",
			a:         types.Point{Lat: 12.9716, Lng: 77.5946},
			b:         types.Point{Lat: 12.9716, Lng: 77.5946},
			wantKm:    0,
			tolerance: 0.001,
		},
		{
			name:      "MG Road to Koramangala (~5km)",
			a:         types.Point{Lat: 12.9758, Lng: 77.6045},
			b:         types.Point{Lat: 12.9352, Lng: 77.6245},
			wantKm:    5.0,
			tolerance: 1.0,
		},
		{
			name:      "Bengaluru to Delhi (~1740km)",
			a:         types.Point{Lat: 12.9716, Lng: 77.5946},
			b:         types.Point{Lat: 28.6139, Lng: 77.2090},
			wantKm:    1740,
			tolerance: 30,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DistanceKm(tt.a, tt.b)
			if math.Abs(got-tt.wantKm) > tt.tolerance {
				t.Errorf("DistanceKm() = %f, want %f (±%f)", got, tt.wantKm, tt.tolerance)
			}
		})
	}
}

func TestDistanceKm_Symmetry(t *testing.T) {
	a := types.Point{Lat: 12.9, Lng: 77.5}
	b := types.Point{Lat: 13.1, Lng: 77.8}
	d1 := DistanceKm(a, b)
	d2 := DistanceKm(b, a)
	if math.Abs(d1-d2) > 0.0001 {
		t.Errorf("distance is not symmetric: %f vs %f", d1, d2)
	}
}

func TestSortCandidates(t *testing.T) {
	candidates := []Candidate{
		{ID: types.ID("c"), DistanceKm: 5.0},
		{ID: types.ID("a"), DistanceKm: 1.0},
		{ID: types.ID("b"), DistanceKm: 3.0},
	}

	SortCandidates(candidates)

	if candidates[0].ID != "a" || candidates[1].ID != "b" || candidates[2].ID != "c" {
		t.Errorf("unexpected sort order: %v", candidates)
	}
}

func TestSortCandidates_Degenerate(t *testing.T) {
	SortCandidates(nil)

	single := []Candidate{{ID: types.ID("a"), DistanceKm: 2.0}}
	SortCandidates(single)
	if single[0].ID != "a" {
		t.Errorf("single element sort failed")
	}
}
