// README: Distance math for candidate ranking.
package partner

import (
	"math"

	"feastly/internal/types"
)

const earthRadiusKm = 6371.0

// DistanceKm returns the great-circle distance in kilometres between two
// points given in decimal degrees.
func DistanceKm(a, b types.Point) float64 {
	dLat := toRadians(b.Lat - a.Lat)
	dLng := toRadians(b.Lng - a.Lng)
	rLatA := toRadians(a.Lat)
	rLatB := toRadians(b.Lat)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rLatA)*math.Cos(rLatB)*math.Sin(dLng/2)*math.Sin(dLng/2)

	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}

// SortCandidates orders candidates closest first. Insertion sort; candidate
// lists are bounded by the search radius and stay small.
func SortCandidates(cands []Candidate) {
	for i := 1; i < len(cands); i++ {
		key := cands[i]
		j := i - 1
		for j >= 0 && cands[j].DistanceKm > key.DistanceKm {
			cands[j+1] = cands[j]
			j--
		}
		cands[j+1] = key
	}
}
