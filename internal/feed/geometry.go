package feed

import (
	"github.com/golang/geo/s2"

	"github.com/Kartikesh07/RailSetuBackend/internal/models"
	"github.com/Kartikesh07/RailSetuBackend/internal/section"
)

const (
	earthRadiusKm = 6371.0

	// Vehicles further than this from the station polyline are not on the corridor
	maxOffTrackKm = 5.0

	projectionIterations = 60
)

type polylineLeg struct {
	from, to models.Station
	a, b     s2.Point
}

// Track is the corridor polyline through every station with coordinates
type Track struct {
	legs []polylineLeg
}

// NewTrack builds the station polyline of sec. Stations without
// coordinates are skipped; fewer than two located stations yield an empty track.
func NewTrack(sec *section.Section) *Track {
	var located []models.Station
	for _, st := range sec.Stations() {
		if st.Latitude != nil && st.Longitude != nil {
			located = append(located, st)
		}
	}

	t := &Track{}
	for i := 1; i < len(located); i++ {
		from, to := located[i-1], located[i]
		t.legs = append(t.legs, polylineLeg{
			from: from,
			to:   to,
			a:    s2.PointFromLatLng(s2.LatLngFromDegrees(*from.Latitude, *from.Longitude)),
			b:    s2.PointFromLatLng(s2.LatLngFromDegrees(*to.Latitude, *to.Longitude)),
		})
	}
	return t
}

// Empty reports whether the track can place any vehicle
func (t *Track) Empty() bool {
	return len(t.legs) == 0
}

// Km projects a coordinate onto the track and returns its km from the
// corridor start, or false when it is too far from any leg.
func (t *Track) Km(lat, lon float64) (float64, bool) {
	x := s2.LatLngFromDegrees(lat, lon)

	bestKm, bestDist := 0.0, maxOffTrackKm
	found := false
	for _, leg := range t.legs {
		frac, dist := closestOnLeg(x, leg.a, leg.b)
		if dist <= bestDist {
			bestDist = dist
			bestKm = leg.from.KmFromStart + frac*(leg.to.KmFromStart-leg.from.KmFromStart)
			found = true
		}
	}
	return bestKm, found
}

// closestOnLeg finds the fraction along the great-circle arc a→b closest to x
// and the distance from x to that point in km. Distance along a short arc is
// unimodal, so a ternary search converges.
func closestOnLeg(x s2.LatLng, a, b s2.Point) (float64, float64) {
	dist := func(f float64) float64 {
		return x.Distance(s2.LatLngFromPoint(s2.Interpolate(f, a, b))).Radians() * earthRadiusKm
	}

	lo, hi := 0.0, 1.0
	for i := 0; i < projectionIterations; i++ {
		m1 := lo + (hi-lo)/3
		m2 := hi - (hi-lo)/3
		if dist(m1) < dist(m2) {
			hi = m2
		} else {
			lo = m1
		}
	}
	f := (lo + hi) / 2
	return f, dist(f)
}

// distanceKm is the great-circle distance between two coordinates
func distanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	p1 := s2.LatLngFromDegrees(lat1, lon1)
	p2 := s2.LatLngFromDegrees(lat2, lon2)
	return p1.Distance(p2).Radians() * earthRadiusKm
}
