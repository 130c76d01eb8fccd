// Package section holds the static topology of a corridor: its stations,
// terminus codes and single-line segments. A Section is built once at startup
// and never mutated, so it may be shared freely between goroutines.
package section

import (
	"fmt"
	"math"
	"sort"

	"github.com/Kartikesh07/RailSetuBackend/internal/models"
)

// Section is a validated, indexed view over a models.SectionInfo
type Section struct {
	info      models.SectionInfo
	byCode    map[string]int // station code -> index into info.Stations
	stationKm []float64      // station km, ascending
}

// New validates info and builds the lookup indexes.
// The caller's slices are copied so later mutation cannot leak in.
func New(info models.SectionInfo) (*Section, error) {
	if err := info.Validate(); err != nil {
		return nil, fmt.Errorf("invalid section %q: %w", info.Name, err)
	}

	info.Stations = append([]models.Station(nil), info.Stations...)
	info.SingleLineSegments = append([]models.Segment(nil), info.SingleLineSegments...)

	s := &Section{
		info:      info,
		byCode:    make(map[string]int, len(info.Stations)),
		stationKm: make([]float64, len(info.Stations)),
	}
	for i, st := range info.Stations {
		s.byCode[st.Code] = i
		s.stationKm[i] = st.KmFromStart
	}
	return s, nil
}

// MustNew is New for static corridors known to be valid
func MustNew(info models.SectionInfo) *Section {
	s, err := New(info)
	if err != nil {
		panic(err)
	}
	return s
}

// Info returns a copy of the underlying corridor description
func (s *Section) Info() models.SectionInfo {
	info := s.info
	info.Stations = s.Stations()
	info.SingleLineSegments = s.Segments()
	return info
}

func (s *Section) Name() string      { return s.info.Name }
func (s *Section) Length() float64   { return s.info.TotalDistance }
func (s *Section) MaxSpeed() float64 { return s.info.MaxSpeed }
func (s *Section) StartStation() string {
	return s.info.StartStation
}
func (s *Section) EndStation() string {
	return s.info.EndStation
}

// Stations returns the ordered station list
func (s *Section) Stations() []models.Station {
	return append([]models.Station(nil), s.info.Stations...)
}

// Segments returns the single-line segments in their fixed list order
func (s *Section) Segments() []models.Segment {
	return append([]models.Segment(nil), s.info.SingleLineSegments...)
}

// Station looks up a station by code
func (s *Section) Station(code string) (models.Station, bool) {
	i, ok := s.byCode[code]
	if !ok {
		return models.Station{}, false
	}
	return s.info.Stations[i], true
}

// NearestStation returns the station closest to km, if one lies within tolerance
func (s *Section) NearestStation(km, tolerance float64) (models.Station, bool) {
	if len(s.stationKm) == 0 {
		return models.Station{}, false
	}

	i := sort.SearchFloat64s(s.stationKm, km)
	best := -1
	bestDist := math.Inf(1)
	for _, j := range []int{i - 1, i} {
		if j < 0 || j >= len(s.stationKm) {
			continue
		}
		if d := math.Abs(s.stationKm[j] - km); d < bestDist {
			best, bestDist = j, d
		}
	}
	if best < 0 || bestDist > tolerance {
		return models.Station{}, false
	}
	return s.info.Stations[best], true
}

// Contains reports whether km lies on the corridor
func (s *Section) Contains(km float64) bool {
	return km >= 0 && km <= s.info.TotalDistance
}

// SegmentIndexAt returns the index of the first single-line segment containing km, or -1
func (s *Section) SegmentIndexAt(km float64) int {
	for i, seg := range s.info.SingleLineSegments {
		if seg.Contains(km) {
			return i
		}
	}
	return -1
}

// InSingleLine reports whether km lies inside any single-line segment
func (s *Section) InSingleLine(km float64) bool {
	return s.SegmentIndexAt(km) >= 0
}

// Direction returns +1 for trains originating at the start terminus, else -1
func (s *Section) Direction(origin string) int {
	if origin == s.info.StartStation {
		return 1
	}
	return -1
}

// EntryKm is the boundary a train travelling in direction dir meets first
func EntryKm(seg models.Segment, dir int) float64 {
	if dir == 1 {
		return seg.StartKm
	}
	return seg.EndKm
}

// Clamp limits km to the corridor
func (s *Section) Clamp(km float64) float64 {
	return math.Max(0, math.Min(km, s.info.TotalDistance))
}
