package models

import (
	"errors"
	"fmt"
)

// Station is a stopping point on the corridor
type Station struct {
	Code        string  `json:"code"`
	Name        string  `json:"name"`
	KmFromStart float64 `json:"km"`
	Platforms   int     `json:"platforms"`

	// Optional GTFS context, used to place live feed vehicles on the corridor
	StopID    string   `json:"stopId,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// Segment is a single-line interval of the corridor, in km from the start terminus.
// Only one direction of travel may occupy it at a time.
type Segment struct {
	StartKm float64 `json:"startKm"`
	EndKm   float64 `json:"endKm"`
}

// Contains reports whether km lies inside the segment, bounds included
func (s Segment) Contains(km float64) bool {
	return s.StartKm <= km && km <= s.EndKm
}

// SectionInfo describes the static topology of one corridor
type SectionInfo struct {
	Name               string    `json:"name"`
	StartStation       string    `json:"startStation"`
	EndStation         string    `json:"endStation"`
	TotalDistance      float64   `json:"totalDistance"`
	MaxSpeed           float64   `json:"maxSpeed"`
	Stations           []Station `json:"stations"`
	SingleLineSegments []Segment `json:"singleLineSegments"`
}

// Validate checks the corridor topology.
// Stations must be ordered by km with the two termini at the ends.
func (s *SectionInfo) Validate() error {
	if s.TotalDistance <= 0 {
		return errors.New("total distance must be positive")
	}
	if s.StartStation == "" || s.EndStation == "" {
		return errors.New("start and end stations are required")
	}
	if s.StartStation == s.EndStation {
		return errors.New("start and end stations must differ")
	}

	for i, seg := range s.SingleLineSegments {
		if seg.StartKm > seg.EndKm {
			return fmt.Errorf("segment %d: start %.2f after end %.2f", i, seg.StartKm, seg.EndKm)
		}
		if seg.StartKm < 0 || seg.EndKm > s.TotalDistance {
			return fmt.Errorf("segment %d: [%.2f, %.2f] outside corridor [0, %.2f]", i, seg.StartKm, seg.EndKm, s.TotalDistance)
		}
	}

	seen := make(map[string]bool, len(s.Stations))
	for i, st := range s.Stations {
		if st.Code == "" {
			return fmt.Errorf("station %d: code is required", i)
		}
		if seen[st.Code] {
			return fmt.Errorf("station %s: duplicate code", st.Code)
		}
		seen[st.Code] = true

		if st.Platforms < 0 {
			return fmt.Errorf("station %s: negative platform count", st.Code)
		}
		if st.KmFromStart < 0 || st.KmFromStart > s.TotalDistance {
			return fmt.Errorf("station %s: km %.2f outside corridor", st.Code, st.KmFromStart)
		}
		if i > 0 && st.KmFromStart < s.Stations[i-1].KmFromStart {
			return fmt.Errorf("station %s: stations are not ordered by km", st.Code)
		}
	}

	// Termini, when listed, must sit at the two ends of the ordered list
	if len(s.Stations) > 0 {
		if seen[s.StartStation] && s.Stations[0].Code != s.StartStation {
			return fmt.Errorf("start station %s is not the first station", s.StartStation)
		}
		if seen[s.EndStation] && s.Stations[len(s.Stations)-1].Code != s.EndStation {
			return fmt.Errorf("end station %s is not the last station", s.EndStation)
		}
	}

	return nil
}
