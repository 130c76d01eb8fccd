package scenario

import (
	"github.com/Kartikesh07/RailSetuBackend/internal/models"
	"github.com/Kartikesh07/RailSetuBackend/internal/section"
)

// SolapurWadi describes the Solapur–Wadi corridor with its two single-line
// stretches (Hotgi–Indi and Badami–Gadag).
func SolapurWadi() models.SectionInfo {
	return models.SectionInfo{
		Name:          "Solapur-Wadi",
		StartStation:  "SUR",
		EndStation:    "WDI",
		TotalDistance: 455.3,
		MaxSpeed:      110,
		Stations: []models.Station{
			{Code: "SUR", Name: "Solapur", KmFromStart: 0, Platforms: 4},
			{Code: "HOTGI", Name: "Hotgi", KmFromStart: 25.3, Platforms: 2},
			{Code: "INDI", Name: "Indi", KmFromStart: 45.8, Platforms: 2},
			{Code: "BIJAPUR", Name: "Bijapur", KmFromStart: 78.2, Platforms: 3},
			{Code: "ALMATTI", Name: "Almatti", KmFromStart: 95.5, Platforms: 1},
			{Code: "BAGALKOT", Name: "Bagalkot", KmFromStart: 125.7, Platforms: 2},
			{Code: "BADAMI", Name: "Badami", KmFromStart: 142.3, Platforms: 2},
			{Code: "GADAG", Name: "Gadag", KmFromStart: 168.9, Platforms: 3},
			{Code: "WDI", Name: "Wadi", KmFromStart: 455.3, Platforms: 3},
		},
		SingleLineSegments: []models.Segment{
			{StartKm: 25.3, EndKm: 45.8},
			{StartKm: 142.3, EndKm: 168.9},
		},
	}
}

// SolapurWadiSection returns the validated corridor model
func SolapurWadiSection() *section.Section {
	return section.MustNew(SolapurWadi())
}
