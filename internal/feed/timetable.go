package feed

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/Kartikesh07/RailSetuBackend/internal/models"
)

// LoadTimetable reads the corridor timetable: a JSON array of schedules.
// The GTFS trip ID of each service is its train number.
func LoadTimetable(path string) ([]models.TrainSchedule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read timetable: %w", err)
	}

	var schedules []models.TrainSchedule
	if err := json.Unmarshal(data, &schedules); err != nil {
		return nil, fmt.Errorf("failed to parse timetable %s: %w", path, err)
	}

	seen := make(map[string]bool, len(schedules))
	for i := range schedules {
		if err := schedules[i].Validate(); err != nil {
			return nil, fmt.Errorf("timetable entry %d: %w", i, err)
		}
		if seen[schedules[i].TrainNumber] {
			return nil, fmt.Errorf("timetable entry %d: duplicate train %s", i, schedules[i].TrainNumber)
		}
		seen[schedules[i].TrainNumber] = true
	}
	return schedules, nil
}
