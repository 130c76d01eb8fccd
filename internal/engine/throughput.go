package engine

import (
	"time"

	"github.com/Kartikesh07/RailSetuBackend/internal/metrics"
	"github.com/Kartikesh07/RailSetuBackend/internal/models"
	"github.com/Kartikesh07/RailSetuBackend/internal/section"
)

// SectionMetrics summarises the traffic state of a snapshot.
// All values are rounded to two decimals.
type SectionMetrics struct {
	ActiveTrains          int     `json:"activeTrains"`
	AverageDelayMinutes   float64 `json:"averageDelayMinutes"`
	AverageSpeedKmh       float64 `json:"averageSpeedKmh"`
	BottleneckUtilization float64 `json:"bottleneckUtilization"`
	TotalScheduledTrains  int     `json:"totalScheduledTrains"`
}

// Throughput computes aggregate metrics over the eligible trains.
// Mean speed only counts moving trains; bottleneck utilisation is the share
// of single-line segments holding at least one eligible train.
func Throughput(sec *section.Section, schedules []models.TrainSchedule, positions []models.TrainPosition) SectionMetrics {
	st := prepare(sec, Snapshot{Schedules: schedules, Positions: positions, Now: time.Now()})
	out := SectionMetrics{TotalScheduledTrains: len(schedules)}

	active := st.eligible()
	if len(active) == 0 {
		return out
	}

	var delay, speed metrics.Running
	occupied := make(map[int]bool)
	for _, p := range active {
		delay.Add(p.DelayMinutes)
		if p.Speed > 0 {
			speed.Add(p.Speed)
		}
		if i := sec.SegmentIndexAt(p.CurrentKm); i >= 0 {
			occupied[i] = true
		}
	}

	out.ActiveTrains = len(active)
	out.AverageDelayMinutes = metrics.Round2(delay.Mean)
	out.AverageSpeedKmh = metrics.Round2(speed.Mean)
	if n := len(sec.Segments()); n > 0 {
		out.BottleneckUtilization = metrics.Round2(float64(len(occupied)) / float64(n))
	}
	return out
}
