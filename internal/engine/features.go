package engine

import (
	"math"

	"github.com/Kartikesh07/RailSetuBackend/internal/models"
	"github.com/Kartikesh07/RailSetuBackend/internal/section"
)

const (
	// NoETA is the sentinel used for any time-at-speed quantity that is
	// undefined (zero speed) or has no target ahead.
	NoETA = 999.0

	// NumFeatures is the length of the feature vector
	NumFeatures = 13

	defaultPlatformAvailability = 0.5
	platformNormaliser          = 6.0
	frequencyWindowHours        = 2.0
	congestionLookaheadKm       = 50.0
	conflictWindowMinutes       = 10.0
	conflictHorizonMinutes      = 60.0
)

// FeatureNames lists the vector fields in order
var FeatureNames = [NumFeatures]string{
	"train_priority",
	"train_type_encoded",
	"current_speed",
	"delay_minutes",
	"distance_to_destination",
	"trains_ahead",
	"single_line_conflict",
	"platform_availability",
	"time_of_day",
	"train_frequency",
	"time_to_next_bottleneck",
	"downstream_congestion",
	"conflicting_train_eta",
}

// Vector is the ordered numeric input of the approximator
type Vector [NumFeatures]float64

// Features is the extracted state of one eligible train.
// Context fields (number, origin, direction, km) are used for reasoning only.
type Features struct {
	TrainNumber string  `json:"trainNumber"`
	Origin      string  `json:"origin"`
	Direction   int     `json:"direction"`
	CurrentKm   float64 `json:"currentKm"`

	Priority              models.Priority `json:"priority"`
	TrainTypeEncoded      int             `json:"trainTypeEncoded"`
	CurrentSpeed          float64         `json:"currentSpeed"`
	DelayMinutes          float64         `json:"delayMinutes"`
	DistanceToDestination float64         `json:"distanceToDestination"`
	TrainsAhead           int             `json:"trainsAhead"`
	SingleLineConflict    int             `json:"singleLineConflict"`
	PlatformAvailability  float64         `json:"platformAvailability"`
	TimeOfDay             int             `json:"timeOfDay"`
	TrainFrequency        int             `json:"trainFrequency"`
	TimeToNextBottleneck  float64         `json:"timeToNextBottleneck"`
	DownstreamCongestion  float64         `json:"downstreamCongestion"`
	ConflictingTrainETA   float64         `json:"conflictingTrainEta"`
}

// Vector flattens the numeric fields in FeatureNames order
func (f Features) Vector() Vector {
	return Vector{
		float64(f.Priority),
		float64(f.TrainTypeEncoded),
		f.CurrentSpeed,
		f.DelayMinutes,
		f.DistanceToDestination,
		float64(f.TrainsAhead),
		float64(f.SingleLineConflict),
		f.PlatformAvailability,
		float64(f.TimeOfDay),
		float64(f.TrainFrequency),
		f.TimeToNextBottleneck,
		f.DownstreamCongestion,
		f.ConflictingTrainETA,
	}
}

// Extract derives one Features record per eligible train, in snapshot order.
// Rejected records are returned alongside; an empty slice means there is
// nothing to decide.
func Extract(sec *section.Section, snap Snapshot) ([]Features, []*RecordError) {
	st := prepare(sec, snap)
	return st.extract(), st.rejected
}

// eligible returns the accepted positions that need a decision
func (st *state) eligible() []*models.TrainPosition {
	out := make([]*models.TrainPosition, 0, len(st.positions))
	for i := range st.positions {
		if st.positions[i].Status.Active() {
			out = append(out, &st.positions[i])
		}
	}
	return out
}

func (st *state) extract() []Features {
	active := st.eligible()
	if len(active) == 0 {
		return nil
	}

	frequency := st.departuresWithin(frequencyWindowHours)
	hour := st.now.Hour()

	features := make([]Features, 0, len(active))
	for _, p := range active {
		sched := st.schedule(p.TrainNumber)
		dir := st.direction(p)

		features = append(features, Features{
			TrainNumber: p.TrainNumber,
			Origin:      p.Origin,
			Direction:   dir,
			CurrentKm:   p.CurrentKm,

			Priority:              sched.Priority,
			TrainTypeEncoded:      sched.TrainType.Encoded(),
			CurrentSpeed:          p.Speed,
			DelayMinutes:          p.DelayMinutes,
			DistanceToDestination: st.remainingDistance(p, dir),
			TrainsAhead:           countAhead(p, dir, active, math.Inf(1)),
			SingleLineConflict:    boolToInt(st.section.InSingleLine(p.CurrentKm)),
			PlatformAvailability:  st.platformAvailability(p),
			TimeOfDay:             hour,
			TrainFrequency:        frequency,
			TimeToNextBottleneck:  st.timeToNextBottleneck(p, dir),
			DownstreamCongestion:  float64(countAhead(p, dir, active, congestionLookaheadKm)) / (congestionLookaheadKm / 10),
			ConflictingTrainETA:   st.conflictingTrainETA(p, dir, active),
		})
	}
	return features
}

// etaMinutes converts a distance at speed into minutes, with the zero-speed sentinel
func etaMinutes(distanceKm, speedKmh float64) float64 {
	if speedKmh <= 0 {
		return NoETA
	}
	return distanceKm / speedKmh * 60
}

func (st *state) remainingDistance(p *models.TrainPosition, dir int) float64 {
	if dir == 1 {
		return st.section.Length() - p.CurrentKm
	}
	return p.CurrentKm
}

// countAhead counts other eligible trains strictly ahead of p, up to limit km
func countAhead(p *models.TrainPosition, dir int, active []*models.TrainPosition, limit float64) int {
	n := 0
	for _, other := range active {
		if other.TrainNumber == p.TrainNumber {
			continue
		}
		if d := (other.CurrentKm - p.CurrentKm) * float64(dir); d > 0 && d <= limit {
			n++
		}
	}
	return n
}

func (st *state) platformAvailability(p *models.TrainPosition) float64 {
	if p.CurrentStation == nil {
		return defaultPlatformAvailability
	}
	station, ok := st.section.Station(*p.CurrentStation)
	if !ok {
		return defaultPlatformAvailability
	}
	return float64(station.Platforms) / platformNormaliser
}

// departuresWithin counts every schedule departing in [now, now+hours]
func (st *state) departuresWithin(hours float64) int {
	n := 0
	for _, s := range st.schedules {
		h := s.ScheduledDeparture.Sub(st.now).Hours()
		if h >= 0 && h <= hours {
			n++
		}
	}
	return n
}

// timeToNextBottleneck is the minutes to the nearest single-line entry boundary ahead
func (st *state) timeToNextBottleneck(p *models.TrainPosition, dir int) float64 {
	if p.Speed <= 0 {
		return NoETA
	}
	nearest := math.Inf(1)
	for _, seg := range st.section.Segments() {
		d := (section.EntryKm(seg, dir) - p.CurrentKm) * float64(dir)
		if d > 0 && d < nearest {
			nearest = d
		}
	}
	if math.IsInf(nearest, 1) {
		return NoETA
	}
	return etaMinutes(nearest, p.Speed)
}

// conflictingTrainETA returns this train's minutes to a single-line entry
// when an opposing train is due at the far boundary of the same segment
// within the conflict window. Segments are scanned in list order and
// opposing trains in snapshot order; the first match wins.
func (st *state) conflictingTrainETA(p *models.TrainPosition, dir int, active []*models.TrainPosition) float64 {
	for _, seg := range st.section.Segments() {
		ownDist := (section.EntryKm(seg, dir) - p.CurrentKm) * float64(dir)
		if ownDist < 0 {
			continue
		}
		ownETA := etaMinutes(ownDist, p.Speed)
		if ownETA > conflictHorizonMinutes {
			continue
		}

		for _, other := range active {
			otherDir := st.direction(other)
			if otherDir == dir {
				continue
			}
			otherDist := (section.EntryKm(seg, otherDir) - other.CurrentKm) * float64(otherDir)
			if otherDist <= 0 {
				continue
			}
			otherETA := etaMinutes(otherDist, other.Speed)
			if otherETA > conflictHorizonMinutes {
				continue
			}
			if math.Abs(ownETA-otherETA) < conflictWindowMinutes {
				return ownETA
			}
		}
	}
	return NoETA
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
