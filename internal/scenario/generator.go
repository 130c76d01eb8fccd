package scenario

import (
	"cmp"
	"fmt"
	"math"
	"math/rand"
	"slices"
	"strings"
	"time"

	"github.com/Kartikesh07/RailSetuBackend/internal/engine"
	"github.com/Kartikesh07/RailSetuBackend/internal/metrics"
	"github.com/Kartikesh07/RailSetuBackend/internal/models"
	"github.com/Kartikesh07/RailSetuBackend/internal/section"
)

// Kind selects the operating problem a generated scenario exhibits
type Kind string

const (
	// MajorDisruption strands one high-priority train mid-corridor for an hour
	MajorDisruption Kind = "major_disruption"
	// BottleneckConflict times two opposing trains to meet inside a single-line segment
	BottleneckConflict Kind = "bottleneck_conflict"
	// HighDensity launches every train within a narrow departure window
	HighDensity Kind = "high_density"
)

// DefaultTrains is the scenario size used by the live report
const DefaultTrains = 25

// Train numbers are derived from the index; the reserved indices keep the
// scripted trains apart from the background traffic.
const (
	maxTrains       = 98
	leadIndex       = 99
	opposingIndex   = 98
	delayedStatusAt = 25.0
	stoppedBelowKmh = 5.0
	stationRadiusKm = 1.0
)

// Kinds lists every scenario kind
func Kinds() []Kind {
	return []Kind{MajorDisruption, BottleneckConflict, HighDensity}
}

// ParseKind validates a scenario kind name
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds() {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown scenario kind %q", s)
}

type trainClass struct {
	trainType models.TrainType
	priority  models.Priority
	avgSpeed  float64
}

var classes = []trainClass{
	{models.TrainPassenger, models.PriorityLow, 50},
	{models.TrainExpress, models.PriorityMedium, 80},
	{models.TrainSuperfast, models.PriorityHigh, 100},
	{models.TrainFreight, models.PriorityLow, 60},
}

// Generator builds synthetic snapshots for a corridor.
// It is not safe for concurrent use because it owns its random source.
type Generator struct {
	Section *section.Section
	Now     time.Time
	Rand    *rand.Rand
}

// NewGenerator seeds a generator for sec at time now
func NewGenerator(sec *section.Section, now time.Time, seed int64) *Generator {
	return &Generator{Section: sec, Now: now, Rand: rand.New(rand.NewSource(seed))}
}

// Random generates a scenario of a randomly chosen kind
func (g *Generator) Random(n int) (Kind, engine.Snapshot, error) {
	kinds := Kinds()
	kind := kinds[g.Rand.Intn(len(kinds))]
	snap, err := g.Generate(kind, n)
	return kind, snap, err
}

// Generate builds an n-train snapshot of the given kind
func (g *Generator) Generate(kind Kind, n int) (engine.Snapshot, error) {
	if n < 2 || n > maxTrains {
		return engine.Snapshot{}, fmt.Errorf("scenario size %d out of range [2, %d]", n, maxTrains)
	}

	var (
		schedules []models.TrainSchedule
		disrupted string
	)
	switch kind {
	case MajorDisruption:
		schedules, disrupted = g.disruption(n)
	case BottleneckConflict:
		schedules = g.bottleneck(n)
	case HighDensity:
		schedules = g.highDensity(n)
	default:
		return engine.Snapshot{}, fmt.Errorf("unknown scenario kind %q", kind)
	}

	return engine.Snapshot{
		Schedules: schedules,
		Positions: g.positions(schedules, disrupted),
		Now:       g.Now,
	}, nil
}

func (g *Generator) uniform(lo, hi float64) float64 {
	return lo + g.Rand.Float64()*(hi-lo)
}

func hours(h float64) time.Duration {
	return time.Duration(h * float64(time.Hour))
}

func (g *Generator) randomTermini() (string, string) {
	if g.Rand.Intn(2) == 0 {
		return g.Section.StartStation(), g.Section.EndStation()
	}
	return g.Section.EndStation(), g.Section.StartStation()
}

func (g *Generator) schedule(i int, origin, destination string, departure time.Time) models.TrainSchedule {
	c := classes[g.Rand.Intn(len(classes))]
	number := fmt.Sprintf("%d", 13000+i)
	if c.trainType == models.TrainFreight {
		number = fmt.Sprintf("F%d", 50000+i)
	}
	travel := g.Section.Length() / c.avgSpeed * g.uniform(0.9, 1.2)
	title := string(c.trainType)
	title = strings.ToUpper(title[:1]) + title[1:]

	return models.TrainSchedule{
		TrainNumber:        number,
		TrainName:          title + " " + number,
		TrainType:          c.trainType,
		Priority:           c.priority,
		Origin:             origin,
		Destination:        destination,
		ScheduledDeparture: departure,
		ScheduledArrival:   departure.Add(hours(travel)),
	}
}

func (g *Generator) background(schedules []models.TrainSchedule, count int, offset func() time.Duration) []models.TrainSchedule {
	for i := 0; i < count; i++ {
		origin, dest := g.randomTermini()
		schedules = append(schedules, g.schedule(i, origin, dest, g.Now.Add(offset())))
	}
	return schedules
}

func (g *Generator) disruption(n int) ([]models.TrainSchedule, string) {
	stranded := g.schedule(leadIndex, g.Section.StartStation(), g.Section.EndStation(), g.Now.Add(-hours(g.uniform(1.5, 2.5))))
	stranded.Priority = models.PriorityHigh

	schedules := []models.TrainSchedule{stranded}
	schedules = g.background(schedules, n-1, func() time.Duration { return hours(g.uniform(-3, 1)) })
	return schedules, stranded.TrainNumber
}

func (g *Generator) bottleneck(n int) []models.TrainSchedule {
	segs := g.Section.Segments()
	if len(segs) == 0 {
		return g.background(nil, n, func() time.Duration { return hours(g.uniform(-3, 1)) })
	}
	seg := segs[g.Rand.Intn(len(segs))]
	meet := g.Now.Add(time.Duration(g.uniform(20, 45) * float64(time.Minute)))
	mid := (seg.StartKm + seg.EndKm) / 2

	upSpeed := classes[g.Rand.Intn(len(classes))].avgSpeed
	up := g.schedule(leadIndex, g.Section.StartStation(), g.Section.EndStation(), meet.Add(-hours(mid/upSpeed)))

	downSpeed := classes[g.Rand.Intn(len(classes))].avgSpeed
	down := g.schedule(opposingIndex, g.Section.EndStation(), g.Section.StartStation(), meet.Add(-hours((g.Section.Length()-mid)/downSpeed)))

	schedules := []models.TrainSchedule{up, down}
	return g.background(schedules, n-2, func() time.Duration { return hours(g.uniform(-3, 1)) })
}

func (g *Generator) highDensity(n int) []models.TrainSchedule {
	return g.background(nil, n, func() time.Duration {
		return time.Duration(g.uniform(-120, 30) * float64(time.Minute))
	})
}

// positions places every schedule on the corridor at g.Now, then applies
// knock-on delays and platform capacity.
func (g *Generator) positions(schedules []models.TrainSchedule, disrupted string) []models.TrainPosition {
	total := g.Section.Length()
	out := make([]models.TrainPosition, 0, len(schedules))

	for _, s := range schedules {
		dir := g.Section.Direction(s.Origin)
		if g.Now.Before(s.ScheduledDeparture) {
			origin := s.Origin
			km := 0.0
			if dir < 0 {
				km = total
			}
			out = append(out, models.TrainPosition{
				TrainNumber:    s.TrainNumber,
				CurrentStation: &origin,
				CurrentKm:      km,
				Status:         models.StatusScheduled,
				LastUpdated:    g.Now,
				Origin:         s.Origin,
			})
			continue
		}
		if g.Now.After(s.ScheduledArrival.Add(time.Hour)) {
			continue
		}

		journey := s.ScheduledArrival.Sub(s.ScheduledDeparture).Hours()
		elapsed := g.Now.Sub(s.ScheduledDeparture).Hours()
		ideal, progress, speed := 0.0, 0.0, 0.0
		if journey > 0 {
			ideal = math.Min(1, elapsed/journey)
		}
		delay := math.Trunc(g.uniform(5, 30) * ideal)
		if journey > 0 {
			progress = math.Max(0, ideal-delay/(journey*60)*0.5)
			speed = total / journey * g.uniform(0.6, 1.1)
		}

		km := progress * total
		if dir < 0 {
			km = total * (1 - progress)
		}
		status := models.StatusRunning
		if delay > delayedStatusAt {
			status = models.StatusDelayed
		}
		if s.TrainNumber == disrupted {
			km = g.uniform(100, 300)
			speed, status, delay = 0, models.StatusStopped, delay+60
		}
		if speed < stoppedBelowKmh {
			status = models.StatusStopped
		}
		if status == models.StatusStopped {
			speed = 0
		}

		p := models.TrainPosition{
			TrainNumber:  s.TrainNumber,
			CurrentKm:    g.Section.Clamp(metrics.Round2(km)),
			Speed:        metrics.Round2(speed),
			Status:       status,
			DelayMinutes: delay,
			LastUpdated:  g.Now,
			Origin:       s.Origin,
		}
		if st, ok := g.Section.NearestStation(p.CurrentKm, stationRadiusKm); ok {
			code := st.Code
			p.CurrentStation = &code
		}
		out = append(out, p)
	}

	g.knockOn(schedules, out)
	g.enforcePlatforms(out)
	return out
}

// knockOn propagates delay from a late train to the next departure from the
// same origin.
func (g *Generator) knockOn(schedules []models.TrainSchedule, positions []models.TrainPosition) {
	byNumber := make(map[string]*models.TrainPosition, len(positions))
	for i := range positions {
		byNumber[positions[i].TrainNumber] = &positions[i]
	}

	byOrigin := map[string][]models.TrainSchedule{}
	for _, s := range schedules {
		byOrigin[s.Origin] = append(byOrigin[s.Origin], s)
	}

	for _, origin := range []string{g.Section.StartStation(), g.Section.EndStation()} {
		group := byOrigin[origin]
		slices.SortStableFunc(group, func(a, b models.TrainSchedule) int {
			return a.ScheduledDeparture.Compare(b.ScheduledDeparture)
		})
		for i := 1; i < len(group); i++ {
			prev, prevOK := byNumber[group[i-1].TrainNumber]
			curr, currOK := byNumber[group[i].TrainNumber]
			if !prevOK || !currOK {
				continue
			}
			if prev.DelayMinutes > 20 && curr.Status != models.StatusScheduled {
				extra := (prev.DelayMinutes - 15) * g.uniform(0.2, 0.5)
				curr.DelayMinutes = math.Trunc(math.Min(90, curr.DelayMinutes+extra))
				if curr.DelayMinutes > delayedStatusAt && curr.Status == models.StatusRunning {
					curr.Status = models.StatusDelayed
				}
			}
		}
	}
}

// enforcePlatforms stops trains arriving at a full station one km short of it.
// Trains furthest from their destination claim platforms first.
func (g *Generator) enforcePlatforms(positions []models.TrainPosition) {
	total := g.Section.Length()
	remaining := func(p *models.TrainPosition) float64 {
		if g.Section.Direction(p.Origin) > 0 {
			return total - p.CurrentKm
		}
		return p.CurrentKm
	}

	idx := make([]int, len(positions))
	for i := range idx {
		idx[i] = i
	}
	slices.SortStableFunc(idx, func(a, b int) int {
		return cmp.Compare(remaining(&positions[b]), remaining(&positions[a]))
	})

	occupancy := map[string]int{}
	for _, i := range idx {
		p := &positions[i]
		if p.CurrentStation == nil || (p.Status != models.StatusRunning && p.Status != models.StatusDelayed) {
			continue
		}
		st, ok := g.Section.Station(*p.CurrentStation)
		if !ok {
			continue
		}
		if occupancy[st.Code] >= st.Platforms {
			p.Status = models.StatusStopped
			p.Speed = 0
			p.DelayMinutes += 5
			p.CurrentKm = g.Section.Clamp(p.CurrentKm - float64(g.Section.Direction(p.Origin)))
			p.CurrentStation = nil
			continue
		}
		occupancy[st.Code]++
	}
}
