package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"google.golang.org/protobuf/proto"

	gtfs "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"

	"github.com/Kartikesh07/RailSetuBackend/internal/config"
	"github.com/Kartikesh07/RailSetuBackend/internal/engine"
	"github.com/Kartikesh07/RailSetuBackend/internal/models"
	"github.com/Kartikesh07/RailSetuBackend/internal/section"
)

const (
	mpsToKmh          = 3.6
	delayedAfterMin   = 25.0
	stationSnapRadius = 1.0
)

// ErrNotConfigured is returned when no vehicle positions URL is set
var ErrNotConfigured = errors.New("GTFS-RT vehicle positions URL not configured")

// Poller turns GTFS-RT vehicle positions into corridor snapshots
type Poller struct {
	section   *section.Section
	track     *Track
	schedules []models.TrainSchedule
	byTrip    map[string]*models.TrainSchedule
	stops     map[string]models.Station
	cfg       *config.Config
	client    *http.Client
}

// NewPoller creates a poller for sec joined against the given timetable
func NewPoller(sec *section.Section, schedules []models.TrainSchedule, cfg *config.Config) *Poller {
	p := &Poller{
		section:   sec,
		track:     NewTrack(sec),
		schedules: schedules,
		byTrip:    make(map[string]*models.TrainSchedule, len(schedules)),
		stops:     make(map[string]models.Station),
		cfg:       cfg,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
	for i := range schedules {
		p.byTrip[schedules[i].TrainNumber] = &schedules[i]
	}
	for _, st := range sec.Stations() {
		p.stops[st.Code] = st
		if st.StopID != "" {
			p.stops[st.StopID] = st
		}
	}
	return p
}

// Poll fetches the feeds and returns a snapshot of every timetabled train
// currently reporting a position on the corridor.
func (p *Poller) Poll(ctx context.Context) (engine.Snapshot, error) {
	if p.cfg.GTFSVehiclePositionsURL == "" {
		return engine.Snapshot{}, ErrNotConfigured
	}
	polledAt := time.Now().UTC()

	vehicles, err := p.fetchVehiclePositions(ctx)
	if err != nil {
		return engine.Snapshot{}, fmt.Errorf("failed to fetch vehicle positions: %w", err)
	}

	delays := map[string]float64{}
	if p.cfg.GTFSTripUpdatesURL != "" {
		delays, err = p.fetchTripDelays(ctx)
		if err != nil {
			// Non-fatal: continue without delay info
			log.Printf("Feed: failed to fetch trip updates (continuing without delays): %v", err)
			delays = map[string]float64{}
		}
	}

	snap := engine.Snapshot{Schedules: p.schedules, Now: polledAt}
	seen := make(map[string]bool, len(vehicles))
	skipped := 0
	for _, v := range vehicles {
		pos, ok := p.toPosition(v, delays, polledAt)
		if !ok || seen[pos.TrainNumber] {
			skipped++
			continue
		}
		seen[pos.TrainNumber] = true
		snap.Positions = append(snap.Positions, pos)
	}

	log.Printf("Feed: polled %d vehicles, %d on corridor, %d skipped", len(vehicles), len(snap.Positions), skipped)
	return snap, nil
}

// toPosition places a vehicle on the corridor. Vehicles on unknown trips or
// that cannot be located are dropped.
func (p *Poller) toPosition(v VehiclePosition, delays map[string]float64, polledAt time.Time) (models.TrainPosition, bool) {
	sched, ok := p.byTrip[v.TripID]
	if !ok {
		return models.TrainPosition{}, false
	}

	pos := models.TrainPosition{
		TrainNumber: sched.TrainNumber,
		Status:      models.StatusRunning,
		LastUpdated: polledAt,
		Origin:      sched.Origin,
	}
	if v.Timestamp != nil {
		pos.LastUpdated = *v.Timestamp
	}

	located := false
	if v.StopID != nil {
		if st, ok := p.stops[*v.StopID]; ok && v.Status == statusStoppedAt {
			pos.CurrentKm = st.KmFromStart
			code := st.Code
			pos.CurrentStation = &code
			located = true
		}
	}
	if !located && v.Latitude != nil && v.Longitude != nil {
		if km, ok := p.track.Km(*v.Latitude, *v.Longitude); ok {
			pos.CurrentKm = p.section.Clamp(km)
			pos.CurrentStation = p.nearbyStation(*v.Latitude, *v.Longitude)
			located = true
		}
	}
	if !located {
		return models.TrainPosition{}, false
	}

	if v.SpeedKmh != nil && *v.SpeedKmh > 0 {
		pos.Speed = *v.SpeedKmh
	}
	if d, ok := delays[v.TripID]; ok && d > 0 {
		pos.DelayMinutes = d
	}
	if pos.DelayMinutes > delayedAfterMin {
		pos.Status = models.StatusDelayed
	}
	if v.Status == statusStoppedAt {
		pos.Status = models.StatusStopped
		pos.Speed = 0
	}
	return pos, true
}

func (p *Poller) nearbyStation(lat, lon float64) *string {
	for _, st := range p.section.Stations() {
		if st.Latitude == nil || st.Longitude == nil {
			continue
		}
		if distanceKm(lat, lon, *st.Latitude, *st.Longitude) < stationSnapRadius {
			code := st.Code
			return &code
		}
	}
	return nil
}

// fetchVehiclePositions fetches and parses the vehicle positions feed
func (p *Poller) fetchVehiclePositions(ctx context.Context) ([]VehiclePosition, error) {
	feed, err := p.fetchFeed(ctx, p.cfg.GTFSVehiclePositionsURL)
	if err != nil {
		return nil, err
	}

	var positions []VehiclePosition
	for _, entity := range feed.Entity {
		if entity.Vehicle == nil {
			continue
		}
		vehicle := entity.Vehicle
		if vehicle.Trip == nil || vehicle.Trip.TripId == nil {
			continue
		}

		pos := VehiclePosition{
			EntityID: entity.GetId(),
			TripID:   *vehicle.Trip.TripId,
			StopID:   vehicle.StopId,
		}

		if vehicle.Position != nil {
			if vehicle.Position.Latitude != nil {
				lat := float64(*vehicle.Position.Latitude)
				pos.Latitude = &lat
			}
			if vehicle.Position.Longitude != nil {
				lng := float64(*vehicle.Position.Longitude)
				pos.Longitude = &lng
			}
			if vehicle.Position.Speed != nil {
				kmh := float64(*vehicle.Position.Speed) * mpsToKmh
				pos.SpeedKmh = &kmh
			}
		}

		if vehicle.CurrentStatus != nil {
			if status, ok := StatusMap[int32(*vehicle.CurrentStatus)]; ok {
				pos.Status = status
			}
		}

		if vehicle.Timestamp != nil {
			ts := time.Unix(int64(*vehicle.Timestamp), 0).UTC()
			pos.Timestamp = &ts
		}

		positions = append(positions, pos)
	}

	return positions, nil
}

// fetchTripDelays returns each trip's most recent reported delay in minutes.
// The last stop-time update carrying a delay wins; departure beats arrival.
func (p *Poller) fetchTripDelays(ctx context.Context) (map[string]float64, error) {
	feed, err := p.fetchFeed(ctx, p.cfg.GTFSTripUpdatesURL)
	if err != nil {
		return nil, err
	}

	delays := make(map[string]float64)
	for _, entity := range feed.Entity {
		tu := entity.TripUpdate
		if tu == nil || tu.Trip == nil || tu.Trip.TripId == nil {
			continue
		}
		tripID := *tu.Trip.TripId

		for _, stu := range tu.StopTimeUpdate {
			if stu.Departure != nil && stu.Departure.Delay != nil {
				delays[tripID] = float64(*stu.Departure.Delay) / 60
			} else if stu.Arrival != nil && stu.Arrival.Delay != nil {
				delays[tripID] = float64(*stu.Arrival.Delay) / 60
			}
		}
	}

	return delays, nil
}

// fetchFeed fetches a GTFS-RT feed from the given URL
func (p *Poller) fetchFeed(ctx context.Context, url string) (*gtfs.FeedMessage, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	feed := &gtfs.FeedMessage{}
	if err := proto.Unmarshal(body, feed); err != nil {
		return nil, fmt.Errorf("failed to parse protobuf: %w", err)
	}

	return feed, nil
}
