package feed

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"google.golang.org/protobuf/proto"

	gtfs "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"

	"github.com/Kartikesh07/RailSetuBackend/internal/config"
	"github.com/Kartikesh07/RailSetuBackend/internal/models"
	"github.com/Kartikesh07/RailSetuBackend/internal/section"
)

func coord(v float64) *float64 { return &v }

// testSection runs due north along longitude 76, roughly 40 km per 0.36 degrees
func testSection(t *testing.T) *section.Section {
	t.Helper()
	sec, err := section.New(models.SectionInfo{
		Name:          "Meridian",
		StartStation:  "AAA",
		EndStation:    "DDD",
		TotalDistance: 200,
		MaxSpeed:      110,
		Stations: []models.Station{
			{Code: "AAA", Name: "Alpha", KmFromStart: 0, Platforms: 4, Latitude: coord(17.0), Longitude: coord(76.0)},
			{Code: "BBB", Name: "Bravo", KmFromStart: 40, Platforms: 2, StopID: "71001", Latitude: coord(17.36), Longitude: coord(76.0)},
			{Code: "CCC", Name: "Charlie", KmFromStart: 120, Platforms: 1, Latitude: coord(18.08), Longitude: coord(76.0)},
			{Code: "DDD", Name: "Delta", KmFromStart: 200, Platforms: 3, Latitude: coord(18.8), Longitude: coord(76.0)},
		},
		SingleLineSegments: []models.Segment{{StartKm: 40, EndKm: 60}},
	})
	if err != nil {
		t.Fatalf("section.New: %v", err)
	}
	return sec
}

func testTimetable() []models.TrainSchedule {
	dep := time.Date(2025, 1, 10, 6, 0, 0, 0, time.UTC)
	mk := func(number, origin, dest string, p models.Priority) models.TrainSchedule {
		return models.TrainSchedule{
			TrainNumber: number, TrainName: "T" + number, TrainType: models.TrainExpress,
			Priority: p, Origin: origin, Destination: dest,
			ScheduledDeparture: dep, ScheduledArrival: dep.Add(4 * time.Hour),
		}
	}
	return []models.TrainSchedule{
		mk("12627", "AAA", "DDD", models.PriorityHigh),
		mk("16591", "DDD", "AAA", models.PriorityMedium),
		mk("11301", "AAA", "DDD", models.PriorityLow),
	}
}

func header() *gtfs.FeedHeader {
	return &gtfs.FeedHeader{GtfsRealtimeVersion: proto.String("2.0")}
}

func vehicleFeed(t *testing.T) []byte {
	t.Helper()
	msg := &gtfs.FeedMessage{
		Header: header(),
		Entity: []*gtfs.FeedEntity{
			{
				Id: proto.String("v1"),
				Vehicle: &gtfs.VehiclePosition{
					Trip:          &gtfs.TripDescriptor{TripId: proto.String("12627")},
					StopId:        proto.String("71001"),
					CurrentStatus: gtfs.VehiclePosition_STOPPED_AT.Enum(),
					Timestamp:     proto.Uint64(1736496000),
				},
			},
			{
				Id: proto.String("v2"),
				Vehicle: &gtfs.VehiclePosition{
					Trip:          &gtfs.TripDescriptor{TripId: proto.String("16591")},
					Position:      &gtfs.Position{Latitude: proto.Float32(17.72), Longitude: proto.Float32(76.0), Speed: proto.Float32(20)},
					CurrentStatus: gtfs.VehiclePosition_IN_TRANSIT_TO.Enum(),
				},
			},
			{
				Id: proto.String("v3"),
				Vehicle: &gtfs.VehiclePosition{
					Trip:     &gtfs.TripDescriptor{TripId: proto.String("99999")},
					Position: &gtfs.Position{Latitude: proto.Float32(17.5), Longitude: proto.Float32(76.0)},
				},
			},
			{
				Id: proto.String("v4"),
				Vehicle: &gtfs.VehiclePosition{
					Trip:     &gtfs.TripDescriptor{TripId: proto.String("11301")},
					Position: &gtfs.Position{Latitude: proto.Float32(10.0), Longitude: proto.Float32(70.0)},
				},
			},
			{Id: proto.String("v5"), Vehicle: &gtfs.VehiclePosition{}},
		},
	}
	data, err := proto.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal vehicle feed: %v", err)
	}
	return data
}

func tripUpdateFeed(t *testing.T) []byte {
	t.Helper()
	msg := &gtfs.FeedMessage{
		Header: header(),
		Entity: []*gtfs.FeedEntity{
			{
				Id: proto.String("u1"),
				TripUpdate: &gtfs.TripUpdate{
					Trip: &gtfs.TripDescriptor{TripId: proto.String("16591")},
					StopTimeUpdate: []*gtfs.TripUpdate_StopTimeUpdate{
						{StopId: proto.String("a"), Arrival: &gtfs.TripUpdate_StopTimeEvent{Delay: proto.Int32(600)}},
						{StopId: proto.String("b"), Arrival: &gtfs.TripUpdate_StopTimeEvent{Delay: proto.Int32(900)}, Departure: &gtfs.TripUpdate_StopTimeEvent{Delay: proto.Int32(1800)}},
					},
				},
			},
		},
	}
	data, err := proto.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal trip update feed: %v", err)
	}
	return data
}

func feedServer(t *testing.T, tripUpdatesStatus int) *httptest.Server {
	t.Helper()
	vehicles, updates := vehicleFeed(t), tripUpdateFeed(t)
	mux := http.NewServeMux()
	mux.HandleFunc("/vehicle_positions.pb", func(w http.ResponseWriter, r *http.Request) {
		w.Write(vehicles)
	})
	mux.HandleFunc("/trip_updates.pb", func(w http.ResponseWriter, r *http.Request) {
		if tripUpdatesStatus != http.StatusOK {
			w.WriteHeader(tripUpdatesStatus)
			return
		}
		w.Write(updates)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestPoll(t *testing.T) {
	srv := feedServer(t, http.StatusOK)
	cfg := &config.Config{
		GTFSVehiclePositionsURL: srv.URL + "/vehicle_positions.pb",
		GTFSTripUpdatesURL:      srv.URL + "/trip_updates.pb",
	}
	p := NewPoller(testSection(t), testTimetable(), cfg)

	snap, err := p.Poll(context.Background())
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if len(snap.Schedules) != 3 {
		t.Errorf("snapshot carries %d schedules, want the full timetable", len(snap.Schedules))
	}
	if len(snap.Positions) != 2 {
		t.Fatalf("got %d positions, want 2: %+v", len(snap.Positions), snap.Positions)
	}

	stopped := snap.Positions[0]
	if stopped.TrainNumber != "12627" || stopped.CurrentKm != 40 || stopped.Status != models.StatusStopped || stopped.Speed != 0 {
		t.Errorf("stopped vehicle = %+v", stopped)
	}
	if stopped.CurrentStation == nil || *stopped.CurrentStation != "BBB" {
		t.Errorf("stopped vehicle station = %v, want BBB", stopped.CurrentStation)
	}
	if !stopped.LastUpdated.Equal(time.Unix(1736496000, 0)) {
		t.Errorf("LastUpdated = %v", stopped.LastUpdated)
	}

	moving := snap.Positions[1]
	if moving.TrainNumber != "16591" || moving.Origin != "DDD" {
		t.Errorf("moving vehicle = %+v", moving)
	}
	if math.Abs(moving.CurrentKm-80) > 0.5 {
		t.Errorf("moving vehicle km = %v, want about 80", moving.CurrentKm)
	}
	if math.Abs(moving.Speed-72) > 1e-3 {
		t.Errorf("moving vehicle speed = %v, want 72 km/h", moving.Speed)
	}
	if moving.DelayMinutes != 30 || moving.Status != models.StatusDelayed {
		t.Errorf("moving vehicle delay = %v status = %s, want 30 and delayed", moving.DelayMinutes, moving.Status)
	}
	if moving.CurrentStation != nil {
		t.Errorf("moving vehicle between stations has station %q", *moving.CurrentStation)
	}
}

func TestPollWithoutTripUpdates(t *testing.T) {
	srv := feedServer(t, http.StatusInternalServerError)
	cfg := &config.Config{
		GTFSVehiclePositionsURL: srv.URL + "/vehicle_positions.pb",
		GTFSTripUpdatesURL:      srv.URL + "/trip_updates.pb",
	}
	snap, err := NewPoller(testSection(t), testTimetable(), cfg).Poll(context.Background())
	if err != nil {
		t.Fatalf("Poll should survive a failing trip updates feed: %v", err)
	}
	for _, p := range snap.Positions {
		if p.DelayMinutes != 0 {
			t.Errorf("train %s has delay %v without trip updates", p.TrainNumber, p.DelayMinutes)
		}
	}
}

func TestPollErrors(t *testing.T) {
	sec := testSection(t)
	if _, err := NewPoller(sec, nil, &config.Config{}).Poll(context.Background()); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Poll without URL error = %v, want ErrNotConfigured", err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not a protobuf \xff\xff"))
	}))
	defer srv.Close()
	cfg := &config.Config{GTFSVehiclePositionsURL: srv.URL}
	if _, err := NewPoller(sec, nil, cfg).Poll(context.Background()); err == nil {
		t.Error("Poll should fail on a malformed feed")
	}
}

func TestTrackProjection(t *testing.T) {
	track := NewTrack(testSection(t))
	if track.Empty() {
		t.Fatal("track should have legs")
	}

	tests := []struct {
		name     string
		lat, lon float64
		wantKm   float64
		wantOK   bool
	}{
		{"at start", 17.0, 76.0, 0, true},
		{"on a station", 18.08, 76.0, 120, true},
		{"mid leg", 17.18, 76.0, 20, true},
		{"slightly off track", 17.18, 76.01, 20, true},
		{"far away", 12.0, 80.0, 0, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			km, ok := track.Km(tc.lat, tc.lon)
			if ok != tc.wantOK {
				t.Fatalf("Km ok = %v, want %v", ok, tc.wantOK)
			}
			if ok && math.Abs(km-tc.wantKm) > 0.5 {
				t.Errorf("Km = %v, want about %v", km, tc.wantKm)
			}
		})
	}

	if !NewTrack(section.MustNew(models.SectionInfo{
		Name: "bare", StartStation: "A", EndStation: "B", TotalDistance: 10,
		Stations: []models.Station{{Code: "A"}, {Code: "B", KmFromStart: 10}},
	})).Empty() {
		t.Error("stations without coordinates should give an empty track")
	}
}

func TestLoadTimetable(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "timetable.json")
	data := `[{"trainNumber":"12627","trainName":"Karnataka Express","trainType":"superfast","priority":3,"origin":"SUR","destination":"WDI","scheduledDeparture":"2025-01-10T06:00:00Z","scheduledArrival":"2025-01-10T11:00:00Z","stops":[]}]`
	if err := os.WriteFile(good, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	schedules, err := LoadTimetable(good)
	if err != nil {
		t.Fatalf("LoadTimetable: %v", err)
	}
	if len(schedules) != 1 || schedules[0].Priority != models.PriorityHigh || schedules[0].TrainType != models.TrainSuperfast {
		t.Errorf("schedules = %+v", schedules)
	}

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte(`[{"trainNumber":"1","trainType":"hovercraft","priority":1,"origin":"A","destination":"B"}]`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadTimetable(bad); err == nil {
		t.Error("LoadTimetable should reject an invalid train type")
	}
	if _, err := LoadTimetable(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("LoadTimetable should fail on a missing file")
	}
}
