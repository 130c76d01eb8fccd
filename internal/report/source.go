package report

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/Kartikesh07/RailSetuBackend/internal/engine"
	"github.com/Kartikesh07/RailSetuBackend/internal/feed"
	"github.com/Kartikesh07/RailSetuBackend/internal/models"
	"github.com/Kartikesh07/RailSetuBackend/internal/scenario"
)

// Source produces the snapshot for the next live report
type Source interface {
	Next(ctx context.Context) (engine.Snapshot, error)
	// Name is the run source recorded with each stored run
	Name() string
}

// ScenarioSource draws a random problem scenario for every report
type ScenarioSource struct {
	mu     sync.Mutex
	gen    *scenario.Generator
	trains int
	clock  func() time.Time
}

// NewScenarioSource wraps gen; every scenario has the given number of trains
func NewScenarioSource(gen *scenario.Generator, trains int) *ScenarioSource {
	return &ScenarioSource{gen: gen, trains: trains, clock: time.Now}
}

func (s *ScenarioSource) Next(ctx context.Context) (engine.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return engine.Snapshot{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.gen.Now = s.clock().UTC()
	kind, snap, err := s.gen.Random(s.trains)
	if err != nil {
		return engine.Snapshot{}, err
	}
	log.Printf("Report: generated %s scenario with %d trains", kind, len(snap.Schedules))
	return snap, nil
}

func (*ScenarioSource) Name() string { return models.SourceLive }

// FeedSource reads live positions from a GTFS-Realtime poller
type FeedSource struct {
	poller *feed.Poller
}

func NewFeedSource(p *feed.Poller) *FeedSource {
	return &FeedSource{poller: p}
}

func (s *FeedSource) Next(ctx context.Context) (engine.Snapshot, error) {
	return s.poller.Poll(ctx)
}

func (*FeedSource) Name() string { return models.SourceFeed }
