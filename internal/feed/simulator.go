package feed

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/terra-clan/template-marketplace/internal/models"
)

// Catalog is the snapshot holder the simulator reads from and writes to.
// Update must apply fn to the currently published record and report false
// when the record is gone.
type Catalog interface {
	Snapshot() []*models.Record
	Update(id int, fn func(*models.Record) *models.Record) (*models.Record, bool)
}

// Event reports new deployments of a template across the network
type Event struct {
	ID               string    `json:"id"`
	TemplateID       int       `json:"templateId"`
	TemplateName     string    `json:"templateName"`
	Channel          string    `json:"channel"`
	NewOrganizations int       `json:"newOrganizations"`
	NewSimulations   int       `json:"newSimulations"`
	Popularity       int       `json:"popularity"`
	At               time.Time `json:"at"`
}

// Sink receives emitted events
type Sink func(Event)

// Simulator periodically emits deployment events and publishes the updated
// templates into the catalog. Templates are replaced, never modified in place.
type Simulator struct {
	catalog  Catalog
	interval time.Duration
	now      func() time.Time

	rngMu sync.Mutex
	rng   *rand.Rand

	sinksMu sync.RWMutex
	sinks   []Sink
}

// NewSimulator creates a new live feed simulator. The same seed always
// produces the same sequence of events for the same catalog.
func NewSimulator(catalog Catalog, interval time.Duration, seed uint64) *Simulator {
	if interval <= 0 {
		interval = 3 * time.Second
	}

	return &Simulator{
		catalog:  catalog,
		interval: interval,
		now:      time.Now,
		rng:      rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// AddSink registers a receiver for emitted events
func (s *Simulator) AddSink(sink Sink) {
	s.sinksMu.Lock()
	defer s.sinksMu.Unlock()
	s.sinks = append(s.sinks, sink)
}

// Start begins the simulator in a goroutine
func (s *Simulator) Start(ctx context.Context) {
	go s.run(ctx)
}

// run is the main loop for the simulator
func (s *Simulator) run(ctx context.Context) {
	slog.Info("live feed started", "interval", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("live feed stopped")
			return
		case <-ticker.C:
			s.Tick()
		}
	}
}

// Tick emits one deployment event. It reports false when the catalog is empty
// or the picked template was removed before the update could be applied.
func (s *Simulator) Tick() (Event, bool) {
	snapshot := s.catalog.Snapshot()
	if len(snapshot) == 0 {
		slog.Debug("live feed skipped tick, catalog empty")
		return Event{}, false
	}

	s.rngMu.Lock()
	target := snapshot[s.rng.IntN(len(snapshot))]
	newOrgs := 1 + s.rng.IntN(3)
	newSims := newOrgs * (20 + s.rng.IntN(180))
	s.rngMu.Unlock()

	updated, ok := s.catalog.Update(target.ID, func(current *models.Record) *models.Record {
		usage := current.Usage
		usage.TotalSimulations += newSims
		usage.LastDeployedAgo = "just now"
		return current.WithUsage(usage).WithPopularity(current.Popularity + newOrgs)
	})
	if !ok {
		slog.Debug("live feed skipped tick, template removed", "template_id", target.ID)
		return Event{}, false
	}

	event := Event{
		ID:               uuid.New().String(),
		TemplateID:       updated.ID,
		TemplateName:     updated.Name,
		Channel:          string(updated.Channel),
		NewOrganizations: newOrgs,
		NewSimulations:   newSims,
		Popularity:       updated.Popularity,
		At:               s.now().UTC(),
	}

	slog.Debug("live feed event",
		"template_id", event.TemplateID,
		"new_organizations", event.NewOrganizations,
		"popularity", event.Popularity,
	)

	s.sinksMu.RLock()
	sinks := append([]Sink(nil), s.sinks...)
	s.sinksMu.RUnlock()

	for _, sink := range sinks {
		sink(event)
	}

	return event, true
}
