package templates

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/terra-clan/template-marketplace/internal/models"
)

// ErrDuplicateID is returned when two fixture entries share an ID
var ErrDuplicateID = errors.New("duplicate template id")

// Loader loads marketplace templates from YAML fixtures and holds the current
// catalog snapshot. A snapshot is never modified after it is published; every
// change builds a new one.
type Loader struct {
	writeMu sync.Mutex // serialises snapshot rebuilds

	mu       sync.RWMutex
	snapshot []*models.Record
	byID     map[int]*models.Record
	version  uint64

	subscribers []func([]*models.Record)
}

// NewLoader creates an empty loader
func NewLoader() *Loader {
	return &Loader{
		byID: make(map[int]*models.Record),
	}
}

// LoadResult reports what a directory load accepted and rejected
type LoadResult struct {
	Files    int
	Loaded   int
	Rejected []Rejection
}

// Rejection describes a fixture entry that did not enter the catalog
type Rejection struct {
	File  string
	Index int
	Err   error
}

// LoadFromDir loads all YAML fixtures in dir and its direct subdirectories and
// replaces the current snapshot with the result.
func (l *Loader) LoadFromDir(dir string) (*LoadResult, error) {
	slog.Info("loading templates from directory", "dir", dir)

	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("failed to read templates directory: %w", err)
	}

	files, err := fixtureFiles(dir)
	if err != nil {
		return nil, err
	}

	result := &LoadResult{Files: len(files)}
	byID := make(map[int]*models.Record)

	for _, file := range files {
		entries, err := readFile(file)
		if err != nil {
			slog.Warn("failed to load template file", "file", file, "error", err)
			result.Rejected = append(result.Rejected, Rejection{File: file, Index: -1, Err: err})
			continue
		}

		for i, entry := range entries {
			rec, err := entry.toRecord()
			if err != nil {
				slog.Warn("rejected template", "file", file, "index", i, "error", err)
				result.Rejected = append(result.Rejected, Rejection{File: file, Index: i, Err: err})
				continue
			}
			if _, exists := byID[rec.ID]; exists {
				err := fmt.Errorf("%w: %d", ErrDuplicateID, rec.ID)
				slog.Warn("rejected template", "file", file, "index", i, "error", err)
				result.Rejected = append(result.Rejected, Rejection{File: file, Index: i, Err: err})
				continue
			}
			byID[rec.ID] = rec
		}
	}

	result.Loaded = len(byID)
	l.writeMu.Lock()
	version := l.publish(byID)
	l.writeMu.Unlock()
	l.notify(version)

	slog.Info("templates loaded",
		"count", result.Loaded,
		"rejected", len(result.Rejected),
		"total_files", result.Files,
	)
	return result, nil
}

// LoadFromFile parses a single fixture file without touching the current snapshot
func (l *Loader) LoadFromFile(path string) ([]*models.Record, error) {
	entries, err := readFile(path)
	if err != nil {
		return nil, err
	}

	records := make([]*models.Record, 0, len(entries))
	seen := make(map[int]bool, len(entries))
	for i, entry := range entries {
		rec, err := entry.toRecord()
		if err != nil {
			return nil, fmt.Errorf("template %d in %s: %w", i, path, err)
		}
		if seen[rec.ID] {
			return nil, fmt.Errorf("template %d in %s: %w: %d", i, path, ErrDuplicateID, rec.ID)
		}
		seen[rec.ID] = true
		records = append(records, rec)
	}
	return records, nil
}

// Snapshot returns the current catalog ordered by ID. The slice belongs to the
// caller; the records are shared and must not be modified.
func (l *Loader) Snapshot() []*models.Record {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make([]*models.Record, len(l.snapshot))
	copy(result, l.snapshot)
	return result
}

// Get retrieves a template by ID
func (l *Loader) Get(id int) *models.Record {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.byID[id]
}

// Len returns the number of templates in the current snapshot
func (l *Loader) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.snapshot)
}

// Put adds a template or replaces the one with the same ID
func (l *Loader) Put(rec *models.Record) {
	l.writeMu.Lock()
	byID := l.copyByID()
	byID[rec.ID] = rec
	version := l.publish(byID)
	l.writeMu.Unlock()

	l.notify(version)
}

// Update replaces the template with the given ID by fn(current). fn sees the
// record as currently published, so concurrent reloads are never overwritten.
// Nothing happens when the ID is not in the catalog or fn returns nil.
// fn runs under the write lock and must not call back into the loader.
func (l *Loader) Update(id int, fn func(*models.Record) *models.Record) (*models.Record, bool) {
	l.writeMu.Lock()

	l.mu.RLock()
	current, ok := l.byID[id]
	l.mu.RUnlock()
	if !ok {
		l.writeMu.Unlock()
		return nil, false
	}

	updated := fn(current)
	if updated == nil || updated.ID != id {
		l.writeMu.Unlock()
		return nil, false
	}

	byID := l.copyByID()
	byID[id] = updated
	version := l.publish(byID)
	l.writeMu.Unlock()

	l.notify(version)
	return updated, true
}

// Remove removes a template by ID
func (l *Loader) Remove(id int) {
	l.writeMu.Lock()
	byID := l.copyByID()
	delete(byID, id)
	version := l.publish(byID)
	l.writeMu.Unlock()

	l.notify(version)
}

// Subscribe registers fn to receive newly published snapshots. fn runs after the
// write that produced the snapshot has completed, so it may call Put or Remove.
// When writes race, only the latest snapshot is guaranteed to be delivered.
func (l *Loader) Subscribe(fn func([]*models.Record)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.subscribers = append(l.subscribers, fn)
}

// copyByID returns a fresh copy of the current index. Callers must hold writeMu.
func (l *Loader) copyByID() map[int]*models.Record {
	l.mu.RLock()
	defer l.mu.RUnlock()

	byID := make(map[int]*models.Record, len(l.byID)+1)
	for id, r := range l.byID {
		byID[id] = r
	}
	return byID
}

// publish swaps in a new snapshot built from byID and returns its version.
// Callers must hold writeMu and call notify after releasing it.
func (l *Loader) publish(byID map[int]*models.Record) uint64 {
	snapshot := make([]*models.Record, 0, len(byID))
	for _, r := range byID {
		snapshot = append(snapshot, r)
	}
	sort.Slice(snapshot, func(i, j int) bool { return snapshot[i].ID < snapshot[j].ID })

	l.mu.Lock()
	defer l.mu.Unlock()
	l.snapshot = snapshot
	l.byID = byID
	l.version++
	return l.version
}

// notify delivers snapshot version to subscribers unless a newer one has
// already been published; that writer notifies instead.
func (l *Loader) notify(version uint64) {
	l.mu.RLock()
	if l.version != version {
		l.mu.RUnlock()
		return
	}
	snapshot := l.snapshot
	subscribers := append(([]func([]*models.Record))(nil), l.subscribers...)
	l.mu.RUnlock()

	for _, fn := range subscribers {
		out := make([]*models.Record, len(snapshot))
		copy(out, snapshot)
		fn(out)
	}
}

// fixtureFiles lists *.yaml and *.yml files in dir and one level below, sorted
func fixtureFiles(dir string) ([]string, error) {
	var files []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, fmt.Errorf("failed to glob templates: %w", err)
		}
		files = append(files, matches...)

		subMatches, err := filepath.Glob(filepath.Join(dir, "*", pattern))
		if err != nil {
			return nil, fmt.Errorf("failed to glob templates: %w", err)
		}
		files = append(files, subMatches...)
	}
	sort.Strings(files)
	return files, nil
}

func readFile(path string) ([]templateEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var f fixtureFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return f.Templates, nil
}

// createdAtLayouts are the accepted created_at formats
var createdAtLayouts = []string{"2006-01-02", "Jan 2, 2006"}

func (e templateEntry) toRecord() (*models.Record, error) {
	recency := int64(e.ID)
	if e.CreatedAt != "" {
		t, err := parseDate(e.CreatedAt)
		if err != nil {
			return nil, &models.ValidationError{Field: "created_at", Value: e.CreatedAt, Reason: "unrecognised date"}
		}
		recency = t.Unix()
	}

	reviews := make([]models.Review, 0, len(e.Reviews))
	for _, r := range e.Reviews {
		reviews = append(reviews, models.Review{
			ID:                 r.ID,
			OrgIndustry:        r.OrgIndustry,
			OrgSize:            r.OrgSize,
			Rating:             r.Rating,
			Comment:            r.Comment,
			ClickRateReduction: r.ClickRateReduction,
			TimeAgo:            r.TimeAgo,
		})
	}

	return models.NewRecord(models.Record{
		ID:          e.ID,
		Name:        e.Name,
		Description: e.Description,
		Channel:     models.Channel(e.Channel),
		Source:      models.Source(e.Source),
		Tags:        e.Tags,
		Author: models.Author{
			Name:               e.Author.Name,
			Industry:           e.Author.Industry,
			OrgSize:            e.Author.OrgSize,
			TrustScore:         e.Author.TrustScore,
			TemplatesPublished: e.Author.TemplatesPublished,
			MemberSince:        e.Author.MemberSince,
		},
		Popularity:     e.Usage.TotalOrganizations,
		Effectiveness:  e.Effectiveness.AvgClickRate,
		Rating:         e.Rating,
		Difficulty:     e.Difficulty,
		Recency:        recency,
		Status:         models.Status(e.Status),
		Language:       e.Language,
		NetworkPowered: e.NetworkPowered,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
		Metrics: models.Metrics{
			AvgReportingRate:      e.Effectiveness.AvgReportingRate,
			CompletionRate:        e.Effectiveness.CompletionRate,
			BehaviorChangeScore:   e.Effectiveness.BehaviorChangeScore,
			ClickRateOverTime:     e.Effectiveness.ClickRateOverTime,
			ReportingRateOverTime: e.Effectiveness.ReportingRateOverTime,
		},
		Usage: models.Usage{
			TotalSimulations: e.Usage.TotalSimulations,
			Industries:       e.Usage.Industries,
			OrgSizes:         e.Usage.OrgSizes,
			Regions:          e.Usage.Regions,
			LastDeployedAgo:  e.Usage.LastDeployedAgo,
		},
		Reviews: reviews,
	})
}

func parseDate(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range createdAtLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// --- YAML file structs ---

// fixtureFile is the top-level structure of a fixture file
type fixtureFile struct {
	Templates []templateEntry `yaml:"templates"`
}

// templateEntry represents one template in a fixture file
type templateEntry struct {
	ID             int                `yaml:"id"`
	Name           string             `yaml:"name"`
	Description    string             `yaml:"description"`
	Channel        string             `yaml:"channel"`
	Source         string             `yaml:"source"`
	Author         authorEntry        `yaml:"author"`
	Status         string             `yaml:"status"`
	Difficulty     int                `yaml:"difficulty"`
	Tags           []string           `yaml:"tags"`
	Language       string             `yaml:"language"`
	Rating         float64            `yaml:"rating"`
	NetworkPowered bool               `yaml:"network_powered"`
	CreatedAt      string             `yaml:"created_at"`
	UpdatedAt      string             `yaml:"updated_at"`
	Effectiveness  effectivenessEntry `yaml:"effectiveness"`
	Usage          usageEntry         `yaml:"usage"`
	Reviews        []reviewEntry      `yaml:"reviews"`
}

type authorEntry struct {
	Name               string `yaml:"name"`
	Industry           string `yaml:"industry"`
	OrgSize            string `yaml:"org_size"`
	TrustScore         int    `yaml:"trust_score"`
	TemplatesPublished int    `yaml:"templates_published"`
	MemberSince        string `yaml:"member_since"`
}

type effectivenessEntry struct {
	AvgClickRate          float64   `yaml:"avg_click_rate"`
	AvgReportingRate      float64   `yaml:"avg_reporting_rate"`
	CompletionRate        float64   `yaml:"completion_rate"`
	BehaviorChangeScore   float64   `yaml:"behavior_change_score"`
	ClickRateOverTime     []float64 `yaml:"click_rate_over_time"`
	ReportingRateOverTime []float64 `yaml:"reporting_rate_over_time"`
}

type usageEntry struct {
	TotalOrganizations int                `yaml:"total_organizations"`
	TotalSimulations   int                `yaml:"total_simulations"`
	Industries         []models.Breakdown `yaml:"industries"`
	OrgSizes           []models.Breakdown `yaml:"org_sizes"`
	Regions            []models.Breakdown `yaml:"regions"`
	LastDeployedAgo    string             `yaml:"last_deployed_ago"`
}

type reviewEntry struct {
	ID                 int     `yaml:"id"`
	OrgIndustry        string  `yaml:"org_industry"`
	OrgSize            string  `yaml:"org_size"`
	Rating             int     `yaml:"rating"`
	Comment            string  `yaml:"comment"`
	ClickRateReduction float64 `yaml:"click_rate_reduction"`
	TimeAgo            string  `yaml:"time_ago"`
}
