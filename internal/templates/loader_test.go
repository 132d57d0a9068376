package templates

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/terra-clan/template-marketplace/internal/models"
)

func writeFixture(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(filepath.Join(dir, name)), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
}

const twoTemplates = `templates:
  - id: 2
    name: WiFi Security QR Trap
    description: Fake guest WiFi posters
    channel: qr-code
    source: community
    author: {name: Siemens Cyber Defense, trust_score: 96}
    difficulty: 3
    tags: [qr-code, wifi]
    rating: 4.5
    effectiveness: {avg_click_rate: 19.5}
    usage: {total_organizations: 234}
  - id: 1
    name: DocuSign Credential Harvest
    channel: email
    source: sosafe-curated
    author: {name: SoSafe Threat Lab}
    difficulty: 4
    rating: 4.7
    created_at: Oct 12, 2024
    effectiveness: {avg_click_rate: 23.4}
    usage: {total_organizations: 1247}
    reviews:
      - {id: 1, rating: 5, comment: Extremely realistic, click_rate_reduction: -34}
`

func TestLoadFromDir(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "curated.yaml", twoTemplates)

	loader := NewLoader()
	result, err := loader.LoadFromDir(dir)
	if err != nil {
		t.Fatalf("LoadFromDir failed: %v", err)
	}
	if result.Loaded != 2 || len(result.Rejected) != 0 {
		t.Fatalf("result = %+v, want 2 loaded and no rejections", result)
	}

	snap := loader.Snapshot()
	if len(snap) != 2 || snap[0].ID != 1 || snap[1].ID != 2 {
		t.Fatalf("snapshot not ordered by id: %v", snap)
	}

	docusign := loader.Get(1)
	if docusign == nil {
		t.Fatal("template 1 not found")
	}
	if docusign.Popularity != 1247 {
		t.Errorf("popularity = %d, want 1247", docusign.Popularity)
	}
	if docusign.Effectiveness != 23.4 {
		t.Errorf("effectiveness = %v, want 23.4", docusign.Effectiveness)
	}
	if docusign.Recency <= 1 {
		t.Errorf("recency = %d, want unix time of created_at", docusign.Recency)
	}
	if len(docusign.Reviews) != 1 || docusign.Reviews[0].ClickRateReduction != -34 {
		t.Errorf("reviews = %+v", docusign.Reviews)
	}

	qr := loader.Get(2)
	if qr.Recency != 2 {
		t.Errorf("recency without created_at = %d, want id", qr.Recency)
	}
	if qr.Author.TrustScore != 96 {
		t.Errorf("trust score = %d, want 96", qr.Author.TrustScore)
	}
}

func TestLoadFromDirRejectsInvalidAndDuplicates(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "a.yaml", twoTemplates)
	writeFixture(t, dir, "nested/b.yml", `templates:
  - id: 1
    name: Duplicate
    channel: sms
    source: community
    difficulty: 2
  - id: 3
    name: Fax Blast
    channel: fax
    source: community
    difficulty: 2
  - id: 4
    name: Too Hard
    channel: sms
    source: community
    difficulty: 9
  - id: 5
    name: Valid SMS
    channel: sms
    source: community
    difficulty: 2
`)
	writeFixture(t, dir, "broken.yaml", "templates: [unterminated")

	loader := NewLoader()
	result, err := loader.LoadFromDir(dir)
	if err != nil {
		t.Fatalf("LoadFromDir failed: %v", err)
	}

	if result.Files != 3 {
		t.Errorf("files = %d, want 3", result.Files)
	}
	if result.Loaded != 3 {
		t.Errorf("loaded = %d, want 3", result.Loaded)
	}
	if len(result.Rejected) != 4 {
		t.Fatalf("rejected = %d, want 4: %+v", len(result.Rejected), result.Rejected)
	}

	var dup, invalid int
	for _, r := range result.Rejected {
		var verr *models.ValidationError
		switch {
		case errors.Is(r.Err, ErrDuplicateID):
			dup++
		case errors.As(r.Err, &verr):
			invalid++
		}
	}
	if dup != 1 || invalid != 2 {
		t.Errorf("duplicates = %d, invalid = %d, want 1 and 2", dup, invalid)
	}

	if got := loader.Get(1).Name; got != "DocuSign Credential Harvest" {
		t.Errorf("first occurrence should win, got %q", got)
	}
	if loader.Get(3) != nil || loader.Get(4) != nil {
		t.Error("invalid templates entered the catalog")
	}
}

func TestLoadFromDirMissing(t *testing.T) {
	loader := NewLoader()
	if _, err := loader.LoadFromDir(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "ok.yaml", twoTemplates)
	writeFixture(t, dir, "bad.yaml", `templates:
  - {id: 1, name: x, channel: email, source: community, difficulty: 2, rating: 7}
`)

	loader := NewLoader()
	records, err := loader.LoadFromFile(filepath.Join(dir, "ok.yaml"))
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("records = %d, want 2", len(records))
	}
	if loader.Len() != 0 {
		t.Error("LoadFromFile must not change the snapshot")
	}

	_, err = loader.LoadFromFile(filepath.Join(dir, "bad.yaml"))
	var verr *models.ValidationError
	if !errors.As(err, &verr) || verr.Field != "rating" {
		t.Errorf("err = %v, want rating ValidationError", err)
	}
}

func TestPutKeepsPublishedSnapshots(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "curated.yaml", twoTemplates)

	loader := NewLoader()
	if _, err := loader.LoadFromDir(dir); err != nil {
		t.Fatalf("LoadFromDir failed: %v", err)
	}

	before := loader.Snapshot()
	original := loader.Get(2)

	loader.Put(original.WithPopularity(300))

	if before[1] != original || before[1].Popularity != 234 {
		t.Error("earlier snapshot was modified")
	}
	if got := loader.Get(2).Popularity; got != 300 {
		t.Errorf("popularity after Put = %d, want 300", got)
	}
	if loader.Len() != 2 {
		t.Errorf("len = %d, want 2", loader.Len())
	}

	loader.Remove(1)
	if loader.Get(1) != nil || loader.Len() != 1 {
		t.Error("Remove did not drop template 1")
	}
}

func TestSubscribe(t *testing.T) {
	loader := NewLoader()

	var mu sync.Mutex
	var sizes []int
	loader.Subscribe(func(snap []*models.Record) {
		mu.Lock()
		defer mu.Unlock()
		sizes = append(sizes, len(snap))
	})

	rec, err := models.NewRecord(models.Record{ID: 7, Name: "x", Channel: models.ChannelSMS, Source: models.SourceCommunity, Difficulty: 1})
	if err != nil {
		t.Fatalf("NewRecord: %v", err)
	}
	loader.Put(rec)
	loader.Remove(7)

	mu.Lock()
	defer mu.Unlock()
	if len(sizes) != 2 || sizes[0] != 1 || sizes[1] != 0 {
		t.Errorf("notifications = %v, want [1 0]", sizes)
	}
}

func TestConcurrentPut(t *testing.T) {
	loader := NewLoader()

	var wg sync.WaitGroup
	for i := 1; i <= 50; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			rec, err := models.NewRecord(models.Record{ID: id, Name: "t", Channel: models.ChannelEmail, Source: models.SourceCurated, Difficulty: 1})
			if err != nil {
				t.Errorf("NewRecord: %v", err)
				return
			}
			loader.Put(rec)
			_ = loader.Snapshot()
		}(i)
	}
	wg.Wait()

	if loader.Len() != 50 {
		t.Errorf("len = %d, want 50", loader.Len())
	}
}

func TestLoadMarketplaceFixtures(t *testing.T) {
	// Use the repository fixtures
	templatesDir := filepath.Join("..", "..", "templates")
	if _, err := os.Stat(templatesDir); os.IsNotExist(err) {
		t.Skip("templates directory not found, skipping")
	}

	loader := NewLoader()
	result, err := loader.LoadFromDir(templatesDir)
	if err != nil {
		t.Fatalf("LoadFromDir failed: %v", err)
	}
	if len(result.Rejected) != 0 {
		t.Fatalf("fixtures rejected: %+v", result.Rejected)
	}
	if loader.Len() != 14 {
		t.Errorf("expected 14 templates, got %d", loader.Len())
	}

	paypal := loader.Get(7)
	if paypal == nil {
		t.Fatal("PayPal template not found")
	}
	if paypal.Popularity != 2341 {
		t.Errorf("PayPal popularity = %d, want 2341", paypal.Popularity)
	}
	if paypal.Source != models.SourceCurated {
		t.Errorf("PayPal source = %s", paypal.Source)
	}
}

func TestUpdate(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "curated.yaml", twoTemplates)

	loader := NewLoader()
	if _, err := loader.LoadFromDir(dir); err != nil {
		t.Fatalf("LoadFromDir failed: %v", err)
	}

	updated, ok := loader.Update(2, func(r *models.Record) *models.Record {
		return r.WithPopularity(r.Popularity + 1)
	})
	if !ok || updated.Popularity != 235 || loader.Get(2).Popularity != 235 {
		t.Errorf("Update(2) = %v, %v; want popularity 235", updated, ok)
	}

	if _, ok := loader.Update(99, func(r *models.Record) *models.Record { return r }); ok {
		t.Error("Update on unknown id reported ok")
	}
	if loader.Get(99) != nil || loader.Len() != 2 {
		t.Error("Update on unknown id added a template")
	}

	if _, ok := loader.Update(1, func(*models.Record) *models.Record { return nil }); ok {
		t.Error("Update with nil result reported ok")
	}
	if loader.Get(1) == nil {
		t.Error("Update with nil result removed the template")
	}
}

func TestSubscriberCanWrite(t *testing.T) {
	loader := NewLoader()
	loader.Subscribe(func(snap []*models.Record) {
		for _, r := range snap {
			if r.ID == 7 {
				loader.Remove(7)
			}
		}
	})

	rec, err := models.NewRecord(models.Record{ID: 7, Name: "x", Channel: models.ChannelSMS, Source: models.SourceCommunity, Difficulty: 1})
	if err != nil {
		t.Fatalf("NewRecord: %v", err)
	}

	done := make(chan struct{})
	go func() {
		loader.Put(rec)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Put deadlocked with a writing subscriber")
	}
	if loader.Len() != 0 {
		t.Errorf("len = %d, want 0", loader.Len())
	}
}
