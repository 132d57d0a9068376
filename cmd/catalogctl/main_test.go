package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestQueryJSON(t *testing.T) {
	out, err := execute(t, "query", "--dir", "../../templates", "--category", "vishing", "--sort", "difficulty", "--json")
	if err != nil {
		t.Fatalf("query: %v", err)
	}

	var got []struct {
		ID int `json:"id"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	var ids []int
	for _, r := range got {
		ids = append(ids, r.ID)
	}
	if diff := cmp.Diff([]int{14, 4}, ids); diff != "" {
		t.Errorf("ids mismatch (-want +got):\n%s", diff)
	}
}

func TestQueryTable(t *testing.T) {
	out, err := execute(t, "query", "--dir", "../../templates", "--search", "paypal")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if !strings.Contains(out, "PayPal Invoice Notification") || !strings.Contains(out, "1 template(s)") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestQueryRejectsUnknownSort(t *testing.T) {
	_, err := execute(t, "query", "--dir", "../../templates", "--sort", "price")
	if err == nil || !strings.Contains(err.Error(), "sort") {
		t.Errorf("error = %v, want sort validation error", err)
	}
}

func TestStats(t *testing.T) {
	out, err := execute(t, "stats", "--dir", "../../templates")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	for _, want := range []string{"templates:          14", "community:          8", "organisations:      13078"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestValidate(t *testing.T) {
	if _, err := execute(t, "validate", "--dir", "../../templates"); err != nil {
		t.Errorf("validate on repo fixtures: %v", err)
	}

	dir := t.TempDir()
	bad := `templates:
  - id: 1
    name: Fine
    channel: email
    source: community
    difficulty: 2
  - id: 2
    name: Bad channel
    channel: fax
    source: community
    difficulty: 2
`
	if err := os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte(bad), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "validate", "--dir", dir)
	if err == nil {
		t.Fatal("validate succeeded with a rejected entry")
	}
	if !strings.Contains(out, "bad.yaml[1]") || !strings.Contains(out, "1 template(s) loaded, 1 rejected") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestMissingDir(t *testing.T) {
	if _, err := execute(t, "stats", "--dir", filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("stats succeeded on a missing directory")
	}
}
