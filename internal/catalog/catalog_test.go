package catalog

import (
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
)

func testFlags() map[string]string {
	return map[string]string{
		"DE": "Deutschland",
		"FR": "Frankreich",
		"IT": "Italien",
		"ES": "Spanien",
		"PL": "Polen",
		"AT": "Österreich",
	}
}

func TestNewRejectsEmpty(t *testing.T) {
	if _, err := New(nil); !errors.Is(err, ErrEmpty) {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}
}

func TestLookup(t *testing.T) {
	c, err := New(testFlags())
	if err != nil {
		t.Fatalf("new catalog: %v", err)
	}
	name, err := c.Lookup("DE")
	if err != nil || name != "Deutschland" {
		t.Fatalf("expected Deutschland, got %q (%v)", name, err)
	}
	if _, err := c.Lookup("de"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("ids are case-sensitive, expected ErrNotFound, got %v", err)
	}
	if c.Len() != 6 {
		t.Fatalf("expected 6 flags, got %d", c.Len())
	}
}

func TestSampleDistinct(t *testing.T) {
	c, _ := New(testFlags())
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		got, err := c.SampleDistinct(rng, "DE", 3)
		if err != nil {
			t.Fatalf("sample: %v", err)
		}
		if len(got) != 3 {
			t.Fatalf("expected 3 ids, got %d", len(got))
		}
		seen := map[string]bool{}
		for _, id := range got {
			if id == "DE" {
				t.Fatal("sample must not contain the excluded id")
			}
			if seen[id] {
				t.Fatalf("duplicate id %s in %v", id, got)
			}
			seen[id] = true
		}
	}
	// the catalog itself is untouched by sampling
	if ids := c.IDs(); len(ids) != 6 || ids[0] != "AT" {
		t.Fatalf("catalog ids changed: %v", ids)
	}
}

func TestSampleDistinctTooSmall(t *testing.T) {
	c, _ := New(map[string]string{"DE": "Deutschland", "FR": "Frankreich", "IT": "Italien"})
	if _, err := c.SampleDistinct(rand.New(rand.NewSource(1)), "DE", 3); !errors.Is(err, ErrCatalogTooSmall) {
		t.Fatalf("expected ErrCatalogTooSmall, got %v", err)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flags.json")
	if err := os.WriteFile(path, []byte(`{"DE":"Deutschland","GB-ENG":"England"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !c.Contains("GB-ENG") {
		t.Fatal("expected GB-ENG to be loaded")
	}
	if FlagFile("GB-ENG") != "gb-eng.svg" {
		t.Fatalf("unexpected flag file %s", FlagFile("GB-ENG"))
	}
}

func TestRequire(t *testing.T) {
	c, err := New(map[string]string{"DE": "Deutschland", "FR": "Frankreich", "IT": "Italien"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := c.Require(3); err != nil {
		t.Fatalf("three flags satisfy three: %v", err)
	}
	if err := c.Require(4); !errors.Is(err, ErrCatalogTooSmall) {
		t.Fatalf("expected ErrCatalogTooSmall, got %v", err)
	}
}
