package catalog

import (
	"errors"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"strings"

	"github.com/goccy/go-json"
	"github.com/samber/lo"
)

var (
	ErrNotFound        = errors.New("flag not found")
	ErrEmpty           = errors.New("flag catalog is empty")
	ErrCatalogTooSmall = errors.New("flag catalog too small")
)

// Catalog maps flag identifiers to display names. It is never mutated after
// construction, so concurrent readers need no locking.
type Catalog struct {
	names map[string]string
	ids   []string // sorted
}

// Load reads a JSON object of the form {"DE": "Deutschland", ...}.
func Load(path string) (*Catalog, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read flags file: %w", err)
	}
	var m map[string]string
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("parse flags file: %w", err)
	}
	return New(m)
}

func New(m map[string]string) (*Catalog, error) {
	if len(m) == 0 {
		return nil, ErrEmpty
	}
	names := make(map[string]string, len(m))
	for id, name := range m {
		names[id] = name
	}
	ids := lo.Keys(names)
	sort.Strings(ids)
	return &Catalog{names: names, ids: ids}, nil
}

func (c *Catalog) Lookup(id string) (string, error) {
	name, ok := c.names[id]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return name, nil
}

func (c *Catalog) Contains(id string) bool {
	_, ok := c.names[id]
	return ok
}

func (c *Catalog) Len() int { return len(c.ids) }

// Require fails with ErrCatalogTooSmall unless at least n flags are loaded.
func (c *Catalog) Require(n int) error {
	if len(c.ids) < n {
		return fmt.Errorf("%w: need %d flags, have %d", ErrCatalogTooSmall, n, len(c.ids))
	}
	return nil
}

// IDs returns every flag id in sorted order.
func (c *Catalog) IDs() []string {
	out := make([]string, len(c.ids))
	copy(out, c.ids)
	return out
}

func (c *Catalog) All() map[string]string {
	return lo.Assign(c.names)
}

// Names maps ids to display names, preserving order. Unknown ids map to "".
func (c *Catalog) Names(ids []string) []string {
	return lo.Map(ids, func(id string, _ int) string { return c.names[id] })
}

// Random picks one id uniformly.
func (c *Catalog) Random(rng *rand.Rand) string {
	return c.ids[rng.Intn(len(c.ids))]
}

// SampleDistinct draws n distinct ids without replacement, never returning
// excluding.
func (c *Catalog) SampleDistinct(rng *rand.Rand, excluding string, n int) ([]string, error) {
	pool := lo.Without(c.ids, excluding)
	if n < 0 || len(pool) < n {
		return nil, fmt.Errorf("%w: need %d flags besides %q, have %d", ErrCatalogTooSmall, n, excluding, len(pool))
	}
	// partial Fisher-Yates over the first n slots
	for i := 0; i < n; i++ {
		j := i + rng.Intn(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:n:n], nil
}

// FlagFile is the image file name served for a flag id.
func FlagFile(id string) string {
	return strings.ToLower(id) + ".svg"
}
