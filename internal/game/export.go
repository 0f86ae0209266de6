package game

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// Exporter appends finished rounds to a plain text file.
type Exporter struct {
	path string
	now  func() time.Time

	mu   sync.Mutex
	seen map[string]bool // rooms that already have a header
}

func NewExporter(path string, now func() time.Time) *Exporter {
	if now == nil {
		now = time.Now
	}
	return &Exporter{path: path, now: now, seen: make(map[string]bool)}
}

// Round writes one result block; the first block of a room gets a header.
func (e *Exporter) Round(roomID string, r *Round, res RoundResultEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(e.path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	file, err := os.OpenFile(e.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	var sb strings.Builder
	if !e.seen[roomID] {
		sb.WriteString(fmt.Sprintf("\nflagdash room %s\n", roomID))
		sb.WriteString(fmt.Sprintf("Started: %s\n", e.now().Format("2006-01-02 15:04:05")))
		sb.WriteString(strings.Repeat("=", 50) + "\n")
	}
	sb.WriteString(fmt.Sprintf("Round %s: %s (%s)\n", r.ID, res.CorrectFlagName, res.CorrectFlagID))

	ids := make([]string, 0, len(res.Scores))
	for id := range res.Scores {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		mark := "-"
		if a, ok := r.Answers[id]; ok {
			mark = a.Choice
			if a.Correct {
				mark += " ✓"
			}
		}
		sb.WriteString(fmt.Sprintf("  %s: %d (%s)\n", id, res.Scores[id], mark))
	}

	if _, err := file.WriteString(sb.String()); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	e.seen[roomID] = true
	return nil
}
