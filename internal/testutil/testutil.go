// Package testutil provides shared test helpers for scales and providers.
package testutil

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/starford/dagaz/internal/models"
	"github.com/starford/dagaz/internal/storage"
	"github.com/starford/dagaz/internal/timescale"
)

// Scale returns a deterministic 12-month 2025 scale at 120 px/month.
func Scale(t *testing.T) *timescale.Scale {
	t.Helper()
	months := timescale.MonthsRange(time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC), 12)
	return timescale.New(120, 0, months)
}

// FileProvider creates a temporary file-backed provider that is cleaned up
// with the test.
func FileProvider(t *testing.T) *storage.File {
	t.Helper()
	f, err := storage.NewFile(filepath.Join(t.TempDir(), "annotations.json"))
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}
	return f
}

// DB creates a temporary SQLite provider that is automatically cleaned up.
func DB(t *testing.T) *storage.SQLite {
	t.Helper()
	dbFile, err := os.CreateTemp("", "dagaz-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := storage.OpenSQLite(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// MemProvider is an in-memory storage.Provider recording save calls.
type MemProvider struct {
	mu        sync.Mutex
	Saved     []models.Annotation
	SaveCount int
	LoadErr   error
	SaveErr   error
}

// Load implements storage.Provider.
func (m *MemProvider) Load() ([]models.Annotation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LoadErr != nil {
		return nil, m.LoadErr
	}
	out := make([]models.Annotation, len(m.Saved))
	copy(out, m.Saved)
	return out, nil
}

// Save implements storage.Provider.
func (m *MemProvider) Save(annotations []models.Annotation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.Saved = make([]models.Annotation, len(annotations))
	copy(m.Saved, annotations)
	m.SaveCount++
	return nil
}

// Saves returns the number of completed Save calls.
func (m *MemProvider) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.SaveCount
}

// Note builds a valid note annotation for tests.
func Note(id string, day int) models.Annotation {
	return models.Annotation{
		ID:       id,
		Kind:     models.KindNote,
		Date:     time.Date(2025, time.March, day, 0, 0, 0, 0, time.UTC),
		Y:        50,
		Width:    160,
		Height:   90,
		Text:     "note " + id,
		Fill:     "#fde68a",
		Stroke:   "#b45309",
		FontSize: 13,
	}
}

// Rect builds a valid rect annotation for tests.
func Rect(id string, day int) models.Annotation {
	return models.Annotation{
		ID:          id,
		Kind:        models.KindRect,
		Date:        time.Date(2025, time.March, day, 0, 0, 0, 0, time.UTC),
		Y:           30,
		Width:       120,
		Height:      60,
		Fill:        "#bfdbfe",
		Stroke:      "#1d4ed8",
		StrokeWidth: 2,
	}
}

// Line builds a valid line annotation for tests.
func Line(id string, day1, day2 int) models.Annotation {
	return models.Annotation{
		ID:          id,
		Kind:        models.KindLine,
		Date:        time.Date(2025, time.March, day1, 0, 0, 0, 0, time.UTC),
		Y:           40,
		Date2:       time.Date(2025, time.March, day2, 0, 0, 0, 0, time.UTC),
		Y2:          140,
		Stroke:      "#334155",
		StrokeWidth: 2,
		Arrow:       true,
	}
}
