// Package storage defines the annotation persistence abstraction.
package storage

import "github.com/starford/dagaz/internal/models"

// Provider is the interface for annotation persistence. Writes are
// last-write-wins: the store never awaits a Save, and a later Save simply
// supersedes an earlier one.
type Provider interface {
	// Load returns every persisted annotation. Malformed entries are dropped
	// silently; only an unreadable backing store is an error.
	Load() ([]models.Annotation, error)
	// Save replaces the persisted collection with the given one.
	Save(annotations []models.Annotation) error
}
