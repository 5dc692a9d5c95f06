// Package types provides common type definitions used throughout tagforge.
// This package contains shared types to avoid circular dependencies between packages.
package types

import "time"

// ComponentInfo describes one template unit discovered in the components
// folder. A unit is a "<name><ext>" file, a "<name>/" directory of typed
// variants, or both.
type ComponentInfo struct {
	// Name is the custom tag name the unit answers to (e.g. "card", "myButton")
	Name string
	// FilePath is the untyped template "<folder>/<name><ext>", empty when the
	// unit only has typed variants
	FilePath string
	// Dir is the variant directory "<folder>/<name>", empty when absent
	Dir string
	// Variants lists the type names found in Dir, sorted
	Variants []string
	// LastMod is the newest modification time across the unit's files
	LastMod time.Time
	// Hash is a CRC32 checksum over the unit's template sources
	Hash string
}

// HasDefault reports whether the unit can be rendered without a type.
func (c *ComponentInfo) HasDefault() bool {
	return c.FilePath != ""
}

// EventType represents the type of component change event.
type EventType string

const (
	EventTypeAdded   EventType = "added"
	EventTypeUpdated EventType = "updated"
	EventTypeRemoved EventType = "removed"
)

// ComponentEvent represents a change in the component registry, used for
// notifications to watchers like the preview server.
type ComponentEvent struct {
	// Type indicates the kind of change (added, updated, removed)
	Type EventType
	// Component contains the component information
	Component *ComponentInfo
	// Timestamp records when the event occurred
	Timestamp time.Time
}
