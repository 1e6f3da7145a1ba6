// Package registry persists finalized provenance entries and the archival
// history of superseded ones.
package registry

import (
	"time"

	"github.com/provara/provara/provenance"
)

// Key identifies an active entry. Duplicate qualified names inside one file
// collide on this key; line order is the only disambiguation.
type Key struct {
	Filepath      string
	QualifiedName string
}

// LifecycleEvent is one append-only event in an entry's lifecycle history.
type LifecycleEvent struct {
	Event     string `yaml:"event"`
	Timestamp string `yaml:"timestamp"`
	Digest    string `yaml:"digest,omitempty"`
	Reason    string `yaml:"reason,omitempty"`
	OldDigest string `yaml:"old_digest,omitempty"`
	NewDigest string `yaml:"new_digest,omitempty"`
}

// Entry is the durable record created when an artifact is finalized.
type Entry struct {
	Filepath         string                `yaml:"filepath"`
	QualifiedName    string                `yaml:"qualified_name"`
	Digest           string                `yaml:"digest"`
	HumanCertified   string                `yaml:"human_certified"`
	Scrutiny         string                `yaml:"scrutiny,omitempty"`
	AIComposed       string                `yaml:"ai_composed,omitempty"`
	FinalizedAt      string                `yaml:"finalized_at"`
	Date             string                `yaml:"date,omitempty"`
	Notes            string                `yaml:"notes,omitempty"`
	History          []string              `yaml:"history,omitempty"`
	Reviewers        []provenance.Reviewer `yaml:"reviewers,omitempty"`
	LifecycleHistory []LifecycleEvent      `yaml:"lifecycle_history,omitempty"`
}

// Key returns the entry's identity.
func (e *Entry) Key() Key {
	return Key{Filepath: e.Filepath, QualifiedName: e.QualifiedName}
}

// AppendLifecycleEvent records an append-only lifecycle event on the entry.
func (e *Entry) AppendLifecycleEvent(event LifecycleEvent) {
	e.LifecycleHistory = append(e.LifecycleHistory, event)
}

// ArchiveRecord snapshots a reopened entry together with the digest pair
// that triggered the reopening.
type ArchiveRecord struct {
	Filepath      string `yaml:"filepath"`
	QualifiedName string `yaml:"qualified_name"`
	ArchivedAt    string `yaml:"archived_at"`
	Reason        string `yaml:"reason"`
	OldDigest     string `yaml:"old_digest,omitempty"`
	NewDigest     string `yaml:"new_digest,omitempty"`
	Entry         *Entry `yaml:"entry"`
}

// Store holds the active entries plus the global archive. Archive records
// are never removed.
type Store struct {
	Active  map[Key]*Entry
	Archive []ArchiveRecord
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{Active: make(map[Key]*Entry)}
}

// Put registers or replaces an active entry.
func (s *Store) Put(entry *Entry) {
	s.Active[entry.Key()] = entry
}

// Get returns the active entry for the key, or nil.
func (s *Store) Get(key Key) *Entry {
	return s.Active[key]
}

// Remove drops an active entry without archiving it.
func (s *Store) Remove(key Key) {
	delete(s.Active, key)
}

// ArchiveEntry stamps a reopened lifecycle event on the entry, snapshots it
// into the archive, and removes it from the active map.
func (s *Store) ArchiveEntry(key Key, reason, oldDigest, newDigest string, timestamp time.Time) {
	entry := s.Active[key]
	if entry == nil {
		return
	}
	archivedAt := timestamp.UTC().Format(time.RFC3339Nano)
	entry.AppendLifecycleEvent(LifecycleEvent{
		Event:     "reopened",
		Timestamp: archivedAt,
		Reason:    reason,
		OldDigest: oldDigest,
		NewDigest: newDigest,
	})
	s.Archive = append(s.Archive, ArchiveRecord{
		Filepath:      entry.Filepath,
		QualifiedName: entry.QualifiedName,
		ArchivedAt:    archivedAt,
		Reason:        reason,
		OldDigest:     oldDigest,
		NewDigest:     newDigest,
		Entry:         entry,
	})
	delete(s.Active, key)
}

// NewEntry builds a finalize-time snapshot of the artifact's provenance. The
// first lifecycle event is always "finalized".
func NewEntry(artifact *provenance.Artifact, metadata *provenance.Metadata, digest string, timestamp time.Time) *Entry {
	finalizedAt := timestamp.UTC().Format(time.RFC3339Nano)
	return &Entry{
		Filepath:       artifact.Path,
		QualifiedName:  artifact.QualifiedName,
		Digest:         digest,
		HumanCertified: metadata.HumanCertified,
		Scrutiny:       string(metadata.Scrutiny),
		AIComposed:     metadata.AIComposed,
		FinalizedAt:    finalizedAt,
		Date:           metadata.Date,
		Notes:          metadata.Notes,
		History:        append([]string(nil), metadata.History...),
		Reviewers:      append([]provenance.Reviewer(nil), metadata.Reviewers...),
		LifecycleHistory: []LifecycleEvent{
			{Event: "finalized", Timestamp: finalizedAt, Digest: digest},
		},
	}
}
