package digest

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/provara/provara/blame"
	"github.com/provara/provara/provenance"
)

var digestPattern = regexp.MustCompile(`digest=([0-9a-f]{40})`)

// ExtractDigest returns the metadata digest embedded in a history entry, or
// the empty string when none is present.
func ExtractDigest(entry string) string {
	match := digestPattern.FindStringSubmatch(entry)
	if match == nil {
		return ""
	}
	return match[1]
}

// HistoryEntry builds one tamper-evident history line for the metadata as it
// stands: timestamp, embedded metadata digest, optional action label, and a
// commit suffix resolved through the blame collaborator. Missing blame data
// degrades to last_commit=uncommitted or last_commit=unknown.
func HistoryEntry(artifact *provenance.Artifact, metadata *provenance.Metadata, timestamp time.Time, action string, describer blame.Describer) string {
	segments := []string{
		timestamp.UTC().Format(time.RFC3339Nano),
		"digest=" + OfMetadata(metadata),
	}
	if action != "" {
		segments = append(segments, action)
	}
	if describer == nil {
		describer = blame.Null{}
	}
	commit, err := describer.Describe(artifact.Path, artifact.DefinitionLine)
	switch {
	case err == nil && commit != nil:
		segments = append(segments, fmt.Sprintf("last_commit=%s by %s", shortHash(commit.Hash), commit.Author))
	case describer.Dirty(artifact.Path):
		segments = append(segments, "last_commit=uncommitted")
	default:
		segments = append(segments, "last_commit=unknown")
	}
	return strings.Join(segments, " ")
}

func shortHash(hash string) string {
	if len(hash) > 7 {
		return hash[:7]
	}
	return hash
}
