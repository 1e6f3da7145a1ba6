// Package digest computes the content and metadata digests that make
// provenance records tamper-evident, and stamps the history entries that
// embed them.
package digest

import (
	"context"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/provara/provara/provenance"
)

// Content returns a stable digest of the artifact's implementation: the
// SHA-256 of a canonical, location-independent serialization of its parse
// tree, so the digest survives whitespace and formatting changes but moves
// under any token-level edit. Snippets that no longer parse on their own are
// hashed as dedented raw text.
func Content(artifact *provenance.Artifact, source []byte) string {
	snippet := artifactSource(artifact, source)
	if snippet == "" {
		return hexSum256(nil)
	}
	normalized := snippet
	if canonical, ok := canonicalTree([]byte(snippet)); ok {
		normalized = canonical
	}
	return hexSum256([]byte(normalized))
}

// OfMetadata returns the SHA-1 digest over the fixed projection of the
// provenance fields. History is deliberately excluded so the digest embedded
// in history entries is not self-referential.
func OfMetadata(metadata *provenance.Metadata) string {
	parts := []string{
		metadata.AIComposed,
		metadata.HumanCertified,
		string(metadata.Scrutiny),
		metadata.Date,
		metadata.Notes,
		strings.Join(metadata.Extras, "\n"),
	}
	sum := sha1.Sum([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

// artifactSource extracts the artifact's body span and strips the common
// leading indentation. The span starts at the definition line so the digest
// never covers the annotation block itself.
func artifactSource(artifact *provenance.Artifact, source []byte) string {
	lines := strings.Split(strings.TrimSuffix(string(source), "\n"), "\n")
	start := artifact.DefinitionLine - 1
	if start < 0 {
		start = 0
	}
	end := artifact.EndLine
	if end < artifact.DefinitionLine {
		end = artifact.DefinitionLine
	}
	if end > len(lines) {
		end = len(lines)
	}
	if start >= end {
		return ""
	}
	return strings.TrimSpace(dedent(lines[start:end]))
}

// dedent removes the longest common leading whitespace prefix shared by all
// non-blank lines.
func dedent(lines []string) string {
	prefix := ""
	first := true
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		indent := line[:len(line)-len(strings.TrimLeft(line, " \t"))]
		if first {
			prefix = indent
			first = false
			continue
		}
		for !strings.HasPrefix(indent, prefix) {
			prefix = prefix[:len(prefix)-1]
		}
	}
	if prefix == "" {
		return strings.Join(lines, "\n")
	}
	dedented := make([]string, len(lines))
	for i, line := range lines {
		dedented[i] = strings.TrimPrefix(line, prefix)
	}
	return strings.Join(dedented, "\n")
}

// canonicalTree serializes the snippet's parse tree without positions.
// Comment nodes are skipped: the reference digest is built on a parser that
// discards comments, so comment-only edits do not count as drift.
func canonicalTree(snippet []byte) (string, bool) {
	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())
	tree, err := parser.ParseCtx(context.Background(), nil, snippet)
	if err != nil {
		return "", false
	}
	root := tree.RootNode()
	if root.HasError() {
		return "", false
	}
	var builder strings.Builder
	serialize(root, snippet, &builder)
	return builder.String(), true
}

func serialize(node *sitter.Node, src []byte, builder *strings.Builder) {
	if node.Type() == "comment" {
		return
	}
	builder.WriteByte('(')
	builder.WriteString(node.Type())
	if node.ChildCount() == 0 {
		builder.WriteByte(' ')
		builder.WriteString(node.Content(src))
	} else {
		for i := 0; i < int(node.ChildCount()); i++ {
			serialize(node.Child(i), src, builder)
		}
	}
	builder.WriteByte(')')
}

func hexSum256(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
