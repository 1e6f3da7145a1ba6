package provenance

import (
	"encoding/json"
	"fmt"
	"strings"
)

// MarkerName is the reserved decorator name carrying provenance metadata.
const MarkerName = "provenance"

// markerAliases lists the qualified spellings accepted in addition to a plain
// dotted-suffix match, to tolerate import aliasing. Membership checks are
// case-insensitive.
var markerAliases = map[string]bool{
	MarkerName:                         true,
	"provara." + MarkerName:            true,
	"provara.decorators." + MarkerName: true,
}

// IsMarkerName reports whether a (possibly dotted) decorator name refers to
// the provenance marker.
func IsMarkerName(name string) bool {
	if name == "" {
		return false
	}
	lowered := strings.ToLower(name)
	if markerAliases[lowered] {
		return true
	}
	parts := strings.Split(lowered, ".")
	return parts[len(parts)-1] == MarkerName
}

// Keyword is one keyword argument extracted from a marker decorator call.
// Value holds the decoded literal (string, []string or bool) or nil when the
// argument is not a recognizable literal. Raw preserves the argument's source
// text so unrecognized keywords survive verbatim.
type Keyword struct {
	Name  string
	Value any
	Raw   string
}

// FromKeywords decodes decorator keyword arguments into a Metadata record.
// Unrecognized keyword names pass through to Extras as raw representations.
func FromKeywords(keywords []Keyword) *Metadata {
	metadata := &Metadata{}
	for _, keyword := range keywords {
		switch keyword.Name {
		case "ai_composed":
			metadata.AIComposed = asString(keyword.Value)
		case "human_certified":
			metadata.HumanCertified = asString(keyword.Value)
		case "agent_certified":
			metadata.AgentCertified = asString(keyword.Value)
		case "scrutiny":
			metadata.Scrutiny = ParseScrutiny(asString(keyword.Value))
		case "date":
			metadata.Date = asString(keyword.Value)
		case "notes":
			metadata.Notes = asString(keyword.Value)
		case "done":
			value, ok := keyword.Value.(bool)
			metadata.Done = ok && value
		case "history":
			metadata.History = asStringList(keyword.Value)
		case "extras":
			metadata.Extras = append(metadata.Extras, asStringList(keyword.Value)...)
		case "reviewers":
			for _, encoded := range asStringList(keyword.Value) {
				metadata.Reviewers = append(metadata.Reviewers, decodeReviewer(encoded))
			}
		default:
			metadata.Extras = append(metadata.Extras, keyword.Raw)
		}
	}
	return metadata
}

// FromCommentBlock decodes the legacy structured-comment encoding. Lines that
// do not carry a recognized key are preserved in Extras.
func FromCommentBlock(lines []string) *Metadata {
	metadata := &Metadata{}
	for _, line := range lines {
		content := strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "#"))
		if content == "" {
			continue
		}
		if strings.HasPrefix(content, "@") {
			key, value := splitKeyValue(content[1:])
			switch key {
			case "ai_composed":
				metadata.AIComposed = value
			case "human_certified":
				if value == "" {
					value = "pending"
				}
				metadata.HumanCertified = value
			case "agent_certified":
				metadata.AgentCertified = value
			default:
				metadata.Extras = append(metadata.Extras, line)
			}
			continue
		}
		key, value := splitKeyValue(content)
		switch key {
		case "scrutiny":
			metadata.Scrutiny = ParseScrutiny(value)
		case "date":
			metadata.Date = value
		case "notes":
			metadata.Notes = value
		case "history":
			if value != "" {
				metadata.History = append(metadata.History, value)
			}
		default:
			metadata.Extras = append(metadata.Extras, line)
		}
	}
	return metadata
}

// EncodeDecorator serializes metadata into decorator source lines at the
// given indent. Recognized fields render in a fixed order; an empty record
// still renders a minimal marker so the artifact stays discoverable as
// annotated.
func EncodeDecorator(metadata *Metadata, indent string) []string {
	prefix := indent + "@" + MarkerName
	if metadata == nil || isEmpty(metadata) {
		return []string{prefix + "()"}
	}

	lines := []string{prefix + "("}
	field := func(name, value string) {
		if value != "" {
			lines = append(lines, fmt.Sprintf("%s    %s=%s,", indent, name, quote(value)))
		}
	}
	field("ai_composed", metadata.AIComposed)
	field("human_certified", metadata.HumanCertified)
	field("agent_certified", metadata.AgentCertified)
	field("scrutiny", string(metadata.Scrutiny))
	field("date", metadata.Date)
	field("notes", metadata.Notes)
	if metadata.Done {
		lines = append(lines, indent+"    done=True,")
	}
	lines = append(lines, encodeSequence("history", metadata.History, indent)...)
	lines = append(lines, encodeSequence("extras", metadata.Extras, indent)...)
	if len(metadata.Reviewers) > 0 {
		encoded := make([]string, 0, len(metadata.Reviewers))
		for _, reviewer := range metadata.Reviewers {
			encoded = append(encoded, encodeReviewer(reviewer))
		}
		lines = append(lines, encodeSequence("reviewers", encoded, indent)...)
	}
	lines = append(lines, indent+")")
	return lines
}

func encodeSequence(name string, values []string, indent string) []string {
	if len(values) == 0 {
		return nil
	}
	lines := []string{fmt.Sprintf("%s    %s=[", indent, name)}
	for _, value := range values {
		lines = append(lines, fmt.Sprintf("%s        %s,", indent, quote(value)))
	}
	lines = append(lines, indent+"    ],")
	return lines
}

// encodeReviewer renders a reviewer as a pipe-joined literal. Notes come
// last so they may themselves contain pipes.
func encodeReviewer(reviewer Reviewer) string {
	return strings.Join([]string{
		reviewer.Kind,
		reviewer.ID,
		string(reviewer.Scrutiny),
		reviewer.Timestamp,
		reviewer.Notes,
	}, "|")
}

func decodeReviewer(encoded string) Reviewer {
	parts := strings.SplitN(encoded, "|", 5)
	for len(parts) < 5 {
		parts = append(parts, "")
	}
	return Reviewer{
		Kind:      parts[0],
		ID:        parts[1],
		Scrutiny:  ParseScrutiny(parts[2]),
		Timestamp: parts[3],
		Notes:     parts[4],
	}
}

func isEmpty(metadata *Metadata) bool {
	return !metadata.HasMetadata() &&
		metadata.AgentCertified == "" &&
		!metadata.Done &&
		len(metadata.History) == 0 &&
		len(metadata.Extras) == 0 &&
		len(metadata.Reviewers) == 0
}

func splitKeyValue(content string) (string, string) {
	key, value, _ := strings.Cut(content, ":")
	return strings.ToLower(strings.TrimSpace(key)), strings.TrimSpace(value)
}

func asString(value any) string {
	switch typed := value.(type) {
	case string:
		return typed
	case nil:
		return ""
	default:
		return fmt.Sprint(typed)
	}
}

func asStringList(value any) []string {
	switch typed := value.(type) {
	case string:
		return []string{typed}
	case []string:
		return append([]string(nil), typed...)
	case []any:
		result := make([]string, 0, len(typed))
		for _, item := range typed {
			if item == nil {
				continue
			}
			result = append(result, asString(item))
		}
		return result
	default:
		return nil
	}
}

// quote renders a string as a double-quoted literal with JSON escaping,
// which Python accepts verbatim.
func quote(value string) string {
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprintf("%q", value)
	}
	return string(encoded)
}
