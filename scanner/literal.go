package scanner

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/provara/provara/provenance"
)

// decoratorExpression returns the expression a decorator applies: the node
// following the "@" token.
func decoratorExpression(decorator *sitter.Node) *sitter.Node {
	for i := 0; i < int(decorator.NamedChildCount()); i++ {
		child := decorator.NamedChild(i)
		switch child.Type() {
		case "call", "identifier", "attribute":
			return child
		}
	}
	return nil
}

// dottedName resolves a decorator expression to its dotted name, looking
// through call nodes so both @marker and @marker(...) resolve identically.
func dottedName(node *sitter.Node, src []byte) string {
	switch node.Type() {
	case "call":
		if function := node.ChildByFieldName("function"); function != nil {
			return dottedName(function, src)
		}
	case "identifier":
		return node.Content(src)
	case "attribute":
		object := node.ChildByFieldName("object")
		attribute := node.ChildByFieldName("attribute")
		if object != nil && attribute != nil {
			prefix := dottedName(object, src)
			if prefix == "" {
				return attribute.Content(src)
			}
			return prefix + "." + attribute.Content(src)
		}
	}
	return ""
}

// callKeywords extracts the keyword arguments of a marker call as decoded
// literals plus their raw source text.
func callKeywords(expression *sitter.Node, src []byte) []provenance.Keyword {
	if expression.Type() != "call" {
		return nil
	}
	arguments := expression.ChildByFieldName("arguments")
	if arguments == nil {
		return nil
	}
	var keywords []provenance.Keyword
	for i := 0; i < int(arguments.NamedChildCount()); i++ {
		argument := arguments.NamedChild(i)
		if argument.Type() != "keyword_argument" {
			continue
		}
		nameNode := argument.ChildByFieldName("name")
		valueNode := argument.ChildByFieldName("value")
		if nameNode == nil || valueNode == nil {
			continue
		}
		keywords = append(keywords, provenance.Keyword{
			Name:  nameNode.Content(src),
			Value: literalValue(valueNode, src),
			Raw:   argument.Content(src),
		})
	}
	return keywords
}

// literalValue decodes a constant expression node into a Go value: string,
// []any for sequences, bool, or nil when the expression is not a literal.
func literalValue(node *sitter.Node, src []byte) any {
	switch node.Type() {
	case "string", "concatenated_string":
		return unquote(node.Content(src))
	case "list", "tuple":
		var items []any
		for i := 0; i < int(node.NamedChildCount()); i++ {
			items = append(items, literalValue(node.NamedChild(i), src))
		}
		return items
	case "true":
		return true
	case "false":
		return false
	case "none":
		return nil
	case "integer", "float":
		return node.Content(src)
	}
	return nil
}

// unquote strips Python string literal quoting and resolves backslash
// escapes. Encoded blocks use JSON-style double-quoted literals, but legacy
// sources may carry single quotes or triple quotes.
func unquote(literal string) string {
	literal = strings.TrimSpace(literal)
	for _, triple := range []string{`"""`, "'''"} {
		if strings.HasPrefix(literal, triple) && strings.HasSuffix(literal, triple) && len(literal) >= 6 {
			return literal[3 : len(literal)-3]
		}
	}
	if len(literal) >= 2 {
		first, last := literal[0], literal[len(literal)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			return unescape(literal[1 : len(literal)-1])
		}
	}
	return literal
}

func unescape(value string) string {
	if !strings.ContainsRune(value, '\\') {
		return value
	}
	var builder strings.Builder
	builder.Grow(len(value))
	for i := 0; i < len(value); i++ {
		if value[i] != '\\' || i+1 == len(value) {
			builder.WriteByte(value[i])
			continue
		}
		i++
		switch value[i] {
		case 'n':
			builder.WriteByte('\n')
		case 't':
			builder.WriteByte('\t')
		case 'r':
			builder.WriteByte('\r')
		case '\\', '"', '\'':
			builder.WriteByte(value[i])
		case 'u':
			if i+4 < len(value) {
				if r, ok := hexRune(value[i+1 : i+5]); ok {
					builder.WriteRune(r)
					i += 4
					continue
				}
			}
			builder.WriteByte('u')
		default:
			builder.WriteByte('\\')
			builder.WriteByte(value[i])
		}
	}
	return builder.String()
}

func hexRune(hex string) (rune, bool) {
	var value rune
	for _, char := range hex {
		value <<= 4
		switch {
		case char >= '0' && char <= '9':
			value |= char - '0'
		case char >= 'a' && char <= 'f':
			value |= char - 'a' + 10
		case char >= 'A' && char <= 'F':
			value |= char - 'A' + 10
		default:
			return 0, false
		}
	}
	return value, true
}
