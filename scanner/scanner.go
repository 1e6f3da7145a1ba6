package scanner

import (
	"context"
	"fmt"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/viant/afs"

	"github.com/provara/provara/provenance"
)

// Scanner parses Python source files and extracts annotatable artifacts with
// their attached provenance blocks. Parse results are cached by content
// fingerprint so repeated scans of unchanged files are free.
type Scanner struct {
	fs    afs.Service
	cache map[cacheKey]*File
}

// File is the result of scanning a single source file.
type File struct {
	Path      string
	Source    []byte
	Lines     []string
	Artifacts []*provenance.Artifact
}

// Lookup returns the first artifact with the given qualified name, in line
// order. Duplicate nested names sharing a dotted path are not disambiguated
// beyond line order.
func (f *File) Lookup(qualifiedName string) *provenance.Artifact {
	for _, artifact := range f.Artifacts {
		if artifact.QualifiedName == qualifiedName {
			return artifact
		}
	}
	return nil
}

// New creates a scanner backed by the default file service.
func New() *Scanner {
	return &Scanner{
		fs:    afs.New(),
		cache: make(map[cacheKey]*File),
	}
}

// ScanFile reads and parses one Python file. A file that fails structural
// parsing yields an error and no partial results.
func (s *Scanner) ScanFile(ctx context.Context, path string) (*File, error) {
	src, err := s.fs.DownloadWithURL(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	return s.ScanSource(path, src)
}

// ScanSource parses Python source from a byte slice.
func (s *Scanner) ScanSource(path string, src []byte) (*File, error) {
	key, keyed := fingerprintKey(path, src)
	if keyed {
		if cached, ok := s.cache[key]; ok {
			return cached, nil
		}
	}

	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())

	tree, err := parser.ParseCtx(context.Background(), nil, src)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	root := tree.RootNode()
	if root.HasError() {
		return nil, fmt.Errorf("failed to parse %s: source contains syntax errors", path)
	}

	file := &File{
		Path:   path,
		Source: src,
		Lines:  strings.Split(strings.TrimSuffix(string(src), "\n"), "\n"),
	}

	walker := &artifactWalker{file: file, src: src}
	walker.walk(root)

	sort.SliceStable(file.Artifacts, func(i, j int) bool {
		return file.Artifacts[i].StartLine < file.Artifacts[j].StartLine
	})

	if keyed {
		s.cache[key] = file
	}
	return file, nil
}

type artifactWalker struct {
	file     *File
	src      []byte
	qualname []string
}

func (w *artifactWalker) walk(node *sitter.Node) {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		switch child.Type() {
		case "decorated_definition":
			definition := child.ChildByFieldName("definition")
			if definition == nil {
				continue
			}
			w.visitDefinition(definition, collectDecorators(child))
		case "function_definition", "class_definition":
			w.visitDefinition(child, nil)
		default:
			w.walk(child)
		}
	}
}

func (w *artifactWalker) visitDefinition(node *sitter.Node, decorators []*sitter.Node) {
	kind := definitionKind(node, w.src)
	if kind == "" {
		return
	}
	nameNode := node.ChildByFieldName("name")
	name := "<anonymous>"
	if nameNode != nil {
		name = nameNode.Content(w.src)
	}
	qualified := strings.Join(append(append([]string(nil), w.qualname...), name), ".")

	definitionLine := int(node.StartPoint().Row) + 1
	endLine := int(node.EndPoint().Row) + 1
	startLine := definitionLine
	for _, decorator := range decorators {
		if line := int(decorator.StartPoint().Row) + 1; line < startLine {
			startLine = line
		}
	}

	tags, block := w.annotation(decorators, startLine)

	artifact := &provenance.Artifact{
		QualifiedName:  qualified,
		Kind:           kind,
		Path:           w.file.Path,
		DefinitionLine: definitionLine,
		EndLine:        endLine,
		StartLine:      startLine,
		Indent:         indentForLine(w.file.Lines, startLine),
		Tags:           tags,
		Block:          block,
	}
	w.file.Artifacts = append(w.file.Artifacts, artifact)

	if body := node.ChildByFieldName("body"); body != nil {
		w.qualname = append(w.qualname, name)
		w.walk(body)
		w.qualname = w.qualname[:len(w.qualname)-1]
	}
}

// annotation resolves the artifact's attached metadata: the marker decorator
// when present, else a legacy comment block immediately above the anchor.
func (w *artifactWalker) annotation(decorators []*sitter.Node, startLine int) (*provenance.Metadata, *provenance.Block) {
	for _, decorator := range decorators {
		expression := decoratorExpression(decorator)
		if expression == nil || !provenance.IsMarkerName(dottedName(expression, w.src)) {
			continue
		}
		metadata := provenance.FromKeywords(callKeywords(expression, w.src))
		blockStart := int(decorator.StartPoint().Row) + 1
		blockEnd := int(decorator.EndPoint().Row) + 1
		return metadata, &provenance.Block{
			StartLine: blockStart,
			EndLine:   blockEnd,
			Lines:     linesRange(w.file.Lines, blockStart, blockEnd),
			Style:     provenance.DecoratorBlock,
		}
	}
	if block := commentBlockAbove(w.file.Lines, startLine); block != nil {
		return provenance.FromCommentBlock(block.Lines), block
	}
	return &provenance.Metadata{}, nil
}

// commentBlockAbove collects the contiguous comment lines directly preceding
// the given line and returns them as a legacy annotation block when they
// carry a provenance attribution key.
func commentBlockAbove(lines []string, startLine int) *provenance.Block {
	end := startLine - 1
	begin := end
	for begin >= 1 {
		trimmed := strings.TrimSpace(lines[begin-1])
		if !strings.HasPrefix(trimmed, "#") {
			break
		}
		begin--
	}
	if begin == end {
		return nil
	}
	raw := linesRange(lines, begin+1, end)
	recognized := false
	for _, line := range raw {
		content := strings.ToLower(strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "#")))
		if strings.HasPrefix(content, "@ai_composed") || strings.HasPrefix(content, "@human_certified") {
			recognized = true
			break
		}
	}
	if !recognized {
		return nil
	}
	return &provenance.Block{
		StartLine: begin + 1,
		EndLine:   end,
		Lines:     raw,
		Style:     provenance.CommentBlock,
	}
}

func collectDecorators(decorated *sitter.Node) []*sitter.Node {
	var decorators []*sitter.Node
	for i := 0; i < int(decorated.NamedChildCount()); i++ {
		child := decorated.NamedChild(i)
		if child.Type() == "decorator" {
			decorators = append(decorators, child)
		}
	}
	return decorators
}

func definitionKind(node *sitter.Node, src []byte) provenance.Kind {
	switch node.Type() {
	case "class_definition":
		return provenance.KindClass
	case "function_definition":
		for i := 0; i < int(node.ChildCount()); i++ {
			if node.Child(i).Type() == "async" {
				return provenance.KindAsyncFunction
			}
		}
		return provenance.KindFunction
	}
	return ""
}

func indentForLine(lines []string, lineNumber int) string {
	if lineNumber < 1 || lineNumber > len(lines) {
		return ""
	}
	line := lines[lineNumber-1]
	return line[:len(line)-len(strings.TrimLeft(line, " \t"))]
}

func linesRange(lines []string, start, end int) []string {
	if start < 1 {
		start = 1
	}
	if end > len(lines) {
		end = len(lines)
	}
	if start > end {
		return nil
	}
	return append([]string(nil), lines[start-1:end]...)
}
