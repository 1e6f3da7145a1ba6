package provenance

// Kind classifies an annotatable definition.
type Kind string

const (
	KindFunction      Kind = "function"
	KindAsyncFunction Kind = "async_function"
	KindClass         Kind = "class"
)

// BlockStyle distinguishes the two in-source annotation encodings.
type BlockStyle int

const (
	// DecoratorBlock is the canonical call-like decorator encoding.
	DecoratorBlock BlockStyle = iota
	// CommentBlock is the legacy "# @key: value" comment encoding.
	CommentBlock
)

// Block describes the existing annotation region attached to an artifact.
// Lines are 1-based and inclusive.
type Block struct {
	StartLine int
	EndLine   int
	Lines     []string
	Style     BlockStyle
}

// Artifact is one annotatable unit discovered in a source file. Artifacts are
// rebuilt on every scan and never mutated in place; lifecycle operations
// construct a new Metadata and push it back through the mutator.
type Artifact struct {
	QualifiedName  string
	Kind           Kind
	Path           string
	DefinitionLine int
	EndLine        int
	// StartLine is the anchor for inserting or removing the metadata block:
	// the earliest of the artifact's own decorator lines, else DefinitionLine.
	StartLine int
	Indent    string
	Tags      *Metadata
	Block     *Block
}
