package lifecycle

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/tools/txtar"

	"github.com/provara/provara/audit"
	"github.com/provara/provara/digest"
	"github.com/provara/provara/policy"
	"github.com/provara/provara/provenance"
	"github.com/provara/provara/scanner"
)

const calcProject = `-- calc.py --
def add(a, b):
    return a + b


def multiply(a, b):
    return a * b
-- shapes.py --
class Shape:
    def area(self):
        return 0
`

// extract lays a txtar archive out under a fresh temp directory.
func extract(t *testing.T, archive string) string {
	t.Helper()
	dir := t.TempDir()
	for _, file := range txtar.Parse([]byte(archive)).Files {
		path := filepath.Join(dir, file.Name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, file.Data, 0644))
	}
	return dir
}

func fixedClock(moment time.Time) func() time.Time {
	return func() time.Time { return moment }
}

// relaxed is a policy without the default high-scrutiny requirement, so
// annotation tests assert transitions without incidental violations.
func relaxed() *policy.Config {
	return &policy.Config{}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(content)
}

func rescan(t *testing.T, path string) *scanner.File {
	t.Helper()
	file, err := scanner.New().ScanFile(context.Background(), path)
	require.NoError(t, err)
	return file
}

func TestAnnotate(t *testing.T) {
	ctx := context.Background()
	dir := extract(t, calcProject)
	moment := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	engine := New(WithClock(fixedClock(moment)), WithPolicy(relaxed()))

	result, err := engine.Annotate(ctx, []string{dir}, AnnotateOptions{Agent: "gpt-4", Notes: "auto"})
	require.NoError(t, err)
	assert.Empty(t, result.Errors)
	assert.Len(t, result.UpdatedFiles, 2)
	require.Len(t, result.Artifacts, 4)

	for _, artifact := range result.Artifacts {
		require.NotNil(t, artifact.Block, artifact.QualifiedName)
		assert.Equal(t, "gpt-4", artifact.Tags.AIComposed)
		assert.Equal(t, "pending", artifact.Tags.HumanCertified)
		assert.Equal(t, provenance.ScrutinyAuto, artifact.Tags.Scrutiny)
		assert.Equal(t, "auto", artifact.Tags.Notes)
		assert.Equal(t, "2026-01-02T03:04:05Z", artifact.Tags.Date)
		require.Len(t, artifact.Tags.History, 1)
		assert.Contains(t, artifact.Tags.History[0], "annotated")
		assert.Contains(t, artifact.Tags.History[0], "last_commit=unknown")
		assert.True(t, artifact.Tags.IsPendingCertification())
	}
}

func TestAnnotateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	dir := extract(t, calcProject)
	moment := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	engine := New(WithClock(fixedClock(moment)), WithPolicy(relaxed()))

	_, err := engine.Annotate(ctx, []string{dir}, AnnotateOptions{Agent: "gpt-4", Notes: "auto"})
	require.NoError(t, err)
	path := filepath.Join(dir, "calc.py")
	before := readFile(t, path)

	second, err := engine.Annotate(ctx, []string{dir}, AnnotateOptions{Agent: "gpt-4", Notes: "auto"})
	require.NoError(t, err)
	assert.Empty(t, second.UpdatedFiles)
	assert.Equal(t, before, readFile(t, path))

	artifact := rescan(t, path).Lookup("add")
	require.NotNil(t, artifact)
	assert.Len(t, artifact.Tags.History, 1)
}

func TestAnnotateRegeneratesHistoryAfterManualEdit(t *testing.T) {
	ctx := context.Background()
	dir := extract(t, calcProject)
	engine := New(WithClock(fixedClock(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))), WithPolicy(relaxed()))

	_, err := engine.Annotate(ctx, []string{dir}, AnnotateOptions{Agent: "gpt-4", Notes: "auto"})
	require.NoError(t, err)

	path := filepath.Join(dir, "calc.py")
	before := rescan(t, path).Lookup("add")
	oldDigest := digest.ExtractDigest(before.Tags.History[0])
	require.NotEmpty(t, oldDigest)

	edited := strings.Replace(readFile(t, path), `notes="auto"`, `notes="edited by hand"`, 1)
	require.NoError(t, os.WriteFile(path, []byte(edited), 0644))

	result, err := engine.Annotate(ctx, []string{dir}, AnnotateOptions{Agent: "gpt-4", Notes: "auto"})
	require.NoError(t, err)
	assert.Contains(t, result.UpdatedFiles, path)

	after := rescan(t, path).Lookup("add")
	require.Len(t, after.Tags.History, 1)
	refreshed := digest.ExtractDigest(after.Tags.History[0])
	assert.NotEqual(t, oldDigest, refreshed)
	assert.Equal(t, digest.OfMetadata(after.Tags), refreshed)
	assert.Equal(t, "edited by hand", after.Tags.Notes)
}

func TestAnnotateReportsPolicyViolations(t *testing.T) {
	ctx := context.Background()
	dir := extract(t, calcProject)
	engine := New(WithClock(fixedClock(time.Now())))

	result, err := engine.Annotate(ctx, []string{filepath.Join(dir, "calc.py")}, AnnotateOptions{Agent: "gpt-4"})
	require.NoError(t, err)
	require.Len(t, result.Violations, 2)
	assert.Contains(t, result.Violations[0], "requires high scrutiny")
}

func TestAnnotateSkipsUnparsableFile(t *testing.T) {
	ctx := context.Background()
	dir := extract(t, calcProject)
	broken := filepath.Join(dir, "broken.py")
	require.NoError(t, os.WriteFile(broken, []byte("def broken(:\n    pass\n"), 0644))
	engine := New(WithPolicy(relaxed()))

	result, err := engine.Annotate(ctx, []string{dir}, AnnotateOptions{Agent: "gpt-4"})
	require.NoError(t, err)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "broken.py")
	assert.Len(t, result.UpdatedFiles, 2)
	assert.Equal(t, "def broken(:\n    pass\n", readFile(t, broken))
}

func TestCertify(t *testing.T) {
	ctx := context.Background()
	dir := extract(t, calcProject)
	path := filepath.Join(dir, "calc.py")
	auditLog := audit.NewLog(filepath.Join(dir, "audit.jsonl"))
	engine := New(
		WithClock(fixedClock(time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC))),
		WithPolicy(relaxed()),
		WithAudit(auditLog),
	)

	_, err := engine.Annotate(ctx, []string{path}, AnnotateOptions{Agent: "gpt-4", Notes: "auto"})
	require.NoError(t, err)

	result, err := engine.Certify(ctx, []string{path}, "alice", "high", CertifyOptions{Notes: "looks good"})
	require.NoError(t, err)
	assert.Empty(t, result.Warnings)
	assert.Equal(t, []string{path}, result.UpdatedFiles)
	require.Len(t, result.Artifacts, 2)

	for _, artifact := range result.Artifacts {
		assert.Equal(t, "alice", artifact.Tags.HumanCertified)
		assert.Equal(t, provenance.ScrutinyHigh, artifact.Tags.Scrutiny)
		assert.Equal(t, "looks good", artifact.Tags.Notes)
		assert.False(t, artifact.Tags.IsPendingCertification())
		require.Len(t, artifact.Tags.Reviewers, 1)
		assert.Equal(t, "human", artifact.Tags.Reviewers[0].Kind)
		assert.Equal(t, "alice", artifact.Tags.Reviewers[0].ID)
		require.Len(t, artifact.Tags.History, 1)
		assert.Contains(t, artifact.Tags.History[0], "certified by alice (high)")
	}

	records, warnings, err := auditLog.Read(ctx, -1)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.Len(t, records, 2)
	assert.Equal(t, "certify", records[0].Action)
	assert.Equal(t, "alice", records[0].Data["reviewer"])
}

func TestCertifyUnknownScrutiny(t *testing.T) {
	ctx := context.Background()
	dir := extract(t, calcProject)
	path := filepath.Join(dir, "calc.py")
	engine := New(WithPolicy(relaxed()))

	_, err := engine.Annotate(ctx, []string{path}, AnnotateOptions{Agent: "gpt-4"})
	require.NoError(t, err)
	before := readFile(t, path)

	_, err = engine.Certify(ctx, []string{path}, "alice", "extreme", CertifyOptions{})
	require.EqualError(t, err, "unsupported scrutiny level: extreme")
	assert.Equal(t, before, readFile(t, path))
}

func TestCertifyWarnsOnMissingBlock(t *testing.T) {
	ctx := context.Background()
	dir := extract(t, calcProject)
	path := filepath.Join(dir, "calc.py")
	engine := New(WithPolicy(relaxed()))
	before := readFile(t, path)

	result, err := engine.Certify(ctx, []string{path}, "alice", "high", CertifyOptions{})
	require.NoError(t, err)
	assert.Empty(t, result.UpdatedFiles)
	require.Len(t, result.Warnings, 2)
	assert.Contains(t, result.Warnings[0], "lacks a metadata block")
	assert.Equal(t, before, readFile(t, path))
}

func TestCertifySkipsAlreadyCertified(t *testing.T) {
	ctx := context.Background()
	dir := extract(t, calcProject)
	path := filepath.Join(dir, "calc.py")
	engine := New(WithPolicy(relaxed()))

	_, err := engine.Annotate(ctx, []string{path}, AnnotateOptions{Agent: "gpt-4"})
	require.NoError(t, err)
	_, err = engine.Certify(ctx, []string{path}, "alice", "high", CertifyOptions{})
	require.NoError(t, err)
	before := readFile(t, path)

	again, err := engine.Certify(ctx, []string{path}, "bob", "medium", CertifyOptions{})
	require.NoError(t, err)
	assert.Empty(t, again.UpdatedFiles)
	assert.Equal(t, before, readFile(t, path))

	included, err := engine.Certify(ctx, []string{path}, "bob", "medium", CertifyOptions{IncludeExisting: true})
	require.NoError(t, err)
	require.Len(t, included.Artifacts, 2)
	assert.Equal(t, "bob", included.Artifacts[0].Tags.HumanCertified)
	assert.Len(t, included.Artifacts[0].Tags.Reviewers, 2)
}

func TestCertifyAgent(t *testing.T) {
	ctx := context.Background()
	dir := extract(t, calcProject)
	path := filepath.Join(dir, "calc.py")
	config := relaxed()
	config.Agents = policy.AgentSettings{
		Enabled:   true,
		Reviewers: []policy.AgentPermission{{ID: "reviewbot", MaxScrutiny: "medium"}},
	}
	auditLog := audit.NewLog(filepath.Join(dir, "audit.jsonl"))
	engine := New(WithPolicy(config), WithAudit(auditLog))

	_, err := engine.Annotate(ctx, []string{path}, AnnotateOptions{Agent: "gpt-4"})
	require.NoError(t, err)
	before := readFile(t, path)

	_, err = engine.CertifyAgent(ctx, []string{path}, "reviewbot", "high", CertifyOptions{})
	require.EqualError(t, err, "agent reviewbot is limited to medium scrutiny")
	assert.Equal(t, before, readFile(t, path))

	_, err = engine.CertifyAgent(ctx, []string{path}, "ghostbot", "low", CertifyOptions{})
	require.EqualError(t, err, "agent ghostbot is not permitted to certify")

	result, err := engine.CertifyAgent(ctx, []string{path}, "reviewbot", "medium", CertifyOptions{})
	require.NoError(t, err)
	require.Len(t, result.Artifacts, 2)
	for _, artifact := range result.Artifacts {
		assert.Equal(t, "reviewbot", artifact.Tags.AgentCertified)
		assert.Equal(t, "pending", artifact.Tags.HumanCertified)
		assert.True(t, artifact.Tags.IsPendingCertification())
		require.Len(t, artifact.Tags.Reviewers, 1)
		assert.Equal(t, "agent", artifact.Tags.Reviewers[0].Kind)
	}

	records, _, err := auditLog.Read(ctx, -1)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "agent-certify", records[0].Action)
}

func TestCertifyAgentDisabled(t *testing.T) {
	dir := extract(t, calcProject)
	engine := New()
	_, err := engine.CertifyAgent(context.Background(), []string{dir}, "reviewbot", "low", CertifyOptions{})
	require.EqualError(t, err, "agent certification disabled for reviewbot")
}

func TestVerifyAll(t *testing.T) {
	ctx := context.Background()
	dir := extract(t, calcProject)
	path := filepath.Join(dir, "calc.py")
	engine := New(WithPolicy(relaxed()))

	_, err := engine.Annotate(ctx, []string{path}, AnnotateOptions{Agent: "gpt-4"})
	require.NoError(t, err)

	result, err := engine.VerifyAll(ctx, "alice", path)
	require.NoError(t, err)
	require.Len(t, result.Artifacts, 2)
	for _, artifact := range result.Artifacts {
		assert.Equal(t, provenance.ScrutinyHigh, artifact.Tags.Scrutiny)
		assert.Equal(t, "alice", artifact.Tags.HumanCertified)
	}
}
