package sourcemap

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fiasco-project/lsp-proxy/internal/logging"
)

func writeAutoFile(t *testing.T, buildDir, name string, lines []string) {
	t.Helper()
	autoDir := filepath.Join(buildDir, "auto")
	require.NoError(t, os.MkdirAll(autoDir, 0o755))
	content := ""
	for _, l := range lines {
		content += l + "\n"
	}
	require.NoError(t, os.WriteFile(filepath.Join(autoDir, name), []byte(content), 0o644))
}

func testLogger() logging.Logger {
	return logging.New(logging.LevelSilent, os.Stderr)
}

// lineMapParseLines builds the scenario-1-shaped preprocessed file described
// in SPEC_FULL.md §8: a None-section mapping into a.cpp, 20 content lines,
// an IMPLEMENTATION marker with its 5 synthetic lines, a second #line into
// b.cpp, 5 content lines, then the #endif envelope.
func lineMapParseLines() []string {
	lines := make([]string, 0, 40)
	lines = append(lines, "// preamble", "// preamble2")
	lines = append(lines, `#line 10 "a.cpp"`)
	for i := 0; i < 20; i++ {
		lines = append(lines, "content;")
	}
	lines = append(lines, "// IMPLEMENTATION")
	for i := 0; i < 5; i++ {
		lines = append(lines, "synthetic;")
	}
	lines = append(lines, `#line 100 "b.cpp"`)
	for i := 0; i < 5; i++ {
		lines = append(lines, "content2;")
	}
	lines = append(lines, "#endif // test_cc")
	return lines
}

func TestLineMapParse(t *testing.T) {
	dir := t.TempDir()
	writeAutoFile(t, dir, "test.cc", lineMapParseLines())

	m, err := Load(dir, testLogger())
	require.NoError(t, err)

	fromTest := m.fromPreprocess[filepath.Join(dir, "auto", "test.cc")]
	require.NotNil(t, fromTest)
	require.Len(t, fromTest.None, 1)
	require.Len(t, fromTest.Implementation, 1)
	require.Empty(t, fromTest.Interface)

	noneMapping := fromTest.None[0]
	assert.Equal(t, "a.cpp", noneMapping.DstFile)
	assert.Equal(t, uint32(3), noneMapping.SrcLine)
	assert.Equal(t, uint32(23), noneMapping.SrcEndLine)
	assert.Equal(t, uint32(9), noneMapping.DstLine)

	implMapping := fromTest.Implementation[0]
	assert.Equal(t, "b.cpp", implMapping.DstFile)
	assert.Equal(t, uint32(30), implMapping.SrcLine)
	assert.Equal(t, uint32(34), implMapping.SrcEndLine)
	assert.Equal(t, uint32(99), implMapping.DstLine)
}

func TestInverseMapsAgree(t *testing.T) {
	dir := t.TempDir()
	writeAutoFile(t, dir, "test.cc", lineMapParseLines())
	preprocessedPath := filepath.Join(dir, "auto", "test.cc")

	m, err := Load(dir, testLogger())
	require.NoError(t, err)

	toA := m.toPreprocess["a.cpp"]
	require.NotNil(t, toA)
	require.Len(t, toA.None, 1)
	a := toA.None[0]
	assert.Equal(t, preprocessedPath, a.DstFile)
	assert.Equal(t, uint32(9), a.SrcLine)
	assert.Equal(t, uint32(29), a.SrcEndLine)
	assert.Equal(t, uint32(3), a.DstLine)

	// Round trip (I3): test.cc:3 -> a.cpp:9 -> test.cc:3.
	loc := m.Map(FromPreprocess, preprocessedPath, 3, 0)
	assert.Equal(t, "a.cpp", loc.Path)
	assert.Equal(t, uint32(9), loc.Line)

	back := m.Map(ToPreprocess, "a.cpp", loc.Line, 0)
	assert.Equal(t, preprocessedPath, back.Path)
	assert.Equal(t, uint32(3), back.Line)
}

func TestPriorityImplementationOverInterface(t *testing.T) {
	dir := t.TempDir()
	// A line in the preprocessed file covered by both an Interface and an
	// Implementation mapping for the SAME physical line range: build two
	// separate preprocessed files so neither mapping list's own
	// non-overlap invariant is violated, but point both at the same
	// author line via two distinct synthetic entries is awkward with the
	// real parser, so we exercise priority directly against a hand-built
	// Mapping instead of round-tripping through the parser.
	m := newMapping()
	flm := newFileLineMappings()
	flm.push(LineMapping{Section: SectionInterface, SrcLine: 5, SrcEndLine: 15, DstFile: "iface.cc", DstLine: 0})
	flm.push(LineMapping{Section: SectionImplementation, SrcLine: 5, SrcEndLine: 15, DstFile: "impl.cc", DstLine: 0})
	m.toPreprocess["shared.cpp"] = flm

	loc := m.Map(ToPreprocess, "shared.cpp", 7, 2)
	assert.Equal(t, "impl.cc", loc.Path)
	assert.Equal(t, uint32(2), loc.Line)
	assert.Equal(t, uint32(2), loc.Character)

	_ = dir
}

func TestMapUnknownFileReturnsInputUnchanged(t *testing.T) {
	m := newMapping()
	loc := m.Map(ToPreprocess, "missing.cpp", 12, 4)
	assert.Equal(t, "missing.cpp", loc.Path)
	assert.Equal(t, uint32(12), loc.Line)
	assert.Equal(t, uint32(4), loc.Character)
}

func TestMapRangeCrossFileRefused(t *testing.T) {
	m := newMapping()
	flm := newFileLineMappings()
	flm.push(LineMapping{Section: SectionInterface, SrcLine: 0, SrcEndLine: 5, DstFile: "iface.cc", DstLine: 0})
	flm.push(LineMapping{Section: SectionImplementation, SrcLine: 6, SrcEndLine: 10, DstFile: "impl.cc", DstLine: 0})
	m.toPreprocess["foo.cpp"] = flm

	_, _, _, _, _, err := m.MapRange(ToPreprocess, "foo.cpp", 2, 0, 8, 0)
	assert.ErrorIs(t, err, ErrCrossFile)
}

func TestFileLineMappingsCheckDetectsOverlap(t *testing.T) {
	flm := &FileLineMappings{
		None: []LineMapping{
			{SrcLine: 0, SrcEndLine: 10},
			{SrcLine: 5, SrcEndLine: 15},
		},
	}
	assert.Error(t, flm.check())
}

func TestMapFilesWithRange(t *testing.T) {
	m := newMapping()
	flm := newFileLineMappings()
	flm.push(LineMapping{Section: SectionNone, SrcLine: 0, SrcEndLine: 10, DstFile: "x.cc", DstLine: 0})
	flm.push(LineMapping{Section: SectionImplementation, SrcLine: 20, SrcEndLine: 30, DstFile: "y.cc", DstLine: 0})
	m.fromPreprocess["shared.cc"] = flm

	files := m.MapFilesWithRange(FromPreprocess, "shared.cc", 5, 25)
	assert.Contains(t, files, "x.cc")
	assert.Contains(t, files, "y.cc")
	assert.Len(t, files, 2)
}
