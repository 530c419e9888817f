// Package sourcemap builds and queries the bidirectional line-range maps
// between author-facing Fiasco source files and the machine-facing files
// the preprocessor assembles them into.
package sourcemap

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/fiasco-project/lsp-proxy/internal/logging"
)

// Section is the semantic region of a preprocessed file a LineMapping
// belongs to. A physical line of an author file may participate in both
// its Interface and Implementation projection, so sections are kept as
// separate ordered lists rather than merged.
type Section int

const (
	SectionNone Section = iota
	SectionInterface
	SectionImplementation
)

func (s Section) String() string {
	switch s {
	case SectionInterface:
		return "interface"
	case SectionImplementation:
		return "implementation"
	default:
		return "none"
	}
}

// LineMapping is a contiguous range in one file corresponding to an
// equal-length contiguous range in another. SrcEndLine is documented as
// exclusive, but Contains treats it inclusively, mirroring the original
// implementation's own (slightly inconsistent) behavior exactly.
type LineMapping struct {
	Section    Section
	SrcLine    uint32
	SrcEndLine uint32
	DstFile    string
	DstLine    uint32
}

// Contains reports whether line falls within this mapping.
func (m *LineMapping) Contains(line uint32) bool {
	return line >= m.SrcLine && line <= m.SrcEndLine
}

// Overlaps reports whether [start, end] intersects this mapping's range.
func (m *LineMapping) Overlaps(start, end uint32) bool {
	return start <= m.SrcEndLine && m.SrcLine <= end
}

// FileLineMappings holds the three per-section mapping lists for one
// source-side file, plus the set of destination files it touches and the
// maximum end line seen (the file's length).
type FileLineMappings struct {
	Files          []string
	None           []LineMapping
	Interface      []LineMapping
	Implementation []LineMapping
	length         uint32
}

func newFileLineMappings() *FileLineMappings {
	return &FileLineMappings{}
}

func fileLineMappingsFrom(mappings []LineMapping) *FileLineMappings {
	m := newFileLineMappings()
	for _, mapping := range mappings {
		m.push(mapping)
	}
	return m
}

func (m *FileLineMappings) list(section Section) *[]LineMapping {
	switch section {
	case SectionInterface:
		return &m.Interface
	case SectionImplementation:
		return &m.Implementation
	default:
		return &m.None
	}
}

func (m *FileLineMappings) get(section Section) []LineMapping {
	return *m.list(section)
}

func (m *FileLineMappings) push(mapping LineMapping) {
	if mapping.SrcEndLine > m.length {
		m.length = mapping.SrcEndLine
	}
	found := false
	for _, f := range m.Files {
		if f == mapping.DstFile {
			found = true
			break
		}
	}
	if !found {
		m.Files = append(m.Files, mapping.DstFile)
	}
	list := m.list(mapping.Section)
	*list = append(*list, mapping)
}

func (m *FileLineMappings) sort() {
	sortBySrcLine(m.None)
	sortBySrcLine(m.Interface)
	sortBySrcLine(m.Implementation)
}

func sortBySrcLine(list []LineMapping) {
	sort.SliceStable(list, func(i, j int) bool { return list[i].SrcLine < list[j].SrcLine })
}

// check verifies the non-overlap invariant (I2) within each section list,
// returning the first violation found, if any.
func (m *FileLineMappings) check() error {
	for _, section := range []([]LineMapping){m.None, m.Interface, m.Implementation} {
		for i := 1; i < len(section); i++ {
			if section[i-1].SrcEndLine > section[i].SrcLine {
				return fmt.Errorf("ranges overlap: a=%+v, b=%+v", section[i-1], section[i])
			}
		}
	}
	return nil
}

// Length returns the maximum SrcEndLine seen across all mappings for this
// file, used to build whole-file ranges.
func (m *FileLineMappings) Length() uint32 { return m.length }

type lineMappings map[string]*FileLineMappings

// Direction selects which of the two mirrored maps to query.
type Direction int

const (
	ToPreprocess Direction = iota
	FromPreprocess
)

// Location is the result of a point query: a file, line, and character.
type Location struct {
	Path      string
	Line      uint32
	Character uint32
}

// ErrCrossFile is returned by MapRange when a range's endpoints map to
// different destination files — a semantic error the caller must handle,
// not a mapping failure to paper over.
var ErrCrossFile = fmt.Errorf("range endpoints map to different files")

// Mapping holds the two mirrored line-mapping databases: ToPreprocess maps
// author paths to their preprocessed projections, FromPreprocess is the
// inverse. Every entry in one has a mirror entry in the other with src/dst
// swapped (I1).
type Mapping struct {
	toPreprocess   lineMappings
	fromPreprocess lineMappings
}

func newMapping() *Mapping {
	return &Mapping{toPreprocess: lineMappings{}, fromPreprocess: lineMappings{}}
}

func (s *Mapping) direction(direction Direction) lineMappings {
	if direction == ToPreprocess {
		return s.toPreprocess
	}
	return s.fromPreprocess
}

func (s *Mapping) sort() {
	for _, m := range s.toPreprocess {
		m.sort()
	}
	for _, m := range s.fromPreprocess {
		m.sort()
	}
}

// Check verifies the non-overlap invariant across every file in both
// directions. Intended to be called once after ingestion, mirroring the
// original's debug-time assertion.
func (s *Mapping) Check() error {
	for path, m := range s.toPreprocess {
		if err := m.check(); err != nil {
			return fmt.Errorf("to_preprocess[%s]: %w", path, err)
		}
	}
	for path, m := range s.fromPreprocess {
		if err := m.check(); err != nil {
			return fmt.Errorf("from_preprocess[%s]: %w", path, err)
		}
	}
	return nil
}

func findMapping(mappings lineMappings, path string, line uint32, section Section) *LineMapping {
	flm, ok := mappings[path]
	if !ok {
		return nil
	}
	list := flm.get(section)
	// Relies on the list being sorted and non-overlapping: locate the last
	// mapping with SrcLine <= line via binary search.
	index := sort.Search(len(list), func(i int) bool { return !(line >= list[i].SrcLine) })
	if index == 0 {
		return nil
	}
	m := &list[index-1]
	if m.Contains(line) {
		return m
	}
	return nil
}

func iterMappings(mappings lineMappings, path string, start, end uint32, section Section) []LineMapping {
	flm, ok := mappings[path]
	if !ok {
		return nil
	}
	var out []LineMapping
	for _, m := range flm.get(section) {
		if m.Overlaps(start, end) {
			out = append(out, m)
		}
	}
	return out
}

// Map answers a point query, searching sections in priority order
// Implementation -> Interface -> None. If nothing matches, the input is
// returned unchanged (scenario 2; I3).
func (s *Mapping) Map(direction Direction, path string, line, character uint32) Location {
	mappings := s.direction(direction)
	m := findMapping(mappings, path, line, SectionImplementation)
	if m == nil {
		m = findMapping(mappings, path, line, SectionInterface)
	}
	if m == nil {
		m = findMapping(mappings, path, line, SectionNone)
	}
	if m == nil {
		return Location{Path: path, Line: line, Character: character}
	}
	return Location{Path: m.DstFile, Line: m.DstLine + (line - m.SrcLine), Character: character}
}

// MapRange maps both endpoints of a range independently and fails with
// ErrCrossFile if they land in different destination files.
func (s *Mapping) MapRange(direction Direction, path string, startLine, startChar, endLine, endChar uint32) (newPath string, newStartLine, newStartChar, newEndLine, newEndChar uint32, err error) {
	start := s.Map(direction, path, startLine, startChar)
	end := s.Map(direction, path, endLine, endChar)
	if start.Path != end.Path {
		return "", 0, 0, 0, 0, ErrCrossFile
	}
	return start.Path, start.Line, start.Character, end.Line, end.Character, nil
}

// MapFiles returns the destination-file set recorded for path, unfiltered
// by section.
func (s *Mapping) MapFiles(direction Direction, path string) []string {
	flm, ok := s.direction(direction)[path]
	if !ok {
		return nil
	}
	return flm.Files
}

// MapFilesWithRange collects the destination file of every mapping (in any
// section) whose range overlaps [startLine, endLine].
func (s *Mapping) MapFilesWithRange(direction Direction, path string, startLine, endLine uint32) map[string]struct{} {
	mappings := s.direction(direction)
	result := make(map[string]struct{})
	for _, section := range []Section{SectionImplementation, SectionInterface, SectionNone} {
		for _, m := range iterMappings(mappings, path, startLine, endLine, section) {
			result[m.DstFile] = struct{}{}
		}
	}
	return result
}

// FileLength returns the maximum SrcEndLine recorded for path in the given
// direction, and whether any mapping exists for it at all.
func (s *Mapping) FileLength(direction Direction, path string) (uint32, bool) {
	flm, ok := s.direction(direction)[path]
	if !ok {
		return 0, false
	}
	return flm.Length(), true
}

var (
	nameReplaceRE = regexp.MustCompile(`[-+.]`)
	lineRefRE     = regexp.MustCompile(`^#line (\d+) "(.+)"$`)
)

// extractLineMappings runs the state machine described in SPEC_FULL.md
// §4.1 over one preprocessed file's lines, producing its from-preprocess
// mapping list (preprocessed line -> author file/line).
func extractLineMappings(name string, lines []string) []LineMapping {
	endifPattern := "#endif // " + nameReplaceRE.ReplaceAllString(name, "_")
	curSection := SectionNone
	var mappings []LineMapping
	ln := 0
	lnOffset := uint32(0)

	for l, line := range lines {
		ln = l
		if cap := lineRefRE.FindStringSubmatch(line); cap != nil {
			if len(mappings) > 0 {
				last := &mappings[len(mappings)-1]
				closed := uint32(l) - lnOffset - 1
				if closed < last.SrcLine {
					closed = last.SrcLine
				}
				last.SrcEndLine = closed
			}
			dstLine, err := strconv.ParseUint(cap[1], 10, 32)
			if err != nil {
				dstLine = 1
			}
			mappings = append(mappings, LineMapping{
				Section:    curSection,
				SrcLine:    uint32(l) + 1,
				SrcEndLine: 0,
				DstFile:    cap[2],
				DstLine:    uint32(dstLine) - 1,
			})
			lnOffset = 0
		} else if strings.HasPrefix(line, "// INTERFACE") {
			curSection = SectionInterface
			if len(mappings) > 0 {
				mappings[len(mappings)-1].SrcEndLine = uint32(l)
			}
			lnOffset = 5
		} else if strings.HasPrefix(line, "// IMPLEMENTATION") {
			curSection = SectionImplementation
			if len(mappings) > 0 {
				mappings[len(mappings)-1].SrcEndLine = uint32(l)
			}
			lnOffset = 5
		} else if strings.HasPrefix(line, "private: // EXTENSION") {
			lnOffset = 3
		} else if strings.HasPrefix(line, endifPattern) {
			ln--
			break
		}
	}

	if len(mappings) > 0 {
		mappings[len(mappings)-1].SrcEndLine = uint32(ln) - lnOffset
	}
	return mappings
}

func extractLineMappingsForFile(path string, mapping *Mapping) error {
	f, err := os.Open(path)
	if err != nil {
		// A file that can't be opened contributes no mappings; ingestion
		// continues with the rest of auto/.
		return nil
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	name := filepath.Base(path)
	mappings := extractLineMappings(name, lines)

	for _, m := range mappings {
		flm, ok := mapping.toPreprocess[m.DstFile]
		if !ok {
			flm = newFileLineMappings()
			mapping.toPreprocess[m.DstFile] = flm
		}
		flm.push(LineMapping{
			Section:    m.Section,
			SrcLine:    m.DstLine,
			SrcEndLine: m.DstLine + (m.SrcEndLine - m.SrcLine),
			DstFile:    path,
			DstLine:    m.SrcLine,
		})
	}
	mapping.fromPreprocess[path] = fileLineMappingsFrom(mappings)
	return nil
}

// Load ingests every file directly under <buildDir>/auto/, building both
// mapping directions, then sorts and checks the result.
func Load(buildDir string, logger logging.Logger) (*Mapping, error) {
	mapping := newMapping()
	autoDir := filepath.Join(buildDir, "auto")
	entries, err := os.ReadDir(autoDir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", autoDir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(autoDir, entry.Name())
		if err := extractLineMappingsForFile(path, mapping); err != nil {
			logger.Warnf("source mapping: %v", err)
		}
	}
	mapping.sort()
	if err := mapping.Check(); err != nil {
		logger.Warnf("source mapping invariant violation: %v", err)
	}
	return mapping, nil
}
