package sourcemap

import (
	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"
)

// MapPosition mutates path/position in place, translating position.Line
// (leaving Character untouched, matching Map's contract).
func (s *Mapping) MapPosition(direction Direction, path *string, position *protocol.Position) {
	mapped := s.Map(direction, *path, position.Line, position.Character)
	*path = mapped.Path
	position.Line = mapped.Line
	position.Character = mapped.Character
}

// MapPositionURI is MapPosition over a file:// URI instead of a bare path.
func (s *Mapping) MapPositionURI(direction Direction, docURI *protocol.DocumentURI, position *protocol.Position) {
	path := docURI.Filename()
	s.MapPosition(direction, &path, position)
	*docURI = protocol.DocumentURI(uri.File(path))
}

// MapRangeInPlace maps both endpoints of range in place over path, failing
// with ErrCrossFile (without mutating) if the endpoints diverge.
func (s *Mapping) MapRangeInPlace(direction Direction, path *string, r *protocol.Range) error {
	newPath, sl, sc, el, ec, err := s.MapRange(direction, *path, r.Start.Line, r.Start.Character, r.End.Line, r.End.Character)
	if err != nil {
		return err
	}
	*path = newPath
	r.Start.Line, r.Start.Character = sl, sc
	r.End.Line, r.End.Character = el, ec
	return nil
}

// MapRangeURI is MapRangeInPlace over a file:// URI.
func (s *Mapping) MapRangeURI(direction Direction, docURI *protocol.DocumentURI, r *protocol.Range) error {
	path := docURI.Filename()
	if err := s.MapRangeInPlace(direction, &path, r); err != nil {
		return err
	}
	*docURI = protocol.DocumentURI(uri.File(path))
	return nil
}

// MapLocation maps a Location's URI and range together.
func (s *Mapping) MapLocation(direction Direction, loc *protocol.Location) error {
	return s.MapRangeURI(direction, &loc.URI, &loc.Range)
}

// MapFileRange is the URI-free form of MapFileRangeURI.
func (s *Mapping) MapFileRange(direction Direction, path string, r protocol.Range) map[string]struct{} {
	return s.MapFilesWithRange(direction, path, r.Start.Line, r.End.Line)
}

// MapFileRangeURI returns the set of destination files a range in docURI
// overlaps, used by range-bearing fan-out handlers (document-symbol,
// inlay-hint).
func (s *Mapping) MapFileRangeURI(direction Direction, docURI protocol.DocumentURI, r protocol.Range) map[string]struct{} {
	return s.MapFileRange(direction, docURI.Filename(), r)
}
