package handlers

import (
	"bytes"
	"encoding/json"

	"go.lsp.dev/protocol"

	"github.com/fiasco-project/lsp-proxy/internal/protostate"
	"github.com/fiasco-project/lsp-proxy/internal/sourcemap"
)

// MapLocations translates a goto-definition/declaration/implementation/
// type-definition/references response's locations back to author files,
// dropping any that land somewhere the mapping can't follow rather than
// surfacing a half-translated location to the editor.
func MapLocations(state *protostate.GlobalState, locations []protocol.Location) []protocol.Location {
	result := make([]protocol.Location, 0, len(locations))
	for _, loc := range locations {
		if err := state.SourceMapping.MapLocation(sourcemap.FromPreprocess, &loc); err != nil {
			state.Logger.Warnf("goto: dropping unmappable location %+v: %v", loc, err)
			continue
		}
		result = append(result, loc)
	}
	return result
}

// MapLocationLinks translates a goto response's LocationLink items — sent
// instead of plain Locations whenever the client advertises
// textDocument.definition.linkSupport — dropping links whose target_range
// and target_selection_range map to different author files after
// translation, or whose target can't be mapped at all. sourcePath is the
// author file the request was issued against; mappedPath is the
// preprocessed file it resolved to, the space origin_selection_range (if
// present) still lives in. Grounded on
// original_source/src/handler/goto.rs:23-72's GotoDefinitionResponse::Link
// arm.
func MapLocationLinks(state *protostate.GlobalState, sourcePath, mappedPath string, links []protocol.LocationLink) []protocol.LocationLink {
	result := make([]protocol.LocationLink, 0, len(links))
	for _, link := range links {
		if link.OriginSelectionRange != nil {
			path := mappedPath
			r := *link.OriginSelectionRange
			// The original ignores this mapping's error outright and only
			// compares paths afterward; mirrored here rather than guessed
			// into a drop, since the origin selection is informational.
			_ = state.SourceMapping.MapRangeInPlace(sourcemap.FromPreprocess, &path, &r)
			if path != sourcePath {
				state.Logger.Warnf("goto: origin selection mapped to %s, expected request's source file %s", path, sourcePath)
			}
			link.OriginSelectionRange = &r
		}

		targetRange := link.TargetRange
		targetURI := link.TargetURI
		if err := state.SourceMapping.MapRangeURI(sourcemap.FromPreprocess, &targetURI, &targetRange); err != nil {
			state.Logger.Warnf("goto: dropping link with unmappable target_range %+v: %v", link.TargetRange, err)
			continue
		}

		targetSelectionRange := link.TargetSelectionRange
		selectionURI := link.TargetURI
		if err := state.SourceMapping.MapRangeURI(sourcemap.FromPreprocess, &selectionURI, &targetSelectionRange); err != nil {
			state.Logger.Warnf("goto: dropping link with unmappable target_selection_range %+v: %v", link.TargetSelectionRange, err)
			continue
		}

		if targetURI != selectionURI {
			state.Logger.Warnf("goto: target_range mapped to %s but target_selection_range mapped to %s", targetURI, selectionURI)
			continue
		}

		link.TargetRange = targetRange
		link.TargetSelectionRange = targetSelectionRange
		link.TargetURI = selectionURI
		result = append(result, link)
	}
	return result
}

// isLocationLinkItem reports whether a single array element of a goto
// response decodes as a LocationLink (carrying targetUri) rather than a
// plain Location (carrying uri) — the two shapes a definition/declaration/
// implementation/typeDefinition response can take depending on whether the
// client advertised linkSupport.
func isLocationLinkItem(item json.RawMessage) bool {
	var probe struct {
		TargetURI json.RawMessage `json:"targetUri"`
	}
	if err := json.Unmarshal(item, &probe); err != nil {
		return false
	}
	return probe.TargetURI != nil
}

// TranslateGotoResult maps a raw goto-family response FromPreprocess,
// dispatching on its actual wire shape: a single Location (legacy scalar
// response), a Location array, or a LocationLink array. sourcePath/
// mappedPath are TranslatePosition's return values from the matching
// request. Scenario 5 (§8): a LocationLink whose target_range and
// target_selection_range diverge after translation is dropped, yielding an
// empty result rather than an error.
func TranslateGotoResult(state *protostate.GlobalState, sourcePath, mappedPath string, raw json.RawMessage) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return raw, nil
	}

	if trimmed[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, err
		}
		if len(items) == 0 {
			return trimmed, nil
		}
		if isLocationLinkItem(items[0]) {
			var links []protocol.LocationLink
			if err := json.Unmarshal(trimmed, &links); err != nil {
				return nil, err
			}
			return json.Marshal(MapLocationLinks(state, sourcePath, mappedPath, links))
		}
		var locations []protocol.Location
		if err := json.Unmarshal(trimmed, &locations); err != nil {
			return nil, err
		}
		return json.Marshal(MapLocations(state, locations))
	}

	// GotoDefinitionResponse::Scalar (spec.md §9): translation errors are
	// ignored and the location is returned regardless, mirroring the
	// original's documented wart rather than inventing stricter behavior.
	var loc protocol.Location
	if err := json.Unmarshal(trimmed, &loc); err != nil {
		return nil, err
	}
	TranslateLocation(state, &loc)
	return json.Marshal(loc)
}
