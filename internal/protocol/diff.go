package protocol

import (
	"fmt"
	"strings"

	"github.com/wI2L/jsondiff"
)

// PatchOp is one RFC 6902 JSON Patch operation, as produced by jsondiff
// and consumed by clients applying a game_state_patch frame.
type PatchOp struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value any    `json:"value,omitempty"`
}

// PatchList is an ordered sequence of patch operations.
type PatchList []PatchOp

// Diff computes the JSON Patch turning prev into next, both already
// masked for the same recipient. It is the unfiltered diff; callers
// apply FilterPatch before this ever reaches a socket, but Diff itself
// has no notion of recipients.
func Diff(prev, next MaskedGameState) (PatchList, error) {
	patch, err := jsondiff.Compare(prev, next)
	if err != nil {
		return nil, fmt.Errorf("protocol: computing game state diff: %w", err)
	}
	out := make(PatchList, 0, len(patch))
	for _, op := range patch {
		out = append(out, PatchOp{Op: op.Type, Path: op.Path, Value: op.Value})
	}
	return out, nil
}

// FilterPatch drops any operation a recipient must never see: the deck
// is never transmitted (MaskForViewer already omits it from the snapshot
// these patches are computed against, but the filter also catches any
// accidental future field), and hole cards of players other than
// recipientUserID are stripped. recipientUserID == "" means a spectator:
// no hand path survives.
func FilterPatch(patches PatchList, recipientUserID string) PatchList {
	out := make(PatchList, 0, len(patches))
	for _, op := range patches {
		if isDeckPath(op.Path) {
			continue
		}
		if owner, isHandPath := handPathOwner(op.Path); isHandPath && owner != recipientUserID {
			continue
		}
		out = append(out, op)
	}
	return out
}

func isDeckPath(path string) bool {
	return path == "/deck" || strings.HasPrefix(path, "/deck/")
}

// handPathOwner reports whether path touches /playerStates/{uid}/hand or
// a sub-path of it, and if so, which uid owns it.
func handPathOwner(path string) (uid string, ok bool) {
	const prefix = "/playerStates/"
	if !strings.HasPrefix(path, prefix) {
		return "", false
	}
	rest := path[len(prefix):]
	slash := strings.IndexByte(rest, '/')
	if slash < 0 {
		return "", false
	}
	owner := rest[:slash]
	field := rest[slash+1:]
	if field == "hand" || strings.HasPrefix(field, "hand/") {
		return owner, true
	}
	return "", false
}
