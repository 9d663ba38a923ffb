// Patch support lets the surrounding service apply incremental edits to an
// intent spec before recompilation, grounded on the teacher's live
// workflow-patch feature (cmd/orchestrator/handlers/run_patch.go,
// common/validation/patch_validator.go). Patches are RFC 6902 JSON Patch
// documents applied with evanphx/json-patch/v5.
package intent

import (
	"encoding/json"
	"fmt"

	jsonpatch "github.com/evanphx/json-patch/v5"
)

// ApplyPatch marshals spec, applies the RFC 6902 patch document, unmarshals
// the result, and re-validates it. The original spec is never mutated;
// ApplyPatch returns a new value or an error wrapping the validation
// problems if the patched spec is invalid.
func ApplyPatch(spec IntentSpec, patchJSON []byte) (IntentSpec, error) {
	original, err := json.Marshal(spec)
	if err != nil {
		return IntentSpec{}, fmt.Errorf("intent: marshal spec for patch: %w", err)
	}

	patch, err := jsonpatch.DecodePatch(patchJSON)
	if err != nil {
		return IntentSpec{}, fmt.Errorf("intent: decode patch: %w", err)
	}

	patched, err := patch.Apply(original)
	if err != nil {
		return IntentSpec{}, fmt.Errorf("intent: apply patch: %w", err)
	}

	var next IntentSpec
	if err := json.Unmarshal(patched, &next); err != nil {
		return IntentSpec{}, fmt.Errorf("intent: unmarshal patched spec: %w", err)
	}

	if err := next.ValidateErr(); err != nil {
		return IntentSpec{}, err
	}
	return next, nil
}
