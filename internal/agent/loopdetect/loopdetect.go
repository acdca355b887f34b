// Package loopdetect finds periodic tool-call patterns in a session's
// rolling signature history, the mechanism that backs the session loop's
// loop_detection event.
package loopdetect

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Signature is a stable hash of a tool call's name and canonically
// serialized arguments.
type Signature string

// Sign computes the signature for one tool call: name plus arguments with
// map keys sorted, so equivalent calls hash identically regardless of the
// JSON object's original key order.
func Sign(name string, args json.RawMessage) Signature {
	canon := canonicalize(args)
	h := sha256.Sum256([]byte(name + "\x00" + canon))
	return Signature(hex.EncodeToString(h[:]))
}

func canonicalize(raw json.RawMessage) string {
	var v any
	if len(raw) == 0 {
		return "null"
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	out, err := json.Marshal(sortKeys(v))
	if err != nil {
		return string(raw)
	}
	return string(out)
}

// sortKeys recursively rebuilds maps into a form encoding/json will
// serialize with sorted keys (which it already does for map[string]any),
// and recurses into slices so nested objects are also canonical.
func sortKeys(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = sortKeys(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = sortKeys(val)
		}
		return out
	default:
		return t
	}
}

// Detect reports whether the last windowSize signatures consist of a
// period-k tile for some k in {1, 2, 3} with windowSize mod k == 0.
// Requires len(signatures) >= windowSize to fire.
func Detect(signatures []Signature, windowSize int) bool {
	if windowSize <= 0 || len(signatures) < windowSize {
		return false
	}
	s := signatures[len(signatures)-windowSize:]
	for _, k := range []int{1, 2, 3} {
		if windowSize%k != 0 {
			continue
		}
		if tiles(s, k) {
			return true
		}
	}
	return false
}

// tiles reports whether s[0:k], repeated, reproduces all of s.
func tiles(s []Signature, k int) bool {
	if k <= 0 || k > len(s) {
		return false
	}
	period := s[:k]
	for i, sig := range s {
		if sig != period[i%k] {
			return false
		}
	}
	return true
}
