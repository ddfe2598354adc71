// Package canon provides deterministic JSON canonicalisation for signing and
// digesting receipt claims, JWK thumbprints, and verification-report
// artifacts. It wraps RFC 8785 (JSON Canonicalization Scheme) rather than
// hand-rolling key ordering and string escaping.
package canon

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/gowebpki/jcs"
)

// Marshal canonicalises v: object members in byte-lexicographic key order,
// minimal-escape strings, no insignificant whitespace. Two values that are
// deeply equal produce byte-identical output regardless of Go struct field
// order or map iteration order.
func Marshal(v any) ([]byte, error) {
	return jcs.Marshal(v)
}

// The package has no digest helper: callers that need a digest hash
// Marshal's output themselves so the hash algorithm stays visible at the
// call site (sha256 for thumbprints, the verifier's choice for report
// artifacts).

// CheckNumberRoundTrip decodes raw with a json.Decoder in UseNumber mode,
// walks the result, and rejects any non-integer number whose float64 round
// trip would not reproduce its exact decimal text. Receipt
// amounts are integers only (validated elsewhere); this guards the one place
// non-integer numerics are allowed in the wire format: opaque `ext` payloads.
// No canonicalisation or schema library in the retrieved corpus performs this
// check, so it is implemented directly against encoding/json.Number.
func CheckNumberRoundTrip(raw []byte) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("canon: invalid JSON: %w", err)
	}
	return checkValue(v, "")
}

func checkValue(v any, path string) error {
	switch t := v.(type) {
	case json.Number:
		return checkNumber(t, path)
	case map[string]any:
		for k, child := range t {
			childPath := path + "." + k
			if err := checkValue(child, childPath); err != nil {
				return err
			}
		}
	case []any:
		for i, child := range t {
			childPath := fmt.Sprintf("%s[%d]", path, i)
			if err := checkValue(child, childPath); err != nil {
				return err
			}
		}
	}
	return nil
}

func checkNumber(n json.Number, path string) error {
	s := n.String()
	if _, err := strconv.ParseInt(s, 10, 64); err == nil {
		return nil // integers always round-trip exactly
	}
	f, err := n.Float64()
	if err != nil {
		return fmt.Errorf("canon: non-finite or unparsable number at %s: %s", path, s)
	}
	if strconv.FormatFloat(f, 'g', -1, 64) != s && strconv.FormatFloat(f, 'f', -1, 64) != s {
		return fmt.Errorf("canon: number at %s (%s) does not round-trip its exact decimal form", path, s)
	}
	return nil
}
