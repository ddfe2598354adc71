package discovery

import (
	"fmt"
	"strconv"
	"strings"
)

// PolicyManifest is the restricted-dialect policy document (§4.5, §4.6's
// sibling vocabulary). This is a deliberately separate parser from
// ParseManifest/ParseIssuerConfig: the discovery and policy-manifest
// grammars share surface similarity but diverge in accepted keywords and
// quoting rules, and the spec explicitly calls out treating them as two
// parsers rather than one overloaded one (§9 Open Questions: "The
// line-oriented dialect's exact acceptance grammar differs slightly between
// the discovery and the policy manifest (the latter accepts quoted strings
// and a small set of keywords)"). Per that Open Question, the policy
// manifest is a line-oriented `key: value` dialect like the discovery
// manifest, not JSON — with the addition of double-quoted string values,
// which the discovery dialect never needed.
type PolicyManifest struct {
	Version     string
	Usage       string
	Purposes    []string
	Receipts    string
	Attribution string
	RateLimit   string
	License     string
	Price       string
	Currency    string
	Contact     string
}

var policyManifestKeys = map[string]bool{
	"version": true, "usage": true, "purposes": true, "receipts": true,
	"attribution": true, "rate_limit": true, "license": true,
	"price": true, "currency": true, "contact": true,
}

var validUsage = map[string]bool{"open": true, "conditional": true, "restricted": true}
var validReceipts = map[string]bool{"required": true, "optional": true, "none": true, "": true}

// ParsePolicyManifest parses a policy manifest document against the closed
// vocabulary in §4.5: any key outside the ten recognised fields, or any
// value outside an enumerated field's closed set, is rejected. Like
// ParseManifest, it rejects YAML anchors/aliases/merge-keys/custom tags and
// multi-document streams; unlike ParseManifest, a value may be a
// double-quoted string (e.g. `license: "CC-BY 4.0, non-commercial"`), and
// `purposes` is a comma-separated list rather than a `- `-prefixed block.
func ParsePolicyManifest(raw []byte) (*PolicyManifest, error) {
	text := string(raw)
	if strings.Count(text, "---") > 1 {
		return nil, newValidationError(ErrCodeDiscoveryForbidden,
			"multi-document streams are not allowed", "")
	}

	pm := &PolicyManifest{}
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		if err := rejectForbiddenConstructs(trimmed, i); err != nil {
			return nil, err
		}

		key, rawValue, ok := strings.Cut(trimmed, ":")
		if !ok {
			return nil, newValidationError(ErrCodeDiscoveryShape,
				fmt.Sprintf("line %d is not a valid key: value pair", i+1), "")
		}
		key = strings.TrimSpace(key)
		if !policyManifestKeys[key] {
			return nil, newValidationError(ErrCodeDiscoveryShape,
				fmt.Sprintf("unrecognised policy manifest key %q", key), key)
		}

		value, err := unquotePolicyValue(strings.TrimSpace(rawValue))
		if err != nil {
			return nil, newValidationError(ErrCodeDiscoveryShape,
				fmt.Sprintf("line %d: %v", i+1, err), key)
		}

		switch key {
		case "version":
			pm.Version = value
		case "usage":
			pm.Usage = value
		case "purposes":
			pm.Purposes = splitPurposeList(value)
		case "receipts":
			pm.Receipts = value
		case "attribution":
			pm.Attribution = value
		case "rate_limit":
			pm.RateLimit = value
		case "license":
			pm.License = value
		case "price":
			pm.Price = value
		case "currency":
			pm.Currency = value
		case "contact":
			pm.Contact = value
		}
	}

	if pm.Version == "" {
		return nil, newValidationError(ErrCodeDiscoveryRequired, "version is required", "version")
	}
	if !validUsage[pm.Usage] {
		return nil, newValidationError(ErrCodeDiscoveryShape,
			fmt.Sprintf("usage must be one of open, conditional, restricted (got %q)", pm.Usage), "usage")
	}
	if !validReceipts[pm.Receipts] {
		return nil, newValidationError(ErrCodeDiscoveryShape,
			fmt.Sprintf("receipts must be one of required, optional, none (got %q)", pm.Receipts), "receipts")
	}

	return pm, nil
}

// unquotePolicyValue strips a single layer of double-quoting, if present,
// via strconv.Unquote so a quoted value may itself contain a literal `:`,
// `,`, or leading/trailing space. A bare (unquoted) value is returned as-is.
func unquotePolicyValue(raw string) (string, error) {
	if len(raw) >= 2 && raw[0] == '"' && raw[len(raw)-1] == '"' {
		unquoted, err := strconv.Unquote(raw)
		if err != nil {
			return "", fmt.Errorf("malformed quoted string: %w", err)
		}
		return unquoted, nil
	}
	return raw, nil
}

// splitPurposeList splits a comma-separated purposes value, trimming
// surrounding space from each entry and dropping empty entries.
func splitPurposeList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
