// Package discovery parses issuer discovery documents (line-oriented and
// JSON) and policy manifests, and evaluates issuer trust against a
// VerifierPolicy (C5). Grounded on the teacher's policy package's
// ValidationError shape and field-prefixed error reporting, generalised to
// the discovery/policy-manifest vocabularies, which are a materially
// different schema from the teacher's allow/deny/review rule engine.
package discovery

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ValidationError reports a single document-shape failure with enough
// context (code, field, message) for a caller to build a precise diagnostic.
type ValidationError struct {
	Code    string
	Message string
	Field   string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (field: %s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newValidationError(code, message, field string) *ValidationError {
	return &ValidationError{Code: code, Message: message, Field: field}
}

const (
	ErrCodeDiscoveryTooLarge   = "E_DISCOVERY_TOO_LARGE"
	ErrCodeDiscoveryShape      = "E_DISCOVERY_SHAPE"
	ErrCodeDiscoveryForbidden  = "E_DISCOVERY_FORBIDDEN_CONSTRUCT"
	ErrCodeDiscoveryRequired   = "E_DISCOVERY_REQUIRED_FIELD"
)

// Manifest is the parsed line-oriented discovery document (§4.5).
type Manifest struct {
	Version        string
	Issuer         string
	VerifyEndpoint string
	JWKSURI        string
	Payments       []PaymentEntry
	Raw            map[string]string
}

// PaymentEntry is one `- rail: ...` (or legacy `- scheme: ...`) entry under
// a `payments:` section marker.
type PaymentEntry struct {
	Rail string
	Info string
}

const (
	maxManifestLines = 20
	maxManifestBytes = 2000
)

// ParseManifest parses the strictly restricted line-oriented discovery
// dialect: `key: value` pairs, `#` comments, blank lines, and a `payments:`
// section introducing `- rail:`/`- scheme:` list entries. Any construct
// beyond that — YAML anchors, aliases, merge keys, custom tags, or more
// than one document separator — is rejected outright (§4.5's explicit
// defensive restriction against the full-YAML attack surface).
func ParseManifest(raw []byte) (*Manifest, error) {
	if len(raw) > maxManifestBytes {
		return nil, newValidationError(ErrCodeDiscoveryTooLarge,
			fmt.Sprintf("manifest exceeds %d bytes", maxManifestBytes), "")
	}

	text := string(raw)
	if strings.Count(text, "---") > 1 {
		return nil, newValidationError(ErrCodeDiscoveryForbidden,
			"multi-document streams are not allowed", "")
	}

	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	if len(lines) > maxManifestLines {
		return nil, newValidationError(ErrCodeDiscoveryTooLarge,
			fmt.Sprintf("manifest exceeds %d lines", maxManifestLines), "")
	}

	m := &Manifest{Raw: make(map[string]string)}
	inPayments := false

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		if err := rejectForbiddenConstructs(trimmed, i); err != nil {
			return nil, err
		}

		if trimmed == "payments:" {
			inPayments = true
			continue
		}

		if inPayments && strings.HasPrefix(trimmed, "-") {
			entry, err := parsePaymentEntry(trimmed, i)
			if err != nil {
				return nil, err
			}
			m.Payments = append(m.Payments, entry)
			continue
		}
		inPayments = false

		key, value, ok := strings.Cut(trimmed, ":")
		if !ok {
			return nil, newValidationError(ErrCodeDiscoveryShape,
				fmt.Sprintf("line %d is not a valid key: value pair", i+1), "")
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		m.Raw[key] = value

		switch key {
		case "version":
			m.Version = value
		case "issuer":
			m.Issuer = value
		case "verify_endpoint":
			m.VerifyEndpoint = value
		case "jwks_uri", "keys":
			m.JWKSURI = value
		}
	}

	if m.Version == "" {
		return nil, newValidationError(ErrCodeDiscoveryRequired, "version is required", "version")
	}
	if m.Issuer == "" || !strings.HasPrefix(m.Issuer, "https://") {
		return nil, newValidationError(ErrCodeDiscoveryRequired, "issuer must be an https:// URL", "issuer")
	}
	if m.VerifyEndpoint == "" {
		return nil, newValidationError(ErrCodeDiscoveryRequired, "verify_endpoint is required", "verify_endpoint")
	}
	if m.JWKSURI == "" {
		return nil, newValidationError(ErrCodeDiscoveryRequired, "a key-set URI is required", "jwks_uri")
	}

	return m, nil
}

func rejectForbiddenConstructs(line string, lineNo int) error {
	forbidden := []string{"&", "*", "<<", "!"}
	for _, tok := range forbidden {
		if strings.Contains(line, tok) {
			return newValidationError(ErrCodeDiscoveryForbidden,
				"YAML anchors and aliases are not allowed", fmt.Sprintf("line %d", lineNo+1))
		}
	}
	return nil
}

func parsePaymentEntry(line string, lineNo int) (PaymentEntry, error) {
	line = strings.TrimPrefix(line, "-")
	line = strings.TrimSpace(line)

	var entry PaymentEntry
	parts := strings.SplitN(line, "info:", 2)
	head := strings.TrimSpace(parts[0])

	key, value, ok := strings.Cut(head, ":")
	if !ok {
		return entry, newValidationError(ErrCodeDiscoveryShape,
			fmt.Sprintf("line %d is not a valid payments entry", lineNo+1), "")
	}
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)
	if key != "rail" && key != "scheme" {
		return entry, newValidationError(ErrCodeDiscoveryShape,
			fmt.Sprintf("line %d: payments entries must start with rail: or scheme:", lineNo+1), "")
	}
	entry.Rail = value
	if len(parts) == 2 {
		entry.Info = strings.TrimSpace(parts[1])
	}
	return entry, nil
}

const maxIssuerConfigBytes = 64 * 1024

// IssuerConfig is the parsed JSON issuer configuration (§4.5 alternative
// document shape).
type IssuerConfig struct {
	Version         string   `json:"version" validate:"required"`
	Issuer          string   `json:"issuer" validate:"required,url"`
	JWKSURI         string   `json:"jwks_uri" validate:"required,url"`
	VerifyEndpoint  string   `json:"verify_endpoint,omitempty"`
	ReceiptVersions []string `json:"receipt_versions,omitempty"`
	Algorithms      []string `json:"algorithms,omitempty"`
	PaymentRails    []string `json:"payment_rails,omitempty"`
	SecurityContact string   `json:"security_contact,omitempty"`
}

// ParseIssuerConfig parses the JSON issuer-configuration variant.
func ParseIssuerConfig(raw []byte) (*IssuerConfig, error) {
	if len(raw) > maxIssuerConfigBytes {
		return nil, newValidationError(ErrCodeDiscoveryTooLarge,
			fmt.Sprintf("issuer config exceeds %d bytes", maxIssuerConfigBytes), "")
	}
	var cfg IssuerConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, newValidationError(ErrCodeDiscoveryShape, "invalid JSON: "+err.Error(), "")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !strings.HasPrefix(cfg.Issuer, "https://") {
		return nil, newValidationError(ErrCodeDiscoveryRequired, "issuer must be an https:// URL", "issuer")
	}
	if !strings.HasPrefix(cfg.JWKSURI, "https://") {
		return nil, newValidationError(ErrCodeDiscoveryRequired, "jwks_uri must be an https:// URL", "jwks_uri")
	}
	return &cfg, nil
}
