package discovery

import (
	"strings"
	"testing"
)

func validManifest() string {
	return "version: 1\n" +
		"issuer: https://issuer.example\n" +
		"verify_endpoint: https://issuer.example/verify\n" +
		"jwks_uri: https://issuer.example/.well-known/jwks.json\n" +
		"payments:\n" +
		"- rail: stripe\n" +
		"  info: checkout\n"
}

func TestParseManifest_Valid(t *testing.T) {
	m, err := ParseManifest([]byte(validManifest()))
	if err != nil {
		t.Fatalf("ParseManifest() error = %v", err)
	}
	if m.Issuer != "https://issuer.example" {
		t.Errorf("Issuer = %s", m.Issuer)
	}
	if len(m.Payments) != 1 || m.Payments[0].Rail != "stripe" {
		t.Errorf("Payments = %+v", m.Payments)
	}
}

func TestParseManifest_RejectsAnchors(t *testing.T) {
	doc := "version: 1\n" +
		"issuer: https://issuer.example\n" +
		"verify_endpoint: https://issuer.example/verify\n" +
		"jwks_uri: https://issuer.example/keys.json\n" +
		"anchor: &ref value\n"

	_, err := ParseManifest([]byte(doc))
	if err == nil {
		t.Fatal("ParseManifest() should reject an anchor construct")
	}
	ve, ok := err.(*ValidationError)
	if !ok {
		t.Fatalf("error is not *ValidationError: %v", err)
	}
	if ve.Message != "YAML anchors and aliases are not allowed" {
		t.Errorf("Message = %q, want exact S2 wording", ve.Message)
	}
}

func TestParseManifest_RejectsTooManyLines(t *testing.T) {
	doc := "version: 1\nissuer: https://issuer.example\nverify_endpoint: https://issuer.example/verify\njwks_uri: https://issuer.example/keys.json\n"
	for i := 0; i < 25; i++ {
		doc += "extra_key_only_for_padding: v\n"
	}

	_, err := ParseManifest([]byte(doc))
	if err == nil {
		t.Fatal("ParseManifest() should reject a manifest with more than 20 lines")
	}
	ve, ok := err.(*ValidationError)
	if !ok {
		t.Fatalf("error is not *ValidationError: %v", err)
	}
	if want := "exceeds 20 lines"; !strings.Contains(ve.Message, want) {
		t.Errorf("Message = %q, want to contain %q", ve.Message, want)
	}
}

func TestParseManifest_RequiresHTTPSIssuer(t *testing.T) {
	doc := "version: 1\n" +
		"issuer: http://issuer.example\n" +
		"verify_endpoint: https://issuer.example/verify\n" +
		"jwks_uri: https://issuer.example/keys.json\n"

	if _, err := ParseManifest([]byte(doc)); err == nil {
		t.Fatal("ParseManifest() should reject a non-https issuer")
	}
}

func TestParseIssuerConfig_Valid(t *testing.T) {
	doc := `{"version":"1","issuer":"https://issuer.example","jwks_uri":"https://issuer.example/keys.json"}`
	cfg, err := ParseIssuerConfig([]byte(doc))
	if err != nil {
		t.Fatalf("ParseIssuerConfig() error = %v", err)
	}
	if cfg.JWKSURI != "https://issuer.example/keys.json" {
		t.Errorf("JWKSURI = %s", cfg.JWKSURI)
	}
}

func TestParsePolicyManifest_RejectsUnknownKey(t *testing.T) {
	doc := "version: 1\nusage: open\nunknown_field: x\n"
	if _, err := ParsePolicyManifest([]byte(doc)); err == nil {
		t.Fatal("ParsePolicyManifest() should reject an unrecognised key")
	}
}

func TestParsePolicyManifest_Valid(t *testing.T) {
	doc := "version: 1\nusage: conditional\npurposes: train, search\nreceipts: required\n"
	pm, err := ParsePolicyManifest([]byte(doc))
	if err != nil {
		t.Fatalf("ParsePolicyManifest() error = %v", err)
	}
	if pm.Usage != "conditional" {
		t.Errorf("Usage = %s", pm.Usage)
	}
	if len(pm.Purposes) != 2 || pm.Purposes[0] != "train" || pm.Purposes[1] != "search" {
		t.Errorf("Purposes = %+v", pm.Purposes)
	}
}

func TestParsePolicyManifest_QuotedValue(t *testing.T) {
	doc := "version: 1\nusage: restricted\nreceipts: none\n" +
		"license: \"CC-BY 4.0, non-commercial\"\n"
	pm, err := ParsePolicyManifest([]byte(doc))
	if err != nil {
		t.Fatalf("ParsePolicyManifest() error = %v", err)
	}
	if pm.License != "CC-BY 4.0, non-commercial" {
		t.Errorf("License = %q, want a literal comma preserved by quoting", pm.License)
	}
}

func TestParsePolicyManifest_RejectsAnchors(t *testing.T) {
	doc := "version: 1\nusage: open\nanchor: &ref value\n"
	if _, err := ParsePolicyManifest([]byte(doc)); err == nil {
		t.Fatal("ParsePolicyManifest() should reject an anchor construct")
	}
}

func TestIssuerConfig_Validate_RejectsBadURLs(t *testing.T) {
	doc := `{"version":"1","issuer":"not-a-url","jwks_uri":"https://issuer.example/keys.json"}`
	if _, err := ParseIssuerConfig([]byte(doc)); err == nil {
		t.Fatal("ParseIssuerConfig() should reject a non-URL issuer via struct-tag validation")
	}
}

func TestIssuerConfig_Validate_RequiresVersion(t *testing.T) {
	cfg := &IssuerConfig{Issuer: "https://issuer.example", JWKSURI: "https://issuer.example/keys.json"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() should reject a missing version")
	}
}

func TestVerifierPolicy_Validate(t *testing.T) {
	tests := []struct {
		name    string
		policy  *VerifierPolicy
		wantErr bool
	}{
		{
			name:   "valid",
			policy: &VerifierPolicy{PolicyVersion: "1", Mode: ModeOfflinePreferred},
		},
		{
			name:    "missing policy version",
			policy:  &VerifierPolicy{Mode: ModeOfflinePreferred},
			wantErr: true,
		},
		{
			name:    "missing mode",
			policy:  &VerifierPolicy{PolicyVersion: "1"},
			wantErr: true,
		},
		{
			name:    "unrecognised mode",
			policy:  &VerifierPolicy{PolicyVersion: "1", Mode: Mode("unknown")},
			wantErr: true,
		},
		{
			name: "allowlist entry not a URL",
			policy: &VerifierPolicy{
				PolicyVersion:   "1",
				Mode:            ModeOfflinePreferred,
				IssuerAllowlist: []string{"not-a-url"},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.policy.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestVerifierPolicy_IssuerAllowed(t *testing.T) {
	p := &VerifierPolicy{IssuerAllowlist: []string{"https://issuer.example"}}
	if !p.IssuerAllowed("https://issuer.example/") {
		t.Error("IssuerAllowed() should normalise trailing slash")
	}
	if p.IssuerAllowed("https://other.example") {
		t.Error("IssuerAllowed() should reject an issuer outside the allow-list")
	}

	empty := &VerifierPolicy{}
	if !empty.IssuerAllowed("https://anything.example") {
		t.Error("IssuerAllowed() with an empty allow-list should permit any issuer")
	}
}
