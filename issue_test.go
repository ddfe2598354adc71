package peac

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/peacframework/receipts/jws"
)

func newTestSigningKey(t *testing.T) *jws.SigningKey {
	t.Helper()
	key, err := jws.GenerateSigningKey("test-key")
	if err != nil {
		t.Fatalf("failed to generate signing key: %v", err)
	}
	return key
}

func validIssueOptions(t *testing.T) IssueOptions {
	t.Helper()
	return IssueOptions{
		Issuer:   "https://publisher.example",
		Audience: "https://agent.example",
		Amount:   1000,
		Currency: "USD",
		Payment: PaymentEvidence{
			Rail:      "stripe",
			Reference: "pi_123456",
		},
		SigningKey: newTestSigningKey(t),
		Clock:      FixedClock{Time: time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)},
	}
}

func parseIssuedClaims(t *testing.T, jwsStr string) Claims {
	t.Helper()
	parsed, err := jws.Parse(jwsStr, 0)
	if err != nil {
		t.Fatalf("jws.Parse() error = %v", err)
	}
	var claims Claims
	if err := json.Unmarshal(parsed.Payload, &claims); err != nil {
		t.Fatalf("unmarshal claims: %v", err)
	}
	return claims
}

// Invariant tests - verify that Issue maintains its documented invariants
// regardless of valid input combinations (§8.1).

func TestIssue_Invariant_JWSIsValidFormat(t *testing.T) {
	opts := validIssueOptions(t)
	result, err := Issue(opts)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	parts := strings.Split(result.JWS, ".")
	if len(parts) != 3 {
		t.Errorf("JWS should have 3 parts, got %d", len(parts))
	}

	parsed, err := jws.Parse(result.JWS, 0)
	if err != nil {
		t.Errorf("JWS should be parseable: %v", err)
	}
	if parsed.Header.Algorithm != "EdDSA" {
		t.Errorf("Algorithm = %s, want EdDSA", parsed.Header.Algorithm)
	}
}

func TestIssue_Invariant_ClaimsContainRequiredFields(t *testing.T) {
	opts := validIssueOptions(t)
	result, err := Issue(opts)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	parsed, _ := jws.Parse(result.JWS, 0)
	var claims map[string]any
	if err := json.Unmarshal(parsed.Payload, &claims); err != nil {
		t.Fatalf("failed to unmarshal claims: %v", err)
	}

	for _, field := range []string{"iss", "aud", "iat", "rid", "amt", "cur", "payment"} {
		if _, ok := claims[field]; !ok {
			t.Errorf("missing required field: %s", field)
		}
	}

	payment, ok := claims["payment"].(map[string]any)
	if !ok {
		t.Fatal("payment is not an object")
	}
	for _, field := range []string{"rail", "reference", "amount", "currency", "asset", "env"} {
		if _, ok := payment[field]; !ok {
			t.Errorf("missing required payment field: %s", field)
		}
	}
}

func TestIssue_Invariant_ReceiptIDIsUUID(t *testing.T) {
	opts := validIssueOptions(t)
	result, err := Issue(opts)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if !ValidReceiptID(result.ReceiptID) {
		t.Errorf("ReceiptID %q does not match UUIDv7 format", result.ReceiptID)
	}

	claims := parseIssuedClaims(t, result.JWS)
	if claims.ReceiptID != result.ReceiptID {
		t.Errorf("claims.rid = %v, want %s", claims.ReceiptID, result.ReceiptID)
	}
}

func TestIssue_Invariant_IssuedAtMatchesResult(t *testing.T) {
	fixedTime := time.Date(2025, 1, 15, 12, 30, 45, 0, time.UTC)
	opts := validIssueOptions(t)
	opts.Clock = FixedClock{Time: fixedTime}

	result, err := Issue(opts)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	expectedIat := fixedTime.Unix()
	if result.IssuedAt != expectedIat {
		t.Errorf("IssuedAt = %d, want %d", result.IssuedAt, expectedIat)
	}

	claims := parseIssuedClaims(t, result.JWS)
	if claims.IssuedAt != expectedIat {
		t.Errorf("claims.iat = %d, want %d", claims.IssuedAt, expectedIat)
	}
}

func TestIssue_Invariant_SignatureVerifiable(t *testing.T) {
	opts := validIssueOptions(t)
	result, err := Issue(opts)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	parsed, _ := jws.Parse(result.JWS, 0)
	if err := jws.VerifyJWS(parsed, opts.SigningKey.PublicKey()); err != nil {
		t.Errorf("signature verification failed: %v", err)
	}
}

func TestIssue_Invariant_DifferentKeysProduceDifferentSignatures(t *testing.T) {
	opts1 := validIssueOptions(t)
	opts1.IDGenerator = NewFixedIDGenerator("fixed-id")
	result1, err := Issue(opts1)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	opts2 := validIssueOptions(t)
	opts2.IDGenerator = NewFixedIDGenerator("fixed-id")
	result2, err := Issue(opts2)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	parsed1, _ := jws.Parse(result1.JWS, 0)
	parsed2, _ := jws.Parse(result2.JWS, 0)
	if string(parsed1.Signature) == string(parsed2.Signature) {
		t.Error("different keys should produce different signatures")
	}
}

func TestIssue_Invariant_AssetDefaultsToCurrency(t *testing.T) {
	opts := validIssueOptions(t)
	result, err := Issue(opts)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	claims := parseIssuedClaims(t, result.JWS)
	if claims.Payment.Asset != opts.Currency {
		t.Errorf("payment.asset = %s, want %s (default to currency)", claims.Payment.Asset, opts.Currency)
	}
}

func TestIssue_Invariant_EnvDefaultsToTest(t *testing.T) {
	opts := validIssueOptions(t)
	result, err := Issue(opts)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	claims := parseIssuedClaims(t, result.JWS)
	if claims.Payment.Env != "test" {
		t.Errorf("payment.env = %s, want test (default)", claims.Payment.Env)
	}
}

func TestIssue_Invariant_HeaderTypIsCorrect(t *testing.T) {
	opts := validIssueOptions(t)
	result, err := Issue(opts)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	parsed, _ := jws.Parse(result.JWS, 0)
	if parsed.Header.Type != jws.DefaultReceiptTyp {
		t.Errorf("Header.Type = %s, want %s", parsed.Header.Type, jws.DefaultReceiptTyp)
	}
}

func TestIssue_Invariant_HeaderKeyIDMatchesSigningKey(t *testing.T) {
	opts := validIssueOptions(t)
	result, err := Issue(opts)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	parsed, _ := jws.Parse(result.JWS, 0)
	if parsed.Header.KeyID != opts.SigningKey.KeyID() {
		t.Errorf("Header.KeyID = %s, want %s", parsed.Header.KeyID, opts.SigningKey.KeyID())
	}
}

// Validation error tests (§4.4).

func TestIssue_Error_InvalidIssuer(t *testing.T) {
	tests := []struct {
		name   string
		issuer string
	}{
		{"http scheme", "http://example.com"},
		{"no scheme", "example.com"},
		{"empty", ""},
		{"ftp scheme", "ftp://example.com"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := validIssueOptions(t)
			opts.Issuer = tt.issuer

			_, err := Issue(opts)
			if err == nil {
				t.Fatal("expected error for invalid issuer")
			}
			ie, ok := err.(*IssueError)
			if !ok {
				t.Fatalf("error type = %T, want *IssueError", err)
			}
			if ie.Code != ErrCodeInvalidURL {
				t.Errorf("error code = %s, want %s", ie.Code, ErrCodeInvalidURL)
			}
		})
	}
}

func TestIssue_Error_InvalidAudience(t *testing.T) {
	opts := validIssueOptions(t)
	opts.Audience = "http://example.com"

	_, err := Issue(opts)
	if err == nil {
		t.Fatal("expected error for invalid audience")
	}
	ie := err.(*IssueError)
	if ie.Code != ErrCodeInvalidURL {
		t.Errorf("error code = %s, want %s", ie.Code, ErrCodeInvalidURL)
	}
}

func TestIssue_Error_InvalidSubject(t *testing.T) {
	opts := validIssueOptions(t)
	opts.Subject = "http://example.com"

	_, err := Issue(opts)
	if err == nil {
		t.Fatal("expected error for invalid subject")
	}
	ie := err.(*IssueError)
	if ie.Code != ErrCodeInvalidSubject {
		t.Errorf("error code = %s, want %s", ie.Code, ErrCodeInvalidSubject)
	}
}

func TestIssue_Error_InvalidCurrency(t *testing.T) {
	tests := []string{"usd", "US", "USDC", "US1", ""}
	for _, cur := range tests {
		t.Run(cur, func(t *testing.T) {
			opts := validIssueOptions(t)
			opts.Currency = cur

			_, err := Issue(opts)
			if err == nil {
				t.Fatal("expected error for invalid currency")
			}
			ie := err.(*IssueError)
			if ie.Code != ErrCodeInvalidCurrency {
				t.Errorf("error code = %s, want %s", ie.Code, ErrCodeInvalidCurrency)
			}
		})
	}
}

func TestIssue_Error_NegativeAmount(t *testing.T) {
	opts := validIssueOptions(t)
	opts.Amount = -1

	_, err := Issue(opts)
	if err == nil {
		t.Fatal("expected error for negative amount")
	}
	ie := err.(*IssueError)
	if ie.Code != ErrCodeInvalidAmount {
		t.Errorf("error code = %s, want %s", ie.Code, ErrCodeInvalidAmount)
	}
}

func TestIssue_Error_ExpiryBeforeIssuedAt(t *testing.T) {
	opts := validIssueOptions(t)
	past := opts.Clock.Now().Unix() - 60
	opts.Expiry = &past

	_, err := Issue(opts)
	if err == nil {
		t.Fatal("expected error for expiry before issued-at")
	}
	ie := err.(*IssueError)
	if ie.Code != ErrCodeInvalidExpiry {
		t.Errorf("error code = %s, want %s", ie.Code, ErrCodeInvalidExpiry)
	}
}

func TestIssue_Error_MissingRail(t *testing.T) {
	opts := validIssueOptions(t)
	opts.Payment.Rail = ""

	_, err := Issue(opts)
	if err == nil {
		t.Fatal("expected error for missing rail")
	}
	ie := err.(*IssueError)
	if ie.Code != ErrCodeInvalidPayment {
		t.Errorf("error code = %s, want %s", ie.Code, ErrCodeInvalidPayment)
	}
}

func TestIssue_Error_MissingReference(t *testing.T) {
	opts := validIssueOptions(t)
	opts.Payment.Reference = ""

	_, err := Issue(opts)
	if err == nil {
		t.Fatal("expected error for missing reference")
	}
	ie := err.(*IssueError)
	if ie.Code != ErrCodeInvalidPayment {
		t.Errorf("error code = %s, want %s", ie.Code, ErrCodeInvalidPayment)
	}
}

func TestIssue_Error_MissingSigningKey(t *testing.T) {
	opts := validIssueOptions(t)
	opts.SigningKey = nil

	_, err := Issue(opts)
	if err == nil {
		t.Fatal("expected error for missing signing key")
	}
	ie := err.(*IssueError)
	if ie.Code != ErrCodeMissingSigningKey {
		t.Errorf("error code = %s, want %s", ie.Code, ErrCodeMissingSigningKey)
	}
}

func TestIssue_Error_UndeclaredPurposeToken(t *testing.T) {
	opts := validIssueOptions(t)
	opts.PurposeDeclared = []string{"undeclared"}

	_, err := Issue(opts)
	if err == nil {
		t.Fatal("expected error for undeclared purpose token")
	}
	ie := err.(*IssueError)
	const want = "Explicit 'undeclared' is not a valid purpose token (internal-only)"
	if ie.Message != want {
		t.Errorf("message = %q, want %q", ie.Message, want)
	}
}

func TestIssue_Error_ExtensionTooLarge(t *testing.T) {
	opts := validIssueOptions(t)
	opts.MaxExtensionBytes = 16
	big, _ := json.Marshal(map[string]string{"k": strings.Repeat("x", 100)})
	opts.Ext = map[string]json.RawMessage{"big": big}

	_, err := Issue(opts)
	if err == nil {
		t.Fatal("expected error for oversized extension")
	}
	ie := err.(*IssueError)
	if ie.Code != ErrCodeExtensionTooLarge {
		t.Errorf("error code = %s, want %s", ie.Code, ErrCodeExtensionTooLarge)
	}
}

func TestIssue_Error_WorkflowSelfParent(t *testing.T) {
	opts := validIssueOptions(t)
	opts.Workflow = &WorkflowContext{
		WorkflowID:    "wf-1",
		StepID:        "step-1",
		ParentStepIDs: []string{"step-1"},
	}

	_, err := Issue(opts)
	if err == nil {
		t.Fatal("expected error for step naming itself as its own parent")
	}
	ie := err.(*IssueError)
	if ie.Code != ErrCodeInvalidWorkflow {
		t.Errorf("error code = %s, want %s", ie.Code, ErrCodeInvalidWorkflow)
	}
}

func TestIssue_Error_WorkflowDuplicateParents(t *testing.T) {
	opts := validIssueOptions(t)
	opts.Workflow = &WorkflowContext{
		WorkflowID:    "wf-1",
		StepID:        "step-2",
		ParentStepIDs: []string{"step-1", "step-1"},
	}

	_, err := Issue(opts)
	if err == nil {
		t.Fatal("expected error for duplicate parent step IDs")
	}
	ie := err.(*IssueError)
	if ie.Code != ErrCodeInvalidWorkflow {
		t.Errorf("error code = %s, want %s", ie.Code, ErrCodeInvalidWorkflow)
	}
}

// Optional field tests.

func TestIssue_OptionalFields(t *testing.T) {
	t.Run("with expiry", func(t *testing.T) {
		opts := validIssueOptions(t)
		exp := opts.Clock.Now().Unix() + 3600
		opts.Expiry = &exp

		result, err := Issue(opts)
		if err != nil {
			t.Fatalf("Issue() error = %v", err)
		}
		claims := parseIssuedClaims(t, result.JWS)
		if claims.ExpiresAt == nil || *claims.ExpiresAt != exp {
			t.Errorf("claims.exp = %v, want %d", claims.ExpiresAt, exp)
		}
	})

	t.Run("with subject", func(t *testing.T) {
		opts := validIssueOptions(t)
		opts.Subject = "https://user.example/abc123"

		result, err := Issue(opts)
		if err != nil {
			t.Fatalf("Issue() error = %v", err)
		}
		claims := parseIssuedClaims(t, result.JWS)
		if claims.Subject == nil || claims.Subject.URI != opts.Subject {
			t.Errorf("claims.subject = %v, want %s", claims.Subject, opts.Subject)
		}
	})

	t.Run("with network and evidence", func(t *testing.T) {
		opts := validIssueOptions(t)
		opts.Payment.Network = "eip155:8453"
		opts.Payment.Evidence = json.RawMessage(`{"transaction_id":"tx_123","status":"completed"}`)

		result, err := Issue(opts)
		if err != nil {
			t.Fatalf("Issue() error = %v", err)
		}
		claims := parseIssuedClaims(t, result.JWS)
		if claims.Payment.Network != opts.Payment.Network {
			t.Errorf("payment.network = %s, want %s", claims.Payment.Network, opts.Payment.Network)
		}
		var ev map[string]any
		if err := json.Unmarshal(claims.Payment.Evidence, &ev); err != nil {
			t.Fatalf("unmarshal evidence: %v", err)
		}
		if ev["transaction_id"] != "tx_123" {
			t.Errorf("evidence.transaction_id = %v, want tx_123", ev["transaction_id"])
		}
	})

	t.Run("with workflow context", func(t *testing.T) {
		opts := validIssueOptions(t)
		opts.Workflow = &WorkflowContext{
			WorkflowID:    "wf-1",
			StepID:        "step-2",
			ParentStepIDs: []string{"step-1"},
		}

		result, err := Issue(opts)
		if err != nil {
			t.Fatalf("Issue() error = %v", err)
		}
		claims := parseIssuedClaims(t, result.JWS)
		raw, ok := claims.Ext[WorkflowExtensionKey]
		if !ok {
			t.Fatal("ext missing workflow key")
		}
		var wf WorkflowContext
		if err := json.Unmarshal(raw, &wf); err != nil {
			t.Fatalf("unmarshal workflow: %v", err)
		}
		if wf.WorkflowID != "wf-1" || wf.StepID != "step-2" {
			t.Errorf("workflow = %+v, want wf-1/step-2", wf)
		}
	})
}

// Convenience function tests.

func TestIssueJWS(t *testing.T) {
	opts := validIssueOptions(t)
	jwsString, err := IssueJWS(opts)
	if err != nil {
		t.Fatalf("IssueJWS() error = %v", err)
	}
	if len(strings.Split(jwsString, ".")) != 3 {
		t.Errorf("JWS should have 3 parts")
	}
}

func TestMustIssue(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		opts := validIssueOptions(t)
		result := MustIssue(opts)
		if result.JWS == "" {
			t.Error("MustIssue() returned empty JWS")
		}
	})

	t.Run("panic on error", func(t *testing.T) {
		defer func() {
			if r := recover(); r == nil {
				t.Error("MustIssue() should panic on error")
			}
		}()
		opts := validIssueOptions(t)
		opts.SigningKey = nil
		MustIssue(opts)
	})
}

func TestIssueError_Error(t *testing.T) {
	t.Run("with field", func(t *testing.T) {
		e := &IssueError{Code: ErrCodeInvalidURL, Message: "issuer must be an https URL", Field: "iss"}
		want := "E_INVALID_URL: issuer must be an https URL (field: iss)"
		if e.Error() != want {
			t.Errorf("Error() = %s, want %s", e.Error(), want)
		}
	})

	t.Run("without field", func(t *testing.T) {
		e := &IssueError{Code: ErrCodeSigningFailed, Message: "failed to sign"}
		want := "E_ISSUE_SIGNING_FAILED: failed to sign"
		if e.Error() != want {
			t.Errorf("Error() = %s, want %s", e.Error(), want)
		}
	})
}

// Testability - verify Clock and IDGenerator injection (§8.1 Determinism).

func TestIssue_WithFixedClock(t *testing.T) {
	fixedTime := time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)
	opts := validIssueOptions(t)
	opts.Clock = FixedClock{Time: fixedTime}

	result, err := Issue(opts)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if result.IssuedAt != fixedTime.Unix() {
		t.Errorf("IssuedAt = %d, want %d", result.IssuedAt, fixedTime.Unix())
	}
}

func TestIssue_WithFixedIDGenerator(t *testing.T) {
	opts := validIssueOptions(t)
	opts.IDGenerator = NewFixedIDGenerator("custom-receipt-id-001")

	result, err := Issue(opts)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if result.ReceiptID != "custom-receipt-id-001" {
		t.Errorf("ReceiptID = %s, want custom-receipt-id-001", result.ReceiptID)
	}
}

func TestIssue_Determinism(t *testing.T) {
	// §8.1 Determinism: identical inputs (including injected rid) produce
	// byte-identical tokens.
	build := func() string {
		opts := validIssueOptions(t)
		opts.IDGenerator = NewFixedIDGenerator("fixed-id-001")
		result, err := Issue(opts)
		if err != nil {
			t.Fatalf("Issue() error = %v", err)
		}
		return result.JWS
	}
	if build() != build() {
		t.Error("identical inputs should produce byte-identical tokens")
	}
}

// Round-trip test - issue then verify the decoded payload.

func TestIssue_RoundTrip(t *testing.T) {
	key, err := jws.GenerateSigningKey("test-key-001")
	if err != nil {
		t.Fatalf("GenerateSigningKey() error = %v", err)
	}
	opts := IssueOptions{
		Issuer:   "https://publisher.example",
		Audience: "https://agent.example",
		Amount:   5000,
		Currency: "USD",
		Payment: PaymentEvidence{
			Rail:      "stripe",
			Reference: "pi_test_123",
			Network:   "card",
			Evidence:  json.RawMessage(`{"charge_id":"ch_123"}`),
		},
		Subject:    "https://user.example/u/12345",
		SigningKey: key,
	}

	result, err := Issue(opts)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	parsed, err := jws.Parse(result.JWS, 0)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if err := jws.VerifyJWS(parsed, key.PublicKey()); err != nil {
		t.Fatalf("VerifyJWS() error = %v", err)
	}

	claims := parseIssuedClaims(t, result.JWS)
	if claims.Issuer != opts.Issuer {
		t.Errorf("iss = %s, want %s", claims.Issuer, opts.Issuer)
	}
	if claims.Audience != opts.Audience {
		t.Errorf("aud = %s, want %s", claims.Audience, opts.Audience)
	}
	if claims.Amount != opts.Amount {
		t.Errorf("amt = %d, want %d", claims.Amount, opts.Amount)
	}
	if claims.Currency != opts.Currency {
		t.Errorf("cur = %s, want %s", claims.Currency, opts.Currency)
	}
	if claims.Payment.Rail != opts.Payment.Rail {
		t.Errorf("payment.rail = %s, want %s", claims.Payment.Rail, opts.Payment.Rail)
	}
	if claims.Subject == nil || claims.Subject.URI != opts.Subject {
		t.Errorf("subject.uri = %v, want %s", claims.Subject, opts.Subject)
	}
}

func TestIssue_ZeroAmount(t *testing.T) {
	opts := validIssueOptions(t)
	opts.Amount = 0
	opts.Payment.Amount = 0

	result, err := Issue(opts)
	if err != nil {
		t.Fatalf("Issue() with zero amount should succeed: %v", err)
	}
	claims := parseIssuedClaims(t, result.JWS)
	if claims.Amount != 0 {
		t.Errorf("amt = %d, want 0", claims.Amount)
	}
}

func TestIssue_EvidenceOmittedWhenNil(t *testing.T) {
	opts := validIssueOptions(t)

	result, err := Issue(opts)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	parsed, _ := jws.Parse(result.JWS, 0)
	var claims map[string]any
	if err := json.Unmarshal(parsed.Payload, &claims); err != nil {
		t.Fatalf("failed to unmarshal payload: %v", err)
	}
	payment := claims["payment"].(map[string]any)
	if _, exists := payment["evidence"]; exists {
		t.Errorf("payment should NOT contain 'evidence' key when nil, got: %v", payment["evidence"])
	}
}

func TestIssue_EvidencePresentWhenProvided(t *testing.T) {
	opts := validIssueOptions(t)
	opts.Payment.Evidence = json.RawMessage(`{"key":"value"}`)

	result, err := Issue(opts)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	parsed, _ := jws.Parse(result.JWS, 0)
	var claims map[string]any
	if err := json.Unmarshal(parsed.Payload, &claims); err != nil {
		t.Fatalf("failed to unmarshal payload: %v", err)
	}
	payment := claims["payment"].(map[string]any)
	evidence, exists := payment["evidence"]
	if !exists {
		t.Fatal("payment should contain 'evidence' key when provided")
	}
	evidenceMap := evidence.(map[string]any)
	if evidenceMap["key"] != "value" {
		t.Errorf("evidence[key] = %v, want 'value'", evidenceMap["key"])
	}
}

// URL validation edge cases.

func TestIssue_URLValidation_StrictParsing(t *testing.T) {
	tests := []string{"/path/to/resource", "../resource", "mailto:test@example.com", "data:text/plain,hello"}
	for _, url := range tests {
		t.Run("issuer_"+url, func(t *testing.T) {
			opts := validIssueOptions(t)
			opts.Issuer = url
			if _, err := Issue(opts); err == nil {
				t.Errorf("expected error for issuer URL: %q", url)
			}
		})
		t.Run("audience_"+url, func(t *testing.T) {
			opts := validIssueOptions(t)
			opts.Audience = url
			if _, err := Issue(opts); err == nil {
				t.Errorf("expected error for audience URL: %q", url)
			}
		})
	}
}

func TestIssue_SubjectSnapshotPIIAdvisory(t *testing.T) {
	// Subject snapshots are returned alongside, never inside, the token,
	// and an email-shaped id only triggers a deduplicated telemetry
	// advisory, never a rejection (§4.8 step 5, §7).
	var events []string
	opts := validIssueOptions(t)
	opts.SubjectSnapshot = &SubjectProfileSnapshot{
		Subject:    SnapshotSubject{ID: "agent@example.com", Type: "human"},
		CapturedAt: "2025-01-15T12:00:00Z",
	}
	opts.Telemetry = TelemetryFunc(func(event string, _ map[string]any) {
		events = append(events, event)
	})

	result, err := Issue(opts)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if result.SubjectSnapshot == nil {
		t.Fatal("expected subject snapshot to be returned")
	}

	found := false
	for _, e := range events {
		if e == "on_pii_advisory" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a PII advisory telemetry event, got %v", events)
	}
}
