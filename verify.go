package peac

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/peacframework/receipts/discovery"
	"github.com/peacframework/receipts/fetch"
	"github.com/peacframework/receipts/jws"
	"github.com/peacframework/receipts/keys"
)

// VerifyOptions configures a single receipt verification (§4.9).
type VerifyOptions struct {
	// Policy is the trust configuration: issuer allow-list, pinned keys,
	// mode, and limits. Required.
	Policy *discovery.VerifierPolicy

	// Resolver locates verification keys per §4.7. Required whenever the
	// policy's pinned keys don't cover every expected (issuer, kid).
	Resolver *keys.Resolver

	// JWKSURI, when set, is used directly as the key-set location,
	// bypassing discovery document resolution.
	JWKSURI string

	// ResolveJWKSURI is the discovery hook: given the claims' issuer, it
	// returns the key-set URI to fetch. Used only when JWKSURI is empty and
	// no pin with a direct public key exists.
	ResolveJWKSURI func(ctx context.Context, issuer string) (string, error)

	// PreviousKeySet is the cached key set from a prior verification of
	// this issuer, used to detect a fresh-fetch vs. cache-hit.
	PreviousKeySet *keys.KeySet

	// SubjectExpectedDigest, when set alongside a receipt's optional
	// `subject.uri` claim, triggers a best-effort SSRF-safe fetch of that
	// URL and a comparison against this expected "sha256:<hex>" digest,
	// populating the report's receipt_pointer artifact (§4.10, §7
	// pointer_fetch_* taxonomy). This is a supplementary deterministic
	// artifact, not one of the fixed §4.9 checks: a fetch failure or digest
	// mismatch never changes Result.Valid, it is simply omitted or recorded
	// with Match=false for the caller to act on.
	SubjectExpectedDigest string
	SubjectFetchOptions   fetch.Options

	Clock             Clock
	ClockSkew         time.Duration // default 120s (§6.4 clock_skew_s)
	MaxReceiptBytes   int           // default 16KiB
	MaxExtensionBytes int           // default 4KiB

	VerifierName    string
	VerifierVersion string

	Telemetry Telemetry
	Context   context.Context
}

func (o VerifyOptions) withDefaults() VerifyOptions {
	if o.Clock == nil {
		o.Clock = DefaultClock()
	}
	if o.ClockSkew == 0 {
		o.ClockSkew = 120 * time.Second
	}
	if o.MaxReceiptBytes <= 0 {
		o.MaxReceiptBytes = jws.DefaultMaxReceiptBytes
	}
	if o.MaxExtensionBytes <= 0 {
		o.MaxExtensionBytes = defaultMaxExtensionBytes
	}
	if o.Context == nil {
		o.Context = context.Background()
	}
	return o
}

// Verify runs the fixed, ordered 12-check pipeline (§4.9) over receiptJWS
// and returns the resulting VerificationReport. Verify never returns a Go
// error for a structurally or semantically invalid receipt: every such
// outcome is represented in the report's result.valid/reason. A non-nil
// error return means the pipeline could not even be attempted (e.g. a nil
// Policy).
func Verify(receiptJWS string, opts VerifyOptions) (*VerificationReport, error) {
	if opts.Policy == nil {
		return nil, fmt.Errorf("peac: VerifyOptions.Policy is required")
	}
	o := opts.withDefaults()

	b := newReportBuilder(receiptJWS, o.Policy.PolicyVersion, o.Clock)
	b.setVerifier(o.VerifierName, o.VerifierVersion)

	// 1. jws.parse
	parsed, err := jws.Parse(receiptJWS, 0)
	if err != nil {
		b.addCheck("jws.parse", CheckFail, ReasonMalformedReceipt)
		return finishVerify(b, "", "", nil), nil
	}
	b.addCheck("jws.parse", CheckPass, ReasonOK)

	// 2. limits.receipt_bytes
	if len(receiptJWS) > o.MaxReceiptBytes {
		b.addCheck("limits.receipt_bytes", CheckFail, ReasonReceiptTooLarge)
		return finishVerify(b, "", parsed.Header.KeyID, nil), nil
	}
	b.addCheck("limits.receipt_bytes", CheckPass, ReasonOK)

	// 3. jws.protected_header
	if err := jws.ValidateHeader(parsed.Header, jws.WireTypePrefix); err != nil {
		b.addCheck("jws.protected_header", CheckFail, ReasonMalformedReceipt)
		return finishVerify(b, "", parsed.Header.KeyID, nil), nil
	}
	b.addCheck("jws.protected_header", CheckPass, ReasonOK)

	// 4. claims.schema_unverified
	var claims Claims
	schemaErr := json.Unmarshal(parsed.Payload, &claims)
	if schemaErr == nil {
		schemaErr = validateClaimsSchemaShape(parsed.Payload)
	}
	if schemaErr == nil {
		schemaErr = validateSchemaShape(&claims)
	}
	if schemaErr != nil {
		b.addCheck("claims.schema_unverified", CheckFail, ReasonSchemaInvalid)
		return finishVerify(b, "", parsed.Header.KeyID, nil), nil
	}
	b.addCheck("claims.schema_unverified", CheckPass, ReasonOK)

	// 5. issuer.trust_policy
	if !o.Policy.IssuerAllowed(claims.Issuer) {
		b.addCheck("issuer.trust_policy", CheckFail, ReasonIssuerNotAllowed)
		return finishVerify(b, claims.Issuer, parsed.Header.KeyID, &claims), nil
	}
	b.addCheck("issuer.trust_policy", CheckPass, ReasonOK)

	// 6. issuer.discovery
	pin := o.Policy.FindPin(claims.Issuer, parsed.Header.KeyID)
	jwksURI := o.JWKSURI
	needsFetch := pin == nil || pin.PublicKey == nil
	if needsFetch && jwksURI == "" {
		if o.ResolveJWKSURI == nil {
			b.addCheck("issuer.discovery", CheckFail, ReasonPointerFetchFailed)
			return finishVerify(b, claims.Issuer, parsed.Header.KeyID, &claims), nil
		}
		uri, err := o.ResolveJWKSURI(o.Context, claims.Issuer)
		if err != nil {
			b.addCheck("issuer.discovery", CheckFail, ReasonPointerFetchFailed)
			return finishVerify(b, claims.Issuer, parsed.Header.KeyID, &claims), nil
		}
		jwksURI = uri
	}
	b.addCheck("issuer.discovery", CheckPass, ReasonOK)

	// 7. key.resolve
	var keysPin *keys.PinnedKey
	if pin != nil {
		keysPin = &keys.PinnedKey{
			Issuer:              pin.Issuer,
			KeyID:               pin.KeyID,
			JWKThumbprintSHA256: pin.JWKThumbprintSHA256,
			PublicKey:           pin.PublicKey,
		}
	}
	mode := keys.Mode(o.Policy.Mode)
	var resolved *keys.Resolved
	if o.Resolver != nil {
		resolved, err = o.Resolver.Resolve(o.Context, claims.Issuer, parsed.Header.KeyID, keysPin, jwksURI, mode, o.PreviousKeySet)
	} else {
		err = keys.ErrKeyNotFound
	}
	if err != nil {
		reasonStr := keys.MapFetchError(err)
		b.addCheck("key.resolve", CheckFail, ReasonCode(reasonStr))
		return finishVerify(b, claims.Issuer, parsed.Header.KeyID, &claims), nil
	}
	b.addCheck("key.resolve", CheckPass, ReasonOK)
	b.setIssuerKey(string(resolved.Source), resolved.Thumbprint)
	if resolved.JWKSDigest != "" {
		b.setIssuerJWKSDigest(resolved.JWKSDigest)
	}

	// 8. jws.signature
	if err := jws.VerifyJWS(parsed, resolved.PublicKey); err != nil {
		b.addCheck("jws.signature", CheckFail, ReasonSignatureInvalid)
		return finishVerify(b, claims.Issuer, parsed.Header.KeyID, &claims), nil
	}
	b.addCheck("jws.signature", CheckPass, ReasonOK)

	digest := sha256.Sum256(parsed.Payload)
	b.setNormalizedClaimsDigest("sha256:" + hex.EncodeToString(digest[:]))

	// 9. claims.time_window
	now := o.Clock.Now()
	iat := time.Unix(claims.IssuedAt, 0)
	if iat.After(now.Add(o.ClockSkew)) {
		b.addCheck("claims.time_window", CheckFail, ReasonNotYetValid)
		return finishVerify(b, claims.Issuer, parsed.Header.KeyID, &claims), nil
	}
	if claims.ExpiresAt != nil {
		exp := time.Unix(*claims.ExpiresAt, 0)
		if !exp.After(now.Add(-o.ClockSkew)) {
			b.addCheck("claims.time_window", CheckFail, ReasonExpired)
			return finishVerify(b, claims.Issuer, parsed.Header.KeyID, &claims), nil
		}
	}
	b.addCheck("claims.time_window", CheckPass, ReasonOK)

	// 10. extensions.limits
	if len(claims.Ext) > 0 {
		extBytes, err := json.Marshal(claims.Ext)
		if err != nil || len(extBytes) > o.MaxExtensionBytes {
			b.addCheck("extensions.limits", CheckFail, ReasonExtensionTooLarge)
			return finishVerify(b, claims.Issuer, parsed.Header.KeyID, &claims), nil
		}
	}
	b.addCheck("extensions.limits", CheckPass, ReasonOK)

	if o.SubjectExpectedDigest != "" && claims.Subject != nil {
		recordReceiptPointer(o.Context, b, claims.Subject.URI, o.SubjectExpectedDigest, o.SubjectFetchOptions)
	}

	// 11. transport.profile_binding — optional, always skip for wire 01
	// (§9 Open Question: no transport profile is adopted by this wire version).
	b.addCheck("transport.profile_binding", CheckSkip, "")

	// 12. policy.binding — current wire carries no policy digest.
	b.addCheck("policy.binding", CheckSkip, "wire_01_no_policy_digest")

	report := finishVerify(b, claims.Issuer, parsed.Header.KeyID, &claims)

	if o.Telemetry != nil {
		fireTelemetry(o.Telemetry, "on_receipt_verified", map[string]any{
			"rid":   claims.ReceiptID,
			"valid": report.Result.Valid,
		})
	}

	return report, nil
}

// VerifyDeterministic runs the full pipeline and returns only the
// deterministic report view (§4.10 build_deterministic()).
func VerifyDeterministic(receiptJWS string, opts VerifyOptions) (*VerificationReport, error) {
	full, err := Verify(receiptJWS, opts)
	if err != nil {
		return nil, err
	}
	return DeterministicReport(full), nil
}

// recordReceiptPointer fetches subjectURL through the SSRF-safe fetch
// package and compares its sha256 digest against expectedDigest, recording
// the outcome as the report's receipt_pointer artifact. A fetch failure
// (blocked, timed out, too large) is silently skipped rather than recorded:
// the artifact is present only when a comparison was actually made, per
// §4.10's "all optional" framing.
func recordReceiptPointer(ctx context.Context, b *reportBuilder, subjectURL, expectedDigest string, opts fetch.Options) {
	res, err := fetch.Get(ctx, subjectURL, "", "", opts)
	if err != nil {
		return
	}
	sum := sha256.Sum256(res.Bytes)
	actualDigest := "sha256:" + hex.EncodeToString(sum[:])
	b.setReceiptPointer(ReceiptPointer{
		URL:            subjectURL,
		ExpectedDigest: expectedDigest,
		ActualDigest:   actualDigest,
		Match:          actualDigest == expectedDigest,
	})
}

// finishVerify assembles the final Result from the accumulated checks and
// returns the full (non-deterministic) report.
func finishVerify(b *reportBuilder, issuer, kid string, claims *Claims) *VerificationReport {
	// Checks the pipeline did not reach are still listed, in order, as skip.
	checkOrder := []string{
		"jws.parse", "limits.receipt_bytes", "jws.protected_header",
		"claims.schema_unverified", "issuer.trust_policy", "issuer.discovery",
		"key.resolve", "jws.signature", "claims.time_window",
		"extensions.limits", "transport.profile_binding", "policy.binding",
	}
	for _, name := range checkOrder[len(b.checks):] {
		skipReason := ReasonCode("")
		if name == "policy.binding" {
			skipReason = "wire_01_no_policy_digest"
		}
		b.addCheck(name, CheckSkip, skipReason)
	}
	reason := b.firstFailReason()
	receiptType := ""
	if claims != nil {
		receiptType = jws.WireTypePrefix
	}
	b.setResult(Result{
		Valid:       reason == ReasonOK,
		Reason:      reason,
		Severity:    reason.Severity(),
		ReceiptType: receiptType,
		Issuer:      issuer,
		KeyID:       kid,
	})
	return b.build()
}

// validateSchemaShape applies the static, pre-signature structural checks
// claims.schema_unverified performs: currency/amount shape and the
// payment/top-level binding (§3.2), independent of trust or signature.
func validateSchemaShape(c *Claims) error {
	if err := validateCurrency(c.Currency); err != nil {
		return err
	}
	if err := validateAmount(c.Amount); err != nil {
		return err
	}
	if err := validatePaymentEvidence(&c.Payment, c.Amount, c.Currency); err != nil {
		return err
	}
	if err := validatePurposeEnforced(c.PurposeEnforced); err != nil {
		return err
	}
	if err := validatePurposeReason(c.PurposeReason); err != nil {
		return err
	}
	return nil
}
