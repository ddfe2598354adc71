package peac

import (
	"encoding/json"
	"fmt"

	"github.com/peacframework/receipts/evidence"
	"github.com/peacframework/receipts/jws"
)

// IssueOptions contains the parameters for issuing a PEAC receipt.
type IssueOptions struct {
	Issuer   string // https:// URL, required
	Audience string // https:// URL, required

	Amount   int64  // minor units, non-negative
	Currency string // ISO 4217 alpha-3, uppercase

	Payment PaymentEvidence // Rail/Reference required; Amount/Currency filled from Amount/Currency if zero

	Expiry          *int64
	Subject         string // https:// URI, optional
	PurposeDeclared []string
	PurposeEnforced string
	PurposeReason   string

	// Workflow, if set, is merged into the receipt's ext at
	// WorkflowExtensionKey (§4 Supplemented Features).
	Workflow *WorkflowContext

	// Ext carries arbitrary extension fields beyond Workflow. Each value is
	// validated against MaxExtensionBytes before the receipt is signed.
	Ext map[string]json.RawMessage

	// MaxExtensionBytes caps the serialized size of any single ext value
	// (§6.4 max_extension_bytes, default 4KiB). Zero uses the default.
	MaxExtensionBytes int

	// SubjectSnapshot is optional out-of-band metadata returned alongside
	// (never inside) the signed token.
	SubjectSnapshot *SubjectProfileSnapshot

	SigningKey  *jws.SigningKey // required
	Clock       Clock           // defaults to RealClock
	IDGenerator IDGenerator     // defaults to UUIDv7Generator

	// Telemetry, if set, receives an on_receipt_issued event after a
	// successful issuance. Never blocks or fails the call (§9 "Telemetry
	// without leakage").
	Telemetry Telemetry
}

// IssueResult is the outcome of a successful Issue call.
type IssueResult struct {
	JWS             string
	ReceiptID       string
	IssuedAt        int64
	SubjectSnapshot *SubjectProfileSnapshot
}

const defaultMaxExtensionBytes = 4 * 1024

// Issue validates opts, composes a Claims object, canonicalises and signs
// it, and returns the compact JWS. Validation order: URL shape, then
// currency/amount, then purpose vocabulary, then subject snapshot and
// workflow shape, then the signing key, then payment binding, then expiry,
// then extension limits.
func Issue(opts IssueOptions) (*IssueResult, error) {
	if err := validateIssuer(opts.Issuer); err != nil {
		return nil, err
	}
	if err := validateAudience(opts.Audience); err != nil {
		return nil, err
	}
	if opts.Subject != "" {
		if err := validateAudience(opts.Subject); err != nil {
			return nil, newIssueError(ErrCodeInvalidSubject, "subject must be an https URL", "subject.uri")
		}
	}
	if err := validateCurrency(opts.Currency); err != nil {
		return nil, err
	}
	if err := validateAmount(opts.Amount); err != nil {
		return nil, err
	}
	if err := validatePurposeDeclared(opts.PurposeDeclared); err != nil {
		return nil, err
	}
	if err := validatePurposeEnforced(opts.PurposeEnforced); err != nil {
		return nil, err
	}
	if err := validatePurposeReason(opts.PurposeReason); err != nil {
		return nil, err
	}
	if err := validateSubjectSnapshot(opts.SubjectSnapshot); err != nil {
		return nil, err
	}
	if err := validateWorkflowContext(opts.Workflow); err != nil {
		return nil, err
	}
	if opts.SigningKey == nil {
		return nil, newIssueError(ErrCodeMissingSigningKey, "signing key is required", "SigningKey")
	}

	payment := opts.Payment
	if payment.Amount == 0 {
		payment.Amount = opts.Amount
	}
	if payment.Currency == "" {
		payment.Currency = opts.Currency
	}
	if payment.Asset == "" {
		payment.Asset = opts.Currency
	}
	if payment.Env == "" {
		payment.Env = "test"
	}
	if err := validatePaymentEvidence(&payment, opts.Amount, opts.Currency); err != nil {
		return nil, err
	}

	clock := opts.Clock
	if clock == nil {
		clock = DefaultClock()
	}
	idGen := opts.IDGenerator
	if idGen == nil {
		idGen = DefaultIDGenerator()
	}

	issuedAtForExpiry := clock.Now().Unix()
	if err := validateExpiry(issuedAtForExpiry, opts.Expiry); err != nil {
		return nil, err
	}

	maxExt := opts.MaxExtensionBytes
	if maxExt <= 0 {
		maxExt = defaultMaxExtensionBytes
	}

	ext := make(map[string]json.RawMessage, len(opts.Ext)+1)
	for k, v := range opts.Ext {
		if err := evidence.ValidateExtension(v, maxExt); err != nil {
			return nil, newIssueError(ErrCodeExtensionTooLarge, fmt.Sprintf("ext[%s]: %v", k, err), "ext")
		}
		ext[k] = v
	}
	if opts.Workflow != nil {
		wfBytes, err := json.Marshal(opts.Workflow)
		if err != nil {
			return nil, newIssueError(ErrCodeInvalidWorkflow, fmt.Sprintf("marshaling workflow context: %v", err), "workflow")
		}
		if err := evidence.ValidateExtension(wfBytes, maxExt); err != nil {
			return nil, newIssueError(ErrCodeExtensionTooLarge, fmt.Sprintf("workflow: %v", err), "ext")
		}
		ext[WorkflowExtensionKey] = wfBytes
	}
	if len(ext) == 0 {
		ext = nil
	}

	issuedAt := issuedAtForExpiry
	claims := Claims{
		Issuer:          opts.Issuer,
		Audience:        opts.Audience,
		IssuedAt:        issuedAt,
		ReceiptID:       idGen.NewID(),
		Amount:          opts.Amount,
		Currency:        opts.Currency,
		Payment:         payment,
		ExpiresAt:       opts.Expiry,
		PurposeDeclared: opts.PurposeDeclared,
		PurposeEnforced: opts.PurposeEnforced,
		PurposeReason:   opts.PurposeReason,
		Ext:             ext,
	}
	if opts.Subject != "" {
		claims.Subject = &Subject{URI: opts.Subject}
	}

	tokenJWS, err := opts.SigningKey.SignClaims(claims)
	if err != nil {
		return nil, newIssueError(ErrCodeSigningFailed, fmt.Sprintf("failed to sign receipt: %v", err), "")
	}

	result := &IssueResult{
		JWS:             tokenJWS,
		ReceiptID:       claims.ReceiptID,
		IssuedAt:        issuedAt,
		SubjectSnapshot: opts.SubjectSnapshot,
	}

	if opts.Telemetry != nil {
		fireTelemetry(opts.Telemetry, "on_receipt_issued", map[string]any{
			"rid": claims.ReceiptID,
			"iss": claims.Issuer,
		})
		if opts.SubjectSnapshot != nil {
			advisePIIIfEmailShaped(opts.Telemetry, opts.SubjectSnapshot.Subject.ID)
		}
	}

	return result, nil
}

// IssueJWS is a convenience wrapper returning just the compact JWS string.
func IssueJWS(opts IssueOptions) (string, error) {
	result, err := Issue(opts)
	if err != nil {
		return "", err
	}
	return result.JWS, nil
}

// MustIssue is like Issue but panics on error. Use only in tests.
func MustIssue(opts IssueOptions) *IssueResult {
	result, err := Issue(opts)
	if err != nil {
		panic(err)
	}
	return result
}
