package peac

import "encoding/json"

// PurposeUndeclared is the internal-only token that must never appear in
// Claims.PurposeDeclared on the wire (§3.1, §8.2 S3).
const PurposeUndeclared = "undeclared"

// Canonical purpose_enforced vocabulary (§3.1).
const (
	PurposeTrain      = "train"
	PurposeSearch     = "search"
	PurposeUserAction = "user_action"
	PurposeInference  = "inference"
	PurposeIndex      = "index"
)

// Closed purpose_reason vocabulary (§3.1).
const (
	ReasonAllowed           = "allowed"
	ReasonConstrained       = "constrained"
	ReasonDenied            = "denied"
	ReasonDowngraded        = "downgraded"
	ReasonUndeclaredDefault = "undeclared_default"
	ReasonUnknownPreserved  = "unknown_preserved"
)

// WorkflowExtensionKey is the reserved ext key carrying workflow
// correlation metadata (§4 SUPPLEMENTED FEATURES).
const WorkflowExtensionKey = "peac:workflow/1"

// Claims is the signed receipt payload (§3.1). Fields use the wire's short
// names directly so json.Marshal/Unmarshal round-trip without custom
// (un)marshalers, matching canon.Marshal's member-ordering contract.
type Claims struct {
	Issuer   string          `json:"iss"`
	Audience string          `json:"aud"`
	IssuedAt int64           `json:"iat"`
	ReceiptID string         `json:"rid"`
	Amount   int64           `json:"amt"`
	Currency string          `json:"cur"`
	Payment  PaymentEvidence `json:"payment"`

	ExpiresAt       *int64          `json:"exp,omitempty"`
	Subject         *Subject        `json:"subject,omitempty"`
	PurposeDeclared []string        `json:"purpose_declared,omitempty"`
	PurposeEnforced string          `json:"purpose_enforced,omitempty"`
	PurposeReason   string          `json:"purpose_reason,omitempty"`
	Ext             map[string]json.RawMessage `json:"ext,omitempty"`
}

// Subject is the optional `subject.{uri}` claim field.
type Subject struct {
	URI string `json:"uri"`
}

// PaymentEvidence is the nested payment-evidence record (§3.2).
type PaymentEvidence struct {
	Rail           string          `json:"rail"`
	Reference      string          `json:"reference"`
	Amount         int64           `json:"amount"`
	Currency       string          `json:"currency"`
	Asset          string          `json:"asset,omitempty"`
	Env            string          `json:"env,omitempty"`
	Evidence       json.RawMessage `json:"evidence,omitempty"`
	Network        string          `json:"network,omitempty"`
	FacilitatorRef string          `json:"facilitator_ref,omitempty"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// SubjectProfileSnapshot is optional out-of-band metadata returned
// alongside (never inside) the signed token. It is never part of the
// canonical signing input.
type SubjectProfileSnapshot struct {
	Subject    SnapshotSubject `json:"subject"`
	CapturedAt string          `json:"captured_at"`
	Source     string          `json:"source,omitempty"`
	Version    string          `json:"version,omitempty"`
}

// SnapshotSubject is the required shape inside a SubjectProfileSnapshot.
type SnapshotSubject struct {
	ID     string   `json:"id"`
	Type   string   `json:"type"`
	Labels []string `json:"labels,omitempty"`
}

// WorkflowContext is the shape stored at Ext[WorkflowExtensionKey].
type WorkflowContext struct {
	WorkflowID     string   `json:"workflow_id"`
	StepID         string   `json:"step_id"`
	ParentStepIDs  []string `json:"parent_step_ids,omitempty"`
	StepIndex      *int     `json:"step_index,omitempty"`
	StepTotal      *int     `json:"step_total,omitempty"`
}
