// Package rail defines the adapter contract a payment rail implements to
// produce peac.PaymentEvidence from its own wire format (C10). Grounded on
// the pack's x402 payment-rail examples: siddimore's PaymentRail interface
// shows the same "one rail, many schemes" shape this package generalises,
// but PEAC's contract is simpler and total — parse, validate, and map never
// panic and never perform I/O; an adapter that needs to call out to a rail's
// API (capture, refund, webhook delivery) does that before handing its
// result to this package, not inside it.
package rail

import (
	"encoding/json"
	"fmt"
)

// Stage identifies which step of an adapter's pipeline produced an error.
type Stage string

const (
	StageParse    Stage = "parse"
	StageValidate Stage = "validate"
	StageMap      Stage = "map"
)

// AdapterError reports a rail-adapter failure with enough context (stage,
// code, field) for a caller to build a precise diagnostic, matching the
// Code/Message/Field shape used throughout this module (IssueError,
// discovery.ValidationError).
type AdapterError struct {
	Rail    string
	Stage   Stage
	Code    string
	Message string
	Field   string
}

func (e *AdapterError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s[%s].%s: %s (field: %s)", e.Rail, e.Stage, e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("%s[%s].%s: %s", e.Rail, e.Stage, e.Code, e.Message)
}

const (
	ErrCodeMalformed      = "E_RAIL_MALFORMED"
	ErrCodeMissingField   = "E_RAIL_MISSING_FIELD"
	ErrCodeAmountMismatch = "E_RAIL_AMOUNT_MISMATCH"
	ErrCodeUnsupported    = "E_RAIL_UNSUPPORTED"
)

// Event is the rail-agnostic carrier an adapter's Parse stage produces: the
// decoded envelope plus the raw bytes it came from, so a Map stage can
// recover rail-specific fields the generic Event doesn't surface.
type Event struct {
	Rail      string
	Reference string
	Amount    int64
	Currency  string
	Network   string
	Raw       json.RawMessage
}

// Config is the per-adapter configuration struct-tag-validated by
// go-playground/validator/v10 before an adapter is constructed (§3 DOMAIN
// STACK: "C5 discovery, C10 rail — struct-tag pass over ... rail Config
// types").
type Config struct {
	Rail            string `json:"rail" validate:"required"`
	ExpectedCurrency string `json:"expected_currency" validate:"omitempty,len=3"`
	AllowTestEnv    bool   `json:"allow_test_env"`
}

// Adapter is the C10 contract: parse the rail's native wire format into an
// Event, validate that Event's internal consistency, then map it onto a
// PaymentEvidence-shaped result. Every method is total — no panics, no I/O,
// no shared mutable state — so a caller can run Parse/Validate/Map
// concurrently across many events without synchronisation.
type Adapter interface {
	Name() string
	Parse(raw []byte) (Event, error)
	Validate(ev Event) error
	Map(ev Event) (Mapped, error)
}

// Mapped is the adapter's output: the fields issue.go's PaymentEvidence
// needs, kept separate from peac.PaymentEvidence itself so this package
// never imports the root package (keeping the dependency graph a DAG with
// rail adapters as leaves, matching SPEC_FULL.md §0's layout).
type Mapped struct {
	Rail           string
	Reference      string
	Amount         int64
	Currency       string
	Asset          string
	Env            string
	Network        string
	FacilitatorRef string
	IdempotencyKey string
	Evidence       json.RawMessage
}

// Run executes the full parse -> validate -> map pipeline for adapter a over
// raw, short-circuiting on the first stage to fail.
func Run(a Adapter, raw []byte) (Mapped, error) {
	ev, err := a.Parse(raw)
	if err != nil {
		return Mapped{}, err
	}
	if err := a.Validate(ev); err != nil {
		return Mapped{}, err
	}
	mapped, err := a.Map(ev)
	if err != nil {
		return Mapped{}, err
	}
	return mapped, nil
}
