// Package inference implements the rail.Adapter contract for AI-inference
// usage-metered events: a provider reports token/unit counts and a computed
// charge instead of a fixed checkout amount. Grounded on spec.md §1's "AI
// inference providers" example and the purpose_enforced vocabulary's
// "inference" token (§3.1).
package inference

import (
	"encoding/json"
	"strings"

	"github.com/peacframework/receipts/rail"
)

const railName = "inference"

// event is the usage-metered shape this adapter reads: a request id, the
// unit count actually billed, the computed charge, and the currency it's
// denominated in. Model/provider identifiers pass through via Mapped.Evidence.
type event struct {
	RequestID    string `json:"request_id"`
	Provider     string `json:"provider"`
	Model        string `json:"model"`
	UnitsBilled  int64  `json:"units_billed"`
	ChargeMinor  int64  `json:"charge_minor"`
	Currency     string `json:"currency"`
	Env          string `json:"env"`
}

// Adapter implements rail.Adapter for usage-metered inference billing.
type Adapter struct {
	cfg rail.Config
}

// New constructs an inference adapter from cfg, expected to have already
// passed go-playground/validator/v10's struct-tag pass.
func New(cfg rail.Config) *Adapter {
	return &Adapter{cfg: cfg}
}

func (a *Adapter) Name() string { return railName }

func (a *Adapter) Parse(raw []byte) (rail.Event, error) {
	var e event
	if err := json.Unmarshal(raw, &e); err != nil {
		return rail.Event{}, newErr(rail.StageParse, rail.ErrCodeMalformed, "invalid JSON: "+err.Error(), "")
	}
	if e.RequestID == "" {
		return rail.Event{}, newErr(rail.StageParse, rail.ErrCodeMissingField, "request_id is required", "request_id")
	}
	if e.UnitsBilled < 0 {
		return rail.Event{}, newErr(rail.StageParse, rail.ErrCodeMalformed, "units_billed must not be negative", "units_billed")
	}
	if e.ChargeMinor < 0 {
		return rail.Event{}, newErr(rail.StageParse, rail.ErrCodeMalformed, "charge_minor must not be negative", "charge_minor")
	}
	return rail.Event{
		Rail:      railName,
		Reference: e.RequestID,
		Amount:    e.ChargeMinor,
		Currency:  strings.ToUpper(e.Currency),
		Network:   e.Provider,
		Raw:       raw,
	}, nil
}

func (a *Adapter) Validate(ev rail.Event) error {
	if ev.Reference == "" {
		return newErr(rail.StageValidate, rail.ErrCodeMissingField, "reference is required", "reference")
	}
	if len(ev.Currency) != 3 {
		return newErr(rail.StageValidate, rail.ErrCodeMalformed, "currency must be a 3-letter code", "currency")
	}
	if a.cfg.ExpectedCurrency != "" && ev.Currency != strings.ToUpper(a.cfg.ExpectedCurrency) {
		return newErr(rail.StageValidate, rail.ErrCodeAmountMismatch,
			"currency does not match the configured expected_currency", "currency")
	}
	return nil
}

func (a *Adapter) Map(ev rail.Event) (rail.Mapped, error) {
	var e event
	if err := json.Unmarshal(ev.Raw, &e); err != nil {
		return rail.Mapped{}, newErr(rail.StageMap, rail.ErrCodeMalformed, "invalid JSON on map: "+err.Error(), "")
	}
	env := e.Env
	if env == "" {
		env = "test"
	}
	if env != "live" && env != "test" {
		return rail.Mapped{}, newErr(rail.StageMap, rail.ErrCodeUnsupported, "env must be live or test", "env")
	}
	if env == "test" && !a.cfg.AllowTestEnv {
		return rail.Mapped{}, newErr(rail.StageMap, rail.ErrCodeUnsupported,
			"test-mode events are rejected unless allow_test_env is set", "env")
	}

	return rail.Mapped{
		Rail:      railName,
		Reference: ev.Reference,
		Amount:    ev.Amount,
		Currency:  ev.Currency,
		Asset:     ev.Currency,
		Env:       env,
		Network:   ev.Network,
		Evidence:  ev.Raw,
	}, nil
}

func newErr(stage rail.Stage, code, message, field string) error {
	return &rail.AdapterError{Rail: railName, Stage: stage, Code: code, Message: message, Field: field}
}
