// Package stripe implements the rail.Adapter contract for Stripe
// payment-intent/charge events, grounded on the pack's StripeRail
// (other_examples' x402 seller-middleware): the same amount/currency/
// payment_intent event fields, reduced to PEAC's pure parse/validate/map
// contract instead of Stripe's live API client.
package stripe

import (
	"encoding/json"
	"strings"

	"github.com/peacframework/receipts/rail"
)

const railName = "stripe"

// event is the minimal shape this adapter reads out of a Stripe
// payment_intent.succeeded (or charge.succeeded) webhook body. Fields not
// named here pass through untouched inside Mapped.Evidence.
type event struct {
	ID       string `json:"id"`
	Object   string `json:"object"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
	Livemode bool   `json:"livemode"`
}

// Adapter implements rail.Adapter for Stripe. ExpectedCurrency, when set,
// is enforced in Validate; otherwise any 3-letter currency code passes.
type Adapter struct {
	cfg rail.Config
}

// New constructs a Stripe adapter from cfg. cfg is expected to have already
// passed go-playground/validator/v10's struct-tag pass (§3 DOMAIN STACK);
// New itself performs no checks.
func New(cfg rail.Config) *Adapter {
	return &Adapter{cfg: cfg}
}

func (a *Adapter) Name() string { return railName }

func (a *Adapter) Parse(raw []byte) (rail.Event, error) {
	var e event
	if err := json.Unmarshal(raw, &e); err != nil {
		return rail.Event{}, newErr(rail.StageParse, rail.ErrCodeMalformed, "invalid JSON: "+err.Error(), "")
	}
	if e.ID == "" {
		return rail.Event{}, newErr(rail.StageParse, rail.ErrCodeMissingField, "id is required", "id")
	}
	if e.Amount < 0 {
		return rail.Event{}, newErr(rail.StageParse, rail.ErrCodeMalformed, "amount must not be negative", "amount")
	}
	return rail.Event{
		Rail:      railName,
		Reference: e.ID,
		Amount:    e.Amount,
		Currency:  strings.ToUpper(e.Currency),
		Network:   "card",
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
	env := "live"
	if !e.Livemode {
		env = "test"
		if !a.cfg.AllowTestEnv {
			return rail.Mapped{}, newErr(rail.StageMap, rail.ErrCodeUnsupported,
				"test-mode events are rejected unless allow_test_env is set", "livemode")
		}
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
