package peac

import "github.com/peacframework/receipts/rail"

// PaymentEvidenceFromRail converts a rail adapter's Mapped output into the
// PaymentEvidence shape Issue expects, completing the C10 pipeline: an
// external rail event is parsed/validated/mapped by a rail.Adapter
// (rail.Run), then handed here to become the payment field of an
// IssueOptions value.
func PaymentEvidenceFromRail(m rail.Mapped) PaymentEvidence {
	return PaymentEvidence{
		Rail:           m.Rail,
		Reference:      m.Reference,
		Amount:         m.Amount,
		Currency:       m.Currency,
		Asset:          m.Asset,
		Env:            m.Env,
		Evidence:       m.Evidence,
		Network:        m.Network,
		FacilitatorRef: m.FacilitatorRef,
		IdempotencyKey: m.IdempotencyKey,
	}
}
