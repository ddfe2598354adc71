package peac

import (
	"regexp"
	"strings"
)

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

// purpose_declared tokens are lowercase, optionally "vendor:"-prefixed
// (§3.1). The literal "undeclared" is reserved for internal use and must
// never appear on the wire (§8.2 S3).
var purposeDeclaredPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*(:[a-z][a-z0-9_]*)?$`)

var validPurposeEnforced = map[string]bool{
	PurposeTrain:      true,
	PurposeSearch:     true,
	PurposeUserAction: true,
	PurposeInference:  true,
	PurposeIndex:      true,
}

var validPurposeReason = map[string]bool{
	ReasonAllowed:           true,
	ReasonConstrained:       true,
	ReasonDenied:            true,
	ReasonDowngraded:        true,
	ReasonUndeclaredDefault: true,
	ReasonUnknownPreserved:  true,
}

// validateIssuer checks that iss is an https URL (§3.1).
func validateIssuer(iss string) error {
	if !strings.HasPrefix(iss, "https://") {
		return newIssueError(ErrCodeInvalidURL, "issuer must be an https URL", "iss")
	}
	return nil
}

// validateAudience checks that aud is an https URL (§3.1).
func validateAudience(aud string) error {
	if !strings.HasPrefix(aud, "https://") {
		return newIssueError(ErrCodeInvalidURL, "audience must be an https URL", "aud")
	}
	return nil
}

// validateCurrency checks cur against the ISO 4217 alpha-3 shape (§3.1).
// It does not check cur against the registry of actually-assigned codes.
func validateCurrency(cur string) error {
	if !currencyPattern.MatchString(cur) {
		return newIssueError(ErrCodeInvalidCurrency, "currency must be a 3-letter uppercase ISO 4217 code", "cur")
	}
	return nil
}

// validateAmount checks that amt is a non-negative integer (§3.1, minor units).
func validateAmount(amt int64) error {
	if amt < 0 {
		return newIssueError(ErrCodeInvalidAmount, "amount must not be negative", "amt")
	}
	return nil
}

// validateExpiry checks that exp, when present, is strictly after iat.
func validateExpiry(iat int64, exp *int64) error {
	if exp == nil {
		return nil
	}
	if *exp <= iat {
		return newIssueError(ErrCodeInvalidExpiry, "exp must be after iat", "exp")
	}
	return nil
}

// validatePurposeDeclared checks every purpose_declared token against the
// wire vocabulary, explicitly rejecting the internal-only "undeclared"
// literal per §8.2 S3.
func validatePurposeDeclared(tokens []string) error {
	for _, tok := range tokens {
		if tok == PurposeUndeclared {
			return newIssueError(ErrCodeInvalidPurpose,
				"Explicit 'undeclared' is not a valid purpose token (internal-only)", "purpose_declared")
		}
		if !purposeDeclaredPattern.MatchString(tok) {
			return newIssueError(ErrCodeInvalidPurpose,
				"purpose_declared token must be lowercase, optionally vendor:-prefixed", "purpose_declared")
		}
	}
	return nil
}

// validatePurposeEnforced checks purpose_enforced against the closed
// vocabulary (§3.1). An empty string is allowed: enforcement is optional.
func validatePurposeEnforced(purpose string) error {
	if purpose == "" {
		return nil
	}
	if !validPurposeEnforced[purpose] {
		return newIssueError(ErrCodeInvalidPurpose, "purpose_enforced is not a recognised token", "purpose_enforced")
	}
	return nil
}

// validatePurposeReason checks purpose_reason against its closed vocabulary.
func validatePurposeReason(reason string) error {
	if reason == "" {
		return nil
	}
	if !validPurposeReason[reason] {
		return newIssueError(ErrCodeInvalidPurpose, "purpose_reason is not a recognised token", "purpose_reason")
	}
	return nil
}

// validateSubjectSnapshot checks the required fields of an optional
// subject profile snapshot (§4 Supplemented Features).
func validateSubjectSnapshot(s *SubjectProfileSnapshot) error {
	if s == nil {
		return nil
	}
	if s.Subject.ID == "" {
		return newIssueError(ErrCodeInvalidSubject, "subject.id is required", "subject.id")
	}
	if s.Subject.Type == "" {
		return newIssueError(ErrCodeInvalidSubject, "subject.type is required", "subject.type")
	}
	return nil
}

// validateWorkflowContext enforces the anti-cycle invariants: a step can
// never name itself as its own parent, and parent_step_ids must not repeat.
func validateWorkflowContext(w *WorkflowContext) error {
	if w == nil {
		return nil
	}
	if w.WorkflowID == "" {
		return newIssueError(ErrCodeInvalidWorkflow, "workflow_id is required", "workflow_id")
	}
	if w.StepID == "" {
		return newIssueError(ErrCodeInvalidWorkflow, "step_id is required", "step_id")
	}
	seen := make(map[string]bool, len(w.ParentStepIDs))
	for _, parent := range w.ParentStepIDs {
		if parent == w.StepID {
			return newIssueError(ErrCodeInvalidWorkflow, "step_id must not appear in its own parent_step_ids", "parent_step_ids")
		}
		if seen[parent] {
			return newIssueError(ErrCodeInvalidWorkflow, "parent_step_ids must not contain duplicates", "parent_step_ids")
		}
		seen[parent] = true
	}
	return nil
}

// validatePaymentEvidence checks the payment record's internal consistency
// and its binding to the top-level amt/cur claims (§3.2).
func validatePaymentEvidence(p *PaymentEvidence, amt int64, cur string) error {
	if p.Rail == "" {
		return newIssueError(ErrCodeInvalidPayment, "payment.rail is required", "payment.rail")
	}
	if p.Reference == "" {
		return newIssueError(ErrCodeInvalidPayment, "payment.reference is required", "payment.reference")
	}
	if p.Amount != amt {
		return newIssueError(ErrCodeInvalidPayment, "payment.amount must equal amt", "payment.amount")
	}
	if p.Currency != cur {
		return newIssueError(ErrCodeInvalidPayment, "payment.currency must equal cur", "payment.currency")
	}
	return nil
}
