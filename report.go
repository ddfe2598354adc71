package peac

// CheckStatus is the outcome of a single verification check.
type CheckStatus string

const (
	CheckPass CheckStatus = "pass"
	CheckFail CheckStatus = "fail"
	CheckSkip CheckStatus = "skip"
)

// Check is one entry in the fixed, ordered §4.9 check list.
type Check struct {
	Name   string      `json:"name"`
	Status CheckStatus `json:"status"`
	Reason ReasonCode  `json:"reason,omitempty"`
}

// Result is the report's top-level verdict.
type Result struct {
	Valid         bool       `json:"valid"`
	Reason        ReasonCode `json:"reason"`
	Severity      string     `json:"severity"`
	ReceiptType   string     `json:"receipt_type,omitempty"`
	Issuer        string     `json:"issuer,omitempty"`
	KeyID         string     `json:"kid,omitempty"`
	PolicyBinding string     `json:"policy_binding,omitempty"`
}

// ReceiptPointer is the deterministic artifact describing a resource
// pointer's expected-vs-actual digest comparison, when the receipt carries
// one.
type ReceiptPointer struct {
	URL            string `json:"url"`
	ExpectedDigest string `json:"expected_digest"`
	ActualDigest   string `json:"actual_digest"`
	Match          bool   `json:"match"`
}

// Artifacts holds the optional, partitioned evidence a report may carry.
// IssuerJWKSDigest is the only non-deterministic field (§4.10): present
// only on a fresh JWKS fetch, absent on a cache hit, and excluded entirely
// from build_deterministic().
type Artifacts struct {
	IssuerKeySource        string          `json:"issuer_key_source,omitempty"`
	IssuerKeyThumbprint    string          `json:"issuer_key_thumbprint,omitempty"`
	NormalizedClaimsDigest string          `json:"normalized_claims_digest,omitempty"`
	ReceiptPointer         *ReceiptPointer `json:"receipt_pointer,omitempty"`
	IssuerJWKSDigest       string          `json:"issuer_jwks_digest,omitempty"`
}

func (a *Artifacts) isEmpty() bool {
	return a == nil || (*a == Artifacts{})
}

// Meta carries non-deterministic reporting metadata, omitted entirely from
// build_deterministic().
type Meta struct {
	GeneratedAt     string `json:"generated_at"`
	VerifierName    string `json:"verifier_name,omitempty"`
	VerifierVersion string `json:"verifier_version,omitempty"`
}

// ReportVersion is the current wire version of the verification report
// shape itself (§6.1).
const ReportVersion = "1"

// VerificationReport is the full JSON-shaped output of a verification
// (§6.1): {report_version, input, policy, result, checks[], artifacts?, meta?}.
type VerificationReport struct {
	ReportVersion string     `json:"report_version"`
	Input         string     `json:"input,omitempty"`
	Policy        string     `json:"policy,omitempty"`
	Result        Result     `json:"result"`
	Checks        []Check    `json:"checks"`
	Artifacts     *Artifacts `json:"artifacts,omitempty"`
	Meta          *Meta      `json:"meta,omitempty"`
}

// reportBuilder is a fluent accumulator over the ordered check list (C12).
// Checks are appended in the fixed §4.9 order; once a check fails, every
// subsequent addCheck call is forced to CheckSkip regardless of the status
// the caller passes, enforcing the "at most one fail" invariant structurally.
type reportBuilder struct {
	input      string
	policy     string
	checks     []Check
	failed     bool
	failReason ReasonCode
	result     Result
	artifacts  Artifacts
	hasPointer bool
	verifierNM string
	verifierVR string
	clock      Clock
}

func newReportBuilder(input, policy string, clock Clock) *reportBuilder {
	if clock == nil {
		clock = DefaultClock()
	}
	return &reportBuilder{input: input, policy: policy, clock: clock}
}

// addCheck records name's outcome. Once the pipeline has already failed,
// status is coerced to skip no matter what the caller requests.
func (b *reportBuilder) addCheck(name string, status CheckStatus, reason ReasonCode) {
	if b.failed {
		status = CheckSkip
	}
	if status == CheckFail {
		b.failed = true
		b.failReason = reason
	}
	b.checks = append(b.checks, Check{Name: name, Status: status, Reason: reason})
}

// firstFailReason returns the reason recorded on the first failing check,
// or ReasonOK if nothing has failed yet.
func (b *reportBuilder) firstFailReason() ReasonCode {
	if !b.failed {
		return ReasonOK
	}
	return b.failReason
}

func (b *reportBuilder) setResult(r Result) {
	b.result = r
}

func (b *reportBuilder) setVerifier(name, version string) {
	b.verifierNM = name
	b.verifierVR = version
}

func (b *reportBuilder) setIssuerKey(source, thumbprint string) {
	b.artifacts.IssuerKeySource = source
	b.artifacts.IssuerKeyThumbprint = thumbprint
}

func (b *reportBuilder) setNormalizedClaimsDigest(digest string) {
	b.artifacts.NormalizedClaimsDigest = digest
}

func (b *reportBuilder) setIssuerJWKSDigest(digest string) {
	b.artifacts.IssuerJWKSDigest = digest
}

func (b *reportBuilder) setReceiptPointer(p ReceiptPointer) {
	b.artifacts.ReceiptPointer = &p
	b.hasPointer = true
}

// build returns the full report, including meta and every artifact.
func (b *reportBuilder) build() *VerificationReport {
	artifacts := b.artifacts
	if b.hasPointer {
		artifacts.ReceiptPointer = b.artifacts.ReceiptPointer
	}
	var artifactsPtr *Artifacts
	if !artifacts.isEmpty() {
		artifactsPtr = &artifacts
	}
	return &VerificationReport{
		ReportVersion: ReportVersion,
		Input:         b.input,
		Policy:        b.policy,
		Result:        b.result,
		Checks:        append([]Check(nil), b.checks...),
		Artifacts:     artifactsPtr,
		Meta: &Meta{
			GeneratedAt:     b.clock.Now().UTC().Format("2006-01-02T15:04:05Z"),
			VerifierName:    b.verifierNM,
			VerifierVersion: b.verifierVR,
		},
	}
}

// buildDeterministic excludes meta and the non-deterministic
// issuer_jwks_digest artifact; if the remaining artifacts are empty, the
// artifacts field is omitted entirely so identical inputs produce
// byte-equal reports (§8.2 S5).
func (b *reportBuilder) buildDeterministic() *VerificationReport {
	artifacts := b.artifacts
	artifacts.IssuerJWKSDigest = ""

	var artifactsPtr *Artifacts
	if !artifacts.isEmpty() {
		artifactsPtr = &artifacts
	}
	return &VerificationReport{
		ReportVersion: ReportVersion,
		Input:         b.input,
		Policy:        b.policy,
		Result:        b.result,
		Checks:        append([]Check(nil), b.checks...),
		Artifacts:     artifactsPtr,
	}
}

// DeterministicReport derives the build_deterministic() view (§4.10) from
// an already-built full report: no meta, no issuer_jwks_digest, and the
// artifacts field omitted entirely if nothing remains.
func DeterministicReport(r *VerificationReport) *VerificationReport {
	var artifactsPtr *Artifacts
	if r.Artifacts != nil {
		artifacts := *r.Artifacts
		artifacts.IssuerJWKSDigest = ""
		if !artifacts.isEmpty() {
			artifactsPtr = &artifacts
		}
	}
	return &VerificationReport{
		ReportVersion: r.ReportVersion,
		Input:         r.Input,
		Policy:        r.Policy,
		Result:        r.Result,
		Checks:        append([]Check(nil), r.Checks...),
		Artifacts:     artifactsPtr,
	}
}
