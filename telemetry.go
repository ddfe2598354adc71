package peac

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
)

// Telemetry is the optional fire-and-forget hook invoked after issuance and
// verification (§9 "Telemetry without leakage"). Implementations must
// return quickly; Handle is called synchronously but any panic it raises is
// recovered and discarded so telemetry can never affect the core result.
type Telemetry interface {
	Handle(event string, fields map[string]any)
}

// TelemetryFunc adapts a plain function to the Telemetry interface.
type TelemetryFunc func(event string, fields map[string]any)

func (f TelemetryFunc) Handle(event string, fields map[string]any) { f(event, fields) }

// fireTelemetry invokes t.Handle, recovering any panic so a misbehaving
// hook can never fail the calling issue/verify operation.
func fireTelemetry(t Telemetry, event string, fields map[string]any) {
	if t == nil {
		return
	}
	defer func() { _ = recover() }()
	t.Handle(event, fields)
}

var piiAdvisedOnce sync.Map // id -> struct{}{}

// advisePIIIfEmailShaped emits a one-per-id deduplicated advisory when a
// subject identifier looks like an email address. The raw id is never
// logged; the telemetry payload carries only a truncated SHA-256 hash
// (§9 "Telemetry without leakage").
func advisePIIIfEmailShaped(t Telemetry, id string) {
	if t == nil || id == "" || !looksLikeEmail(id) {
		return
	}
	if _, already := piiAdvisedOnce.LoadOrStore(id, struct{}{}); already {
		return
	}
	fireTelemetry(t, "on_pii_advisory", map[string]any{
		"id_hash": hashForTelemetry(id),
	})
}

func looksLikeEmail(s string) bool {
	at := strings.IndexByte(s, '@')
	return at > 0 && at < len(s)-1 && strings.Contains(s[at+1:], ".")
}

// hashForTelemetry returns a "sha256:"-prefixed, 16-hex-char truncated
// digest suitable for a telemetry payload without exposing the raw value.
func hashForTelemetry(s string) string {
	sum := sha256.Sum256([]byte(s))
	return "sha256:" + hex.EncodeToString(sum[:])[:16]
}
