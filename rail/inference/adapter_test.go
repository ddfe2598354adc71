package inference

import (
	"testing"

	"github.com/peacframework/receipts/rail"
)

func TestAdapter_Run_LiveUsageEvent(t *testing.T) {
	a := New(rail.Config{Rail: "inference"})
	raw := []byte(`{"request_id":"req_1","provider":"openai","model":"gpt-x","units_billed":1500,"charge_minor":42,"currency":"usd","env":"live"}`)

	mapped, err := rail.Run(a, raw)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if mapped.Reference != "req_1" {
		t.Errorf("Reference = %s, want req_1", mapped.Reference)
	}
	if mapped.Amount != 42 {
		t.Errorf("Amount = %d, want 42", mapped.Amount)
	}
	if mapped.Network != "openai" {
		t.Errorf("Network = %s, want openai", mapped.Network)
	}
	if mapped.Env != "live" {
		t.Errorf("Env = %s, want live", mapped.Env)
	}
}

func TestAdapter_Run_DefaultsToTestEnv(t *testing.T) {
	a := New(rail.Config{Rail: "inference", AllowTestEnv: true})
	raw := []byte(`{"request_id":"req_2","units_billed":10,"charge_minor":1,"currency":"usd"}`)

	mapped, err := rail.Run(a, raw)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if mapped.Env != "test" {
		t.Errorf("Env = %s, want test", mapped.Env)
	}
}

func TestAdapter_Run_TestEnvRejectedByDefault(t *testing.T) {
	a := New(rail.Config{Rail: "inference"})
	raw := []byte(`{"request_id":"req_3","units_billed":10,"charge_minor":1,"currency":"usd"}`)

	if _, err := rail.Run(a, raw); err == nil {
		t.Fatal("expected test-env usage event to be rejected without allow_test_env")
	}
}

func TestAdapter_Parse_NegativeUnitsBilled(t *testing.T) {
	a := New(rail.Config{Rail: "inference"})
	if _, err := a.Parse([]byte(`{"request_id":"req_4","units_billed":-1,"charge_minor":1,"currency":"usd"}`)); err == nil {
		t.Fatal("expected error for negative units_billed")
	}
}

func TestAdapter_Map_RejectsUnknownEnv(t *testing.T) {
	a := New(rail.Config{Rail: "inference", AllowTestEnv: true})
	raw := []byte(`{"request_id":"req_5","units_billed":1,"charge_minor":1,"currency":"usd","env":"staging"}`)
	ev, err := a.Parse(raw)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if err := a.Validate(ev); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if _, err := a.Map(ev); err == nil {
		t.Fatal("expected error for unrecognised env value")
	}
}
