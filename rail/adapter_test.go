package rail

import "testing"

func TestAdapterError_Error(t *testing.T) {
	t.Run("with field", func(t *testing.T) {
		e := &AdapterError{Rail: "stripe", Stage: StageParse, Code: ErrCodeMalformed, Message: "bad json", Field: "amount"}
		want := "stripe[parse].E_RAIL_MALFORMED: bad json (field: amount)"
		if e.Error() != want {
			t.Errorf("Error() = %q, want %q", e.Error(), want)
		}
	})

	t.Run("without field", func(t *testing.T) {
		e := &AdapterError{Rail: "stripe", Stage: StageMap, Code: ErrCodeUnsupported, Message: "unsupported"}
		want := "stripe[map].E_RAIL_UNSUPPORTED: unsupported"
		if e.Error() != want {
			t.Errorf("Error() = %q, want %q", e.Error(), want)
		}
	})
}

type fakeAdapter struct {
	parseErr    error
	validateErr error
	mapErr      error
	mapped      Mapped
}

func (f *fakeAdapter) Name() string { return "fake" }

func (f *fakeAdapter) Parse(raw []byte) (Event, error) {
	if f.parseErr != nil {
		return Event{}, f.parseErr
	}
	return Event{Rail: "fake", Reference: "ref-1"}, nil
}

func (f *fakeAdapter) Validate(ev Event) error {
	return f.validateErr
}

func (f *fakeAdapter) Map(ev Event) (Mapped, error) {
	if f.mapErr != nil {
		return Mapped{}, f.mapErr
	}
	return f.mapped, nil
}

func TestRun_ShortCircuitsOnFirstFailingStage(t *testing.T) {
	parseErr := newAdapterErrForTest(StageParse)
	a := &fakeAdapter{parseErr: parseErr, validateErr: newAdapterErrForTest(StageValidate)}
	_, err := Run(a, []byte(`{}`))
	if err != parseErr {
		t.Errorf("Run() should short-circuit at parse, got %v", err)
	}
}

func TestRun_Success(t *testing.T) {
	want := Mapped{Rail: "fake", Reference: "ref-1", Amount: 100, Currency: "USD"}
	a := &fakeAdapter{mapped: want}
	got, err := Run(a, []byte(`{}`))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got.Rail != want.Rail || got.Reference != want.Reference || got.Amount != want.Amount || got.Currency != want.Currency {
		t.Errorf("Run() = %+v, want %+v", got, want)
	}
}

func newAdapterErrForTest(stage Stage) error {
	return &AdapterError{Rail: "fake", Stage: stage, Code: ErrCodeMalformed, Message: "test"}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "valid", cfg: Config{Rail: "stripe"}},
		{name: "valid with expected currency", cfg: Config{Rail: "stripe", ExpectedCurrency: "usd"}},
		{name: "missing rail", cfg: Config{}, wantErr: true},
		{name: "expected currency wrong length", cfg: Config{Rail: "stripe", ExpectedCurrency: "us"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
