package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestLimiter(cfg Config) (*Limiter, *MemoryStore) {
	store := NewMemoryStore()
	return NewLimiter(store, cfg, zap.NewNop()), store
}

func TestCodeGeneration_LimitPlusOneDenied(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CodeGenLimit = 3
	l, _ := newTestLimiter(cfg)
	ctx := context.Background()

	for i := 0; i < cfg.CodeGenLimit; i++ {
		res := l.CheckCodeGeneration(ctx, "cust_1")
		if !res.Allowed {
			t.Fatalf("check %d should be allowed", i+1)
		}
		wantRemaining := cfg.CodeGenLimit - i - 1
		if res.Remaining != wantRemaining {
			t.Errorf("check %d: expected remaining %d, got %d", i+1, wantRemaining, res.Remaining)
		}
	}

	res := l.CheckCodeGeneration(ctx, "cust_1")
	if res.Allowed {
		t.Error("check past the limit must be denied")
	}
	if res.ResetAt.IsZero() {
		t.Error("denied result must carry a reset time")
	}
}

func TestCodeGeneration_CustomersIsolated(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CodeGenLimit = 1
	l, _ := newTestLimiter(cfg)
	ctx := context.Background()

	if res := l.CheckCodeGeneration(ctx, "cust_a"); !res.Allowed {
		t.Fatal("first check for cust_a should be allowed")
	}
	if res := l.CheckCodeGeneration(ctx, "cust_a"); res.Allowed {
		t.Fatal("second check for cust_a should be denied")
	}
	if res := l.CheckCodeGeneration(ctx, "cust_b"); !res.Allowed {
		t.Error("cust_b must have an independent window")
	}
}

func TestCodeGeneration_WindowExpiry(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CodeGenLimit = 1
	store := NewMemoryStore()
	l := NewLimiter(store, cfg, zap.NewNop())
	ctx := context.Background()

	base := time.Now()
	store.now = func() time.Time { return base }
	l.now = store.now

	if res := l.CheckCodeGeneration(ctx, "cust_1"); !res.Allowed {
		t.Fatal("first check should be allowed")
	}
	if res := l.CheckCodeGeneration(ctx, "cust_1"); res.Allowed {
		t.Fatal("second check should be denied")
	}

	// Advance past the rolling window: quota is available again.
	later := base.Add(cfg.CodeGenWindow + time.Minute)
	store.now = func() time.Time { return later }
	l.now = store.now

	if res := l.CheckCodeGeneration(ctx, "cust_1"); !res.Allowed {
		t.Error("check after window expiry should be allowed")
	}
}

func TestInfrastructure_FlagLifecycle(t *testing.T) {
	cfg := DefaultConfig() // limit 5, pre-emptive flag at remaining<=2
	l, _ := newTestLimiter(cfg)
	ctx := context.Background()

	// Checks 1-2: plenty of headroom, no flag anywhere.
	for i := 0; i < 2; i++ {
		res := l.CheckInfrastructureQuestion(ctx, "cust_1")
		if !res.Allowed || res.Flagged {
			t.Fatalf("check %d: expected allowed and unflagged, got %+v", i+1, res)
		}
	}

	// Check 3: remaining drops to 2, the result is flagged pre-emptively
	// but the persistent flag is not yet set.
	res := l.CheckInfrastructureQuestion(ctx, "cust_1")
	if !res.Allowed || !res.Flagged {
		t.Fatalf("check 3: expected allowed and flagged, got %+v", res)
	}
	if l.IsCustomerFlagged(ctx, "cust_1") {
		t.Error("persistent flag must not be set while quota remains")
	}

	// Checks 4-5: exhausting the quota sets the persistent flag.
	l.CheckInfrastructureQuestion(ctx, "cust_1")
	res = l.CheckInfrastructureQuestion(ctx, "cust_1")
	if !res.Allowed || res.Remaining != 0 {
		t.Fatalf("check 5: expected allowed with remaining 0, got %+v", res)
	}
	if !l.IsCustomerFlagged(ctx, "cust_1") {
		t.Error("persistent flag must be set at exhaustion")
	}

	// Check 6: denied.
	if res := l.CheckInfrastructureQuestion(ctx, "cust_1"); res.Allowed {
		t.Error("check past the limit must be denied")
	}
}

func TestCloneAttempts_FlagAtThreshold(t *testing.T) {
	l, _ := newTestLimiter(DefaultConfig()) // threshold 3
	ctx := context.Background()

	first := l.RecordCloneAttempt(ctx, "cust_1")
	if first.Flagged || first.JustFlagged {
		t.Errorf("attempt 1 must not flag, got %+v", first)
	}

	second := l.RecordCloneAttempt(ctx, "cust_1")
	if second.Flagged {
		t.Errorf("attempt 2 must not flag, got %+v", second)
	}
	if l.IsCustomerFlagged(ctx, "cust_1") {
		t.Error("customer must not be flagged below the threshold")
	}

	third := l.RecordCloneAttempt(ctx, "cust_1")
	if !third.Flagged || !third.JustFlagged {
		t.Errorf("attempt 3 must cross the threshold, got %+v", third)
	}
	if !l.IsCustomerFlagged(ctx, "cust_1") {
		t.Error("customer must be flagged at the threshold")
	}

	fourth := l.RecordCloneAttempt(ctx, "cust_1")
	if !fourth.Flagged || fourth.JustFlagged {
		t.Errorf("attempt 4 is flagged but not newly so, got %+v", fourth)
	}
}

func TestCloneFlag_SurvivesWindowExpiry(t *testing.T) {
	cfg := DefaultConfig()
	store := NewMemoryStore()
	l := NewLimiter(store, cfg, zap.NewNop())
	ctx := context.Background()

	base := time.Now()
	store.now = func() time.Time { return base }
	l.now = store.now

	for i := 0; i < cfg.CloneFlagThreshold; i++ {
		l.RecordCloneAttempt(ctx, "cust_1")
	}
	if !l.IsCustomerFlagged(ctx, "cust_1") {
		t.Fatal("expected the flag after crossing the threshold")
	}

	// The rolling counter resets; the flag does not.
	later := base.Add(cfg.CloneWindow + time.Hour)
	store.now = func() time.Time { return later }
	l.now = store.now

	res := l.RecordCloneAttempt(ctx, "cust_1")
	if res.Count != 1 {
		t.Errorf("expected the window counter to reset, got count %d", res.Count)
	}
	if !l.IsCustomerFlagged(ctx, "cust_1") {
		t.Error("the flag must survive window expiry")
	}
}

// errorStore simulates a broken backend.
type errorStore struct{}

func (errorStore) TakeIfUnder(context.Context, string, string, int, time.Duration) (int, bool, error) {
	return 0, false, errors.New("backend down")
}
func (errorStore) Append(context.Context, string, string, time.Duration) (int, error) {
	return 0, errors.New("backend down")
}
func (errorStore) SetFlagged(context.Context, string) error { return errors.New("backend down") }
func (errorStore) IsFlagged(context.Context, string) (bool, error) {
	return false, errors.New("backend down")
}

func TestLimiter_FailsOpenOnStoreErrors(t *testing.T) {
	l := NewLimiter(errorStore{}, DefaultConfig(), zap.NewNop())
	ctx := context.Background()

	if res := l.CheckCodeGeneration(ctx, "cust_1"); !res.Allowed {
		t.Error("code generation must fail open")
	}
	if res := l.CheckInfrastructureQuestion(ctx, "cust_1"); !res.Allowed {
		t.Error("infrastructure questions must fail open")
	}
	if l.IsCustomerFlagged(ctx, "cust_1") {
		t.Error("flag reads must fail closed to unflagged")
	}
}
