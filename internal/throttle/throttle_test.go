package throttle

import (
	"testing"
	"time"

	"vigil/internal/classify"
)

func TestOffer_FirstAlertEmits(t *testing.T) {
	th := New(8 * time.Second)
	now := time.Now()

	if !th.Offer(classify.LateralTilt, now) {
		t.Fatal("first alert of the session should be emitted")
	}
	if th.Counts()[classify.LateralTilt] != 1 {
		t.Errorf("expected emit count 1, got %d", th.Counts()[classify.LateralTilt])
	}
}

func TestOffer_NoneNeverEmits(t *testing.T) {
	th := New(8 * time.Second)
	now := time.Now()

	if th.Offer(classify.None, now) {
		t.Fatal("None should never emit")
	}

	// None must not consume the first-alert slot either.
	if !th.Offer(classify.EyeClosed, now) {
		t.Fatal("first real alert after None should be emitted")
	}
}

func TestOffer_CooldownScenario(t *testing.T) {
	// Threshold scenario from the product: identical ticks at +0s, +2s and
	// +9s with an 8s cooldown emit exactly twice.
	th := New(8 * time.Second)
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	if !th.Offer(classify.LateralTilt, base) {
		t.Fatal("tick at +0s should emit")
	}
	if th.Offer(classify.LateralTilt, base.Add(2*time.Second)) {
		t.Fatal("tick at +2s is inside the cooldown and must be suppressed")
	}
	if !th.Offer(classify.LateralTilt, base.Add(9*time.Second)) {
		t.Fatal("tick at +9s is past the cooldown and should emit")
	}

	if got := th.Counts()[classify.LateralTilt]; got != 2 {
		t.Errorf("expected 2 emits, got %d", got)
	}
}

func TestOffer_GlobalCooldownAcrossCategories(t *testing.T) {
	// One global window: a different category flipping right after an emit
	// must not fire a second alert.
	th := New(8 * time.Second)
	base := time.Now()

	if !th.Offer(classify.EyeClosed, base) {
		t.Fatal("first alert should emit")
	}
	if th.Offer(classify.TooClose, base.Add(time.Second)) {
		t.Fatal("adjacent category inside the window must be suppressed")
	}
}

func TestOffer_NoTwoEmitsInsideWindow(t *testing.T) {
	// Property: for any candidate sequence, no two emitted alerts are
	// closer than the cooldown window.
	th := New(5 * time.Second)
	base := time.Now()
	categories := []classify.Category{
		classify.LateralTilt, classify.EyeClosed, classify.None,
		classify.TooClose, classify.HeadDroop, classify.LateralTilt,
		classify.EyeClosed, classify.None, classify.HeadDroop,
	}

	var lastEmit time.Time
	var emitted bool
	for i, c := range categories {
		at := base.Add(time.Duration(i) * 2 * time.Second)
		if th.Offer(c, at) {
			if emitted && at.Sub(lastEmit) < 5*time.Second {
				t.Fatalf("emits at %v and %v are inside the window", lastEmit, at)
			}
			lastEmit = at
			emitted = true
		}
	}
}

func TestSuppressedOfferDoesNotMutateState(t *testing.T) {
	th := New(8 * time.Second)
	base := time.Now()

	th.Offer(classify.LateralTilt, base)
	th.Offer(classify.EyeClosed, base.Add(time.Second)) // suppressed

	// A suppressed offer must not reset the window start: +9s from the
	// first emit is past the cooldown even though +8s from the suppressed
	// offer is not.
	if !th.Offer(classify.EyeClosed, base.Add(9*time.Second)) {
		t.Fatal("suppression must not extend the cooldown window")
	}
	if got := th.Counts()[classify.EyeClosed]; got != 1 {
		t.Errorf("suppressed offers must not count, got %d", got)
	}
}

func TestReset(t *testing.T) {
	th := New(8 * time.Second)
	base := time.Now()

	th.Offer(classify.LateralTilt, base)
	th.Reset()

	if len(th.Counts()) != 0 {
		t.Error("counts should be empty after reset")
	}
	// After reset the next candidate is a first alert again.
	if !th.Offer(classify.LateralTilt, base.Add(time.Second)) {
		t.Fatal("first alert after reset should emit")
	}
}

func TestSetCooldown(t *testing.T) {
	th := New(8 * time.Second)
	base := time.Now()

	th.Offer(classify.LateralTilt, base)
	th.SetCooldown(2 * time.Second)

	if !th.Offer(classify.LateralTilt, base.Add(3*time.Second)) {
		t.Fatal("shortened cooldown should apply to subsequent offers")
	}
}

func TestNew_DefaultCooldown(t *testing.T) {
	th := New(0)
	if th.cooldown != DefaultCooldown {
		t.Errorf("expected default cooldown %v, got %v", DefaultCooldown, th.cooldown)
	}
}
