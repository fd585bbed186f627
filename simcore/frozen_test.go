package simcore

import "testing"

func TestFrozen_SetThenGet(t *testing.T) {
	var f Frozen[int]
	f.Set(42)
	if got := f.Get(); got != 42 {
		t.Errorf("Get() = %d, want 42", got)
	}
	if !f.IsSet() {
		t.Errorf("IsSet() = false, want true")
	}
}

func TestFrozen_DoubleSetPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("expected panic on second Set")
		}
	}()
	var f Frozen[string]
	f.Set("a")
	f.Set("b")
}

func TestFrozen_ResetAllowsReSet(t *testing.T) {
	var f Frozen[int]
	f.Set(1)
	f.Reset()
	if f.IsSet() {
		t.Errorf("IsSet() = true after Reset, want false")
	}
	f.Set(2)
	if got := f.Get(); got != 2 {
		t.Errorf("Get() = %d, want 2", got)
	}
}
