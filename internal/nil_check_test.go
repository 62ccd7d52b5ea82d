package internal

import "testing"

type notifier interface{ Notify() }

type telegram struct{}

func (*telegram) Notify() {}

func TestIsNil(t *testing.T) {
	var typed *telegram
	var iface notifier = typed
	if !IsNil(nil) || !IsNil(iface) {
		t.Error("expected nil and typed nil to be nil")
	}
	if IsNil(&telegram{}) || IsNil(3) {
		t.Error("expected non-nil values")
	}
}
