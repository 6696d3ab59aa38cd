package surface

import (
	"context"
	"testing"
	"time"

	"github.com/pvanko/walletgate/internal/model"
)

func TestNopHost(t *testing.T) {
	h := NewNopHost()
	handle, err := h.Open(context.Background())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if handle.ID == "" {
		t.Error("expected a handle ID")
	}
	if err := h.Close(handle); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	select {
	case <-h.Closed():
		t.Error("nop host reported a closed surface")
	default:
	}
}

func TestBrowserHostReportsUserClose(t *testing.T) {
	// A short-lived process stands in for the user closing the window.
	h := NewBrowserHost("sleep", "0.05", "tab", nil)
	handle, err := h.Open(context.Background())
	if err != nil {
		t.Skipf("cannot start helper process: %v", err)
	}

	select {
	case got := <-h.Closed():
		if got.ID != handle.ID {
			t.Errorf("closed handle %s, want %s", got.ID, handle.ID)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("surface exit not reported")
	}
}

func TestBrowserHostCloseIsSilent(t *testing.T) {
	h := NewBrowserHost("sleep", "10", "tab", nil)
	handle, err := h.Open(context.Background())
	if err != nil {
		t.Skipf("cannot start helper process: %v", err)
	}

	if err := h.Close(handle); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	// A daemon-initiated close must not look like a user close.
	select {
	case <-h.Closed():
		t.Error("daemon close reported as user close")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestBrowserHostCloseUnknownHandle(t *testing.T) {
	h := NewBrowserHost("sleep", "10", "tab", nil)
	if err := h.Close(model.SurfaceHandle{ID: "gone"}); err != nil {
		t.Errorf("closing unknown handle should be a no-op: %v", err)
	}
}
