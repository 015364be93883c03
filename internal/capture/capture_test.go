package capture

import (
	"context"
	"testing"
	"time"

	"github.com/hazyhaar/previewcache/internal/bridge"
	"github.com/hazyhaar/previewcache/internal/snapshot"
	"github.com/hazyhaar/previewcache/internal/store"
)

// fakeBridge is a canned RenderBridge for scheduler tests.
type fakeBridge struct {
	img      []byte
	err      error
	title    string
	loaded   chan struct{}
	captures int
}

func (f *fakeBridge) Activate(ctx context.Context) error { return nil }
func (f *fakeBridge) LoadFinished() <-chan struct{}      { return f.loaded }
func (f *fakeBridge) Title(ctx context.Context) string   { return f.title }
func (f *fakeBridge) Close() error                       { return nil }

func (f *fakeBridge) Capture(ctx context.Context) ([]byte, error) {
	f.captures++
	if f.err != nil {
		return nil, f.err
	}
	return f.img, nil
}

func newTestScheduler(t *testing.T, fb *fakeBridge, window time.Duration) (*Scheduler, *store.Store) {
	t.Helper()
	st, err := store.New(t.TempDir(), "png", nil)
	if err != nil {
		t.Fatal(err)
	}
	return New(Config{
		NodeID: "node-1",
		Bridge: fb,
		Store:  st,
		Window: window,
	}), st
}

func TestObserveUnresolvedNeverQualifies(t *testing.T) {
	s, _ := newTestScheduler(t, &fakeBridge{}, time.Second)

	cases := []snapshot.Geometry{
		{},
		{Width: 100},
		{Height: 100},
		{Width: -1, Height: 50},
	}
	for _, g := range cases {
		if s.Observe(g) {
			t.Errorf("Observe(%+v): qualified, want ignored", g)
		}
	}
	if s.TimerC() != nil {
		t.Error("timer armed by unresolved geometry")
	}
}

func TestObserveFirstResolvedDoesNotQualify(t *testing.T) {
	s, _ := newTestScheduler(t, &fakeBridge{}, time.Second)

	if s.Observe(snapshot.Geometry{Width: 100, Height: 100}) {
		t.Error("first resolved geometry qualified, want ignored (no prior observation)")
	}
}

func TestObserveIdenticalDoesNotQualify(t *testing.T) {
	s, _ := newTestScheduler(t, &fakeBridge{}, time.Second)

	s.Observe(snapshot.Geometry{Width: 100, Height: 100})
	if s.Observe(snapshot.Geometry{Width: 100, Height: 100}) {
		t.Error("identical geometry qualified, want ignored")
	}
	if s.TimerC() != nil {
		t.Error("timer armed by identical geometry")
	}
}

func TestObserveChangeQualifies(t *testing.T) {
	s, _ := newTestScheduler(t, &fakeBridge{}, time.Second)

	s.Observe(snapshot.Geometry{Width: 100, Height: 100})
	if !s.Observe(snapshot.Geometry{Width: 200, Height: 100}) {
		t.Fatal("changed geometry did not qualify")
	}
	if s.TimerC() == nil {
		t.Error("no debounce timer after qualifying change")
	}
}

func TestObserveUnresolvedAfterResolvedIsIgnored(t *testing.T) {
	s, _ := newTestScheduler(t, &fakeBridge{}, time.Second)

	s.Observe(snapshot.Geometry{Width: 100, Height: 100})
	if s.Observe(snapshot.Geometry{}) {
		t.Error("unresolved geometry qualified")
	}
	// The unresolved update must not clobber the last observation either.
	if !s.Observe(snapshot.Geometry{Width: 150, Height: 100}) {
		t.Error("change after unresolved blip did not qualify")
	}
}

func TestDebounceCoalescesBurst(t *testing.T) {
	s, _ := newTestScheduler(t, &fakeBridge{}, 120*time.Millisecond)

	s.Observe(snapshot.Geometry{Width: 100, Height: 100})
	for i, g := range []snapshot.Geometry{
		{Width: 110, Height: 100},
		{Width: 120, Height: 100},
		{Width: 130, Height: 100},
	} {
		if !s.Observe(g) {
			t.Fatalf("event %d did not qualify", i)
		}
		time.Sleep(40 * time.Millisecond) // inside the prior window
	}

	fires := 0
	deadline := time.After(400 * time.Millisecond)
	for s.TimerC() != nil {
		select {
		case <-s.TimerC():
			fires++
			s.Disarm()
		case <-deadline:
			t.Fatal("debounce timer never fired")
		}
	}
	if fires != 1 {
		t.Errorf("timer fires: got %d, want 1 (coalesced)", fires)
	}
}

func TestDisarmStopsPendingTimer(t *testing.T) {
	s, _ := newTestScheduler(t, &fakeBridge{}, 50*time.Millisecond)

	s.Observe(snapshot.Geometry{Width: 100, Height: 100})
	s.Observe(snapshot.Geometry{Width: 200, Height: 100})
	s.Disarm()

	if s.TimerC() != nil {
		t.Error("TimerC non-nil after Disarm")
	}
}

func TestCaptureAndSavePersistsPair(t *testing.T) {
	fb := &fakeBridge{img: []byte("frame"), title: "Page Title"}
	s, st := newTestScheduler(t, fb, time.Second)

	s.CaptureAndSave(context.Background(), ReasonInitial)

	snap, ok := st.Read("node-1")
	if !ok {
		t.Fatal("no snapshot persisted")
	}
	if string(snap.Image) != "frame" {
		t.Errorf("image: got %q, want %q", snap.Image, "frame")
	}
	if snap.Title != "Page Title" {
		t.Errorf("title: got %q, want %q", snap.Title, "Page Title")
	}
}

func TestCaptureFailureLeavesCacheUntouched(t *testing.T) {
	fb := &fakeBridge{err: bridge.ErrNoSurface}
	s, st := newTestScheduler(t, fb, time.Second)

	s.CaptureAndSave(context.Background(), ReasonResize)

	if p := st.Exists("node-1"); p.Thumbnail || p.Metadata {
		t.Errorf("cache mutated on capture failure: %+v", p)
	}
	if fb.captures != 1 {
		t.Errorf("captures: got %d, want 1", fb.captures)
	}
}
