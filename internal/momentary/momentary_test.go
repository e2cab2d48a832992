package momentary

import (
	"sync/atomic"
	"testing"
	"time"

	"lightrig/internal/catalog"
	"lightrig/internal/logger"
	"lightrig/internal/rig"
)

func newRig(t *testing.T) *rig.Rig {
	t.Helper()
	cat, err := catalog.Build(catalog.Sources{Fixtures: []byte(`
fixtures:
  bl_top: {start: 1, ch: {dim: 1}}
  bl_bottom: {start: 2, ch: {dim: 1}}
  par1: {start: 10, ch: {dim: 1}}
`)})
	if err != nil {
		t.Fatal(err)
	}
	return rig.New(logger.Discard(), cat, nil)
}

func dim(r *rig.Rig, fixture string) byte {
	v, _ := r.ChannelValue(fixture, "dim")
	return v
}

func TestBlinderHoldDoesNotBlock(t *testing.T) {
	r := newRig(t)
	s := New(logger.Discard())
	defer s.Stop()

	full, zero := 255, 0
	start := time.Now()
	s.Trigger("blinder", 150*time.Millisecond,
		func() { r.ApplyBlinders(&full, nil) },
		func() { r.ApplyBlinders(&zero, &zero) })
	if time.Since(start) > 50*time.Millisecond {
		t.Fatal("Trigger blocked for the hold")
	}
	if dim(r, "bl_top") != 255 {
		t.Fatalf("bl_top = %d, want 255 during hold", dim(r, "bl_top"))
	}

	time.Sleep(50 * time.Millisecond)
	r.WriteFixture("par1", catalog.ChannelValues(map[string]int{"dim": 80}))
	if dim(r, "par1") != 80 {
		t.Error("unrelated write delayed by the hold")
	}
	if dim(r, "bl_top") != 255 {
		t.Error("blinder reverted early")
	}

	deadline := time.Now().Add(time.Second)
	for dim(r, "bl_top") != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if dim(r, "bl_top") != 0 {
		t.Error("blinder never reverted")
	}
	if elapsed := time.Since(start); elapsed < 150*time.Millisecond {
		t.Errorf("reverted after %s, want at least the hold", elapsed)
	}
	if dim(r, "par1") != 80 {
		t.Error("revert touched an unrelated fixture")
	}
}

func TestRetriggerRestartsHold(t *testing.T) {
	s := New(logger.Discard())
	defer s.Stop()

	var reverts int32
	revert := func() { atomic.AddInt32(&reverts, 1) }
	s.Trigger("strobe", 100*time.Millisecond, func() {}, revert)
	time.Sleep(50 * time.Millisecond)
	s.Trigger("strobe", 100*time.Millisecond, func() {}, revert)

	time.Sleep(70 * time.Millisecond)
	if n := atomic.LoadInt32(&reverts); n != 0 {
		t.Errorf("reverted %d times before the restarted hold ended", n)
	}
	time.Sleep(150 * time.Millisecond)
	if n := atomic.LoadInt32(&reverts); n != 1 {
		t.Errorf("reverts = %d, want exactly 1", n)
	}
	if s.Pending("strobe") {
		t.Error("strobe still pending")
	}
}

func TestCancelAndStop(t *testing.T) {
	s := New(logger.Discard())
	var reverts int32
	revert := func() { atomic.AddInt32(&reverts, 1) }

	s.Trigger("a", 30*time.Millisecond, func() {}, revert)
	s.Trigger("b", 30*time.Millisecond, func() {}, revert)
	s.Trigger("c", 30*time.Millisecond, func() {}, revert)

	if !s.Cancel("a") {
		t.Error("Cancel(a) = false")
	}
	if s.Cancel("a") {
		t.Error("second Cancel(a) = true")
	}
	s.Stop()

	time.Sleep(80 * time.Millisecond)
	if n := atomic.LoadInt32(&reverts); n != 0 {
		t.Errorf("cancelled reverts ran %d times", n)
	}
}

func TestIndependentIDs(t *testing.T) {
	s := New(logger.Discard())
	defer s.Stop()
	done := make(chan string, 2)
	s.Trigger("fast", 10*time.Millisecond, func() {}, func() { done <- "fast" })
	s.Trigger("slow", 60*time.Millisecond, func() {}, func() { done <- "slow" })

	if first := <-done; first != "fast" {
		t.Errorf("first revert = %s", first)
	}
	select {
	case second := <-done:
		if second != "slow" {
			t.Errorf("second revert = %s", second)
		}
	case <-time.After(time.Second):
		t.Fatal("slow never reverted")
	}
}

func TestShortHoldRevertsAfterSlowApply(t *testing.T) {
	s := New(logger.Discard())
	defer s.Stop()

	var v int32
	for i := 0; i < 200; i++ {
		reverted := make(chan struct{})
		s.Trigger("blinder", time.Nanosecond, func() {
			time.Sleep(10 * time.Microsecond)
			atomic.StoreInt32(&v, 255)
		}, func() {
			atomic.StoreInt32(&v, 0)
			close(reverted)
		})
		select {
		case <-reverted:
		case <-time.After(time.Second):
			t.Fatalf("run %d: never reverted", i)
		}
		if got := atomic.LoadInt32(&v); got != 0 {
			t.Fatalf("run %d: value %d after the hold, want 0", i, got)
		}
	}
}

func TestTriggerDuringApplySupersedes(t *testing.T) {
	s := New(logger.Discard())
	defer s.Stop()

	var first int32
	second := make(chan struct{}, 2)
	s.Trigger("strobe", time.Nanosecond, func() {
		s.Trigger("strobe", 20*time.Millisecond, func() {}, func() { second <- struct{}{} })
	}, func() { atomic.AddInt32(&first, 1) })

	select {
	case <-second:
	case <-time.After(time.Second):
		t.Fatal("newer revert never ran")
	}
	time.Sleep(30 * time.Millisecond)
	if n := atomic.LoadInt32(&first); n != 0 {
		t.Errorf("superseded revert ran %d times", n)
	}
	if len(second) != 0 {
		t.Error("newer revert ran twice")
	}
}
