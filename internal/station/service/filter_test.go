package service_test

import (
	"testing"
	"time"

	"github.com/BrandonDHaskell/Portunus/station/internal/station/service"
)

func TestConfirm(t *testing.T) {
	if service.Confirm(t0, false, t0.Add(time.Hour), time.Second) {
		t.Error("unarmed condition must never confirm")
	}
	if service.Confirm(t0, true, t0.Add(999*time.Millisecond), time.Second) {
		t.Error("expected no confirmation before min duration")
	}
	if !service.Confirm(t0, true, t0.Add(time.Second), time.Second) {
		t.Error("expected confirmation at exactly min duration")
	}
}

func TestFilter_ArmsAndConfirms(t *testing.T) {
	f := service.NewFilter(100 * time.Millisecond)

	if f.Observe(true, t0) {
		t.Fatal("expected no confirmation on first active sample")
	}
	if f.Observe(true, t0.Add(99*time.Millisecond)) {
		t.Fatal("expected no confirmation before the dwell time")
	}
	if !f.Observe(true, t0.Add(100*time.Millisecond)) {
		t.Fatal("expected confirmation after dwell time")
	}
}

func TestFilter_InactiveSampleDisarms(t *testing.T) {
	f := service.NewFilter(100 * time.Millisecond)

	f.Observe(true, t0)
	if f.Observe(false, t0.Add(50*time.Millisecond)) {
		t.Fatal("expected inactive sample never to confirm")
	}
	if f.Observe(true, t0.Add(120*time.Millisecond)) {
		t.Fatal("expected dwell to restart from the new activation")
	}
	if !f.Observe(true, t0.Add(220*time.Millisecond)) {
		t.Fatal("expected confirmation 100ms after re-arm")
	}
}

func TestFilter_Reset(t *testing.T) {
	f := service.NewFilter(time.Second)
	f.Observe(true, t0)
	f.Reset()
	if f.Observe(true, t0.Add(5*time.Second)) {
		t.Fatal("expected no confirmation right after reset")
	}
}

func TestLatch_ConsumeClears(t *testing.T) {
	var l service.Latch

	if l.Consume() {
		t.Fatal("expected fresh latch to be clear")
	}
	l.Set()
	l.Set()
	if !l.Consume() {
		t.Fatal("expected Consume to report the set latch")
	}
	if l.Consume() {
		t.Fatal("expected latch to be cleared by Consume")
	}
}
