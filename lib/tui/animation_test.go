// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"math"
	"testing"
	"time"
)

func TestHeatDecay(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC)
	tracker := NewHeatTracker()
	tracker.Ignite("entry-3", HeatUpdate, base)

	if heat := tracker.Heat("entry-3", base); heat != 1.0 {
		t.Errorf("heat at ignition = %v, want 1.0", heat)
	}

	halfway := base.Add(HeatDecayDuration / 2)
	if heat := tracker.Heat("entry-3", halfway); math.Abs(heat-0.5) > 1e-9 {
		t.Errorf("heat at halfway = %v, want 0.5", heat)
	}

	if heat := tracker.Heat("entry-3", base.Add(HeatDecayDuration)); heat != 0.0 {
		t.Errorf("heat at full decay = %v, want 0.0", heat)
	}
	if heat := tracker.Heat("entry-3", base.Add(time.Minute)); heat != 0.0 {
		t.Errorf("heat long after decay = %v, want 0.0", heat)
	}
}

func TestHeatUnknownItem(t *testing.T) {
	t.Parallel()

	tracker := NewHeatTracker()
	if heat := tracker.Heat("never-ignited", time.Now()); heat != 0.0 {
		t.Errorf("heat for unknown item = %v, want 0.0", heat)
	}
}

func TestHeatReignite(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC)
	tracker := NewHeatTracker()
	tracker.Ignite("tool-1", HeatUpdate, base)

	later := base.Add(4 * time.Second)
	tracker.Ignite("tool-1", HeatUpdate, later)

	if heat := tracker.Heat("tool-1", later); heat != 1.0 {
		t.Errorf("heat after re-ignition = %v, want 1.0", heat)
	}
}

func TestHeatKind(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC)
	tracker := NewHeatTracker()
	tracker.Ignite("stale-input", HeatAlert, base)

	if kind := tracker.Kind("stale-input"); kind != HeatAlert {
		t.Errorf("kind = %v, want HeatAlert", kind)
	}
	if kind := tracker.Kind("unknown"); kind != HeatUpdate {
		t.Errorf("kind for unknown item = %v, want HeatUpdate", kind)
	}
}

func TestHasHotGarbageCollects(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC)
	tracker := NewHeatTracker()
	tracker.Ignite("entry-1", HeatUpdate, base)
	tracker.Ignite("entry-2", HeatAlert, base)

	if !tracker.HasHot(base) {
		t.Error("expected hot items immediately after ignition")
	}

	cold := base.Add(HeatDecayDuration + time.Second)
	if tracker.HasHot(cold) {
		t.Error("expected no hot items after full decay")
	}
	// Decayed entries were collected on the previous call.
	if tracker.HasHot(cold) {
		t.Error("expected no hot items on repeat query")
	}
	if heat := tracker.Heat("entry-1", cold); heat != 0.0 {
		t.Errorf("heat after collection = %v, want 0.0", heat)
	}
}

func TestHeatReset(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC)
	tracker := NewHeatTracker()
	tracker.Ignite("entry-1", HeatUpdate, base)
	tracker.Reset()

	if heat := tracker.Heat("entry-1", base); heat != 0.0 {
		t.Errorf("heat after reset = %v, want 0.0", heat)
	}
	if tracker.HasHot(base) {
		t.Error("expected no hot items after reset")
	}
}

func TestPulseFrame(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		millis int64
		frames int
		want   int
	}{
		{"frame zero", 0, 4, 0},
		{"one tick", 100, 4, 1},
		{"mid tick rounds down", 250, 4, 2},
		{"last frame", 399, 4, 3},
		{"wraps around", 400, 4, 0},
		{"single frame", 12345, 1, 0},
		{"zero frames", 500, 0, 0},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			got := PulseFrame(time.UnixMilli(test.millis), test.frames)
			if got != test.want {
				t.Errorf("PulseFrame(%dms, %d) = %d, want %d", test.millis, test.frames, got, test.want)
			}
		})
	}
}
