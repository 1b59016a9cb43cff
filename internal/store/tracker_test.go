package store

import (
	"testing"
	"time"
)

func TestTrack_ContentWrite(t *testing.T) {
	now := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	in := Changes{"name": "Ana", "dirty": false, "updated_at": now.Add(-time.Hour)}

	out := track(in, now, false)

	if out["dirty"] != true {
		t.Errorf("dirty = %v, want true", out["dirty"])
	}
	if out["updated_at"] != now {
		t.Errorf("updated_at = %v, want %v", out["updated_at"], now)
	}
	if in["dirty"] != false {
		t.Error("caller's change set was modified")
	}
}

func TestTrack_SyncedWritePassesThrough(t *testing.T) {
	now := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	remoteAt := now.Add(-time.Hour)

	out := track(Changes{"name": "Ana", "updated_at": remoteAt}.MarkSynced(), now, false)

	if out["dirty"] != false {
		t.Errorf("dirty = %v, want false", out["dirty"])
	}
	if out["updated_at"] != remoteAt {
		t.Errorf("updated_at = %v, want %v", out["updated_at"], remoteAt)
	}
}

func TestTrack_SyncedUpdateWithoutTimestamp(t *testing.T) {
	now := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)

	out := track(Changes{}.MarkSynced(), now, false)

	if _, ok := out["updated_at"]; ok {
		t.Error("a clear-dirty write must not stamp updated_at")
	}
	if len(out) != 1 {
		t.Errorf("unexpected columns: %v", out)
	}
}

func TestTrack_SyncedCreateGetsTimestamp(t *testing.T) {
	now := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)

	out := track(Changes{"name": "Ana"}.MarkSynced(), now, true)

	if out["updated_at"] != now || out["dirty"] != false {
		t.Errorf("unexpected create change set: %v", out)
	}
}

func TestFormatTime_Canonical(t *testing.T) {
	loc := time.FixedZone("CST", -6*60*60)
	in := time.Date(2025, time.March, 1, 3, 4, 5, 678901234, loc)

	got := formatTime(in)

	if got != "2025-03-01T09:04:05.678Z" {
		t.Errorf("formatTime = %q", got)
	}
	back, err := parseTime(got)
	if err != nil || !back.Equal(in.Truncate(time.Millisecond)) {
		t.Errorf("round trip = %v, %v", back, err)
	}
}

func TestParseTime_LegacyLayouts(t *testing.T) {
	for _, s := range []string{"2024-01-10", "2024-01-10 08:00:00", "2024-01-10T08:00:00Z", "2024-01-10T02:00:00-06:00"} {
		if _, err := parseTime(s); err != nil {
			t.Errorf("parseTime(%q): %v", s, err)
		}
	}
	if _, err := parseTime("yesterday"); err == nil {
		t.Error("expected error for malformed timestamp")
	}
}
