package repeater

import (
	"testing"
	"time"

	"github.com/beaconmdns/beacon/internal/clock"
)

func TestRepeater_SendsExactCountWithFixedDelay(t *testing.T) {
	fake := clock.NewFake(time.Unix(0, 0))
	r := New[string](fake)

	var sentAt []int
	var finished bool

	r.StartSending(1, "hello", 3, func(int) time.Duration { return 100 * time.Millisecond }, 0, Callbacks[string]{
		OnSent:     func(index int, _ string) { sentAt = append(sentAt, index) },
		OnFinished: func(string) { finished = true },
	})

	fake.Advance(0) // fire the zero-delay initial send
	fake.Advance(100 * time.Millisecond)
	fake.Advance(100 * time.Millisecond)

	if len(sentAt) != 3 {
		t.Fatalf("got %d sends, want 3: %v", len(sentAt), sentAt)
	}
	for i, idx := range sentAt {
		if idx != i {
			t.Errorf("send[%d] index = %d, want %d", i, idx, i)
		}
	}
	if !finished {
		t.Error("OnFinished was not called after the last send")
	}
}

func TestRepeater_StopPreventsFurtherSends(t *testing.T) {
	fake := clock.NewFake(time.Unix(0, 0))
	r := New[string](fake)

	count := 0
	r.StartSending(1, "x", 3, func(int) time.Duration { return 50 * time.Millisecond }, 0, Callbacks[string]{
		OnSent: func(int, string) { count++ },
	})

	fake.Advance(0)
	if ok := r.Stop(1); !ok {
		t.Error("Stop() = false for an in-flight sequence, want true")
	}
	fake.Advance(time.Second)

	if count != 1 {
		t.Errorf("sends after Stop = %d, want 1 (only the initial send)", count)
	}
	if r.Stop(1) {
		t.Error("Stop() on an already-stopped id = true, want false")
	}
}

func TestRepeater_StartSendingReplacesExistingSequence(t *testing.T) {
	fake := clock.NewFake(time.Unix(0, 0))
	r := New[string](fake)

	var got []string
	r.StartSending(1, "first", 5, func(int) time.Duration { return time.Second }, 0, Callbacks[string]{
		OnSent: func(_ int, p string) { got = append(got, p) },
	})
	fake.Advance(0)

	r.StartSending(1, "second", 1, func(int) time.Duration { return time.Second }, 0, Callbacks[string]{
		OnSent: func(_ int, p string) { got = append(got, p) },
	})
	fake.Advance(0)
	fake.Advance(time.Hour)

	// "first" fires once (the send already in flight before the
	// replacement); its stopped successor timer must never fire again,
	// and "second"'s own single send must fire exactly once.
	wantCounts := map[string]int{"first": 1, "second": 1}
	gotCounts := map[string]int{}
	for _, p := range got {
		gotCounts[p]++
	}
	for name, want := range wantCounts {
		if gotCounts[name] != want {
			t.Errorf("%q fired %d times, want %d (got %v)", name, gotCounts[name], want, got)
		}
	}
}
