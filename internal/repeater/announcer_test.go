package repeater

import (
	"testing"
	"time"

	"github.com/beaconmdns/beacon/internal/clock"
	"github.com/beaconmdns/beacon/internal/protocol"
	"github.com/beaconmdns/beacon/internal/records"
)

func TestAnnouncer_SendsThreeWithDoublingDelay(t *testing.T) {
	fake := clock.NewFake(time.Unix(0, 0))
	a := NewAnnouncer(fake)

	var sends int
	var complete bool
	a.StartAnnouncing(records.AnnouncementInfo{ServiceID: 1}, AnnouncerCallbacks{
		OnAnnounce: func(records.AnnouncementInfo) { sends++ },
		OnComplete: func(records.AnnouncementInfo) { complete = true },
	})

	fake.Advance(0) // first send is immediate
	if sends != 1 {
		t.Fatalf("sends after immediate trigger = %d, want 1", sends)
	}

	fake.Advance(protocol.AnnounceInitialDelay) // 1s
	if sends != 2 {
		t.Fatalf("sends after 1s = %d, want 2", sends)
	}

	fake.Advance(protocol.AnnounceInitialDelay * protocol.AnnounceDelayMultiplier) // 2s
	if sends != 3 {
		t.Fatalf("sends after 2s more = %d, want 3", sends)
	}
	if !complete {
		t.Error("OnComplete was not called after the third send")
	}
}

func TestAnnouncer_ExitDelaysBeforeSingleSend(t *testing.T) {
	fake := clock.NewFake(time.Unix(0, 0))
	a := NewAnnouncer(fake)

	var sends int
	a.StartExiting(records.AnnouncementInfo{ServiceID: 2}, AnnouncerCallbacks{
		OnAnnounce: func(records.AnnouncementInfo) { sends++ },
	})

	fake.Advance(protocol.ExitAnnounceDelay - time.Millisecond)
	if sends != 0 {
		t.Fatalf("sends before the exit delay elapses = %d, want 0", sends)
	}

	fake.Advance(time.Millisecond)
	if sends != 1 {
		t.Fatalf("sends after the exit delay elapses = %d, want 1", sends)
	}
}
