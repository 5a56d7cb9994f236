package scoring

import (
	"testing"

	"github.com/ovaphlow/pitchfork/service-fanscore-go/internal/fan/entity"
)

func tierPtr(t entity.Tier) *entity.Tier { return &t }

func TestDecideTransition(t *testing.T) {
	cases := []struct {
		name     string
		prev     *entity.Tier
		next     entity.Tier
		wantOK   bool
		wantType entity.EventType
		wantDesc string
	}{
		{name: "first computation", prev: nil, next: entity.TierDedicated},
		{name: "unchanged", prev: tierPtr(entity.TierEngaged), next: entity.TierEngaged},
		{
			name: "upgrade", prev: tierPtr(entity.TierCasual), next: entity.TierEngaged,
			wantOK: true, wantType: entity.EventTierUpgrade, wantDesc: "Upgraded from CASUAL to ENGAGED",
		},
		{
			name: "jump to superfan", prev: tierPtr(entity.TierEngaged), next: entity.TierSuperfan,
			wantOK: true, wantType: entity.EventBecameSuperfan, wantDesc: "Upgraded from ENGAGED to SUPERFAN",
		},
		{
			name: "downgrade", prev: tierPtr(entity.TierSuperfan), next: entity.TierDedicated,
			wantOK: true, wantType: entity.EventTierDowngrade, wantDesc: "Downgraded from SUPERFAN to DEDICATED",
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			tr, ok := DecideTransition(c.prev, c.next)
			if ok != c.wantOK {
				t.Fatalf("ok = %v, want %v", ok, c.wantOK)
			}
			if !ok {
				return
			}
			if tr.Type != c.wantType {
				t.Errorf("type = %s, want %s", tr.Type, c.wantType)
			}
			if tr.Describe() != c.wantDesc {
				t.Errorf("description = %q, want %q", tr.Describe(), c.wantDesc)
			}
		})
	}
}

func TestScoreJumpEmitsBecameSuperfan(t *testing.T) {
	prev := TierForScore(25)
	tr, ok := DecideTransition(&prev, TierForScore(80))
	if !ok || tr.Type != entity.EventBecameSuperfan {
		t.Fatalf("expected BECAME_SUPERFAN, got %+v (ok=%v)", tr, ok)
	}

	f := &entity.Fan{ID: "fan-1", ArtistID: "artist-1"}
	ev := TransitionEvent(f, tr, now)
	if ev.FanID != "fan-1" || ev.ArtistID != "artist-1" || !ev.OccurredAt.Equal(now) {
		t.Fatalf("unexpected event %+v", ev)
	}
}
