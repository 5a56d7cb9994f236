package scoring

import (
	"fmt"
	"time"

	"github.com/ovaphlow/pitchfork/service-fanscore-go/internal/fan/entity"
)

// Transition is the decision taken for one recomputation.
type Transition struct {
	From entity.Tier
	To   entity.Tier
	Type entity.EventType
}

// Describe renders the human-readable event description.
func (t Transition) Describe() string {
	if t.Type == entity.EventTierDowngrade {
		return fmt.Sprintf("Downgraded from %s to %s", t.From, t.To)
	}
	return fmt.Sprintf("Upgraded from %s to %s", t.From, t.To)
}

// DecideTransition compares the tier before and after a recomputation. It
// returns false when no event is due: first computation (prev == nil) or
// unchanged tier. Reaching SUPERFAN is reported as BECAME_SUPERFAN instead
// of TIER_UPGRADE.
func DecideTransition(prev *entity.Tier, next entity.Tier) (Transition, bool) {
	if prev == nil || !prev.Valid() || *prev == next {
		return Transition{}, false
	}
	t := Transition{From: *prev, To: next}
	switch {
	case next > *prev && next == entity.TierSuperfan:
		t.Type = entity.EventBecameSuperfan
	case next > *prev:
		t.Type = entity.EventTierUpgrade
	default:
		t.Type = entity.EventTierDowngrade
	}
	return t, true
}

// TransitionEvent builds the log entry for a transition. The id is left to the
// caller's id generator.
func TransitionEvent(fan *entity.Fan, t Transition, at time.Time) entity.FanEvent {
	return entity.FanEvent{
		FanID:       fan.ID,
		ArtistID:    fan.ArtistID,
		EventType:   t.Type,
		Description: t.Describe(),
		OccurredAt:  at,
	}
}
