package entity

import (
	"fmt"
	"time"
)

// EventType classifies an entry of the fan event log.
type EventType string

const (
	EventTierUpgrade    EventType = "TIER_UPGRADE"
	EventTierDowngrade  EventType = "TIER_DOWNGRADE"
	EventBecameSuperfan EventType = "BECAME_SUPERFAN"
	EventFirstStream    EventType = "FIRST_STREAM"
	EventFirstFollow    EventType = "FIRST_FOLLOW"
	EventEmailSubscribe EventType = "EMAIL_SUBSCRIBE"
)

const eventMilestonePrefix = "MILESTONE_"

// MilestoneEvent builds a MILESTONE_* event type, e.g. MILESTONE_STREAMS_100.
func MilestoneEvent(kind string, n int64) EventType {
	return EventType(fmt.Sprintf("%s%s_%d", eventMilestonePrefix, kind, n))
}

// FanEvent is an immutable, append-only log entry.
type FanEvent struct {
	ID          string    `db:"id" json:"id"`
	FanID       string    `db:"fan_id" json:"fanId"`
	ArtistID    string    `db:"artist_id" json:"artistId"`
	EventType   EventType `db:"event_type" json:"eventType"`
	Platform    *Platform `db:"platform" json:"platform,omitempty"`
	Description string    `db:"description" json:"description"`
	OccurredAt  time.Time `db:"occurred_at" json:"occurredAt"`
}
