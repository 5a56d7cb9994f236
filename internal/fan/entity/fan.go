package entity

import "time"

// Fan is the aggregate identity of one listener for one artist (tenant).
// StanScore always equals the clamped sum of the four components and Tier is
// derived from StanScore; both are only written by a recomputation.
type Fan struct {
	ID              string     `db:"id" json:"id"`
	ArtistID        string     `db:"artist_id" json:"artistId"`
	DisplayName     string     `db:"display_name" json:"displayName,omitempty"`
	FirstSeenAt     time.Time  `db:"first_seen_at" json:"firstSeenAt"`
	LastActiveAt    time.Time  `db:"last_active_at" json:"lastActiveAt"`
	Tier            Tier       `db:"tier" json:"tier,omitempty"`
	StanScore       int        `db:"stan_score" json:"stanScore"`
	PlatformScore   int        `db:"platform_score" json:"platformScore"`
	EngagementScore int        `db:"engagement_score" json:"engagementScore"`
	LongevityScore  int        `db:"longevity_score" json:"longevityScore"`
	RecencyScore    int        `db:"recency_score" json:"recencyScore"`
	ScoredAt        *time.Time `db:"scored_at" json:"scoredAt,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updatedAt"`
}

// Scored reports whether the fan has been through at least one recomputation.
func (f *Fan) Scored() bool { return f.Tier.Valid() }

// ApplyScore copies a breakdown onto the fan.
func (f *Fan) ApplyScore(b ScoreBreakdown, at time.Time) {
	f.PlatformScore = b.Platform
	f.EngagementScore = b.Engagement
	f.LongevityScore = b.Longevity
	f.RecencyScore = b.Recency
	f.StanScore = b.Total
	f.Tier = b.Tier
	f.ScoredAt = &at
}

// ScoreBreakdown is the output of one scoring pass.
type ScoreBreakdown struct {
	Platform   int  `json:"platform"`   // 0-30
	Engagement int  `json:"engagement"` // 0-40
	Longevity  int  `json:"longevity"`  // 0-20
	Recency    int  `json:"recency"`    // 0-10
	Total      int  `json:"total"`      // 0-100
	Tier       Tier `json:"tier"`
}
