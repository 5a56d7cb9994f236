package entity

import (
	"time"

	fanentity "github.com/ovaphlow/pitchfork/service-fanscore-go/internal/fan/entity"
)

// FanSnapshot freezes one fan's score and activity for one calendar day.
// (FanID, Date) is unique; a second write for the same day is a no-op.
type FanSnapshot struct {
	ID        string         `db:"id" json:"id"`
	FanID     string         `db:"fan_id" json:"fanId"`
	ArtistID  string         `db:"artist_id" json:"artistId"`
	Date      time.Time      `db:"snapshot_date" json:"date"`
	StanScore int            `db:"stan_score" json:"stanScore"`
	Tier      fanentity.Tier `db:"tier" json:"tier"`
	IsActive  bool           `db:"is_active" json:"isActive"`
	CreatedAt time.Time      `db:"created_at" json:"createdAt"`
}

// ArtistMetricsHistory is the per-tenant daily aggregate, upserted by (ArtistID, Date).
type ArtistMetricsHistory struct {
	ArtistID             string    `db:"artist_id" json:"artistId"`
	Date                 time.Time `db:"snapshot_date" json:"date"`
	TotalFans            int       `db:"total_fans" json:"totalFans"`
	CasualCount          int       `db:"casual_count" json:"casualCount"`
	EngagedCount         int       `db:"engaged_count" json:"engagedCount"`
	DedicatedCount       int       `db:"dedicated_count" json:"dedicatedCount"`
	SuperfanCount        int       `db:"superfan_count" json:"superfanCount"`
	HoldRate             float64   `db:"hold_rate" json:"holdRate"`
	DepthVelocity        float64   `db:"depth_velocity" json:"depthVelocity"`
	PlatformIndependence float64   `db:"platform_independence" json:"platformIndependence"`
	ChurnRate            float64   `db:"churn_rate" json:"churnRate"`
	SCR                  float64   `db:"scr" json:"scr"`
	AvgStanScore         float64   `db:"avg_stan_score" json:"avgStanScore"`
	UpdatedAt            time.Time `db:"updated_at" json:"updatedAt"`
}

// DateOf truncates t to its UTC calendar day.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
