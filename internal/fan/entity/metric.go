package entity

import (
	"strings"
	"time"
)

// Platform identifies the service a metric row was collected from.
type Platform string

const (
	PlatformSpotify    Platform = "SPOTIFY"
	PlatformAppleMusic Platform = "APPLE_MUSIC"
	PlatformYouTube    Platform = "YOUTUBE"
	PlatformInstagram  Platform = "INSTAGRAM"
	PlatformTikTok     Platform = "TIKTOK"
	PlatformTwitter    Platform = "TWITTER"
	PlatformEmail      Platform = "EMAIL"
)

// NormalizePlatform upper-cases and trims a platform name.
func NormalizePlatform(s string) Platform {
	return Platform(strings.ToUpper(strings.TrimSpace(s)))
}

// PlatformMetric holds the engagement counters of one fan on one platform.
// There is at most one row per (fan, platform).
type PlatformMetric struct {
	FanID        string    `db:"fan_id" json:"fanId"`
	ArtistID     string    `db:"artist_id" json:"artistId"`
	Platform     Platform  `db:"platform" json:"platform"`
	Streams      int64     `db:"streams" json:"streams"`
	PlaylistAdds int64     `db:"playlist_adds" json:"playlistAdds"`
	Saves        int64     `db:"saves" json:"saves"`
	Follows      bool      `db:"follows" json:"follows"`
	Likes        int64     `db:"likes" json:"likes"`
	Comments     int64     `db:"comments" json:"comments"`
	Shares       int64     `db:"shares" json:"shares"`
	Subscribed   bool      `db:"subscribed" json:"subscribed"`
	VideoViews   int64     `db:"video_views" json:"videoViews"`
	WatchTimeSec int64     `db:"watch_time_sec" json:"watchTimeSec"`
	EmailOpens   int64     `db:"email_opens" json:"emailOpens"`
	EmailClicks  int64     `db:"email_clicks" json:"emailClicks"`
	FirstSeenAt  time.Time `db:"first_seen_at" json:"firstSeenAt"`
	LastActiveAt time.Time `db:"last_active_at" json:"lastActiveAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
}

// HasSignal reports whether the row shows any positive engagement.
func (m PlatformMetric) HasSignal() bool {
	return m.Follows || m.Subscribed || m.Streams > 0 || m.Likes > 0 || m.EmailOpens > 0
}

// WeightedEngagement is the per-row volume used for platform concentration.
func (m PlatformMetric) WeightedEngagement() float64 {
	return float64(m.Streams) +
		2*float64(m.Likes) +
		3*float64(m.Comments) +
		4*float64(m.Shares) +
		float64(m.VideoViews) +
		2*float64(m.EmailOpens)
}
