// Package memstore keeps every store of the service in process memory. Rows
// live in append-only slices (arenas) and are addressed through key indexes,
// so a create-if-absent put is a single map lookup under the lock.
package memstore

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	artistentity "github.com/ovaphlow/pitchfork/service-fanscore-go/internal/artist/entity"
	fanentity "github.com/ovaphlow/pitchfork/service-fanscore-go/internal/fan/entity"
	snapentity "github.com/ovaphlow/pitchfork/service-fanscore-go/internal/snapshot/entity"
	tokenentity "github.com/ovaphlow/pitchfork/service-fanscore-go/internal/verification/entity"
)

type metricKey struct {
	fanID    string
	platform fanentity.Platform
}

type dayKey struct {
	id   string
	date string
}

func dayOf(id string, t time.Time) dayKey {
	return dayKey{id: id, date: snapentity.DateOf(t).Format(time.DateOnly)}
}

type Store struct {
	mu sync.RWMutex

	artists   []artistentity.Artist
	artistIdx map[string]int

	fans   []fanentity.Fan
	fanIdx map[string]int

	metrics   []fanentity.PlatformMetric
	metricIdx map[metricKey]int

	events []fanentity.FanEvent

	snapshots []snapentity.FanSnapshot
	snapIdx   map[dayKey]int

	history []snapentity.ArtistMetricsHistory
	histIdx map[dayKey]int

	tokens   []tokenentity.TokenRecord
	tokenIdx map[string]int
}

func New() *Store {
	return &Store{
		artistIdx: make(map[string]int),
		fanIdx:    make(map[string]int),
		metricIdx: make(map[metricKey]int),
		snapIdx:   make(map[dayKey]int),
		histIdx:   make(map[dayKey]int),
		tokenIdx:  make(map[string]int),
	}
}

// artists

func (s *Store) CreateArtist(_ context.Context, a artistentity.Artist) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.artistIdx[a.ID]; ok {
		s.artists[i].Name = a.Name
		return nil
	}
	s.addArtist(a)
	return nil
}

func (s *Store) addArtist(a artistentity.Artist) {
	s.artistIdx[a.ID] = len(s.artists)
	s.artists = append(s.artists, a)
}

func (s *Store) GetArtist(_ context.Context, id string) (*artistentity.Artist, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.artistIdx[id]
	if !ok {
		return nil, artistentity.ErrArtistNotFound
	}
	a := s.artists[i]
	return &a, nil
}

func (s *Store) ListArtists(_ context.Context) ([]artistentity.Artist, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := slices.Clone(s.artists)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ListArtistIDs(ctx context.Context) ([]string, error) {
	as, _ := s.ListArtists(ctx)
	ids := make([]string, len(as))
	for i, a := range as {
		ids[i] = a.ID
	}
	return ids, nil
}

// fans

func (s *Store) GetFan(_ context.Context, fanID string) (*fanentity.Fan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.fanIdx[fanID]
	if !ok {
		return nil, fanentity.ErrFanNotFound
	}
	f := s.fans[i]
	return &f, nil
}

// SaveFan also registers the fan's artist, as the Postgres repo does.
func (s *Store) SaveFan(_ context.Context, f *fanentity.Fan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.artistIdx[f.ArtistID]; !ok {
		s.addArtist(artistentity.Artist{ID: f.ArtistID, CreatedAt: f.CreatedAt})
	}
	if i, ok := s.fanIdx[f.ID]; ok {
		created := s.fans[i].CreatedAt
		s.fans[i] = *f
		s.fans[i].CreatedAt = created
		return nil
	}
	s.fanIdx[f.ID] = len(s.fans)
	s.fans = append(s.fans, *f)
	return nil
}

func (s *Store) ListFansByArtist(_ context.Context, artistID string) ([]fanentity.Fan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]fanentity.Fan, 0)
	for _, f := range s.fans {
		if f.ArtistID == artistID {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// platform metrics

func (s *Store) ListMetrics(_ context.Context, fanID string) ([]fanentity.PlatformMetric, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]fanentity.PlatformMetric, 0)
	for _, m := range s.metrics {
		if m.FanID == fanID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Platform < out[j].Platform })
	return out, nil
}

func (s *Store) ListMetricsByArtist(_ context.Context, artistID string) ([]fanentity.PlatformMetric, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]fanentity.PlatformMetric, 0)
	for _, m := range s.metrics {
		if m.ArtistID == artistID {
			out = append(out, m)
		}
	}
	return out, nil
}

// UpsertMetric replaces the counters of (fan, platform); firstSeenAt only
// moves back and lastActiveAt only moves forward.
func (s *Store) UpsertMetric(_ context.Context, m fanentity.PlatformMetric) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := metricKey{m.FanID, m.Platform}
	i, ok := s.metricIdx[k]
	if !ok {
		s.metricIdx[k] = len(s.metrics)
		s.metrics = append(s.metrics, m)
		return nil
	}
	old := s.metrics[i]
	if old.FirstSeenAt.Before(m.FirstSeenAt) {
		m.FirstSeenAt = old.FirstSeenAt
	}
	if old.LastActiveAt.After(m.LastActiveAt) {
		m.LastActiveAt = old.LastActiveAt
	}
	s.metrics[i] = m
	return nil
}

// events

func (s *Store) AppendEvent(_ context.Context, ev fanentity.FanEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *Store) ListEventsByFan(_ context.Context, fanID string, limit int) ([]fanentity.FanEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]fanentity.FanEvent, 0)
	for i := len(s.events) - 1; i >= 0; i-- {
		if s.events[i].FanID == fanID {
			out = append(out, s.events[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].OccurredAt.After(out[j].OccurredAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) FirstEventTimes(_ context.Context, artistID string, t fanentity.EventType) (map[string]time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]time.Time)
	for _, ev := range s.events {
		if ev.ArtistID != artistID || ev.EventType != t {
			continue
		}
		if at, ok := out[ev.FanID]; !ok || ev.OccurredAt.Before(at) {
			out[ev.FanID] = ev.OccurredAt
		}
	}
	return out, nil
}

func (s *Store) CountEventsSince(_ context.Context, artistID string, t fanentity.EventType, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, ev := range s.events {
		if ev.ArtistID == artistID && ev.EventType == t && !ev.OccurredAt.Before(since) {
			n++
		}
	}
	return n, nil
}

// snapshots

func (s *Store) PutFanSnapshot(_ context.Context, snap snapentity.FanSnapshot) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := dayOf(snap.FanID, snap.Date)
	if _, ok := s.snapIdx[k]; ok {
		return false, nil
	}
	s.snapIdx[k] = len(s.snapshots)
	s.snapshots = append(s.snapshots, snap)
	return true, nil
}

func (s *Store) ListFanSnapshots(_ context.Context, fanID string, from, to time.Time) ([]snapentity.FanSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]snapentity.FanSnapshot, 0)
	for _, snap := range s.snapshots {
		if snap.FanID == fanID && inRange(snap.Date, from, to) {
			out = append(out, snap)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (s *Store) UpsertArtistMetrics(_ context.Context, h snapentity.ArtistMetricsHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := dayOf(h.ArtistID, h.Date)
	if i, ok := s.histIdx[k]; ok {
		s.history[i] = h
		return nil
	}
	s.histIdx[k] = len(s.history)
	s.history = append(s.history, h)
	return nil
}

func (s *Store) LatestArtistMetrics(_ context.Context, artistID string, onOrBefore time.Time) (*snapentity.ArtistMetricsHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	limit := snapentity.DateOf(onOrBefore)
	var best *snapentity.ArtistMetricsHistory
	for i := range s.history {
		h := &s.history[i]
		if h.ArtistID != artistID || snapentity.DateOf(h.Date).After(limit) {
			continue
		}
		if best == nil || h.Date.After(best.Date) {
			best = h
		}
	}
	if best == nil {
		return nil, nil
	}
	out := *best
	return &out, nil
}

func (s *Store) ListArtistMetrics(_ context.Context, artistID string, from, to time.Time) ([]snapentity.ArtistMetricsHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]snapentity.ArtistMetricsHistory, 0)
	for _, h := range s.history {
		if h.ArtistID == artistID && inRange(h.Date, from, to) {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func inRange(d, from, to time.Time) bool {
	d = snapentity.DateOf(d)
	return !d.Before(snapentity.DateOf(from)) && !d.After(snapentity.DateOf(to))
}

// verification tokens

func (s *Store) SaveToken(_ context.Context, rec tokenentity.TokenRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokenIdx[rec.Token] = len(s.tokens)
	s.tokens = append(s.tokens, rec)
	return nil
}

func (s *Store) GetToken(_ context.Context, token string) (*tokenentity.TokenRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.tokenIdx[token]
	if !ok {
		return nil, tokenentity.ErrTokenNotFound
	}
	rec := s.tokens[i]
	return &rec, nil
}

func (s *Store) RecordUsage(_ context.Context, token string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.tokenIdx[token]
	if !ok {
		return tokenentity.ErrTokenNotFound
	}
	s.tokens[i].UsageCount++
	if last := s.tokens[i].LastUsedAt; last == nil || at.After(*last) {
		s.tokens[i].LastUsedAt = &at
	}
	return nil
}

func (s *Store) RevokeToken(_ context.Context, token string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.tokenIdx[token]
	if !ok {
		return tokenentity.ErrTokenNotFound
	}
	if s.tokens[i].RevokedAt == nil {
		s.tokens[i].RevokedAt = &at
	}
	return nil
}

// DeleteToken drops a registry row, as external housekeeping would.
func (s *Store) DeleteToken(_ context.Context, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokenIdx, token)
}

func (s *Store) ListTokensByFan(_ context.Context, fanID string) ([]tokenentity.TokenRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]tokenentity.TokenRecord, 0)
	for tok, i := range s.tokenIdx {
		if s.tokens[i].FanID == fanID {
			rec := s.tokens[i]
			rec.Token = tok
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IssuedAt.After(out[j].IssuedAt) })
	return out, nil
}
