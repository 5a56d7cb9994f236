package artist

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ovaphlow/pitchfork/service-fanscore-go/internal/artist/entity"
)

var ErrInvalidArtist = errors.New("artist id is required")

// Store is implemented by repo.Repo and memstore.Store.
type Store interface {
	CreateArtist(ctx context.Context, a entity.Artist) error
	GetArtist(ctx context.Context, id string) (*entity.Artist, error)
	ListArtists(ctx context.Context) ([]entity.Artist, error)
}

// Service manages tenants.
type Service struct {
	store Store
	Now   func() time.Time
}

func NewService(store Store) *Service {
	return &Service{store: store, Now: func() time.Time { return time.Now().UTC() }}
}

func (s *Service) List(ctx context.Context) ([]entity.Artist, error) {
	return s.store.ListArtists(ctx)
}

func (s *Service) Get(ctx context.Context, id string) (*entity.Artist, error) {
	return s.store.GetArtist(ctx, id)
}

// Create registers a tenant. The name defaults to the id.
func (s *Service) Create(ctx context.Context, in entity.Artist) (*entity.Artist, error) {
	in.ID = strings.TrimSpace(in.ID)
	if in.ID == "" {
		return nil, ErrInvalidArtist
	}
	if in.Name == "" {
		in.Name = in.ID
	}
	if in.CreatedAt.IsZero() {
		in.CreatedAt = s.Now()
	}
	if err := s.store.CreateArtist(ctx, in); err != nil {
		return nil, err
	}
	return s.store.GetArtist(ctx, in.ID)
}
