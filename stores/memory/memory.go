// Package memory provides mutex-guarded in-memory implementations of the
// store ports, used by tests. Uniqueness constraints behave like the
// Postgres store: collisions on create and save report duplicate errors.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/periziapp/perizia"
)

// UserStore is an in-memory perizia.UserStore.
type UserStore struct {
	mu    sync.RWMutex
	users map[string]*perizia.User
}

func NewUserStore() *UserStore {
	return &UserStore{users: make(map[string]*perizia.User)}
}

func (s *UserStore) GetByEmail(_ context.Context, email string) (*perizia.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, perizia.ErrUserNotFound
}

func (s *UserStore) GetByID(_ context.Context, id string) (*perizia.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, perizia.ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (s *UserStore) GetByGoogleID(_ context.Context, googleID string) (*perizia.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.GoogleID != "" && u.GoogleID == googleID {
			return cloneUser(u), nil
		}
	}
	return nil, perizia.ErrUserNotFound
}

func (s *UserStore) Create(_ context.Context, user *perizia.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == user.Email || u.Username == user.Username ||
			(user.GoogleID != "" && u.GoogleID == user.GoogleID) {
			return perizia.ErrDuplicateIdentity
		}
	}
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	s.users[user.ID] = cloneUser(user)
	return nil
}

func (s *UserStore) Save(_ context.Context, user *perizia.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; !ok {
		return perizia.ErrUserNotFound
	}
	for id, u := range s.users {
		if id == user.ID {
			continue
		}
		if u.Email == user.Email || u.Username == user.Username ||
			(user.GoogleID != "" && u.GoogleID == user.GoogleID) {
			return perizia.ErrDuplicateIdentity
		}
	}
	user.UpdatedAt = time.Now()
	s.users[user.ID] = cloneUser(user)
	return nil
}

func (s *UserStore) List(_ context.Context) ([]*perizia.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*perizia.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, cloneUser(u))
	}
	return out, nil
}

func (s *UserStore) ListByRole(_ context.Context, role perizia.Role) ([]*perizia.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*perizia.User
	for _, u := range s.users {
		if u.Role == role {
			out = append(out, cloneUser(u))
		}
	}
	return out, nil
}

// PeriziaStore is an in-memory perizia.PeriziaStore.
type PeriziaStore struct {
	mu      sync.RWMutex
	perizie map[string]*perizia.Perizia
}

func NewPeriziaStore() *PeriziaStore {
	return &PeriziaStore{perizie: make(map[string]*perizia.Perizia)}
}

func (s *PeriziaStore) Create(_ context.Context, p *perizia.Perizia) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.perizie {
		if existing.Code == p.Code {
			return perizia.ErrDuplicateCode
		}
	}
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now
	s.perizie[p.ID] = clonePerizia(p)
	return nil
}

func (s *PeriziaStore) GetByID(_ context.Context, id string) (*perizia.Perizia, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.perizie[id]
	if !ok {
		return nil, perizia.ErrPeriziaNotFound
	}
	return clonePerizia(p), nil
}

func (s *PeriziaStore) GetByCode(_ context.Context, code string) (*perizia.Perizia, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.perizie {
		if p.Code == code {
			return clonePerizia(p), nil
		}
	}
	return nil, perizia.ErrPeriziaNotFound
}

func (s *PeriziaStore) ListByOperator(_ context.Context, operatorID string) ([]*perizia.Perizia, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []*perizia.Perizia{}
	for _, p := range s.perizie {
		if p.OperatorID == operatorID {
			out = append(out, clonePerizia(p))
		}
	}
	return out, nil
}

func (s *PeriziaStore) ListAll(_ context.Context) ([]*perizia.Perizia, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*perizia.Perizia, 0, len(s.perizie))
	for _, p := range s.perizie {
		out = append(out, clonePerizia(p))
	}
	return out, nil
}

func (s *PeriziaStore) CountByOperatorStatus(_ context.Context, operatorID string, status perizia.PeriziaStatus) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, p := range s.perizie {
		if p.OperatorID == operatorID && p.Status == status {
			n++
		}
	}
	return n, nil
}

func (s *PeriziaStore) Save(_ context.Context, p *perizia.Perizia) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.perizie[p.ID]; !ok {
		return perizia.ErrPeriziaNotFound
	}
	for id, existing := range s.perizie {
		if id != p.ID && existing.Code == p.Code {
			return perizia.ErrDuplicateCode
		}
	}
	p.UpdatedAt = time.Now()
	s.perizie[p.ID] = clonePerizia(p)
	return nil
}

func (s *PeriziaStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.perizie[id]; !ok {
		return perizia.ErrPeriziaNotFound
	}
	delete(s.perizie, id)
	return nil
}

func cloneUser(u *perizia.User) *perizia.User {
	out := *u
	if u.LastSeen != nil {
		t := *u.LastSeen
		out.LastSeen = &t
	}
	return &out
}

func clonePerizia(p *perizia.Perizia) *perizia.Perizia {
	out := *p
	out.Photos = append([]perizia.Photo(nil), p.Photos...)
	if p.Review != nil {
		r := *p.Review
		out.Review = &r
	}
	if p.ReviewedAt != nil {
		t := *p.ReviewedAt
		out.ReviewedAt = &t
	}
	return &out
}
