package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/villa-armonia/lot-reservation/internal/model"
	"github.com/villa-armonia/lot-reservation/internal/repository"
)

type inTxKey struct{}

// memStore is an in-memory Store.  WithTx holds one mutex for the whole
// transaction, which serializes transactions the way the lot row lock
// does, and restores a snapshot when fn fails.
type memStore struct {
	mu       sync.Mutex
	lots     map[string]model.Lot
	requests map[string]model.LotRequest
	users    map[uint64]model.User
	nextUser uint64
	faults   map[string]error
	txCount  int
}

func newMemStore() *memStore {
	return &memStore{
		lots:     map[string]model.Lot{},
		requests: map[string]model.LotRequest{},
		users:    map[uint64]model.User{},
		faults:   map[string]error{},
	}
}

type memSnapshot struct {
	lots     map[string]model.Lot
	requests map[string]model.LotRequest
	users    map[uint64]model.User
	nextUser uint64
}

func (s *memStore) snapshot() memSnapshot {
	snap := memSnapshot{
		lots:     make(map[string]model.Lot, len(s.lots)),
		requests: make(map[string]model.LotRequest, len(s.requests)),
		users:    make(map[uint64]model.User, len(s.users)),
		nextUser: s.nextUser,
	}
	for k, v := range s.lots {
		snap.lots[k] = v
	}
	for k, v := range s.requests {
		snap.requests[k] = v
	}
	for k, v := range s.users {
		snap.users[k] = v
	}
	return snap
}

func (s *memStore) restore(snap memSnapshot) {
	s.lots, s.requests, s.users, s.nextUser = snap.lots, snap.requests, snap.users, snap.nextUser
}

func inTx(ctx context.Context) bool { return ctx.Value(inTxKey{}) != nil }

// guard locks the store for calls made outside a transaction.
func (s *memStore) guard(ctx context.Context) func() {
	if inTx(ctx) {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *memStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTx(ctx) {
		return fn(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txCount++
	snap := s.snapshot()
	if err := fn(context.WithValue(ctx, inTxKey{}, true)); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func (s *memStore) LockLot(ctx context.Context, id string) (model.Lot, error) {
	if !inTx(ctx) {
		return model.Lot{}, repository.ErrNoTx
	}
	if err := s.faults["LockLot"]; err != nil {
		return model.Lot{}, err
	}
	l, ok := s.lots[id]
	if !ok {
		return model.Lot{}, repository.ErrNotFound
	}
	return l, nil
}

func (s *memStore) SetLotStatus(ctx context.Context, id string, status model.LotStatus, ownerID *uint64, now time.Time) error {
	defer s.guard(ctx)()
	if err := s.faults["SetLotStatus"]; err != nil {
		return err
	}
	l, ok := s.lots[id]
	if !ok {
		return repository.ErrNotFound
	}
	l.Status = status
	l.OwnerID = ownerID
	l.UpdatedAt = now
	s.lots[id] = l
	return nil
}

func (s *memStore) GetRequest(ctx context.Context, id string) (model.LotRequest, error) {
	defer s.guard(ctx)()
	r, ok := s.requests[id]
	if !ok {
		return model.LotRequest{}, repository.ErrNotFound
	}
	return r, nil
}

func (s *memStore) LockRequest(ctx context.Context, id string) (model.LotRequest, error) {
	if !inTx(ctx) {
		return model.LotRequest{}, repository.ErrNoTx
	}
	return s.GetRequest(ctx, id)
}

func (s *memStore) InsertRequest(ctx context.Context, req model.LotRequest) error {
	defer s.guard(ctx)()
	if err := s.faults["InsertRequest"]; err != nil {
		return err
	}
	if _, ok := s.requests[req.ID]; ok {
		return repository.ErrDuplicate
	}
	s.requests[req.ID] = req
	return nil
}

func (s *memStore) UpdateRequest(ctx context.Context, req model.LotRequest) error {
	defer s.guard(ctx)()
	if err := s.faults["UpdateRequest"]; err != nil {
		return err
	}
	if _, ok := s.requests[req.ID]; !ok {
		return repository.ErrNotFound
	}
	s.requests[req.ID] = req
	return nil
}

func (s *memStore) HasOpenRequest(ctx context.Context, lotID string, userID uint64) (bool, error) {
	defer s.guard(ctx)()
	for _, r := range s.requests {
		if r.LotID == lotID && r.UserID == userID && r.Status.Open() {
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) ListOpenRequests(ctx context.Context, lotID string) ([]model.LotRequest, error) {
	defer s.guard(ctx)()
	if err := s.faults["ListOpenRequests"]; err != nil {
		return nil, err
	}
	out := []model.LotRequest{}
	for _, r := range s.requests {
		if r.LotID == lotID && r.Status.Open() {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *memStore) GetUserBySubject(ctx context.Context, subject string) (model.User, error) {
	defer s.guard(ctx)()
	return s.userBySubject(subject)
}

func (s *memStore) userBySubject(subject string) (model.User, error) {
	for _, u := range s.users {
		if u.ExternalSubject == subject {
			return u, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (s *memStore) GetUserByID(ctx context.Context, id uint64) (model.User, error) {
	defer s.guard(ctx)()
	u, ok := s.users[id]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return u, nil
}

func (s *memStore) EnsureUser(ctx context.Context, u model.User) (model.User, error) {
	defer s.guard(ctx)()
	if existing, err := s.userBySubject(u.ExternalSubject); err == nil {
		return existing, nil
	}
	s.nextUser++
	u.ID = s.nextUser
	s.users[u.ID] = u
	return u, nil
}

func (s *memStore) UpsertProfile(ctx context.Context, u model.User) (model.User, error) {
	defer s.guard(ctx)()
	if err := s.faults["UpsertProfile"]; err != nil {
		return model.User{}, err
	}
	if existing, err := s.userBySubject(u.ExternalSubject); err == nil {
		u.ID = existing.ID
		u.Role = existing.Role
		u.CreatedAt = existing.CreatedAt
		s.users[u.ID] = u
		return u, nil
	}
	s.nextUser++
	u.ID = s.nextUser
	s.users[u.ID] = u
	return u, nil
}

// test helpers; callers must not hold a transaction

func (s *memStore) addLot(id string, status model.LotStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lots[id] = model.Lot{ID: id, PriceCents: 4_500_000, SizeM2: 240, Status: status, Amenities: model.Amenities{}}
}

func (s *memStore) addUser(subject string, role model.Role) model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextUser++
	u := model.User{ID: s.nextUser, ExternalSubject: subject, Email: subject + "@example.com", Role: role}
	s.users[u.ID] = u
	return u
}

func (s *memStore) putRequest(r model.LotRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[r.ID] = r
}

func (s *memStore) setFault(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[method] = err
}

func (s *memStore) lot(id string) model.Lot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lots[id]
}

func (s *memStore) request(id string) model.LotRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[id]
}

func (s *memStore) requestsFor(lotID string) []model.LotRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.LotRequest
	for _, r := range s.requests {
		if r.LotID == lotID {
			out = append(out, r)
		}
	}
	return out
}

func (s *memStore) userCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}
