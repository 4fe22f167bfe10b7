package auth

import (
	"errors"
	"sort"
	"sync"
)

var ErrNoRequest = errors.New("no pending access request for user")

type User struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type Repository interface {
	LoadAll() ([]User, error)
	Upsert(user User) error
	Remove(userID int64) error
}

// Service is the chat allowlist. Users outside it can file an access request
// that the admin approves.
type Service struct {
	mu      sync.RWMutex
	repo    Repository
	pending Repository
	admin   int64
	allowed map[int64]User
	waiting map[int64]User
}

// NewWithRepo preloads both repositories and merges the initial ids from the
// environment. Either repository may be nil.
func NewWithRepo(repo, pending Repository, initial []int64, admin int64) (*Service, error) {
	s := &Service{
		repo:    repo,
		pending: pending,
		admin:   admin,
		allowed: make(map[int64]User),
		waiting: make(map[int64]User),
	}
	if repo != nil {
		users, err := repo.LoadAll()
		if err != nil {
			return nil, err
		}
		for _, u := range users {
			s.allowed[u.ID] = u
		}
	}
	if pending != nil {
		users, err := pending.LoadAll()
		if err != nil {
			return nil, err
		}
		for _, u := range users {
			s.waiting[u.ID] = u
		}
	}
	for _, id := range initial {
		if _, ok := s.allowed[id]; !ok {
			s.allowed[id] = User{ID: id}
		}
	}
	return s, nil
}

// Open reports whether the allowlist is empty, in which case everyone is let in.
func (s *Service) Open() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.allowed) == 0 && s.admin == 0
}

func (s *Service) IsAllowed(userID int64) bool {
	if s.Open() || s.IsAdmin(userID) {
		return true
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.allowed[userID]
	return ok
}

func (s *Service) IsAdmin(userID int64) bool {
	return s.admin != 0 && userID == s.admin
}

func (s *Service) Admin() int64 { return s.admin }

func (s *Service) Upsert(user User) error {
	s.mu.Lock()
	s.allowed[user.ID] = user
	s.mu.Unlock()
	if s.repo != nil {
		return s.repo.Upsert(user)
	}
	return nil
}

func (s *Service) Remove(userID int64) error {
	s.mu.Lock()
	delete(s.allowed, userID)
	s.mu.Unlock()
	if s.repo != nil {
		return s.repo.Remove(userID)
	}
	return nil
}

func (s *Service) List() []User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedUsers(s.allowed)
}

// RequestAccess files a request for user. It returns false when the request
// was already pending.
func (s *Service) RequestAccess(user User) (bool, error) {
	s.mu.Lock()
	if _, ok := s.waiting[user.ID]; ok {
		s.mu.Unlock()
		return false, nil
	}
	s.waiting[user.ID] = user
	s.mu.Unlock()
	if s.pending != nil {
		if err := s.pending.Upsert(user); err != nil {
			return true, err
		}
	}
	return true, nil
}

// Approve moves a pending request into the allowlist.
func (s *Service) Approve(userID int64) (User, error) {
	s.mu.Lock()
	u, ok := s.waiting[userID]
	if !ok {
		s.mu.Unlock()
		return User{}, ErrNoRequest
	}
	delete(s.waiting, userID)
	s.mu.Unlock()
	if s.pending != nil {
		if err := s.pending.Remove(userID); err != nil {
			return u, err
		}
	}
	return u, s.Upsert(u)
}

func (s *Service) Deny(userID int64) error {
	s.mu.Lock()
	_, ok := s.waiting[userID]
	delete(s.waiting, userID)
	s.mu.Unlock()
	if !ok {
		return ErrNoRequest
	}
	if s.pending != nil {
		return s.pending.Remove(userID)
	}
	return nil
}

func (s *Service) Pending() []User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedUsers(s.waiting)
}

func sortedUsers(m map[int64]User) []User {
	out := make([]User, 0, len(m))
	for _, u := range m {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
