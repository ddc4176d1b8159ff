package application

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oksasatya/healthcare-storefront/internal/domain/entity"
	repo "github.com/oksasatya/healthcare-storefront/internal/domain/repository"
	"github.com/oksasatya/healthcare-storefront/internal/infrastructure/audit"
	"github.com/oksasatya/healthcare-storefront/pkg/helpers"
)

type fakeRepo struct {
	mu          sync.Mutex
	users       map[string]*entity.User // by id
	findCalls   int
	updateCalls int

	findErr   error
	findHook  func(ctx context.Context) error
	// foundHook sees the record FindByNormalizedEmail read, before it returns.
	foundHook func(u *entity.User)
	updateErr error
	// updateHook runs before an UpdateCredential is applied.
	updateHook func(ctx context.Context) error
}

func newFakeRepo(users ...*entity.User) *fakeRepo {
	r := &fakeRepo{users: map[string]*entity.User{}}
	for _, u := range users {
		r.users[u.ID] = u.Clone()
	}
	return r
}

func (r *fakeRepo) Create(_ context.Context, u *entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Email == u.Email {
			return repo.ErrEmailTaken
		}
	}
	u.ID = uuid.NewString()
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	r.users[u.ID] = u.Clone()
	return nil
}

func (r *fakeRepo) GetByID(_ context.Context, id string) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok || u.Status == entity.StatusDeleted {
		return nil, repo.ErrNotFound
	}
	return u.Clone(), nil
}

func (r *fakeRepo) FindByNormalizedEmail(ctx context.Context, email string) (*entity.User, error) {
	r.mu.Lock()
	r.findCalls++
	hook, found, findErr := r.findHook, r.foundHook, r.findErr
	r.mu.Unlock()
	if hook != nil {
		if err := hook(ctx); err != nil {
			return nil, err
		}
	}
	if findErr != nil {
		return nil, findErr
	}
	r.mu.Lock()
	var out *entity.User
	for _, u := range r.users {
		if u.Email == email && u.Status != entity.StatusDeleted {
			out = u.Clone()
			break
		}
	}
	r.mu.Unlock()
	if out == nil {
		return nil, repo.ErrNotFound
	}
	if found != nil {
		found(out.Clone())
	}
	return out, nil
}

func (r *fakeRepo) UpdateCredential(ctx context.Context, userID string, c entity.CredentialUpdate) error {
	r.mu.Lock()
	r.updateCalls++
	hook, updateErr := r.updateHook, r.updateErr
	r.mu.Unlock()
	if hook != nil {
		if err := hook(ctx); err != nil {
			return err
		}
	}
	if updateErr != nil {
		return updateErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok || u.Status == entity.StatusDeleted {
		if c.ExpectedHash != "" {
			return repo.ErrCredentialChanged
		}
		return repo.ErrNotFound
	}
	if c.ExpectedHash != "" && u.PasswordHash != c.ExpectedHash {
		return repo.ErrCredentialChanged
	}
	u.PasswordHash = c.Hash
	u.PasswordSalt = c.Salt
	u.PasswordScheme = c.Scheme
	u.UpdatedAt = time.Now()
	return nil
}

func (r *fakeRepo) UpdateProfile(_ context.Context, u *entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.users[u.ID]
	if !ok {
		return repo.ErrNotFound
	}
	stored.FirstName = u.FirstName
	stored.LastName = u.LastName
	stored.UpdatedAt = time.Now()
	u.UpdatedAt = stored.UpdatedAt
	return nil
}

func (r *fakeRepo) get(id string) *entity.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.users[id].Clone()
}

func (r *fakeRepo) counts() (find, update int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.findCalls, r.updateCalls
}

type fakeSigner struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (s *fakeSigner) Sign(ctx context.Context, claims helpers.Claims, ttl time.Duration) (string, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return "", time.Time{}, s.err
	}
	if ttl == 0 {
		ttl = 7 * 24 * time.Hour
	}
	return "token-" + claims.UserID + "-" + uuid.NewString(), time.Now().Add(ttl), nil
}

func (s *fakeSigner) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type recordingScheduler struct {
	mu    sync.Mutex
	tasks []MigrationTask
	full  bool
}

func (s *recordingScheduler) Schedule(task MigrationTask) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.full {
		return false
	}
	s.tasks = append(s.tasks, task)
	return true
}

type recordingSink struct {
	mu     sync.Mutex
	events []audit.Event
}

func (s *recordingSink) Record(ev audit.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *recordingSink) all() []audit.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]audit.Event(nil), s.events...)
}

type recordingPublisher struct {
	mu   sync.Mutex
	jobs []any
	err  error
}

func (p *recordingPublisher) PublishJSON(_ context.Context, body any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.jobs = append(p.jobs, body)
	return nil
}

var errStoreDown = errors.New("store unreachable")
