package application

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/healthcare-storefront/internal/domain/credential"
	"github.com/oksasatya/healthcare-storefront/internal/domain/entity"
	repo "github.com/oksasatya/healthcare-storefront/internal/domain/repository"
	"github.com/oksasatya/healthcare-storefront/internal/infrastructure/audit"
	"github.com/oksasatya/healthcare-storefront/internal/infrastructure/cache"
	"github.com/oksasatya/healthcare-storefront/internal/infrastructure/metrics"
)

// MigrationTask carries everything a worker needs to rewrite one credential.
// Secret is the plaintext that was just verified; it is never logged.
type MigrationTask struct {
	UserID       string
	Email        string
	Secret       string
	From         credential.Scheme
	ObservedHash string
}

// MigrationFailure is published on Migrator.Failures for every failed write.
type MigrationFailure struct {
	UserID string
	From   credential.Scheme
	Err    error
}

// Migrator rewrites non-canonical credentials on a bounded worker queue.
// Failed writes are logged and dropped; the next successful login against
// the still-outdated record schedules another attempt.
type Migrator struct {
	repo    repo.UserRepository
	users   cache.UserCache
	logger  *logrus.Logger
	workers int
	timeout time.Duration

	Audit   audit.Sink
	Metrics *metrics.Metrics

	queue    chan MigrationTask
	failures chan MigrationFailure

	mu      sync.RWMutex
	started bool
	closed  bool
	wg      sync.WaitGroup
}

func NewMigrator(r repo.UserRepository, users cache.UserCache, logger *logrus.Logger, workers, queueSize int, timeout time.Duration) *Migrator {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Migrator{
		repo:     r,
		users:    users,
		logger:   logger,
		workers:  workers,
		timeout:  timeout,
		queue:    make(chan MigrationTask, queueSize),
		failures: make(chan MigrationFailure, queueSize),
	}
}

// Start launches the workers. Writes run under ctx, each bounded by the
// configured timeout.
func (m *Migrator) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started || m.closed {
		return
	}
	m.started = true
	for i := 0; i < m.workers; i++ {
		m.wg.Add(1)
		go m.work(ctx)
	}
}

// Schedule enqueues task without blocking. It returns false when the queue
// is full or the migrator has been shut down.
func (m *Migrator) Schedule(task MigrationTask) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return false
	}
	select {
	case m.queue <- task:
		m.Metrics.MigrationQueued(1)
		return true
	default:
		m.Metrics.Migration(task.From.String(), "dropped")
		if m.logger != nil {
			m.logger.WithField("user_id", task.UserID).Warn("migration queue full, skipped")
		}
		return false
	}
}

// Failures reports failed rewrites. Sends never block; when nobody reads,
// failures beyond the buffer are only logged.
func (m *Migrator) Failures() <-chan MigrationFailure {
	return m.failures
}

// Shutdown stops accepting tasks and waits for queued ones to finish.
func (m *Migrator) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if !m.closed {
		m.closed = true
		close(m.queue)
	}
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Migrator) work(ctx context.Context) {
	defer m.wg.Done()
	for task := range m.queue {
		m.Metrics.MigrationQueued(-1)
		m.Migrate(ctx, task)
	}
}

// Migrate performs one rewrite synchronously: fresh salt, canonical digest,
// full replacement of hash, salt and scheme marker guarded by the hash
// observed at login, then cache eviction.
func (m *Migrator) Migrate(ctx context.Context, task MigrationTask) error {
	log := m.entry(task)

	hash, salt, err := credential.HashCanonical(task.Secret)
	if err != nil {
		m.fail(task, err, log)
		return err
	}

	wctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	err = m.repo.UpdateCredential(wctx, task.UserID, entity.CredentialUpdate{
		Hash:         hash,
		Salt:         salt,
		Scheme:       credential.Canonical.String(),
		ExpectedHash: task.ObservedHash,
	})
	switch {
	case err == nil:
		m.invalidate(task.Email)
		m.Metrics.Migration(task.From.String(), "ok")
		m.record(task, "success")
		if log != nil {
			log.Info("credential migrated")
		}
		return nil
	case errors.Is(err, repo.ErrCredentialChanged):
		// a newer credential is already stored; the cached copy is stale either way
		m.invalidate(task.Email)
		m.Metrics.Migration(task.From.String(), "stale")
		if log != nil {
			log.Info("credential changed since login, migration skipped")
		}
		return nil
	default:
		m.fail(task, err, log)
		return err
	}
}

func (m *Migrator) invalidate(email string) {
	if m.users != nil {
		ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
		defer cancel()
		m.users.Invalidate(ctx, email)
	}
}

func (m *Migrator) fail(task MigrationTask, err error, log *logrus.Entry) {
	m.Metrics.Migration(task.From.String(), "failed")
	m.record(task, "failed")
	if log != nil {
		log.WithError(err).Error("credential migration failed")
	}
	select {
	case m.failures <- MigrationFailure{UserID: task.UserID, From: task.From, Err: err}:
	default:
	}
}

func (m *Migrator) record(task MigrationTask, outcome string) {
	if m.Audit == nil {
		return
	}
	m.Audit.Record(audit.Event{
		Type:    audit.EventMigration,
		Outcome: outcome,
		UserID:  task.UserID,
		Email:   task.Email,
		Scheme:  task.From.String(),
	})
}

func (m *Migrator) entry(task MigrationTask) *logrus.Entry {
	if m.logger == nil {
		return nil
	}
	return m.logger.WithFields(logrus.Fields{"user_id": task.UserID, "from": task.From.String()})
}
