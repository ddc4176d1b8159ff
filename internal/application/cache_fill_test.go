package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/healthcare-storefront/internal/domain/credential"
	"github.com/oksasatya/healthcare-storefront/internal/domain/entity"
)

// pauseAfterRead holds the first FindByNormalizedEmail after it has read the
// record. read is closed once the record is in hand; closing release lets
// the lookup return.
func pauseAfterRead(r *fakeRepo) (read, release chan struct{}) {
	read = make(chan struct{})
	release = make(chan struct{})
	var once sync.Once
	r.mu.Lock()
	r.foundHook = func(*entity.User) {
		once.Do(func() {
			close(read)
			<-release
		})
	}
	r.mu.Unlock()
	return read, release
}

func TestLogin_InFlightFillLosesToPasswordChange(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(legacyUser("u-1", "jane@example.com", "old-secret1"))
	accounts := NewAccountService(f.repo, f.users, nil, nil, nil, nil)
	read, release := pauseAfterRead(f.repo)

	done := make(chan error, 1)
	go func() {
		_, err := f.svc.Login(ctx, LoginInput{Email: "jane@example.com", Password: "old-secret1"})
		done <- err
	}()

	<-read
	require.NoError(t, accounts.ChangePassword(ctx, "u-1", "old-secret1", "new-secret1"))
	close(release)
	require.NoError(t, <-done, "the login that read before the change still succeeds")

	_, ok := f.users.Get(ctx, "jane@example.com")
	assert.False(t, ok, "record read before the change must not be cached")

	_, err := f.svc.Login(ctx, LoginInput{Email: "jane@example.com", Password: "old-secret1"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = f.svc.Login(ctx, LoginInput{Email: "jane@example.com", Password: "new-secret1"})
	assert.NoError(t, err)
}

func TestLogin_InFlightFillLosesToMigration(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(legacyUser("u-1", "jane@example.com", "correcthorse1"))
	m := NewMigrator(f.repo, f.users, nil, 1, 1, time.Second)
	read, release := pauseAfterRead(f.repo)

	done := make(chan error, 1)
	go func() {
		_, err := f.svc.Login(ctx, LoginInput{Email: "jane@example.com", Password: "correcthorse1"})
		done <- err
	}()

	<-read
	require.NoError(t, m.Migrate(ctx, legacyTask("correcthorse1")))
	close(release)
	require.NoError(t, <-done)

	_, ok := f.users.Get(ctx, "jane@example.com")
	assert.False(t, ok, "legacy record must not be cached after migration")

	res, err := f.svc.Login(ctx, LoginInput{Email: "jane@example.com", Password: "correcthorse1"})
	require.NoError(t, err)
	assert.False(t, res.PasswordMigrated)

	cached, ok := f.users.Get(ctx, "jane@example.com")
	require.True(t, ok)
	assert.Equal(t, credential.Canonical.String(), cached.PasswordScheme)
}

func TestLogin_NonPositiveTimeoutsUseDefaults(t *testing.T) {
	f := newAuthFixture(canonicalUser(t, "u-3", "sam@example.com", "pw-123456"))
	f.svc.StoreTimeout = 0
	f.svc.SignerTimeout = -time.Second

	res, err := f.svc.Login(context.Background(), LoginInput{Email: "sam@example.com", Password: "pw-123456"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
}

func blockUntilDone(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestAccountService_StoreCallsAreBounded(t *testing.T) {
	t.Run("find", func(t *testing.T) {
		f := newAccountFixture(t, legacyUser("u-1", "jane@example.com", "old-secret1"))
		f.svc.StoreTimeout = 20 * time.Millisecond
		f.repo.findHook = blockUntilDone

		err := f.svc.InitPasswordReset(context.Background(), "jane@example.com", "", "")
		assert.ErrorIs(t, err, ErrDependency)
	})

	t.Run("update credential", func(t *testing.T) {
		f := newAccountFixture(t, legacyUser("u-1", "jane@example.com", "old-secret1"))
		f.svc.StoreTimeout = 20 * time.Millisecond
		f.repo.updateHook = blockUntilDone

		err := f.svc.ChangePassword(context.Background(), "u-1", "old-secret1", "new-secret1")
		assert.ErrorIs(t, err, ErrDependency)
		assert.Equal(t, credential.LegacyHash("old-secret1"), f.repo.get("u-1").PasswordHash)
	})

	t.Run("zero timeout falls back", func(t *testing.T) {
		f := newAccountFixture(t, legacyUser("u-1", "jane@example.com", "old-secret1"))
		f.svc.StoreTimeout = 0

		require.NoError(t, f.svc.ChangePassword(context.Background(), "u-1", "old-secret1", "new-secret1"))
	})
}
