package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mmcdole/cinesync/internal/domain"
	"github.com/mmcdole/cinesync/internal/gateway"
	"github.com/mmcdole/cinesync/internal/notify"
	"github.com/mmcdole/cinesync/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errNetworkDown = &gateway.Error{Kind: gateway.KindNetwork, Err: domain.ErrServerOffline}

// fakeAccount records mutations; fail, when set, decides each call's error.
type fakeAccount struct {
	mu      sync.Mutex
	calls   []string
	profile *domain.User
	token   string
	fail    func(call string) error
	block   chan struct{} // when non-nil, mutations wait on it
	entered chan struct{}
}

func (f *fakeAccount) record(call string) error {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	fail, block, entered := f.fail, f.block, f.entered
	f.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if block != nil {
		<-block
	}
	if fail != nil {
		return fail(call)
	}
	return nil
}

func (f *fakeAccount) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeAccount) Login(_ context.Context, creds domain.Credentials) (string, error) {
	if err := f.record("login " + creds.Email); err != nil {
		return "", err
	}
	return f.token, nil
}

func (f *fakeAccount) GetProfile(context.Context) (*domain.User, error) {
	if err := f.record("profile"); err != nil {
		return nil, err
	}
	return f.profile.Clone(), nil
}

func (f *fakeAccount) UpdateProfile(_ context.Context, patch domain.ProfilePatch) (*domain.User, error) {
	if err := f.record("patch"); err != nil {
		return nil, err
	}
	u := f.profile.Clone()
	if patch.Name != nil {
		u.Name = *patch.Name
	}
	return u, nil
}

func (f *fakeAccount) AddToList(_ context.Context, kind domain.ListKind, _ int) error {
	return f.record("put " + string(kind))
}

func (f *fakeAccount) RemoveFromList(_ context.Context, kind domain.ListKind, _ int) error {
	return f.record("delete " + string(kind))
}

func (f *fakeAccount) PutRating(context.Context, int, int) error { return f.record("put rating") }
func (f *fakeAccount) DeleteRating(context.Context, int) error { return f.record("delete rating") }

type fixture struct {
	store   *Store
	client  *fakeAccount
	bus     *notify.Bus
	tokens  *store.Store
	logouts notify.LogoutRegistry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		client: &fakeAccount{
			token: "tok",
			profile: &domain.User{
				ID:             1,
				Name:           "Ada",
				Watchlist:      []int{10, 11},
				FavoriteMovies: []int{12},
				Ratings:        map[int]int{10: 7},
			},
		},
		bus:    notify.NewBus(time.Minute, nil),
		tokens: store.NewMemory(),
	}
	t.Cleanup(f.bus.Close)
	f.store = NewStore(f.client, f.tokens, f.bus, &f.logouts, nil)

	_, err := f.store.Login(context.Background(), "ada@example.com", "pw")
	require.NoError(t, err)
	f.client.calls = nil
	return f
}

func messageTexts(bus *notify.Bus) []string {
	var out []string
	for _, m := range bus.Messages() {
		out = append(out, m.Text)
	}
	return out
}

func TestLoginPersistsTokenAndLoadsProfile(t *testing.T) {
	f := newFixture(t)

	token, err := f.tokens.Token()
	require.NoError(t, err)
	assert.Equal(t, "tok", token)
	assert.True(t, f.store.IsLoggedIn())
	assert.Equal(t, "Ada", f.store.User().Name)
	assert.Same(t, f.store, f.logouts.Handler())
}

func TestToggleTwiceRestoresMembership(t *testing.T) {
	for _, kind := range []domain.ListKind{domain.ListWatchlist, domain.ListFavorites} {
		t.Run(string(kind), func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			before := f.store.InList(kind, 11)

			member, err := f.store.ToggleMembership(ctx, kind, 11)
			require.NoError(t, err)
			assert.Equal(t, !before, member)

			member, err = f.store.ToggleMembership(ctx, kind, 11)
			require.NoError(t, err)
			assert.Equal(t, before, member)

			assert.Equal(t, before, f.store.InList(kind, 11))
			assert.Len(t, f.client.Calls(), 2)
			assert.Empty(t, messageTexts(f.bus))
		})
	}
}

func TestToggleVerbFollowsNewState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.store.ToggleMembership(ctx, domain.ListWatchlist, 10)
	require.NoError(t, err)
	_, err = f.store.ToggleMembership(ctx, domain.ListFavorites, 99)
	require.NoError(t, err)

	assert.Equal(t, []string{"delete watchlist", "put favorites"}, f.client.Calls())
	assert.Equal(t, []int{11}, f.store.User().Watchlist)
	assert.Equal(t, []int{12, 99}, f.store.User().FavoriteMovies)
}

func TestFailedToggleRollsBack(t *testing.T) {
	f := newFixture(t)
	f.client.fail = func(string) error { return errNetworkDown }

	require.False(t, f.store.InList(domain.ListFavorites, 55))
	_, err := f.store.ToggleMembership(context.Background(), domain.ListFavorites, 55)

	require.Error(t, err)
	assert.True(t, gateway.IsNetwork(err))
	assert.False(t, f.store.InList(domain.ListFavorites, 55), "membership reverts to absent")
	assert.Equal(t, []string{"Could not update list"}, messageTexts(f.bus))
	assert.False(t, f.store.Pending(domain.ListFavorites, 55))
}

func TestOverlappingToggleIsRejected(t *testing.T) {
	f := newFixture(t)
	release := make(chan struct{})
	f.client.block = release
	f.client.entered = make(chan struct{}, 1)

	done := make(chan error, 1)
	go func() {
		_, err := f.store.ToggleMembership(context.Background(), domain.ListWatchlist, 42)
		done <- err
	}()
	<-f.client.entered

	assert.True(t, f.store.Pending(domain.ListWatchlist, 42))
	assert.True(t, f.store.InList(domain.ListWatchlist, 42), "optimistic flip is visible")

	_, err := f.store.ToggleMembership(context.Background(), domain.ListWatchlist, 42)
	assert.ErrorIs(t, err, domain.ErrMutationInFlight)

	// Another list for the same movie is independent.
	f.client.mu.Lock()
	f.client.block = nil
	f.client.mu.Unlock()
	_, err = f.store.ToggleMembership(context.Background(), domain.ListFavorites, 42)
	require.NoError(t, err)
	<-f.client.entered

	close(release)
	require.NoError(t, <-done)
	assert.True(t, f.store.InList(domain.ListWatchlist, 42))
	assert.False(t, f.store.Pending(domain.ListWatchlist, 42))
	assert.Len(t, f.client.Calls(), 2, "the rejected toggle never reached the network")
}

func TestRedirectDuringToggleLeavesNothingToRevert(t *testing.T) {
	f := newFixture(t)
	f.client.fail = func(string) error {
		// The gateway runs the logout protocol before returning.
		require.NoError(t, f.logouts.Logout())
		return gateway.ErrRedirecting
	}

	_, err := f.store.ToggleMembership(context.Background(), domain.ListFavorites, 55)
	assert.ErrorIs(t, err, gateway.ErrRedirecting)
	assert.False(t, f.store.IsLoggedIn())
	assert.Nil(t, f.store.User())
	assert.Empty(t, messageTexts(f.bus))

	token, _ := f.tokens.Token()
	assert.Empty(t, token)

	_, err = f.store.ToggleMembership(context.Background(), domain.ListFavorites, 55)
	assert.ErrorIs(t, err, domain.ErrNotLoggedIn)
}

func TestRatings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.ErrorIs(t, f.store.SetRating(ctx, 10, 11), domain.ErrInvalidRating)
	assert.ErrorIs(t, f.store.SetRating(ctx, 10, 0), domain.ErrInvalidRating)
	assert.Empty(t, f.client.Calls(), "invalid ratings never reach the network")

	require.NoError(t, f.store.SetRating(ctx, 20, 9))
	v, ok := f.store.Rating(20)
	assert.True(t, ok)
	assert.Equal(t, 9, v)

	require.NoError(t, f.store.RemoveRating(ctx, 20))
	_, ok = f.store.Rating(20)
	assert.False(t, ok)

	require.NoError(t, f.store.RemoveRating(ctx, 20), "removing an absent rating is a no-op")
	assert.Equal(t, []string{"put rating", "delete rating"}, f.client.Calls())
}

func TestFailedRatingRollsBack(t *testing.T) {
	f := newFixture(t)
	f.client.fail = func(string) error { return errNetworkDown }
	ctx := context.Background()

	require.Error(t, f.store.SetRating(ctx, 10, 3))
	v, _ := f.store.Rating(10)
	assert.Equal(t, 7, v, "previous rating restored")

	require.Error(t, f.store.RemoveRating(ctx, 10))
	v, _ = f.store.Rating(10)
	assert.Equal(t, 7, v)

	require.Error(t, f.store.SetRating(ctx, 30, 5))
	_, ok := f.store.Rating(30)
	assert.False(t, ok, "new rating removed again")

	assert.Equal(t, []string{"Could not update rating", "Could not update rating", "Could not update rating"}, messageTexts(f.bus))
}

func TestFetchProfileFailure(t *testing.T) {
	f := newFixture(t)
	boom := &gateway.Error{Kind: gateway.KindStatus, Status: 500}
	f.client.fail = func(string) error { return boom }

	_, err := f.store.FetchProfile(context.Background())
	require.Error(t, err)
	_, lastErr := f.store.Status()
	assert.True(t, errors.Is(lastErr, boom))
	assert.Equal(t, []string{"Could not load profile"}, messageTexts(f.bus))
	assert.Equal(t, "Ada", f.store.User().Name, "previous aggregate kept")

	f.client.fail = func(string) error { return gateway.ErrRedirecting }
	_, err = f.store.FetchProfile(context.Background())
	assert.ErrorIs(t, err, gateway.ErrRedirecting)
	assert.Len(t, f.bus.Messages(), 1, "redirects stay silent")
}

func TestUpdateProfile(t *testing.T) {
	f := newFixture(t)
	name := "Ada L."

	user, err := f.store.UpdateProfile(context.Background(), domain.ProfilePatch{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Ada L.", user.Name)
	assert.Equal(t, "Ada L.", f.store.User().Name)

	invalid := &gateway.Error{Kind: gateway.KindValidation, Status: 422, Fields: []gateway.FieldError{{Field: "name", Message: "too long"}}}
	f.client.fail = func(string) error { return invalid }
	_, err = f.store.UpdateProfile(context.Background(), domain.ProfilePatch{Name: &name})
	var gerr *gateway.Error
	require.True(t, errors.As(err, &gerr))
	assert.Equal(t, "too long", gerr.FieldErrors()["name"])
}

func TestLoginFailure(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Logout())

	f.client.fail = func(string) error { return domain.ErrAuthFailed }
	_, err := f.store.Login(context.Background(), "ada@example.com", "wrong")
	assert.ErrorIs(t, err, domain.ErrAuthFailed)
	assert.False(t, f.store.IsLoggedIn())
	token, _ := f.tokens.Token()
	assert.Empty(t, token)
}
