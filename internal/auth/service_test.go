package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dropDatabas3/caishen/internal/cache"
	"github.com/dropDatabas3/caishen/internal/domain"
	"github.com/dropDatabas3/caishen/internal/domain/repository"
	"github.com/dropDatabas3/caishen/internal/jwt"
	"github.com/dropDatabas3/caishen/internal/providers"
	"github.com/dropDatabas3/caishen/internal/security/password"
	"github.com/dropDatabas3/caishen/internal/store/memory"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type fakeProvider struct {
	name  domain.AuthProvider
	slug  string
	user  *domain.ExternalUser
	err    error
	urlErr error
	calls  atomic.Int32
}

func (f *fakeProvider) Name() domain.AuthProvider { return f.name }
func (f *fakeProvider) Slug() string              { return f.slug }
func (f *fakeProvider) Matches(n string) bool     { return n == f.slug }
func (f *fakeProvider) AuthorizationURL(_ context.Context, state string) (string, error) {
	if f.urlErr != nil {
		return "", f.urlErr
	}
	return "https://idp.test/auth?state=" + state, nil
}
func (f *fakeProvider) ExchangeCode(_ context.Context, code string) (*domain.ExternalUser, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.user, nil
}

type recorder struct {
	mu   sync.Mutex
	keys []string
}

func (r *recorder) Publish(_ context.Context, key string, _ any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys = append(r.keys, key)
	return nil
}
func (r *recorder) Close() error { return nil }

type fixture struct {
	svc    *Service
	users  *memory.Users
	cache  cache.Client
	google *fakeProvider
	events *recorder
	clock  *atomic.Int64
	cfg    Config
	deps   Deps
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := &atomic.Int64{}
	clock.Store(time.Now().Unix())

	codec, err := jwt.NewCodec(testSecret, "HS256", 0)
	require.NoError(t, err)
	codec = codec.WithClock(func() time.Time { return time.Unix(clock.Load(), 0) })

	g := &fakeProvider{
		name: domain.ProviderGoogle,
		slug: "google",
		user: &domain.ExternalUser{Subject: "g-1", Email: "Bob@Example.com", Name: "Bob"},
	}
	f := &fixture{
		users:  memory.NewUsers(),
		cache:  cache.NewMemory("test"),
		google: g,
		events: &recorder{},
		clock:  clock,
	}
	f.cfg = Config{
		AccessTokenTTL: time.Hour,
		AuthTokenTTL:   time.Minute,
		StateTTL:       time.Minute,
		PasswordParams: password.Params{Memory: 8 * 1024, Time: 1, Parallelism: 1, KeyLen: 32},
		PasswordPolicy: password.Policy{MinLength: 4},
	}
	f.deps = Deps{
		Users:     f.users,
		Cache:     f.cache,
		Codec:     codec,
		Providers: providers.NewRegistry(g),
		Events:    f.events,
	}
	f.svc = NewService(f.cfg, f.deps)
	return f
}

// withUsers reconstruye el servicio sobre otro repositorio.
func (f *fixture) withUsers(repo repository.UserRepository) {
	d := f.deps
	d.Users = repo
	f.svc = NewService(f.cfg, d)
}

func (f *fixture) registerAlice(t *testing.T) *domain.User {
	t.Helper()
	u, err := f.svc.RegisterLocal(context.Background(), RegisterInput{
		Name:      "Alice",
		Email:     "alice@example.com",
		Password:  "wonderland",
		BirthDate: time.Date(1990, 1, 2, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return u
}

func (f *fixture) login(t *testing.T) domain.AuthToken {
	t.Helper()
	ctx := context.Background()
	_, state, err := f.svc.BeginProviderLogin(ctx, "google")
	require.NoError(t, err)
	tok, err := f.svc.HandleProviderCallback(ctx, "google", "code-1", state.Code, state.Code)
	require.NoError(t, err)
	return tok
}

func requireKind(t *testing.T, err error, want Kind) {
	t.Helper()
	require.Error(t, err)
	if got := KindOf(err); got != want {
		t.Fatalf("kind: want %s got %s (%v)", want, got, err)
	}
}

func TestAuthenticateLocal(t *testing.T) {
	f := newFixture(t)
	alice := f.registerAlice(t)
	ctx := context.Background()

	tok, err := f.svc.AuthenticateLocal(ctx, "ALICE@example.com", "wonderland")
	require.NoError(t, err)
	require.Equal(t, domain.TokenKindBearer, tok.Kind)

	p, err := f.svc.Authorize(ctx, "Bearer "+tok.Code, "")
	require.NoError(t, err)
	require.Equal(t, alice.ID, p.Sub)

	_, err = f.svc.AuthenticateLocal(ctx, "alice@example.com", "wrong")
	requireKind(t, err, KindUnauthorized)

	_, err = f.svc.AuthenticateLocal(ctx, "nobody@example.com", "wonderland")
	requireKind(t, err, KindUnauthorized)
}

func TestAuthenticateLocalRejectsProviderUser(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	_, err := f.svc.AuthenticateLocal(context.Background(), "bob@example.com", "")
	requireKind(t, err, KindUnauthorized)
}

func TestRegisterLocalConflictAndPolicy(t *testing.T) {
	f := newFixture(t)
	f.registerAlice(t)

	_, err := f.svc.RegisterLocal(context.Background(), RegisterInput{
		Name: "Other", Email: "Alice@Example.com", Password: "secret1", BirthDate: time.Now(),
	})
	requireKind(t, err, KindConflict)

	_, err = f.svc.RegisterLocal(context.Background(), RegisterInput{
		Name: "Short", Email: "s@example.com", Password: "x", BirthDate: time.Now(),
	})
	requireKind(t, err, KindInvalidInput)
}

func TestBeginProviderLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	uri, state, err := f.svc.BeginProviderLogin(ctx, "google")
	require.NoError(t, err)
	require.NotEmpty(t, state.Code)
	require.Equal(t, domain.TokenKindState, state.Kind)
	require.True(t, strings.HasSuffix(uri, "state="+state.Code))

	v, err := f.cache.Get(ctx, statePrefix+state.Code)
	require.NoError(t, err)
	require.Equal(t, "1", v)

	_, _, err = f.svc.BeginProviderLogin(ctx, "myspace")
	requireKind(t, err, KindUnknownProvider)
}

func TestProviderCallbackCreatesUser(t *testing.T) {
	f := newFixture(t)
	tok := f.login(t)
	require.NotEmpty(t, tok.Code)

	u, err := f.users.GetByEmail(context.Background(), "bob@example.com")
	require.NoError(t, err)
	require.Equal(t, domain.ProviderGoogle, u.AuthProvider)
	require.False(t, u.IsAdmin)
	require.False(t, u.HasPassword())
	require.False(t, u.BirthDate.IsZero())
	require.Equal(t, []string{"user.created", "user.login"}, f.events.keys)

	// segundo login: mismo usuario, sin alta nueva
	f.login(t)
	require.Equal(t, 1, f.users.Len())
}

func TestAuthTokenUsableOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tok := f.login(t)

	access, err := f.svc.ExchangeAuthToken(ctx, tok.Code)
	require.NoError(t, err)
	require.NotEmpty(t, access.Code)

	_, err = f.svc.ExchangeAuthToken(ctx, tok.Code)
	requireKind(t, err, KindUnauthorized)
}

func TestAuthTokenConcurrentRedemption(t *testing.T) {
	f := newFixture(t)
	tok := f.login(t)

	var ok atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.ExchangeAuthToken(context.Background(), tok.Code); err == nil {
				ok.Add(1)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, int32(1), ok.Load())
}

func TestAuthTokenExpires(t *testing.T) {
	f := newFixture(t)
	f.svc.cfg.AuthTokenTTL = time.Second
	tok := f.login(t)

	f.clock.Add(2)
	_, err := f.svc.ExchangeAuthToken(context.Background(), tok.Code)
	requireKind(t, err, KindUnauthorized)
}

func TestAuthTokensAreDistinct(t *testing.T) {
	f := newFixture(t)
	a := f.login(t)
	b := f.login(t)
	require.NotEqual(t, a.Code, b.Code)
}

func TestCSRFStateUsableOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, state, err := f.svc.BeginProviderLogin(ctx, "google")
	require.NoError(t, err)
	_, err = f.svc.HandleProviderCallback(ctx, "google", "c", state.Code, state.Code)
	require.NoError(t, err)

	_, err = f.svc.HandleProviderCallback(ctx, "google", "c", state.Code, state.Code)
	requireKind(t, err, KindUnauthorized)
	require.Equal(t, int32(1), f.google.calls.Load())
}

func TestCSRFCheckedBeforeExchange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, state, err := f.svc.BeginProviderLogin(ctx, "google")
	require.NoError(t, err)

	cases := []struct{ query, cookie string }{
		{"", state.Code},
		{state.Code, ""},
		{state.Code, "other"},
		{"forged", "forged"},
	}
	for _, c := range cases {
		_, err := f.svc.HandleProviderCallback(ctx, "google", "c", c.query, c.cookie)
		requireKind(t, err, KindUnauthorized)
	}
	require.Zero(t, f.google.calls.Load())
}

func TestProviderMismatch(t *testing.T) {
	f := newFixture(t)
	f.registerAlice(t)
	f.google.user = &domain.ExternalUser{Email: "alice@example.com", Name: "Alice G"}

	ctx := context.Background()
	_, state, err := f.svc.BeginProviderLogin(ctx, "google")
	require.NoError(t, err)
	_, err = f.svc.HandleProviderCallback(ctx, "google", "c", state.Code, state.Code)

	var ae *Error
	require.True(t, errors.As(err, &ae))
	require.Equal(t, KindProviderMismatch, ae.Kind)
	require.Equal(t, domain.ProviderLocal, ae.CurrentProvider)
	require.Equal(t, domain.ProviderGoogle, ae.FailedProvider)
	require.Contains(t, ae.Detail, "please use LOCAL provider")
}

func TestUnverifiedEmailCreatesNoUser(t *testing.T) {
	f := newFixture(t)
	f.google.err = fmt.Errorf("google: %w", providers.ErrEmailNotVerified)

	ctx := context.Background()
	_, state, err := f.svc.BeginProviderLogin(ctx, "google")
	require.NoError(t, err)
	_, err = f.svc.HandleProviderCallback(ctx, "google", "c", state.Code, state.Code)
	requireKind(t, err, KindUnauthorized)
	require.Equal(t, 0, f.users.Len())
}

func TestProviderErrorsKeepKind(t *testing.T) {
	for sentinel, want := range map[error]Kind{
		providers.ErrDiscoveryDocument:  KindDiscoveryDocument,
		providers.ErrProviderConnection: KindProviderConnection,
	} {
		f := newFixture(t)
		f.google.err = fmt.Errorf("google: %w", sentinel)
		ctx := context.Background()
		_, state, err := f.svc.BeginProviderLogin(ctx, "google")
		require.NoError(t, err)
		_, err = f.svc.HandleProviderCallback(ctx, "google", "c", state.Code, state.Code)
		requireKind(t, err, want)
	}
}

func TestAuthorize(t *testing.T) {
	f := newFixture(t)
	alice := f.registerAlice(t)
	ctx := context.Background()
	tok, err := f.svc.AuthenticateLocal(ctx, "alice@example.com", "wonderland")
	require.NoError(t, err)

	noSub, err := f.svc.codec.Issue(map[string]any{}, time.Hour)
	require.NoError(t, err)

	cases := []struct {
		name           string
		header, cookie string
		reason         string
	}{
		{"header", "Bearer " + tok.Code, "", ""},
		{"lowercase scheme", "bearer " + tok.Code, "", ""},
		{"cookie", "", "Bearer " + tok.Code, ""},
		{"header wins", "Bearer junk", "Bearer " + tok.Code, ReasonInvalidToken},
		{"missing", "", "", ReasonMissingCredentials},
		{"basic", "Basic abc", "", ReasonWrongScheme},
		{"no token", "Bearer", "", ReasonMissingToken},
		{"no subject", "Bearer " + noSub, "", ReasonMissingSubject},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			p, err := f.svc.Authorize(ctx, c.header, c.cookie)
			if c.reason == "" {
				require.NoError(t, err)
				require.Equal(t, alice.ID, p.Sub)
				return
			}
			requireKind(t, err, KindUnauthorized)
			require.Equal(t, c.reason, reasonOf(err))
		})
	}
}

func TestAuthorizeExpiredAccessToken(t *testing.T) {
	f := newFixture(t)
	f.registerAlice(t)
	tok, err := f.svc.AuthenticateLocal(context.Background(), "alice@example.com", "wonderland")
	require.NoError(t, err)

	f.clock.Add(int64(2 * time.Hour / time.Second))
	_, err = f.svc.Authorize(context.Background(), "Bearer "+tok.Code, "")
	requireKind(t, err, KindUnauthorized)
	require.Equal(t, ReasonInvalidToken, reasonOf(err))
}

func TestCurrentUserDeleted(t *testing.T) {
	f := newFixture(t)
	alice := f.registerAlice(t)
	_, err := f.users.Delete(context.Background(), alice.ID)
	require.NoError(t, err)

	_, err = f.svc.CurrentUser(context.Background(), domain.TokenPayload{Sub: alice.ID})
	requireKind(t, err, KindUnauthorized)
}

func TestEnsureSuperuser(t *testing.T) {
	f := newFixture(t)
	su := Superuser{Name: "admin", Email: "Admin@Example.com", Password: "admin", BirthDate: time.Now()}

	created, err := f.svc.EnsureSuperuser(context.Background(), su)
	require.NoError(t, err)
	require.True(t, created)

	created, err = f.svc.EnsureSuperuser(context.Background(), su)
	require.NoError(t, err)
	require.False(t, created)

	u, err := f.users.GetByEmail(context.Background(), "admin@example.com")
	require.NoError(t, err)
	require.True(t, u.IsAdmin)
}

type downCache struct{ cache.Client }

func (downCache) Set(context.Context, string, string, time.Duration) error {
	return fmt.Errorf("%w: set: connection refused", cache.ErrUnavailable)
}

func (downCache) Take(context.Context, string) (string, error) {
	return "", fmt.Errorf("%w: take: connection refused", cache.ErrUnavailable)
}

func TestCacheUnavailableSurfaces(t *testing.T) {
	f := newFixture(t)
	f.svc.cache = downCache{}

	_, _, err := f.svc.BeginProviderLogin(context.Background(), "google")
	requireKind(t, err, KindCacheUnavailable)

	_, err = f.svc.HandleProviderCallback(context.Background(), "google", "c", "s", "s")
	requireKind(t, err, KindCacheUnavailable)
	require.Zero(t, f.google.calls.Load())
}

// slowLookup retrasa GetByEmail para que varios callbacks lean "no existe"
// antes de que el primero inserte.
type slowLookup struct {
	repository.UserRepository
	delay time.Duration
}

func (r slowLookup) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	time.Sleep(r.delay)
	return r.UserRepository.GetByEmail(ctx, email)
}

func TestConcurrentFirstProviderLogin(t *testing.T) {
	f := newFixture(t)
	f.withUsers(slowLookup{UserRepository: f.users, delay: 20 * time.Millisecond})

	ctx := context.Background()
	const n = 16
	states := make([]string, n)
	for i := range states {
		_, st, err := f.svc.BeginProviderLogin(ctx, "google")
		require.NoError(t, err)
		states[i] = st.Code
	}

	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.HandleProviderCallback(ctx, "google", "c", states[i], states[i])
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "callback %d", i)
	}
	require.Equal(t, 1, f.users.Len())
}

func TestConcurrentFirstLoginOtherProviderMismatch(t *testing.T) {
	f := newFixture(t)
	racer := &insertBeforeCreate{UserRepository: f.users, provider: domain.ProviderLocal}
	f.withUsers(racer)

	ctx := context.Background()
	_, st, err := f.svc.BeginProviderLogin(ctx, "google")
	require.NoError(t, err)
	_, err = f.svc.HandleProviderCallback(ctx, "google", "c", st.Code, st.Code)

	var ae *Error
	require.True(t, errors.As(err, &ae))
	require.Equal(t, KindProviderMismatch, ae.Kind)
	require.Equal(t, domain.ProviderLocal, ae.CurrentProvider)
}

// insertBeforeCreate simula otro alta del mismo email justo antes del insert.
type insertBeforeCreate struct {
	repository.UserRepository
	provider domain.AuthProvider
}

func (r *insertBeforeCreate) Create(ctx context.Context, in repository.CreateUserInput) (*domain.User, error) {
	other := in
	other.AuthProvider = r.provider
	if _, err := r.UserRepository.Create(ctx, other); err != nil {
		return nil, err
	}
	return r.UserRepository.Create(ctx, in)
}

// vanishing devuelve conflicto al crear pero no encuentra al usuario después.
type vanishing struct {
	repository.UserRepository
}

func (vanishing) Create(context.Context, repository.CreateUserInput) (*domain.User, error) {
	return nil, repository.ErrConflict
}

func TestProviderLoginConflictHasOwnDetail(t *testing.T) {
	f := newFixture(t)
	f.withUsers(vanishing{UserRepository: f.users})

	ctx := context.Background()
	_, st, err := f.svc.BeginProviderLogin(ctx, "google")
	require.NoError(t, err)
	_, err = f.svc.HandleProviderCallback(ctx, "google", "c", st.Code, st.Code)

	var ae *Error
	require.True(t, errors.As(err, &ae))
	require.Equal(t, KindConflict, ae.Kind)
	require.Equal(t, ReasonConcurrentSignup, ae.Reason)
	require.NotEmpty(t, ae.Detail)
	require.NotContains(t, ae.Detail, "already exists")
	require.NotContains(t, err.Error(), "conflict: conflict")
}

// keyLog registra las keys escritas en la cache.
type keyLog struct {
	cache.Client
	mu  sync.Mutex
	set []string
}

func (k *keyLog) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	k.mu.Lock()
	k.set = append(k.set, key)
	k.mu.Unlock()
	return k.Client.Set(ctx, key, value, ttl)
}

func TestBeginProviderLoginFailureLeavesNoState(t *testing.T) {
	f := newFixture(t)
	kl := &keyLog{Client: f.cache}
	d := f.deps
	d.Cache = kl
	f.svc = NewService(f.cfg, d)
	f.google.urlErr = fmt.Errorf("google: %w", providers.ErrDiscoveryDocument)

	ctx := context.Background()
	_, _, err := f.svc.BeginProviderLogin(ctx, "google")
	requireKind(t, err, KindDiscoveryDocument)

	require.Len(t, kl.set, 1)
	require.True(t, strings.HasPrefix(kl.set[0], statePrefix))
	_, err = f.cache.Take(ctx, kl.set[0])
	require.True(t, cache.IsNotFound(err))
}
