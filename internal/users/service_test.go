package users

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dropDatabas3/caishen/internal/auth"
	"github.com/dropDatabas3/caishen/internal/cache"
	"github.com/dropDatabas3/caishen/internal/domain"
	"github.com/dropDatabas3/caishen/internal/jwt"
	"github.com/dropDatabas3/caishen/internal/providers"
	"github.com/dropDatabas3/caishen/internal/security/password"
	"github.com/dropDatabas3/caishen/internal/store/memory"
	"github.com/stretchr/testify/require"
)

type sentMail struct {
	mu sync.Mutex
	to []string
}

func (m *sentMail) Send(_ context.Context, to, _, _, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.to = append(m.to, to)
	return nil
}

func newService(t *testing.T) (*Service, *memory.Users, *sentMail) {
	t.Helper()
	codec, err := jwt.NewCodec("0123456789abcdef0123456789abcdef", "HS256", 0)
	require.NoError(t, err)
	repo := memory.NewUsers()
	a := auth.NewService(auth.Config{
		AccessTokenTTL: time.Hour,
		AuthTokenTTL:   time.Minute,
		StateTTL:       time.Minute,
		PasswordParams: password.Params{Memory: 8 * 1024, Time: 1, Parallelism: 1, KeyLen: 32},
		PasswordPolicy: password.Policy{MinLength: 4},
	}, auth.Deps{Users: repo, Cache: cache.NewMemory("t"), Codec: codec, Providers: providers.NewRegistry()})
	mail := &sentMail{}
	return NewService(repo, a, mail, "http://localhost/login"), repo, mail
}

func mustRegister(t *testing.T, s *Service, email string, admin bool) *domain.User {
	t.Helper()
	u, err := s.auth.RegisterLocal(context.Background(), auth.RegisterInput{
		Name: email, Email: email, Password: "secret", BirthDate: time.Now(), IsAdmin: admin,
	})
	require.NoError(t, err)
	return u
}

func requireKind(t *testing.T, err error, want auth.Kind) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, want.String(), auth.KindOf(err).String())
}

func TestCreateRequiresAdmin(t *testing.T) {
	s, _, mail := newService(t)
	admin := mustRegister(t, s, "root@example.com", true)
	plain := mustRegister(t, s, "joe@example.com", false)
	in := auth.RegisterInput{Name: "New", Email: "new@example.com", Password: "secret", BirthDate: time.Now()}

	_, err := s.Create(context.Background(), plain, in)
	requireKind(t, err, auth.KindUnauthorized)

	u, err := s.Create(context.Background(), admin, in)
	require.NoError(t, err)
	require.Equal(t, domain.ProviderLocal, u.AuthProvider)
	require.Equal(t, []string{"new@example.com"}, mail.to)

	_, err = s.Create(context.Background(), admin, in)
	requireKind(t, err, auth.KindConflict)
}

func TestUpdateSelfIgnoresIsAdmin(t *testing.T) {
	s, _, _ := newService(t)
	joe := mustRegister(t, s, "joe@example.com", false)

	yes := true
	name := "Joseph"
	u, err := s.UpdateSelf(context.Background(), joe, UpdateInput{Name: &name, IsAdmin: &yes})
	require.NoError(t, err)
	require.Equal(t, "Joseph", u.Name)
	require.False(t, u.IsAdmin)
}

func TestUpdateByAdmin(t *testing.T) {
	s, repo, _ := newService(t)
	admin := mustRegister(t, s, "root@example.com", true)
	joe := mustRegister(t, s, "joe@example.com", false)

	yes := true
	u, err := s.Update(context.Background(), admin, joe.ID, UpdateInput{IsAdmin: &yes})
	require.NoError(t, err)
	require.True(t, u.IsAdmin)

	_, err = s.Update(context.Background(), admin, "00000000-0000-0000-0000-000000000000", UpdateInput{})
	requireKind(t, err, auth.KindNotFound)

	joe, err = repo.GetByID(context.Background(), joe.ID)
	require.NoError(t, err)
	_, err = s.Update(context.Background(), joe, admin.ID, UpdateInput{})
	require.NoError(t, err, "joe is admin now")
}

func TestPasswordChange(t *testing.T) {
	s, _, _ := newService(t)
	joe := mustRegister(t, s, "joe@example.com", false)

	pw := "another"
	_, err := s.UpdateSelf(context.Background(), joe, UpdateInput{Password: &pw})
	require.NoError(t, err)

	_, err = s.auth.AuthenticateLocal(context.Background(), "joe@example.com", "another")
	require.NoError(t, err)

	short := "x"
	_, err = s.UpdateSelf(context.Background(), joe, UpdateInput{Password: &short})
	requireKind(t, err, auth.KindInvalidInput)
}

func TestListAndDelete(t *testing.T) {
	s, repo, _ := newService(t)
	admin := mustRegister(t, s, "root@example.com", true)
	joe := mustRegister(t, s, "joe@example.com", false)

	_, err := s.List(context.Background(), joe, 0, 10)
	requireKind(t, err, auth.KindUnauthorized)

	list, err := s.List(context.Background(), admin, 0, 1)
	require.NoError(t, err)
	require.Len(t, list, 1)

	_, err = s.Delete(context.Background(), joe, admin.ID)
	requireKind(t, err, auth.KindUnauthorized)

	del, err := s.Delete(context.Background(), admin, joe.ID)
	require.NoError(t, err)
	require.Equal(t, joe.ID, del.ID)
	require.Equal(t, 1, repo.Len())

	_, err = s.Delete(context.Background(), admin, joe.ID)
	requireKind(t, err, auth.KindNotFound)
}
