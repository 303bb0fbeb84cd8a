package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/dropDatabas3/caishen/internal/config"
	"github.com/stretchr/testify/require"
)

func memoryConfig() *config.Config {
	cfg := config.Default()
	cfg.Storage.Driver = "memory"
	cfg.Cache.Kind = "memory"
	cfg.JWT.Secret = strings.Repeat("k", 32)
	cfg.Superuser.Password = "changeme-please"
	cfg.Rate.Enabled = true
	return cfg
}

func TestBuildMemory(t *testing.T) {
	cfg := memoryConfig()
	a, err := Build(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, a.Close()) })

	srv := httptest.NewServer(a.Handler)
	t.Cleanup(srv.Close)

	res, err := http.Get(srv.URL + "/readyz")
	require.NoError(t, err)
	res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	// El superusuario se crea al arrancar y puede loguearse.
	form := url.Values{"username": {cfg.Superuser.Email}, "password": {cfg.Superuser.Password}}
	res, err = http.PostForm(srv.URL+cfg.Server.APIPrefix+"/login/access-token", form)
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	var body struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))

	req, _ := http.NewRequest(http.MethodGet, srv.URL+cfg.Server.APIPrefix+"/users/?limit=5", nil)
	req.Header.Set("Authorization", "Bearer "+body.AccessToken)
	list, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	list.Body.Close()
	require.Equal(t, http.StatusOK, list.StatusCode)

	res, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
}

func TestBuildNoProviders(t *testing.T) {
	a, err := Build(context.Background(), memoryConfig())
	require.NoError(t, err)
	defer a.Close()
	require.Empty(t, a.Auth.Providers().Slugs())
}

func TestBuildBadCacheURL(t *testing.T) {
	cfg := memoryConfig()
	cfg.Rate.Backend = "redis"
	cfg.Cache.URL = "not a url"
	_, err := Build(context.Background(), cfg)
	require.Error(t, err)
}
