package app

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cert.pem")
	require.NoError(t, os.WriteFile(path, []byte("contents"), 0600))

	for _, fileURL := range []string{path, "file://" + path} {
		b, err := LoadFile(fileURL)
		require.NoError(t, err)
		assert.Equal(t, "contents", string(b))
	}

	_, err := LoadFile(filepath.Join(dir, "missing.pem"))
	assert.Error(t, err)

	_, err = LoadFile("s3://bucket/cert.pem")
	assert.Error(t, err)
}

func TestServeMux(t *testing.T) {
	var calls []string
	tagging := func(tag string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls = append(calls, tag)
				next.ServeHTTP(w, r)
			})
		}
	}

	handlers := map[string]http.HandlerFunc{
		"/v1/ok": func(w http.ResponseWriter, _ *http.Request) {
			calls = append(calls, "handler")
			w.WriteHeader(http.StatusAccepted)
		},
		"/v1/panic": func(_ http.ResponseWriter, _ *http.Request) {
			panic("boom")
		},
	}

	mux := newServeMux(handlers, []Middleware{
		requestIdMiddleware(),
		recoveryMiddleware(logrus.StandardLogger().WithField("type", "app")),
		tagging("first"),
		tagging("second"),
	}, nil)

	recorder := httptest.NewRecorder()
	mux.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/v1/ok", nil))
	assert.Equal(t, http.StatusAccepted, recorder.Code)
	assert.Equal(t, []string{"first", "second", "handler"}, calls)
	_, err := uuid.Parse(recorder.Header().Get(requestIdHeaderName))
	assert.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/v1/ok", nil)
	req.Header.Set(requestIdHeaderName, "caller-provided")
	recorder = httptest.NewRecorder()
	mux.ServeHTTP(recorder, req)
	assert.Equal(t, "caller-provided", recorder.Header().Get(requestIdHeaderName))

	recorder = httptest.NewRecorder()
	mux.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/v1/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, recorder.Code)

	recorder = httptest.NewRecorder()
	mux.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, healthCheckPath, nil))
	assert.Equal(t, http.StatusOK, recorder.Code)

	recorder = httptest.NewRecorder()
	mux.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/v1/unknown", nil))
	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

type staticLoader []byte

func (l staticLoader) Load(*url.URL) ([]byte, error) {
	return l, nil
}

func TestRegisterFileLoader(t *testing.T) {
	RegisterFileLoader("static", staticLoader("from memory"))

	b, err := LoadFile("static://anything")
	require.NoError(t, err)
	assert.Equal(t, "from memory", string(b))

	assert.Panics(t, func() { RegisterFileLoader("file", staticLoader(nil)) })
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
app_name: token-manager
log_level: debug
shutdown_grace_period: 5s
app:
  store_type: memory
`), 0600))

	config, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "token-manager", config.AppName)
	assert.Equal(t, "debug", config.LogLevel)
	assert.Equal(t, 5*time.Second, config.ShutdownGracePeriod)
	assert.Equal(t, defaultConfig.ListenAddress, config.ListenAddress)
	assert.Equal(t, "memory", config.AppConfig["store_type"])

	unnamed := filepath.Join(dir, "unnamed.yaml")
	require.NoError(t, os.WriteFile(unnamed, []byte("log_level: info\n"), 0600))
	_, err = loadConfig(unnamed)
	assert.Error(t, err)
}

func TestBallastAndCron(t *testing.T) {
	assert.Nil(t, allocateBallast(BaseConfig{}))

	ch, err := startMemoryLeakCron(BaseConfig{})
	require.NoError(t, err)
	assert.Nil(t, ch)

	_, err = startMemoryLeakCron(BaseConfig{EnableMemoryLeakCron: true, MemoryLeakCronSchedule: "not a schedule"})
	assert.Error(t, err)

	ch, err = startMemoryLeakCron(BaseConfig{EnableMemoryLeakCron: true, MemoryLeakCronSchedule: "0 5 * * *"})
	require.NoError(t, err)
	assert.NotNil(t, ch)
}

func TestNewServers(t *testing.T) {
	servers, err := newServers(BaseConfig{InsecureListenAddress: "127.0.0.1:0"})
	require.NoError(t, err)
	require.Len(t, servers, 1)
	assert.Equal(t, "insecure", servers[0].name)
	assert.False(t, servers[0].tls)
	require.NoError(t, servers[0].listener.Close())

	_, err = newServers(BaseConfig{InsecureListenAddress: "127.0.0.1:0", TLSCertificate: "cert.pem"})
	assert.Error(t, err)
}
