package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	authconfig "github.com/smallbiznis/authr/internal/auth/config"
	"github.com/smallbiznis/authr/internal/auth/oauth"
	"github.com/smallbiznis/authr/internal/auth/pending"
	authservice "github.com/smallbiznis/authr/internal/auth/service"
	"github.com/smallbiznis/authr/internal/auth/session"
	"github.com/smallbiznis/authr/internal/authorization"
	"github.com/smallbiznis/authr/internal/clock"
	"github.com/smallbiznis/authr/internal/config"
	"github.com/smallbiznis/authr/internal/datastore"
	"github.com/smallbiznis/authr/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const adminEmail = "root@example.com"

var stubUsers = map[string]map[string]any{
	"ada":  {"id": "1", "email": "ada@example.com", "verified_email": true, "name": "Ada"},
	"bob":  {"id": "2", "email": "bob@example.com", "verified_email": true, "name": "Bob"},
	"root": {"id": "3", "email": adminEmail, "verified_email": true, "name": "Root"},
}

func newStubIdP(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if r.PostForm.Get("code_verifier") == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": r.PostForm.Get("code"),
			"token_type":   "Bearer",
		})
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		info, ok := stubUsers[strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")]
		if !ok {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(info)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

type testEnv struct {
	engine  *gin.Engine
	pending *pending.MemoryStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	idp := newStubIdP(t)
	cfg := config.Config{StorageBackend: config.StorageMemory, SessionTTL: time.Hour}
	log := zap.NewNop()
	clk := clock.Real()

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	stores, err := datastore.NewStores(datastore.Params{Cfg: cfg, GenID: node, Log: log})
	require.NoError(t, err)

	pendingStore := pending.NewMemoryStore(10*time.Minute, clk)
	authsvc := authservice.New(authservice.Params{
		Log: log,
		Cfg: cfg,
		Provider: oauth.NewService(authconfig.ProviderConfig{
			Name:         "google",
			ClientID:     "client",
			ClientSecret: "secret",
			RedirectURL:  "http://localhost/auth/google/callback",
			AuthURL:      idp.URL + "/auth",
			TokenURL:     idp.URL + "/token",
			UserInfoURL:  idp.URL + "/userinfo",
			HTTPTimeout:  2 * time.Second,
		}),
		Pending:  pendingStore,
		Sessions: session.NewMemoryStore(clk),
		Users:    stores.Users,
		Clock:    clk,
	})

	enforcer, err := authorization.NewEnforcer()
	require.NoError(t, err)

	engine := NewEngine(observability.Config{}, nil)
	s := NewServer(ServerParams{
		Gin:      engine,
		Cfg:      cfg,
		Log:      log,
		Authsvc:  authsvc,
		Sessions: session.NewManager(cfg),
		AuthzSvc: authorization.NewService(authorization.Params{
			Log:      log,
			Enforcer: enforcer,
			Access:   config.NewStaticAccessConfigHolder(config.AccessConfig{Admins: []string{adminEmail}}),
		}),
		Stores: stores,
	})
	registerRoutes(s)

	return &testEnv{engine: engine, pending: pendingStore}
}

func (e *testEnv) do(t *testing.T, method, target, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.AddCookie(&http.Cookie{Name: session.DefaultCookieName, Value: token})
	}
	rec := httptest.NewRecorder()
	e.engine.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) startLogin(t *testing.T) string {
	t.Helper()
	rec := e.do(t, http.MethodGet, "/auth/google/login", "", nil)
	require.Equal(t, http.StatusFound, rec.Code)

	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "S256", loc.Query().Get("code_challenge_method"))
	state := loc.Query().Get("state")
	require.NotEmpty(t, state)
	return state
}

// login runs the full handshake as the stub user named code and returns the
// session cookie value.
func (e *testEnv) login(t *testing.T, code string) string {
	t.Helper()
	state := e.startLogin(t)
	rec := e.do(t, http.MethodGet, "/auth/google/callback?state="+url.QueryEscape(state)+"&code="+code, "", nil)
	require.Equal(t, http.StatusFound, rec.Code, rec.Body.String())
	assert.Equal(t, "/", rec.Header().Get("Location"))

	for _, c := range rec.Result().Cookies() {
		if c.Name == session.DefaultCookieName {
			assert.True(t, c.HttpOnly)
			return c.Value
		}
	}
	t.Fatal("no session cookie set")
	return ""
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

type noteJSON struct {
	ID       int64  `json:"id"`
	OwnerID  int64  `json:"owner_id"`
	Contents string `json:"contents"`
}

func TestLoginFlowEndToEnd(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "ada")

	rec := env.do(t, http.MethodGet, "/auth/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decode[map[string]any](t, rec)
	assert.Equal(t, "google/1", me["guid"])
	assert.Equal(t, "ada@example.com", me["email"])
	assert.Equal(t, false, me["admin"])

	rec = env.do(t, http.MethodPost, "/auth/logout", token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, "/auth/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginLeavesOnePendingRow(t *testing.T) {
	env := newTestEnv(t)
	env.startLogin(t)

	n, err := env.pending.Len(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCallbackFailures(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/auth/google/callback?state=unknown&code=ada", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, rec.Result().Cookies())

	rec = env.do(t, http.MethodGet, "/auth/google/callback?code=ada", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	state := env.startLogin(t)
	rec = env.do(t, http.MethodGet, "/auth/google/callback?state="+url.QueryEscape(state)+"&code=ada", "", nil)
	require.Equal(t, http.StatusFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/auth/google/callback?state="+url.QueryEscape(state)+"&code=ada", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCallbackUpstreamRejection(t *testing.T) {
	env := newTestEnv(t)
	state := env.startLogin(t)

	rec := env.do(t, http.MethodGet, "/auth/google/callback?state="+url.QueryEscape(state)+"&code=mallory", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCallbackProviderError(t *testing.T) {
	env := newTestEnv(t)
	state := env.startLogin(t)

	rec := env.do(t, http.MethodGet, "/auth/google/callback?state="+url.QueryEscape(state)+"&error=access_denied", "", nil)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login?error=oauth_login", rec.Header().Get("Location"))

	n, err := env.pending.Len(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestDataRequiresSession(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/data/notes", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodGet, "/data/notes", "forged", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBearerTokenAuthenticates(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "ada")

	req := httptest.NewRequest(http.MethodGet, "/data/notes", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	env.engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNotesCRUDScopedToOwner(t *testing.T) {
	env := newTestEnv(t)
	ada := env.login(t, "ada")
	bob := env.login(t, "bob")

	rec := env.do(t, http.MethodPost, "/data/notes", ada, map[string]any{"contents": "hello world", "owner_id": 999})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	note := decode[noteJSON](t, rec)
	assert.Equal(t, "hello world", note.Contents)
	assert.NotEqual(t, int64(999), note.OwnerID)
	notePath := "/data/notes/" + strconv.FormatInt(note.ID, 10)

	rec = env.do(t, http.MethodPost, "/data/notes", bob, map[string]any{"contents": "bob's"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodGet, "/data/notes", ada, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct {
		Data []noteJSON `json:"data"`
	}](t, rec)
	require.Len(t, list.Data, 1)
	assert.Equal(t, note.ID, list.Data[0].ID)

	rec = env.do(t, http.MethodGet, "/data/notes?contains[contents]=world", ada, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "hello world")

	rec = env.do(t, http.MethodGet, notePath, bob, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = env.do(t, http.MethodDelete, notePath, bob, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPut, notePath, ada, map[string]any{"contents": "edited"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "edited", decode[noteJSON](t, rec).Contents)

	rec = env.do(t, http.MethodDelete, notePath, ada, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, http.MethodGet, notePath, ada, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = env.do(t, http.MethodDelete, notePath, ada, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateNoteValidation(t *testing.T) {
	env := newTestEnv(t)
	ada := env.login(t, "ada")

	rec := env.do(t, http.MethodPost, "/data/notes", ada, map[string]any{})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[errorResponse](t, rec)
	require.Len(t, body.Error.Errors, 1)
	assert.Equal(t, "contents", body.Error.Errors[0].Field)
	assert.Equal(t, "missing_required_on_create", body.Error.Errors[0].Code)

	rec = env.do(t, http.MethodPost, "/data/notes", ada, map[string]any{"id": 5, "contents": "x"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "id_provided_on_create", decode[errorResponse](t, rec).Error.Errors[0].Code)

	rec = env.do(t, http.MethodGet, "/data/notes?colour=red", ada, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "unknown_field", decode[errorResponse](t, rec).Error.Errors[0].Code)

	rec = env.do(t, http.MethodGet, "/data/notes?contains[owner_id]=1", ada, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "unsupported_operator", decode[errorResponse](t, rec).Error.Errors[0].Code)

	rec = env.do(t, http.MethodGet, "/data/notes/abc", ada, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUsersAccess(t *testing.T) {
	env := newTestEnv(t)
	ada := env.login(t, "ada")
	root := env.login(t, "root")

	rec := env.do(t, http.MethodGet, "/data/users", ada, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodGet, "/auth/me", ada, nil)
	adaID := int64(decode[map[string]any](t, rec)["user_id"].(float64))

	rec = env.do(t, http.MethodGet, "/data/users/"+strconv.FormatInt(adaID, 10), ada, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/data/users", root, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	users := decode[struct {
		Data []map[string]any `json:"data"`
	}](t, rec)
	assert.Len(t, users.Data, 2)

	rec = env.do(t, http.MethodGet, "/data/users?guid=google/1", root, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ada@example.com")

	rec = env.do(t, http.MethodPost, "/data/users", root, map[string]any{"guid": "google/1", "name": "Dup"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestUserGUIDCannotBeReassigned(t *testing.T) {
	env := newTestEnv(t)
	ada := env.login(t, "ada")
	root := env.login(t, "root")

	rec := env.do(t, http.MethodGet, "/auth/me", ada, nil)
	adaPath := "/data/users/" + strconv.FormatInt(int64(decode[map[string]any](t, rec)["user_id"].(float64)), 10)

	rec = env.do(t, http.MethodPut, adaPath, root, map[string]any{"guid": "google/999"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[errorResponse](t, rec)
	require.Len(t, body.Error.Errors, 1)
	assert.Equal(t, "guid", body.Error.Errors[0].Field)
	assert.Equal(t, "immutable_field", body.Error.Errors[0].Code)

	rec = env.do(t, http.MethodGet, adaPath, root, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "google/1", decode[map[string]any](t, rec)["guid"])
}

func TestUnknownKind(t *testing.T) {
	env := newTestEnv(t)
	ada := env.login(t, "ada")

	rec := env.do(t, http.MethodGet, "/data/widgets", ada, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
