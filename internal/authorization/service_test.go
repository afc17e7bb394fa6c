package authorization

import (
	"context"
	"net/http"
	"testing"

	"github.com/smallbiznis/authr/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T, admins ...string) Service {
	t.Helper()
	enforcer, err := NewEnforcer()
	require.NoError(t, err)
	return NewService(Params{
		Log:      zap.NewNop(),
		Enforcer: enforcer,
		Access:   config.NewStaticAccessConfigHolder(config.AccessConfig{Admins: admins}),
	})
}

func TestAuthorizeUserRole(t *testing.T) {
	svc := newTestService(t, "root@example.com")
	user := Actor{UserID: 1, Email: "ada@example.com"}

	tests := []struct {
		path    string
		method  string
		allowed bool
	}{
		{"/data/notes", http.MethodGet, true},
		{"/data/notes", http.MethodPost, true},
		{"/data/notes/12", http.MethodGet, true},
		{"/data/notes/12", http.MethodPut, true},
		{"/data/notes/12", http.MethodDelete, true},
		{"/data/users/1", http.MethodGet, true},
		{"/data/users", http.MethodGet, false},
		{"/data/users", http.MethodPost, false},
		{"/data/users/1", http.MethodDelete, false},
		{"/data/notes", http.MethodDelete, false},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			err := svc.Authorize(context.Background(), user, tt.path, tt.method)
			if tt.allowed {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrForbidden)
			}
		})
	}
}

func TestAuthorizeAdminRole(t *testing.T) {
	svc := newTestService(t, "root@example.com")
	admin := Actor{UserID: 2, Email: "ROOT@example.com"}

	assert.True(t, svc.IsAdmin(admin))
	assert.NoError(t, svc.Authorize(context.Background(), admin, "/data/users", http.MethodGet))
	assert.NoError(t, svc.Authorize(context.Background(), admin, "/data/users/5", http.MethodDelete))
	assert.NoError(t, svc.Authorize(context.Background(), admin, "/data/notes/5", http.MethodPut))
}

func TestAuthorizeRejectsAnonymousActor(t *testing.T) {
	svc := newTestService(t)
	assert.ErrorIs(t, svc.Authorize(context.Background(), Actor{}, "/data/notes", http.MethodGet), ErrInvalidActor)
}
