package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"family-assistant/internal/common/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIntrospectionServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/realms/family/protocol/openid-connect/token/introspect", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "assistant", r.PostForm.Get("client_id"))
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
}

func TestValidateToken(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantErr   errors.ErrorCode
		retryable bool
		wantSub   string
		wantFam   string
	}{
		{
			name:    "active token",
			status:  http.StatusOK,
			body:    `{"active":true,"sub":"user-1","family_id":"fam-9","username":"sam"}`,
			wantSub: "user-1",
			wantFam: "fam-9",
		},
		{
			name:    "inactive token",
			status:  http.StatusOK,
			body:    `{"active":false}`,
			wantErr: ErrCodeTokenInvalid,
		},
		{
			name:      "keycloak unavailable",
			status:    http.StatusServiceUnavailable,
			body:      ``,
			wantErr:   ErrCodeAuthNetwork,
			retryable: true,
		},
		{
			name:    "garbage body",
			status:  http.StatusOK,
			body:    `not json`,
			wantErr: ErrCodeTokenInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newIntrospectionServer(t, tt.status, tt.body)
			defer server.Close()

			kc := NewKeycloakClient(server.URL+"/", "family", "assistant", "secret", time.Second)
			info, err := kc.ValidateToken(context.Background(), "tok")

			if tt.wantErr != "" {
				require.Error(t, err)
				std := errors.AsStandardError(err)
				assert.Equal(t, tt.wantErr, std.Code)
				assert.Equal(t, tt.retryable, std.Retryable)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSub, info.Sub)
			assert.Equal(t, tt.wantFam, info.FamilyID)
		})
	}
}

func TestTokenContext(t *testing.T) {
	_, ok := TokenFromContext(context.Background())
	assert.False(t, ok)

	ctx := WithToken(context.Background(), "abc")
	token, ok := TokenFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "abc", token)

	_, ok = TokenFromContext(WithToken(context.Background(), ""))
	assert.False(t, ok)
}
