package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"family-assistant/internal/common/auth"
	apperrors "family-assistant/internal/common/errors"
	"family-assistant/internal/common/logger"
	"family-assistant/internal/common/store/storetest"
	"family-assistant/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeValidator struct {
	infos map[string]*auth.TokenInfo
}

func (f *fakeValidator) ValidateToken(_ context.Context, token string) (*auth.TokenInfo, error) {
	if info, ok := f.infos[token]; ok {
		return info, nil
	}
	return nil, errors.New("token is not active")
}

func newPersistence(t *testing.T) *RedisPersistence {
	t.Helper()
	mr := miniredis.RunT(t)
	return NewRedisPersistence(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "test", time.Hour)
}

func TestResolver_Waterfall(t *testing.T) {
	members := storetest.NewMemory()
	require.NoError(t, members.Create(context.Background(), models.CollectionMembers, "user-2", "fam-2",
		models.Membership{UserID: "user-2", FamilyID: "fam-2", Role: "parent"}))

	validator := &fakeValidator{infos: map[string]*auth.TokenInfo{
		"claim-token":      {Active: true, Sub: "user-1", FamilyID: "fam-1"},
		"membership-token": {Active: true, Sub: "user-2"},
		"orphan-token":     {Active: true, Sub: "user-9"},
	}}

	tests := []struct {
		name     string
		ctx      func() context.Context
		familyID string
		userID   string
		opts     Options
		want     *Identity
		wantCode apperrors.ErrorCode
	}{
		{
			name:     "explicit arguments win",
			ctx:      func() context.Context { return auth.WithToken(context.Background(), "claim-token") },
			familyID: "fam-x",
			userID:   "user-x",
			want:     &Identity{FamilyID: "fam-x", UserID: "user-x", Tier: TierExplicit},
		},
		{
			name:     "explicit family borrows user from matching token",
			ctx:      func() context.Context { return auth.WithToken(context.Background(), "claim-token") },
			familyID: "fam-1",
			want:     &Identity{FamilyID: "fam-1", UserID: "user-1", Tier: TierExplicit},
		},
		{
			name: "token family claim",
			ctx:  func() context.Context { return auth.WithToken(context.Background(), "claim-token") },
			want: &Identity{FamilyID: "fam-1", UserID: "user-1", Tier: TierAuth},
		},
		{
			name: "token subject membership",
			ctx:  func() context.Context { return auth.WithToken(context.Background(), "membership-token") },
			want: &Identity{FamilyID: "fam-2", UserID: "user-2", Tier: TierAuth},
		},
		{
			name:     "orphan token is unresolved",
			ctx:      func() context.Context { return auth.WithToken(context.Background(), "orphan-token") },
			wantCode: apperrors.ErrCodeIdentityUnresolved,
		},
		{
			name: "demo only when allowed",
			ctx:  context.Background,
			opts: Options{AllowDemo: true, DemoFamilyID: "demo-fam", DemoUserID: "demo-user"},
			want: &Identity{FamilyID: "demo-fam", UserID: "demo-user", Tier: TierDemo},
		},
		{
			name:     "nothing resolves",
			ctx:      func() context.Context { return auth.WithToken(context.Background(), "expired") },
			wantCode: apperrors.ErrCodeIdentityUnresolved,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(validator, members, nil, tt.opts, logger.NewTestLogger(t))
			got, err := r.Resolve(tt.ctx(), tt.familyID, tt.userID)
			if tt.wantCode != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantCode, apperrors.CodeOf(err))
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolver_PersistedTier(t *testing.T) {
	persist := newPersistence(t)
	r := NewResolver(nil, nil, persist, Options{}, logger.NewNoOpLogger())
	ctx := WithClientID(context.Background(), "browser-1")

	first, err := r.Resolve(ctx, "fam-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, TierExplicit, first.Tier)

	second, err := r.Resolve(ctx, "", "")
	require.NoError(t, err)
	assert.Equal(t, &Identity{FamilyID: "fam-1", UserID: "user-1", Tier: TierPersisted}, second)

	_, err = r.Resolve(WithClientID(context.Background(), "browser-2"), "", "")
	assert.Equal(t, apperrors.ErrCodeIdentityUnresolved, apperrors.CodeOf(err))
}

func TestRedisPersistence_LoadMissing(t *testing.T) {
	persist := newPersistence(t)
	id, err := persist.Load(context.Background(), "nobody")
	assert.NoError(t, err)
	assert.Nil(t, id)
}
