package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/AnshRaj112/coursely-backend/internal/models"
	"github.com/AnshRaj112/coursely-backend/pkg/logger"
)

func newTokenService(t *testing.T) *TokenService {
	t.Helper()
	_, rdb := newTestRedis(t)
	return NewTokenService("test-secret", "coursely", time.Hour, NewRedisTokenDenylist(rdb), logger.Nop())
}

func errCode(err error) string {
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

func TestTokenService_IssueAndVerify(t *testing.T) {
	svc := newTokenService(t)
	user := &models.User{ID: primitive.NewObjectID(), Role: models.RoleAdmin}

	token, issued, err := svc.Issue(user, "device-1")
	require.NoError(t, err)

	claims, err := svc.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, user.ID.Hex(), claims.UserID)
	assert.Equal(t, "device-1", claims.DeviceID)
	assert.Equal(t, models.RoleAdmin, claims.Role)
	assert.Equal(t, issued.ID, claims.ID)
}

func TestTokenService_Expired(t *testing.T) {
	svc := newTokenService(t)
	user := &models.User{ID: primitive.NewObjectID(), Role: models.RoleUser}

	svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, _, err := svc.Issue(user, "")
	require.NoError(t, err)

	svc.now = time.Now
	_, err = svc.Verify(context.Background(), token)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindInvalidToken))
	assert.Equal(t, "TOKEN_EXPIRED", errCode(err))
}

func TestTokenService_RejectsForeignTokens(t *testing.T) {
	svc := newTokenService(t)
	user := &models.User{ID: primitive.NewObjectID(), Role: models.RoleUser}

	other := NewTokenService("other-secret", "coursely", time.Hour, nil, logger.Nop())
	forged, _, err := other.Issue(user, "")
	require.NoError(t, err)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{UserID: user.ID.Hex()}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for name, token := range map[string]string{"wrong secret": forged, "alg none": unsigned, "garbage": "abc.def.ghi"} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Verify(context.Background(), token)
			assert.True(t, IsKind(err, KindInvalidToken))
			assert.Equal(t, "INVALID_TOKEN", errCode(err))
		})
	}
}

func TestTokenService_Revoke(t *testing.T) {
	svc := newTokenService(t)
	user := &models.User{ID: primitive.NewObjectID(), Role: models.RoleUser}
	ctx := context.Background()

	token, claims, err := svc.Issue(user, "d")
	require.NoError(t, err)
	require.NoError(t, svc.Revoke(ctx, claims))

	_, err = svc.Verify(ctx, token)
	assert.True(t, IsKind(err, KindInvalidToken))

	// A fresh token for the same user is unaffected.
	fresh, _, err := svc.Issue(user, "d")
	require.NoError(t, err)
	_, err = svc.Verify(ctx, fresh)
	assert.NoError(t, err)
}

func TestRedisTokenDenylist_ExpiresWithToken(t *testing.T) {
	mr, rdb := newTestRedis(t)
	denylist := NewRedisTokenDenylist(rdb)
	ctx := context.Background()

	require.NoError(t, denylist.Revoke(ctx, "jti-1", time.Now().Add(time.Minute)))
	revoked, err := denylist.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	mr.FastForward(2 * time.Minute)
	revoked, err = denylist.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	// Already expired tokens are not stored at all.
	require.NoError(t, denylist.Revoke(ctx, "jti-2", time.Now().Add(-time.Second)))
	assert.False(t, mr.Exists(RevokedTokenKeyPrefix+"jti-2"))
}
