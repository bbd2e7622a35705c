package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/AnshRaj112/coursely-backend/internal/models"
	"github.com/AnshRaj112/coursely-backend/pkg/logger"
)

// RevokedTokenKeyPrefix is the Redis key prefix for logged-out token ids.
const RevokedTokenKeyPrefix = "revoked_token:"

// Claims is the payload of every access token.
type Claims struct {
	UserID   string      `json:"uid"`
	DeviceID string      `json:"did,omitempty"`
	Role     models.Role `json:"role"`
	jwt.RegisteredClaims
}

// TokenDenylist remembers revoked token ids until they would have expired anyway.
type TokenDenylist interface {
	Revoke(ctx context.Context, jti string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

type RedisTokenDenylist struct {
	rdb redis.Cmdable
}

func NewRedisTokenDenylist(rdb redis.Cmdable) *RedisTokenDenylist {
	return &RedisTokenDenylist{rdb: rdb}
}

func (d *RedisTokenDenylist) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	return d.rdb.Set(ctx, RevokedTokenKeyPrefix+jti, "1", ttl).Err()
}

func (d *RedisTokenDenylist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := d.rdb.Exists(ctx, RevokedTokenKeyPrefix+jti).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// TokenService signs and verifies HS256 access tokens.
type TokenService struct {
	secret   []byte
	issuer   string
	ttl      time.Duration
	denylist TokenDenylist
	log      *logger.Logger
	now      func() time.Time
}

func NewTokenService(secret, issuer string, ttl time.Duration, denylist TokenDenylist, log *logger.Logger) *TokenService {
	return &TokenService{
		secret:   []byte(secret),
		issuer:   issuer,
		ttl:      ttl,
		denylist: denylist,
		log:      log.Component("tokens"),
		now:      time.Now,
	}
}

// Issue signs a token for the user. deviceID is empty for tokens issued before admission.
func (s *TokenService) Issue(user *models.User, deviceID string) (string, *Claims, error) {
	now := s.now()
	claims := &Claims{
		UserID:   user.ID.Hex(),
		DeviceID: deviceID,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.Hex(),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, claims, nil
}

// Verify checks signature, expiry, issuer and the revocation list.
func (s *TokenService) Verify(ctx context.Context, tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrInvalidToken("TOKEN_EXPIRED", "Token has expired")
		}
		return nil, ErrInvalidToken("INVALID_TOKEN", "Invalid token")
	}
	if claims.UserID == "" || claims.ID == "" {
		return nil, ErrInvalidToken("INVALID_TOKEN", "Invalid token")
	}

	if s.denylist != nil {
		revoked, err := s.denylist.IsRevoked(ctx, claims.ID)
		if err != nil {
			// Redis outages should not lock every user out.
			s.log.Warn().Err(err).Msg("token denylist unavailable")
		} else if revoked {
			return nil, ErrInvalidToken("INVALID_TOKEN", "Token has been revoked")
		}
	}
	return claims, nil
}

// Revoke denylists the token until its natural expiry.
func (s *TokenService) Revoke(ctx context.Context, claims *Claims) error {
	if s.denylist == nil || claims == nil || claims.ExpiresAt == nil {
		return nil
	}
	return s.denylist.Revoke(ctx, claims.ID, claims.ExpiresAt.Time)
}
