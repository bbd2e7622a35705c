package services

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/AnshRaj112/coursely-backend/internal/models"
	"github.com/AnshRaj112/coursely-backend/internal/repository"
	"github.com/AnshRaj112/coursely-backend/pkg/logger"
	"github.com/AnshRaj112/coursely-backend/pkg/utils"
)

type RegisterInput struct {
	Name                string
	Email               string
	Password            string
	PreferredCategories []string
	DeviceID            string
	DeviceName          string
	Meta                RequestMetadata
}

type LoginInput struct {
	Email      string
	Password   string
	DeviceID   string
	DeviceName string
	Meta       RequestMetadata
}

// AuthResult is returned by register and login. Device is nil when no device was admitted.
type AuthResult struct {
	Token  string
	Claims *Claims
	User   *models.User
	Device *models.Device
}

type AuthService struct {
	users   UserStore
	devices *DeviceService
	tokens  *TokenService
	log     *logger.Logger
	now     func() time.Time
}

func NewAuthService(users UserStore, devices *DeviceService, tokens *TokenService, log *logger.Logger) *AuthService {
	return &AuthService{
		users:   users,
		devices: devices,
		tokens:  tokens,
		log:     log.Component("auth"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	name := utils.NormalizeName(in.Name)
	if err := utils.ValidateName(name); err != nil {
		return nil, ErrValidation(err.Error())
	}
	email := utils.NormalizeEmail(in.Email)
	if email == "" {
		return nil, ErrValidation("Email is required")
	}
	if len(in.Password) < utils.MinPasswordLength {
		return nil, ErrValidation("Password must be at least 8 characters")
	}

	categories := make([]primitive.ObjectID, 0, len(in.PreferredCategories))
	for _, raw := range in.PreferredCategories {
		id, err := ParseObjectID("preferredCategories", raw)
		if err != nil {
			return nil, err
		}
		categories = append(categories, id)
	}

	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, WrapError(err, "failed to hash password")
	}

	now := s.now()
	user := &models.User{
		Name:                name,
		Email:               email,
		PasswordHash:        hash,
		Role:                models.RoleUser,
		PreferredCategories: categories,
		Subscription:        &models.Subscription{PaymentHistory: []models.PaymentRecord{}},
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrConflict("EMAIL_TAKEN", "An account with this email already exists")
		}
		return nil, err
	}
	s.log.Info().Str("user_id", user.ID.Hex()).Msg("user registered")

	result := &AuthResult{User: user}
	if in.DeviceID != "" {
		admission, err := s.devices.AdmitLogin(ctx, user.ID, in.DeviceID, in.DeviceName, in.Meta)
		if err != nil {
			// Drop the account so the client can retry the same registration.
			if _, delErr := s.users.Delete(ctx, user.ID); delErr != nil {
				s.log.Error().Err(delErr).Str("user_id", user.ID.Hex()).Msg("failed to roll back registration")
			}
			return nil, err
		}
		if admission.Status == Admitted {
			result.Device = admission.Device
		}
	}

	deviceID := ""
	if result.Device != nil {
		deviceID = result.Device.DeviceID
	}
	if result.Token, result.Claims, err = s.tokens.Issue(user, deviceID); err != nil {
		return nil, err
	}
	return result, nil
}

// Login checks credentials, then runs device admission. A rejected device gets no token.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	email := utils.NormalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	ok, err := utils.VerifyPassword(in.Password, user.PasswordHash)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", user.ID.Hex()).Msg("stored password hash is unreadable")
		return nil, ErrInvalidCredentials
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	admission, err := s.devices.AdmitLogin(ctx, user.ID, in.DeviceID, in.DeviceName, in.Meta)
	if err != nil {
		return nil, err
	}
	if admission.Status == LimitReached {
		return nil, ErrDeviceLimit(admission.CurrentDevices, admission.Limit)
	}

	token, claims, err := s.tokens.Issue(user, admission.Device.DeviceID)
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("user_id", user.ID.Hex()).Str("device_id", admission.Device.DeviceID).Msg("user logged in")
	return &AuthResult{Token: token, Claims: claims, User: user, Device: admission.Device}, nil
}

// Logout revokes the token. The device keeps its slot until it is removed explicitly.
func (s *AuthService) Logout(ctx context.Context, claims *Claims) error {
	if err := s.tokens.Revoke(ctx, claims); err != nil {
		return WrapError(err, "failed to revoke token")
	}
	return nil
}

// Authenticate verifies a bearer token and loads the user it names. A token bound to a
// device stops working once that device is removed from the account.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*Claims, *models.User, error) {
	claims, err := s.tokens.Verify(ctx, token)
	if err != nil {
		return nil, nil, err
	}
	userID, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		return nil, nil, ErrInvalidToken("INVALID_TOKEN", "Invalid token")
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrUserNotFound()
		}
		return nil, nil, err
	}

	if claims.DeviceID != "" && s.devices != nil {
		device, err := s.devices.FindDevice(ctx, userID, claims.DeviceID)
		if err != nil {
			return nil, nil, err
		}
		if device == nil {
			return nil, nil, ErrInvalidToken("INVALID_TOKEN", "This device has been removed from the account")
		}
	}
	return claims, user, nil
}
