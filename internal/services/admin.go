package services

import (
	"context"

	"github.com/AnshRaj112/coursely-backend/internal/models"
	"github.com/AnshRaj112/coursely-backend/pkg/logger"
)

type UserPage struct {
	Users []models.User `json:"users"`
	Total int64         `json:"total"`
	Limit int64         `json:"limit"`
	Skip  int64         `json:"skip"`
}

// AdminService backs the admin surface: account listing, deletion and device revocation.
type AdminService struct {
	users   UserStore
	devices *DeviceService
	log     *logger.Logger
}

func NewAdminService(users UserStore, devices *DeviceService, log *logger.Logger) *AdminService {
	return &AdminService{users: users, devices: devices, log: log.Component("admin")}
}

func (s *AdminService) ListUsers(ctx context.Context, limit, skip int64) (*UserPage, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if skip < 0 {
		skip = 0
	}
	users, total, err := s.users.List(ctx, limit, skip)
	if err != nil {
		return nil, err
	}
	return &UserPage{Users: users, Total: total, Limit: limit, Skip: skip}, nil
}

// DeleteUser removes the account and every device registered to it. Progress and
// subscription live on the user document and go with it.
func (s *AdminService) DeleteUser(ctx context.Context, actor *models.User, userID string) error {
	id, err := ParseObjectID("userId", userID)
	if err != nil {
		return err
	}
	if actor != nil && actor.ID == id {
		return ErrForbidden("FORBIDDEN", "Admins cannot delete their own account")
	}

	deleted, err := s.users.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrNotFound("User not found")
	}

	removed, err := s.devices.RemoveAllDevices(ctx, id)
	if err != nil {
		return WrapError(err, "user deleted but devices were not removed")
	}
	s.log.Info().Str("user_id", userID).Int64("devices_removed", removed).Msg("user deleted by admin")
	return nil
}

func (s *AdminService) ListUserDevices(ctx context.Context, userID string) ([]models.Device, error) {
	id, err := ParseObjectID("userId", userID)
	if err != nil {
		return nil, err
	}
	return s.devices.ListDevices(ctx, id)
}

func (s *AdminService) RevokeUserDevice(ctx context.Context, userID, deviceID string) error {
	id, err := ParseObjectID("userId", userID)
	if err != nil {
		return err
	}
	return s.devices.RemoveDevice(ctx, id, deviceID)
}
