package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/AnshRaj112/coursely-backend/internal/models"
	"github.com/AnshRaj112/coursely-backend/internal/repository"
	"github.com/AnshRaj112/coursely-backend/pkg/logger"
)

type AdmissionStatus string

const (
	Admitted     AdmissionStatus = "admitted"
	LimitReached AdmissionStatus = "limit_reached"
)

// RequestMetadata is the raw client information captured at login.
type RequestMetadata struct {
	IPAddress string
	UserAgent string
}

// Admission is the outcome of AdmitLogin. LimitReached is a policy decision, not an error.
type Admission struct {
	Status         AdmissionStatus
	Device         *models.Device
	CurrentDevices int64
	Limit          int
}

type DeviceService struct {
	devices    DeviceStore
	parser     ClientMetadataParser
	geo        Geolocator
	lock       AdmissionLocker
	maxDevices int
	log        *logger.Logger
	now        func() time.Time
}

func NewDeviceService(devices DeviceStore, parser ClientMetadataParser, geo Geolocator, lock AdmissionLocker, maxDevices int, log *logger.Logger) *DeviceService {
	return &DeviceService{
		devices:    devices,
		parser:     parser,
		geo:        geo,
		lock:       lock,
		maxDevices: maxDevices,
		log:        log.Component("devices"),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *DeviceService) MaxDevices() int {
	return s.maxDevices
}

// AdmitLogin decides whether deviceID may hold a session for the user.
// Known devices are always admitted and refreshed. A new device is admitted only while
// the user has fewer than MaxDevices active devices.
func (s *DeviceService) AdmitLogin(ctx context.Context, userID primitive.ObjectID, deviceID, deviceName string, meta RequestMetadata) (*Admission, error) {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return nil, ErrValidation("deviceId is required")
	}

	// Lookups that may be slow happen before the lock so it only covers the count and insert.
	login := s.describe(ctx, deviceName, meta)

	if s.lock != nil {
		release, err := s.lock.Acquire(ctx, userID.Hex())
		switch {
		case err == nil:
			defer release()
		case errors.Is(err, ErrLockTimeout), ctx.Err() != nil:
			s.log.Warn().Err(err).Str("user_id", userID.Hex()).Msg("admission lock busy")
			return nil, ErrConflict("LOGIN_IN_PROGRESS", "Another login for this account is in progress, please retry")
		default:
			// Redis is down. The unique (userId, deviceId) index still prevents duplicate rows.
			s.log.Warn().Err(err).Str("user_id", userID.Hex()).Msg("admission lock unavailable, continuing without it")
		}
	}

	existing, err := s.devices.FindByUserAndDevice(ctx, userID, deviceID)
	switch {
	case err == nil:
		return s.refresh(ctx, existing.UserID, deviceID, login)
	case !errors.Is(err, repository.ErrNotFound):
		return nil, err
	}

	count, err := s.devices.CountActive(ctx, userID)
	if err != nil {
		return nil, err
	}
	if count >= int64(s.maxDevices) {
		s.log.Info().Str("user_id", userID.Hex()).Int64("active", count).Msg("device limit reached")
		return &Admission{Status: LimitReached, CurrentDevices: count, Limit: s.maxDevices}, nil
	}

	name := login.DeviceName
	if name == "" {
		name = strings.TrimSpace(login.Browser + " on " + login.OS)
	}
	device := &models.Device{
		UserID:     userID,
		DeviceID:   deviceID,
		DeviceName: name,
		DeviceType: login.DeviceType,
		Browser:    login.Browser,
		OS:         login.OS,
		IPAddress:  login.IPAddress,
		Location:   login.Location,
		IsActive:   true,
		LastActive: login.At,
		CreatedAt:  login.At,
		LoginHistory: []models.LoginEntry{
			{Timestamp: login.At, IPAddress: login.IPAddress, Location: login.Location},
		},
	}
	if err := s.devices.Insert(ctx, device); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			// Lost a race with a concurrent login from the same device.
			return s.refresh(ctx, userID, deviceID, login)
		}
		return nil, err
	}

	return &Admission{Status: Admitted, Device: device, CurrentDevices: count + 1, Limit: s.maxDevices}, nil
}

// refresh records a login on a known device. An empty DeviceName keeps the stored one.
func (s *DeviceService) refresh(ctx context.Context, userID primitive.ObjectID, deviceID string, login models.DeviceLogin) (*Admission, error) {
	device, err := s.devices.RecordLogin(ctx, userID, deviceID, login)
	if err != nil {
		return nil, err
	}
	count, err := s.devices.CountActive(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Admission{Status: Admitted, Device: device, CurrentDevices: count, Limit: s.maxDevices}, nil
}

func (s *DeviceService) describe(ctx context.Context, deviceName string, meta RequestMetadata) models.DeviceLogin {
	info := ClientInfo{DeviceType: models.DeviceOther, Browser: "Unknown", OS: "Unknown"}
	if s.parser != nil {
		info = s.parser.Parse(meta.UserAgent)
	}
	location := LocationUnknown
	if s.geo != nil {
		location = s.geo.Locate(ctx, meta.IPAddress)
	}

	return models.DeviceLogin{
		At:         s.now(),
		DeviceName: strings.TrimSpace(deviceName),
		DeviceType: info.DeviceType,
		Browser:    info.Browser,
		OS:         info.OS,
		IPAddress:  meta.IPAddress,
		Location:   location,
	}
}

// ListDevices returns the user's devices, most recently active first.
func (s *DeviceService) ListDevices(ctx context.Context, userID primitive.ObjectID) ([]models.Device, error) {
	return s.devices.ListByUser(ctx, userID)
}

// FindDevice resolves the device a token was issued for. It returns nil when the row is gone.
func (s *DeviceService) FindDevice(ctx context.Context, userID primitive.ObjectID, deviceID string) (*models.Device, error) {
	if deviceID == "" {
		return nil, nil
	}
	device, err := s.devices.FindByUserAndDevice(ctx, userID, deviceID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	return device, err
}

// RemoveDevice deletes a device owned by userID, freeing its slot.
func (s *DeviceService) RemoveDevice(ctx context.Context, userID primitive.ObjectID, deviceID string) error {
	removed, err := s.devices.Delete(ctx, userID, deviceID)
	if err != nil {
		return err
	}
	if !removed {
		return ErrNotFound("Device not found")
	}
	s.log.Info().Str("user_id", userID.Hex()).Str("device_id", deviceID).Msg("device removed")
	return nil
}

func (s *DeviceService) RemoveAllDevices(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	return s.devices.DeleteAllForUser(ctx, userID)
}
