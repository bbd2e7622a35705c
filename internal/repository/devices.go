package repository

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/AnshRaj112/coursely-backend/internal/models"
)

// MaxLoginHistory bounds the loginHistory array kept on each device.
const MaxLoginHistory = 100

type DeviceRepository struct {
	col *mongo.Collection
}

func NewDeviceRepository(db *mongo.Database) *DeviceRepository {
	return &DeviceRepository{col: db.Collection(devicesCollection)}
}

func (r *DeviceRepository) FindByUserAndDevice(ctx context.Context, userID primitive.ObjectID, deviceID string) (*models.Device, error) {
	var device models.Device
	err := r.col.FindOne(ctx, bson.M{"userId": userID, "deviceId": deviceID}).Decode(&device)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load device: %w", err)
	}
	return &device, nil
}

func (r *DeviceRepository) CountActive(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	n, err := r.col.CountDocuments(ctx, bson.M{"userId": userID, "isActive": true})
	if err != nil {
		return 0, fmt.Errorf("failed to count devices: %w", err)
	}
	return n, nil
}

// Insert stores a new device. A concurrent insert of the same (userId, deviceId) yields ErrDuplicate.
func (r *DeviceRepository) Insert(ctx context.Context, device *models.Device) error {
	if device.ID.IsZero() {
		device.ID = primitive.NewObjectID()
	}
	if _, err := r.col.InsertOne(ctx, device); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to insert device: %w", err)
	}
	return nil
}

// RecordLogin refreshes a known device and appends to its login history.
func (r *DeviceRepository) RecordLogin(ctx context.Context, userID primitive.ObjectID, deviceID string, login models.DeviceLogin) (*models.Device, error) {
	set := bson.M{
		"isActive":   true,
		"lastActive": login.At,
		"ipAddress":  login.IPAddress,
		"location":   login.Location,
		"deviceType": login.DeviceType,
		"browser":    login.Browser,
		"os":         login.OS,
	}
	if login.DeviceName != "" {
		set["deviceName"] = login.DeviceName
	}

	entry := models.LoginEntry{Timestamp: login.At, IPAddress: login.IPAddress, Location: login.Location}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var device models.Device
	err := r.col.FindOneAndUpdate(ctx,
		bson.M{"userId": userID, "deviceId": deviceID},
		bson.M{
			"$set": set,
			"$push": bson.M{"loginHistory": bson.M{
				"$each":  []models.LoginEntry{entry},
				"$slice": -MaxLoginHistory,
			}},
		},
		opts,
	).Decode(&device)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to record login: %w", err)
	}
	return &device, nil
}

// ListByUser returns the user's devices, most recently active first.
func (r *DeviceRepository) ListByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Device, error) {
	opts := options.Find().SetSort(bson.D{{Key: "lastActive", Value: -1}})
	cursor, err := r.col.Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	defer cursor.Close(ctx)

	devices := []models.Device{}
	if err := cursor.All(ctx, &devices); err != nil {
		return nil, fmt.Errorf("failed to decode devices: %w", err)
	}
	return devices, nil
}

// Delete removes the device only if it belongs to userID.
func (r *DeviceRepository) Delete(ctx context.Context, userID primitive.ObjectID, deviceID string) (bool, error) {
	res, err := r.col.DeleteOne(ctx, bson.M{"userId": userID, "deviceId": deviceID})
	if err != nil {
		return false, fmt.Errorf("failed to delete device: %w", err)
	}
	return res.DeletedCount > 0, nil
}

func (r *DeviceRepository) DeleteAllForUser(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	res, err := r.col.DeleteMany(ctx, bson.M{"userId": userID})
	if err != nil {
		return 0, fmt.Errorf("failed to delete devices: %w", err)
	}
	return res.DeletedCount, nil
}
