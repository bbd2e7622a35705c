package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type DeviceType string

const (
	DeviceMobile  DeviceType = "mobile"
	DeviceTablet  DeviceType = "tablet"
	DeviceDesktop DeviceType = "desktop"
	DeviceOther   DeviceType = "other"
)

// Device is stored in its own collection so logins never grow the user document.
// (userId, deviceId) is unique.
type Device struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID     primitive.ObjectID `bson:"userId" json:"userId"`
	DeviceID   string             `bson:"deviceId" json:"deviceId"`
	DeviceName string             `bson:"deviceName" json:"deviceName"`
	DeviceType DeviceType         `bson:"deviceType" json:"deviceType"`
	Browser    string             `bson:"browser" json:"browser"`
	OS         string             `bson:"os" json:"os"`
	IPAddress  string             `bson:"ipAddress" json:"ipAddress"`
	Location   string             `bson:"location" json:"location"`
	IsActive   bool               `bson:"isActive" json:"isActive"`
	LastActive time.Time          `bson:"lastActive" json:"lastActive"`
	CreatedAt  time.Time          `bson:"createdAt" json:"createdAt"`

	LoginHistory []LoginEntry `bson:"loginHistory" json:"loginHistory"`
}

type LoginEntry struct {
	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
	IPAddress string    `bson:"ipAddress" json:"ipAddress"`
	Location  string    `bson:"location" json:"location"`
}

// DeviceLogin carries the per-login values written onto a Device row.
type DeviceLogin struct {
	At         time.Time
	DeviceName string
	DeviceType DeviceType
	Browser    string
	OS         string
	IPAddress  string
	Location   string
}
