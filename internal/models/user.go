package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

type Plan string

const (
	PlanMonthly Plan = "monthly"
	PlanYearly  Plan = "yearly"
)

// Duration is how long one paid period of the plan lasts.
func (p Plan) Duration() time.Duration {
	switch p {
	case PlanMonthly:
		return 30 * 24 * time.Hour
	case PlanYearly:
		return 365 * 24 * time.Hour
	}
	return 0
}

func (p Plan) Valid() bool {
	return p.Duration() > 0
}

type User struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`

	Name         string `bson:"name" json:"name"`
	Email        string `bson:"email" json:"email"`
	PasswordHash string `bson:"passwordHash" json:"-"` // Don't return password in JSON
	Role         Role   `bson:"role" json:"role"`

	PreferredCategories []primitive.ObjectID `bson:"preferredCategories" json:"preferredCategories"`

	Subscription *Subscription    `bson:"subscription,omitempty" json:"subscription,omitempty"`
	Progress     []CourseProgress `bson:"progress" json:"-"`
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

type Subscription struct {
	IsActive               bool            `bson:"isActive" json:"isActive"`
	Plan                   *Plan           `bson:"plan" json:"plan"`
	StartDate              *time.Time      `bson:"startDate" json:"startDate"`
	EndDate                *time.Time      `bson:"endDate" json:"endDate"`
	ExternalSubscriptionID string          `bson:"externalSubscriptionId,omitempty" json:"externalSubscriptionId,omitempty"`
	PaymentHistory         []PaymentRecord `bson:"paymentHistory" json:"paymentHistory"`
}

type PaymentRecord struct {
	Amount    int64     `bson:"amount" json:"amount"`
	Currency  string    `bson:"currency" json:"currency"`
	PaymentID string    `bson:"paymentId" json:"paymentId"`
	OrderID   string    `bson:"orderId" json:"orderId"`
	Date      time.Time `bson:"date" json:"date"`
}
