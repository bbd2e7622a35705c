package services

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/AnshRaj112/coursely-backend/internal/models"
)

// The store interfaces below are satisfied by the repository package and by in-memory
// fakes in tests. Not-found and duplicate conditions are reported with repository.ErrNotFound
// and repository.ErrDuplicate.

type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context, limit, skip int64) ([]models.User, int64, error)
	Delete(ctx context.Context, id primitive.ObjectID) (bool, error)
	ApplySubscriptionPayment(ctx context.Context, id primitive.ObjectID, prevEnd *time.Time, plan models.Plan, start, end time.Time, record models.PaymentRecord) (*models.Subscription, error)
}

type ProgressStore interface {
	GetCourseProgress(ctx context.Context, userID, courseID primitive.ObjectID) (*models.CourseProgress, error)
	ListCourseProgress(ctx context.Context, userID primitive.ObjectID) ([]models.CourseProgress, error)
	EnsureEnrollment(ctx context.Context, userID, courseID primitive.ObjectID, now time.Time) (bool, error)
	SetLessonPosition(ctx context.Context, userID, courseID primitive.ObjectID, lessonID string, position float64, now time.Time) error
	CompleteLesson(ctx context.Context, userID, courseID primitive.ObjectID, lessonID string, now time.Time) (time.Time, bool, error)
}

type DeviceStore interface {
	FindByUserAndDevice(ctx context.Context, userID primitive.ObjectID, deviceID string) (*models.Device, error)
	CountActive(ctx context.Context, userID primitive.ObjectID) (int64, error)
	Insert(ctx context.Context, device *models.Device) error
	RecordLogin(ctx context.Context, userID primitive.ObjectID, deviceID string, login models.DeviceLogin) (*models.Device, error)
	ListByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Device, error)
	Delete(ctx context.Context, userID primitive.ObjectID, deviceID string) (bool, error)
	DeleteAllForUser(ctx context.Context, userID primitive.ObjectID) (int64, error)
}

type CourseStore interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Course, error)
	List(ctx context.Context, category *primitive.ObjectID, limit, skip int64) ([]models.Course, error)
}

type PaymentOrderStore interface {
	Create(ctx context.Context, order *models.PaymentOrder) error
	FindByOrderID(ctx context.Context, orderID string) (*models.PaymentOrder, error)
	MarkPaid(ctx context.Context, orderID, paymentID string, at time.Time) (bool, error)
	Revert(ctx context.Context, orderID string) error
	ListByUser(ctx context.Context, userID string) ([]models.PaymentOrder, error)
}

// ParseObjectID converts a hex id from a URL or request body, reporting a validation error
// naming the field when it is malformed.
func ParseObjectID(field, hex string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return primitive.NilObjectID, ErrValidation("Invalid " + field)
	}
	return id, nil
}
