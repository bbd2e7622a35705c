package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/AnshRaj112/coursely-backend/internal/models"
)

type UserRepository struct {
	col *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{col: db.Collection(usersCollection)}
}

// Create inserts a new user and fills in its generated id.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	if user.Progress == nil {
		user.Progress = []models.CourseProgress{}
	}
	if user.PreferredCategories == nil {
		user.PreferredCategories = []primitive.ObjectID{}
	}

	if _, err := r.col.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// FindByID loads a user without the embedded progress array, which can be large.
func (r *UserRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	opts := options.FindOne().SetProjection(bson.M{"progress": 0})

	var user models.User
	if err := r.col.FindOne(ctx, filter, opts).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &user, nil
}

// List returns a page of users, newest first, and the total count.
func (r *UserRepository) List(ctx context.Context, limit, skip int64) ([]models.User, int64, error) {
	total, err := r.col.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(limit).
		SetSkip(skip).
		SetProjection(bson.M{"progress": 0, "passwordHash": 0})

	cursor, err := r.col.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	defer cursor.Close(ctx)

	users := []models.User{}
	if err := cursor.All(ctx, &users); err != nil {
		return nil, 0, fmt.Errorf("failed to decode users: %w", err)
	}
	return users, total, nil
}

// Delete removes the user document. Returns false when nothing matched.
func (r *UserRepository) Delete(ctx context.Context, id primitive.ObjectID) (bool, error) {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return false, fmt.Errorf("failed to delete user: %w", err)
	}
	return res.DeletedCount > 0, nil
}

// ApplySubscriptionPayment activates the subscription window and appends the payment
// to its history in a single update of the user document. The update only applies while
// the stored endDate still equals prevEnd (nil meaning no endDate yet); otherwise ErrStale.
func (r *UserRepository) ApplySubscriptionPayment(ctx context.Context, id primitive.ObjectID, prevEnd *time.Time, plan models.Plan, start, end time.Time, record models.PaymentRecord) (*models.Subscription, error) {
	now := time.Now().UTC()
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(bson.M{"subscription": 1})

	filter := bson.M{"_id": id, "subscription": bson.M{"$type": "object"}}
	if prevEnd != nil {
		filter["subscription.endDate"] = *prevEnd
	} else {
		filter["subscription.endDate"] = nil
	}

	var updated models.User
	err := r.col.FindOneAndUpdate(ctx, filter,
		bson.M{
			"$set": bson.M{
				"subscription.isActive":  true,
				"subscription.plan":      plan,
				"subscription.startDate": start,
				"subscription.endDate":   end,
				"updatedAt":              now,
			},
			"$push": bson.M{"subscription.paymentHistory": record},
		},
		opts,
	).Decode(&updated)
	if err == nil {
		return updated.Subscription, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("failed to update subscription: %w", err)
	}

	if prevEnd == nil {
		// No embedded subscription yet (or it was stored as null): write the whole object.
		sub := models.Subscription{
			IsActive:       true,
			Plan:           &plan,
			StartDate:      &start,
			EndDate:        &end,
			PaymentHistory: []models.PaymentRecord{record},
		}
		err = r.col.FindOneAndUpdate(ctx,
			bson.M{"_id": id, "subscription": nil},
			bson.M{"$set": bson.M{"subscription": sub, "updatedAt": now}},
			opts,
		).Decode(&updated)
		if err == nil {
			return updated.Subscription, nil
		}
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("failed to set subscription: %w", err)
		}
	}

	n, err := r.col.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if n == 0 {
		return nil, ErrNotFound
	}
	return nil, ErrStale
}
