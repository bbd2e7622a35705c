package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	usersCollection   = "users"
	devicesCollection = "devices"
	coursesCollection = "courses"
)

// EnsureIndexes creates the indexes the repositories rely on for uniqueness and lookups.
// Called on startup from main after Mongo has connected.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	specs := map[string][]mongo.IndexModel{
		usersCollection: {
			{
				Keys:    bson.D{{Key: "email", Value: 1}},
				Options: options.Index().SetName("uniq_email").SetUnique(true),
			},
			{
				Keys:    bson.D{{Key: "_id", Value: 1}, {Key: "progress.courseId", Value: 1}},
				Options: options.Index().SetName("idx_user_progress_course"),
			},
		},
		devicesCollection: {
			{
				Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "deviceId", Value: 1}},
				Options: options.Index().SetName("uniq_user_device").SetUnique(true),
			},
			{
				Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "isActive", Value: 1}},
				Options: options.Index().SetName("idx_user_active"),
			},
		},
		coursesCollection: {
			{
				Keys:    bson.D{{Key: "category", Value: 1}, {Key: "createdAt", Value: -1}},
				Options: options.Index().SetName("idx_category_created"),
			},
		},
	}

	for name, models := range specs {
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return err
		}
	}
	return nil
}
