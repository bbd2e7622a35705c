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

// ProgressRepository reads and writes the progress array embedded in each user document.
// Every write is one UpdateOne against that document so a lesson's completed flag and the
// completedLessons set never diverge.
type ProgressRepository struct {
	col *mongo.Collection
}

func NewProgressRepository(db *mongo.Database) *ProgressRepository {
	return &ProgressRepository{col: db.Collection(usersCollection)}
}

// GetCourseProgress returns the user's entry for one course, or ErrNotFound if there is none.
func (r *ProgressRepository) GetCourseProgress(ctx context.Context, userID, courseID primitive.ObjectID) (*models.CourseProgress, error) {
	opts := options.FindOne().SetProjection(bson.M{
		"progress": bson.M{"$elemMatch": bson.M{"courseId": courseID}},
	})

	var user models.User
	if err := r.col.FindOne(ctx, bson.M{"_id": userID}, opts).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load course progress: %w", err)
	}
	if len(user.Progress) == 0 {
		return nil, ErrNotFound
	}
	return &user.Progress[0], nil
}

func (r *ProgressRepository) ListCourseProgress(ctx context.Context, userID primitive.ObjectID) ([]models.CourseProgress, error) {
	opts := options.FindOne().SetProjection(bson.M{"progress": 1})

	var user models.User
	if err := r.col.FindOne(ctx, bson.M{"_id": userID}, opts).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load progress: %w", err)
	}
	if user.Progress == nil {
		return []models.CourseProgress{}, nil
	}
	return user.Progress, nil
}

// EnsureEnrollment appends an empty entry for the course unless one already exists.
// The $ne guard makes concurrent calls push at most one entry.
func (r *ProgressRepository) EnsureEnrollment(ctx context.Context, userID, courseID primitive.ObjectID, now time.Time) (bool, error) {
	entry := models.CourseProgress{
		CourseID:         courseID,
		EnrolledAt:       now,
		LastAccessed:     now,
		CompletedLessons: []string{},
		LessonProgress:   map[string]models.LessonProgress{},
	}

	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": userID, "progress.courseId": bson.M{"$ne": courseID}},
		bson.M{"$push": bson.M{"progress": entry}},
	)
	if err != nil {
		return false, fmt.Errorf("failed to enroll user: %w", err)
	}
	return res.ModifiedCount > 0, nil
}

// SetLessonPosition records a playback offset. The lesson's completed flag is left untouched.
func (r *ProgressRepository) SetLessonPosition(ctx context.Context, userID, courseID primitive.ObjectID, lessonID string, position float64, now time.Time) error {
	prefix := "progress.$.lessonProgress." + lessonID

	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": userID, "progress.courseId": courseID},
		bson.M{"$set": bson.M{
			prefix + ".position":      position,
			prefix + ".lastUpdated":   now,
			"progress.$.lastAccessed": now,
			"updatedAt":               now,
		}},
	)
	if err != nil {
		return fmt.Errorf("failed to update lesson position: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// CompleteLesson marks the lesson completed if it is not already. It returns the stored
// completion time and whether this call was the one that completed it.
func (r *ProgressRepository) CompleteLesson(ctx context.Context, userID, courseID primitive.ObjectID, lessonID string, now time.Time) (time.Time, bool, error) {
	prefix := "progress.$.lessonProgress." + lessonID

	res, err := r.col.UpdateOne(ctx,
		bson.M{
			"_id": userID,
			"progress": bson.M{"$elemMatch": bson.M{
				"courseId":         courseID,
				"completedLessons": bson.M{"$ne": lessonID},
			}},
		},
		bson.M{
			"$addToSet": bson.M{"progress.$.completedLessons": lessonID},
			"$set": bson.M{
				prefix + ".completed":     true,
				prefix + ".completedAt":   now,
				prefix + ".lastUpdated":   now,
				"progress.$.lastAccessed": now,
				"updatedAt":               now,
			},
		},
	)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to complete lesson: %w", err)
	}
	if res.ModifiedCount > 0 {
		return now, true, nil
	}

	// Already completed (or the entry is missing): report what is stored.
	entry, err := r.GetCourseProgress(ctx, userID, courseID)
	if err != nil {
		return time.Time{}, false, err
	}
	if !entry.HasCompleted(lessonID) {
		return time.Time{}, false, ErrNotFound
	}
	if lp, ok := entry.LessonProgress[lessonID]; ok && lp.CompletedAt != nil {
		return *lp.CompletedAt, false, nil
	}
	return entry.LastAccessed, false, nil
}
