package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CourseProgress is embedded in User.Progress, one entry per course the user has touched.
// CompletedLessons and LessonProgress[id].Completed are always written together.
type CourseProgress struct {
	CourseID         primitive.ObjectID        `bson:"courseId" json:"courseId"`
	EnrolledAt       time.Time                 `bson:"enrolledAt" json:"enrolledAt"`
	LastAccessed     time.Time                 `bson:"lastAccessed" json:"lastAccessed"`
	CompletedLessons []string                  `bson:"completedLessons" json:"completedLessons"`
	LessonProgress   map[string]LessonProgress `bson:"lessonProgress" json:"lessonProgress"`
}

// LessonProgress is keyed by the lesson's hex id. Position is a playback offset in seconds.
type LessonProgress struct {
	Position    float64    `bson:"position" json:"position"`
	Completed   bool       `bson:"completed" json:"completed"`
	CompletedAt *time.Time `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
	LastUpdated time.Time  `bson:"lastUpdated" json:"lastUpdated"`
}

// HasCompleted reports whether lessonID is in the completed set.
func (p *CourseProgress) HasCompleted(lessonID string) bool {
	if p == nil {
		return false
	}
	for _, id := range p.CompletedLessons {
		if id == lessonID {
			return true
		}
	}
	return false
}

// LastWatchedLesson returns the lesson with the most recent update, or "" if none.
func (p *CourseProgress) LastWatchedLesson() string {
	if p == nil {
		return ""
	}
	var (
		last   string
		lastAt time.Time
	)
	for id, lp := range p.LessonProgress {
		if last == "" || lp.LastUpdated.After(lastAt) || (lp.LastUpdated.Equal(lastAt) && id < last) {
			last, lastAt = id, lp.LastUpdated
		}
	}
	return last
}
