package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type LessonType string

const (
	LessonVideo LessonType = "video"
	LessonPDF   LessonType = "pdf"
)

type Course struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updatedAt"`
	Title       string             `bson:"title" json:"title"`
	Description string             `bson:"description" json:"description"`
	Category    primitive.ObjectID `bson:"category,omitempty" json:"category,omitempty"`
	Thumbnail   string             `bson:"thumbnail,omitempty" json:"thumbnail,omitempty"`
	IsPremium   bool               `bson:"isPremium" json:"isPremium"`
	Modules     []Module           `bson:"modules" json:"modules"`
}

type Module struct {
	ID      primitive.ObjectID `bson:"_id" json:"id"`
	Title   string             `bson:"title" json:"title"`
	Order   int                `bson:"order" json:"order"`
	Lessons []Lesson           `bson:"lessons" json:"lessons"`
}

// Lesson carries exactly one payload matching its Type.
type Lesson struct {
	ID    primitive.ObjectID `bson:"_id" json:"id"`
	Title string             `bson:"title" json:"title"`
	Order int                `bson:"order" json:"order"`
	Type  LessonType         `bson:"type" json:"type"`
	Video *VideoContent      `bson:"video,omitempty" json:"video,omitempty"`
	PDF   *PDFContent        `bson:"pdf,omitempty" json:"pdf,omitempty"`
}

type VideoContent struct {
	PublicID string  `bson:"publicId" json:"-"`
	URL      string  `bson:"url" json:"-"`
	Duration float64 `bson:"duration" json:"duration"`
}

type PDFContent struct {
	URL string `bson:"url" json:"url"`
}

// LessonIDs returns every lesson id in module order.
func (c *Course) LessonIDs() []string {
	var ids []string
	for _, m := range c.Modules {
		for _, l := range m.Lessons {
			ids = append(ids, l.ID.Hex())
		}
	}
	return ids
}

// FindLesson returns the lesson with the given hex id.
func (c *Course) FindLesson(lessonID string) (*Lesson, bool) {
	for mi := range c.Modules {
		for li := range c.Modules[mi].Lessons {
			if c.Modules[mi].Lessons[li].ID.Hex() == lessonID {
				return &c.Modules[mi].Lessons[li], true
			}
		}
	}
	return nil, false
}
