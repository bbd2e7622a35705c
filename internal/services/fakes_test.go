package services

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/AnshRaj112/coursely-backend/internal/models"
)

// newTestRedis starts an in-process Redis and returns a client for it.
func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

// newCourse builds a course with one module holding n video lessons.
func newCourse(n int) *models.Course {
	lessons := make([]models.Lesson, n)
	for i := range lessons {
		lessons[i] = models.Lesson{
			ID:    primitive.NewObjectID(),
			Title: "Lesson",
			Order: i + 1,
			Type:  models.LessonVideo,
			Video: &models.VideoContent{PublicID: "coursely/lesson", Duration: 600},
		}
	}
	return &models.Course{
		ID:    primitive.NewObjectID(),
		Title: "Go in practice",
		Modules: []models.Module{
			{ID: primitive.NewObjectID(), Title: "Basics", Order: 1, Lessons: lessons},
		},
	}
}

type fakeGeo struct{ location string }

func (g fakeGeo) Locate(context.Context, string) string { return g.location }

type recordingPublisher struct {
	mu     sync.Mutex
	events []ProgressEvent
}

func (p *recordingPublisher) Publish(_ context.Context, event ProgressEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}
