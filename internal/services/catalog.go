package services

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/AnshRaj112/coursely-backend/internal/models"
	"github.com/AnshRaj112/coursely-backend/internal/repository"
	"github.com/AnshRaj112/coursely-backend/pkg/logger"
)

// CatalogService reads course content. Lesson id lists are cached in Redis because every
// progress read and write needs them.
type CatalogService struct {
	courses CourseStore
	cache   *CacheService
	ttl     time.Duration
	log     *logger.Logger
}

func NewCatalogService(courses CourseStore, cache *CacheService, ttl time.Duration, log *logger.Logger) *CatalogService {
	return &CatalogService{courses: courses, cache: cache, ttl: ttl, log: log.Component("catalog")}
}

func (s *CatalogService) GetCourse(ctx context.Context, courseID primitive.ObjectID) (*models.Course, error) {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound("Course not found")
		}
		return nil, err
	}
	return course, nil
}

// GetLesson loads a course and one of its lessons, reporting whichever is missing.
func (s *CatalogService) GetLesson(ctx context.Context, courseID primitive.ObjectID, lessonID string) (*models.Course, *models.Lesson, error) {
	course, err := s.GetCourse(ctx, courseID)
	if err != nil {
		return nil, nil, err
	}
	lesson, ok := course.FindLesson(lessonID)
	if !ok {
		return nil, nil, ErrNotFound("Lesson not found")
	}
	return course, lesson, nil
}

func (s *CatalogService) ListCourses(ctx context.Context, category *primitive.ObjectID, limit, skip int64) ([]models.Course, error) {
	return s.courses.List(ctx, category, limit, skip)
}

// LessonIDs returns the ids of every lesson in the course, in module order.
func (s *CatalogService) LessonIDs(ctx context.Context, courseID primitive.ObjectID) ([]string, error) {
	key := CacheKey("course_lessons", courseID.Hex())
	if s.cache != nil {
		var ids []string
		found, err := s.cache.Get(ctx, key, &ids)
		if err != nil {
			s.log.Warn().Err(err).Str("course_id", courseID.Hex()).Msg("catalog cache read failed")
		} else if found {
			return ids, nil
		}
	}

	course, err := s.GetCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	ids := course.LessonIDs()
	if ids == nil {
		ids = []string{}
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, ids, s.ttl); err != nil {
			s.log.Warn().Err(err).Str("course_id", courseID.Hex()).Msg("catalog cache write failed")
		}
	}
	return ids, nil
}

// RequireLesson checks that lessonID belongs to the course.
func (s *CatalogService) RequireLesson(ctx context.Context, courseID primitive.ObjectID, lessonID string) error {
	ids, err := s.LessonIDs(ctx, courseID)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if id == lessonID {
			return nil
		}
	}
	return ErrNotFound("Lesson not found")
}
