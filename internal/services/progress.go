package services

import (
	"context"
	"errors"
	"math"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/AnshRaj112/coursely-backend/internal/repository"
	"github.com/AnshRaj112/coursely-backend/pkg/logger"
)

// CourseProgressSummary is the read model for one course. It is derived on every read.
type CourseProgressSummary struct {
	CourseID          string     `json:"courseId"`
	CompletedLessons  []string   `json:"completedLessons"`
	TotalLessons      int        `json:"totalVideos"`
	PercentComplete   int        `json:"percentComplete"`
	LastWatchedLesson *string    `json:"lastWatchedVideo"`
	EnrolledAt        *time.Time `json:"enrolledAt,omitempty"`
	LastAccessed      *time.Time `json:"lastAccessed,omitempty"`
}

type PositionUpdate struct {
	CourseID string  `json:"courseId"`
	LessonID string  `json:"lessonId"`
	Progress float64 `json:"progress"`
}

type LessonCompletion struct {
	CourseID    string    `json:"courseId"`
	LessonID    string    `json:"lessonId"`
	Completed   bool      `json:"completed"`
	CompletedAt time.Time `json:"completedAt"`
}

type ProgressService struct {
	progress ProgressStore
	catalog  *CatalogService
	events   ProgressPublisher
	log      *logger.Logger
	now      func() time.Time
}

func NewProgressService(progress ProgressStore, catalog *CatalogService, events ProgressPublisher, log *logger.Logger) *ProgressService {
	return &ProgressService{
		progress: progress,
		catalog:  catalog,
		events:   events,
		log:      log.Component("progress"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// UpdatePosition records a playback offset, enrolling the user on first touch.
// It never marks the lesson completed.
func (s *ProgressService) UpdatePosition(ctx context.Context, userID primitive.ObjectID, courseID, lessonID string, position float64) (*PositionUpdate, error) {
	if position < 0 || math.IsNaN(position) || math.IsInf(position, 0) {
		return nil, ErrValidation("progress must be a non-negative number of seconds")
	}
	cid, err := s.requireLesson(ctx, courseID, lessonID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if _, err := s.progress.EnsureEnrollment(ctx, userID, cid, now); err != nil {
		return nil, err
	}
	if err := s.progress.SetLessonPosition(ctx, userID, cid, lessonID, position, now); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound()
		}
		return nil, err
	}

	s.publish(ctx, ProgressEvent{
		Type:      "position",
		UserID:    userID.Hex(),
		CourseID:  courseID,
		LessonID:  lessonID,
		Position:  position,
		Timestamp: now,
	})
	return &PositionUpdate{CourseID: courseID, LessonID: lessonID, Progress: position}, nil
}

// MarkCompleted is idempotent: repeated calls keep the first completion time.
func (s *ProgressService) MarkCompleted(ctx context.Context, userID primitive.ObjectID, courseID, lessonID string) (*LessonCompletion, error) {
	cid, err := s.requireLesson(ctx, courseID, lessonID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if _, err := s.progress.EnsureEnrollment(ctx, userID, cid, now); err != nil {
		return nil, err
	}
	completedAt, newly, err := s.progress.CompleteLesson(ctx, userID, cid, lessonID, now)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound()
		}
		return nil, err
	}

	if newly {
		s.publish(ctx, ProgressEvent{
			Type:        "completed",
			UserID:      userID.Hex(),
			CourseID:    courseID,
			LessonID:    lessonID,
			CompletedAt: &completedAt,
			Timestamp:   now,
		})
	}
	return &LessonCompletion{CourseID: courseID, LessonID: lessonID, Completed: true, CompletedAt: completedAt}, nil
}

// GetProgress summarises one course. A user who never touched the course gets a
// zero-valued summary; a course that does not exist is NotFound.
func (s *ProgressService) GetProgress(ctx context.Context, userID primitive.ObjectID, courseID string) (*CourseProgressSummary, error) {
	cid, err := ParseObjectID("courseId", courseID)
	if err != nil {
		return nil, err
	}
	lessonIDs, err := s.catalog.LessonIDs(ctx, cid)
	if err != nil {
		return nil, err
	}

	entry, err := s.progress.GetCourseProgress(ctx, userID, cid)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return summarize(courseID, lessonIDs, nil, nil, "", nil), nil
		}
		return nil, err
	}
	return summarize(courseID, lessonIDs, entry.CompletedLessons, &entry.EnrolledAt, entry.LastWatchedLesson(), &entry.LastAccessed), nil
}

// ListEnrollments summarises every course the user has touched. Courses that have since
// been removed from the catalog are skipped.
func (s *ProgressService) ListEnrollments(ctx context.Context, userID primitive.ObjectID) ([]CourseProgressSummary, error) {
	entries, err := s.progress.ListCourseProgress(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound()
		}
		return nil, err
	}

	out := make([]CourseProgressSummary, 0, len(entries))
	for i := range entries {
		entry := &entries[i]
		lessonIDs, err := s.catalog.LessonIDs(ctx, entry.CourseID)
		if err != nil {
			if IsKind(err, KindNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, *summarize(entry.CourseID.Hex(), lessonIDs, entry.CompletedLessons, &entry.EnrolledAt, entry.LastWatchedLesson(), &entry.LastAccessed))
	}
	return out, nil
}

func (s *ProgressService) requireLesson(ctx context.Context, courseID, lessonID string) (primitive.ObjectID, error) {
	cid, err := ParseObjectID("courseId", courseID)
	if err != nil {
		return primitive.NilObjectID, err
	}
	if lessonID == "" {
		return primitive.NilObjectID, ErrValidation("Invalid lessonId")
	}
	if err := s.catalog.RequireLesson(ctx, cid, lessonID); err != nil {
		return primitive.NilObjectID, err
	}
	return cid, nil
}

func (s *ProgressService) publish(ctx context.Context, event ProgressEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.log.Warn().Err(err).Str("user_id", event.UserID).Msg("failed to publish progress event")
	}
}

// summarize counts only completed lessons that are still part of the course, so the
// percentage stays within 0..100 after content edits.
func summarize(courseID string, lessonIDs, completed []string, enrolledAt *time.Time, lastWatched string, lastAccessed *time.Time) *CourseProgressSummary {
	inCourse := make(map[string]struct{}, len(lessonIDs))
	for _, id := range lessonIDs {
		inCourse[id] = struct{}{}
	}

	done := []string{}
	for _, id := range completed {
		if _, ok := inCourse[id]; ok {
			done = append(done, id)
		}
	}

	percent := 0
	if len(lessonIDs) > 0 {
		percent = int(math.Round(100 * float64(len(done)) / float64(len(lessonIDs))))
	}

	summary := &CourseProgressSummary{
		CourseID:         courseID,
		CompletedLessons: done,
		TotalLessons:     len(lessonIDs),
		PercentComplete:  percent,
		EnrolledAt:       enrolledAt,
		LastAccessed:     lastAccessed,
	}
	if lastWatched != "" {
		summary.LastWatchedLesson = &lastWatched
	}
	return summary
}
