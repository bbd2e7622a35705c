package services

import (
	"context"
	"time"

	"github.com/AnshRaj112/coursely-backend/internal/models"
)

type Playback struct {
	CourseID string            `json:"courseId"`
	LessonID string            `json:"lessonId"`
	Type     models.LessonType `json:"type"`
	URL      string            `json:"url"`
	Duration float64           `json:"duration,omitempty"`
}

// PlaybackService hands out lesson media URLs. Video URLs are watermarked with the viewer's
// email so leaked recordings can be traced.
type PlaybackService struct {
	catalog *CatalogService
	media   MediaHost
	now     func() time.Time
}

func NewPlaybackService(catalog *CatalogService, media MediaHost) *PlaybackService {
	return &PlaybackService{catalog: catalog, media: media, now: func() time.Time { return time.Now().UTC() }}
}

// IsPremium reports whether the course behind courseID requires a subscription.
func (s *PlaybackService) IsPremium(ctx context.Context, courseID string) (bool, error) {
	id, err := ParseObjectID("courseId", courseID)
	if err != nil {
		return false, err
	}
	course, err := s.catalog.GetCourse(ctx, id)
	if err != nil {
		return false, err
	}
	return course.IsPremium, nil
}

func (s *PlaybackService) Resolve(ctx context.Context, viewer *models.User, courseID, lessonID string) (*Playback, error) {
	id, err := ParseObjectID("courseId", courseID)
	if err != nil {
		return nil, err
	}
	course, lesson, err := s.catalog.GetLesson(ctx, id, lessonID)
	if err != nil {
		return nil, err
	}
	if course.IsPremium && (viewer == nil || !IsSubscriptionActive(viewer.Subscription, s.now())) {
		return nil, ErrSubscriptionRequired()
	}

	out := &Playback{CourseID: courseID, LessonID: lessonID, Type: lesson.Type}
	switch {
	case lesson.Type == models.LessonPDF && lesson.PDF != nil:
		out.URL = lesson.PDF.URL
	case lesson.Type == models.LessonVideo && lesson.Video != nil:
		out.Duration = lesson.Video.Duration
		if lesson.Video.PublicID == "" || s.media == nil {
			out.URL = lesson.Video.URL
			break
		}
		viewerID := ""
		if viewer != nil {
			viewerID = viewer.Email
		}
		url, err := s.media.WatermarkedURL(lesson.Video.PublicID, viewerID)
		if err != nil {
			return nil, ErrUpstream("Failed to prepare video", err)
		}
		out.URL = url
	}
	if out.URL == "" {
		return nil, ErrNotFound("Lesson has no media")
	}
	return out, nil
}
