package services

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/AnshRaj112/coursely-backend/internal/repository/memstore"
	"github.com/AnshRaj112/coursely-backend/pkg/logger"
)

type progressFixture struct {
	svc     *ProgressService
	store   *memstore.ProgressStore
	courses *memstore.CourseStore
	events  *recordingPublisher
	course  string
	lessons []string
	userID  primitive.ObjectID
}

func newProgressFixture(t *testing.T, lessons int) *progressFixture {
	t.Helper()
	_, rdb := newTestRedis(t)

	course := newCourse(lessons)
	courses := memstore.NewCourseStore(course)
	catalog := NewCatalogService(courses, NewCacheService(rdb), time.Minute, logger.Nop())
	store := memstore.NewProgressStore()
	events := &recordingPublisher{}

	return &progressFixture{
		svc:     NewProgressService(store, catalog, events, logger.Nop()),
		store:   store,
		courses: courses,
		events:  events,
		course:  course.ID.Hex(),
		lessons: course.LessonIDs(),
		userID:  primitive.NewObjectID(),
	}
}

func TestMarkCompleted_Idempotent(t *testing.T) {
	f := newProgressFixture(t, 4)
	ctx := context.Background()

	first, err := f.svc.MarkCompleted(ctx, f.userID, f.course, f.lessons[0])
	require.NoError(t, err)
	assert.True(t, first.Completed)

	before, err := f.store.GetCourseProgress(ctx, f.userID, mustID(t, f.course))
	require.NoError(t, err)

	time.Sleep(2 * time.Millisecond)
	second, err := f.svc.MarkCompleted(ctx, f.userID, f.course, f.lessons[0])
	require.NoError(t, err)
	assert.Equal(t, first.CompletedAt, second.CompletedAt)

	after, err := f.store.GetCourseProgress(ctx, f.userID, mustID(t, f.course))
	require.NoError(t, err)
	assert.Equal(t, before.CompletedLessons, after.CompletedLessons)
	assert.Equal(t, before.LessonProgress, after.LessonProgress)

	assert.Equal(t, 1, f.events.count(), "only the first completion is broadcast")
}

func TestMarkCompleted_PreservesPosition(t *testing.T) {
	f := newProgressFixture(t, 2)
	ctx := context.Background()

	_, err := f.svc.UpdatePosition(ctx, f.userID, f.course, f.lessons[1], 95.5)
	require.NoError(t, err)
	_, err = f.svc.MarkCompleted(ctx, f.userID, f.course, f.lessons[1])
	require.NoError(t, err)

	entry, err := f.store.GetCourseProgress(ctx, f.userID, mustID(t, f.course))
	require.NoError(t, err)
	lp := entry.LessonProgress[f.lessons[1]]
	assert.Equal(t, 95.5, lp.Position)
	assert.True(t, lp.Completed)

	// A later position update keeps the lesson completed.
	_, err = f.svc.UpdatePosition(ctx, f.userID, f.course, f.lessons[1], 3)
	require.NoError(t, err)
	entry, err = f.store.GetCourseProgress(ctx, f.userID, mustID(t, f.course))
	require.NoError(t, err)
	assert.True(t, entry.LessonProgress[f.lessons[1]].Completed)
	assert.Equal(t, 3.0, entry.LessonProgress[f.lessons[1]].Position)
}

func TestCompletedSetMatchesLessonFlags(t *testing.T) {
	f := newProgressFixture(t, 6)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 200; i++ {
		lesson := f.lessons[rng.Intn(len(f.lessons))]
		if rng.Intn(2) == 0 {
			_, err := f.svc.UpdatePosition(ctx, f.userID, f.course, lesson, float64(rng.Intn(600)))
			require.NoError(t, err)
		} else {
			_, err := f.svc.MarkCompleted(ctx, f.userID, f.course, lesson)
			require.NoError(t, err)
		}

		entry, err := f.store.GetCourseProgress(ctx, f.userID, mustID(t, f.course))
		require.NoError(t, err)
		flagged := map[string]bool{}
		for id, lp := range entry.LessonProgress {
			if lp.Completed {
				flagged[id] = true
			}
		}
		assert.Len(t, entry.CompletedLessons, len(flagged))
		for _, id := range entry.CompletedLessons {
			assert.True(t, flagged[id], "lesson %s in set but not flagged", id)
		}
	}
}

func TestGetProgress_Percentages(t *testing.T) {
	f := newProgressFixture(t, 4)
	ctx := context.Background()

	_, err := f.svc.MarkCompleted(ctx, f.userID, f.course, f.lessons[0])
	require.NoError(t, err)
	summary, err := f.svc.GetProgress(ctx, f.userID, f.course)
	require.NoError(t, err)
	assert.Equal(t, 25, summary.PercentComplete)
	assert.Equal(t, 4, summary.TotalLessons)

	for _, l := range f.lessons {
		_, err := f.svc.MarkCompleted(ctx, f.userID, f.course, l)
		require.NoError(t, err)
	}
	for i := 0; i < 3; i++ {
		summary, err = f.svc.GetProgress(ctx, f.userID, f.course)
		require.NoError(t, err)
		assert.Equal(t, 100, summary.PercentComplete)
		assert.Len(t, summary.CompletedLessons, 4)
	}
}

func TestGetProgress_PositionOnlyEnrollment(t *testing.T) {
	f := newProgressFixture(t, 4)
	ctx := context.Background()

	update, err := f.svc.UpdatePosition(ctx, f.userID, f.course, f.lessons[0], 30)
	require.NoError(t, err)
	assert.Equal(t, 30.0, update.Progress)

	summary, err := f.svc.GetProgress(ctx, f.userID, f.course)
	require.NoError(t, err)
	assert.Empty(t, summary.CompletedLessons)
	assert.Equal(t, 4, summary.TotalLessons)
	assert.Equal(t, 0, summary.PercentComplete)
	require.NotNil(t, summary.LastWatchedLesson)
	assert.Equal(t, f.lessons[0], *summary.LastWatchedLesson)
}

func TestGetProgress_NoEntry(t *testing.T) {
	f := newProgressFixture(t, 3)

	summary, err := f.svc.GetProgress(context.Background(), f.userID, f.course)
	require.NoError(t, err)
	assert.Empty(t, summary.CompletedLessons)
	assert.Equal(t, 3, summary.TotalLessons)
	assert.Equal(t, 0, summary.PercentComplete)
	assert.Nil(t, summary.LastWatchedLesson)
}

func TestProgress_NotFoundAndValidation(t *testing.T) {
	f := newProgressFixture(t, 2)
	ctx := context.Background()
	missingCourse := primitive.NewObjectID().Hex()

	_, err := f.svc.GetProgress(ctx, f.userID, missingCourse)
	assert.True(t, IsKind(err, KindNotFound))

	_, err = f.svc.GetProgress(ctx, f.userID, "not-an-id")
	assert.True(t, IsKind(err, KindValidation))

	_, err = f.svc.UpdatePosition(ctx, f.userID, f.course, primitive.NewObjectID().Hex(), 10)
	assert.True(t, IsKind(err, KindNotFound))

	_, err = f.svc.MarkCompleted(ctx, f.userID, missingCourse, f.lessons[0])
	assert.True(t, IsKind(err, KindNotFound))

	_, err = f.svc.UpdatePosition(ctx, f.userID, f.course, f.lessons[0], -1)
	assert.True(t, IsKind(err, KindValidation))

	// Nothing above enrolled the user.
	entries, err := f.store.ListCourseProgress(ctx, f.userID)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestMarkCompleted_ConcurrentDifferentLessons(t *testing.T) {
	f := newProgressFixture(t, 20)
	ctx := context.Background()

	var wg sync.WaitGroup
	for _, lesson := range f.lessons {
		wg.Add(1)
		go func(lesson string) {
			defer wg.Done()
			_, err := f.svc.MarkCompleted(ctx, f.userID, f.course, lesson)
			assert.NoError(t, err)
		}(lesson)
	}
	wg.Wait()

	summary, err := f.svc.GetProgress(ctx, f.userID, f.course)
	require.NoError(t, err)
	assert.ElementsMatch(t, f.lessons, summary.CompletedLessons)
	assert.Equal(t, 100, summary.PercentComplete)

	entries, err := f.store.ListCourseProgress(ctx, f.userID)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "concurrent first writes enroll once")
}

func TestListEnrollments_SkipsRemovedCourses(t *testing.T) {
	f := newProgressFixture(t, 2)
	ctx := context.Background()

	gone := newCourse(1)
	f.courses.Add(gone)
	_, err := f.svc.MarkCompleted(ctx, f.userID, gone.ID.Hex(), gone.LessonIDs()[0])
	require.NoError(t, err)
	_, err = f.svc.MarkCompleted(ctx, f.userID, f.course, f.lessons[0])
	require.NoError(t, err)

	f.courses.Remove(gone.ID)
	// Lesson ids for the removed course are still cached; drop them as an edit would.
	_, rdb := newTestRedis(t)
	f.svc.catalog.cache = NewCacheService(rdb)

	summaries, err := f.svc.ListEnrollments(ctx, f.userID)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, f.course, summaries[0].CourseID)
	assert.Equal(t, 50, summaries[0].PercentComplete)
}

func mustID(t *testing.T, hex string) primitive.ObjectID {
	t.Helper()
	id, err := primitive.ObjectIDFromHex(hex)
	require.NoError(t, err)
	return id
}
