package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/AnshRaj112/coursely-backend/internal/middleware"
	"github.com/AnshRaj112/coursely-backend/internal/models"
	"github.com/AnshRaj112/coursely-backend/internal/response"
	"github.com/AnshRaj112/coursely-backend/internal/services"
)

// courseView annotates a course with whether the caller can open its premium lessons.
type courseView struct {
	models.Course
	Locked bool `json:"locked"`
}

func newCourseView(c models.Course, ac *middleware.AuthContext) courseView {
	locked := c.IsPremium && (ac == nil || !ac.HasActiveSubscription)
	if locked {
		c.Modules = redactPDFLinks(c.Modules)
	}
	return courseView{Course: c, Locked: locked}
}

// redactPDFLinks copies modules with PDF URLs removed; video URLs never leave the server.
func redactPDFLinks(modules []models.Module) []models.Module {
	out := make([]models.Module, len(modules))
	for i, m := range modules {
		lessons := make([]models.Lesson, len(m.Lessons))
		for j, l := range m.Lessons {
			if l.PDF != nil {
				l.PDF = &models.PDFContent{}
			}
			lessons[j] = l
		}
		m.Lessons = lessons
		out[i] = m
	}
	return out
}

type CourseHandler struct {
	catalog  *services.CatalogService
	playback *services.PlaybackService
	resp     *response.Responder
}

func NewCourseHandler(catalog *services.CatalogService, playback *services.PlaybackService, resp *response.Responder) *CourseHandler {
	return &CourseHandler{catalog: catalog, playback: playback, resp: resp}
}

// List handles GET /api/courses?category=&limit=&skip=.
func (h *CourseHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt64(r, "limit", 50)
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	skip, err := queryInt64(r, "skip", 0)
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	if limit == 0 || limit > 100 {
		limit = 50
	}

	var category *primitive.ObjectID
	if raw := r.URL.Query().Get("category"); raw != "" {
		id, err := services.ParseObjectID("category", raw)
		if err != nil {
			h.resp.Error(w, r, err)
			return
		}
		category = &id
	}

	courses, err := h.catalog.ListCourses(r.Context(), category, limit, skip)
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}

	ac := middleware.FromContext(r.Context())
	views := make([]courseView, 0, len(courses))
	for _, c := range courses {
		views = append(views, newCourseView(c, ac))
	}
	h.resp.JSON(w, http.StatusOK, map[string]interface{}{"success": true, "data": views})
}

func (h *CourseHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := services.ParseObjectID("courseId", chi.URLParam(r, "courseId"))
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	course, err := h.catalog.GetCourse(r.Context(), id)
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.JSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    newCourseView(*course, middleware.FromContext(r.Context())),
	})
}

// IsPremiumRequest feeds the gateway's subscription gate for lesson routes.
func (h *CourseHandler) IsPremiumRequest(r *http.Request) (bool, error) {
	return h.playback.IsPremium(r.Context(), chi.URLParam(r, "courseId"))
}

// Playback handles GET /api/courses/{courseId}/lesson/{lessonId}/playback.
func (h *CourseHandler) Playback(w http.ResponseWriter, r *http.Request) {
	pb, err := h.playback.Resolve(r.Context(), middleware.CurrentUser(r), chi.URLParam(r, "courseId"), chi.URLParam(r, "lessonId"))
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.JSON(w, http.StatusOK, map[string]interface{}{"success": true, "url": pb.URL, "data": pb})
}
