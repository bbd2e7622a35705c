package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/AnshRaj112/coursely-backend/internal/middleware"
	"github.com/AnshRaj112/coursely-backend/internal/response"
	"github.com/AnshRaj112/coursely-backend/internal/services"
)

type positionRequest struct {
	Progress *float64 `json:"progress" validate:"required,gte=0"`
}

type ProgressHandler struct {
	progress *services.ProgressService
	resp     *response.Responder
}

func NewProgressHandler(progress *services.ProgressService, resp *response.Responder) *ProgressHandler {
	return &ProgressHandler{progress: progress, resp: resp}
}

// UpdatePosition handles POST /api/courses/{courseId}/lesson/{lessonId}/progress.
func (h *ProgressHandler) UpdatePosition(w http.ResponseWriter, r *http.Request) {
	var req positionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.resp.Error(w, r, err)
		return
	}
	user := middleware.CurrentUser(r)
	update, err := h.progress.UpdatePosition(r.Context(), user.ID, chi.URLParam(r, "courseId"), chi.URLParam(r, "lessonId"), *req.Progress)
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.JSON(w, http.StatusOK, update)
}

// MarkCompleted handles POST /api/courses/{courseId}/lesson/{lessonId}/complete. Repeat calls
// return the original completion time.
func (h *ProgressHandler) MarkCompleted(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUser(r)
	completion, err := h.progress.MarkCompleted(r.Context(), user.ID, chi.URLParam(r, "courseId"), chi.URLParam(r, "lessonId"))
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.JSON(w, http.StatusOK, completion)
}

func (h *ProgressHandler) GetCourseProgress(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUser(r)
	summary, err := h.progress.GetProgress(r.Context(), user.ID, chi.URLParam(r, "courseId"))
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.JSON(w, http.StatusOK, summary)
}

// ListEnrollments handles GET /api/me/progress.
func (h *ProgressHandler) ListEnrollments(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUser(r)
	summaries, err := h.progress.ListEnrollments(r.Context(), user.ID)
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.JSON(w, http.StatusOK, map[string]interface{}{"success": true, "data": summaries})
}
