package handlers

import (
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/AnshRaj112/coursely-backend/internal/middleware"
	"github.com/AnshRaj112/coursely-backend/internal/response"
	"github.com/AnshRaj112/coursely-backend/internal/services"
)

// maxUploadBytes bounds lesson media uploads.
const maxUploadBytes = 512 << 20

type AdminHandler struct {
	admin       *services.AdminService
	media       services.MediaHost
	system      *services.SystemService
	mediaFolder string
	resp        *response.Responder
}

func NewAdminHandler(admin *services.AdminService, media services.MediaHost, system *services.SystemService, mediaFolder string, resp *response.Responder) *AdminHandler {
	return &AdminHandler{admin: admin, media: media, system: system, mediaFolder: mediaFolder, resp: resp}
}

// ListUsers handles GET /api/admin/users?limit=&skip=.
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt64(r, "limit", 20)
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	skip, err := queryInt64(r, "skip", 0)
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	page, err := h.admin.ListUsers(r.Context(), limit, skip)
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.JSON(w, http.StatusOK, map[string]interface{}{"success": true, "data": page})
}

// DeleteUser handles DELETE /api/admin/users/{userId}; the user's devices go with it.
func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.admin.DeleteUser(r.Context(), middleware.CurrentUser(r), chi.URLParam(r, "userId")); err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.JSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": "User deleted"})
}

func (h *AdminHandler) ListUserDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := h.admin.ListUserDevices(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.JSON(w, http.StatusOK, map[string]interface{}{"success": true, "data": devices})
}

func (h *AdminHandler) RevokeUserDevice(w http.ResponseWriter, r *http.Request) {
	if err := h.admin.RevokeUserDevice(r.Context(), chi.URLParam(r, "userId"), chi.URLParam(r, "deviceId")); err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.JSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": "Device revoked"})
}

// UploadMedia handles POST /api/admin/media (multipart field "file", optional ?folder=).
func (h *AdminHandler) UploadMedia(w http.ResponseWriter, r *http.Request) {
	if h.media == nil {
		h.resp.Error(w, r, &services.Error{Kind: services.KindUpstream, Code: "MEDIA_DISABLED", Message: "Media uploads are not available"})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		h.resp.Error(w, r, services.ErrValidation("Invalid multipart form"))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, _, err := r.FormFile("file")
	if err != nil {
		h.resp.Error(w, r, services.ErrValidation("file is required"))
		return
	}
	defer file.Close()

	folder := h.mediaFolder
	if sub := strings.Trim(path.Clean("/"+r.URL.Query().Get("folder")), "/"); sub != "" {
		folder = path.Join(h.mediaFolder, sub)
	}

	uploaded, err := h.media.Upload(r.Context(), file, folder)
	if err != nil {
		h.resp.Error(w, r, services.ErrUpstream("Failed to upload file", err))
		return
	}
	h.resp.JSON(w, http.StatusCreated, map[string]interface{}{"success": true, "data": uploaded})
}

// System handles GET /api/admin/system.
func (h *AdminHandler) System(w http.ResponseWriter, r *http.Request) {
	h.resp.JSON(w, http.StatusOK, map[string]interface{}{"success": true, "data": h.system.Snapshot(r.Context())})
}
