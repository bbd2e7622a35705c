package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/AnshRaj112/coursely-backend/internal/middleware"
	"github.com/AnshRaj112/coursely-backend/internal/models"
	"github.com/AnshRaj112/coursely-backend/internal/response"
	"github.com/AnshRaj112/coursely-backend/internal/services"
)

type deviceView struct {
	models.Device
	IsCurrent bool `json:"isCurrent"`
}

type DeviceHandler struct {
	devices *services.DeviceService
	resp    *response.Responder
}

func NewDeviceHandler(devices *services.DeviceService, resp *response.Responder) *DeviceHandler {
	return &DeviceHandler{devices: devices, resp: resp}
}

// List handles GET /api/devices. The device the request was made from is flagged.
func (h *DeviceHandler) List(w http.ResponseWriter, r *http.Request) {
	ac := middleware.FromContext(r.Context())
	devices, err := h.devices.ListDevices(r.Context(), ac.User.ID)
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}

	current := ""
	if ac.Device != nil {
		current = ac.Device.DeviceID
	}
	views := make([]deviceView, 0, len(devices))
	for _, d := range devices {
		views = append(views, deviceView{Device: d, IsCurrent: current != "" && d.DeviceID == current})
	}
	h.resp.JSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"data":       views,
		"maxDevices": h.devices.MaxDevices(),
	})
}

// Remove handles DELETE /api/devices/{deviceId}, freeing the slot.
func (h *DeviceHandler) Remove(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUser(r)
	if err := h.devices.RemoveDevice(r.Context(), user.ID, chi.URLParam(r, "deviceId")); err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.JSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": "Device removed"})
}
