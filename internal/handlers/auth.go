package handlers

import (
	"net/http"
	"time"

	"github.com/AnshRaj112/coursely-backend/internal/middleware"
	"github.com/AnshRaj112/coursely-backend/internal/models"
	"github.com/AnshRaj112/coursely-backend/internal/response"
	"github.com/AnshRaj112/coursely-backend/internal/services"
)

type registerRequest struct {
	Name                string   `json:"name" validate:"required,max=80"`
	Email               string   `json:"email" validate:"required,email,max=254"`
	Password            string   `json:"password" validate:"required,min=8,max=128"`
	PreferredCategories []string `json:"preferredCategories" validate:"max=20"`
	DeviceID            string   `json:"deviceId" validate:"max=128"`
	DeviceName          string   `json:"deviceName" validate:"max=100"`
}

type loginRequest struct {
	Email      string `json:"email" validate:"required"`
	Password   string `json:"password" validate:"required"`
	DeviceID   string `json:"deviceId" validate:"required,max=128"`
	DeviceName string `json:"deviceName" validate:"max=100"`
}

// userView is the public shape of a user: the stored fields plus the derived subscription flag.
type userView struct {
	*models.User
	HasActiveSubscription bool `json:"hasActiveSubscription"`
}

func newUserView(u *models.User, now time.Time) userView {
	return userView{User: u, HasActiveSubscription: services.IsSubscriptionActive(u.Subscription, now)}
}

type authResponse struct {
	Success   bool           `json:"success"`
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expiresAt"`
	User      userView       `json:"user"`
	Device    *models.Device `json:"device,omitempty"`
}

type AuthHandler struct {
	auth *services.AuthService
	resp *response.Responder
}

func NewAuthHandler(auth *services.AuthService, resp *response.Responder) *AuthHandler {
	return &AuthHandler{auth: auth, resp: resp}
}

func requestMetadata(r *http.Request) services.RequestMetadata {
	return services.RequestMetadata{IPAddress: middleware.ClientIPFrom(r), UserAgent: r.UserAgent()}
}

func (h *AuthHandler) writeAuth(w http.ResponseWriter, status int, res *services.AuthResult) {
	h.resp.JSON(w, status, authResponse{
		Success:   true,
		Token:     res.Token,
		ExpiresAt: res.Claims.ExpiresAt.Time,
		User:      newUserView(res.User, time.Now()),
		Device:    res.Device,
	})
}

// Register handles POST /api/auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.resp.Error(w, r, err)
		return
	}

	res, err := h.auth.Register(r.Context(), services.RegisterInput{
		Name:                req.Name,
		Email:               req.Email,
		Password:            req.Password,
		PreferredCategories: req.PreferredCategories,
		DeviceID:            req.DeviceID,
		DeviceName:          req.DeviceName,
		Meta:                requestMetadata(r),
	})
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.writeAuth(w, http.StatusCreated, res)
}

// Login handles POST /api/auth/login. A device over the limit gets 403 DEVICE_LIMIT_REACHED.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.resp.Error(w, r, err)
		return
	}

	res, err := h.auth.Login(r.Context(), services.LoginInput{
		Email:      req.Email,
		Password:   req.Password,
		DeviceID:   req.DeviceID,
		DeviceName: req.DeviceName,
		Meta:       requestMetadata(r),
	})
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.writeAuth(w, http.StatusOK, res)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ac := middleware.FromContext(r.Context())
	if err := h.auth.Logout(r.Context(), ac.Claims); err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.JSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": "Logged out"})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	ac := middleware.FromContext(r.Context())
	h.resp.JSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"user":    userView{User: ac.User, HasActiveSubscription: ac.HasActiveSubscription},
	})
}
