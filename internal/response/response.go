package response

import (
	"encoding/json"
	"errors"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/AnshRaj112/coursely-backend/internal/services"
	"github.com/AnshRaj112/coursely-backend/pkg/logger"
)

const internalMessage = "Internal server error"

// ErrorBody is the envelope every failed request receives.
type ErrorBody struct {
	Success bool                   `json:"success"`
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Error   string                 `json:"error,omitempty"` // development only
}

// Responder writes JSON bodies and maps service errors onto the error envelope.
type Responder struct {
	log   *logger.Logger
	debug bool
}

// New returns a Responder. With debug set, internal error text is included in responses.
func New(log *logger.Logger, debug bool) *Responder {
	return &Responder{log: log.Component("http"), debug: debug}
}

func (rs *Responder) Debug() bool {
	return rs.debug
}

func JSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (rs *Responder) JSON(w http.ResponseWriter, status int, payload interface{}) {
	JSON(w, status, payload)
}

// Error writes err. A *services.Error keeps its code and message; anything else is logged
// and replaced with a generic 500.
func (rs *Responder) Error(w http.ResponseWriter, r *http.Request, err error) {
	var se *services.Error
	if errors.As(err, &se) {
		body := map[string]interface{}{
			"success": false,
			"code":    se.Code,
			"message": se.Message,
		}
		if len(se.Details) > 0 {
			body["details"] = se.Details
			// Policy rejections also carry their details at the top level.
			for k, v := range se.Details {
				if _, taken := body[k]; !taken {
					body[k] = v
				}
			}
		}
		status := se.Status()
		if status >= http.StatusInternalServerError {
			rs.log.Error().Err(err).Str("request_id", chimw.GetReqID(r.Context())).Str("path", r.URL.Path).Msg("request failed")
			if rs.debug && se.Err != nil {
				body["error"] = se.Err.Error()
			}
		}
		JSON(w, status, body)
		return
	}

	rs.log.Error().Err(err).Str("request_id", chimw.GetReqID(r.Context())).Str("method", r.Method).Str("path", r.URL.Path).Msg("unhandled error")
	body := ErrorBody{Code: "INTERNAL_ERROR", Message: internalMessage}
	if rs.debug {
		body.Error = err.Error()
	}
	JSON(w, http.StatusInternalServerError, body)
}

// Internal writes a sanitized 500 with an optional development-only detail string.
func (rs *Responder) Internal(w http.ResponseWriter, detail string) {
	body := ErrorBody{Code: "INTERNAL_ERROR", Message: internalMessage}
	if rs.debug {
		body.Error = detail
	}
	JSON(w, http.StatusInternalServerError, body)
}
