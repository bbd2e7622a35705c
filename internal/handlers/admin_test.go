package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnshRaj112/coursely-backend/internal/response"
	"github.com/AnshRaj112/coursely-backend/internal/services"
	"github.com/AnshRaj112/coursely-backend/pkg/logger"
)

type recordingMedia struct {
	folder string
	data   []byte
	err    error
}

func (m *recordingMedia) Upload(_ context.Context, file io.Reader, folder string) (*services.UploadedMedia, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.folder = folder
	m.data, _ = io.ReadAll(file)
	return &services.UploadedMedia{URL: "https://res.example.com/" + folder + "/clip.mp4", PublicID: folder + "/clip"}, nil
}

func (m *recordingMedia) WatermarkedURL(publicID, _ string) (string, error) {
	return "https://res.example.com/" + publicID, nil
}

func multipartUpload(t *testing.T, target, field string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(field, "clip.mp4")
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUploadMedia(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		field      string
		mediaErr   error
		wantStatus int
		wantFolder string
	}{
		{"default folder", "/api/admin/media", "file", nil, http.StatusCreated, "coursely"},
		{"subfolder", "/api/admin/media?folder=go-basics/week1", "file", nil, http.StatusCreated, "coursely/go-basics/week1"},
		{"traversal is contained", "/api/admin/media?folder=../../etc", "file", nil, http.StatusCreated, "coursely/etc"},
		{"missing file", "/api/admin/media", "video", nil, http.StatusBadRequest, ""},
		{"host failure", "/api/admin/media", "file", errors.New("boom"), http.StatusBadGateway, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			media := &recordingMedia{err: tt.mediaErr}
			h := NewAdminHandler(nil, media, nil, "coursely", response.New(logger.Nop(), false))

			rec := httptest.NewRecorder()
			h.UploadMedia(rec, multipartUpload(t, tt.target, tt.field, []byte("frames")))

			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			assert.Equal(t, tt.wantFolder, media.folder)
			if tt.wantStatus == http.StatusCreated {
				assert.Equal(t, []byte("frames"), media.data)
				var body map[string]interface{}
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
				assert.Equal(t, tt.wantFolder+"/clip", body["data"].(map[string]interface{})["publicId"])
			}
		})
	}
}

func TestUploadMedia_Disabled(t *testing.T) {
	h := NewAdminHandler(nil, nil, nil, "coursely", response.New(logger.Nop(), false))
	rec := httptest.NewRecorder()
	h.UploadMedia(rec, multipartUpload(t, "/api/admin/media", "file", []byte("x")))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "MEDIA_DISABLED")
}

func TestHealth_ReportsDegradedDependency(t *testing.T) {
	h := NewHealthHandler(map[string]Pinger{
		"mongo": func(context.Context) error { return nil },
		"redis": func(context.Context) error { return errors.New("connection refused") },
	})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, map[string]interface{}{"mongo": "ok", "redis": "down"}, body["dependencies"])
}
