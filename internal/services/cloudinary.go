package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// UploadedMedia describes an asset stored on the media host.
type UploadedMedia struct {
	URL          string `json:"url"`
	PublicID     string `json:"publicId"`
	ResourceType string `json:"resourceType"`
	Format       string `json:"format"`
	Bytes        int    `json:"bytes"`
}

// MediaHost stores lesson media and builds per-viewer playback URLs.
type MediaHost interface {
	Upload(ctx context.Context, file io.Reader, folder string) (*UploadedMedia, error)
	WatermarkedURL(publicID, viewer string) (string, error)
}

type CloudinaryService struct {
	cld *cloudinary.Cloudinary
}

func NewCloudinaryService(cloudName, apiKey, apiSecret string) (*CloudinaryService, error) {
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Cloudinary: %w", err)
	}
	cld.Config.URL.Secure = true

	return &CloudinaryService{
		cld: cld,
	}, nil
}

func (s *CloudinaryService) Upload(ctx context.Context, file io.Reader, folder string) (*UploadedMedia, error) {
	result, err := s.cld.Upload.Upload(ctx, file, uploader.UploadParams{
		Folder:       folder,
		ResourceType: "auto", // Automatically detect image, video, or raw
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload to Cloudinary: %w", err)
	}
	if result.Error.Message != "" {
		return nil, errors.New("cloudinary: " + result.Error.Message)
	}

	return &UploadedMedia{
		URL:          result.SecureURL,
		PublicID:     result.PublicID,
		ResourceType: result.ResourceType,
		Format:       result.Format,
		Bytes:        result.Bytes,
	}, nil
}

// WatermarkedURL returns the video delivery URL with the viewer identifier burned in as a
// semi-transparent text overlay.
func (s *CloudinaryService) WatermarkedURL(publicID, viewer string) (string, error) {
	if publicID == "" {
		return "", errors.New("missing public id")
	}
	video, err := s.cld.Video(publicID)
	if err != nil {
		return "", err
	}
	video.Transformation = WatermarkTransformation(viewer)
	return video.String()
}

// WatermarkTransformation builds the text overlay for viewer. Commas and slashes have to be
// double-escaped inside a Cloudinary text layer.
func WatermarkTransformation(viewer string) string {
	text := url.PathEscape(strings.TrimSpace(viewer))
	text = strings.ReplaceAll(text, ",", "%252C")
	text = strings.ReplaceAll(text, "%2F", "%252F")
	return "l_text:Arial_28:" + text + ",co_white,o_40,g_south_east,x_20,y_20"
}
