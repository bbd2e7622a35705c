package services

import (
	"strings"

	"github.com/mssola/useragent"

	"github.com/AnshRaj112/coursely-backend/internal/models"
)

// ClientInfo is what we infer about a client from its User-Agent.
type ClientInfo struct {
	DeviceType models.DeviceType
	Browser    string
	OS         string
}

// ClientMetadataParser classifies a raw User-Agent string. Misclassification is acceptable.
type ClientMetadataParser interface {
	Parse(userAgent string) ClientInfo
}

type UserAgentParser struct{}

func NewUserAgentParser() *UserAgentParser {
	return &UserAgentParser{}
}

func (p *UserAgentParser) Parse(raw string) ClientInfo {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ClientInfo{DeviceType: models.DeviceOther, Browser: "Unknown", OS: "Unknown"}
	}

	ua := useragent.New(raw)
	info := ClientInfo{
		DeviceType: classifyDevice(ua, raw),
		Browser:    "Unknown",
		OS:         "Unknown",
	}

	if name, version := ua.Browser(); name != "" {
		info.Browser = strings.TrimSpace(name + " " + majorVersion(version))
	}
	if os := ua.OSInfo(); os.Name != "" {
		info.OS = strings.TrimSpace(os.Name + " " + os.Version)
	}
	return info
}

func classifyDevice(ua *useragent.UserAgent, raw string) models.DeviceType {
	if ua.Bot() {
		return models.DeviceOther
	}

	lower := strings.ToLower(raw)
	switch {
	case strings.Contains(lower, "ipad"),
		strings.Contains(lower, "tablet"),
		strings.Contains(lower, "android") && !strings.Contains(lower, "mobile"):
		return models.DeviceTablet
	case ua.Mobile():
		return models.DeviceMobile
	}

	platform := strings.ToLower(ua.Platform() + " " + ua.OS())
	for _, desktop := range []string{"windows", "macintosh", "mac os", "linux", "x11", "cros"} {
		if strings.Contains(platform, desktop) {
			return models.DeviceDesktop
		}
	}
	return models.DeviceOther
}

func majorVersion(v string) string {
	if i := strings.IndexByte(v, '.'); i > 0 {
		return v[:i]
	}
	return v
}
