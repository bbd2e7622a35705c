package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/AnshRaj112/coursely-backend/internal/models"
	"github.com/AnshRaj112/coursely-backend/internal/response"
	"github.com/AnshRaj112/coursely-backend/internal/services"
	"github.com/AnshRaj112/coursely-backend/pkg/logger"
)

// Authenticator verifies a bearer token and loads its user.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*services.Claims, *models.User, error)
}

// DeviceResolver loads the device row named by a token's device id.
type DeviceResolver interface {
	FindDevice(ctx context.Context, userID primitive.ObjectID, deviceID string) (*models.Device, error)
}

type contextKey string

const authContextKey contextKey = "auth"

// AuthContext is what the gateway attaches to an authenticated request.
type AuthContext struct {
	User                  *models.User
	Claims                *services.Claims
	HasActiveSubscription bool
	Device                *models.Device // only populated behind WithDevice
}

// Gateway turns bearer tokens into an AuthContext.
type Gateway struct {
	auth    Authenticator
	devices DeviceResolver
	resp    *response.Responder
	log     *logger.Logger
	now     func() time.Time
}

func NewGateway(auth Authenticator, devices DeviceResolver, resp *response.Responder, log *logger.Logger) *Gateway {
	return &Gateway{
		auth:    auth,
		devices: devices,
		resp:    resp,
		log:     log.Component("gateway"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// BearerToken extracts the token from "Authorization: Bearer <token>".
func BearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return "", false
	}
	token := strings.TrimSpace(header[7:])
	return token, token != ""
}

// Resolve runs the token through verification and user loading. Subscription state is
// evaluated against the current time on every call.
func (g *Gateway) Resolve(ctx context.Context, token string) (*AuthContext, error) {
	claims, user, err := g.auth.Authenticate(ctx, token)
	if err != nil {
		return nil, err
	}
	return &AuthContext{
		User:                  user,
		Claims:                claims,
		HasActiveSubscription: services.IsSubscriptionActive(user.Subscription, g.now()),
	}, nil
}

// Authenticate rejects requests without a valid token for an existing user.
func (g *Gateway) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := BearerToken(r)
		if !ok {
			g.resp.Error(w, r, services.ErrUnauthenticated("Authentication required"))
			return
		}
		ac, err := g.Resolve(r.Context(), token)
		if err != nil {
			g.resp.Error(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithAuthContext(r.Context(), ac)))
	})
}

// OptionalAuth attaches an AuthContext when the token is good and continues anonymously otherwise.
func (g *Gateway) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := BearerToken(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		ac, err := g.Resolve(r.Context(), token)
		if err != nil {
			if !isClientError(err) {
				g.log.Warn().Err(err).Msg("optional auth failed, continuing anonymously")
			}
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithAuthContext(r.Context(), ac)))
	})
}

// RequireRole must run after Authenticate.
func (g *Gateway) RequireRole(role models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ac := FromContext(r.Context())
			if ac == nil {
				g.resp.Error(w, r, services.ErrUnauthenticated("Authentication required"))
				return
			}
			if ac.User.Role != role {
				g.resp.Error(w, r, services.ErrForbidden("FORBIDDEN", "You do not have access to this resource"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireSubscription gates premium content behind an active subscription. isPremium decides
// per request whether the gate applies; a nil isPremium gates every request.
func (g *Gateway) RequireSubscription(isPremium func(*http.Request) (bool, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ac := FromContext(r.Context())
			if ac == nil {
				g.resp.Error(w, r, services.ErrUnauthenticated("Authentication required"))
				return
			}
			if isPremium != nil {
				premium, err := isPremium(r)
				if err != nil {
					g.resp.Error(w, r, err)
					return
				}
				if !premium {
					next.ServeHTTP(w, r)
					return
				}
			}
			if !ac.HasActiveSubscription {
				g.resp.Error(w, r, services.ErrSubscriptionRequired())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithDevice resolves the device named in the token. A removed device leaves Device nil.
func (g *Gateway) WithDevice(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ac := FromContext(r.Context())
		if ac == nil || ac.Claims == nil || ac.Claims.DeviceID == "" || g.devices == nil {
			next.ServeHTTP(w, r)
			return
		}
		device, err := g.devices.FindDevice(r.Context(), ac.User.ID, ac.Claims.DeviceID)
		if err != nil {
			g.log.Warn().Err(err).Str("user_id", ac.User.ID.Hex()).Msg("device lookup failed")
		}
		withDevice := *ac
		withDevice.Device = device
		next.ServeHTTP(w, r.WithContext(WithAuthContext(r.Context(), &withDevice)))
	})
}

func WithAuthContext(ctx context.Context, ac *AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey, ac)
}

// FromContext returns nil for anonymous requests.
func FromContext(ctx context.Context) *AuthContext {
	ac, _ := ctx.Value(authContextKey).(*AuthContext)
	return ac
}

func CurrentUser(r *http.Request) *models.User {
	if ac := FromContext(r.Context()); ac != nil {
		return ac.User
	}
	return nil
}

func isClientError(err error) bool {
	return services.IsKind(err, services.KindInvalidToken) ||
		services.IsKind(err, services.KindUserNotFound) ||
		services.IsKind(err, services.KindUnauthenticated)
}
