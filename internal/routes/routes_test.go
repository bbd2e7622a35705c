package routes

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/AnshRaj112/coursely-backend/internal/handlers"
	"github.com/AnshRaj112/coursely-backend/internal/middleware"
	"github.com/AnshRaj112/coursely-backend/internal/models"
	"github.com/AnshRaj112/coursely-backend/internal/repository/memstore"
	"github.com/AnshRaj112/coursely-backend/internal/response"
	"github.com/AnshRaj112/coursely-backend/internal/services"
	"github.com/AnshRaj112/coursely-backend/pkg/logger"
	"github.com/AnshRaj112/coursely-backend/pkg/utils"
)

const (
	testKeySecret = "rzp_test_secret"
	testMaxDevice = 2
)

type stubGateway struct {
	next int
}

func (g *stubGateway) CreateOrder(context.Context, int64, string, string) (string, error) {
	g.next++
	return fmt.Sprintf("order_%d", g.next), nil
}

type testServer struct {
	handler http.Handler
	users   *memstore.UserStore
	devices *memstore.DeviceStore
	courses *memstore.CourseStore
	free    *models.Course
	premium *models.Course
}

func newCourse(premium bool) *models.Course {
	return &models.Course{
		ID:        primitive.NewObjectID(),
		Title:     "Distributed systems",
		IsPremium: premium,
		Modules: []models.Module{{
			ID:    primitive.NewObjectID(),
			Title: "Intro",
			Order: 1,
			Lessons: []models.Lesson{
				{
					ID:    primitive.NewObjectID(),
					Title: "Welcome",
					Order: 1,
					Type:  models.LessonVideo,
					Video: &models.VideoContent{URL: "https://cdn.example.com/welcome.mp4", Duration: 300},
				},
				{
					ID:    primitive.NewObjectID(),
					Title: "Reading",
					Order: 2,
					Type:  models.LessonPDF,
					PDF:   &models.PDFContent{URL: "https://cdn.example.com/reading.pdf"},
				},
			},
		}},
	}
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	log := logger.Nop()
	free, premium := newCourse(false), newCourse(true)
	users := memstore.NewUserStore()
	deviceStore := memstore.NewDeviceStore()
	courses := memstore.NewCourseStore(free, premium)

	tokens := services.NewTokenService("test-secret", "coursely", time.Hour, services.NewRedisTokenDenylist(rdb), log)
	devices := services.NewDeviceService(deviceStore, services.NewUserAgentParser(), nil, services.NewRedisAdmissionLock(rdb), testMaxDevice, log)
	catalog := services.NewCatalogService(courses, nil, time.Minute, log)
	hub := services.NewProgressHub(rdb, log)
	progress := services.NewProgressService(memstore.NewProgressStore(), catalog, hub, log)
	auth := services.NewAuthService(users, devices, tokens, log)
	payments := services.NewPaymentService(&stubGateway{}, memstore.NewOrderStore(), users, services.PaymentConfig{
		KeyID:     "rzp_test_key",
		KeySecret: testKeySecret,
		Currency:  "INR",
		Prices:    map[models.Plan]int64{models.PlanMonthly: 49900, models.PlanYearly: 499900},
	}, log)
	admin := services.NewAdminService(users, devices, log)
	playback := services.NewPlaybackService(catalog, nil)

	resp := response.New(log, false)
	gw := middleware.NewGateway(auth, devices, resp, log)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.ClientIP(false))
	r.Use(middleware.Recoverer(resp, log))
	SetupRoutes(r, Handlers{
		Gateway:        gw,
		Auth:           handlers.NewAuthHandler(auth, resp),
		Courses:        handlers.NewCourseHandler(catalog, playback, resp),
		Progress:       handlers.NewProgressHandler(progress, resp),
		Devices:        handlers.NewDeviceHandler(devices, resp),
		Payments:       handlers.NewPaymentHandler(payments, resp),
		Admin:          handlers.NewAdminHandler(admin, nil, services.NewSystemService(time.Now()), "coursely", resp),
		ProgressSocket: handlers.NewProgressSocketHandler(gw, hub, nil, resp, log),
		Health: handlers.NewHealthHandler(map[string]handlers.Pinger{
			"redis": func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		}),
		RequestTimeout: 5 * time.Second,
	})

	return &testServer{handler: r, users: users, devices: deviceStore, courses: courses, free: free, premium: premium}
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Safari/605.1.15")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	var out map[string]interface{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec, out
}

// register creates an account admitted on deviceID and returns its token and id.
func (s *testServer) register(t *testing.T, email, deviceID string) (string, string) {
	t.Helper()
	rec, body := s.do(t, http.MethodPost, "/api/auth/register", "", map[string]interface{}{
		"name":     "Ada Lovelace",
		"email":    email,
		"password": "correct horse",
		"deviceId": deviceID,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	user := body["user"].(map[string]interface{})
	return body["token"].(string), user["id"].(string)
}

func (s *testServer) login(t *testing.T, email, deviceID string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	return s.do(t, http.MethodPost, "/api/auth/login", "", map[string]interface{}{
		"email":    email,
		"password": "correct horse",
		"deviceId": deviceID,
	})
}

func (s *testServer) subscribe(t *testing.T, userID string) {
	t.Helper()
	id, err := primitive.ObjectIDFromHex(userID)
	require.NoError(t, err)
	now := time.Now().UTC()
	_, err = s.users.ApplySubscriptionPayment(context.Background(), id, nil, models.PlanMonthly, now, now.Add(models.PlanMonthly.Duration()), models.PaymentRecord{})
	require.NoError(t, err)
}

func lessonID(c *models.Course, i int) string {
	return c.Modules[0].Lessons[i].ID.Hex()
}

func TestRegisterAndMe(t *testing.T) {
	s := newTestServer(t)

	rec, body := s.do(t, http.MethodPost, "/api/auth/register", "", map[string]interface{}{
		"name":     "  Ada   Lovelace ",
		"email":    "Ada@Example.com",
		"password": "correct horse",
		"deviceId": "laptop",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, true, body["success"])
	assert.NotEmpty(t, body["token"])
	assert.NotEmpty(t, body["expiresAt"])

	user := body["user"].(map[string]interface{})
	assert.Equal(t, "ada@example.com", user["email"])
	assert.Equal(t, "Ada Lovelace", user["name"])
	assert.Equal(t, false, user["hasActiveSubscription"])
	assert.NotContains(t, user, "passwordHash")
	assert.Equal(t, "laptop", body["device"].(map[string]interface{})["deviceId"])

	rec, body = s.do(t, http.MethodGet, "/api/auth/me", body["token"].(string), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ada@example.com", body["user"].(map[string]interface{})["email"])
}

func TestRegister_RejectsBadInput(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "taken@example.com", "")

	tests := []struct {
		name     string
		body     interface{}
		wantCode int
		wantErr  string
	}{
		{"missing body", nil, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"short password", map[string]string{"name": "A", "email": "a@example.com", "password": "short"}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"bad email", map[string]string{"name": "A", "email": "nope", "password": "long enough"}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"bad category", map[string]interface{}{"name": "A", "email": "b@example.com", "password": "long enough", "preferredCategories": []string{"xyz"}}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"duplicate", map[string]string{"name": "A", "email": "TAKEN@example.com", "password": "long enough"}, http.StatusConflict, "EMAIL_TAKEN"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := s.do(t, http.MethodPost, "/api/auth/register", "", tt.body)
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantErr, body["code"])
			assert.Equal(t, false, body["success"])
		})
	}

	_, body := s.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{"name": "A", "email": "c@example.com", "password": "short"})
	fields := body["details"].(map[string]interface{})["fields"].(map[string]interface{})
	assert.Equal(t, "must be at least 8 characters", fields["password"])
}

func TestLogin(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "ada@example.com", "laptop")

	rec, body := s.login(t, "ada@example.com", "phone")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, body["token"])

	rec, body = s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "ada@example.com", "password": "wrong password", "deviceId": "phone"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "INVALID_CREDENTIALS", body["code"])

	rec, body = s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "ada@example.com", "password": "correct horse"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "deviceId is required", body["message"])
}

func TestLogin_DeviceLimit(t *testing.T) {
	s := newTestServer(t)
	token, _ := s.register(t, "ada@example.com", "laptop")

	rec, _ := s.login(t, "ada@example.com", "phone")
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body := s.login(t, "ada@example.com", "tablet")
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "DEVICE_LIMIT_REACHED", body["code"])
	assert.Nil(t, body["token"])
	assert.EqualValues(t, testMaxDevice, body["limit"])
	assert.EqualValues(t, testMaxDevice, body["currentDevices"])
	assert.EqualValues(t, testMaxDevice, body["details"].(map[string]interface{})["limit"])

	// Known devices are always let back in.
	rec, _ = s.login(t, "ada@example.com", "laptop")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = s.do(t, http.MethodDelete, "/api/devices/phone", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = s.login(t, "ada@example.com", "tablet")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRemovedDeviceTokenIsRejected(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "ada@example.com", "laptop")
	_, body := s.login(t, "ada@example.com", "phone")
	phoneToken := body["token"].(string)
	_, body = s.login(t, "ada@example.com", "laptop")
	laptopToken := body["token"].(string)

	rec, _ := s.do(t, http.MethodDelete, "/api/devices/phone", laptopToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body = s.do(t, http.MethodGet, "/api/auth/me", phoneToken, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "INVALID_TOKEN", body["code"])

	rec, body = s.login(t, "ada@example.com", "tablet")
	require.Equal(t, http.StatusOK, rec.Code)
	tabletToken := body["token"].(string)

	active := 0
	for _, token := range []string{laptopToken, phoneToken, tabletToken} {
		if rec, _ := s.do(t, http.MethodGet, "/api/auth/me", token, nil); rec.Code == http.StatusOK {
			active++
		}
	}
	assert.Equal(t, testMaxDevice, active)
}

func TestLogout_RevokesToken(t *testing.T) {
	s := newTestServer(t)
	token, _ := s.register(t, "ada@example.com", "laptop")

	rec, _ := s.do(t, http.MethodPost, "/api/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body := s.do(t, http.MethodGet, "/api/auth/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "INVALID_TOKEN", body["code"])

	// The slot is kept.
	rec, _ = s.login(t, "ada@example.com", "laptop")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)
	for _, path := range []string{"/api/auth/me", "/api/me/progress", "/api/devices", "/api/payments/orders", "/api/admin/users"} {
		rec, body := s.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
		assert.Equal(t, "UNAUTHENTICATED", body["code"], path)
	}

	rec, body := s.do(t, http.MethodGet, "/api/auth/me", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "INVALID_TOKEN", body["code"])
}

func findCourse(t *testing.T, body map[string]interface{}, id primitive.ObjectID) map[string]interface{} {
	t.Helper()
	for _, raw := range body["data"].([]interface{}) {
		c := raw.(map[string]interface{})
		if c["id"] == id.Hex() {
			return c
		}
	}
	t.Fatalf("course %s not listed", id.Hex())
	return nil
}

func pdfURL(course map[string]interface{}) interface{} {
	lessons := course["modules"].([]interface{})[0].(map[string]interface{})["lessons"].([]interface{})
	return lessons[1].(map[string]interface{})["pdf"].(map[string]interface{})["url"]
}

func TestCourses_LockPremiumContent(t *testing.T) {
	s := newTestServer(t)

	rec, body := s.do(t, http.MethodGet, "/api/courses", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	premium := findCourse(t, body, s.premium.ID)
	assert.Equal(t, true, premium["locked"])
	assert.Equal(t, "", pdfURL(premium))
	free := findCourse(t, body, s.free.ID)
	assert.Equal(t, false, free["locked"])
	assert.Equal(t, "https://cdn.example.com/reading.pdf", pdfURL(free))
	assert.NotContains(t, rec.Body.String(), "welcome.mp4", "video URLs are never listed")

	token, userID := s.register(t, "ada@example.com", "laptop")
	s.subscribe(t, userID)
	rec, body = s.do(t, http.MethodGet, "/api/courses/"+s.premium.ID.Hex(), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	course := body["data"].(map[string]interface{})
	assert.Equal(t, false, course["locked"])
	assert.Equal(t, "https://cdn.example.com/reading.pdf", pdfURL(course))

	rec, body = s.do(t, http.MethodGet, "/api/courses/"+primitive.NewObjectID().Hex(), "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", body["code"])

	rec, _ = s.do(t, http.MethodGet, "/api/courses/not-an-id", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPlayback_RequiresSubscriptionForPremium(t *testing.T) {
	s := newTestServer(t)
	token, userID := s.register(t, "ada@example.com", "laptop")

	rec, body := s.do(t, http.MethodGet, "/api/courses/"+s.free.ID.Hex()+"/lesson/"+lessonID(s.free, 0)+"/playback", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "https://cdn.example.com/welcome.mp4", body["url"])

	premiumPath := "/api/courses/" + s.premium.ID.Hex() + "/lesson/" + lessonID(s.premium, 1) + "/playback"
	rec, body = s.do(t, http.MethodGet, premiumPath, token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "SUBSCRIPTION_REQUIRED", body["code"])

	s.subscribe(t, userID)
	rec, body = s.do(t, http.MethodGet, premiumPath, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://cdn.example.com/reading.pdf", body["url"])
	assert.Equal(t, "pdf", body["data"].(map[string]interface{})["type"])
}

func TestProgressEndpoints(t *testing.T) {
	s := newTestServer(t)
	token, _ := s.register(t, "ada@example.com", "laptop")
	base := "/api/courses/" + s.free.ID.Hex()
	first, second := lessonID(s.free, 0), lessonID(s.free, 1)

	rec, body := s.do(t, http.MethodPost, base+"/lesson/"+first+"/progress", token, map[string]float64{"progress": 42.5})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 42.5, body["progress"])

	rec, body = s.do(t, http.MethodPost, base+"/lesson/"+first+"/progress", token, map[string]float64{"progress": -1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", body["code"])

	rec, _ = s.do(t, http.MethodPost, base+"/lesson/"+first+"/progress", token, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body = s.do(t, http.MethodPost, base+"/lesson/"+primitive.NewObjectID().Hex()+"/progress", token, map[string]float64{"progress": 1})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", body["code"])

	rec, done := s.do(t, http.MethodPost, base+"/lesson/"+second+"/complete", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, done["completed"])
	_, again := s.do(t, http.MethodPost, base+"/lesson/"+second+"/complete", token, nil)
	assert.Equal(t, done["completedAt"], again["completedAt"], "repeat completion keeps the first timestamp")

	rec, body = s.do(t, http.MethodGet, base+"/progress", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 50, body["percentComplete"])
	assert.EqualValues(t, 2, body["totalVideos"])
	assert.Equal(t, []interface{}{second}, body["completedLessons"])

	rec, body = s.do(t, http.MethodGet, "/api/me/progress", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["data"], 1)
}

func TestDevices_ListMarksCurrent(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "ada@example.com", "laptop")
	_, login := s.login(t, "ada@example.com", "phone")
	token := login["token"].(string)

	rec, body := s.do(t, http.MethodGet, "/api/devices", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, testMaxDevice, body["maxDevices"])

	current := map[string]bool{}
	for _, raw := range body["data"].([]interface{}) {
		d := raw.(map[string]interface{})
		current[d["deviceId"].(string)] = d["isCurrent"].(bool)
	}
	assert.Equal(t, map[string]bool{"laptop": false, "phone": true}, current)

	rec, body = s.do(t, http.MethodDelete, "/api/devices/unknown", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", body["code"])
}

func sign(orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(testKeySecret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestPayments_CreateAndVerify(t *testing.T) {
	s := newTestServer(t)
	token, _ := s.register(t, "ada@example.com", "laptop")

	rec, body := s.do(t, http.MethodPost, "/api/payments/orders", token, map[string]string{"plan": "weekly"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "plan must be one of: monthly, yearly", body["message"])

	rec, order := s.do(t, http.MethodPost, "/api/payments/orders", token, map[string]string{"plan": "monthly"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	orderID := order["orderId"].(string)
	assert.EqualValues(t, 49900, order["amount"])
	assert.Equal(t, "rzp_test_key", order["keyId"])

	rec, body = s.do(t, http.MethodPost, "/api/payments/verify", token, map[string]string{
		"orderId": orderID, "paymentId": "pay_1", "signature": sign(orderID, "pay_other"),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_SIGNATURE", body["code"])

	verify := map[string]string{"orderId": orderID, "paymentId": "pay_1", "signature": sign(orderID, "pay_1")}
	rec, body = s.do(t, http.MethodPost, "/api/payments/verify", token, verify)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	sub := body["subscription"].(map[string]interface{})
	assert.Equal(t, true, sub["isActive"])
	assert.Equal(t, "monthly", sub["plan"])

	rec, body = s.do(t, http.MethodPost, "/api/payments/verify", token, verify)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "ORDER_ALREADY_PAID", body["code"])

	_, me := s.do(t, http.MethodGet, "/api/auth/me", token, nil)
	assert.Equal(t, true, me["user"].(map[string]interface{})["hasActiveSubscription"])

	rec, body = s.do(t, http.MethodGet, "/api/payments/orders", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	orders := body["data"].([]interface{})
	require.Len(t, orders, 1)
	assert.Equal(t, "paid", orders[0].(map[string]interface{})["status"])
}

func (s *testServer) adminToken(t *testing.T) (string, string) {
	t.Helper()
	hash, err := utils.HashPassword("correct horse")
	require.NoError(t, err)
	admin := &models.User{Name: "Root", Email: "root@example.com", PasswordHash: hash, Role: models.RoleAdmin, CreatedAt: time.Now().UTC()}
	require.NoError(t, s.users.Create(context.Background(), admin))

	rec, body := s.login(t, "root@example.com", "console")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return body["token"].(string), admin.ID.Hex()
}

func TestAdmin(t *testing.T) {
	s := newTestServer(t)
	userToken, userID := s.register(t, "ada@example.com", "laptop")

	rec, body := s.do(t, http.MethodGet, "/api/admin/users", userToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "FORBIDDEN", body["code"])

	adminToken, adminID := s.adminToken(t)

	rec, body = s.do(t, http.MethodGet, "/api/admin/users?limit=10", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := body["data"].(map[string]interface{})
	assert.EqualValues(t, 2, page["total"])
	assert.EqualValues(t, 10, page["limit"])

	rec, _ = s.do(t, http.MethodGet, "/api/admin/users?limit=ten", adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body = s.do(t, http.MethodGet, "/api/admin/users/"+userID+"/devices", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["data"], 1)

	rec, _ = s.do(t, http.MethodDelete, "/api/admin/users/"+adminID, adminToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code, "admins cannot delete themselves")

	rec, _ = s.do(t, http.MethodDelete, "/api/admin/users/"+userID, adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	id, _ := primitive.ObjectIDFromHex(userID)
	assert.Equal(t, 0, s.devices.Count(id))

	rec, body = s.do(t, http.MethodGet, "/api/auth/me", userToken, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "USER_NOT_FOUND", body["code"])

	rec, body = s.do(t, http.MethodPost, "/api/admin/media", adminToken, nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "MEDIA_DISABLED", body["code"])

	rec, body = s.do(t, http.MethodGet, "/api/admin/system", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, body["data"], "uptime")
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	for _, path := range []string{"/health", "/api/health"} {
		rec, body := s.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ok", body["status"])
		assert.Equal(t, map[string]interface{}{"redis": "ok"}, body["dependencies"])
	}
}

func TestProgressSocket_RejectsMissingToken(t *testing.T) {
	s := newTestServer(t)
	rec, body := s.do(t, http.MethodGet, "/ws/progress", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHENTICATED", body["code"])
}
