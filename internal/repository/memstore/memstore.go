// Package memstore holds in-memory versions of the Mongo and Postgres repositories. They
// report missing and duplicate rows with the same sentinel errors and apply the same
// conditional updates, so services behave identically on top of them.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/AnshRaj112/coursely-backend/internal/models"
	"github.com/AnshRaj112/coursely-backend/internal/repository"
)

type CourseStore struct {
	mu      sync.Mutex
	courses map[primitive.ObjectID]*models.Course
	finds   int
}

func NewCourseStore(courses ...*models.Course) *CourseStore {
	s := &CourseStore{courses: map[primitive.ObjectID]*models.Course{}}
	for _, c := range courses {
		s.courses[c.ID] = c
	}
	return s
}

func (s *CourseStore) Add(c *models.Course) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.courses[c.ID] = c
}

func (s *CourseStore) Remove(id primitive.ObjectID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.courses, id)
}

// Finds counts FindByID calls.
func (s *CourseStore) Finds() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finds
}

func (s *CourseStore) FindByID(_ context.Context, id primitive.ObjectID) (*models.Course, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finds++
	c, ok := s.courses[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *CourseStore) List(_ context.Context, category *primitive.ObjectID, limit, skip int64) ([]models.Course, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Course{}
	for _, c := range s.courses {
		if category == nil || c.Category == *category {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.Hex() < out[j].ID.Hex() })
	return page(out, limit, skip), nil
}

type ProgressStore struct {
	mu      sync.Mutex
	entries map[primitive.ObjectID][]*models.CourseProgress
}

func NewProgressStore() *ProgressStore {
	return &ProgressStore{entries: map[primitive.ObjectID][]*models.CourseProgress{}}
}

func copyProgress(p *models.CourseProgress) *models.CourseProgress {
	cp := *p
	cp.CompletedLessons = append([]string{}, p.CompletedLessons...)
	cp.LessonProgress = make(map[string]models.LessonProgress, len(p.LessonProgress))
	for k, v := range p.LessonProgress {
		cp.LessonProgress[k] = v
	}
	return &cp
}

func (s *ProgressStore) find(userID, courseID primitive.ObjectID) *models.CourseProgress {
	for _, e := range s.entries[userID] {
		if e.CourseID == courseID {
			return e
		}
	}
	return nil
}

func (s *ProgressStore) GetCourseProgress(_ context.Context, userID, courseID primitive.ObjectID) (*models.CourseProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.find(userID, courseID)
	if e == nil {
		return nil, repository.ErrNotFound
	}
	return copyProgress(e), nil
}

func (s *ProgressStore) ListCourseProgress(_ context.Context, userID primitive.ObjectID) ([]models.CourseProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.CourseProgress{}
	for _, e := range s.entries[userID] {
		out = append(out, *copyProgress(e))
	}
	return out, nil
}

func (s *ProgressStore) EnsureEnrollment(_ context.Context, userID, courseID primitive.ObjectID, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.find(userID, courseID) != nil {
		return false, nil
	}
	s.entries[userID] = append(s.entries[userID], &models.CourseProgress{
		CourseID:         courseID,
		EnrolledAt:       now,
		LastAccessed:     now,
		CompletedLessons: []string{},
		LessonProgress:   map[string]models.LessonProgress{},
	})
	return true, nil
}

func (s *ProgressStore) SetLessonPosition(_ context.Context, userID, courseID primitive.ObjectID, lessonID string, position float64, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.find(userID, courseID)
	if e == nil {
		return repository.ErrNotFound
	}
	lp := e.LessonProgress[lessonID]
	lp.Position = position
	lp.LastUpdated = now
	e.LessonProgress[lessonID] = lp
	e.LastAccessed = now
	return nil
}

func (s *ProgressStore) CompleteLesson(_ context.Context, userID, courseID primitive.ObjectID, lessonID string, now time.Time) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.find(userID, courseID)
	if e == nil {
		return time.Time{}, false, repository.ErrNotFound
	}
	if e.HasCompleted(lessonID) {
		return *e.LessonProgress[lessonID].CompletedAt, false, nil
	}
	e.CompletedLessons = append(e.CompletedLessons, lessonID)
	lp := e.LessonProgress[lessonID]
	lp.Completed = true
	at := now
	lp.CompletedAt = &at
	lp.LastUpdated = now
	e.LessonProgress[lessonID] = lp
	e.LastAccessed = now
	return now, true, nil
}

type DeviceStore struct {
	mu      sync.Mutex
	devices map[primitive.ObjectID]map[string]*models.Device
}

func NewDeviceStore() *DeviceStore {
	return &DeviceStore{devices: map[primitive.ObjectID]map[string]*models.Device{}}
}

// Count returns how many rows the user has, active or not.
func (s *DeviceStore) Count(userID primitive.ObjectID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.devices[userID])
}

func copyDevice(d *models.Device) *models.Device {
	cp := *d
	cp.LoginHistory = append([]models.LoginEntry{}, d.LoginHistory...)
	return &cp
}

func (s *DeviceStore) FindByUserAndDevice(_ context.Context, userID primitive.ObjectID, deviceID string) (*models.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.devices[userID][deviceID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyDevice(d), nil
}

func (s *DeviceStore) CountActive(_ context.Context, userID primitive.ObjectID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, d := range s.devices[userID] {
		if d.IsActive {
			n++
		}
	}
	return n, nil
}

func (s *DeviceStore) Insert(_ context.Context, device *models.Device) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.devices[device.UserID] == nil {
		s.devices[device.UserID] = map[string]*models.Device{}
	}
	if _, ok := s.devices[device.UserID][device.DeviceID]; ok {
		return repository.ErrDuplicate
	}
	device.ID = primitive.NewObjectID()
	s.devices[device.UserID][device.DeviceID] = copyDevice(device)
	return nil
}

func (s *DeviceStore) RecordLogin(_ context.Context, userID primitive.ObjectID, deviceID string, login models.DeviceLogin) (*models.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.devices[userID][deviceID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	d.IsActive = true
	d.LastActive = login.At
	d.IPAddress = login.IPAddress
	d.Location = login.Location
	d.DeviceType = login.DeviceType
	d.Browser = login.Browser
	d.OS = login.OS
	if login.DeviceName != "" {
		d.DeviceName = login.DeviceName
	}
	d.LoginHistory = append(d.LoginHistory, models.LoginEntry{Timestamp: login.At, IPAddress: login.IPAddress, Location: login.Location})
	if len(d.LoginHistory) > repository.MaxLoginHistory {
		d.LoginHistory = d.LoginHistory[len(d.LoginHistory)-repository.MaxLoginHistory:]
	}
	return copyDevice(d), nil
}

func (s *DeviceStore) ListByUser(_ context.Context, userID primitive.ObjectID) ([]models.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Device{}
	for _, d := range s.devices[userID] {
		out = append(out, *copyDevice(d))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastActive.After(out[j].LastActive) })
	return out, nil
}

func (s *DeviceStore) Delete(_ context.Context, userID primitive.ObjectID, deviceID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.devices[userID][deviceID]; !ok {
		return false, nil
	}
	delete(s.devices[userID], deviceID)
	return true, nil
}

func (s *DeviceStore) DeleteAllForUser(_ context.Context, userID primitive.ObjectID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := int64(len(s.devices[userID]))
	delete(s.devices, userID)
	return n, nil
}

type UserStore struct {
	mu    sync.Mutex
	users map[primitive.ObjectID]*models.User
}

func NewUserStore() *UserStore {
	return &UserStore{users: map[primitive.ObjectID]*models.User{}}
}

func (s *UserStore) Create(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == user.Email {
			return repository.ErrDuplicate
		}
	}
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

func (s *UserStore) FindByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *UserStore) FindByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *UserStore) List(_ context.Context, limit, skip int64) ([]models.User, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.User{}
	for _, u := range s.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, limit, skip), int64(len(s.users)), nil
}

func (s *UserStore) Delete(_ context.Context, id primitive.ObjectID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return false, nil
	}
	delete(s.users, id)
	return true, nil
}

func (s *UserStore) ApplySubscriptionPayment(_ context.Context, id primitive.ObjectID, prevEnd *time.Time, plan models.Plan, start, end time.Time, record models.PaymentRecord) (*models.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	var sub models.Subscription
	if u.Subscription != nil {
		sub = *u.Subscription
	}
	switch {
	case prevEnd == nil && sub.EndDate != nil,
		prevEnd != nil && (sub.EndDate == nil || !sub.EndDate.Equal(*prevEnd)):
		return nil, repository.ErrStale
	}
	p := plan
	sub.IsActive = true
	sub.Plan = &p
	sub.StartDate = &start
	sub.EndDate = &end
	sub.PaymentHistory = append(append([]models.PaymentRecord{}, sub.PaymentHistory...), record)
	u.Subscription = &sub
	cp := sub
	return &cp, nil
}

type OrderStore struct {
	mu     sync.Mutex
	orders map[string]*models.PaymentOrder
}

func NewOrderStore() *OrderStore {
	return &OrderStore{orders: map[string]*models.PaymentOrder{}}
}

func (s *OrderStore) Create(_ context.Context, order *models.PaymentOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[order.OrderID]; ok {
		return repository.ErrDuplicate
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}
	cp := *order
	s.orders[order.OrderID] = &cp
	return nil
}

func (s *OrderStore) FindByOrderID(_ context.Context, orderID string) (*models.PaymentOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (s *OrderStore) MarkPaid(_ context.Context, orderID, paymentID string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok || o.Status != models.PaymentCreated {
		return false, nil
	}
	o.Status = models.PaymentPaid
	o.PaymentID.String, o.PaymentID.Valid = paymentID, true
	o.PaidAt.Time, o.PaidAt.Valid = at, true
	return true, nil
}

func (s *OrderStore) Revert(_ context.Context, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o, ok := s.orders[orderID]; ok && o.Status == models.PaymentPaid {
		o.Status = models.PaymentCreated
		o.PaymentID.Valid = false
		o.PaidAt.Valid = false
	}
	return nil
}

func (s *OrderStore) ListByUser(_ context.Context, userID string) ([]models.PaymentOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.PaymentOrder{}
	for _, o := range s.orders {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func page[T any](items []T, limit, skip int64) []T {
	if skip >= int64(len(items)) {
		return []T{}
	}
	items = items[skip:]
	if limit > 0 && limit < int64(len(items)) {
		items = items[:limit]
	}
	return items
}
