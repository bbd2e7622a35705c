package services

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/AnshRaj112/coursely-backend/internal/models"
	"github.com/AnshRaj112/coursely-backend/internal/repository"
	"github.com/AnshRaj112/coursely-backend/pkg/logger"
)

// PaymentGateway creates orders with the external payment provider.
type PaymentGateway interface {
	CreateOrder(ctx context.Context, amount int64, currency, receipt string) (string, error)
}

// RazorpayGateway talks to the Razorpay orders API.
type RazorpayGateway struct {
	baseURL   string
	keyID     string
	keySecret string
	client    *http.Client
}

func NewRazorpayGateway(baseURL, keyID, keySecret string, timeout time.Duration) *RazorpayGateway {
	return &RazorpayGateway{
		baseURL:   strings.TrimRight(baseURL, "/"),
		keyID:     keyID,
		keySecret: keySecret,
		client:    &http.Client{Timeout: timeout},
	}
}

type razorpayOrderRequest struct {
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	Receipt        string `json:"receipt"`
	PaymentCapture int    `json:"payment_capture"`
}

type razorpayOrderResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  *struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error,omitempty"`
}

func (g *RazorpayGateway) CreateOrder(ctx context.Context, amount int64, currency, receipt string) (string, error) {
	body, err := json.Marshal(razorpayOrderRequest{Amount: amount, Currency: currency, Receipt: receipt, PaymentCapture: 1})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/orders", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(g.keyID, g.keySecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out razorpayOrderResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode order response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode >= 300 {
		if out.Error != nil {
			return "", fmt.Errorf("gateway rejected order: %s: %s", out.Error.Code, out.Error.Description)
		}
		return "", fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}
	if out.ID == "" {
		return "", errors.New("gateway returned an order without id")
	}
	return out.ID, nil
}

// VerifySignature checks hex(HMAC-SHA256(secret, orderID|paymentID)) in constant time.
func VerifySignature(secret, orderID, paymentID, signature string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	expected := mac.Sum(nil)

	given, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return false
	}
	return hmac.Equal(expected, given)
}

const maxActivationAttempts = 5

type OrderResult struct {
	OrderID  string      `json:"orderId"`
	Amount   int64       `json:"amount"`
	Currency string      `json:"currency"`
	KeyID    string      `json:"keyId"`
	Plan     models.Plan `json:"plan"`
}

type PaymentConfig struct {
	KeyID     string
	KeySecret string
	Currency  string
	Prices    map[models.Plan]int64
}

type PaymentService struct {
	gateway PaymentGateway
	orders  PaymentOrderStore
	users   UserStore
	cfg     PaymentConfig
	log     *logger.Logger
	now     func() time.Time
}

func NewPaymentService(gateway PaymentGateway, orders PaymentOrderStore, users UserStore, cfg PaymentConfig, log *logger.Logger) *PaymentService {
	return &PaymentService{
		gateway: gateway,
		orders:  orders,
		users:   users,
		cfg:     cfg,
		log:     log.Component("payments"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func errPaymentsDisabled() *Error {
	return &Error{Kind: KindUpstream, Code: "PAYMENTS_DISABLED", Message: "Payments are not available"}
}

// CreateOrder opens a gateway order for the plan and records it for later verification.
func (s *PaymentService) CreateOrder(ctx context.Context, user *models.User, plan models.Plan) (*OrderResult, error) {
	if s.gateway == nil || s.orders == nil {
		return nil, errPaymentsDisabled()
	}
	amount, ok := s.cfg.Prices[plan]
	if !plan.Valid() || !ok {
		return nil, ErrValidation("plan must be monthly or yearly")
	}

	receipt := fmt.Sprintf("%s_%d", user.ID.Hex(), s.now().Unix())
	orderID, err := s.gateway.CreateOrder(ctx, amount, s.cfg.Currency, receipt)
	if err != nil {
		return nil, ErrUpstream("Payment gateway unavailable", err)
	}

	order := &models.PaymentOrder{
		OrderID:  orderID,
		UserID:   user.ID.Hex(),
		Plan:     plan,
		Amount:   amount,
		Currency: s.cfg.Currency,
		Status:   models.PaymentCreated,
	}
	if err := s.orders.Create(ctx, order); err != nil {
		return nil, WrapError(err, "failed to record order")
	}

	s.log.Info().Str("user_id", user.ID.Hex()).Str("order_id", orderID).Str("plan", string(plan)).Msg("payment order created")
	return &OrderResult{OrderID: orderID, Amount: amount, Currency: s.cfg.Currency, KeyID: s.cfg.KeyID, Plan: plan}, nil
}

// VerifyPayment validates the gateway signature and activates the subscription.
// The order row is claimed before the user document is touched so a replayed
// confirmation cannot extend the subscription twice.
func (s *PaymentService) VerifyPayment(ctx context.Context, user *models.User, orderID, paymentID, signature string) (*models.Subscription, error) {
	if s.orders == nil || s.cfg.KeySecret == "" {
		return nil, errPaymentsDisabled()
	}
	if orderID == "" || paymentID == "" || signature == "" {
		return nil, ErrValidation("orderId, paymentId and signature are required")
	}
	if !VerifySignature(s.cfg.KeySecret, orderID, paymentID, signature) {
		return nil, &Error{Kind: KindValidation, Code: "INVALID_SIGNATURE", Message: "Payment signature verification failed"}
	}

	order, err := s.orders.FindByOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound("Order not found")
		}
		return nil, err
	}
	if order.UserID != user.ID.Hex() {
		return nil, ErrForbidden("FORBIDDEN", "Order belongs to another account")
	}
	if order.Status == models.PaymentPaid {
		return nil, ErrConflict("ORDER_ALREADY_PAID", "This order has already been applied")
	}

	now := s.now()
	claimed, err := s.orders.MarkPaid(ctx, orderID, paymentID, now)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, ErrConflict("ORDER_ALREADY_PAID", "This order has already been applied")
	}

	record := models.PaymentRecord{
		Amount:    order.Amount,
		Currency:  order.Currency,
		PaymentID: paymentID,
		OrderID:   orderID,
		Date:      now,
	}
	sub, err := s.activate(ctx, user.ID, order.Plan, now, record)
	if err != nil {
		if revertErr := s.orders.Revert(ctx, orderID); revertErr != nil {
			s.log.Error().Err(revertErr).Str("order_id", orderID).Msg("failed to revert order after activation failure")
		}
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrUserNotFound()
		case errors.Is(err, repository.ErrStale):
			return nil, ErrConflict("CONFLICT", "Subscription changed while applying payment, please retry")
		}
		return nil, err
	}

	s.log.Info().Str("user_id", user.ID.Hex()).Str("order_id", orderID).Time("end_date", *sub.EndDate).Msg("subscription activated")
	return sub, nil
}

// activate extends the stored subscription window. The window is computed from a fresh
// read and written only if endDate is unchanged, so concurrent payments each add a period.
func (s *PaymentService) activate(ctx context.Context, userID primitive.ObjectID, plan models.Plan, now time.Time, record models.PaymentRecord) (*models.Subscription, error) {
	var lastErr error
	for attempt := 0; attempt < maxActivationAttempts; attempt++ {
		current, err := s.users.FindByID(ctx, userID)
		if err != nil {
			return nil, err
		}
		var prevEnd *time.Time
		if current.Subscription != nil {
			prevEnd = current.Subscription.EndDate
		}
		start, end := ExtendSubscription(current.Subscription, plan, now)
		sub, err := s.users.ApplySubscriptionPayment(ctx, userID, prevEnd, plan, start, end, record)
		if !errors.Is(err, repository.ErrStale) {
			return sub, err
		}
		lastErr = err
		s.log.Debug().Str("user_id", userID.Hex()).Int("attempt", attempt+1).Msg("subscription changed concurrently, retrying")
	}
	return nil, lastErr
}

func (s *PaymentService) ListOrders(ctx context.Context, user *models.User) ([]models.PaymentOrder, error) {
	if s.orders == nil {
		return []models.PaymentOrder{}, nil
	}
	return s.orders.ListByUser(ctx, user.ID.Hex())
}
