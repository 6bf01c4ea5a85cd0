package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"clubhouse/internal/api"
	"clubhouse/internal/api/controllers"
	"clubhouse/internal/config"
	"clubhouse/internal/infra"
	"clubhouse/internal/models/db_models"
	"clubhouse/internal/payments"
	"clubhouse/internal/payments/paymentstest"
	"clubhouse/internal/reconcile"
	"clubhouse/internal/repositories"
	"clubhouse/internal/services"
	"clubhouse/internal/services/mailtest"
	"clubhouse/internal/testutil"
	mem "clubhouse/pkg/memcache"
	"clubhouse/pkg/middleware"
	"clubhouse/pkg/utils"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type envelope struct {
	Status  string          `json:"status"`
	Code    int             `json:"code"`
	Message string          `json:"message"`
	TraceID string          `json:"trace_id"`
	Data    json.RawMessage `json:"data"`
}

type server struct {
	db      *gorm.DB
	router  *gin.Engine
	tokens  *utils.TokenManager
	gateway *paymentstest.Gateway
	mailer  *mailtest.Mailer
	catalog repositories.RentalCatalogRepository
}

func newServer(t *testing.T, perMinute int) *server {
	t.Helper()
	db := testutil.NewDB(t)
	log := zap.NewNop()
	cfg := &config.Config{
		Server:    config.ServerConfig{BaseURL: "https://club.test"},
		Auth:      config.AuthConfig{JWTSecret: "secret", TokenTTL: time.Hour, ResetTokenTTL: time.Hour},
		Stripe:    config.StripeConfig{MonthlyPriceID: "price_monthly", AnnualPriceID: "price_annual"},
		Mail:      config.MailConfig{AdminEmail: "admin@club.test", Enabled: true},
		Club:      config.ClubConfig{Name: "Test Club", FounderUsername: "founder"},
		Rental:    config.RentalConfig{HoldTTL: 30 * time.Minute},
		Reconcile: config.ReconcileConfig{Workers: 2},
	}
	require.NoError(t, repositories.UseAccountGuard(db, repositories.NewAccountGuard(cfg.Club.FounderUsername, log)))

	accounts := repositories.NewAccountRepository(db)
	pending := repositories.NewPendingRegistrationRepository(db)
	failures := repositories.NewPaymentFailureRepository(db)
	audits := repositories.NewWaiverAuditRepository(db)
	catalog := repositories.NewRentalCatalogRepository(db)
	reservations := repositories.NewReservationRepository(db)
	events := repositories.NewEventRepository(db)
	forum := repositories.NewForumRepository(db)
	runs := repositories.NewReconcileRunRepository(db)

	gateway := paymentstest.NewGateway()
	mailer := &mailtest.Mailer{}
	notifier := services.NewNotificationService(mailer, cfg, log)
	t.Cleanup(notifier.Wait)
	tokens := utils.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	resolver := payments.NewResolver(gateway, &config.AnnualAllowlist{}, log)
	runner := reconcile.NewRunner(accounts, failures, runs, gateway, resolver, notifier, infra.NewLocalLocker(), 2, log)

	ctrl := api.Controllers{
		Account: controllers.NewAccountController(services.NewAccountService(
			accounts, pending, gateway, notifier, mem.NewResetTokens(), tokens, cfg, log)),
		Payment: controllers.NewPaymentController(
			services.NewPaymentService(pending, gateway, cfg, log),
			services.NewWebhookService(accounts, pending, failures, reservations, catalog, gateway, notifier, cfg, log),
		),
		Rental: controllers.NewRentalController(services.NewRentalService(catalog, reservations, gateway, notifier, cfg, log)),
		Event:  controllers.NewEventController(services.NewEventService(events, notifier, log)),
		Forum:  controllers.NewForumController(services.NewForumService(forum)),
		Admin: controllers.NewAdminController(services.NewAdminService(
			accounts, failures, audits, reservations, runs, runner, log)),
	}

	return &server{
		db:      db,
		router:  api.NewRouter(ctrl, tokens, middleware.NewClientLimiter(perMinute)),
		tokens:  tokens,
		gateway: gateway,
		mailer:  mailer,
		catalog: catalog,
	}
}

func (s *server) do(t *testing.T, method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case []byte:
		reader = bytes.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w, env
}

// account stores an active paid member and returns a bearer token for it.
func (s *server) account(t *testing.T, username, role string) (*db_models.Account, string) {
	t.Helper()
	hash, err := utils.HashPassword("password123")
	require.NoError(t, err)
	acc := &db_models.Account{
		Username:            username,
		Email:               username + "@example.com",
		PasswordHash:        hash,
		Role:                role,
		AccountType:         db_models.AccountTypeMember,
		Status:              db_models.StatusActive,
		Membership:          db_models.MembershipMonthly,
		PaidForCurrentMonth: true,
	}
	require.NoError(t, repositories.NewAccountRepository(s.db).Create(context.Background(), acc))
	token, err := s.tokens.CreateToken(acc.ID, acc.Username, acc.Role)
	require.NoError(t, err)
	return acc, token
}

func TestMembershipJourney(t *testing.T) {
	s := newServer(t, 100)

	w, resp := s.do(t, http.MethodPost, "/accounts/signup", "", map[string]interface{}{
		"username":        "ada",
		"email":           "ada@example.com",
		"password":        "password123",
		"first_name":      "Ada",
		"last_name":       "Lovelace",
		"membership":      "monthly",
		"waiver_accepted": true,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var signup struct {
		PendingID uuid.UUID `json:"pending_id"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &signup))

	w, resp = s.do(t, http.MethodPost, "/payments/checkout-session", "", gin.H{"pending_id": signup.PendingID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, string(resp.Data), "checkout.test")

	// member cannot log in before checkout completes
	w, _ = s.do(t, http.MethodPost, "/accounts/login", "", gin.H{"username": "ada", "password": "password123"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	payload := paymentstest.EventPayload("evt_1", "checkout.session.completed", map[string]interface{}{
		"id":                  "cs_1",
		"client_reference_id": signup.PendingID.String(),
		"customer":            "cus_test_1",
	})
	w, resp = s.do(t, http.MethodPost, "/payments/webhook", "", payload)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var result services.WebhookResult
	require.NoError(t, json.Unmarshal(resp.Data, &result))
	assert.Equal(t, services.OutcomeProcessed, result.Outcome)

	w, resp = s.do(t, http.MethodPost, "/accounts/login", "", gin.H{"username": "ada", "password": "password123"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var login struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &login))

	w, resp = s.do(t, http.MethodGet, "/accounts/me", login.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(resp.Data), `"username":"ada"`)
	assert.Contains(t, string(resp.Data), `"waiver_accepted":true`)

	w, resp = s.do(t, http.MethodPut, "/accounts/me", login.Token, gin.H{"phone": "555-0100"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(resp.Data), `"phone":"555-0100"`)
}

func TestResponsesCarryTraceID(t *testing.T) {
	s := newServer(t, 100)

	w, resp := s.do(t, http.MethodPost, "/accounts/signup", "", []byte("{not json"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid request format", resp.Message)
	assert.NotEmpty(t, resp.TraceID)
	assert.Equal(t, resp.TraceID, w.Header().Get("X-Trace-ID"))
}

func TestAuthorization(t *testing.T) {
	s := newServer(t, 100)
	_, member := s.account(t, "bob", db_models.RoleUser)
	_, admin := s.account(t, "boss", db_models.RoleAdmin)

	cases := []struct {
		name  string
		path  string
		token string
		code  int
	}{
		{"no token", "/accounts/me", "", http.StatusUnauthorized},
		{"garbage token", "/accounts/me", "nope", http.StatusUnauthorized},
		{"member on admin route", "/admin/payment-issues", member, http.StatusForbidden},
		{"admin on admin route", "/admin/payment-issues", admin, http.StatusOK},
		{"member on phone list", "/events/river/phone-numbers", member, http.StatusForbidden},
		{"public catalog", "/rentals/items", "", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, _ := s.do(t, http.MethodGet, tc.path, tc.token, nil)
			assert.Equal(t, tc.code, w.Code)
		})
	}
}

func TestSignupIsRateLimited(t *testing.T) {
	s := newServer(t, 2)

	for i := 0; i < 2; i++ {
		w, _ := s.do(t, http.MethodPost, "/accounts/signup", "", gin.H{})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	}
	w, resp := s.do(t, http.MethodPost, "/accounts/signup", "", gin.H{})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "error", resp.Status)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	s := newServer(t, 100)

	req := httptest.NewRequest(http.MethodPost, "/payments/webhook",
		bytes.NewReader(paymentstest.EventPayload("evt_1", "charge.failed", gin.H{"id": "ch_1"})))
	req.Header.Set("Stripe-Signature", "bad")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhookAcknowledgesUnknownEvents(t *testing.T) {
	s := newServer(t, 100)

	w, resp := s.do(t, http.MethodPost, "/payments/webhook", "",
		paymentstest.EventPayload("evt_9", "customer.created", gin.H{"id": "cus_9"}))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(resp.Data), services.OutcomeIgnored)
}

func TestForumOverHTTP(t *testing.T) {
	s := newServer(t, 100)
	_, author := s.account(t, "ada", db_models.RoleUser)
	_, other := s.account(t, "bob", db_models.RoleUser)

	w, resp := s.do(t, http.MethodPost, "/forum/posts", author, gin.H{"title": "Put-in at Granby", "body": "Water is high"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var post struct {
		ID uuid.UUID `json:"id"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &post))

	w, _ = s.do(t, http.MethodPost, "/forum/posts/"+post.ID.String()+"/comments", other, gin.H{"body": "Thanks"})
	assert.Equal(t, http.StatusCreated, w.Code)

	w, resp = s.do(t, http.MethodGet, "/forum/posts?page=1&pageSize=10", other, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(resp.Data), `"total":1`)

	w, _ = s.do(t, http.MethodGet, "/forum/posts?page=0", other, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = s.do(t, http.MethodDelete, "/forum/posts/"+post.ID.String(), other, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = s.do(t, http.MethodDelete, "/forum/posts/"+post.ID.String(), author, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = s.do(t, http.MethodGet, "/forum/posts/"+post.ID.String(), author, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = s.do(t, http.MethodGet, "/forum/posts/not-a-uuid", author, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCashBookingConflict(t *testing.T) {
	s := newServer(t, 100)
	_, token := s.account(t, "pat", db_models.RoleUser)
	item := &db_models.RentalItem{
		Name:              "Paddleboard",
		Type:              db_models.EquipmentPaddleboard,
		QuantityAvailable: 2,
		PriceHalfDay:      4000,
		PriceFullDay:      6500,
		IsActive:          true,
	}
	require.NoError(t, s.catalog.CreateItem(context.Background(), item))
	date := utils.DateKey(time.Now().AddDate(0, 0, 5))

	booking := gin.H{
		"rental_item_id": item.ID,
		"date":           date,
		"interval":       "full-day",
		"quantity":       2,
		"name":           "Pat Paddler",
		"email":          "pat@example.com",
	}
	w, _ := s.do(t, http.MethodPost, "/rentals/bookings/confirm-cash", token, booking)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w, resp := s.do(t, http.MethodPost, "/rentals/bookings/confirm-cash", token, booking)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "error", resp.Status)

	w, resp = s.do(t, http.MethodGet, "/rentals/items/"+item.ID.String()+"/unavailable-dates?quantity=1", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(resp.Data), date)

	w, _ = s.do(t, http.MethodGet, "/rentals/items/"+item.ID.String()+"/unavailable-dates?quantity=x", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminActions(t *testing.T) {
	s := newServer(t, 100)
	member, _ := s.account(t, "bob", db_models.RoleUser)
	_, admin := s.account(t, "boss", db_models.RoleAdmin)
	base := "/admin/accounts/" + member.ID.String()

	w, _ := s.do(t, http.MethodPost, base+"/suspend", admin, gin.H{"reason": "chargeback"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, resp := s.do(t, http.MethodGet, base, admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(resp.Data), `"status":"suspended"`)
	assert.Contains(t, string(resp.Data), `"account_pause_reason":"chargeback"`)

	w, _ = s.do(t, http.MethodPost, base+"/reinstate", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = s.do(t, http.MethodGet, "/admin/accounts/"+uuid.NewString(), admin, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = s.do(t, http.MethodPost, "/admin/reconcile", admin, gin.H{"mode": "rebuild"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = s.do(t, http.MethodPost, "/admin/reconcile", admin, gin.H{"mode": "analyze"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, resp = s.do(t, http.MethodGet, "/admin/reconcile/runs", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(resp.Data), `"analyze"`)
}
