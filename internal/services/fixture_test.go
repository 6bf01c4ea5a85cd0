package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"clubhouse/internal/config"
	"clubhouse/internal/models/db_models"
	"clubhouse/internal/payments/paymentstest"
	"clubhouse/internal/repositories"
	"clubhouse/internal/services"
	"clubhouse/internal/services/mailtest"
	"clubhouse/internal/testutil"
	mem "clubhouse/pkg/memcache"
	"clubhouse/pkg/utils"
)

const adminEmail = "admin@club.test"

type env struct {
	db       *gorm.DB
	cfg      *config.Config
	log      *zap.Logger
	gateway  *paymentstest.Gateway
	mailer   *mailtest.Mailer
	notifier services.NotificationService
	tokens   *mem.ResetTokens

	accounts     repositories.AccountRepository
	pending      repositories.PendingRegistrationRepository
	failures     repositories.PaymentFailureRepository
	audits       repositories.WaiverAuditRepository
	catalog      repositories.RentalCatalogRepository
	reservations repositories.ReservationRepository
	events       repositories.EventRepository
	forum        repositories.ForumRepository
	runs         repositories.ReconcileRunRepository
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{BaseURL: "https://club.test"},
		Auth:   config.AuthConfig{JWTSecret: "secret", TokenTTL: time.Hour, ResetTokenTTL: 30 * time.Minute},
		Stripe: config.StripeConfig{MonthlyPriceID: "price_monthly", AnnualPriceID: "price_annual"},
		Mail:   config.MailConfig{AdminEmail: adminEmail, Enabled: true},
		Club:   config.ClubConfig{Name: "Test Club", FounderUsername: "founder"},
		Rental: config.RentalConfig{HoldTTL: 30 * time.Minute},
		Reconcile: config.ReconcileConfig{
			Workers: 2,
		},
	}
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := testutil.NewDB(t)
	log := zap.NewNop()
	cfg := testConfig()
	require.NoError(t, repositories.UseAccountGuard(db, repositories.NewAccountGuard(cfg.Club.FounderUsername, log)))

	e := &env{
		db:           db,
		cfg:          cfg,
		log:          log,
		gateway:      paymentstest.NewGateway(),
		mailer:       &mailtest.Mailer{},
		tokens:       mem.NewResetTokens(),
		accounts:     repositories.NewAccountRepository(db),
		pending:      repositories.NewPendingRegistrationRepository(db),
		failures:     repositories.NewPaymentFailureRepository(db),
		audits:       repositories.NewWaiverAuditRepository(db),
		catalog:      repositories.NewRentalCatalogRepository(db),
		reservations: repositories.NewReservationRepository(db),
		events:       repositories.NewEventRepository(db),
		forum:        repositories.NewForumRepository(db),
		runs:         repositories.NewReconcileRunRepository(db),
	}
	e.notifier = services.NewNotificationService(e.mailer, cfg, log)
	t.Cleanup(e.notifier.Wait)
	return e
}

func (e *env) accountService() services.AccountServiceInterface {
	return services.NewAccountService(
		e.accounts, e.pending, e.gateway, e.notifier, e.tokens,
		utils.NewTokenManager(e.cfg.Auth.JWTSecret, e.cfg.Auth.TokenTTL), e.cfg, e.log,
	)
}

func (e *env) webhookService() services.WebhookService {
	return services.NewWebhookService(
		e.accounts, e.pending, e.failures, e.reservations, e.catalog,
		e.gateway, e.notifier, e.cfg, e.log,
	)
}

func (e *env) rentalService() services.RentalService {
	return services.NewRentalService(e.catalog, e.reservations, e.gateway, e.notifier, e.cfg, e.log)
}

// member stores an active account whose password is "password123".
func (e *env) member(t *testing.T, username, customerID string, mutate ...func(*db_models.Account)) *db_models.Account {
	t.Helper()
	hash, err := utils.HashPassword("password123")
	require.NoError(t, err)
	acc := &db_models.Account{
		Username:            username,
		Email:               username + "@example.com",
		PasswordHash:        hash,
		Role:                db_models.RoleUser,
		AccountType:         db_models.AccountTypeMember,
		Status:              db_models.StatusActive,
		Membership:          db_models.MembershipMonthly,
		StripeCustomerID:    customerID,
		PaidForCurrentMonth: true,
	}
	for _, m := range mutate {
		m(acc)
	}
	require.NoError(t, e.accounts.Create(context.Background(), acc))
	return acc
}

func (e *env) reload(t *testing.T, id interface{}) *db_models.Account {
	t.Helper()
	var acc db_models.Account
	require.NoError(t, e.db.First(&acc, "id = ?", id).Error)
	return &acc
}

func (e *env) count(t *testing.T, model interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(model).Count(&n).Error)
	return n
}

func (e *env) rentalItem(t *testing.T, quantity int) *db_models.RentalItem {
	t.Helper()
	item := &db_models.RentalItem{
		Name:              "Touring kayak",
		Type:              db_models.EquipmentKayak,
		QuantityAvailable: quantity,
		PriceHalfDay:      3000,
		PriceFullDay:      5000,
		IsActive:          true,
	}
	require.NoError(t, e.catalog.CreateItem(context.Background(), item))
	return item
}

func futureDate(days int) string {
	return utils.DateKey(time.Now().AddDate(0, 0, days))
}
