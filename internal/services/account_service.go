package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"clubhouse/internal/config"
	"clubhouse/internal/models/db_models"
	"clubhouse/internal/models/request_models"
	"clubhouse/internal/models/response_models"
	"clubhouse/internal/payments"
	"clubhouse/internal/repositories"
	mem "clubhouse/pkg/memcache"
	"clubhouse/pkg/utils"
)

// RequestMeta describes the client behind a request, for waiver and audit records.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

type AccountServiceInterface interface {
	SignUp(ctx context.Context, request request_models.SignUpRequest, meta RequestMeta) (*response_models.SignUpResponse, error)
	Login(ctx context.Context, request request_models.LoginRequest) (*response_models.AccountLoginResponse, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, request request_models.ResetPasswordRequest) error
	GetProfile(ctx context.Context, accountID uuid.UUID) (*response_models.AccountResponse, error)
	UpdateProfile(ctx context.Context, accountID uuid.UUID, request request_models.UpdateProfileRequest) (*response_models.AccountResponse, error)
	DeleteAccount(ctx context.Context, accountID uuid.UUID) error
}

type AccountService struct {
	accountRepo repositories.AccountRepository
	pendingRepo repositories.PendingRegistrationRepository
	gateway     payments.Gateway
	notifier    NotificationService
	resetTokens mem.ResetTokenStore
	tokens      *utils.TokenManager
	cfg         *config.Config
	log         *zap.Logger
}

func NewAccountService(
	accountRepo repositories.AccountRepository,
	pendingRepo repositories.PendingRegistrationRepository,
	gateway payments.Gateway,
	notifier NotificationService,
	resetTokens mem.ResetTokenStore,
	tokens *utils.TokenManager,
	cfg *config.Config,
	log *zap.Logger,
) AccountServiceInterface {
	return &AccountService{
		accountRepo: accountRepo,
		pendingRepo: pendingRepo,
		gateway:     gateway,
		notifier:    notifier,
		resetTokens: resetTokens,
		tokens:      tokens,
		cfg:         cfg,
		log:         log.Named("accounts"),
	}
}

// SignUp stores a pending registration and the processor customer it will check out as.
// The account itself is created when checkout completes.
func (a *AccountService) SignUp(ctx context.Context, request request_models.SignUpRequest, meta RequestMeta) (*response_models.SignUpResponse, error) {
	if !request.WaiverAccepted {
		return nil, fmt.Errorf("waiver must be accepted: %w", utils.ErrInvalidInput)
	}
	membership := db_models.Membership(request.Membership)
	if membership != db_models.MembershipMonthly && membership != db_models.MembershipAnnual {
		return nil, fmt.Errorf("membership %q: %w", request.Membership, utils.ErrInvalidInput)
	}

	existing, err := a.accountRepo.FindByUsernameOrEmail(ctx, request.Username, request.Email)
	if err != nil {
		return nil, fmt.Errorf("lookup account: %w", utils.ErrDatabaseError)
	}
	if existing != nil {
		return nil, utils.ErrAccountExists
	}

	now := time.Now()
	pending, err := a.pendingRepo.FindActiveByUsernameOrEmail(ctx, request.Username, request.Email, now)
	if err != nil {
		return nil, fmt.Errorf("lookup pending registration: %w", utils.ErrDatabaseError)
	}
	if pending != nil {
		// a retried signup from the same address replaces the abandoned one
		if !strings.EqualFold(pending.Email, request.Email) {
			return nil, utils.ErrAccountExists
		}
		if _, err := a.pendingRepo.Delete(ctx, pending.ID); err != nil {
			return nil, fmt.Errorf("replace pending registration: %w", utils.ErrDatabaseError)
		}
	}

	hashed, err := utils.HashPassword(request.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	customerID, err := a.customerFor(ctx, request)
	if err != nil {
		return nil, err
	}

	version := request.WaiverVersion
	if version == "" {
		version = db_models.CurrentWaiverVersion
	}
	pending = &db_models.PendingRegistration{
		Username:         request.Username,
		Email:            request.Email,
		PasswordHash:     hashed,
		FirstName:        request.FirstName,
		LastName:         request.LastName,
		Phone:            request.Phone,
		Membership:       membership,
		StripeCustomerID: customerID,
		Waiver: db_models.Waiver{
			Accepted:   true,
			AcceptedAt: &now,
			Version:    version,
			IPAddress:  meta.IPAddress,
			UserAgent:  meta.UserAgent,
		},
		ExpiresAt: now.Add(db_models.PendingRegistrationTTL),
	}
	if err := a.pendingRepo.Create(ctx, pending); err != nil {
		return nil, fmt.Errorf("create pending registration: %w", utils.ErrDatabaseError)
	}

	a.log.Info("pending registration created",
		zap.String("username", pending.Username),
		zap.String("customer_id", customerID),
		zap.String("trace_id", utils.TraceIDFromContext(ctx)),
	)
	return &response_models.SignUpResponse{PendingID: pending.ID, ExpiresAt: pending.ExpiresAt}, nil
}

// customerFor reuses an existing processor customer with the same email.
func (a *AccountService) customerFor(ctx context.Context, request request_models.SignUpRequest) (string, error) {
	found, err := a.gateway.ListCustomersByEmail(ctx, request.Email, 1)
	if err != nil {
		return "", fmt.Errorf("find customer: %v: %w", err, utils.ErrPaymentGateway)
	}
	if len(found) > 0 {
		return found[0].ID, nil
	}

	name := strings.TrimSpace(request.FirstName + " " + request.LastName)
	customer, err := a.gateway.CreateCustomer(ctx, request.Email, name, map[string]string{"username": request.Username})
	if err != nil {
		return "", fmt.Errorf("create customer: %v: %w", err, utils.ErrPaymentGateway)
	}
	return customer.ID, nil
}

func (a *AccountService) Login(ctx context.Context, request request_models.LoginRequest) (*response_models.AccountLoginResponse, error) {
	account, err := a.accountRepo.FindByUsernameOrEmail(ctx, request.Username, request.Username)
	if err != nil {
		return nil, fmt.Errorf("lookup account: %w", utils.ErrDatabaseError)
	}
	if account == nil {
		return nil, utils.ErrInvalidCredentials
	}
	if err := utils.ComparePasswords(account.PasswordHash, request.Password); err != nil {
		return nil, utils.ErrInvalidCredentials
	}
	if requiresPayment(account) {
		return nil, utils.ErrPaymentRequired
	}

	token, err := a.tokens.CreateToken(account.ID, account.Username, account.Role)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	now := time.Now()
	if err := a.accountRepo.UpdateFields(ctx, account.ID, map[string]interface{}{"last_login_at": now}); err != nil {
		a.log.Warn("record last login", zap.String("username", account.Username), zap.Error(err))
	}
	account.LastLoginAt = &now

	return &response_models.AccountLoginResponse{
		Token:   token,
		Account: response_models.NewAccountResponse(account),
	}, nil
}

// requiresPayment blocks monthly members whose current month is unpaid. Trials, admins and the
// founder are exempt.
func requiresPayment(account *db_models.Account) bool {
	if account.IsAdmin() || account.AccountType == db_models.AccountTypeFounder {
		return false
	}
	if account.Status == db_models.StatusTrial {
		return false
	}
	return account.Membership == db_models.MembershipMonthly && !account.PaidForCurrentMonth
}

// ForgotPassword never reveals whether the email belongs to an account.
func (a *AccountService) ForgotPassword(ctx context.Context, email string) error {
	account, err := a.accountRepo.FindByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("lookup account: %w", utils.ErrDatabaseError)
	}
	if account == nil {
		a.log.Info("password reset for unknown email", zap.String("trace_id", utils.TraceIDFromContext(ctx)))
		return nil
	}

	token, err := utils.GenerateSecureToken(32)
	if err != nil {
		return fmt.Errorf("generate reset token: %w", err)
	}
	a.resetTokens.Set(token, account.ID.String(), a.cfg.Auth.ResetTokenTTL)
	a.notifier.PasswordReset(ctx, account.Email, token)
	return nil
}

func (a *AccountService) ResetPassword(ctx context.Context, request request_models.ResetPasswordRequest) error {
	accountID, err := uuid.Parse(a.resetTokens.Consume(request.Token))
	if err != nil {
		return utils.ErrInvalidResetToken
	}

	hashed, err := utils.HashPassword(request.NewPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return a.accountRepo.UpdateFields(ctx, accountID, map[string]interface{}{"password_hash": hashed})
}

func (a *AccountService) GetProfile(ctx context.Context, accountID uuid.UUID) (*response_models.AccountResponse, error) {
	account, err := a.accountRepo.FindById(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("lookup account: %w", utils.ErrDatabaseError)
	}
	if account == nil {
		return nil, utils.ErrAccountNotFound
	}
	resp := response_models.NewAccountResponse(account)
	return &resp, nil
}

func (a *AccountService) UpdateProfile(ctx context.Context, accountID uuid.UUID, request request_models.UpdateProfileRequest) (*response_models.AccountResponse, error) {
	changes := map[string]interface{}{}
	if request.FirstName != nil {
		changes["first_name"] = strings.TrimSpace(*request.FirstName)
	}
	if request.LastName != nil {
		changes["last_name"] = strings.TrimSpace(*request.LastName)
	}
	if request.Phone != nil {
		changes["phone"] = strings.TrimSpace(*request.Phone)
	}
	if request.ProfilePhoto != nil {
		changes["profile_photo"] = *request.ProfilePhoto
	}

	if len(changes) > 0 {
		if err := a.accountRepo.UpdateFields(ctx, accountID, changes); err != nil {
			return nil, err
		}
	}
	return a.GetProfile(ctx, accountID)
}

// DeleteAccount cancels processor subscriptions before removing the account.
func (a *AccountService) DeleteAccount(ctx context.Context, accountID uuid.UUID) error {
	account, err := a.accountRepo.FindById(ctx, accountID)
	if err != nil {
		return fmt.Errorf("lookup account: %w", utils.ErrDatabaseError)
	}
	if account == nil {
		return utils.ErrAccountNotFound
	}

	if account.StripeCustomerID != "" {
		n, err := a.gateway.CancelSubscriptions(ctx, account.StripeCustomerID)
		if err != nil {
			return fmt.Errorf("cancel subscriptions: %v: %w", err, utils.ErrPaymentGateway)
		}
		a.log.Info("subscriptions cancelled", zap.String("username", account.Username), zap.Int("count", n))
	}

	if err := a.accountRepo.Delete(ctx, accountID); err != nil {
		return err
	}
	a.notifier.Goodbye(ctx, account)
	return nil
}
