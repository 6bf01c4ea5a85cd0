package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"clubhouse/internal/config"
	"clubhouse/internal/models/db_models"
	"clubhouse/pkg/utils"
)

// NotificationService sends member and admin emails in the background. Delivery failures are
// logged and never reach the caller.
type NotificationService interface {
	Welcome(ctx context.Context, account *db_models.Account)
	NewMemberAdmin(ctx context.Context, account *db_models.Account)
	AccountPaused(ctx context.Context, account *db_models.Account, reason string)
	PaymentDispute(ctx context.Context, account *db_models.Account, reason string, amount float64)
	PasswordReset(ctx context.Context, email, token string)
	Goodbye(ctx context.Context, account *db_models.Account)
	TrialWarning(ctx context.Context, account *db_models.Account, daysLeft int, events []db_models.Event)
	WeeklySummary(ctx context.Context, account *db_models.Account, events []db_models.Event)
	ReservationConfirmed(ctx context.Context, reservation *db_models.Reservation, item *db_models.RentalItem)
	RSVPChanged(ctx context.Context, event *db_models.Event, username string, attending bool)
	SendAdminReport(ctx context.Context, subject, html string)
	// Wait blocks until every queued email has been attempted.
	Wait()
}

type notificationService struct {
	mail       IMailService
	enabled    bool
	adminEmail string
	baseURL    string
	clubName   string
	timeout    time.Duration
	log        *zap.Logger
	wg         sync.WaitGroup
}

func NewNotificationService(mail IMailService, cfg *config.Config, log *zap.Logger) NotificationService {
	return &notificationService{
		mail:       mail,
		enabled:    cfg.Mail.Enabled,
		adminEmail: cfg.Mail.AdminEmail,
		baseURL:    strings.TrimRight(cfg.Server.BaseURL, "/"),
		clubName:   cfg.Club.Name,
		timeout:    30 * time.Second,
		log:        log.Named("notify"),
	}
}

func (n *notificationService) Wait() {
	n.wg.Wait()
}

func (n *notificationService) dispatch(ctx context.Context, email Email) {
	logger := n.log.With(
		zap.String("subject", email.Subject),
		zap.String("trace_id", utils.TraceIDFromContext(ctx)),
	)
	if !n.enabled {
		logger.Debug("mail disabled, dropping email")
		return
	}
	if email.To == "" {
		logger.Warn("email has no recipient")
		return
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
		defer cancel()

		if err := n.mail.Send(sendCtx, email); err != nil {
			logger.Warn("send email", zap.String("to", email.To), zap.Error(err))
			return
		}
		logger.Debug("email sent", zap.String("to", email.To))
	}()
}

func (n *notificationService) toAdmin(ctx context.Context, email Email) {
	if n.adminEmail == "" {
		n.log.Debug("no admin address configured", zap.String("subject", email.Subject))
		return
	}
	email.To = n.adminEmail
	n.dispatch(ctx, email)
}

func (n *notificationService) Welcome(ctx context.Context, account *db_models.Account) {
	n.dispatch(ctx, Email{
		To:         account.Email,
		Subject:    fmt.Sprintf("Welcome to %s!", n.clubName),
		Title:      fmt.Sprintf("Welcome, %s!", firstNonEmpty(account.FirstName, account.Username)),
		Intro:      "Your membership is active. Here is what you can do next:",
		Lines:      []string{"RSVP to upcoming trips and events", "Reserve kayaks, tubes and paddleboards", "Join the conversation on the forum"},
		ButtonURL:  n.baseURL + "/events",
		ButtonText: "See upcoming events",
	})
}

func (n *notificationService) NewMemberAdmin(ctx context.Context, account *db_models.Account) {
	n.toAdmin(ctx, Email{
		Subject: "New member: " + account.Username,
		Intro:   "A new member completed checkout.",
		Lines: []string{
			"Username: " + account.Username,
			"Name: " + account.FullName(),
			"Email: " + account.Email,
			"Phone: " + account.Phone,
			"Membership: " + string(account.Membership),
		},
	})
}

func (n *notificationService) AccountPaused(ctx context.Context, account *db_models.Account, reason string) {
	n.dispatch(ctx, Email{
		To:         account.Email,
		Subject:    "Your membership has been paused",
		Intro:      "We could not process your latest membership payment, so your account has been paused until it is resolved.",
		Lines:      []string{"Reason: " + reason},
		ButtonURL:  n.baseURL + "/account",
		ButtonText: "Update payment details",
	})
}

func (n *notificationService) PaymentDispute(ctx context.Context, account *db_models.Account, reason string, amount float64) {
	n.toAdmin(ctx, Email{
		Subject: "URGENT: payment dispute from " + account.Username,
		Intro:   "A charge was disputed. The account has been paused.",
		Lines: []string{
			"Member: " + account.FullName() + " (" + account.Username + ")",
			"Email: " + account.Email,
			"Customer: " + account.StripeCustomerID,
			fmt.Sprintf("Amount: $%.2f", amount),
			"Reason: " + reason,
		},
	})
}

func (n *notificationService) PasswordReset(ctx context.Context, email, token string) {
	n.dispatch(ctx, Email{
		To:         email,
		Subject:    "Reset your password",
		Intro:      "We received a request to reset your password. If you didn't request this, you can ignore this email.",
		ButtonURL:  n.baseURL + "/reset-password?token=" + token,
		ButtonText: "Reset password",
	})
}

func (n *notificationService) Goodbye(ctx context.Context, account *db_models.Account) {
	n.dispatch(ctx, Email{
		To:      account.Email,
		Subject: fmt.Sprintf("Sorry to see you go, %s", firstNonEmpty(account.FirstName, account.Username)),
		Intro:   "Your account and subscription have been cancelled. You are welcome back any time.",
	})
}

func (n *notificationService) TrialWarning(ctx context.Context, account *db_models.Account, daysLeft int, events []db_models.Event) {
	subject := fmt.Sprintf("Your trial ends in %d days", daysLeft)
	if daysLeft == 1 {
		subject = "Your trial ends tomorrow"
	}
	intro := "Sign up before your trial ends to keep your access."
	if len(events) > 0 {
		intro = "Sign up before your trial ends to keep your access. Coming up before then:"
	}
	n.dispatch(ctx, Email{
		To:         account.Email,
		Subject:    subject,
		Intro:      intro,
		Lines:      eventLines(events),
		ButtonURL:  n.baseURL + "/membership",
		ButtonText: "Become a member",
	})
}

func (n *notificationService) WeeklySummary(ctx context.Context, account *db_models.Account, events []db_models.Event) {
	n.dispatch(ctx, Email{
		To:         account.Email,
		Subject:    "This week at " + n.clubName,
		Intro:      "Here is what is coming up this week.",
		Lines:      eventLines(events),
		ButtonURL:  n.baseURL + "/events",
		ButtonText: "RSVP now",
	})
}

func (n *notificationService) ReservationConfirmed(ctx context.Context, r *db_models.Reservation, item *db_models.RentalItem) {
	details := []string{
		fmt.Sprintf("%d x %s", r.Quantity, item.Name),
		"Date: " + r.Date + " (" + string(r.Interval) + blockSuffix(r.TimeBlock) + ")",
		"Pickup: " + r.LocationName,
		fmt.Sprintf("Total: $%.2f (%s, %s)", float64(r.Total)/100, r.PaymentMethod, r.PaymentStatus),
	}
	n.dispatch(ctx, Email{
		To:      r.Email,
		Subject: "Your rental reservation is confirmed",
		Title:   "See you on the water, " + r.Name,
		Lines:   details,
	})
	n.toAdmin(ctx, Email{
		Subject: "New rental reservation: " + r.Name,
		Lines:   append([]string{"Contact: " + r.Email + " " + r.Phone}, details...),
	})
}

func (n *notificationService) RSVPChanged(ctx context.Context, event *db_models.Event, username string, attending bool) {
	verb := "cancelled their RSVP for"
	if attending {
		verb = "RSVPed to"
	}
	n.toAdmin(ctx, Email{
		Subject: fmt.Sprintf("RSVP update: %s", event.Summary),
		Intro:   fmt.Sprintf("%s %s %s.", username, verb, event.Summary),
		Lines: []string{
			"Date: " + utils.FormatDisplay(event.DTStart),
			fmt.Sprintf("Attendees: %d", len(event.RSVPs)),
		},
	})
}

func (n *notificationService) SendAdminReport(ctx context.Context, subject, html string) {
	n.toAdmin(ctx, Email{Subject: subject, RawHTML: html})
}

func eventLines(events []db_models.Event) []string {
	lines := make([]string, 0, len(events))
	for _, e := range events {
		line := utils.FormatDisplay(e.DTStart) + ": " + e.Summary
		if e.Location != "" {
			line += " @ " + e.Location
		}
		lines = append(lines, line)
	}
	return lines
}

func blockSuffix(block string) string {
	if block == "" {
		return ""
	}
	return " " + block
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
