package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"

	"clubhouse/internal/api/controllers"
	"clubhouse/internal/models/db_models"
	"clubhouse/pkg/middleware"
	"clubhouse/pkg/utils"
)

// Controllers collects every handler set the router mounts.
type Controllers struct {
	fx.In

	Account *controllers.AccountController
	Payment *controllers.PaymentController
	Rental  *controllers.RentalController
	Event   *controllers.EventController
	Forum   *controllers.ForumController
	Admin   *controllers.AdminController
}

func NewRouter(ctrl Controllers, tokens *utils.TokenManager, limiter *middleware.ClientLimiter) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(middleware.TraceIDMiddleware())
	r.Use(middleware.CORSMiddleware())

	RegisterRoutes(r, ctrl, tokens, limiter)

	return r
}

func RegisterRoutes(r *gin.Engine, ctrl Controllers, tokens *utils.TokenManager, limiter *middleware.ClientLimiter) {
	auth := middleware.JWTAuthMiddleware(tokens)
	adminOnly := middleware.RoleMiddleware(db_models.RoleAdmin)
	throttled := middleware.RateLimitMiddleware(limiter)

	r.GET("/healthz", func(c *gin.Context) {
		utils.RespondSuccess(c, nil, "ok")
	})

	accountGroup := r.Group("/accounts")
	accountGroup.POST("/signup", throttled, ctrl.Account.SignUp)
	accountGroup.POST("/login", throttled, ctrl.Account.Login)
	accountGroup.POST("/forgot-password", throttled, ctrl.Account.ForgotPassword)
	accountGroup.POST("/reset-password", ctrl.Account.ResetPassword)
	accountGroup.GET("/me", auth, ctrl.Account.GetProfile)
	accountGroup.PUT("/me", auth, ctrl.Account.UpdateProfile)
	accountGroup.DELETE("/me", auth, ctrl.Account.DeleteAccount)

	paymentGroup := r.Group("/payments")
	paymentGroup.POST("/checkout-session", ctrl.Payment.CreateCheckoutSession)
	paymentGroup.POST("/cancel", ctrl.Payment.CancelCheckout)
	paymentGroup.POST("/webhook", ctrl.Payment.HandleWebhook)

	rentalGroup := r.Group("/rentals")
	rentalGroup.GET("/items", ctrl.Rental.ListItems)
	rentalGroup.GET("/locations", ctrl.Rental.ListLocations)
	rentalGroup.GET("/items/:id/unavailable-dates", ctrl.Rental.UnavailableDates)
	rentalGroup.GET("/bookings", auth, ctrl.Rental.ListMyBookings)
	rentalGroup.POST("/bookings", auth, ctrl.Rental.CreateBooking)
	rentalGroup.POST("/bookings/confirm-cash", auth, ctrl.Rental.ConfirmCashBooking)
	rentalGroup.DELETE("/bookings/:id", auth, ctrl.Rental.CancelBooking)

	eventGroup := r.Group("/events", auth)
	eventGroup.GET("", ctrl.Event.ListUpcoming)
	eventGroup.POST("/:key/rsvp", ctrl.Event.RSVP)
	eventGroup.DELETE("/:key/rsvp", ctrl.Event.CancelRSVP)
	eventGroup.GET("/:key/phone-numbers", adminOnly, ctrl.Event.PhoneNumbers)

	forumGroup := r.Group("/forum", auth)
	forumGroup.GET("/posts", ctrl.Forum.ListPosts)
	forumGroup.POST("/posts", ctrl.Forum.CreatePost)
	forumGroup.GET("/posts/:id", ctrl.Forum.GetPost)
	forumGroup.DELETE("/posts/:id", ctrl.Forum.DeletePost)
	forumGroup.POST("/posts/:id/comments", ctrl.Forum.AddComment)

	adminGroup := r.Group("/admin", auth, adminOnly)
	adminGroup.GET("/payment-issues", ctrl.Admin.PaymentIssues)
	adminGroup.GET("/accounts/:id", ctrl.Admin.AccountDetail)
	adminGroup.POST("/accounts/:id/pause", ctrl.Admin.Pause)
	adminGroup.POST("/accounts/:id/suspend", ctrl.Admin.Suspend)
	adminGroup.POST("/accounts/:id/reinstate", ctrl.Admin.Reinstate)
	adminGroup.POST("/accounts/:id/notes", ctrl.Admin.SetNotes)
	adminGroup.GET("/payment-stats", ctrl.Admin.PaymentStats)
	adminGroup.POST("/reconcile", ctrl.Admin.Reconcile)
	adminGroup.GET("/reconcile/runs", ctrl.Admin.RecentRuns)
}
