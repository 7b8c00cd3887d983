package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/billforge/billforge-backend/api/controllers"
	webhookcontrollers "github.com/billforge/billforge-backend/api/controllers/webhooks"
	"github.com/billforge/billforge-backend/api/middleware"
	authsvc "github.com/billforge/billforge-backend/internal/auth"
	accountsvc "github.com/billforge/billforge-backend/internal/billingaccounts"
	billsvc "github.com/billforge/billforge-backend/internal/bills"
	paymentsvc "github.com/billforge/billforge-backend/internal/payments"
	plansvc "github.com/billforge/billforge-backend/internal/plans"
	productsvc "github.com/billforge/billforge-backend/internal/products"
	quotasvc "github.com/billforge/billforge-backend/internal/quota"
	subscriptionsvc "github.com/billforge/billforge-backend/internal/subscriptions"
	sweepersvc "github.com/billforge/billforge-backend/internal/sweeper"
	razorpaywebhook "github.com/billforge/billforge-backend/internal/webhooks/razorpay"
	"github.com/billforge/billforge-backend/pkg/config"
	"github.com/billforge/billforge-backend/pkg/db"
	"github.com/billforge/billforge-backend/pkg/enums"
	"github.com/billforge/billforge-backend/pkg/logger"
	"github.com/billforge/billforge-backend/pkg/razorpay"
	"github.com/billforge/billforge-backend/pkg/redis"
)

// RouterParams collects everything the HTTP surface depends on.
type RouterParams struct {
	Config        *config.Config
	Logger        *logger.Logger
	DB            *db.Client
	Redis         *redis.Client
	Gateway       razorpay.Gateway
	Auth          authsvc.Service
	Plans         plansvc.Service
	Subscriptions subscriptionsvc.Service
	Quota         quotasvc.Service
	Payments      paymentsvc.Service
	Products      productsvc.Service
	Bills         billsvc.Service
	Accounts      accountsvc.Service
	Sweeper       sweepersvc.Service
	Webhooks      *razorpaywebhook.Service
	WebhookGuard  *razorpaywebhook.IdempotencyGuard
}

func NewRouter(p RouterParams) http.Handler {
	cfg := p.Config
	logg := p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, controllers.NewReadinessDeps(p.DB, p.Redis)))
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/razorpay", webhookcontrollers.RazorpayWebhook(p.Webhooks, p.Gateway, p.WebhookGuard, logg))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Post("/login", controllers.AuthLogin(p.Auth, logg))
	})

	r.Route("/api/v1/plans", func(r chi.Router) {
		r.Get("/", controllers.ListPlans(p.Plans, logg))
	})

	r.Route("/api/v1/jobs", func(r chi.Router) {
		r.Use(middleware.SchedulerToken(cfg.Scheduler.Token, logg))
		r.Post("/sweep", controllers.RunSweep(p.Sweeper, logg))
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		ownerOnly := middleware.RequireRole(string(enums.AdminRoleOwner), logg)

		r.Route("/api/v1/subscription", func(r chi.Router) {
			r.Get("/", controllers.GetSubscription(p.Subscriptions, logg))
			r.With(ownerOnly).Post("/cancel", controllers.CancelSubscription(p.Subscriptions, logg))
		})

		r.Get("/api/v1/usage", controllers.GetUsage(p.Auth, p.Subscriptions, p.Quota, logg))

		r.Route("/api/v1/payments", func(r chi.Router) {
			r.With(ownerOnly).Post("/order", controllers.CreatePaymentOrder(p.Auth, p.Payments, logg))
			r.With(ownerOnly).Post("/verify", controllers.VerifyPayment(p.Payments, logg))
			r.Get("/{orderID}/status", controllers.PaymentStatus(p.Payments, logg))
			r.With(ownerOnly).Post("/{orderID}/sync", controllers.SyncPayment(p.Payments, logg))
		})

		r.Route("/api/v1/products", func(r chi.Router) {
			r.Post("/", controllers.CreateProduct(p.Auth, p.Products, logg))
			r.Get("/", controllers.ListProducts(p.Products, logg))
			r.Delete("/{productID}", controllers.DeleteProduct(p.Products, logg))
		})

		r.Route("/api/v1/bills", func(r chi.Router) {
			r.Post("/", controllers.CreateBill(p.Auth, p.Bills, logg))
			r.Get("/", controllers.ListBills(p.Bills, logg))
		})

		r.Route("/api/v1/billing-accounts", func(r chi.Router) {
			r.With(ownerOnly).Post("/", controllers.CreateBillingAccount(p.Auth, p.Accounts, logg))
			r.Get("/", controllers.ListBillingAccounts(p.Accounts, logg))
			r.With(ownerOnly).Delete("/{accountID}", controllers.DeleteBillingAccount(p.Accounts, logg))
		})
	})

	return r
}
