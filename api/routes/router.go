package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/stockledger-backend/api/controllers"
	"github.com/angelmondragon/stockledger-backend/api/middleware"
	checkoutsvc "github.com/angelmondragon/stockledger-backend/internal/checkout"
	"github.com/angelmondragon/stockledger-backend/internal/ledger"
	ordersvc "github.com/angelmondragon/stockledger-backend/internal/orders"
	"github.com/angelmondragon/stockledger-backend/internal/payments"
	"github.com/angelmondragon/stockledger-backend/internal/stock"
	"github.com/angelmondragon/stockledger-backend/pkg/config"
	"github.com/angelmondragon/stockledger-backend/pkg/db"
	"github.com/angelmondragon/stockledger-backend/pkg/logger"
	"github.com/angelmondragon/stockledger-backend/pkg/redis"
)

// Params carries everything the router wires into handlers.
type Params struct {
	Config        *config.Config
	Logger        *logger.Logger
	DB            db.Pinger
	Redis         redis.Pinger
	StockManager  *stock.Manager
	Ledger        *ledger.Service
	Checkout      *checkoutsvc.Service
	Orders        *ordersvc.Service
	WebhookGuard  *payments.IdempotencyGuard
	MetricsGather prometheus.Gatherer
}

func NewRouter(p Params) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(p.Logger),
		middleware.RequestID(p.Logger),
		middleware.Logging(p.Logger),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(p.Config))
		r.Get("/ready", controllers.HealthReady(p.Config, p.Logger, p.DB, p.Redis))
	})

	if p.MetricsGather != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(p.MetricsGather, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/stock", func(r chi.Router) {
			r.Post("/reservations", controllers.ReserveStock(p.StockManager, p.Logger))
			r.Delete("/reservations/{reservationID}", controllers.ReleaseReservation(p.StockManager, p.Logger))
			r.Get("/products/{productID}/availability", controllers.StockAvailability(p.StockManager, p.Logger))
		})

		r.Post("/checkout", controllers.Checkout(p.Checkout, p.Logger))
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/payments", controllers.PaymentWebhook(p.Orders, p.WebhookGuard, p.Logger))
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Post("/stock/adjust", controllers.AdjustStock(p.StockManager, p.Logger))
		r.Get("/stock/logs", controllers.StockLogs(p.Ledger, p.Logger))
	})

	return r
}
