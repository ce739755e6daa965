package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/irsalhamdi/traderfolio/api/middleware"
	"github.com/irsalhamdi/traderfolio/api/web"
	"github.com/irsalhamdi/traderfolio/core/course"
	"github.com/irsalhamdi/traderfolio/core/order"
	"github.com/irsalhamdi/traderfolio/core/service"
	"github.com/irsalhamdi/traderfolio/core/workshop"
	"github.com/irsalhamdi/traderfolio/database"
	"github.com/irsalhamdi/traderfolio/gateway"
	"github.com/irsalhamdi/traderfolio/rate"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

type APIConfig struct {
	CorsOrigin string
	Log        logrus.FieldLogger
	DB         *sqlx.DB
	Orders     *order.Service
	Stripe     *gateway.StripeClient
	Limiter    *rate.Limiter
}

type api struct {
	*mux.Router
	mw  []web.Middleware
	log logrus.FieldLogger
}

func APIMux(cfg APIConfig) http.Handler {
	a := &api{
		Router: mux.NewRouter(),
		log:    cfg.Log,
	}

	a.mw = append(a.mw, middleware.RequestID())
	a.mw = append(a.mw, middleware.Logger(cfg.Log))
	a.mw = append(a.mw, middleware.Metrics())
	a.mw = append(a.mw, middleware.Errors(cfg.Log))
	a.mw = append(a.mw, middleware.Panics())

	if cfg.CorsOrigin != "" {
		a.mw = append(a.mw, middleware.Cors(cfg.CorsOrigin))

		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			w.WriteHeader(http.StatusNoContent)
			return nil
		}

		a.Handle(http.MethodOptions, "/{path:.*}", h)
	}

	var limit web.Middleware
	if cfg.Limiter != nil {
		limit = middleware.RateLimit(cfg.Limiter)
	}

	a.Handle(http.MethodGet, "/readiness", handleReadiness(cfg.DB))
	a.Router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	a.Handle(http.MethodGet, "/courses/{id}", course.HandleShow(cfg.DB))
	a.Handle(http.MethodGet, "/courses", course.HandleList(cfg.DB))
	a.Handle(http.MethodGet, "/workshops/{id}", workshop.HandleShow(cfg.DB))
	a.Handle(http.MethodGet, "/workshops", workshop.HandleList(cfg.DB))
	a.Handle(http.MethodGet, "/services/{id}", service.HandleShow(cfg.DB))
	a.Handle(http.MethodGet, "/services", service.HandleList(cfg.DB))

	a.Handle(http.MethodGet, "/checkout/config", order.HandleCheckoutConfig(cfg.Orders))

	if cfg.Stripe != nil {
		a.Handle(http.MethodPost, "/orders/stripe/webhook", order.HandleStripeWebhook(cfg.Orders, cfg.Stripe))
	}
	a.Handle(http.MethodPost, "/orders", order.HandleCreate(cfg.Orders), limit)
	a.Handle(http.MethodPost, "/orders/{id}/verify", order.HandleVerify(cfg.Orders), limit)
	a.Handle(http.MethodGet, "/orders/{id}", order.HandleShow(cfg.DB))

	return a.Router
}

func (a *api) Handle(method string, path string, handler web.Handler, mw ...web.Middleware) {

	handler = web.WrapMiddleware(mw, handler)

	handler = web.WrapMiddleware(a.mw, handler)

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

		ctx := r.Context()

		if err := handler(ctx, w, r); err != nil {

			a.log.WithFields(logrus.Fields{
				"req_id":  middleware.ContextRequestID(ctx),
				"message": err,
			}).Error("ERROR")
		}
	})

	a.Router.Handle(path, h).Methods(method)
}

func handleReadiness(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		status := struct {
			Status string `json:"status"`
		}{
			Status: "ok",
		}

		code := http.StatusOK
		if err := database.StatusCheck(ctx, db); err != nil {
			status.Status = "db not ready"
			code = http.StatusInternalServerError
		}

		return web.Respond(ctx, w, status, code)
	}
}
