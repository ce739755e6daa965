package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ardanlabs/conf/v3"
	"github.com/irsalhamdi/traderfolio/alert"
	"github.com/irsalhamdi/traderfolio/api"
	"github.com/irsalhamdi/traderfolio/api/background"
	"github.com/irsalhamdi/traderfolio/config"
	"github.com/irsalhamdi/traderfolio/core/order"
	"github.com/irsalhamdi/traderfolio/database"
	"github.com/irsalhamdi/traderfolio/gateway"
	"github.com/irsalhamdi/traderfolio/rate"
	"github.com/plutov/paypal/v4"
	"github.com/sirupsen/logrus"
)

func main() {
	log := logrus.New()
	log.SetOutput(os.Stdout)

	if err := Run(log); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

func Run(logger *logrus.Logger) error {
	logger.Infof("starting server")
	defer logger.Info("shutdown complete")

	const prefix = "TRADER"
	var cfg config.Config
	if _, err := conf.Parse(prefix, &cfg); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}

	lw := logger.Writer()
	defer lw.Close()
	errLog := log.New(lw, "", 0)

	db, err := database.Open(cfg.DB)
	if err != nil {
		return fmt.Errorf("failed to open db connection: %w", err)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("failed to migrate the database: %w", err)
	}

	bg := background.New(logger)

	gws, strp, err := gateways(cfg)
	if err != nil {
		return err
	}
	if _, err := gws.Get(cfg.Payment.DefaultGateway); err != nil {
		return fmt.Errorf("default payment gateway: %w", err)
	}
	logger.Infof("payment gateways enabled: %v", gws.Names())

	orders := order.NewService(order.ServiceConfig{
		DB:             db,
		Gateways:       gws,
		DefaultGateway: cfg.Payment.DefaultGateway,
		Timeout:        cfg.Payment.GatewayTimeout,
		Alerter:        alert.New(cfg.Alert.WebhookURL, cfg.Alert.Timeout, bg, logger),
		Log:            logger,
	})

	lim := rate.NewLimiter(cfg.Rate.Burst, rate.Every(cfg.Rate.Interval), cfg.Rate.Expiry)
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go lim.Run(sweepCtx, time.Minute)

	mux := api.APIMux(api.APIConfig{
		CorsOrigin: cfg.Cors.Origin,
		Log:        logger,
		DB:         db,
		Orders:     orders,
		Stripe:     strp,
		Limiter:    lim,
	})

	api := http.Server{
		Handler:      mux,
		Addr:         cfg.Web.Address,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     errLog,
	}

	serverErrors := make(chan error, 1)

	go func() {
		logger.Infof("starting api router at %s", api.Addr)
		serverErrors <- api.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		logger.Infof("shutting down: signal %s", sig)

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancel()

		if err := api.Shutdown(ctx); err != nil {
			api.Close()
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}

		if err := bg.Shutdown(ctx); err != nil {
			return fmt.Errorf("could not complete all background tasks: %w", err)
		}
	}
	return nil
}

// gateways builds a client for every provider that has credentials.
func gateways(cfg config.Config) (gateway.Set, *gateway.StripeClient, error) {
	var list []gateway.Gateway

	if cfg.Razorpay.KeyID != "" {
		list = append(list, gateway.NewRazorpay(cfg.Razorpay, cfg.Payment.GatewayTimeout))
	}

	var strp *gateway.StripeClient
	if cfg.Stripe.APISecret != "" {
		strp = gateway.NewStripe(gateway.NewStripeAPI(cfg.Stripe), cfg.Stripe)
		list = append(list, strp)
	}

	if cfg.Paypal.ClientID != "" {
		pp, err := paypal.NewClient(
			cfg.Paypal.ClientID,
			cfg.Paypal.Secret,
			cfg.Paypal.URL,
		)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to build the paypal client: %w", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Payment.GatewayTimeout)
		defer cancel()
		if _, err = pp.GetAccessToken(ctx); err != nil {
			return nil, nil, fmt.Errorf("failed to get the first paypal access token: %w", err)
		}

		list = append(list, gateway.NewPaypal(pp, cfg.Paypal))
	}

	if len(list) == 0 {
		return nil, nil, fmt.Errorf("no payment gateway configured")
	}

	return gateway.NewSet(list...), strp, nil
}
