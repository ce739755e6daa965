package config

import "time"

type Config struct {
	Web      Web
	DB       DB
	Cors     Cors
	Rate     Rate
	Payment  Payment
	Razorpay Razorpay
	Stripe   Stripe
	Paypal   Paypal
	Alert    Alert
}

type Web struct {
	Address         string        `conf:"default:0.0.0.0:8000"`
	ReadTimeout     time.Duration `conf:"default:5s"`
	WriteTimeout    time.Duration `conf:"default:10s"`
	IdleTimeout     time.Duration `conf:"default:120s"`
	ShutdownTimeout time.Duration `conf:"default:20s"`
}

type DB struct {
	User         string `conf:"default:postgres"`
	Password     string `conf:"default:postgres,mask"`
	Host         string `conf:"default:localhost:5432"`
	Name         string `conf:"default:traderfolio"`
	MaxIdleConns int    `conf:"default:0"`
	MaxOpenConns int    `conf:"default:0"`
	DisableTLS   bool   `conf:"default:true"`
}

type Cors struct {
	Origin string
}

type Rate struct {
	Burst    int           `conf:"default:5"`
	Interval time.Duration `conf:"default:2s"`
	Expiry   time.Duration `conf:"default:10m"`
}

type Payment struct {
	DefaultGateway  string        `conf:"default:razorpay"`
	DefaultCurrency string        `conf:"default:INR"`
	GatewayTimeout  time.Duration `conf:"default:10s"`
}

type Razorpay struct {
	KeyID     string
	KeySecret string `conf:"mask"`
	URL       string `conf:"default:https://api.razorpay.com"`
	ScriptURL string `conf:"default:https://checkout.razorpay.com/v1/checkout.js"`
	Name      string `conf:"default:Traderfolio"`
}

type Stripe struct {
	APISecret      string `conf:"mask"`
	PublishableKey string
	WebhookSecret  string `conf:"mask"`
	URL            string
	ScriptURL      string `conf:"default:https://js.stripe.com/v3/"`
}

type Paypal struct {
	ClientID  string
	Secret    string `conf:"mask"`
	URL       string `conf:"default:https://api-m.sandbox.paypal.com"`
	ScriptURL string `conf:"default:https://www.paypal.com/sdk/js"`
}

type Alert struct {
	WebhookURL string
	Timeout    time.Duration `conf:"default:5s"`
}
