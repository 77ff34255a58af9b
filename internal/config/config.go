package config

import "time"

type Config struct {
	Environment Environment
	Log         Log
	HTTP        HTTPServer
	BaseURL     string `env:"BASE_URL" envDefault:"http://localhost:8080"`

	Database Database `envPrefix:"DB_"`
	Paywall  Paywall  `envPrefix:"PAYWALL_"`
	Visitor  Visitor  `envPrefix:"VISITOR_"`
	Grant    Grant    `envPrefix:"GRANT_"`

	Paypal    Paypal    `envPrefix:"PAYPAL_"`
	BrainTree Braintree `envPrefix:"BRAINTREE_"`
}

type Database struct {
	Driver string `env:"DRIVER" envDefault:"sqlite"` // sqlite, mysql
	URL    string `env:"URL" envDefault:"docview.db"`
	Seed   bool   `env:"SEED" envDefault:"true"`
}

type Paywall struct {
	ViewingWindow    time.Duration `env:"VIEWING_WINDOW" envDefault:"24h"`
	SessionTTL       time.Duration `env:"SESSION_TTL" envDefault:"30m"`
	PaymentRateLimit float64       `env:"PAYMENT_RATE_LIMIT" envDefault:"5"` // requests per second per client
	GatewayTimeout   time.Duration `env:"GATEWAY_TIMEOUT" envDefault:"90s"`   // upper bound on one charge, independent of the request

	// mock gateway, demo/staging only
	MockEnabled     bool          `env:"MOCK_ENABLED" envDefault:"true"`
	MockDelay       time.Duration `env:"MOCK_DELAY" envDefault:"1500ms"`
	MockSuccessRate float64       `env:"MOCK_SUCCESS_RATE" envDefault:"0.8"`
	MockSeed        int64         `env:"MOCK_SEED" envDefault:"0"` // 0 seeds from the clock
}

type Visitor struct {
	TickPeriod time.Duration `env:"TICK_PERIOD" envDefault:"1s"`

	// share-link minting is disabled while ShareKey is empty
	ShareKey   string        `env:"SHARE_KEY"`
	LinkTTL    time.Duration `env:"LINK_TTL" envDefault:"48h"`
	MaxLinkTTL time.Duration `env:"MAX_LINK_TTL" envDefault:"720h"`
}

type Grant struct {
	Secret string `env:"SECRET" envDefault:"dev-grant-secret-change-me"`
	Issuer string `env:"ISSUER" envDefault:"docview-paywall"`
}

type Paypal struct {
	BaseApiURL   string `env:"BASE_API_URL" envDefault:"https://api-m.sandbox.paypal.com"`
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`

	// PayPal does not take VND. Such prices are converted at SettleRate
	// (settle currency per major unit, e.g. 0.000039 USD per VND); with no
	// rate, PayPal orders for them are refused.
	SettleCurrency string `env:"SETTLE_CURRENCY" envDefault:"USD"`
	SettleRate     string `env:"SETTLE_RATE"`
}

type Braintree struct {
	Environment string `env:"ENVIRONMENT"`
	MerchantID  string `env:"MERCHANT_ID"`
	PublicKey   string `env:"PUBLIC_KEY"`
	PrivateKey  string `env:"PRIVATE_KEY"`
}

type Environment struct {
	Name string `env:"ENVIRONMENT" envDefault:"development"`
}

func (e Environment) IsProduction() bool {
	return e.Name == "production"
}

type Log struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

type HTTPServer struct {
	Host string `env:"HTTP_HOST" envDefault:"0.0.0.0"`
	Port string `env:"HTTP_PORT" envDefault:"8080"`
}
