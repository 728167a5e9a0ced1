package config

import (
	"time"

	"github.com/nfavre/gatehouse/internal/mail"
	"github.com/nfavre/gatehouse/internal/obs"
	pg "github.com/nfavre/gatehouse/internal/repository/postgres"
)

type App struct {
	Name    string `mapstructure:"name"`
	Env     string `mapstructure:"env"`
	Version string `mapstructure:"version"`
}

type Server struct {
	HTTPAddr        string        `mapstructure:"http_addr"`
	MetricsAddr     string        `mapstructure:"metrics_addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	GracefulTimeout time.Duration `mapstructure:"graceful_timeout"`
}

type OTEL struct {
	Enable       bool    `mapstructure:"enable"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	ServiceName  string  `mapstructure:"service_name"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
}

func (oc *OTEL) AsOTELConfig() *obs.OTELConfig {
	return &obs.OTELConfig{
		Enable:      oc.Enable,
		Endpoint:    oc.OTLPEndpoint,
		ServiceName: oc.ServiceName,
		SampleRatio: oc.SampleRatio,
	}
}

type Log struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// Auth carries every knob the session core recognizes: the two access-token
// lifetimes, the two refresh-token lifetimes, the lockout policy and the
// verification-token lifetime.
type Auth struct {
	JWTSecret          string        `mapstructure:"jwt_secret"`
	AccessTTL          time.Duration `mapstructure:"access_ttl"`
	AccessTTLExtended  time.Duration `mapstructure:"access_ttl_extended"`
	RefreshTTL         time.Duration `mapstructure:"refresh_ttl"`
	RefreshTTLExtended time.Duration `mapstructure:"refresh_ttl_extended"`
	MaxLoginAttempts   int           `mapstructure:"max_login_attempts"`
	LockoutDuration    time.Duration `mapstructure:"lockout_duration"`
	VerificationTTL    time.Duration `mapstructure:"verification_ttl"`
	MinPasswordLen     int           `mapstructure:"min_password_len"`
	SweepInterval      time.Duration `mapstructure:"sweep_interval"`
}

type Mail struct {
	SMTP          mail.SMTPConfig `mapstructure:"smtp"`
	VerifyBaseURL string          `mapstructure:"verify_base_url"`
}

type Config struct {
	App    App       `mapstructure:"app"`
	Server Server    `mapstructure:"server"`
	DB     pg.Config `mapstructure:"db"`
	OTEL   OTEL      `mapstructure:"otel"`
	Log    Log       `mapstructure:"log"`
	Auth   Auth      `mapstructure:"auth"`
	Mail   Mail      `mapstructure:"mail"`
}

func (c *Config) AsLoggerConfig() *obs.LogConfig {
	return &obs.LogConfig{
		Level:  c.Log.Level,
		Pretty: c.Log.Pretty,
		App:    c.App.Name,
		Env:    c.App.Env,
		Ver:    c.App.Version,
	}
}
