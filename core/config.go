package core

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Debug    bool
	TestMode bool
	Env      string // DEV (default), TEST, QA, PROD
	AppName  string
	Build    string

	Server struct {
		Host            string
		Addr            string
		ShutdownTimeout time.Duration
	}

	// AttendanceAPI is the remote attendance service this client core
	// reads from and writes through.
	AttendanceAPI struct {
		BaseURL string
		Timeout time.Duration
	}

	Redis struct {
		Addr string
	}

	Drafts struct {
		TTL              time.Duration
		AutosaveInterval time.Duration
	}

	// Alerts.RateThreshold is the attendance rate (percent) below which
	// a student is included in the low-attendance report.
	Alerts struct {
		RateThreshold float64
	}

	DefaultFromEmail string
	SendgridAPIKey   string
	RollbarToken     string
}

func NewConfig() *Config {
	conf := viper.New()
	conf.SetTypeByDefaultValue(true)

	// defaults
	conf.SetDefault("debug", true)
	conf.SetDefault("appName", "Mahudhurio")
	conf.SetDefault("build", "dev")
	conf.SetDefault("server.host", "localhost")
	conf.SetDefault("server.addr", ":8000")
	conf.SetDefault("server.shutdownTimeout", 20*time.Second)
	conf.SetDefault("attendanceApi.baseUrl", "http://localhost:9000")
	conf.SetDefault("attendanceApi.timeout", 15*time.Second)
	conf.SetDefault("redis.addr", "localhost:6379")
	conf.SetDefault("drafts.ttl", 7*24*time.Hour)
	conf.SetDefault("drafts.autosaveInterval", 30*time.Second)
	conf.SetDefault("alerts.rateThreshold", 75.0)
	conf.SetDefault("defaultFromEmail", "noreply@localhost")

	env := os.Getenv("ENV")
	if env == "" {
		env = "DEV"
	}
	conf.SetEnvPrefix(env)
	conf.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join("config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	conf.AutomaticEnv()

	cfg := &Config{
		Debug:            conf.GetBool("debug"),
		TestMode:         env == "TEST",
		Env:              env,
		AppName:          conf.GetString("appName"),
		Build:            conf.GetString("build"),
		DefaultFromEmail: conf.GetString("defaultFromEmail"),
		SendgridAPIKey:   conf.GetString("sendgridApiKey"),
		RollbarToken:     conf.GetString("rollbarToken"),
	}
	cfg.Server.Host = conf.GetString("server.host")
	cfg.Server.Addr = conf.GetString("server.addr")
	cfg.Server.ShutdownTimeout = conf.GetDuration("server.shutdownTimeout")
	cfg.AttendanceAPI.BaseURL = conf.GetString("attendanceApi.baseUrl")
	cfg.AttendanceAPI.Timeout = conf.GetDuration("attendanceApi.timeout")
	cfg.Redis.Addr = conf.GetString("redis.addr")
	cfg.Drafts.TTL = conf.GetDuration("drafts.ttl")
	cfg.Drafts.AutosaveInterval = conf.GetDuration("drafts.autosaveInterval")
	cfg.Alerts.RateThreshold = conf.GetFloat64("alerts.rateThreshold")
	return cfg
}
