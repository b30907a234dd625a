package core

import (
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnginePostgres = "postgres"
	EngineMongo    = "mongodb"
	EngineMemory   = "memory" // local demo only; nothing is persisted
)

type (
	Config struct {
		AppName                   string
		Env                       string // DEV (local; default), TEST, QA, PROD
		Build                     string
		Debug                     bool
		TestMode                  bool
		SecretKey                 string
		RollbarToken              string
		FrontendBaseURL           string
		DefaultFromEmail          string
		SendgridAPIKey            string
		PasswordResetTimeoutDelta time.Duration
		NotifyOnSubmit            bool

		Server   ServerConfig
		Database DatabaseConfig
	}

	ServerConfig struct {
		Host                      string
		Address                   string
		DebugHost                 string
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		ShutdownTimeout           time.Duration
	}

	DatabaseConfig struct {
		Engine        string // postgres | mongodb | memory
		Host          string
		Port          int
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		Name          string
		DisableTLS    bool
		URI           string // mongodb only
	}
)

// Address returns the "host:port" pair of the database server.
func (dc DatabaseConfig) Address() string {
	return net.JoinHostPort(dc.Host, strconv.Itoa(dc.Port))
}

// MongoURI returns the configured connection string, or builds one from the host settings.
func (dc DatabaseConfig) MongoURI() string {
	if dc.URI != "" {
		return dc.URI
	}
	if dc.User != "" {
		return fmt.Sprintf("mongodb://%s:%s@%s", dc.User, dc.Password, dc.Address())
	}
	return "mongodb://" + dc.Address()
}

// NewConfig loads the app configuration from defaults, config/.env.<env> and the environment.
func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("app_name", "Luna")
	v.SetDefault("build", "develop")
	v.SetDefault("secret_key", "0z!t8l(k9w^c7r$+2mbe4j#u3qv&x6n_yd5h1pa=gfs-oi)")
	v.SetDefault("rollbar_token", "")
	v.SetDefault("frontend_base_url", "http://localhost:3000")
	v.SetDefault("default_from_email", "noreply@localhost")
	v.SetDefault("sendgrid_api_key", "")
	v.SetDefault("password_reset_timeout", 3*24*time.Hour)
	v.SetDefault("forms_notify_on_submit", true)

	v.SetDefault("server_host", "localhost")
	v.SetDefault("server_address", ":8000")
	v.SetDefault("server_debug_host", ":4000")
	v.SetDefault("jwt_expiration", time.Hour)
	v.SetDefault("jwt_refresh_expiration", 7*24*time.Hour)
	v.SetDefault("shutdown_timeout", 5*time.Second)

	v.SetDefault("db_engine", EnginePostgres)
	v.SetDefault("db_host", "localhost")
	v.SetDefault("db_port", 5432)
	v.SetDefault("db_user", "luna")
	v.SetDefault("db_password", "luna")
	v.SetDefault("db_admin_user", "")
	v.SetDefault("db_admin_password", "")
	v.SetDefault("db_name", "luna")
	v.SetDefault("db_disable_tls", true)
	v.SetDefault("db_uri", "")

	env := strings.ToUpper(os.Getenv("ENV"))
	if env == "" {
		env = "DEV"
	}
	v.SetDefault("test_mode", env == "TEST")

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(Getwd(), "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}

	v.SetEnvPrefix("luna")
	v.AutomaticEnv()

	return &Config{
		AppName:                   v.GetString("app_name"),
		Env:                       env,
		Build:                     v.GetString("build"),
		Debug:                     v.GetBool("debug"),
		TestMode:                  v.GetBool("test_mode"),
		SecretKey:                 v.GetString("secret_key"),
		RollbarToken:              v.GetString("rollbar_token"),
		FrontendBaseURL:           v.GetString("frontend_base_url"),
		DefaultFromEmail:          v.GetString("default_from_email"),
		SendgridAPIKey:            v.GetString("sendgrid_api_key"),
		PasswordResetTimeoutDelta: v.GetDuration("password_reset_timeout"),
		NotifyOnSubmit:            v.GetBool("forms_notify_on_submit"),
		Server: ServerConfig{
			Host:                      v.GetString("server_host"),
			Address:                   v.GetString("server_address"),
			DebugHost:                 v.GetString("server_debug_host"),
			JWTExpirationDelta:        v.GetDuration("jwt_expiration"),
			JWTRefreshExpirationDelta: v.GetDuration("jwt_refresh_expiration"),
			ShutdownTimeout:           v.GetDuration("shutdown_timeout"),
		},
		Database: DatabaseConfig{
			Engine:        strings.ToLower(v.GetString("db_engine")),
			Host:          v.GetString("db_host"),
			Port:          v.GetInt("db_port"),
			User:          v.GetString("db_user"),
			Password:      v.GetString("db_password"),
			AdminUser:     v.GetString("db_admin_user"),
			AdminPassword: v.GetString("db_admin_password"),
			Name:          v.GetString("db_name"),
			DisableTLS:    v.GetBool("db_disable_tls"),
			URI:           v.GetString("db_uri"),
		},
	}
}

// NewTestConfig returns a Config suitable for tests; nothing is read from the environment.
func NewTestConfig() *Config {
	return &Config{
		AppName:                   "Luna",
		Env:                       "TEST",
		Build:                     "test",
		TestMode:                  true,
		SecretKey:                 "secret",
		FrontendBaseURL:           "http://localhost:3000",
		DefaultFromEmail:          "noreply@localhost",
		PasswordResetTimeoutDelta: 3 * 24 * time.Hour,
		NotifyOnSubmit:            true,
		Server: ServerConfig{
			Host:                      "localhost",
			JWTExpirationDelta:        10 * time.Minute,
			JWTRefreshExpirationDelta: 4 * time.Hour,
			ShutdownTimeout:           time.Second,
		},
		Database: DatabaseConfig{Engine: EnginePostgres},
	}
}
