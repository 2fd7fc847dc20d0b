package core

import (
	"log"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Host            string
		DebugHost       string
		ShutdownTimeout time.Duration
	}

	DatabaseConfig struct {
		Engine        string
		Name          string
		Host          string
		Port          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	// LTIConfig holds settings for inbound Tool Consumer launches.
	LTIConfig struct {
		UsernameSuffixLength int
	}

	// OutcomesConfig holds settings for outbound outcome reporting.
	OutcomesConfig struct {
		HTTPTimeout           time.Duration
		MaxRetries            int
		ScoreDecimalPrecision int
		Workers               int
		QueueSize             int
	}

	Config struct {
		Debug            bool
		TestMode         bool
		Env              string
		Build            string
		AppName          string
		WorkDir          string
		DefaultFromEmail mail.Address
		RollbarToken     string
		SendgridAPIKey   string

		Server   ServerConfig
		Database DatabaseConfig
		LTI      LTIConfig
		Outcomes OutcomesConfig
	}
)

func (c DatabaseConfig) Address() string {
	return c.Host + ":" + c.Port
}

func NewConfig() *Config {
	v := viper.New()
	v.SetTypeByDefaultValue(true)

	// defaults
	v.SetDefault("debug", true)
	v.SetDefault("appName", "Darasa")
	v.SetDefault("build", "dev")
	v.SetDefault("defaultFromEmail", "noreply@localhost")

	v.SetDefault("server.host", "0.0.0.0:8000")
	v.SetDefault("server.debugHost", "0.0.0.0:4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.name", "darasa")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "darasa")
	v.SetDefault("database.password", "")
	v.SetDefault("database.disableTLS", true)

	v.SetDefault("lti.usernameSuffixLength", 4)

	v.SetDefault("outcomes.httpTimeout", 10*time.Second)
	v.SetDefault("outcomes.maxRetries", 3)
	v.SetDefault("outcomes.scoreDecimalPrecision", 4)
	v.SetDefault("outcomes.workers", 4)
	v.SetDefault("outcomes.queueSize", 256)

	env := os.Getenv("ENV") // DEV (local; default), TEST, QA, PROD
	var testMode bool
	switch strings.ToUpper(env) {
	case "":
		env = "DEV"
	case "TEST":
		testMode = true
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	wd := Getwd()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		Debug:            v.GetBool("debug"),
		TestMode:         testMode,
		Env:              env,
		Build:            v.GetString("build"),
		AppName:          v.GetString("appName"),
		WorkDir:          wd,
		DefaultFromEmail: mail.Address{Name: v.GetString("appName"), Address: v.GetString("defaultFromEmail")},
		RollbarToken:     v.GetString("rollbarToken"),
		SendgridAPIKey:   v.GetString("sendgridApiKey"),
		Server: ServerConfig{
			Host:            v.GetString("server.host"),
			DebugHost:       v.GetString("server.debugHost"),
			ShutdownTimeout: v.GetDuration("server.shutdownTimeout"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Name:          v.GetString("database.name"),
			Host:          v.GetString("database.host"),
			Port:          v.GetString("database.port"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
		},
		LTI: LTIConfig{
			UsernameSuffixLength: v.GetInt("lti.usernameSuffixLength"),
		},
		Outcomes: OutcomesConfig{
			HTTPTimeout:           v.GetDuration("outcomes.httpTimeout"),
			MaxRetries:            v.GetInt("outcomes.maxRetries"),
			ScoreDecimalPrecision: v.GetInt("outcomes.scoreDecimalPrecision"),
			Workers:               v.GetInt("outcomes.workers"),
			QueueSize:             v.GetInt("outcomes.queueSize"),
		},
	}
}

// NewTestConfig returns a Config suitable for unit tests: no external services,
// short timeouts, in-memory friendly defaults.
func NewTestConfig() *Config {
	return &Config{
		Debug:            true,
		TestMode:         true,
		Env:              "TEST",
		Build:            "test",
		AppName:          "Darasa",
		DefaultFromEmail: mail.Address{Name: "Darasa", Address: "noreply@localhost"},
		Server: ServerConfig{
			Host:            "127.0.0.1:0",
			ShutdownTimeout: time.Second,
		},
		LTI: LTIConfig{UsernameSuffixLength: 4},
		Outcomes: OutcomesConfig{
			HTTPTimeout:           time.Second,
			MaxRetries:            3,
			ScoreDecimalPrecision: 4,
			Workers:               2,
			QueueSize:             16,
		},
	}
}
