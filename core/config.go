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

type (
	Config struct {
		AppName      string
		Env          string
		Build        string
		Debug        bool
		TestMode     bool
		RollbarToken string
		Server       ServerConfig
		Session      SessionConfig
		Backend      BackendConfig
	}

	ServerConfig struct {
		Address         string
		Host            string
		DebugHost       string
		ShutdownTimeout time.Duration
	}

	SessionConfig struct {
		CookieName        string
		CookieDomain      string
		CookieSecure      bool
		MaxAge            time.Duration
		LoginPath         string
		ProtectedPrefixes []string
		CredentialsFile   string
	}

	BackendConfig struct {
		BaseURL string
		Timeout time.Duration
	}
)

// NewConfig loads the portal configuration.
// Values are read from the environment, prefixed with the current ENV (DEV, TEST, QA, PROD),
// e.g. DEV_SESSION_COOKIENAME. A config/.env.<env> file is loaded first when it exists.
func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("appName", "Masomo")
	v.SetDefault("build", "develop")
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("rollbarToken", "")
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("session.cookieName", "masomo_session")
	v.SetDefault("session.cookieDomain", "")
	v.SetDefault("session.cookieSecure", false)
	v.SetDefault("session.maxAge", 7*24*time.Hour)
	v.SetDefault("session.loginPath", "/auth/login")
	v.SetDefault("session.protectedPrefixes", []string{"/dashboard"})
	v.SetDefault("session.credentialsFile", filepath.Join(homeDir(), ".masomo", "session"))
	v.SetDefault("backend.baseURL", "http://localhost:8000")
	v.SetDefault("backend.timeout", 10*time.Second)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(configDir(), ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		AppName:      v.GetString("appName"),
		Env:          env,
		Build:        v.GetString("build"),
		Debug:        v.GetBool("debug"),
		TestMode:     v.GetBool("testMode"),
		RollbarToken: v.GetString("rollbarToken"),
		Server: ServerConfig{
			Address:         v.GetString("server.address"),
			Host:            v.GetString("server.host"),
			DebugHost:       v.GetString("server.debugHost"),
			ShutdownTimeout: v.GetDuration("server.shutdownTimeout"),
		},
		Session: SessionConfig{
			CookieName:        v.GetString("session.cookieName"),
			CookieDomain:      v.GetString("session.cookieDomain"),
			CookieSecure:      v.GetBool("session.cookieSecure"),
			MaxAge:            v.GetDuration("session.maxAge"),
			LoginPath:         v.GetString("session.loginPath"),
			ProtectedPrefixes: cleanPrefixes(v.GetStringSlice("session.protectedPrefixes")),
			CredentialsFile:   v.GetString("session.credentialsFile"),
		},
		Backend: BackendConfig{
			BaseURL: strings.TrimRight(v.GetString("backend.baseURL"), "/"),
			Timeout: v.GetDuration("backend.timeout"),
		},
	}
}

// cleanPrefixes accepts both a list and a single comma separated env value.
func cleanPrefixes(raw []string) []string {
	prefixes := make([]string, 0, len(raw))
	for _, r := range raw {
		for _, p := range strings.Split(r, ",") {
			if p = CleanString(p); p != "" {
				prefixes = append(prefixes, p)
			}
		}
	}
	return prefixes
}

func configDir() string {
	if dir := os.Getenv("CONFIG_DIR"); dir != "" {
		return dir
	}
	return "config"
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
