package config

import (
	"log/slog"
	"os"
	"strings"
	"time"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

type Config struct {
	Mode     Mode
	HTTPAddr string

	// Model artifacts
	ModelsSource    string   // fs|sql|both
	ModelsDirs      []string // scanned in order; later dirs may override under permissive policy
	ModelSuffix     string
	DuplicatePolicy string // strict|permissive
	LoadTimeout     time.Duration

	DBDriver string
	DBDSN    string

	DerivedFeatures string // name=expr;name=expr

	EnableAuth     bool
	AuthHMACSecret string
	AdminUser      string
	AdminPassHash  string // bcrypt

	CORSOriginsOnline  []string
	CORSOriginsOffline []string

	LogLevel slog.Level
}

func FromEnv() Config {
	mode := Mode(os.Getenv("MODE"))
	if mode == "" {
		mode = ModeOffline
	}
	enableAuth := envBool("ENABLE_AUTH", mode == ModeOnline)
	// without auth every caller is anonymous, so only listen locally
	addr := "127.0.0.1:8080"
	if enableAuth {
		addr = ":8080"
	}
	return Config{
		Mode:     mode,
		HTTPAddr: envOr("HTTP_ADDR", addr),

		ModelsSource:    envOr("MODELS_SOURCE", "fs"),
		ModelsDirs:      csvOr("MODELS_DIRS", "./models"),
		ModelSuffix:     envOr("MODEL_SUFFIX", "_gmm_v1.json"),
		DuplicatePolicy: envOr("DUPLICATE_POLICY", "strict"),
		LoadTimeout:     envDuration("LOAD_TIMEOUT", 30*time.Second),

		DBDriver: envOr("DB_DRIVER", "sqlite"),
		DBDSN:    envOr("DB_DSN", ""),

		DerivedFeatures: envOr("DERIVED_FEATURES", ""),

		EnableAuth:     enableAuth,
		AuthHMACSecret: envOr("AUTH_HMAC_SECRET", "supersecret-dev-key"),
		AdminUser:      envOr("ADMIN_USER", "admin"),
		AdminPassHash:  envOr("ADMIN_PASS_HASH", "$2y$12$pyZAiWaTfVtM7UElIRStvOC3gNbnp70nmQU4eYopLGBfCJr1DOvji"),

		CORSOriginsOnline:  csvOr("CORS_ORIGINS_ONLINE", "https://motivation.mindengage.ai"),
		CORSOriginsOffline: csvOr("CORS_ORIGINS_OFFLINE", "http://localhost:3000"),

		LogLevel: envLevel("LOG_LEVEL", slog.LevelInfo),
	}
}

// UsesFS reports whether model directories should be scanned.
func (c Config) UsesFS() bool { return c.ModelsSource == "fs" || c.ModelsSource == "both" }

// UsesSQL reports whether the model_artifacts table should be read.
func (c Config) UsesSQL() bool { return c.ModelsSource == "sql" || c.ModelsSource == "both" }

// CORSOrigins returns the allowed origins for the current mode.
func (c Config) CORSOrigins() []string {
	if c.Mode == ModeOnline {
		return c.CORSOriginsOnline
	}
	return c.CORSOriginsOffline
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}
func envBool(k string, def bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return def
	}
}
func csvOr(k, def string) []string {
	v := envOr(k, def)
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
func envDuration(k string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(k)); err == nil && d > 0 {
		return d
	}
	return def
}
func envLevel(k string, def slog.Level) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(os.Getenv(k))); err != nil {
		return def
	}
	return l
}
