package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is built once at startup and passed by pointer to every component.
// Nothing mutates it after Load returns.
type Config struct {
	APIPort string

	GalleryRoot          string
	AllowedExtensions    []string
	DownloadRequiresAuth bool
	MaxUploadBytes       int64
	ThumbCacheDir        string
	ThumbMaxPx           int

	AdminEmail     string
	JWTKey         []byte
	JWTExp         time.Duration
	PasswordHasher string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSslMode  string
	DBConnStr  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	LoginMaxFailures  int
	LoginLockout      time.Duration
	AuthRatePerMinute int

	CORSOrigins []string
	LogLevel    string
	LogFormat   string
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	cfg := &Config{
		APIPort:              getEnv("API_PORT", "8087"),
		GalleryRoot:          getEnv("GALLERY_ROOT", ""),
		AllowedExtensions:    getEnvAsList("ALLOWED_EXTENSIONS", []string{"png", "jpg", "jpeg", "gif"}),
		DownloadRequiresAuth: getEnvAsBool("DOWNLOAD_REQUIRES_AUTH", true),
		MaxUploadBytes:       int64(getEnvAsInt("MAX_UPLOAD_MB", 256)) << 20,
		ThumbCacheDir:        getEnv("THUMB_CACHE_DIR", filepath.Join(os.TempDir(), "gallery-thumbs")),
		ThumbMaxPx:           getEnvAsInt("THUMB_MAX_PX", 320),
		AdminEmail:           strings.ToLower(strings.TrimSpace(getEnv("ADMIN_EMAIL", ""))),
		JWTKey:               []byte(getEnv("JWT_SECRET", "")),
		JWTExp:               time.Duration(getEnvAsInt("JWT_EXPIRATION_MINUTES", 60)) * time.Minute,
		PasswordHasher:       strings.ToLower(getEnv("PASSWORD_HASHER", "bcrypt")),
		DBHost:               getEnv("DB_HOST", ""),
		DBPort:               getEnv("DB_PORT", "5432"),
		DBUser:               getEnv("DB_USER", "gallery"),
		DBPassword:           getEnv("DB_PASSWORD", ""),
		DBName:               getEnv("DB_NAME", "gallery"),
		DBSslMode:            getEnv("DB_SSLMODE", "disable"),
		RedisAddr:            getEnv("REDIS_ADDR", ""),
		RedisPassword:        getEnv("REDIS_PASSWORD", ""),
		RedisDB:              getEnvAsInt("REDIS_DB", 0),
		LoginMaxFailures:     getEnvAsInt("LOGIN_MAX_FAILURES", 5),
		LoginLockout:         time.Duration(getEnvAsInt("LOGIN_LOCKOUT_MINUTES", 15)) * time.Minute,
		AuthRatePerMinute:    getEnvAsInt("AUTH_RATE_PER_MINUTE", 30),
		CORSOrigins:          getEnvAsList("CORS_ORIGINS", []string{"http://localhost:8000", "http://localhost:3000"}),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		LogFormat:            getEnv("LOG_FORMAT", "json"),
	}

	// DATABASE_URL wins over the DB_* parts; no host at all means the
	// in-memory credential store.
	cfg.DBConnStr = getEnv("DATABASE_URL", "")
	if cfg.DBConnStr == "" && cfg.DBHost != "" {
		cfg.DBConnStr = "host=" + cfg.DBHost +
			" port=" + cfg.DBPort +
			" user=" + cfg.DBUser +
			" password=" + cfg.DBPassword +
			" dbname=" + cfg.DBName +
			" sslmode=" + cfg.DBSslMode
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) normalize() error {
	if strings.TrimSpace(c.GalleryRoot) == "" {
		return errors.New("config: GALLERY_ROOT is required")
	}
	abs, err := filepath.Abs(c.GalleryRoot)
	if err != nil {
		return fmt.Errorf("config: resolve GALLERY_ROOT: %w", err)
	}
	st, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("config: GALLERY_ROOT: %w", err)
	}
	if !st.IsDir() {
		return fmt.Errorf("config: GALLERY_ROOT %q is not a directory", abs)
	}
	c.GalleryRoot = filepath.Clean(abs)

	thumbs, err := filepath.Abs(c.ThumbCacheDir)
	if err != nil {
		return fmt.Errorf("config: resolve THUMB_CACHE_DIR: %w", err)
	}
	thumbs = filepath.Clean(thumbs)
	if thumbs == c.GalleryRoot || strings.HasPrefix(thumbs, c.GalleryRoot+string(filepath.Separator)) {
		return errors.New("config: THUMB_CACHE_DIR must be outside GALLERY_ROOT")
	}
	c.ThumbCacheDir = thumbs

	if len(c.JWTKey) == 0 {
		return errors.New("config: JWT_SECRET is required")
	}
	if c.JWTExp <= 0 {
		return errors.New("config: JWT_EXPIRATION_MINUTES must be positive")
	}
	if c.MaxUploadBytes <= 0 {
		return errors.New("config: MAX_UPLOAD_MB must be positive")
	}
	if c.PasswordHasher != "bcrypt" && c.PasswordHasher != "argon2id" {
		return fmt.Errorf("config: unknown PASSWORD_HASHER %q", c.PasswordHasher)
	}

	exts := make([]string, 0, len(c.AllowedExtensions))
	for _, e := range c.AllowedExtensions {
		e = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(e), "."))
		if e != "" {
			exts = append(exts, e)
		}
	}
	if len(exts) == 0 {
		return errors.New("config: ALLOWED_EXTENSIONS is empty")
	}
	c.AllowedExtensions = exts
	return nil
}

// UsesPostgres reports whether a database connection string was configured.
func (c *Config) UsesPostgres() bool { return c.DBConnStr != "" }

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsList(key string, fallback []string) []string {
	valueStr := strings.TrimSpace(getEnv(key, ""))
	if valueStr == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
