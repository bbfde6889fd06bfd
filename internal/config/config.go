package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Analyzer transport modes.
const (
	ModeHTTP = "http"
	ModeWS   = "ws"
)

// Config holds process configuration loaded from the environment.
type Config struct {
	HTTPPort string

	CameraDevice string
	CameraWidth  int
	CameraHeight int
	CameraFPS    int

	AnalyzerMode    string // "http" (request/response) or "ws" (streaming)
	AnalyzerURL     string
	AnalyzerTimeout time.Duration

	BackendURL string // empty means run without the report backend

	DBPath          string
	EncoderMaxWidth int

	AuthEnabled  bool
	AuthUsername string
	AuthPassword string
	JWTSecret    string
}

// Load reads configuration from a .env file (if present) and the process
// environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg := &Config{
		HTTPPort:        getEnv("VIGIL_HTTP_PORT", "8090"),
		CameraDevice:    getEnv("VIGIL_CAMERA_DEVICE", "/dev/video0"),
		CameraWidth:     getEnvInt("VIGIL_CAMERA_WIDTH", 640),
		CameraHeight:    getEnvInt("VIGIL_CAMERA_HEIGHT", 480),
		CameraFPS:       getEnvInt("VIGIL_CAMERA_FPS", 10),
		AnalyzerMode:    getEnv("VIGIL_ANALYZER_MODE", ModeHTTP),
		AnalyzerURL:     getEnv("VIGIL_ANALYZER_URL", "http://localhost:8000/video/analyze"),
		AnalyzerTimeout: getEnvDuration("VIGIL_ANALYZER_TIMEOUT", 10*time.Second),
		BackendURL:      getEnv("VIGIL_BACKEND_URL", ""),
		DBPath:          getEnv("VIGIL_DB_PATH", "vigil.db"),
		EncoderMaxWidth: getEnvInt("VIGIL_ENCODER_MAX_WIDTH", 800),
		AuthEnabled:     getEnv("VIGIL_AUTH_ENABLED", "") == "true",
		AuthUsername:    getEnv("VIGIL_AUTH_USERNAME", "admin"),
		AuthPassword:    getEnv("VIGIL_AUTH_PASSWORD", ""),
		JWTSecret:       getEnv("VIGIL_JWT_SECRET", ""),
	}

	if cfg.AnalyzerMode != ModeHTTP && cfg.AnalyzerMode != ModeWS {
		log.Printf("Unknown analyzer mode %q, falling back to %q", cfg.AnalyzerMode, ModeHTTP)
		cfg.AnalyzerMode = ModeHTTP
	}
	return cfg
}

func getEnv(key string, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if intVal, err := strconv.Atoi(v); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
