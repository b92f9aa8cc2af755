package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds shared runtime configuration for the supervisor and the
// conversion worker.
type Config struct {
	Env              string
	HTTPPort         string
	UploadDir        string
	OutputDir        string
	WorkDir          string
	WorkerBin        string
	MaxUploadBytes   int64
	PollInterval     time.Duration
	HeartbeatTimeout time.Duration
	// CancelGraceCooperative is how long a cancelled worker gets to notice
	// the intent record and exit on its own before SIGTERM is sent.
	CancelGraceCooperative time.Duration
	// CancelGraceTerm is how long after SIGTERM the worker gets before
	// SIGKILL is sent unconditionally.
	CancelGraceTerm time.Duration
	RetentionWindow time.Duration
}

// Load reads configuration from environment variables with sane defaults for
// local development.
func Load() Config {
	return Config{
		Env:                    getEnv("APP_ENV", "dev"),
		HTTPPort:               getEnv("HTTP_PORT", "8080"),
		UploadDir:              getEnv("UPLOAD_DIR", "uploads"),
		OutputDir:              getEnv("OUTPUT_DIR", "outputs"),
		WorkDir:                getEnv("WORK_DIR", "work"),
		WorkerBin:              getEnv("WORKER_BIN", "./worker"),
		MaxUploadBytes:         getEnvInt64("MAX_UPLOAD_BYTES", 16<<20),
		PollInterval:           getEnvDuration("POLL_INTERVAL", time.Second),
		HeartbeatTimeout:       getEnvDuration("HEARTBEAT_TIMEOUT", 30*time.Second),
		CancelGraceCooperative: getEnvDuration("CANCEL_GRACE_COOPERATIVE", time.Second),
		CancelGraceTerm:        getEnvDuration("CANCEL_GRACE_TERM", 2*time.Second),
		RetentionWindow:        getEnvDuration("RETENTION_WINDOW", time.Hour),
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
