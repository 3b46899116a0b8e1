package config

import "os"

// Config is the daemon configuration, read from the environment. Job
// definitions live in the YAML job file, not here.
type Config struct {
	JobsFile string
	DBPath   string
	APIPort  string

	LogLevel    string
	LogEncoding string

	// Executor selection: "http" posts to a gateway, "file" drops trigger
	// files and invokes a child process.
	ExecutorKind string

	// HTTP executor settings.
	GatewayURL string
	SessionKey string

	// File executor settings.
	TriggerDir     string
	TriggerCommand string
}

// LoadConfig reads the configuration with sensible defaults.
func LoadConfig() *Config {
	return &Config{
		JobsFile:       getEnv("CRONX_JOBS_FILE", "cronx.yaml"),
		DBPath:         getEnv("CRONX_DB_PATH", "cronx.db"),
		APIPort:        getEnv("CRONX_API_PORT", "8080"),
		LogLevel:       getEnv("CRONX_LOG_LEVEL", "info"),
		LogEncoding:    getEnv("CRONX_LOG_ENCODING", "json"),
		ExecutorKind:   getEnv("CRONX_EXECUTOR", "file"),
		GatewayURL:     getEnv("CRONX_GATEWAY_URL", "http://localhost:18789"),
		SessionKey:     getEnv("CRONX_SESSION_KEY", ""),
		TriggerDir:     getEnv("CRONX_TRIGGER_DIR", "triggers"),
		TriggerCommand: getEnv("CRONX_TRIGGER_COMMAND", ""),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
