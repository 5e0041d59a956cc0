package app

import (
	"os"
	"strconv"
	"time"
)

const defaultVaultPath = "/etc/buildstream/buildstream_oauth_credentials.yml"

type Config struct {
	VaultPasswordFile string        // Path to the vault passphrase file (default: /etc/buildstream/.vault_pass)
	ClientsVaultPath  string        // Encrypted vault file holding registered clients
	AuthConfigPath    string        // Encrypted vault file holding the admin registration credential (default: same file as clients)
	VaultBackend      string        // Vault codec backend (ansible, age) (default: ansible)
	MaxActiveClients  int           // Active client capacity (default: 1)
	VaultOpTimeout    time.Duration // Timeout for a single vault encrypt/decrypt operation (default: 30s)
	VaultLockTimeout  time.Duration // Timeout waiting for the cross-process vault lock (default: 10s)
	CatalogOutputDir  string        // Directory receiving normalized job catalogs (default: ./catalogs)

	Env                 string        // Environment (dev, staging, prod) (default: dev)
	LogLevel            string        // Log level (debug, info, warn, error) (default: info)
	LogFormat           string        // Log format (json, text) (default: json)
	Port                int           // HTTP server port (default: 8080)
	ShutdownGracePeriod time.Duration // Graceful shutdown timeout (default: 10s)
}

func LoadConfig() Config {
	cfg := Config{
		VaultPasswordFile: getEnvOrDefault("VAULT_PASSWORD_FILE", "/etc/buildstream/.vault_pass"),
		ClientsVaultPath:  getEnvOrDefault("OAUTH_CLIENTS_VAULT_PATH", defaultVaultPath),
		AuthConfigPath:    os.Getenv("AUTH_CONFIG_VAULT_PATH"), // Optional: falls back to the clients vault file
		VaultBackend:      getEnvOrDefault("VAULT_BACKEND", "ansible"),
		MaxActiveClients:  getEnvIntOrDefault("MAX_ACTIVE_CLIENTS", 1),
		VaultOpTimeout:    getEnvDurationOrDefault("VAULT_OP_TIMEOUT", 30*time.Second),
		VaultLockTimeout:  getEnvDurationOrDefault("VAULT_LOCK_TIMEOUT", 10*time.Second),
		CatalogOutputDir:  getEnvOrDefault("CATALOG_OUTPUT_DIR", "catalogs"),

		Env:                 getEnvOrDefault("ENV", "dev"),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:           getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod: getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
	}

	if cfg.AuthConfigPath == "" {
		cfg.AuthConfigPath = cfg.ClientsVaultPath
	}

	return cfg
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Try parsing as integer seconds
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}

	return defaultValue
}
