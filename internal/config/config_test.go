package config

import (
	"strings"
	"testing"
	"time"
)

// TestLoadDefaults is not t.Parallel because it mutates process-wide environment variables.
func TestLoadDefaults(t *testing.T) {
	keys := []string{
		"SERVER_NAME", "SERVER_PORT", "SERVER_ENV",
		"DATABASE_URL", "DATABASE_MAX_CONNS", "DATABASE_MIN_CONNS",
		"VALKEY_URL",
		"ARGON2_MEMORY", "ARGON2_ITERATIONS", "ARGON2_PARALLELISM", "ARGON2_SALT_LENGTH", "ARGON2_KEY_LENGTH",
		"JWT_SECRET", "JWT_ISSUER", "JWT_ACCESS_TTL", "JWT_REFRESH_TTL",
		"SESSION_HEARTBEAT_INTERVAL", "SESSION_PONG_TIMEOUT", "SESSION_DELIVERY_INTERVAL", "SESSION_MESSAGE_LAG",
		"MESSAGE_RETENTION", "WORKER_POOL_SIZE",
		"INIT_ADMIN_EMAIL", "INIT_ADMIN_PASSWORD", "INVITATION_TTL",
		"RATE_LIMIT_WS_WINDOW_SECONDS", "RATE_LIMIT_WS_COUNT",
		"SERVER_SECRET",
	}
	for _, k := range keys {
		t.Setenv(k, "")
	}

	t.Setenv("JWT_SECRET", "test-secret-for-defaults-minimum-32")
	t.Setenv("SERVER_SECRET", "00112233445566778899aabbccddeeff00112233445566778899aabbccddeeff")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}

	if cfg.ServerName != "loom" {
		t.Errorf("ServerName = %q, want %q", cfg.ServerName, "loom")
	}
	if cfg.ServerPort != 8080 {
		t.Errorf("ServerPort = %d, want 8080", cfg.ServerPort)
	}
	if cfg.ServerEnv != "production" {
		t.Errorf("ServerEnv = %q, want %q", cfg.ServerEnv, "production")
	}

	if cfg.DatabaseMaxConn != 25 {
		t.Errorf("DatabaseMaxConn = %d, want 25", cfg.DatabaseMaxConn)
	}
	if cfg.DatabaseMinConn != 5 {
		t.Errorf("DatabaseMinConn = %d, want 5", cfg.DatabaseMinConn)
	}

	if cfg.Argon2Memory != 65536 {
		t.Errorf("Argon2Memory = %d, want 65536", cfg.Argon2Memory)
	}
	if cfg.Argon2Iterations != 3 {
		t.Errorf("Argon2Iterations = %d, want 3", cfg.Argon2Iterations)
	}

	if cfg.JWTIssuer != "loom" {
		t.Errorf("JWTIssuer = %q, want %q", cfg.JWTIssuer, "loom")
	}
	if cfg.JWTAccessTTL != 15*time.Minute {
		t.Errorf("JWTAccessTTL = %v, want 15m", cfg.JWTAccessTTL)
	}
	if cfg.JWTRefreshTTL != 7*24*time.Hour {
		t.Errorf("JWTRefreshTTL = %v, want 168h", cfg.JWTRefreshTTL)
	}

	if cfg.SessionHeartbeatInterval != 60*time.Second {
		t.Errorf("SessionHeartbeatInterval = %v, want 60s", cfg.SessionHeartbeatInterval)
	}
	if cfg.SessionPongTimeout != 600*time.Second {
		t.Errorf("SessionPongTimeout = %v, want 600s", cfg.SessionPongTimeout)
	}
	if cfg.SessionDeliveryInterval != 500*time.Millisecond {
		t.Errorf("SessionDeliveryInterval = %v, want 500ms", cfg.SessionDeliveryInterval)
	}
	if cfg.SessionMessageLag != 200*time.Millisecond {
		t.Errorf("SessionMessageLag = %v, want 200ms", cfg.SessionMessageLag)
	}
	if cfg.MessageRetention != 24*time.Hour {
		t.Errorf("MessageRetention = %v, want 24h", cfg.MessageRetention)
	}
	if cfg.WorkerPoolSize != 0 {
		t.Errorf("WorkerPoolSize = %d, want 0 (default to DatabaseMaxConn)", cfg.WorkerPoolSize)
	}
	if got := cfg.EffectiveWorkerPoolSize(); got != 25 {
		t.Errorf("EffectiveWorkerPoolSize() = %d, want 25", got)
	}

	if cfg.RateLimitWSWindowSeconds != 10 {
		t.Errorf("RateLimitWSWindowSeconds = %d, want 10", cfg.RateLimitWSWindowSeconds)
	}
	if cfg.RateLimitWSCount != 120 {
		t.Errorf("RateLimitWSCount = %d, want 120", cfg.RateLimitWSCount)
	}
}

func TestLoadValidationRequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("SERVER_SECRET", "00112233445566778899aabbccddeeff00112233445566778899aabbccddeeff")

	_, err := Load()
	if err == nil {
		t.Fatal("Load() returned nil error, want validation error for missing JWT_SECRET")
	}
	if !strings.Contains(err.Error(), "JWT_SECRET") {
		t.Errorf("error %q does not mention JWT_SECRET", err.Error())
	}
}

func TestLoadValidationJWTSecretTooShort(t *testing.T) {
	t.Setenv("JWT_SECRET", "short")
	t.Setenv("SERVER_SECRET", "00112233445566778899aabbccddeeff00112233445566778899aabbccddeeff")

	_, err := Load()
	if err == nil {
		t.Fatal("Load() returned nil error, want validation error for short JWT_SECRET")
	}
	if !strings.Contains(err.Error(), "JWT_SECRET must be at least 32 characters") {
		t.Errorf("error %q does not mention minimum length", err.Error())
	}
}

func TestLoadValidationRequiresServerSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret-for-defaults-minimum-32")
	t.Setenv("SERVER_SECRET", "")

	_, err := Load()
	if err == nil {
		t.Fatal("Load() returned nil error, want validation error for missing SERVER_SECRET")
	}
	if !strings.Contains(err.Error(), "SERVER_SECRET") {
		t.Errorf("error %q does not mention SERVER_SECRET", err.Error())
	}
}

func TestLoadValidationPongTimeoutMustExceedHeartbeat(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret-for-defaults-minimum-32")
	t.Setenv("SERVER_SECRET", "00112233445566778899aabbccddeeff00112233445566778899aabbccddeeff")
	t.Setenv("SESSION_HEARTBEAT_INTERVAL", "60s")
	t.Setenv("SESSION_PONG_TIMEOUT", "30s")

	_, err := Load()
	if err == nil {
		t.Fatal("Load() returned nil error, want validation error")
	}
	if !strings.Contains(err.Error(), "SESSION_PONG_TIMEOUT") {
		t.Errorf("error %q does not mention SESSION_PONG_TIMEOUT", err.Error())
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SERVER_NAME", "Test Server")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("SERVER_ENV", "development")
	t.Setenv("DATABASE_MAX_CONNS", "50")
	t.Setenv("ARGON2_MEMORY", "131072")
	t.Setenv("INIT_ADMIN_EMAIL", "admin@example.com")
	t.Setenv("JWT_SECRET", "test-secret-key-that-is-32-chars!")
	t.Setenv("JWT_ACCESS_TTL", "30m")
	t.Setenv("JWT_REFRESH_TTL", "24h")
	t.Setenv("WORKER_POOL_SIZE", "8")
	t.Setenv("SERVER_SECRET", "00112233445566778899aabbccddeeff00112233445566778899aabbccddeeff")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}

	if cfg.ServerName != "Test Server" {
		t.Errorf("ServerName = %q, want %q", cfg.ServerName, "Test Server")
	}
	if cfg.ServerPort != 9090 {
		t.Errorf("ServerPort = %d, want 9090", cfg.ServerPort)
	}
	if cfg.ServerEnv != "development" {
		t.Errorf("ServerEnv = %q, want %q", cfg.ServerEnv, "development")
	}
	if cfg.DatabaseMaxConn != 50 {
		t.Errorf("DatabaseMaxConn = %d, want 50", cfg.DatabaseMaxConn)
	}
	if cfg.Argon2Memory != 131072 {
		t.Errorf("Argon2Memory = %d, want 131072", cfg.Argon2Memory)
	}
	if cfg.InitAdminEmail != "admin@example.com" {
		t.Errorf("InitAdminEmail = %q, want %q", cfg.InitAdminEmail, "admin@example.com")
	}
	if cfg.JWTAccessTTL != 30*time.Minute {
		t.Errorf("JWTAccessTTL = %v, want 30m", cfg.JWTAccessTTL)
	}
	if cfg.JWTRefreshTTL != 24*time.Hour {
		t.Errorf("JWTRefreshTTL = %v, want 24h", cfg.JWTRefreshTTL)
	}
	if cfg.WorkerPoolSize != 8 {
		t.Errorf("WorkerPoolSize = %d, want 8", cfg.WorkerPoolSize)
	}
	if got := cfg.EffectiveWorkerPoolSize(); got != 8 {
		t.Errorf("EffectiveWorkerPoolSize() = %d, want 8", got)
	}
}

func TestLoadInvalidInt(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret-for-defaults-minimum-32")
	t.Setenv("SERVER_SECRET", "00112233445566778899aabbccddeeff00112233445566778899aabbccddeeff")
	t.Setenv("SERVER_PORT", "not-a-number")

	_, err := Load()
	if err == nil {
		t.Fatal("Load() returned nil error, want parse error")
	}
	if !strings.Contains(err.Error(), "SERVER_PORT") {
		t.Errorf("error %q does not mention SERVER_PORT", err.Error())
	}
	if !strings.Contains(err.Error(), "not-a-number") {
		t.Errorf("error %q does not include the invalid value", err.Error())
	}
}

func TestLoadInvalidDuration(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret-for-defaults-minimum-32")
	t.Setenv("SERVER_SECRET", "00112233445566778899aabbccddeeff00112233445566778899aabbccddeeff")
	t.Setenv("SESSION_DELIVERY_INTERVAL", "not-a-duration")

	_, err := Load()
	if err == nil {
		t.Fatal("Load() returned nil error, want parse error")
	}
	if !strings.Contains(err.Error(), "SESSION_DELIVERY_INTERVAL") {
		t.Errorf("error %q does not mention SESSION_DELIVERY_INTERVAL", err.Error())
	}
}

func TestLoadMultipleErrors(t *testing.T) {
	t.Setenv("SERVER_PORT", "abc")
	t.Setenv("DATABASE_MAX_CONNS", "xyz")
	t.Setenv("WORKER_POOL_SIZE", "nope")

	_, err := Load()
	if err == nil {
		t.Fatal("Load() returned nil error, want multiple parse errors")
	}

	errStr := err.Error()
	if !strings.Contains(errStr, "SERVER_PORT") {
		t.Errorf("error missing SERVER_PORT, got: %s", errStr)
	}
	if !strings.Contains(errStr, "DATABASE_MAX_CONNS") {
		t.Errorf("error missing DATABASE_MAX_CONNS, got: %s", errStr)
	}
	if !strings.Contains(errStr, "WORKER_POOL_SIZE") {
		t.Errorf("error missing WORKER_POOL_SIZE, got: %s", errStr)
	}
}

func TestIsDevelopment(t *testing.T) {
	tests := []struct {
		env  string
		want bool
	}{
		{"development", true},
		{"production", false},
		{"", false},
		{"staging", false},
	}
	for _, tt := range tests {
		cfg := &Config{ServerEnv: tt.env}
		if got := cfg.IsDevelopment(); got != tt.want {
			t.Errorf("IsDevelopment() with env=%q = %v, want %v", tt.env, got, tt.want)
		}
	}
}

func TestEffectiveWorkerPoolSize(t *testing.T) {
	tests := []struct {
		name            string
		workerPoolSize  int
		databaseMaxConn int
		want            int
	}{
		{"explicit size wins", 12, 25, 12},
		{"zero defaults to database pool", 0, 25, 25},
	}
	for _, tt := range tests {
		cfg := &Config{WorkerPoolSize: tt.workerPoolSize, DatabaseMaxConn: tt.databaseMaxConn}
		if got := cfg.EffectiveWorkerPoolSize(); got != tt.want {
			t.Errorf("%s: EffectiveWorkerPoolSize() = %d, want %d", tt.name, got, tt.want)
		}
	}
}
