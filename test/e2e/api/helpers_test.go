package api_test

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/LiaiZenApp/liazen-api/internal/api/app"
	"github.com/LiaiZenApp/liazen-api/pkg/authsdk"
)

/*
 * Common constants and helper functions for API end-to-end tests.
 * The application is assembled exactly as cmd/api does it and served from
 * an in-process HTTP server.
 */

const (
	adminUsername = "admin"
	adminPassword = "Admin123!"
)

// baseConfig is a mock-mode configuration with limits high enough that
// ordinary tests never hit them.
func baseConfig(t *testing.T) app.Config {
	t.Helper()
	dir := t.TempDir()

	return app.Config{
		Env:                      "test",
		Port:                     8000,
		LogLevel:                 "error",
		LogFormat:                "json",
		ShutdownGracePeriod:      5 * time.Second,
		AuthMode:                 app.AuthModeMock,
		RolesClaim:               "roles",
		LocalJWTSecret:           "e2e-secret-0123456789abcdef0123456789",
		LocalJWTAlgorithm:        "HS256",
		AccessTokenExpireMinutes: 30,
		RefreshTokenExpireDays:   7,
		RateLimitPerMinute:       1000,
		RateLimitPerHour:         10000,
		RateLimitLoginPerMinute:  1000,
		RateLimitStore:           "memory",
		RateLimitSweepInterval:   time.Minute,
		DBDriver:                 "sqlite",
		DBDSN:                    "file:" + filepath.Join(dir, "e2e.db") + "?_pragma=busy_timeout(5000)",
		PepperPath:               filepath.Join(dir, "pepper"),
		BootstrapAdminUsername:   adminUsername,
		BootstrapAdminPassword:   adminPassword,
		MetricsExporter:          "none",
	}
}

// setupAPI starts the application and returns a client for it.
func setupAPI(t *testing.T, mutate func(*app.Config)) *authsdk.SDKClient {
	t.Helper()

	cfg := baseConfig(t)
	if mutate != nil {
		mutate(&cfg)
	}
	require.NoError(t, cfg.Validate())

	application, err := app.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = application.Shutdown() })

	srv := httptest.NewServer(application.Handler())
	t.Cleanup(srv.Close)

	return authsdk.NewSDKClient(srv.URL)
}

// loginAdmin authenticates as the bootstrapped admin.
func loginAdmin(t *testing.T, client *authsdk.SDKClient) *authsdk.Session {
	t.Helper()

	session, err := client.AuthenticateWithPassword(t.Context(), adminUsername, adminPassword)
	require.NoError(t, err)
	return session
}

// startRedis runs a throwaway Redis and returns its address, skipping when
// Docker is not available.
func startRedis(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping redis container test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err)

	addr, err := container.Endpoint(ctx, "")
	require.NoError(t, err)
	return addr
}

// requireAPIError asserts err is an *authsdk.APIError with the given status.
func requireAPIError(t *testing.T, err error, status int) *authsdk.APIError {
	t.Helper()

	var apiErr *authsdk.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, status, apiErr.StatusCode)
	return apiErr
}
