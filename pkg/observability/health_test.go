package observability

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
)

func healthyDB(t *testing.T) *HealthChecker {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("Failed to create mock db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	db.SetMaxOpenConns(10)

	mock.ExpectPing().WillReturnError(nil)
	mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	return NewHealthChecker(db, nil)
}

func TestHealthChecker_Liveness(t *testing.T) {
	checker := NewHealthChecker(nil, nil)

	rr := httptest.NewRecorder()
	checker.Liveness(rr, httptest.NewRequest("GET", "/health/live", nil))

	if rr.Code != http.StatusOK {
		t.Errorf("Liveness check returned wrong status code: got %v want %v", rr.Code, http.StatusOK)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected Content-Type application/json, got %s", ct)
	}

	var response map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if response["status"] != StatusHealthy {
		t.Errorf("Expected status %s, got %v", StatusHealthy, response["status"])
	}
}

func TestHealthChecker_Readiness(t *testing.T) {
	t.Run("unhealthy readiness with failed database", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		if err != nil {
			t.Fatalf("Failed to create mock db: %v", err)
		}
		defer db.Close()
		mock.ExpectPing().WillReturnError(errors.New("connection failed"))

		checker := NewHealthChecker(db, nil)
		rr := httptest.NewRecorder()
		checker.Readiness(rr, httptest.NewRequest("GET", "/health/ready", nil))

		if rr.Code != http.StatusServiceUnavailable {
			t.Errorf("Expected status %v for unhealthy, got %v", http.StatusServiceUnavailable, rr.Code)
		}

		var response HealthStatus
		if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if response.Status != StatusUnhealthy {
			t.Errorf("Expected status %s, got %s", StatusUnhealthy, response.Status)
		}
	})

	t.Run("degraded readiness with failed redis", func(t *testing.T) {
		checker := healthyDB(t)
		redisClient := redis.NewClient(&redis.Options{Addr: "localhost:9999"})
		defer redisClient.Close()
		checker.redis = redisClient

		rr := httptest.NewRecorder()
		checker.Readiness(rr, httptest.NewRequest("GET", "/health/ready", nil))

		if rr.Code != http.StatusOK {
			t.Errorf("Expected status %v for degraded, got %v", http.StatusOK, rr.Code)
		}

		var response HealthStatus
		if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if response.Status != StatusDegraded {
			t.Errorf("Expected status %s, got %s", StatusDegraded, response.Status)
		}
	})
}

func TestHealthChecker_Check(t *testing.T) {
	t.Run("no dependencies", func(t *testing.T) {
		checker := NewHealthChecker(nil, nil)
		checker.SetVersion("1.4.2")

		status := checker.Check(context.Background())

		if status.Status != StatusHealthy {
			t.Errorf("Expected status %s, got %s", StatusHealthy, status.Status)
		}
		if len(status.Dependencies) != 0 {
			t.Errorf("Expected 0 dependencies, got %d", len(status.Dependencies))
		}
		if status.Version != "1.4.2" {
			t.Errorf("Expected version 1.4.2, got %s", status.Version)
		}
	})

	t.Run("with healthy redis", func(t *testing.T) {
		mr, err := miniredis.Run()
		if err != nil {
			t.Fatalf("Failed to start miniredis: %v", err)
		}
		defer mr.Close()

		redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		defer redisClient.Close()

		status := NewHealthChecker(nil, redisClient).Check(context.Background())

		if status.Status != StatusHealthy {
			t.Errorf("Expected status %s, got %s", StatusHealthy, status.Status)
		}
		if status.Dependencies["redis"].Status != StatusHealthy {
			t.Errorf("Expected redis healthy, got %s", status.Dependencies["redis"].Status)
		}
	})

	t.Run("query failure is unhealthy", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		if err != nil {
			t.Fatalf("Failed to create mock db: %v", err)
		}
		defer db.Close()
		mock.ExpectPing().WillReturnError(nil)
		mock.ExpectQuery("SELECT 1").WillReturnError(errors.New("query timeout"))

		status := NewHealthChecker(db, nil).Check(context.Background())

		if status.Status != StatusUnhealthy {
			t.Errorf("Expected status %s, got %s", StatusUnhealthy, status.Status)
		}
		if status.Dependencies["database"].Message != "query failed: query timeout" {
			t.Errorf("Unexpected message %q", status.Dependencies["database"].Message)
		}
	})

	t.Run("failing non-critical check degrades", func(t *testing.T) {
		checker := healthyDB(t)
		checker.AddCheck("blob", func(ctx context.Context) error {
			return errors.New("bucket unreachable")
		}, false)

		status := checker.Check(context.Background())

		if status.Status != StatusDegraded {
			t.Errorf("Expected status %s, got %s", StatusDegraded, status.Status)
		}
		if status.Dependencies["blob"].Message != "bucket unreachable" {
			t.Errorf("Unexpected blob message %q", status.Dependencies["blob"].Message)
		}
	})

	t.Run("failing critical check is unhealthy", func(t *testing.T) {
		checker := NewHealthChecker(nil, nil)
		checker.AddCheck("otp-store", func(ctx context.Context) error {
			return errors.New("down")
		}, true)

		if status := checker.Check(context.Background()); status.Status != StatusUnhealthy {
			t.Errorf("Expected status %s, got %s", StatusUnhealthy, status.Status)
		}
	})
}

func TestHealthChecker_Names(t *testing.T) {
	checker := NewHealthChecker(nil, nil)
	checker.AddCheck("blob", func(ctx context.Context) error { return nil }, false)

	names := checker.Names()
	if len(names) != 1 || names[0] != "blob" {
		t.Errorf("Unexpected names %v", names)
	}
}

func TestRegisterHealthRoutes(t *testing.T) {
	router := mux.NewRouter()
	RegisterHealthRoutes(router, NewHealthChecker(nil, nil))

	for _, path := range []string{"/health", "/health/live", "/health/ready"} {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest("GET", path, nil))
		if rr.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, rr.Code)
		}
	}
}
