package config

import (
	"testing"
)

func clearDBEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"DB_USER", "DB_PASSWORD", "DB_HOST", "DB_PORT", "DB_NAME", "DATABASE_DSN"} {
		t.Setenv(key, "")
	}
}

func TestGetDatabaseDSN_FromEnvVars(t *testing.T) {
	clearDBEnv(t)
	t.Setenv("DB_USER", "testuser")
	t.Setenv("DB_PASSWORD", "testpass")
	t.Setenv("DB_HOST", "testhost")
	t.Setenv("DB_PORT", "3307")
	t.Setenv("DB_NAME", "testdb")

	dsn := GetDatabaseDSN("mysql", "")
	expected := "testuser:testpass@tcp(testhost:3307)/testdb?parseTime=true"

	if dsn != expected {
		t.Errorf("GetDatabaseDSN() = %v, want %v", dsn, expected)
	}

	// DB_* variables only describe a mysql server.
	if got := GetDatabaseDSN("sqlite", "local.db"); got != "local.db" {
		t.Errorf("GetDatabaseDSN(sqlite) = %v, want local.db", got)
	}
}

func TestGetDatabaseDSN_Precedence(t *testing.T) {
	tests := []struct {
		name     string
		envDSN   string
		driver   string
		fallback string
		want     string
	}{
		{"env dsn wins", "custom:dsn@tcp(custom:3306)/customdb?parseTime=true", "mysql", "from-yaml", "custom:dsn@tcp(custom:3306)/customdb?parseTime=true"},
		{"fallback from config", "", "mysql", "from-yaml", "from-yaml"},
		{"mysql default", "", "mysql", "", "pm10cast:pm10cast@tcp(localhost:3306)/pm10cast?parseTime=true"},
		{"sqlite default", "", "sqlite", "", "pm10cast.db"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearDBEnv(t)
			t.Setenv("DATABASE_DSN", tt.envDSN)

			if got := GetDatabaseDSN(tt.driver, tt.fallback); got != tt.want {
				t.Errorf("GetDatabaseDSN() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetDatabaseDSN_PartialEnvVars(t *testing.T) {
	clearDBEnv(t)
	t.Setenv("DB_USER", "testuser")
	t.Setenv("DB_HOST", "testhost")

	if got := GetDatabaseDSN("mysql", "from-yaml"); got != "from-yaml" {
		t.Errorf("GetDatabaseDSN() with partial env = %v, want from-yaml", got)
	}
}
