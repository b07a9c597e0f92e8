package config

import (
	"fmt"
	"os"
)

// GetDatabaseDSN returns the connection string for driver.
// For mysql it checks the DB_* variables first, then DATABASE_DSN, then
// fallback, then a local default.
func GetDatabaseDSN(driver, fallback string) string {
	if driver == "mysql" {
		user := os.Getenv("DB_USER")
		password := os.Getenv("DB_PASSWORD")
		host := os.Getenv("DB_HOST")
		port := os.Getenv("DB_PORT")
		database := os.Getenv("DB_NAME")

		if user != "" && password != "" && host != "" && port != "" && database != "" {
			return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true", user, password, host, port, database)
		}
	}

	if dsn := os.Getenv("DATABASE_DSN"); dsn != "" {
		return dsn
	}

	if fallback != "" {
		return fallback
	}

	if driver == "sqlite" {
		return "pm10cast.db"
	}
	return "pm10cast:pm10cast@tcp(localhost:3306)/pm10cast?parseTime=true"
}
