package config

import (
	"os"
	"strconv"
)

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// GetRedisConfig overrides base with REDIS_ADDR, REDIS_PASSWORD and REDIS_DB
func GetRedisConfig(base RedisConfig) RedisConfig {
	db := base.DB
	if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
		if parsed, err := strconv.Atoi(dbStr); err == nil {
			db = parsed
		}
	}

	addr := base.Addr
	if addr == "" {
		addr = "localhost:6379"
	}

	return RedisConfig{
		Addr:     getEnv("REDIS_ADDR", addr),
		Password: getEnv("REDIS_PASSWORD", base.Password),
		DB:       db,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
