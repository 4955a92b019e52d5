// Package config loads service configuration from the environment and
// reusable analysis settings from YAML files.
package config

import (
	"os"
	"strconv"
)

type Runtime struct {
	HTTPAddr            string
	PolicyCacheMaxItems int
	GraphCacheMaxItems  int
	MaxFlows            int
	LogLevel            string
}

func Load() Runtime {
	return Runtime{
		HTTPAddr:            getenv("HTTP_ADDR", ":8080"),
		PolicyCacheMaxItems: getenvInt("POLICY_CACHE_MAX_ITEMS", 1024, 1),
		GraphCacheMaxItems:  getenvInt("GRAPH_CACHE_MAX_ITEMS", 256, 1),
		MaxFlows:            getenvInt("MAX_FLOWS", 10_000, 1),
		LogLevel:            getenv("LOG_LEVEL", "info"),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback, min int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < min {
		return fallback
	}
	return v
}
