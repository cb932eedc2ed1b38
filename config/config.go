// Package config loads application configuration from environment variables,
// with an optional .env file for local development.
package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Instruments to track (comma-separated, e.g. "BTCUSDT,ETHUSDT")
	Instruments string

	// Engine sizing
	HistoryCap    int // per-instrument candle cap
	CacheCapacity int // indicator result cache entries; <0 disables
	MinHistory    int // bars required before conditions evaluate

	// Indicator defaults
	RSIPeriod     int
	RSIOversold   float64
	RSIOverbought float64
	MACDFast      int
	MACDSlow      int
	MACDSignal    int
	BollPeriod    int
	BollStdDev    float64
	ATRPeriod     int
	StochK        int
	StochD        int
	VolumeAvgBars int
	ProximityBars int

	// Infrastructure
	RedisAddr     string
	RedisPassword string
	SQLitePath    string
	MetricsAddr   string
	LogLevel      string

	// Snapshot cadence in seconds; 0 disables periodic snapshots
	SnapshotEverySec int
}

// Load reads configuration from the environment with sensible defaults.
// A .env file in the working directory is merged in first if present.
func Load() *Config {
	if err := godotenv.Load(); err == nil {
		log.Println("[config] loaded .env file")
	}

	return &Config{
		Instruments: getEnv("INSTRUMENTS", "BTCUSDT"),

		HistoryCap:    getEnvInt("HISTORY_CAP", 200),
		CacheCapacity: getEnvInt("CACHE_CAPACITY", 100),
		MinHistory:    getEnvInt("MIN_HISTORY", 30),

		RSIPeriod:     getEnvInt("RSI_PERIOD", 14),
		RSIOversold:   getEnvFloat("RSI_OVERSOLD", 30),
		RSIOverbought: getEnvFloat("RSI_OVERBOUGHT", 70),
		MACDFast:      getEnvInt("MACD_FAST", 12),
		MACDSlow:      getEnvInt("MACD_SLOW", 26),
		MACDSignal:    getEnvInt("MACD_SIGNAL", 9),
		BollPeriod:    getEnvInt("BOLL_PERIOD", 20),
		BollStdDev:    getEnvFloat("BOLL_STDDEV", 2.0),
		ATRPeriod:     getEnvInt("ATR_PERIOD", 14),
		StochK:        getEnvInt("STOCH_K", 14),
		StochD:        getEnvInt("STOCH_D", 3),
		VolumeAvgBars: getEnvInt("VOLUME_AVG_BARS", 20),
		ProximityBars: getEnvInt("PROXIMITY_BARS", 20),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		SQLitePath:    getEnv("SQLITE_PATH", "data/tradecore.db"),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9090"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),

		SnapshotEverySec: getEnvInt("SNAPSHOT_EVERY_SEC", 60),
	}
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[config] invalid int for %s: %q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("[config] invalid float for %s: %q, using %g", key, v, fallback)
		return fallback
	}
	return f
}
