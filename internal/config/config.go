package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL       string
	ServerAddr        string
	MaxBooksPerMember int
	DefaultBorrowDays int
}

// Load reads configuration from the environment, after loading a .env file
// if one is present. Missing values fall back to defaults; DATABASE_URL has
// no default and is validated by the commands that need it.
func Load() Config {
	if err := godotenv.Load(); err == nil {
		log.Printf("[INFO] config: loaded .env")
	}

	return Config{
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		ServerAddr:        envString("SERVER_ADDR", ":8080"),
		MaxBooksPerMember: envInt("MAX_BOOKS_PER_MEMBER", 5),
		DefaultBorrowDays: envInt("DEFAULT_BORROW_DAYS", 14),
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		log.Printf("[WARN] config: invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}
