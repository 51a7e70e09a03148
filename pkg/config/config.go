package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port                    string
	Env                     string
	FirebaseCredentialsPath string
	PostgresUrl             string
	MongoURI                string
	MongoDatabase           string
	RedisURL                string
	MetricsPort             string
	JWTSecret               string
	JWTExpiry               time.Duration
	CloudinaryURL           string
	CloudinaryFolder        string
	AllowedOrigins          []string
	PostRateLimit           time.Duration
	ActiveWindow            time.Duration
	DBConnectAttempts       int
	DBConnectDelay          time.Duration

	MongoServerSelectionTimeout time.Duration
	MongoSocketTimeout          time.Duration
}

// Load reads the environment (and a .env file when present) into a Config.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, assuming environment variables are set.")
	}

	return &Config{
		Port:                    getEnv("PORT", "8080"),
		Env:                     getEnv("ENV", "development"),
		FirebaseCredentialsPath: getEnv("FIREBASE_CREDENTIALS_PATH", ""),
		PostgresUrl:             getEnv("POSTGRES_URL", "host=localhost user=postgres dbname=linkup port=5432 sslmode=disable"),
		MongoURI:                getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase:           getEnv("MONGO_DATABASE", "linkup"),
		RedisURL:                getEnv("REDIS_URL", ""),
		MetricsPort:             getEnv("METRICS_PORT", "9090"),
		JWTSecret:               getEnv("JWT_SECRET", "supersecretjwtkey"),
		JWTExpiry:               getDuration("JWT_EXPIRY", 72*time.Hour),
		CloudinaryURL:           getEnv("CLOUDINARY_URL", ""),
		CloudinaryFolder:        getEnv("CLOUDINARY_UPLOAD_FOLDER", "linkup"),
		AllowedOrigins:          getList("ALLOWED_ORIGINS", []string{"*"}),
		PostRateLimit:           getDuration("RATE_LIMIT_POST", 10*time.Second),
		ActiveWindow:            getDuration("ACTIVE_WINDOW", 15*time.Minute),
		DBConnectAttempts:       getInt("DB_CONNECT_ATTEMPTS", 3),
		DBConnectDelay:          getDuration("DB_CONNECT_DELAY", 5*time.Second),

		MongoServerSelectionTimeout: getDuration("MONGO_SERVER_SELECTION_TIMEOUT", 5*time.Second),
		MongoSocketTimeout:          getDuration("MONGO_SOCKET_TIMEOUT", 45*time.Second),
	}
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("Invalid duration for %s (%q), using %s", key, value, defaultValue)
		return defaultValue
	}
	return d
}

func getInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 1 {
		log.Printf("Invalid integer for %s (%q), using %d", key, value, defaultValue)
		return defaultValue
	}
	return n
}

func getList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
