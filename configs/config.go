package configs

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Port          int
	DBHost        string
	DBPort        int
	DBUser        string
	DBPassword    string
	DBName        string
	DBNameTest    string
	RedisHost     string
	RedisPort     int
	JWTSecret     string
	EncryptionKey string
}

func LoadConfig() Config {
	// Load .env if present
	if err := godotenv.Load(); err != nil {
		// Only log outside of test mode
		if os.Getenv("GO_ENV") != "test" {
			log.Println("No .env file found, using default values")
		}
	}

	port, err := strconv.Atoi(os.Getenv("PORT"))
	if err != nil {
		port = 3004
	}

	dbPort, err := strconv.Atoi(os.Getenv("DB_PORT"))
	if err != nil {
		dbPort = 5432
	}

	redisPort, err := strconv.Atoi(os.Getenv("REDIS_PORT"))
	if err != nil {
		redisPort = 6379
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		jwtSecret = "secret"
	}

	encryptionKey := os.Getenv("ENCRYPTION_KEY")
	if encryptionKey == "" {
		encryptionKey = "TaskforgeReportEncryptionKey"
	}

	return Config{
		Port:          port,
		DBHost:        os.Getenv("DB_HOST"),
		DBPort:        dbPort,
		DBUser:        os.Getenv("DB_USER"),
		DBPassword:    os.Getenv("DB_PASSWORD"),
		DBName:        os.Getenv("DB_NAME"),
		DBNameTest:    os.Getenv("DB_NAME_TEST"),
		RedisHost:     os.Getenv("REDIS_HOST"),
		RedisPort:     redisPort,
		JWTSecret:     jwtSecret,
		EncryptionKey: encryptionKey,
	}
}
