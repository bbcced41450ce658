package config

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	JWT        JWTConfig
	Redis      RedisConfig
	CORS       CORSConfig
	WS         WSConfig
	Recognizer RecognizerConfig
	Uploads    UploadsConfig
	Storage    StorageConfig
}

type ServerConfig struct {
	Port int
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

type JWTConfig struct {
	Secret      string
	ExpiryHours int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type CORSConfig struct {
	AllowedOrigins string
}

// WSConfig tunes the realtime channel. PingIntervalMS is the transport-level
// keep-alive; SendBuffer is the per-connection outbound queue length.
type WSConfig struct {
	PingIntervalMS int
	SendBuffer     int
}

// RecognizerConfig selects the plate recognizer. Backend is "script" (an
// external process invoked as `Command Script <image>`) or "rekognition".
type RecognizerConfig struct {
	Backend    string
	Command    string
	Script     string
	TimeoutSec int
	AWSRegion  string
}

type UploadsConfig struct {
	Dir      string
	TempDir  string
	MaxBytes int
}

// StorageConfig selects where uploaded images live: "local" (Uploads.Dir,
// served under /uploads) or "minio".
type StorageConfig struct {
	Backend   string
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	PublicURL string
}

func (d DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("could not load .env file: %v", err)
	}

	serverPort, err := getIntEnv("SERVER_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	dbPort, err := getIntEnv("DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	jwtExpiry, err := getIntEnv("JWT_EXPIRY_HOURS", 24)
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_EXPIRY_HOURS: %w", err)
	}

	redisPort, err := getIntEnv("REDIS_PORT", 6379)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_PORT: %w", err)
	}

	redisDB, err := getIntEnv("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	pingInterval, err := getIntEnv("WS_PING_INTERVAL_MS", 30000)
	if err != nil {
		return nil, fmt.Errorf("invalid WS_PING_INTERVAL_MS: %w", err)
	}

	sendBuffer, err := getIntEnv("WS_SEND_BUFFER", 32)
	if err != nil {
		return nil, fmt.Errorf("invalid WS_SEND_BUFFER: %w", err)
	}

	recognizerTimeout, err := getIntEnv("RECOGNIZER_TIMEOUT_SEC", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid RECOGNIZER_TIMEOUT_SEC: %w", err)
	}

	maxUpload, err := getIntEnv("UPLOAD_MAX_BYTES", 10<<20)
	if err != nil {
		return nil, fmt.Errorf("invalid UPLOAD_MAX_BYTES: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: serverPort,
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     dbPort,
			User:     getEnv("DB_USER", "platedetect"),
			Password: getEnv("DB_PASSWORD", "platedetect_dev_password"),
			Name:     getEnv("DB_NAME", "platedetect"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", "platedetect-dev-secret"),
			ExpiryHours: jwtExpiry,
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     redisPort,
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
		},
		WS: WSConfig{
			PingIntervalMS: pingInterval,
			SendBuffer:     sendBuffer,
		},
		Recognizer: RecognizerConfig{
			Backend:    getEnv("RECOGNIZER_BACKEND", "script"),
			Command:    getEnv("RECOGNIZER_COMMAND", "python"),
			Script:     getEnv("RECOGNIZER_SCRIPT", "License-Plate-Recognition/lp_image.py"),
			TimeoutSec: recognizerTimeout,
			AWSRegion:  getEnv("AWS_REGION", "ap-southeast-1"),
		},
		Uploads: UploadsConfig{
			Dir:      getEnv("UPLOAD_DIR", "uploads"),
			TempDir:  getEnv("DETECTION_TEMP_DIR", os.TempDir()),
			MaxBytes: maxUpload,
		},
		Storage: StorageConfig{
			Backend:   getEnv("IMAGE_STORAGE", "local"),
			Endpoint:  getEnv("S3_ENDPOINT", "localhost:9000"),
			AccessKey: getEnv("S3_ACCESS_KEY", ""),
			SecretKey: getEnv("S3_SECRET_KEY", ""),
			Bucket:    getEnv("S3_BUCKET", "plate-images"),
			UseSSL:    getEnv("S3_USE_SSL", "false") == "true",
			PublicURL: getEnv("S3_PUBLIC_URL", ""),
		},
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getIntEnv(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	return parsed, nil
}
