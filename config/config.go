package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// This function will Load the ENVIORNMENT VARIABLES from .env if GO_ENV variable is not set
func LoadENV() error {
	goEnv := os.Getenv("GO_ENV")

	if goEnv == "" || goEnv == "development" {
		err := godotenv.Load()
		if err != nil {
			return err
		}
	}

	return nil
}

type EnviornmentVariable struct {
	// All variables
	GO_ENV       string
	DB_USER_NAME string
	DB_PASSWORD  string
	DB_NAME      string
	DB_HOST      string
	DB_PORT      string
	DB_SSL_MODE  string
	PORT         int
	// JWT Configuration
	JWT_SECRET string
	JWT_ISSUER string
	// Redis Configuration
	REDIS_URL string
	// Mistral Configuration
	MISTRAL_API_KEY     string
	MISTRAL_MODEL       string
	MISTRAL_EMBED_MODEL string
	// Pinecone Configuration
	PINECONE_API_KEY    string
	PINECONE_INDEX_HOST string
	// Timeout applied to AI completion requests
	AI_REQUEST_TIMEOUT time.Duration
}

func Get() (*EnviornmentVariable, error) {

	port, err := strconv.Atoi(os.Getenv("PORT"))
	if err != nil {
		port = 8080
	}

	// Database defaults
	dbHost := os.Getenv("DB_HOST")
	if dbHost == "" {
		dbHost = "localhost"
	}

	dbPort := os.Getenv("DB_PORT")
	if dbPort == "" {
		dbPort = "5432"
	}

	aiTimeout := 120 * time.Second
	if raw := os.Getenv("AI_REQUEST_TIMEOUT_SECONDS"); raw != "" {
		if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
			aiTimeout = time.Duration(secs) * time.Second
		}
	}

	mistralModel := os.Getenv("MISTRAL_MODEL")
	if mistralModel == "" {
		mistralModel = "mistral-large-latest"
	}

	embedModel := os.Getenv("MISTRAL_EMBED_MODEL")
	if embedModel == "" {
		embedModel = "mistral-embed"
	}

	envVariables := &EnviornmentVariable{
		GO_ENV:       os.Getenv("GO_ENV"),
		DB_USER_NAME: os.Getenv("DB_USER_NAME"),
		DB_PASSWORD:  os.Getenv("DB_PASSWORD"),
		DB_NAME:      os.Getenv("DB_NAME"),
		DB_HOST:      dbHost,
		DB_PORT:      dbPort,
		DB_SSL_MODE:  os.Getenv("DB_SSL_MODE"),
		PORT:         port,
		// JWT
		JWT_SECRET: os.Getenv("JWT_SECRET"),
		JWT_ISSUER: os.Getenv("JWT_ISSUER"),
		// Redis
		REDIS_URL: os.Getenv("REDIS_URL"),
		// Mistral
		MISTRAL_API_KEY:     os.Getenv("MISTRAL_API_KEY"),
		MISTRAL_MODEL:       mistralModel,
		MISTRAL_EMBED_MODEL: embedModel,
		// Pinecone
		PINECONE_API_KEY:    os.Getenv("PINECONE_API_KEY"),
		PINECONE_INDEX_HOST: os.Getenv("PINECONE_INDEX_HOST"),
		AI_REQUEST_TIMEOUT:  aiTimeout,
	}

	return envVariables, nil
}
