package main

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/vignesh-goutham/orion/scan-worker/internal"
)

// Lambda handler for AWS Lambda triggered by EventBridge Scheduler
func handler(ctx context.Context, request events.CloudWatchEvent) error {
	log.Info().Str("event_id", request.ID).Msg("Orion scan worker triggered by EventBridge Scheduler")

	// Load configuration from environment variables
	config, err := loadConfigFromEnv()
	if err != nil {
		log.Error().Err(err).Msg("failed to load configuration")
		return err
	}

	worker, err := internal.NewScanWorker(config)
	if err != nil {
		log.Error().Err(err).Msg("failed to create scan worker")
		return err
	}

	// Create context with timeout (10 minutes for Lambda)
	ctx, cancel := context.WithTimeout(ctx, 10*time.Minute)
	defer cancel()

	if err := worker.Run(ctx); err != nil {
		log.Error().Err(err).Msg("scan worker failed")
		return err
	}

	log.Info().Msg("Orion scan worker completed successfully")
	return nil
}

// loadConfigFromEnv loads configuration from environment variables
func loadConfigFromEnv() (*internal.Config, error) {
	config := &internal.Config{}

	// Required environment variables
	config.AlpacaAPIKey = getEnvOrFail("ALPACA_API_KEY")
	config.AlpacaSecretKey = getEnvOrFail("ALPACA_SECRET_KEY")

	// DynamoDB configuration
	config.DynamoDBRegion = getEnvOrDefault("DYNAMODB_REGION", "us-east-1")
	config.TableName = getEnvOrDefault("TABLE_NAME", "orion-data")

	// Scan configuration
	config.StrategyName = getEnvOrDefault("STRATEGY_NAME", "anomaly")
	config.ActiveCap = getEnvAsIntOrDefault("ACTIVE_CAP", 8)
	config.MaxCandidates = getEnvAsIntOrDefault("MAX_CANDIDATES", 500)
	config.MinSharePrice = getEnvAsFloatOrDefault("MIN_SHARE_PRICE", 3.0)
	config.BenchmarkTicker = getEnvOrDefault("BENCHMARK_TICKER", "SPY")

	// News judge, optional
	config.JudgeEndpoint = getEnvOrDefault("JUDGE_ENDPOINT", "")
	config.JudgeAPIKey = getEnvOrDefault("JUDGE_API_KEY", "")

	// Discord notifications
	config.DiscordWebhookURL = getEnvOrDefault("DISCORD_WEBHOOK_URL", "")

	return config, nil
}

// getEnvOrFail gets an environment variable or fails if not found
func getEnvOrFail(key string) string {
	value := os.Getenv(key)
	if value == "" {
		log.Fatal().Str("key", key).Msg("required environment variable is not set")
	}
	return value
}

// getEnvOrDefault gets an environment variable or returns a default value
func getEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsIntOrDefault gets an environment variable as int or returns a default value
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		log.Warn().Str("key", key).Str("value", value).Int("default", defaultValue).
			Msg("invalid integer value, using default")
		return defaultValue
	}
	return intValue
}

// getEnvAsFloatOrDefault gets an environment variable as float64 or returns a default value
func getEnvAsFloatOrDefault(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	floatValue, err := strconv.ParseFloat(value, 64)
	if err != nil {
		log.Warn().Str("key", key).Str("value", value).Float64("default", defaultValue).
			Msg("invalid float value, using default")
		return defaultValue
	}
	return floatValue
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	lambda.Start(handler)
}
