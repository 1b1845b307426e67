package internal

// Config holds the scan worker configuration
type Config struct {
	AlpacaAPIKey    string
	AlpacaSecretKey string

	// DynamoDB configuration
	DynamoDBRegion string
	TableName      string

	// Scan configuration
	StrategyName    string
	ActiveCap       int
	MaxCandidates   int
	MinSharePrice   float64
	BenchmarkTicker string

	// News judge endpoint, optional
	JudgeEndpoint string
	JudgeAPIKey   string

	// Discord notifications
	DiscordWebhookURL string
}
