package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/vignesh-goutham/orion/control-bot/internal"
	"github.com/vignesh-goutham/orion/pkg/discord"
	"github.com/vignesh-goutham/orion/pkg/dynamodb"
	"github.com/vignesh-goutham/orion/pkg/rotation"
)

// DiscordInteraction represents a Discord interaction
type DiscordInteraction struct {
	Type      int                     `json:"type"`
	Token     string                  `json:"token"`
	Member    *DiscordMember          `json:"member,omitempty"`
	Data      *DiscordInteractionData `json:"data,omitempty"`
	GuildID   string                  `json:"guild_id,omitempty"`
	ChannelID string                  `json:"channel_id,omitempty"`
}

// DiscordMember represents a Discord guild member
type DiscordMember struct {
	User DiscordUser `json:"user"`
}

// DiscordUser represents a Discord user
type DiscordUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// DiscordInteractionData represents the data in a Discord interaction
type DiscordInteractionData struct {
	ID      string                 `json:"id"`
	Name    string                 `json:"name"`
	Type    int                    `json:"type"`
	Options []DiscordCommandOption `json:"options,omitempty"`
}

// DiscordCommandOption represents a slash command option value
type DiscordCommandOption struct {
	Name  string      `json:"name"`
	Value interface{} `json:"value,omitempty"`
}

// DiscordResponse represents a Discord interaction response
type DiscordResponse struct {
	Type int                  `json:"type"`
	Data *DiscordResponseData `json:"data,omitempty"`
}

// DiscordResponseData represents the data in a Discord response
type DiscordResponseData struct {
	Content string `json:"content,omitempty"`
	Flags   int    `json:"flags,omitempty"`
}

const (
	// Discord interaction types
	InteractionTypePing               = 1
	InteractionTypeApplicationCommand = 2

	// Discord response types
	ResponseTypePong                     = 1
	ResponseTypeChannelMessageWithSource = 4

	// Response flags
	ResponseFlagEphemeral = 64
)

var (
	config    *internal.Config
	dbService *dynamodb.Service
)

func init() {
	var err error
	config, err = internal.LoadConfigFromEnv()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	dbService, err = dynamodb.NewService(config.DynamoDBRegion, config.TableName)
	if err != nil {
		log.Fatalf("Failed to create DynamoDB service: %v", err)
	}
}

func handler(ctx context.Context, req events.LambdaFunctionURLRequest) (events.LambdaFunctionURLResponse, error) {
	// Get exact bytes Discord signed
	var raw []byte
	if req.IsBase64Encoded {
		b, err := base64.StdEncoding.DecodeString(req.Body)
		if err != nil {
			log.Printf("Failed to decode base64 body: %v", err)
			return errorResponse(http.StatusBadRequest, "invalid body"), nil
		}
		raw = b
	} else {
		raw = []byte(req.Body)
	}

	// Verify ALL requests with Discord signature
	signature, timestamp, err := discord.ExtractSignatureHeaders(req.Headers)
	if err != nil {
		log.Printf("Failed to extract signature headers: %v", err)
		return errorResponse(http.StatusUnauthorized, "Missing signature headers"), nil
	}

	if err := discord.VerifyRequest(raw, signature, timestamp, config.DiscordPublicKey); err != nil {
		log.Printf("Failed to verify Discord signature: %v", err)
		return errorResponse(http.StatusUnauthorized, "Invalid signature"), nil
	}

	// Parse the Discord interaction
	var interaction DiscordInteraction
	if err := json.Unmarshal(raw, &interaction); err != nil {
		log.Printf("Failed to parse interaction: %v", err)
		return errorResponse(http.StatusBadRequest, "Invalid request body"), nil
	}

	switch interaction.Type {
	case InteractionTypePing:
		return events.LambdaFunctionURLResponse{
			StatusCode: http.StatusOK,
			Headers: map[string]string{
				"Content-Type": "application/json",
			},
			Body: `{"type":1}`,
		}, nil

	case InteractionTypeApplicationCommand:
		return handleApplicationCommand(ctx, &interaction)

	default:
		log.Printf("Unhandled interaction type: %d", interaction.Type)
		return errorResponse(http.StatusBadRequest, "Unhandled interaction type"), nil
	}
}

func handleApplicationCommand(ctx context.Context, interaction *DiscordInteraction) (events.LambdaFunctionURLResponse, error) {
	if interaction.Data == nil {
		return errorResponse(http.StatusBadRequest, "No command data"), nil
	}

	switch interaction.Data.Name {
	case "status":
		return handleStatusCommand(ctx)
	case "pause":
		return handleCommandWrite(ctx, "pause", "⏸️ Worker paused. Open signals stay untouched until resume.")
	case "resume":
		return handleCommandWrite(ctx, "resume", "▶️ Worker resumed.")
	case "screen":
		return handleCommandWrite(ctx, "start_phase1", "🔍 Universe screen queued for the next worker run.")
	case "scan":
		return handleCommandWrite(ctx, "start_phase3", "🔭 Deep scan queued for the next worker run.")
	case "backtest":
		return handleBacktestCommand(ctx, interaction)
	default:
		return errorResponse(http.StatusBadRequest, "Unknown command"), nil
	}
}

// handleStatusCommand summarizes worker status, scan progress and the
// carousel state in one ephemeral reply.
func handleStatusCommand(ctx context.Context) (events.LambdaFunctionURLResponse, error) {
	status, found, err := dbService.Get(ctx, dynamodb.KeyWorkerStatus)
	if err != nil {
		log.Printf("Failed to read worker status: %v", err)
		return messageResponse("❌ Error: Failed to read worker status")
	}
	if !found {
		status = "unknown"
	}

	progress, _, _ := dbService.Get(ctx, dynamodb.KeyScanProgress)
	if progress == "" {
		progress = "n/a"
	}

	content := fmt.Sprintf("📊 **Orion Status**\n"+
		"Worker: %s\n"+
		"Scan Progress: %s",
		status, progress)

	if state, err := rotation.LoadState(ctx, dbService, dynamodb.KeyRotationState); err == nil && state != nil {
		content += fmt.Sprintf("\nActive Slots: %d\nReserve: %d\nMacro Bias: %s\nState Updated: %s",
			len(state.Active), len(state.Reserve), state.Bias,
			state.UpdatedAt.UTC().Format("2006-01-02 15:04:05"))
	}

	return messageResponse(content)
}

// handleCommandWrite stores a worker command and confirms it.
func handleCommandWrite(ctx context.Context, command, confirmation string) (events.LambdaFunctionURLResponse, error) {
	if err := dbService.Set(ctx, dynamodb.KeyWorkerCommand, command); err != nil {
		log.Printf("Failed to write worker command %q: %v", command, err)
		return messageResponse("❌ Error: Failed to store command")
	}
	return messageResponse(confirmation)
}

// handleBacktestCommand queues a backtest request unless the worker is mid
// cycle. Backtests hammer the same data budget the live scan runs on, so a
// busy worker rejects the request outright.
func handleBacktestCommand(ctx context.Context, interaction *DiscordInteraction) (events.LambdaFunctionURLResponse, error) {
	status, found, err := dbService.Get(ctx, dynamodb.KeyWorkerStatus)
	if err != nil {
		log.Printf("Failed to read worker status: %v", err)
		return messageResponse("❌ Error: Failed to read worker status")
	}
	if found && status == "running" {
		return messageResponse("🚫 Worker is busy. Try again after the current cycle finishes.")
	}

	request := dynamodb.BacktestRequest{Year: time.Now().UTC().Year() - 1}
	for _, opt := range interaction.Data.Options {
		switch opt.Name {
		case "year":
			// Discord sends integer options as JSON numbers.
			if v, ok := opt.Value.(float64); ok {
				request.Year = int(v)
			}
		case "strategy":
			if v, ok := opt.Value.(string); ok {
				request.Strategy = v
			}
		}
	}

	raw, err := json.Marshal(request)
	if err != nil {
		return messageResponse("❌ Error: Failed to encode backtest request")
	}
	if err := dbService.Set(ctx, dynamodb.KeyBacktestRequest, string(raw)); err != nil {
		log.Printf("Failed to queue backtest request: %v", err)
		return messageResponse("❌ Error: Failed to queue backtest request")
	}

	return messageResponse(fmt.Sprintf("🧪 Backtest for %d queued.", request.Year))
}

func messageResponse(content string) (events.LambdaFunctionURLResponse, error) {
	response := DiscordResponse{
		Type: ResponseTypeChannelMessageWithSource,
		Data: &DiscordResponseData{
			Content: content,
			Flags:   ResponseFlagEphemeral,
		},
	}

	responseBody, err := json.Marshal(response)
	if err != nil {
		return errorResponse(http.StatusInternalServerError, "Failed to marshal response"), nil
	}

	return events.LambdaFunctionURLResponse{
		StatusCode: http.StatusOK,
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
		Body: string(responseBody),
	}, nil
}

func errorResponse(statusCode int, message string) events.LambdaFunctionURLResponse {
	return events.LambdaFunctionURLResponse{
		StatusCode: statusCode,
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
		Body: fmt.Sprintf(`{"error": %q}`, message),
	}
}

func main() {
	lambda.Start(handler)
}
