package dynamodb

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dynamodbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/vignesh-goutham/orion/pkg/signals"
	"github.com/vignesh-goutham/orion/pkg/trades"
)

// Single-table layout:
//
//	CONTROL            / <key>            control values (worker status, commands, progress, log)
//	SIGNAL#OPEN        / <ticker>         at most one open signal per ticker
//	SIGNAL#CLOSED#<t>  / <signal uuid>    unlimited closed history per ticker
//	TRADE#<strategy>   / <ticker>#<ts>    backtest/virtual trade records
const (
	pkControl      = "CONTROL"
	pkOpenSignals  = "SIGNAL#OPEN"
	itemTypeValue  = "CONTROL_VALUE"
	itemTypeSignal = "SIGNAL"
	itemTypeTrade  = "TRADE"

	// Control keys used across processes.
	KeyWorkerStatus    = "worker_status"
	KeyWorkerCommand   = "worker_command"
	KeyScanProgress    = "scan_progress"
	KeyScanLog         = "scan_log"
	KeyRotationState   = "rotation_state"
	KeyCandidates      = "candidate_tickers"
	KeyBacktestRequest = "backtest_request"

	maxLogBytes = 12000
	batchSize   = 25 // DynamoDB BatchWriteItem limit
)

// BacktestRequest is the payload stored under KeyBacktestRequest by the
// control surface and consumed by the worker. Strategy is optional; the
// worker falls back to its configured strategy.
type BacktestRequest struct {
	Year     int    `json:"year"`
	Strategy string `json:"strategy,omitempty"`
}

// item is the unified single-table row shape.
type item struct {
	PK        string    `dynamodbav:"pk"`
	SK        string    `dynamodbav:"sk"`
	Type      string    `dynamodbav:"type"`
	Data      string    `dynamodbav:"data"`
	CreatedAt time.Time `dynamodbav:"created_at"`
	UpdatedAt time.Time `dynamodbav:"updated_at"`
}

// Service handles all DynamoDB operations with single table design.
type Service struct {
	client    *dynamodb.Client
	tableName string
	now       func() time.Time
}

// NewService creates a new DynamoDB service instance.
func NewService(region, tableName string) (*Service, error) {
	cfg, err := config.LoadDefaultConfig(context.TODO(), config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &Service{
		client:    dynamodb.NewFromConfig(cfg),
		tableName: tableName,
		now:       time.Now,
	}, nil
}

// Get reads a control value. The second return is false when the key has
// never been written.
func (d *Service) Get(ctx context.Context, key string) (string, bool, error) {
	out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.tableName),
		Key:       itemKey(pkControl, key),
	})
	if err != nil {
		return "", false, fmt.Errorf("failed to get control value %s: %w", key, err)
	}
	if out.Item == nil {
		return "", false, nil
	}
	var it item
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return "", false, fmt.Errorf("failed to unmarshal control value %s: %w", key, err)
	}
	return it.Data, true, nil
}

// Set upserts a control value.
func (d *Service) Set(ctx context.Context, key, value string) error {
	now := d.now()
	it, err := attributevalue.MarshalMap(item{
		PK:        pkControl,
		SK:        key,
		Type:      itemTypeValue,
		Data:      value,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal control value %s: %w", key, err)
	}
	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.tableName),
		Item:      it,
	})
	if err != nil {
		return fmt.Errorf("failed to put control value %s: %w", key, err)
	}
	return nil
}

// AppendLog prepends a timestamped line to the capped scan log.
func (d *Service) AppendLog(ctx context.Context, message string) error {
	existing, _, err := d.Get(ctx, KeyScanLog)
	if err != nil {
		return err
	}
	line := fmt.Sprintf("[%s] %s", d.now().UTC().Format(signals.NoteLayout), message)
	return d.Set(ctx, KeyScanLog, CapLog(line+"\n"+existing, maxLogBytes))
}

// SetProgress publishes processed/total counters for external polling.
func (d *Service) SetProgress(ctx context.Context, processed, total int) error {
	return d.Set(ctx, KeyScanProgress, fmt.Sprintf("%d/%d", processed, total))
}

// CapLog trims a log blob to at most max bytes, cutting on a line boundary.
func CapLog(log string, max int) string {
	if len(log) <= max {
		return log
	}
	cut := log[:max]
	if idx := strings.LastIndexByte(cut, '\n'); idx > 0 {
		cut = cut[:idx]
	}
	return cut
}

// LoadOpenSignals returns every signal currently occupying a per-ticker
// uniqueness slot.
func (d *Service) LoadOpenSignals(ctx context.Context) ([]*signals.Signal, error) {
	out, err := d.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(d.tableName),
		KeyConditionExpression: aws.String("pk = :pk"),
		ExpressionAttributeValues: map[string]dynamodbtypes.AttributeValue{
			":pk": &dynamodbtypes.AttributeValueMemberS{Value: pkOpenSignals},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query open signals: %w", err)
	}

	var loaded []*signals.Signal
	for _, raw := range out.Items {
		var it item
		if err := attributevalue.UnmarshalMap(raw, &it); err != nil {
			continue
		}
		var sig signals.Signal
		if err := json.Unmarshal([]byte(it.Data), &sig); err != nil {
			continue
		}
		loaded = append(loaded, &sig)
	}
	return loaded, nil
}

// GetOpenSignal returns the open signal for a ticker, or nil.
func (d *Service) GetOpenSignal(ctx context.Context, ticker string) (*signals.Signal, error) {
	out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.tableName),
		Key:       itemKey(pkOpenSignals, ticker),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get open signal for %s: %w", ticker, err)
	}
	if out.Item == nil {
		return nil, nil
	}
	var it item
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return nil, fmt.Errorf("failed to unmarshal open signal for %s: %w", ticker, err)
	}
	var sig signals.Signal
	if err := json.Unmarshal([]byte(it.Data), &sig); err != nil {
		return nil, fmt.Errorf("failed to decode open signal for %s: %w", ticker, err)
	}
	return &sig, nil
}

// SaveSignal persists a signal, enforcing the one-open-signal-per-ticker
// constraint: inserting a new open signal for a ticker that already has one
// merges the newcomer's notes into the existing row instead of creating a
// duplicate. The returned signal is the row that actually occupies the slot.
func (d *Service) SaveSignal(ctx context.Context, sig *signals.Signal) (*signals.Signal, error) {
	if sig.IsOpen() {
		existing, err := d.GetOpenSignal(ctx, sig.Ticker)
		if err != nil {
			return nil, err
		}
		winner := ResolveOpenSlot(existing, sig, d.now())
		if err := d.putSignal(ctx, pkOpenSignals, winner.Ticker, winner); err != nil {
			return nil, err
		}
		return winner, nil
	}

	// Terminal: move out of the uniqueness slot into per-ticker history.
	if err := d.putSignal(ctx, "SIGNAL#CLOSED#"+sig.Ticker, sig.ID.String(), sig); err != nil {
		return nil, err
	}
	_, err := d.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(d.tableName),
		Key:       itemKey(pkOpenSignals, sig.Ticker),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to release open slot for %s: %w", sig.Ticker, err)
	}
	return sig, nil
}

// ResolveOpenSlot decides which row keeps a ticker's uniqueness slot when an
// open signal is written. Writing back the incumbent, or a signal into an
// empty slot, passes through. A conflicting newcomer collapses into the
// incumbent: its notes are appended and the incumbent stays the single row.
func ResolveOpenSlot(existing, incoming *signals.Signal, now time.Time) *signals.Signal {
	if existing == nil || existing.ID == incoming.ID {
		return incoming
	}
	existing.Notes = append(existing.Notes, incoming.Notes...)
	existing.UpdatedAt = now
	return existing
}

func (d *Service) putSignal(ctx context.Context, pk, sk string, sig *signals.Signal) error {
	data, err := json.Marshal(sig)
	if err != nil {
		return fmt.Errorf("failed to marshal signal %s: %w", sig.ID, err)
	}
	it, err := attributevalue.MarshalMap(item{
		PK:        pk,
		SK:        sk,
		Type:      itemTypeSignal,
		Data:      string(data),
		CreatedAt: sig.GeneratedAt,
		UpdatedAt: sig.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal signal item %s: %w", sig.ID, err)
	}
	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.tableName),
		Item:      it,
	})
	if err != nil {
		return fmt.Errorf("failed to put signal %s: %w", sig.ID, err)
	}
	return nil
}

// SaveTrades persists a batch of closed trades, chunked to the BatchWriteItem
// limit. A failed chunk fails the whole call; the caller retries or drops the
// batch as one unit of work.
func (d *Service) SaveTrades(ctx context.Context, batch []*trades.Trade) error {
	var writeRequests []dynamodbtypes.WriteRequest
	now := d.now()

	for _, tr := range batch {
		data, err := json.Marshal(tr)
		if err != nil {
			continue
		}
		it, err := attributevalue.MarshalMap(item{
			PK:        "TRADE#" + tr.Setup,
			SK:        fmt.Sprintf("%s#%d", tr.Ticker, tr.OpenedAt.Unix()),
			Type:      itemTypeTrade,
			Data:      string(data),
			CreatedAt: now,
			UpdatedAt: now,
		})
		if err != nil {
			continue
		}
		writeRequests = append(writeRequests, dynamodbtypes.WriteRequest{
			PutRequest: &dynamodbtypes.PutRequest{Item: it},
		})
	}

	for i := 0; i < len(writeRequests); i += batchSize {
		end := i + batchSize
		if end > len(writeRequests) {
			end = len(writeRequests)
		}
		_, err := d.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]dynamodbtypes.WriteRequest{
				d.tableName: writeRequests[i:end],
			},
		})
		if err != nil {
			return fmt.Errorf("failed to batch write trades: %w", err)
		}
	}
	return nil
}

// Candidates returns the screened candidate list maintained by the worker's
// universe-screening phase.
func (d *Service) Candidates(ctx context.Context) ([]string, error) {
	raw, found, err := d.Get(ctx, KeyCandidates)
	if err != nil {
		return nil, err
	}
	if !found || raw == "" {
		return nil, nil
	}
	var tickers []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tickers = append(tickers, t)
		}
	}
	return tickers, nil
}

// SetCandidates replaces the screened candidate list.
func (d *Service) SetCandidates(ctx context.Context, tickers []string) error {
	return d.Set(ctx, KeyCandidates, strings.Join(tickers, ","))
}

func itemKey(pk, sk string) map[string]dynamodbtypes.AttributeValue {
	return map[string]dynamodbtypes.AttributeValue{
		"pk": &dynamodbtypes.AttributeValueMemberS{Value: pk},
		"sk": &dynamodbtypes.AttributeValueMemberS{Value: sk},
	}
}
