package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nairalink/nairalink/internal/ledger"
)

// DefaultChannel is the Redis pub/sub channel completed transactions are
// published on for out-of-process consumers.
const DefaultChannel = "ledger.transactions.completed"

type transactionMessage struct {
	Reference string            `json:"reference"`
	UserID    string            `json:"user_id"`
	WalletID  string            `json:"wallet_id"`
	Type      string            `json:"type"`
	Amount    string            `json:"amount"`
	Currency  string            `json:"currency"`
	Status    string            `json:"status"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// RedisPublisher republishes completed transactions on a Redis channel.
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

// NewRedisPublisher builds a publisher for the given channel; an empty
// channel name falls back to DefaultChannel.
func NewRedisPublisher(client *redis.Client, channel string) *RedisPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisPublisher{client: client, channel: channel}
}

// HandleTransactionCompleted serializes the transaction and publishes it.
func (p *RedisPublisher) HandleTransactionCompleted(ctx context.Context, tx ledger.Transaction) error {
	payload, err := json.Marshal(transactionMessage{
		Reference: tx.Reference,
		UserID:    tx.UserID,
		WalletID:  tx.WalletID,
		Type:      string(tx.Type),
		Amount:    tx.Amount.String(),
		Currency:  tx.Currency,
		Status:    string(tx.Status),
		Metadata:  tx.Metadata,
		CreatedAt: tx.CreatedAt,
	})
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, p.channel, payload).Err()
}
