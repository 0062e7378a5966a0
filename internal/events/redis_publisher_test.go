package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/nairalink/nairalink/internal/ledger"
)

func TestRedisPublisherPublishesCompletedTransaction(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	ctx := context.Background()
	sub := client.Subscribe(ctx, DefaultChannel)
	t.Cleanup(func() { sub.Close() })
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	publisher := NewRedisPublisher(client, "")
	tx := ledger.Transaction{
		UserID:    "user-1",
		WalletID:  "wallet-1",
		Type:      ledger.TxTransfer,
		Amount:    decimal.NewFromInt(250),
		Currency:  "NGN",
		Reference: "ref-1",
		Status:    ledger.StatusCompleted,
		Metadata:  map[string]string{"direction": "debit"},
		CreatedAt: time.Now().UTC(),
	}
	if err := publisher.HandleTransactionCompleted(ctx, tx); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case msg := <-sub.Channel():
		var decoded transactionMessage
		if err := json.Unmarshal([]byte(msg.Payload), &decoded); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		if decoded.Reference != "ref-1" || decoded.Amount != "250" || decoded.Type != "transfer" {
			t.Fatalf("unexpected message %+v", decoded)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}
}

type recordingHandler struct {
	refs []string
	fail bool
}

func (h *recordingHandler) HandleTransactionCompleted(_ context.Context, tx ledger.Transaction) error {
	h.refs = append(h.refs, tx.Reference)
	if h.fail {
		return context.DeadlineExceeded
	}
	return nil
}

func TestDispatcherIsolatesHandlerFailures(t *testing.T) {
	failing := &recordingHandler{fail: true}
	healthy := &recordingHandler{}
	d := NewDispatcher(nil, failing, healthy)

	d.TransactionCompleted(context.Background(), ledger.Transaction{Reference: "ref-2"})

	if len(failing.refs) != 1 || len(healthy.refs) != 1 {
		t.Fatalf("expected both handlers invoked, got %d and %d", len(failing.refs), len(healthy.refs))
	}
}
