// Package mailbox implements the Message Bus (C5): mailbox-addressed
// messages between specialists and the coordinator. Unlike the other
// components, which live in the relational store, mailbox keeps its
// state in NATS JetStream KV: a durable, independently-scalable queue
// is exactly what the NATS-KV idiom is for.
package mailbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/fleettools/squawk/internal/clock"
	"github.com/fleettools/squawk/internal/ids"
)

// JetStream KV bucket names.
const (
	BucketMailboxes = "SQUAWK_MAILBOXES"
	BucketMessages  = "SQUAWK_MESSAGES"
)

// ErrMailboxNotFound is returned by Send when the target mailbox does
// not exist; Send enforces mailbox existence.
var ErrMailboxNotFound = errors.New("mailbox: mailbox does not exist")

// ErrMessageNotFound is returned by lookups that find no matching message.
var ErrMessageNotFound = errors.New("mailbox: message not found")

// Status is a message's delivery state. Once Acked, never redelivered
//.
type Status string

const (
	StatusPending Status = "pending"
	StatusRead    Status = "read"
	StatusAcked   Status = "acked"
)

// Message is mailbox-addressed.
type Message struct {
	ID          string     `json:"id"`
	MailboxID   string     `json:"mailbox_id"`
	SenderID    *string    `json:"sender_id,omitempty"`
	ThreadID    *string    `json:"thread_id,omitempty"`
	MessageType string     `json:"message_type"`
	Content     string     `json:"content"`
	Priority    string     `json:"priority"`
	Status      Status     `json:"status"`
	SentAt      time.Time  `json:"sent_at"`
	ReadAt      *time.Time `json:"read_at,omitempty"`
	AckedAt     *time.Time `json:"acked_at,omitempty"`
}

type mailboxRecord struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Bus is the Message Bus component.
type Bus struct {
	mailboxes jetstream.KeyValue
	messages  jetstream.KeyValue
	clock     clock.Clock
}

// New creates a Bus, creating its two KV buckets if missing via
// getOrCreateBucket.
func New(ctx context.Context, js jetstream.JetStream, clk clock.Clock) (*Bus, error) {
	if clk == nil {
		clk = clock.System{}
	}
	mailboxes, err := getOrCreateBucket(ctx, js, BucketMailboxes)
	if err != nil {
		return nil, fmt.Errorf("create mailboxes bucket: %w", err)
	}
	messages, err := getOrCreateBucket(ctx, js, BucketMessages)
	if err != nil {
		return nil, fmt.Errorf("create messages bucket: %w", err)
	}
	return &Bus{mailboxes: mailboxes, messages: messages, clock: clk}, nil
}

func getOrCreateBucket(ctx context.Context, js jetstream.JetStream, name string) (jetstream.KeyValue, error) {
	kv, err := js.KeyValue(ctx, name)
	if err == nil {
		return kv, nil
	}
	return js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      name,
		Description: fmt.Sprintf("squawk %s storage", strings.ToLower(name)),
		History:     5,
	})
}

// CreateMailbox registers a mailbox owned by ownerID (typically a
// specialist id) and returns its id.
func (b *Bus) CreateMailbox(ctx context.Context, ownerID string) (string, error) {
	rec := mailboxRecord{
		ID:        ids.New(ids.Mailbox),
		OwnerID:   ownerID,
		CreatedAt: b.clock.Now(),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("marshal mailbox: %w", err)
	}
	if _, err := b.mailboxes.Create(ctx, rec.ID, data); err != nil {
		return "", fmt.Errorf("create mailbox: %w", err)
	}
	return rec.ID, nil
}

func (b *Bus) mailboxExists(ctx context.Context, mailboxID string) bool {
	_, err := b.mailboxes.Get(ctx, mailboxID)
	return err == nil
}

// messageKey namespaces a message under its mailbox so List can filter
// by prefix without a secondary index; NATS KV has no query language
// beyond key lookup/enumeration (storage/entity.go's Store.ListProposals
// shows the same enumerate-then-filter idiom).
func messageKey(mailboxID, messageID string) string {
	return fmt.Sprintf("%s.%s", mailboxID, messageID)
}

// Send enqueues a message into mailboxID's queue as StatusPending.
// Fails with ErrMailboxNotFound if the mailbox was never created.
func (b *Bus) Send(ctx context.Context, mailboxID string, msg *Message) (*Message, error) {
	if !b.mailboxExists(ctx, mailboxID) {
		return nil, ErrMailboxNotFound
	}
	msg.ID = ids.New(ids.Message)
	msg.MailboxID = mailboxID
	msg.Status = StatusPending
	msg.SentAt = b.clock.Now()

	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal message: %w", err)
	}
	if _, err := b.messages.Create(ctx, messageKey(mailboxID, msg.ID), data); err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}
	return msg, nil
}

// List returns every message in mailboxID, in key order.
func (b *Bus) List(ctx context.Context, mailboxID string) ([]*Message, error) {
	keys, err := b.messages.Keys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("list message keys: %w", err)
	}

	prefix := mailboxID + "."
	var messages []*Message
	for _, key := range keys {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		entry, err := b.messages.Get(ctx, key)
		if err != nil {
			continue
		}
		var msg Message
		if err := json.Unmarshal(entry.Value(), &msg); err != nil {
			continue
		}
		messages = append(messages, &msg)
	}
	return messages, nil
}

// Read marks a message read, transitioning pending -> read.
func (b *Bus) Read(ctx context.Context, mailboxID, messageID string) (*Message, error) {
	return b.transition(ctx, mailboxID, messageID, func(msg *Message) {
		if msg.Status == StatusPending {
			msg.Status = StatusRead
			now := b.clock.Now()
			msg.ReadAt = &now
		}
	})
}

// Ack marks a message acked, permanently; an acked message is never
// redelivered.
func (b *Bus) Ack(ctx context.Context, mailboxID, messageID string) (*Message, error) {
	return b.transition(ctx, mailboxID, messageID, func(msg *Message) {
		msg.Status = StatusAcked
		now := b.clock.Now()
		msg.AckedAt = &now
	})
}

// Requeue resets a read or acked message back to pending.
func (b *Bus) Requeue(ctx context.Context, mailboxID, messageID string) (*Message, error) {
	return b.transition(ctx, mailboxID, messageID, func(msg *Message) {
		msg.Status = StatusPending
		msg.ReadAt = nil
		msg.AckedAt = nil
	})
}

func (b *Bus) transition(ctx context.Context, mailboxID, messageID string, mutate func(*Message)) (*Message, error) {
	key := messageKey(mailboxID, messageID)
	entry, err := b.messages.Get(ctx, key)
	if err != nil {
		return nil, ErrMessageNotFound
	}
	var msg Message
	if err := json.Unmarshal(entry.Value(), &msg); err != nil {
		return nil, fmt.Errorf("unmarshal message: %w", err)
	}
	mutate(&msg)

	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal message: %w", err)
	}
	if _, err := b.messages.Put(ctx, key, data); err != nil {
		return nil, fmt.Errorf("update message: %w", err)
	}
	return &msg, nil
}
