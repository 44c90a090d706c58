package outbox

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	msgs []*Message
}

func (s *memoryStore) add(t *testing.T, name string) uuid.UUID {
	t.Helper()
	msg, err := NewMessage(name, map[string]any{"name": name})
	require.NoError(t, err)
	msg.CreatedOn = time.Now().UTC().Add(time.Duration(len(s.msgs)) * time.Millisecond)
	s.msgs = append(s.msgs, &msg)
	return msg.ID
}

func (s *memoryStore) ListPending(ctx context.Context, limit int) ([]Message, error) {
	var pending []Message
	for _, m := range s.msgs {
		if m.Processed() {
			continue
		}
		pending = append(pending, *m)
		if len(pending) == limit {
			break
		}
	}
	return pending, nil
}

func (s *memoryStore) MarkProcessed(ctx context.Context, id uuid.UUID, at time.Time) error {
	for _, m := range s.msgs {
		if m.ID == id && !m.Processed() {
			m.ProcessedOn = &at
			return nil
		}
	}
	return ErrMessageNotFound
}

func (s *memoryStore) RecordError(ctx context.Context, id uuid.UUID, attempt string) error {
	for _, m := range s.msgs {
		if m.ID == id {
			if m.Errors == "" {
				m.Errors = attempt
			} else {
				m.Errors += "\n" + attempt
			}
			return nil
		}
	}
	return ErrMessageNotFound
}

func (s *memoryStore) byID(id uuid.UUID) *Message {
	for _, m := range s.msgs {
		if m.ID == id {
			return m
		}
	}
	return nil
}

type fakePublisher struct {
	published []Message
	failNames map[string]error
}

func (p *fakePublisher) Publish(ctx context.Context, msg Message) error {
	if err, ok := p.failNames[msg.Name]; ok {
		return err
	}
	p.published = append(p.published, msg)
	return nil
}

type fakeLease struct {
	held bool
	err  error
}

func (l *fakeLease) Acquire(ctx context.Context) (bool, error) {
	return l.held, l.err
}

func TestDrainOnceDeliversPending(t *testing.T) {
	store := &memoryStore{}
	store.add(t, "ledger.debited")
	store.add(t, "transfer.created")
	store.add(t, "transfer.approved")
	pub := &fakePublisher{}
	relay := NewRelay(store, pub, nil, nil, nil, RelayConfig{Batch: 10})

	delivered, err := relay.DrainOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, delivered)
	require.Len(t, pub.published, 3)
	for _, m := range store.msgs {
		require.True(t, m.Processed())
	}
}

func TestDrainRecordsErrorAndRetries(t *testing.T) {
	store := &memoryStore{}
	okID := store.add(t, "transfer.created")
	badID := store.add(t, "transfer.approved")
	pub := &fakePublisher{failNames: map[string]error{"transfer.approved": errors.New("broker unavailable")}}
	relay := NewRelay(store, pub, nil, nil, nil, RelayConfig{Batch: 10})
	ctx := context.Background()

	delivered, err := relay.DrainOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, delivered)
	require.True(t, store.byID(okID).Processed())

	bad := store.byID(badID)
	require.False(t, bad.Processed())
	require.Contains(t, bad.Errors, "broker unavailable")

	// Broker comes back; the failed row is picked up again.
	pub.failNames = nil
	delivered, err = relay.DrainOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, delivered)
	require.True(t, store.byID(badID).Processed())
}

func TestDrainAppendsErrorPerAttempt(t *testing.T) {
	store := &memoryStore{}
	id := store.add(t, "transfer.failed")
	pub := &fakePublisher{failNames: map[string]error{"transfer.failed": errors.New("timeout")}}
	relay := NewRelay(store, pub, nil, nil, nil, RelayConfig{Batch: 10})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := relay.DrainOnce(ctx)
		require.NoError(t, err)
	}
	require.Len(t, strings.Split(store.byID(id).Errors, "\n"), 3)
}

func TestProcessedNeverRedelivered(t *testing.T) {
	store := &memoryStore{}
	store.add(t, "ledger.credited")
	pub := &fakePublisher{}
	relay := NewRelay(store, pub, nil, nil, nil, RelayConfig{Batch: 10})
	ctx := context.Background()

	_, err := relay.DrainOnce(ctx)
	require.NoError(t, err)
	delivered, err := relay.DrainOnce(ctx)
	require.NoError(t, err)
	require.Zero(t, delivered)
	require.Len(t, pub.published, 1)
}

func TestDrainSkipsWithoutLease(t *testing.T) {
	store := &memoryStore{}
	store.add(t, "ledger.debited")
	pub := &fakePublisher{}
	relay := NewRelay(store, pub, &fakeLease{held: false}, nil, nil, RelayConfig{Batch: 10})

	delivered, err := relay.DrainOnce(context.Background())
	require.NoError(t, err)
	require.Zero(t, delivered)
	require.Empty(t, pub.published)
	require.False(t, store.msgs[0].Processed())
}

func TestDrainRespectsBatchLimit(t *testing.T) {
	store := &memoryStore{}
	for i := 0; i < 5; i++ {
		store.add(t, "ledger.adjusted")
	}
	pub := &fakePublisher{}
	relay := NewRelay(store, pub, nil, nil, nil, RelayConfig{Batch: 2})
	ctx := context.Background()

	delivered, err := relay.DrainOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, delivered)

	delivered, err = relay.DrainOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, delivered)

	delivered, err = relay.DrainOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, delivered)
}

func TestNewMessageRequiresName(t *testing.T) {
	_, err := NewMessage("", nil)
	require.Error(t, err)

	msg, err := NewMessage("transfer.created", map[string]int{"quantity": 30})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, msg.ID)
	require.False(t, msg.Processed())
	require.JSONEq(t, `{"quantity":30}`, string(msg.Content))
}
