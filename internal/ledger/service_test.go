package ledger

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vantage-wms/vantage/internal/outbox"
)

type memoryRepo struct {
	slots          map[string]*Slot
	movements      []Movement
	outbox         []outbox.Message
	nextSlotID     int64
	nextMovementID int64
}

type memoryTx struct {
	repo *memoryRepo
}

type memoryOutbox struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{slots: make(map[string]*Slot)}
}

func key(productID, locationID int64) string {
	return fmt.Sprintf("%d:%d", productID, locationID)
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) GetSlot(ctx context.Context, productID, locationID int64) (Slot, error) {
	if slot, ok := r.slots[key(productID, locationID)]; ok && slot.Lifecycle.Active() {
		return *slot, nil
	}
	return Slot{}, ErrSlotNotFound
}

func (r *memoryRepo) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	result := make([]Movement, len(r.movements))
	copy(result, r.movements)
	return result, nil
}

func (tx *memoryTx) GetSlotForUpdate(ctx context.Context, productID, locationID int64) (Slot, error) {
	return tx.repo.GetSlot(ctx, productID, locationID)
}

func (tx *memoryTx) InsertSlot(ctx context.Context, slot Slot) (int64, error) {
	k := key(slot.ProductID, slot.LocationID)
	if existing, ok := tx.repo.slots[k]; ok && existing.Lifecycle.Active() {
		return 0, ErrSlotExists
	}
	tx.repo.nextSlotID++
	slot.ID = tx.repo.nextSlotID
	slot.CreatedAt = time.Now().UTC()
	tx.repo.slots[k] = &slot
	return slot.ID, nil
}

func (tx *memoryTx) UpdateSlotQuantity(ctx context.Context, slotID, quantity int64) error {
	for _, slot := range tx.repo.slots {
		if slot.ID == slotID && slot.Lifecycle.Active() {
			slot.QuantityOnHand = quantity
			return nil
		}
	}
	return ErrSlotNotFound
}

func (tx *memoryTx) SoftDeleteSlot(ctx context.Context, slotID, actorID int64, at time.Time) error {
	for _, slot := range tx.repo.slots {
		if slot.ID == slotID && slot.Lifecycle.Active() {
			slot.Lifecycle = Lifecycle{DeletedAt: &at, DeletedBy: actorID}
			return nil
		}
	}
	return ErrSlotNotFound
}

func (tx *memoryTx) InsertMovement(ctx context.Context, m Movement) (int64, error) {
	tx.repo.nextMovementID++
	m.ID = tx.repo.nextMovementID
	tx.repo.movements = append(tx.repo.movements, m)
	return m.ID, nil
}

func (tx *memoryTx) Outbox() outbox.TxWriter {
	return &memoryOutbox{repo: tx.repo}
}

func (o *memoryOutbox) Enqueue(ctx context.Context, msg outbox.Message) error {
	o.repo.outbox = append(o.repo.outbox, msg)
	return nil
}

func seedSlot(t *testing.T, svc *Service, productID, locationID, qty, reorder, max int64) {
	t.Helper()
	ctx := context.Background()
	_, err := svc.CreateSlot(ctx, CreateSlotInput{ProductID: productID, LocationID: locationID, ReorderLevel: reorder, MaxLevel: max, ActorID: 1})
	require.NoError(t, err)
	if qty > 0 {
		_, err = svc.Credit(ctx, CreditInput{ProductID: productID, LocationID: locationID, Qty: qty, Note: "seed", ActorID: 1})
		require.NoError(t, err)
	}
}

func TestDebitHappyPath(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	seedSlot(t, svc, 1, 1, 100, 10, 0)

	level, err := svc.Debit(ctx, DebitInput{ProductID: 1, LocationID: 1, Qty: 30, Note: "pick", ActorID: 2})
	require.NoError(t, err)
	require.Equal(t, int64(70), level.QuantityOnHand)
	require.False(t, level.LowStock)

	var outs []Movement
	for _, m := range repo.movements {
		if m.Type == MovementOut {
			outs = append(outs, m)
		}
	}
	require.Len(t, outs, 1)
	require.Equal(t, int64(30), outs[0].Quantity)
	require.Equal(t, MovementPosted, outs[0].Status)
}

func TestDebitInsufficientStock(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	seedSlot(t, svc, 1, 1, 20, 5, 0)
	movementsBefore := len(repo.movements)
	eventsBefore := len(repo.outbox)

	_, err := svc.Debit(ctx, DebitInput{ProductID: 1, LocationID: 1, Qty: 21, ActorID: 2})
	require.ErrorIs(t, err, ErrInsufficientStock)
	require.Len(t, repo.movements, movementsBefore)
	require.Len(t, repo.outbox, eventsBefore)

	level, err := svc.GetLevel(ctx, 1, 1)
	require.NoError(t, err)
	require.Equal(t, int64(20), level.QuantityOnHand)
}

func TestDebitExactBalance(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	seedSlot(t, svc, 1, 1, 20, 5, 0)

	level, err := svc.Debit(ctx, DebitInput{ProductID: 1, LocationID: 1, Qty: 20, ActorID: 2})
	require.NoError(t, err)
	require.Equal(t, int64(0), level.QuantityOnHand)
	require.True(t, level.LowStock)
}

func TestCreditBeyondMaxLevelIsAdvisory(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	seedSlot(t, svc, 1, 1, 0, 5, 50)

	level, err := svc.Credit(ctx, CreditInput{ProductID: 1, LocationID: 1, Qty: 80, ActorID: 2})
	require.NoError(t, err)
	require.Equal(t, int64(80), level.QuantityOnHand)
}

func TestAdjustNegativeGuard(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	seedSlot(t, svc, 1, 1, 0, 0, 0)

	_, err := svc.Adjust(ctx, AdjustInput{ProductID: 1, LocationID: 1, Qty: -1, ActorID: 2})
	require.ErrorIs(t, err, ErrInsufficientStock)

	_, err = svc.Adjust(ctx, AdjustInput{ProductID: 1, LocationID: 1, Qty: 0, ActorID: 2})
	require.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestAdjustSignedCorrection(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	seedSlot(t, svc, 1, 1, 10, 0, 0)

	level, err := svc.Adjust(ctx, AdjustInput{ProductID: 1, LocationID: 1, Qty: -4, Note: "cycle count", ActorID: 2})
	require.NoError(t, err)
	require.Equal(t, int64(6), level.QuantityOnHand)

	last := repo.movements[len(repo.movements)-1]
	require.Equal(t, MovementAdjust, last.Type)
	require.Equal(t, int64(4), last.Quantity)
}

func TestEveryMutationEmitsOneEvent(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.CreateSlot(ctx, CreateSlotInput{ProductID: 1, LocationID: 1, ActorID: 1})
	require.NoError(t, err)
	_, err = svc.Credit(ctx, CreditInput{ProductID: 1, LocationID: 1, Qty: 10, ActorID: 1})
	require.NoError(t, err)
	_, err = svc.Debit(ctx, DebitInput{ProductID: 1, LocationID: 1, Qty: 3, ActorID: 1})
	require.NoError(t, err)

	require.Len(t, repo.outbox, 3)
	require.Equal(t, EventSlotCreated, repo.outbox[0].Name)
	require.Equal(t, EventCredited, repo.outbox[1].Name)
	require.Equal(t, EventDebited, repo.outbox[2].Name)
	for _, msg := range repo.outbox {
		require.False(t, msg.Processed())
		require.NotEmpty(t, msg.Content)
	}
}

func TestCreateSlotDuplicate(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.CreateSlot(ctx, CreateSlotInput{ProductID: 1, LocationID: 1, ActorID: 1})
	require.NoError(t, err)
	_, err = svc.CreateSlot(ctx, CreateSlotInput{ProductID: 1, LocationID: 1, ActorID: 1})
	require.ErrorIs(t, err, ErrSlotExists)
}

func TestDeactivateFreesSlotPair(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.CreateSlot(ctx, CreateSlotInput{ProductID: 1, LocationID: 1, ActorID: 1})
	require.NoError(t, err)
	require.NoError(t, svc.Deactivate(ctx, 1, 1, 1))

	_, err = svc.GetLevel(ctx, 1, 1)
	require.ErrorIs(t, err, ErrSlotNotFound)

	_, err = svc.CreateSlot(ctx, CreateSlotInput{ProductID: 1, LocationID: 1, ActorID: 1})
	require.NoError(t, err)
}
