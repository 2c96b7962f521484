package payroll

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bursar-dev/bursar/internal/statutory"
)

func TestFinalize(t *testing.T) {
	store := newMemoryStore()
	ws := newTestWorksheet(t)
	require.NoError(t, ws.SetDeduction("T002", statutory.LinePension, dec("0")))

	batch, err := NewFinalizer(store, nil).Finalize(context.Background(), ws)
	require.NoError(t, err)
	assert.Equal(t, StateFinalized, ws.State())
	assert.NotEmpty(t, batch.ID)
	require.Len(t, batch.Entries, 2)
	assert.Equal(t, 1, store.appends)

	stored, err := store.Batch(context.Background(), "2025-01")
	require.NoError(t, err)
	assert.Equal(t, batch.ID, stored.ID)
	assert.True(t, stored.Entries[1].Deductions[1].Amount.IsZero())

	err = ws.SetDeduction("T001", statutory.LinePAYE, dec("1"))
	require.ErrorIs(t, err, ErrFinalized)

	_, err = NewFinalizer(store, nil).Finalize(context.Background(), ws)
	require.ErrorIs(t, err, ErrFinalized)
}

func TestFinalize_AlreadyInHistory(t *testing.T) {
	store := newMemoryStore()
	_, err := NewFinalizer(store, nil).Finalize(context.Background(), newTestWorksheet(t))
	require.NoError(t, err)

	second := newTestWorksheet(t)
	_, err = NewFinalizer(store, nil).Finalize(context.Background(), second)
	require.ErrorIs(t, err, ErrAlreadyFinalized)
	assert.Equal(t, StateGenerated, second.State())
	assert.Equal(t, 1, store.appends, "append must not be attempted")
}

func TestFinalize_PersistenceFailureKeepsDraft(t *testing.T) {
	store := newMemoryStore()
	store.appendErr = errDiskFull

	ws := newTestWorksheet(t)
	require.NoError(t, ws.SetDeduction("T001", statutory.LinePAYE, dec("8000")))
	before := ws.Entries()

	_, err := NewFinalizer(store, nil).Finalize(context.Background(), ws)
	require.ErrorIs(t, err, errDiskFull)
	assert.Equal(t, StateEdited, ws.State())
	assert.Equal(t, before, ws.Entries(), "draft must be unchanged")

	// Still editable, and a retry succeeds once the store recovers.
	require.NoError(t, ws.SetDeduction("T001", statutory.LinePAYE, dec("8100")))
	store.appendErr = nil
	batch, err := NewFinalizer(store, nil).Finalize(context.Background(), ws)
	require.NoError(t, err)
	assert.True(t, batch.Entries[0].Deductions[0].Amount.Equal(dec("8100")))
}

func TestFinalize_StoreCheckFailure(t *testing.T) {
	store := newMemoryStore()
	store.checkErr = errDiskFull

	ws := newTestWorksheet(t)
	_, err := NewFinalizer(store, nil).Finalize(context.Background(), ws)
	require.ErrorIs(t, err, errDiskFull)
	assert.Equal(t, 0, store.appends)
	assert.NotEqual(t, StateFinalized, ws.State())
}

func TestFinalize_TimeoutIsNotFinalized(t *testing.T) {
	store := newMemoryStore()
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	ws := newTestWorksheet(t)
	_, err := NewFinalizer(store, nil).Finalize(ctx, ws)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, StateGenerated, ws.State())

	done, err := store.IsFinalized(context.Background(), "2025-01")
	require.NoError(t, err)
	assert.False(t, done)
}

func TestFinalize_EmptyWorksheet(t *testing.T) {
	_, err := NewFinalizer(newMemoryStore(), nil).Finalize(context.Background(), NewWorksheet("2025-01", payDate, nil))
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestFinalize_BatchIsIsolatedFromWorksheet(t *testing.T) {
	store := newMemoryStore()
	ws := newTestWorksheet(t)
	batch, err := NewFinalizer(store, nil).Finalize(context.Background(), ws)
	require.NoError(t, err)

	batch.Entries[0].Deductions[0].Amount = dec("1")
	e, _ := ws.Entry("T001")
	assert.False(t, e.Deductions[0].Amount.Equal(dec("1")))
}
