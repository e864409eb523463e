package store

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/farellandr/duesledger/internal/errs"
	"github.com/farellandr/duesledger/internal/models"
	"github.com/farellandr/duesledger/internal/store/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireLockIsExclusive(t *testing.T) {
	db := storetest.NewDB(t)
	f := storetest.Seed(t, db)
	s := New(db)
	now := time.Now()

	first, err := s.AcquireLock(f.Payment.ID, time.Minute, now)
	require.NoError(t, err)
	assert.Equal(t, LockAcquired, first.State)
	assert.Equal(t, 1, first.Attempt)

	second, err := s.AcquireLock(f.Payment.ID, time.Minute, now.Add(10*time.Second))
	require.NoError(t, err)
	assert.Equal(t, LockHeld, second.State)
	assert.Equal(t, models.GenerationStatusProcessing, second.PreviousStatus)
}

func TestAcquireLockConcurrent(t *testing.T) {
	db := storetest.NewDB(t)
	f := storetest.Seed(t, db)
	s := New(db)
	now := time.Now()

	const callers = 6
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		acquired int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lock, err := s.AcquireLock(f.Payment.ID, time.Minute, now)
			assert.NoError(t, err)
			if err == nil && lock.State == LockAcquired {
				mu.Lock()
				acquired++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, acquired)
}

func TestAcquireLockReclaimsStaleLockWithNewEpoch(t *testing.T) {
	db := storetest.NewDB(t)
	f := storetest.Seed(t, db)
	s := New(db)
	start := time.Now().Add(-5 * time.Minute)

	original, err := s.AcquireLock(f.Payment.ID, time.Minute, start)
	require.NoError(t, err)

	reclaimed, err := s.AcquireLock(f.Payment.ID, time.Minute, time.Now())
	require.NoError(t, err)
	assert.Equal(t, LockAcquired, reclaimed.State)
	assert.True(t, reclaimed.Reclaimed)
	assert.Equal(t, 2, reclaimed.Attempt)

	// The original holder can no longer complete the lock.
	err = s.CompleteLock(original, time.Now())
	assert.True(t, errors.Is(err, errs.ErrInvalidState))

	require.NoError(t, s.CompleteLock(reclaimed, time.Now()))
	lock, err := s.GetLock(f.Payment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.GenerationStatusCompleted, lock.Status)
	assert.Equal(t, 2, lock.Attempt)
}

func TestAcquireLockRetriesFailedLock(t *testing.T) {
	db := storetest.NewDB(t)
	f := storetest.Seed(t, db)
	s := New(db)
	now := time.Now()

	lock, err := s.AcquireLock(f.Payment.ID, time.Minute, now)
	require.NoError(t, err)
	require.NoError(t, s.FailLock(lock, "upload failed", now))

	stored, err := s.GetLock(f.Payment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.GenerationStatusFailed, stored.Status)
	assert.Equal(t, "upload failed", stored.ErrorMessage)

	retry, err := s.AcquireLock(f.Payment.ID, time.Minute, now.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, LockAcquired, retry.State)
	assert.Equal(t, models.GenerationStatusFailed, retry.PreviousStatus)

	stored, err = s.GetLock(f.Payment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.GenerationStatusProcessing, stored.Status)
	assert.Empty(t, stored.ErrorMessage)
}

func TestReceiptsAreUniquePerPayment(t *testing.T) {
	db := storetest.NewDB(t)
	f := storetest.Seed(t, db)
	s := New(db)

	none, err := s.FindReceipt(f.Payment.ID)
	require.NoError(t, err)
	assert.Nil(t, none)

	first := &models.Receipt{PaymentID: f.Payment.ID, OrganizationID: f.Organization.ID, MemberID: f.Member.ID, ReceiptNumber: "RCP-FREE-20240101-000001", PDFPath: "a.pdf"}
	require.NoError(t, s.CreateReceipt(first))

	dup := &models.Receipt{PaymentID: f.Payment.ID, OrganizationID: f.Organization.ID, MemberID: f.Member.ID, ReceiptNumber: "RCP-FREE-20240101-000002", PDFPath: "b.pdf"}
	err = s.CreateReceipt(dup)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrInvalidState))

	found, err := s.FindReceipt(f.Payment.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ReceiptNumber, found.ReceiptNumber)
}

func TestIsUniqueViolation(t *testing.T) {
	assert.False(t, IsUniqueViolation(nil))
	assert.False(t, IsUniqueViolation(errors.New("connection reset")))
	assert.True(t, IsUniqueViolation(errors.New("UNIQUE constraint failed: receipts.payment_id")))
	assert.True(t, IsUniqueViolation(errors.New(`ERROR: duplicate key value violates unique constraint "idx_receipts_payment_id"`)))
}
