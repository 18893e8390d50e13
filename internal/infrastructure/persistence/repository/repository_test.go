package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/booking-voucher/internal/application/port"
	"github.com/garyjia/booking-voucher/internal/domain/apperror"
	"github.com/garyjia/booking-voucher/internal/domain/entity"
	"github.com/garyjia/booking-voucher/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/booking-voucher/pkg/database"
)

var baseTime = time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.New(database.Config{Path: filepath.Join(t.TempDir(), "vouchers.db")}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.NewMigrator(db, zap.NewNop()).RunEmbedded())
	return db.DB
}

func newTestVoucher(id, number, bookingID string) *entity.Voucher {
	return &entity.Voucher{
		ID:               id,
		VoucherNumber:    number,
		BookingID:        bookingID,
		BookingType:      entity.BookingTypeRestaurant,
		Status:           entity.VoucherStatusActive,
		ValidFrom:        baseTime,
		ValidUntil:       baseTime.Add(4 * time.Hour),
		PartnerID:        "partner-a",
		ConfirmationCode: "CONF-" + bookingID,
		Customer:         entity.CustomerInfo{Name: "Jane Doe", Email: "jane@example.com"},
		Asset:            entity.AssetInfo{ID: "asset-1", Name: "Chez Nous"},
		Details:          entity.RestaurantDetails{ReservationAt: baseTime, PartySize: 2},
		QRCode:           "payload",
		CreatedAt:        baseTime,
		UpdatedAt:        baseTime,
	}
}

func TestVoucherRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewVoucherRepository(newTestDB(t), zap.NewNop())

	v := newTestVoucher("v-1", "VCH-20250110-0001", "b-1")
	require.NoError(t, repo.Create(ctx, v))

	got, err := repo.GetByID(ctx, "v-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, v.VoucherNumber, got.VoucherNumber)
	assert.Equal(t, entity.VoucherStatusActive, got.Status)
	assert.True(t, got.ValidUntil.Equal(v.ValidUntil))
	assert.Equal(t, "jane@example.com", got.Customer.Email)
	assert.Nil(t, got.UsedAt)

	details, ok := got.Details.(entity.RestaurantDetails)
	require.True(t, ok)
	assert.Equal(t, 2, details.PartySize)

	byNumber, err := repo.GetByNumber(ctx, v.VoucherNumber)
	require.NoError(t, err)
	assert.Equal(t, "v-1", byNumber.ID)

	byCode, err := repo.GetByConfirmationCode(ctx, "CONF-b-1")
	require.NoError(t, err)
	assert.Equal(t, "v-1", byCode.ID)

	missing, err := repo.GetByNumber(ctx, "VCH-20250110-9999")
	assert.NoError(t, err)
	assert.Nil(t, missing)
}

func TestVoucherRepository_CreateDuplicates(t *testing.T) {
	ctx := context.Background()
	repo := NewVoucherRepository(newTestDB(t), zap.NewNop())
	require.NoError(t, repo.Create(ctx, newTestVoucher("v-1", "VCH-20250110-0001", "b-1")))

	err := repo.Create(ctx, newTestVoucher("v-2", "VCH-20250110-0001", "b-2"))
	assert.True(t, errors.Is(err, port.ErrDuplicateVoucherNumber), "got %v", err)

	err = repo.Create(ctx, newTestVoucher("v-3", "VCH-20250110-0003", "b-1"))
	assert.True(t, errors.Is(err, port.ErrDuplicateBooking), "got %v", err)
	assert.True(t, apperror.IsConflict(err))
}

func TestVoucherRepository_CancelledBookingCanBeReissued(t *testing.T) {
	ctx := context.Background()
	repo := NewVoucherRepository(newTestDB(t), zap.NewNop())
	require.NoError(t, repo.Create(ctx, newTestVoucher("v-1", "VCH-20250110-0001", "b-1")))

	ok, err := repo.TransitionStatus(ctx, port.StatusTransition{
		VoucherID: "v-1",
		From:      entity.VoucherStatusActive,
		To:        entity.VoucherStatusCancelled,
		At:        baseTime.Add(time.Minute),
		ActorID:   "staff-1",
		Reason:    "guest request",
	})
	require.NoError(t, err)
	require.True(t, ok)

	open, err := repo.FindOpenByBooking(ctx, "b-1", entity.BookingTypeRestaurant)
	require.NoError(t, err)
	assert.Nil(t, open)

	require.NoError(t, repo.Create(ctx, newTestVoucher("v-2", "VCH-20250110-0002", "b-1")))

	byCode, err := repo.GetByConfirmationCode(ctx, "CONF-b-1")
	require.NoError(t, err)
	assert.Equal(t, "v-2", byCode.ID)

	cancelled, err := repo.GetByID(ctx, "v-1")
	require.NoError(t, err)
	assert.Equal(t, entity.VoucherStatusCancelled, cancelled.Status)
	assert.Equal(t, "staff-1", cancelled.CancelledBy)
	assert.Equal(t, "guest request", cancelled.CancelReason)
	require.NotNil(t, cancelled.CancelledAt)
}

func TestVoucherRepository_TransitionIsCompareAndSet(t *testing.T) {
	ctx := context.Background()
	repo := NewVoucherRepository(newTestDB(t), zap.NewNop())
	require.NoError(t, repo.Create(ctx, newTestVoucher("v-1", "VCH-20250110-0001", "b-1")))

	redeem := port.StatusTransition{
		VoucherID: "v-1",
		From:      entity.VoucherStatusActive,
		To:        entity.VoucherStatusUsed,
		At:        baseTime.Add(time.Hour),
		ActorID:   "partner-user",
	}

	ok, err := repo.TransitionStatus(ctx, redeem)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.TransitionStatus(ctx, redeem)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := repo.GetByID(ctx, "v-1")
	require.NoError(t, err)
	assert.Equal(t, entity.VoucherStatusUsed, got.Status)
	assert.Equal(t, "partner-user", got.UsedBy)
	require.NotNil(t, got.UsedAt)
	assert.True(t, got.UsedAt.Equal(redeem.At))
}

func TestVoucherRepository_ConcurrentRedeemHasOneWinner(t *testing.T) {
	ctx := context.Background()
	repo := NewVoucherRepository(newTestDB(t), zap.NewNop())
	require.NoError(t, repo.Create(ctx, newTestVoucher("v-1", "VCH-20250110-0001", "b-1")))

	const workers = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := repo.TransitionStatus(ctx, port.StatusTransition{
				VoucherID: "v-1",
				From:      entity.VoucherStatusActive,
				To:        entity.VoucherStatusUsed,
				At:        baseTime.Add(time.Hour),
				ActorID:   fmt.Sprintf("scanner-%d", i),
			})
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
}

func TestVoucherRepository_SetDocumentRefOnce(t *testing.T) {
	ctx := context.Background()
	repo := NewVoucherRepository(newTestDB(t), zap.NewNop())
	require.NoError(t, repo.Create(ctx, newTestVoucher("v-1", "VCH-20250110-0001", "b-1")))

	ok, err := repo.SetDocumentRef(ctx, "v-1", "documents/VCH-20250110-0001.pdf", baseTime)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.SetDocumentRef(ctx, "v-1", "documents/other.pdf", baseTime)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := repo.GetByID(ctx, "v-1")
	require.NoError(t, err)
	assert.Equal(t, "documents/VCH-20250110-0001.pdf", got.DocumentRef)
}

func TestVoucherRepository_ListLapsedActiveIDsPages(t *testing.T) {
	ctx := context.Background()
	repo := NewVoucherRepository(newTestDB(t), zap.NewNop())

	for i := 0; i < 5; i++ {
		v := newTestVoucher(fmt.Sprintf("v-%d", i), fmt.Sprintf("VCH-20250110-%04d", i), fmt.Sprintf("b-%d", i))
		require.NoError(t, repo.Create(ctx, v))
	}
	future := newTestVoucher("v-future", "VCH-20250110-0100", "b-future")
	future.ValidUntil = baseTime.Add(72 * time.Hour)
	require.NoError(t, repo.Create(ctx, future))

	now := baseTime.Add(24 * time.Hour)
	first, err := repo.ListLapsedActiveIDs(ctx, now, "", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"v-0", "v-1", "v-2"}, first)

	second, err := repo.ListLapsedActiveIDs(ctx, now, first[len(first)-1], 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"v-3", "v-4"}, second)
}

func TestVoucherRepository_UsesTransactionFromContext(t *testing.T) {
	db := newTestDB(t)
	repo := NewVoucherRepository(db, zap.NewNop())
	txm := sqlite.NewDB(db, zap.NewNop())

	rollback := errors.New("rollback")
	err := txm.WithTransaction(context.Background(), func(ctx context.Context) error {
		if err := repo.Create(ctx, newTestVoucher("v-1", "VCH-20250110-0001", "b-1")); err != nil {
			return err
		}
		return rollback
	})
	require.ErrorIs(t, err, rollback)

	got, err := repo.GetByID(context.Background(), "v-1")
	require.NoError(t, err)
	assert.Nil(t, got, "insert should have been rolled back with the transaction")
}

func TestVoucherRepository_CorruptRowIsAnError(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewVoucherRepository(db, zap.NewNop())
	require.NoError(t, repo.Create(ctx, newTestVoucher("v-1", "VCH-20250110-0001", "b-1")))

	_, err := db.Exec(`UPDATE vouchers SET customer_json = '{broken' WHERE id = 'v-1'`)
	require.NoError(t, err)

	_, err = repo.GetByID(ctx, "v-1")
	assert.Error(t, err)
}

func TestVoucherRepository_TransitionDatabaseError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("UPDATE vouchers SET status").WillReturnError(errors.New("disk I/O error"))

	repo := NewVoucherRepository(db, zap.NewNop())
	ok, err := repo.TransitionStatus(context.Background(), port.StatusTransition{
		VoucherID: "v-1",
		From:      entity.VoucherStatusActive,
		To:        entity.VoucherStatusExpired,
		At:        baseTime,
	})
	assert.Error(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVoucherRepository_TransitionRejectsUnknownTarget(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewVoucherRepository(db, zap.NewNop())
	_, err = repo.TransitionStatus(context.Background(), port.StatusTransition{
		VoucherID: "v-1",
		From:      entity.VoucherStatusActive,
		To:        entity.VoucherStatusActive,
	})
	assert.Error(t, err)
}

func TestUsageLogRepository_AppendAndList(t *testing.T) {
	ctx := context.Background()
	repo := NewUsageLogRepository(newTestDB(t), zap.NewNop())

	for i, action := range []entity.UsageAction{entity.UsageActionGenerated, entity.UsageActionScanned, entity.UsageActionUsed} {
		entry := &entity.UsageLogEntry{
			VoucherID:     "v-1",
			VoucherNumber: "VCH-20250110-0001",
			Action:        action,
			ActorID:       "partner-user",
			ActorType:     entity.ActorTypePartner,
			IPAddress:     "10.0.0.1",
			Metadata:      map[string]interface{}{"step": float64(i)},
			CreatedAt:     baseTime.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, repo.Append(ctx, entry))
		assert.NotEmpty(t, entry.ID)
	}

	entries, err := repo.ListByVoucher(ctx, "v-1", 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, entity.UsageActionGenerated, entries[0].Action)
	assert.Equal(t, entity.UsageActionUsed, entries[2].Action)
	assert.Equal(t, float64(1), entries[1].Metadata["step"])

	limited, err := repo.ListByVoucher(ctx, "v-1", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestUsageLogRepository_AppendError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO voucher_usage_logs").WillReturnError(errors.New("database is locked"))

	repo := NewUsageLogRepository(db, zap.NewNop())
	err = repo.Append(context.Background(), &entity.UsageLogEntry{
		Action:    entity.UsageActionLookedUp,
		ActorType: entity.ActorTypeAnonymous,
		CreatedAt: baseTime,
	})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPartnerRepository_Upsert(t *testing.T) {
	ctx := context.Background()
	repo := NewPartnerRepository(newTestDB(t), zap.NewNop())

	require.NoError(t, repo.Upsert(ctx, &entity.Partner{ID: "partner-a", Name: "Old Name"}))
	require.NoError(t, repo.Upsert(ctx, &entity.Partner{ID: "partner-a", Name: "Chez Nous", Email: "ops@cheznous.test"}))

	got, err := repo.GetByID(ctx, "partner-a")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Chez Nous", got.Name)
	assert.Equal(t, "ops@cheznous.test", got.Email)

	missing, err := repo.GetByID(ctx, "partner-z")
	assert.NoError(t, err)
	assert.Nil(t, missing)
}
