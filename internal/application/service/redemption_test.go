package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/booking-voucher/internal/domain/apperror"
	"github.com/garyjia/booking-voucher/internal/domain/entity"
	"github.com/garyjia/booking-voucher/internal/domain/event"
)

func TestIssueToken_RoundTripsThroughVerify(t *testing.T) {
	v := activeVoucher("v-1", "VCH-20250110-0001")
	f := newFixture(t, v)

	issued, err := f.redemption.IssueToken(context.Background(), v.ID, customerActor)
	require.NoError(t, err)
	assert.Equal(t, v.VoucherNumber, issued.VoucherNumber)
	assert.True(t, issued.ExpiresAt.Equal(testNow.Add(time.Hour)))

	result, err := f.lookup.Verify(context.Background(), issued.Token, partnerAActor)
	require.NoError(t, err)
	assert.Equal(t, v.ID, result.Claims.SystemID)
	assert.Equal(t, "partner-a", result.Claims.PartnerID)
}

func TestIssueToken_RequiresVisibilityAndActiveVoucher(t *testing.T) {
	v := activeVoucher("v-1", "VCH-20250110-0001")
	used := activeVoucher("v-2", "VCH-20250110-0002")
	used.Status = entity.VoucherStatusUsed
	f := newFixture(t, v, used)

	_, err := f.redemption.IssueToken(context.Background(), v.ID, strangerActor)
	assert.True(t, apperror.IsForbidden(err))

	_, err = f.redemption.IssueToken(context.Background(), used.ID, employeeActor)
	assert.True(t, apperror.IsConflict(err))

	f.clock.Set(v.ValidUntil.Add(time.Second))
	_, err = f.redemption.IssueToken(context.Background(), v.ID, employeeActor)
	assert.True(t, apperror.IsExpired(err))
}

func TestRedeemByToken(t *testing.T) {
	v := activeVoucher("v-1", "VCH-20250110-0001")
	f := newFixture(t, v)
	ctx := context.Background()

	issued, err := f.redemption.IssueToken(ctx, v.ID, employeeActor)
	require.NoError(t, err)

	redeemed, err := f.redemption.RedeemByToken(ctx, issued.Token, partnerAActor)
	require.NoError(t, err)
	assert.Equal(t, entity.VoucherStatusUsed, redeemed.Status)
	assert.Equal(t, partnerAActor.ID(), redeemed.UsedBy)
	require.NotNil(t, redeemed.UsedAt)
	assert.True(t, redeemed.UsedAt.Equal(testNow))

	_, err = f.redemption.RedeemByToken(ctx, issued.Token, partnerAActor)
	assert.True(t, apperror.IsConflict(err))

	assert.Len(t, f.publisher.ofType(event.TypeVoucherUsed), 1)
	assert.Len(t, f.publisher.ofType(event.TypeVoucherScanned), 2)
}

func TestRedeemByToken_OtherPartnerCannotRedeem(t *testing.T) {
	v := activeVoucher("v-1", "VCH-20250110-0001")
	f := newFixture(t, v)

	issued, err := f.redemption.IssueToken(context.Background(), v.ID, employeeActor)
	require.NoError(t, err)

	_, err = f.redemption.RedeemByToken(context.Background(), issued.Token, partnerBActor)
	assert.True(t, apperror.IsForbidden(err))
	assert.Equal(t, entity.VoucherStatusActive, f.stored(t, v.ID).Status)
}

func TestRedeemByID_ConcurrentCallsRedeemOnce(t *testing.T) {
	v := activeVoucher("v-1", "VCH-20250110-0001")
	f := newFixture(t, v)

	var (
		wg        sync.WaitGroup
		successes atomic.Int32
		conflicts atomic.Int32
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.redemption.RedeemByID(context.Background(), v.ID, employeeActor)
			switch {
			case err == nil:
				successes.Add(1)
			case apperror.IsConflict(err):
				conflicts.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), successes.Load())
	assert.Equal(t, int32(15), conflicts.Load())
	assert.Len(t, f.publisher.ofType(event.TypeVoucherUsed), 1)
}

func TestCancel_ByOwningCustomer(t *testing.T) {
	v := activeVoucher("v-1", "VCH-20250110-0001")
	f := newFixture(t, v)

	_, err := f.redemption.Cancel(context.Background(), v.ID, strangerActor, "changed plans")
	assert.True(t, apperror.IsForbidden(err))

	cancelled, err := f.redemption.Cancel(context.Background(), v.ID, customerActor, "changed plans")
	require.NoError(t, err)
	assert.Equal(t, entity.VoucherStatusCancelled, cancelled.Status)
	assert.Equal(t, "changed plans", cancelled.CancelReason)

	events := f.publisher.ofType(event.TypeVoucherCancelled)
	require.Len(t, events, 1)
	assert.Equal(t, "changed plans", events[0].GetPayloadString("reason"))
}
