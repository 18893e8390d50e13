package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/booking-voucher/internal/application/dispatcher"
	"github.com/garyjia/booking-voucher/internal/domain/apperror"
	"github.com/garyjia/booking-voucher/internal/domain/entity"
	"github.com/garyjia/booking-voucher/internal/domain/event"
)

type stubReportWriter struct {
	entries int
	err     error
}

func (w *stubReportWriter) WriteUsage(ctx context.Context, v *entity.Voucher, entries []*entity.UsageLogEntry) ([]byte, error) {
	if w.err != nil {
		return nil, w.err
	}
	w.entries = len(entries)
	return []byte("xlsx"), nil
}

func TestUsageLogger_AppendsEntry(t *testing.T) {
	repo := &memUsageRepo{}
	metrics := &recordingMetrics{}
	logger := NewUsageLogger(repo, metrics, NopLogger{})

	v := activeVoucher("v-1", "VCH-20250110-0001")
	evt := event.ForVoucher(event.TypeVoucherScanned, v, partnerAActor, testNow).WithPayload("success", true)

	require.NoError(t, logger.Handle(context.Background(), evt))
	require.Len(t, repo.entries, 1)

	entry := repo.entries[0]
	assert.Equal(t, evt.ID, entry.ID)
	assert.Equal(t, v.ID, entry.VoucherID)
	assert.Equal(t, entity.UsageActionScanned, entry.Action)
	assert.Equal(t, entity.ActorTypePartner, entry.ActorType)
	assert.Equal(t, partnerAActor.ID(), entry.ActorID)
	assert.Equal(t, "10.0.0.1", entry.IPAddress)
	assert.Equal(t, true, entry.Metadata["success"])
	assert.True(t, entry.CreatedAt.Equal(testNow))
}

func TestUsageLogger_SkipsNonUsageEvents(t *testing.T) {
	repo := &memUsageRepo{}
	logger := NewUsageLogger(repo, &recordingMetrics{}, NopLogger{})

	evt := event.NewEvent(event.TypeVoucherExpired, "v-1", "VCH-20250110-0001", nil)
	require.NoError(t, logger.Handle(context.Background(), evt))
	assert.Empty(t, repo.entries)
}

func TestUsageLogger_SwallowsWriteFailures(t *testing.T) {
	repo := &memUsageRepo{appendErr: errors.New("database is locked")}
	metrics := &recordingMetrics{}
	logger := NewUsageLogger(repo, metrics, NopLogger{})

	evt := event.ForVoucher(event.TypeVoucherUsed, activeVoucher("v-1", "VCH-20250110-0001"), employeeActor, testNow)
	assert.NoError(t, logger.Handle(context.Background(), evt))
	assert.Equal(t, 1, metrics.usageFailures)
}

func TestUsageLogging_EndToEndThroughDispatcher(t *testing.T) {
	v := activeVoucher("v-1", "VCH-20250110-0001")
	f := newFixture(t, v)
	usage := &memUsageRepo{}

	d := dispatcher.NewDispatcher()
	RegisterSubscribers(d, NewUsageLogger(usage, f.metrics, NopLogger{}), nil)

	lookup := NewLookupService(f.vouchers, f.partners, f.engine, f.signer, d, f.clock, f.metrics, NopLogger{})
	_, err := lookup.GetByNumber(context.Background(), v.VoucherNumber, employeeActor)
	require.NoError(t, err)
	_, err = lookup.GetByNumber(context.Background(), "VCH-20250110-0404", employeeActor)
	require.Error(t, err)

	require.Len(t, usage.entries, 2)
	assert.Equal(t, entity.UsageActionLookedUp, usage.entries[0].Action)
	assert.Equal(t, v.ID, usage.entries[0].VoucherID)
	assert.Equal(t, "VCH-20250110-0404", usage.entries[1].VoucherNumber)
	assert.Equal(t, false, usage.entries[1].Metadata["success"])
}

func TestUsageService_ListAndExport(t *testing.T) {
	v := activeVoucher("v-1", "VCH-20250110-0001")
	vouchers := newMemVoucherRepo(v)
	usage := &memUsageRepo{}
	logger := NewUsageLogger(usage, &recordingMetrics{}, NopLogger{})
	for _, typ := range []event.Type{event.TypeVoucherGenerated, event.TypeVoucherScanned, event.TypeVoucherUsed} {
		require.NoError(t, logger.Handle(context.Background(), event.ForVoucher(typ, v, employeeActor, testNow)))
	}

	writer := &stubReportWriter{}
	storage := newMemStorage()
	svc := NewUsageService(vouchers, usage, writer, storage, &fakeClock{now: testNow}, NopLogger{})

	entries, err := svc.ListUsage(context.Background(), v.ID, partnerAActor)
	require.NoError(t, err)
	assert.Len(t, entries, 3)

	doc, err := svc.ExportUsage(context.Background(), v.ID, masterActor)
	require.NoError(t, err)
	assert.Equal(t, "VCH-20250110-0001-usage-20250110T120000.xlsx", doc.Filename)
	assert.Equal(t, 3, writer.entries)
	assert.True(t, storage.Exists(context.Background(), "exports/"+doc.Filename))
}

func TestUsageService_Access(t *testing.T) {
	v := activeVoucher("v-1", "VCH-20250110-0001")
	svc := NewUsageService(newMemVoucherRepo(v), &memUsageRepo{}, &stubReportWriter{}, nil, &fakeClock{now: testNow}, NopLogger{})
	ctx := context.Background()

	_, err := svc.ListUsage(ctx, v.ID, partnerBActor)
	assert.True(t, apperror.IsForbidden(err))

	_, err = svc.ListUsage(ctx, v.ID, customerActor)
	assert.True(t, apperror.IsForbidden(err))

	_, err = svc.ListUsage(ctx, v.ID, anonymousActor)
	assert.True(t, apperror.IsForbidden(err))

	_, err = svc.ListUsage(ctx, "missing", employeeActor)
	assert.True(t, apperror.IsNotFound(err))
}

func TestUsageService_ExportFailure(t *testing.T) {
	v := activeVoucher("v-1", "VCH-20250110-0001")
	svc := NewUsageService(newMemVoucherRepo(v), &memUsageRepo{}, &stubReportWriter{err: errors.New("boom")}, nil, &fakeClock{now: testNow}, NopLogger{})

	_, err := svc.ExportUsage(context.Background(), v.ID, employeeActor)
	assert.Equal(t, apperror.KindInternal, apperror.KindOf(err))
}
