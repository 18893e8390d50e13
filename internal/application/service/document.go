package service

import (
	"context"
	"fmt"

	"github.com/garyjia/booking-voucher/internal/application/port"
	"github.com/garyjia/booking-voucher/internal/domain/apperror"
	"github.com/garyjia/booking-voucher/internal/domain/entity"
	"github.com/garyjia/booking-voucher/internal/domain/event"
)

// Document is a downloadable artifact
type Document struct {
	Filename    string
	ContentType string
	Content     []byte
}

// DocumentService serves the rendered voucher document and the email action
type DocumentService interface {
	GetDocument(ctx context.Context, voucherID string, actor entity.Actor) (*Document, error)
	SendEmail(ctx context.Context, voucherID string, actor entity.Actor) error
}

type documentServiceImpl struct {
	lookup    LookupService
	repo      port.VoucherRepository
	renderer  port.DocumentRenderer
	storage   port.FileStorage
	publisher port.EventPublisher
	clock     port.Clock
	logger    Logger
}

// NewDocumentService creates a new DocumentService
func NewDocumentService(
	lookup LookupService,
	repo port.VoucherRepository,
	renderer port.DocumentRenderer,
	storage port.FileStorage,
	publisher port.EventPublisher,
	clock port.Clock,
	logger Logger,
) DocumentService {
	return &documentServiceImpl{
		lookup:    lookup,
		repo:      repo,
		renderer:  renderer,
		storage:   storage,
		publisher: publisher,
		clock:     clock,
		logger:    logger,
	}
}

// GetDocument returns the stored document, rendering and storing it the first time
func (s *documentServiceImpl) GetDocument(ctx context.Context, voucherID string, actor entity.Actor) (*Document, error) {
	view, err := s.lookup.GetByID(ctx, voucherID, actor)
	if err != nil {
		return nil, err
	}
	v := view.Voucher

	content, err := s.load(ctx, view)
	if err != nil {
		return nil, err
	}

	if s.publisher != nil {
		s.publisher.Publish(ctx, event.ForVoucher(event.TypeVoucherDownloaded, v, actor, s.clock.Now()))
	}

	return &Document{
		Filename:    v.VoucherNumber + s.renderer.Extension(),
		ContentType: s.renderer.ContentType(),
		Content:     content,
	}, nil
}

func (s *documentServiceImpl) load(ctx context.Context, view *VoucherView) ([]byte, error) {
	v := view.Voucher

	if v.DocumentRef != "" && s.storage.Exists(ctx, v.DocumentRef) {
		content, err := s.storage.Read(ctx, v.DocumentRef)
		if err == nil {
			return content, nil
		}
		s.logger.Error("Failed to read stored document, re-rendering",
			"voucher_id", v.ID,
			"document_ref", v.DocumentRef,
			"error", err,
		)
	}

	content, err := s.renderer.Render(ctx, &port.VoucherDocument{Voucher: v, Partner: view.Partner})
	if err != nil {
		return nil, apperror.Internal(err, "failed to render voucher document")
	}

	ref := v.DocumentRef
	if ref == "" {
		ref = fmt.Sprintf("documents/%s%s", v.VoucherNumber, s.renderer.Extension())
	}
	if err := s.storage.Save(ctx, ref, content); err != nil {
		// still serve the freshly rendered bytes
		s.logger.Error("Failed to store voucher document", "voucher_id", v.ID, "error", err)
		return content, nil
	}

	if v.DocumentRef == "" {
		stored, err := s.repo.SetDocumentRef(ctx, v.ID, ref, s.clock.Now())
		if err != nil {
			s.logger.Error("Failed to record document ref", "voucher_id", v.ID, "error", err)
		} else if stored {
			s.logger.Info("Voucher document stored", "voucher_id", v.ID, "document_ref", ref)
		}
	}

	return content, nil
}

// SendEmail records the email action; delivery belongs to the notification subscriber
func (s *documentServiceImpl) SendEmail(ctx context.Context, voucherID string, actor entity.Actor) error {
	view, err := s.lookup.GetByID(ctx, voucherID, actor)
	if err != nil {
		return err
	}
	v := view.Voucher
	if v.Customer.Email == "" {
		return apperror.Validation("voucher %s has no customer email", v.VoucherNumber)
	}

	s.logger.Info("Voucher email requested",
		"voucher_id", v.ID,
		"voucher_number", v.VoucherNumber,
		"actor_id", actor.ID(),
	)
	if s.publisher != nil {
		evt := event.ForVoucher(event.TypeVoucherEmailed, v, actor, s.clock.Now()).
			WithPayload("recipient", v.Customer.Email)
		s.publisher.Publish(ctx, evt)
	}
	return nil
}
