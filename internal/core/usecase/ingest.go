package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/document-intelligence/internal/core/domain"
	"github.com/kirillkom/document-intelligence/internal/core/ports"
)

type IngestDocumentUseCase struct {
	repo    ports.DocumentStore
	storage ports.ObjectStorage
	queue   ports.MessageQueue
	hasher  ports.Hasher
	now     func() time.Time
}

func NewIngestDocumentUseCase(
	repo ports.DocumentStore,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
	hasher ports.Hasher,
) *IngestDocumentUseCase {
	return &IngestDocumentUseCase{
		repo:    repo,
		storage: storage,
		queue:   queue,
		hasher:  hasher,
		now:     time.Now,
	}
}

// Store persists the bytes and record of a new upload and queues its
// re-analysis. Concurrent uploads of the same bytes are both stored.
func (uc *IngestDocumentUseCase) Store(ctx context.Context, req domain.StoreRequest) (*domain.StoredDocument, error) {
	meta := normalizeFileMeta(req.FileBytes, req.FileMeta)
	if err := uc.validate(req, meta); err != nil {
		return nil, err
	}

	fp, err := uc.hasher.Hash(req.FileBytes, meta.MimeType)
	if err != nil {
		return nil, fmt.Errorf("hash document: %w", err)
	}

	id := uuid.NewString()
	storageKey := fmt.Sprintf("%s_%s", id, sanitizeFilename(meta.OriginalName))
	now := uc.now().UTC()

	if err := uc.storage.Save(ctx, storageKey, bytes.NewReader(req.FileBytes)); err != nil {
		return nil, fmt.Errorf("save to object storage: %w", err)
	}

	doc := &domain.StoredDocument{
		ID:              id,
		CompanyID:       req.Identity.CompanyID,
		UploadedBy:      req.Identity.UserID,
		OriginalName:    meta.OriginalName,
		MimeType:        meta.MimeType,
		Size:            int64(len(req.FileBytes)),
		StoragePath:     storageKey,
		DeclaredContext: req.DeclaredContext,
		Checksum:        fp.Checksum,
		PerceptualHash:  fp.PerceptualHash,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := uc.repo.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document metadata: %w", err)
	}

	if err := uc.queue.PublishReanalysisRequested(ctx, doc.ID); err != nil {
		if domain.IsKind(err, domain.ErrReanalysisNotQueued) {
			return nil, fmt.Errorf("publish reanalysis request: %w", err)
		}
		return nil, domain.WrapError(domain.ErrReanalysisNotQueued, "publish reanalysis request", err)
	}

	return doc, nil
}

func (uc *IngestDocumentUseCase) validate(req domain.StoreRequest, meta domain.FileMeta) error {
	const op = "validate store request"
	// A personal upload has no company; the uploader is always known.
	if req.Identity.UserID == "" {
		return domain.WrapError(domain.ErrUnauthorized, op, errors.New("uploading user is required"))
	}
	if err := meta.Validate(len(req.FileBytes)); err != nil {
		return err
	}
	if !req.DeclaredContext.Valid() {
		return domain.WrapError(domain.ErrInvalidInput, op, fmt.Errorf("unknown document context %q", req.DeclaredContext))
	}
	return nil
}
