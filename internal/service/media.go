// This file implements tool card image uploads and exported material storage.
package service

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/teachai/server/internal/domain"
	"github.com/teachai/server/internal/storage"
)

// MaxImageUploadSize caps tool card image uploads at 10 MB.
const MaxImageUploadSize = 10 << 20

// MediaService handles tool card images and exported generated materials.
type MediaService interface {
	// UploadToolImage stores a catalog card image and its thumbnail, then
	// records the thumbnail key on the tool. Returns the thumbnail key.
	UploadToolImage(ctx context.Context, toolID uuid.UUID, filename, contentType string, data io.Reader) (string, error)

	// ExportMaterial stores generated content as a markdown export and
	// returns a download URL.
	ExportMaterial(ctx context.Context, userID uuid.UUID, content string) (string, error)

	// ImageURL resolves a stored image key to a serving URL.
	ImageURL(ctx context.Context, key string) (string, error)
}

type mediaService struct {
	store      storage.Storage
	thumbnails ThumbnailProcessor
	tools      ToolService
	logger     *slog.Logger
}

// NewMediaService creates a new MediaService instance.
func NewMediaService(store storage.Storage, thumbnails ThumbnailProcessor, tools ToolService, logger *slog.Logger) MediaService {
	return &mediaService{
		store:      store,
		thumbnails: thumbnails,
		tools:      tools,
		logger:     logger,
	}
}

func (s *mediaService) UploadToolImage(ctx context.Context, toolID uuid.UUID, filename, contentType string, data io.Reader) (string, error) {
	const op = "MediaService.UploadToolImage"

	contentType = storage.DetectContentType(contentType, filename, nil)
	if !storage.IsAllowedImageType(contentType) {
		return "", domain.Invalid(op, "Unsupported image format")
	}

	// Buffer the upload: the original and the thumbnail both need the bytes
	buf, err := io.ReadAll(io.LimitReader(data, MaxImageUploadSize+1))
	if err != nil {
		return "", domain.Internal(err, op, "Failed to read upload")
	}
	if len(buf) > MaxImageUploadSize {
		return "", domain.Invalid(op, "Image exceeds the maximum upload size")
	}

	imageKey := storage.ToolImageKey(toolID, filename)
	err = s.store.Put(ctx, imageKey, bytes.NewReader(buf), storage.PutOptions{
		ContentType: contentType,
		Public:      true,
	})
	if err != nil {
		return "", domain.Internal(err, op, "Failed to store image")
	}

	thumb, width, height, err := s.thumbnails.GenerateThumbnail(bytes.NewReader(buf), ThumbnailMaxWidth, ThumbnailMaxHeight)
	if err != nil {
		return "", domain.Wrap(err, domain.EINVALID, op, "Failed to process image")
	}

	thumbKey := storage.ToolThumbnailKey(toolID, "card.jpg")
	err = s.store.Put(ctx, thumbKey, bytes.NewReader(thumb), storage.PutOptions{
		ContentType: "image/jpeg",
		Public:      true,
	})
	if err != nil {
		return "", domain.Internal(err, op, "Failed to store thumbnail")
	}

	if err := s.tools.SetImage(ctx, toolID, thumbKey); err != nil {
		return "", err
	}

	s.logger.Info("tool image uploaded",
		"tool_id", toolID,
		"image_key", imageKey,
		"thumbnail_key", thumbKey,
		"original_size", len(buf),
		"original_dimensions", slog.GroupValue(slog.Int("width", width), slog.Int("height", height)),
	)

	return thumbKey, nil
}

func (s *mediaService) ExportMaterial(ctx context.Context, userID uuid.UUID, content string) (string, error) {
	const op = "MediaService.ExportMaterial"

	if strings.TrimSpace(content) == "" {
		return "", domain.Invalid(op, "Nothing to export")
	}

	key := storage.ExportKey(userID, "md")
	err := s.store.Put(ctx, key, strings.NewReader(content), storage.PutOptions{
		ContentType: "text/markdown",
	})
	if err != nil {
		return "", domain.Internal(err, op, "Failed to store export")
	}

	url, err := s.store.URL(ctx, key, 24*time.Hour)
	if err != nil {
		return "", domain.Internal(err, op, "Failed to generate download URL")
	}

	s.logger.Info("material exported", "user_id", userID, "key", key)
	return url, nil
}

func (s *mediaService) ImageURL(ctx context.Context, key string) (string, error) {
	const op = "MediaService.ImageURL"

	url, err := s.store.URL(ctx, key, 0)
	if err != nil {
		return "", domain.Internal(err, op, "Failed to resolve image URL")
	}
	return url, nil
}

var _ MediaService = (*mediaService)(nil)
