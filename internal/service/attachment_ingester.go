package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"victim-support/backend/internal/models"
	"victim-support/backend/internal/repository"
	"victim-support/backend/pkg/logger"
	"victim-support/backend/pkg/metrics"
)

// IngesterConfig configures where attachments are stored and served from
type IngesterConfig struct {
	// StorageRoot holds chat/<roomId>/<kind>/ and the tmp/ spool directory
	StorageRoot string
	// PublicPrefix is the URL path the storage root is served under
	PublicPrefix string
	// MaxSize is the upload limit in bytes
	MaxSize int64
}

func DefaultIngesterConfig() IngesterConfig {
	return IngesterConfig{
		StorageRoot:  "public/uploads",
		PublicPrefix: "/uploads",
		MaxSize:      10 << 20, // 10MB
	}
}

// Upload is a temporary file waiting to be moved into room storage
type Upload struct {
	RoomID       string
	Kind         models.Kind
	TempPath     string
	OriginalName string
	Size         int64
}

// Attachment is an ingested file
type Attachment struct {
	ReferenceURL string `json:"url"`
	FileName     string `json:"fileName"`
	FileSize     int64  `json:"fileSize"`
	ContentType  string `json:"contentType"`
	storedPath   string
}

var allowedFileTypes = []string{
	"image/jpeg",
	"image/png",
	"image/gif",
	"application/pdf",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"text/plain",
}

var extPattern = regexp.MustCompile(`^\.[a-z0-9]{1,10}$`)

// AttachmentIngester moves uploads into durable room-scoped storage
type AttachmentIngester struct {
	rooms  repository.RoomRepository
	config IngesterConfig
	log    *logger.Logger
	now    func() time.Time
}

func NewAttachmentIngester(rooms repository.RoomRepository, config IngesterConfig, log *logger.Logger) *AttachmentIngester {
	if config.PublicPrefix == "" {
		config.PublicPrefix = "/uploads"
	}
	if config.MaxSize <= 0 {
		config.MaxSize = DefaultIngesterConfig().MaxSize
	}
	return &AttachmentIngester{
		rooms:  rooms,
		config: config,
		log:    log,
		now:    time.Now,
	}
}

func (i *AttachmentIngester) MaxSize() int64 { return i.config.MaxSize }

// Spool copies r into a temporary file under the storage root so the later
// move stays on one filesystem. Reading more than the limit fails.
func (i *AttachmentIngester) Spool(r io.Reader) (string, int64, error) {
	dir := filepath.Join(i.config.StorageRoot, "tmp")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", 0, fmt.Errorf("%w: create spool directory: %v", ErrIngestFailed, err)
	}
	f, err := os.CreateTemp(dir, "upload-*")
	if err != nil {
		return "", 0, fmt.Errorf("%w: create temp file: %v", ErrIngestFailed, err)
	}

	n, err := io.Copy(f, io.LimitReader(r, i.config.MaxSize+1))
	closeErr := f.Close()
	switch {
	case err != nil:
		os.Remove(f.Name())
		return "", 0, fmt.Errorf("%w: spool upload: %v", ErrIngestFailed, err)
	case closeErr != nil:
		os.Remove(f.Name())
		return "", 0, fmt.Errorf("%w: spool upload: %v", ErrIngestFailed, closeErr)
	case n > i.config.MaxSize:
		os.Remove(f.Name())
		return "", 0, fmt.Errorf("%w: file exceeds %d bytes", ErrValidationFailed, i.config.MaxSize)
	}
	return f.Name(), n, nil
}

// Ingest validates the upload and moves it to
// <root>/chat/<roomId>/<kind>/<generated>. On any failure the temporary file
// is removed and nothing is left in room storage.
func (i *AttachmentIngester) Ingest(ctx context.Context, up Upload) (att *Attachment, err error) {
	ctx, span := tracer.Start(ctx, "AttachmentIngester.Ingest")
	defer span.End()
	log := i.log.WithRoom(up.RoomID)

	defer func() {
		outcome := "stored"
		if err != nil {
			outcome = "rejected"
			if rmErr := os.Remove(up.TempPath); rmErr != nil && !os.IsNotExist(rmErr) {
				log.LogError(rmErr, "Failed to remove temporary upload", "path", up.TempPath)
			}
		}
		metrics.AttachmentsIngested.WithLabelValues(string(up.Kind), outcome).Inc()
	}()

	if !up.Kind.IsAttachment() {
		return nil, fmt.Errorf("ingest: %w: upload type must be voice or file", ErrValidationFailed)
	}
	if _, err := i.rooms.GetByID(ctx, up.RoomID); err != nil {
		return nil, classify("ingest", err)
	}
	if up.Size <= 0 {
		return nil, fmt.Errorf("ingest: %w: empty file", ErrValidationFailed)
	}
	if up.Size > i.config.MaxSize {
		return nil, fmt.Errorf("ingest: %w: file exceeds %d bytes", ErrValidationFailed, i.config.MaxSize)
	}

	mime, err := mimetype.DetectFile(up.TempPath)
	if err != nil {
		return nil, fmt.Errorf("ingest: %w: read upload: %v", ErrIngestFailed, err)
	}
	if !allowedContent(up.Kind, mime) {
		return nil, fmt.Errorf("ingest: %w: content type %s not allowed for %s", ErrValidationFailed, mime.String(), up.Kind)
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("ingest: %w: %v", ErrIngestFailed, err)
	}

	dir := filepath.Join(i.config.StorageRoot, "chat", up.RoomID, string(up.Kind))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("ingest: %w: create room storage: %v", ErrIngestFailed, err)
	}

	name := i.generateName(up.Kind, up.OriginalName, mime)
	dest := filepath.Join(dir, name)
	if err := os.Rename(up.TempPath, dest); err != nil {
		return nil, fmt.Errorf("ingest: %w: move upload: %v", ErrIngestFailed, err)
	}

	fileName := filepath.Base(up.OriginalName)
	if fileName == "." || fileName == string(filepath.Separator) {
		fileName = name
	}

	log.Info("Attachment stored",
		"kind", string(up.Kind),
		"name", name,
		"size", up.Size,
		"content_type", mime.String(),
	)

	return &Attachment{
		ReferenceURL: path.Join(i.config.PublicPrefix, "chat", up.RoomID, string(up.Kind), name),
		FileName:     fileName,
		FileSize:     up.Size,
		ContentType:  mime.String(),
		storedPath:   dest,
	}, nil
}

// Discard removes an ingested file whose message could not be stored
func (i *AttachmentIngester) Discard(att *Attachment) {
	if att == nil || att.storedPath == "" {
		return
	}
	if err := os.Remove(att.storedPath); err != nil && !os.IsNotExist(err) {
		i.log.LogError(err, "Failed to discard attachment", "path", att.storedPath)
	}
}

func (i *AttachmentIngester) generateName(kind models.Kind, originalName string, mime *mimetype.MIME) string {
	ext := strings.ToLower(filepath.Ext(originalName))
	if !extPattern.MatchString(ext) {
		ext = mime.Extension()
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("%s-%d-%s%s", kind, i.now().UnixMilli(), suffix, ext)
}

func allowedContent(kind models.Kind, mime *mimetype.MIME) bool {
	switch kind {
	case models.KindVoice:
		// browser recorders produce webm/ogg containers
		for m := mime; m != nil; m = m.Parent() {
			if strings.HasPrefix(m.String(), "audio/") || m.Is("video/webm") || m.Is("application/ogg") {
				return true
			}
		}
	case models.KindFile:
		for _, allowed := range allowedFileTypes {
			if mime.Is(allowed) {
				return true
			}
		}
	}
	return false
}
