package receipt

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/zombor/ahorro/internal/scanning"
)

// ThumbnailSize is the bounding square for generated thumbnails
const ThumbnailSize = 600

// IDGenerator generates unique IDs for receipts
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// defaultIDGenerator generates random UUIDs
type defaultIDGenerator struct{}

func (g *defaultIDGenerator) Generate() string {
	return uuid.NewString()
}

// defaultTimeSource provides the current time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Submission is a captured document waiting to become a receipt
type Submission struct {
	Data                []byte
	Filename            string
	MimeType            string
	Description         string
	CaptureDate         time.Time
	LocationDescription string
}

// Result is the outcome of one submission. Exactly one of Receipt and Err is set.
type Result struct {
	Receipt *Receipt
	Err     error
}

// Pipeline turns submitted documents into stored receipts
type Pipeline struct {
	repo        *Repository
	scanner     scanning.Scanner
	storage     Storage
	idGenerator IDGenerator
	timeSource  TimeSource

	sem *semaphore.Weighted
	wg  sync.WaitGroup
}

// NewPipeline creates a new Pipeline with default ID generator and time source.
// workers bounds the number of submissions processed at once.
func NewPipeline(repo *Repository, scanner scanning.Scanner, storage Storage, workers int) *Pipeline {
	return NewPipelineWithDeps(repo, scanner, storage, &defaultIDGenerator{}, &defaultTimeSource{}, workers)
}

// NewPipelineWithDeps creates a new Pipeline with custom dependencies for testing
func NewPipelineWithDeps(repo *Repository, scanner scanning.Scanner, storage Storage, idGen IDGenerator, timeSrc TimeSource, workers int) *Pipeline {
	if workers < 1 {
		workers = 1
	}
	return &Pipeline{
		repo:        repo,
		scanner:     scanner,
		storage:     storage,
		idGenerator: idGen,
		timeSource:  timeSrc,
		sem:         semaphore.NewWeighted(int64(workers)),
	}
}

// Submit starts processing sub in the background. The returned channel
// receives exactly one Result and is then closed.
func (p *Pipeline) Submit(sub Submission) <-chan Result {
	out := make(chan Result, 1)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer close(out)

		// Acquire only fails on context cancellation, which Background never does
		_ = p.sem.Acquire(context.Background(), 1)
		defer p.sem.Release(1)

		receipt, err := p.Process(context.Background(), sub)
		out <- Result{Receipt: receipt, Err: err}
	}()
	return out
}

// Wait blocks until every submitted document has been processed
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

// sanitizeFilename cleans up a filename by removing special characters and truncating length
func sanitizeFilename(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))

	// Keep only alphanumerics, spaces, hyphens and underscores
	reg := regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	base = reg.ReplaceAllString(base, "")

	reg = regexp.MustCompile(`\s+`)
	base = reg.ReplaceAllString(base, "-")

	base = strings.Trim(base, "-")

	maxLen := 50
	if len(base) > maxLen {
		base = base[:maxLen]
	}

	if base == "" {
		base = "receipt"
	}

	return base + ext
}

// Process runs a submission synchronously: store the document, extract it,
// and add the resulting receipt to the repository
func (p *Pipeline) Process(ctx context.Context, sub Submission) (*Receipt, error) {
	id := p.idGenerator.Generate()
	mimeType := sub.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	cleanFilename := sanitizeFilename(sub.Filename)
	attachmentPath, err := p.storage.Save(fmt.Sprintf("attachments/%s-%s", id, cleanFilename), sub.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: saving attachment: %v", ErrAttachmentPersist, err)
	}

	attachment := Attachment{Path: attachmentPath, MimeType: mimeType}
	if strings.HasPrefix(mimeType, "image/") {
		attachment.ThumbnailPath = p.saveThumbnail(id, cleanFilename, sub.Data, mimeType)
	}

	extraction, err := p.scanner.ScanReceipt(ctx, sub.Data, mimeType, sub.Description)
	if err != nil {
		slog.Error("Failed to scan receipt",
			"filename", sub.Filename,
			"content_type", mimeType,
			"file_size", len(sub.Data),
			"error", err,
		)
		// Drop the stored blobs since no receipt will reference them
		p.deleteBlob(attachment.Path)
		p.deleteBlob(attachment.ThumbnailPath)
		return nil, fmt.Errorf("scanning receipt: %w", err)
	}

	now := p.timeSource.Now()
	receipt := merge(extraction, sub, now)
	receipt.ID = id
	receipt.Attachment = attachment
	receipt.CreatedAt = now
	receipt.UpdatedAt = now

	p.repo.Add(receipt)
	slog.Info("Receipt ingested", "id", id, "merchant", receipt.MerchantName, "amount", receipt.Amount.String())

	return &receipt, nil
}

// saveThumbnail stores a scaled JPEG next to the attachment. It returns the
// stored path, or "" when the thumbnail could not be made.
func (p *Pipeline) saveThumbnail(id, cleanFilename string, data []byte, mimeType string) string {
	thumb, err := scanning.Thumbnail(data, mimeType, ThumbnailSize)
	if err != nil {
		slog.Warn("Failed to generate thumbnail", "id", id, "error", err)
		return ""
	}

	base := strings.TrimSuffix(cleanFilename, filepath.Ext(cleanFilename))
	path, err := p.storage.Save(fmt.Sprintf("thumbnails/%s-%s.jpg", id, base), thumb)
	if err != nil {
		slog.Warn("Failed to save thumbnail", "id", id, "error", err)
		return ""
	}
	return path
}

func (p *Pipeline) deleteBlob(path string) {
	if path == "" {
		return
	}
	if err := p.storage.Delete(path); err != nil {
		slog.Warn("Failed to delete file", "path", path, "error", err)
	}
}

// merge combines an extraction with the overrides supplied at capture time
func merge(ex *scanning.Extraction, sub Submission, now time.Time) Receipt {
	captureDate := sub.CaptureDate
	if captureDate.IsZero() {
		captureDate = now
	}

	purchaseDate := captureDate
	if ex.PurchaseDate != nil {
		purchaseDate = *ex.PurchaseDate
	}

	description := ex.Summary
	if strings.TrimSpace(sub.Description) != "" {
		description = sub.Description
	}

	locationDescription := ex.LocationDescription
	if strings.TrimSpace(sub.LocationDescription) != "" {
		locationDescription = sub.LocationDescription
	}

	r := Receipt{
		Title:               ex.Title,
		MerchantName:        ex.MerchantName,
		Description:         description,
		PurchaseDate:        purchaseDate,
		CaptureDate:         captureDate,
		Amount:              ex.TotalAmount.Abs(),
		CurrencyCode:        ex.CurrencyCode,
		TaxAmount:           ex.TaxAmount,
		TaxRate:             ex.TaxRate,
		Category:            ParseCategory(ex.Category),
		Keywords:            nonNil(ex.Keywords),
		Tags:                nonNil(ex.Tags),
		Metadata:            ex.Metadata,
		LocationDescription: locationDescription,
	}
	if r.Metadata == nil {
		r.Metadata = map[string]string{}
	}
	if ex.Location != nil {
		r.Location = &Coordinate{Latitude: ex.Location.Latitude, Longitude: ex.Location.Longitude}
	}
	return r.Clone()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
