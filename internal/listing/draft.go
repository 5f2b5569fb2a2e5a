// Package listing is the caller side of the photo pipeline: a venue listing
// draft that keeps processed photos on screen until they are submitted,
// removed, or the draft is closed.
package listing

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"turfpix/internal/preview"
	"turfpix/internal/processor"
)

var (
	ErrDraftClosed   = errors.New("listing draft closed")
	ErrTooManyPhotos = errors.New("too many photos")
	ErrBatchTooLarge = errors.New("photos exceed total size limit")
	ErrPhotoNotFound = errors.New("photo not found")
	// ErrSubmitting is returned for changes made while Submit is running.
	ErrSubmitting = errors.New("listing draft is being submitted")
)

// Constraints are aggregate limits the pipeline itself does not enforce.
// Zero means unlimited.
type Constraints struct {
	MaxPhotos     int
	MaxTotalBytes int64
}

// Photo is a processed image shown in the draft.
type Photo struct {
	Item   processor.ProcessedItem
	Handle *preview.Handle
}

// Upload is one file handed to the listing backend.
type Upload struct {
	Name      string
	MediaType string
	Width     int
	Height    int
	Data      []byte
}

// Submitter sends photos to the listing backend.
type Submitter interface {
	Submit(ctx context.Context, uploads []Upload) error
}

// BatchProcessor runs the compression pipeline.
type BatchProcessor interface {
	ProcessBatch(ctx context.Context, items []processor.SourceItem, limits processor.Limits, budget processor.Budget) (processor.BatchResult, error)
}

type Draft struct {
	registry    *preview.Registry
	constraints Constraints
	logger      *zap.Logger

	mu         sync.Mutex
	photos     []*Photo
	closed     bool
	submitting bool
}

func NewDraft(registry *preview.Registry, constraints Constraints, logger *zap.Logger) *Draft {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Draft{
		registry:    registry,
		constraints: constraints,
		logger:      logger,
	}
}

// Ingest processes items and applies the result. If the draft is closed while
// the batch runs, the result is dropped and no handle is created.
func (d *Draft) Ingest(ctx context.Context, p BatchProcessor, items []processor.SourceItem, limits processor.Limits, budget processor.Budget) (processor.BatchResult, []*Photo, error) {
	if d.Closed() {
		return processor.BatchResult{}, nil, ErrDraftClosed
	}

	result, err := p.ProcessBatch(ctx, items, limits, budget)
	if err != nil {
		return result, nil, err
	}

	added, err := d.Apply(result)
	if err != nil {
		return result, nil, err
	}
	return result, added, nil
}

// Apply creates and displays a preview handle for every successful item.
func (d *Draft) Apply(result processor.BatchResult) ([]*Photo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		d.logger.Warn("dropping batch for closed draft", zap.String("batch_id", result.BatchID))
		return nil, ErrDraftClosed
	}
	if d.submitting {
		return nil, ErrSubmitting
	}

	added := make([]*Photo, 0, len(result.Successful))
	for _, item := range result.Successful {
		h := d.registry.Create(item.Output)
		if err := d.registry.Display(h); err != nil {
			d.registry.Revoke(h)
			return added, err
		}
		photo := &Photo{Item: item, Handle: h}
		d.photos = append(d.photos, photo)
		added = append(added, photo)
	}
	return added, nil
}

// Remove revokes and drops one photo by handle id.
func (d *Draft) Remove(handleID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.submitting {
		return ErrSubmitting
	}
	for i, photo := range d.photos {
		if photo.Handle.ID() != handleID {
			continue
		}
		d.registry.Revoke(photo.Handle)
		d.photos = append(d.photos[:i], d.photos[i+1:]...)
		return nil
	}
	return fmt.Errorf("%w: %s", ErrPhotoNotFound, handleID)
}

// Photos returns the current photos in display order.
func (d *Draft) Photos() []*Photo {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*Photo(nil), d.photos...)
}

// TotalBytes sums the output size of every photo.
func (d *Draft) TotalBytes() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.totalBytesLocked()
}

func (d *Draft) totalBytesLocked() int64 {
	var total int64
	for _, photo := range d.photos {
		total += photo.Item.OutputBytes
	}
	return total
}

// Check enforces the aggregate constraints.
func (d *Draft) Check() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.checkLocked()
}

func (d *Draft) checkLocked() error {
	var errs []error
	if limit := d.constraints.MaxPhotos; limit > 0 && len(d.photos) > limit {
		errs = append(errs, fmt.Errorf("%w: %d > %d", ErrTooManyPhotos, len(d.photos), limit))
	}
	if limit := d.constraints.MaxTotalBytes; limit > 0 {
		if total := d.totalBytesLocked(); total > limit {
			errs = append(errs, fmt.Errorf("%w: %d > %d bytes", ErrBatchTooLarge, total, limit))
		}
	}
	return errors.Join(errs...)
}

// Submit checks the constraints, hands every photo to s and closes the draft
// once the backend accepts them. The draft refuses Apply, Remove and other
// submits until s returns.
func (d *Draft) Submit(ctx context.Context, s Submitter) error {
	uploads, err := d.beginSubmit()
	if err != nil {
		return err
	}

	if err := s.Submit(ctx, uploads); err != nil {
		d.mu.Lock()
		d.submitting = false
		d.mu.Unlock()
		return fmt.Errorf("submit photos: %w", err)
	}
	d.logger.Info("listing photos submitted", zap.Int("photos", len(uploads)))

	d.mu.Lock()
	d.submitting = false
	d.closeLocked()
	d.mu.Unlock()
	return nil
}

func (d *Draft) beginSubmit() ([]Upload, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, ErrDraftClosed
	}
	if d.submitting {
		return nil, ErrSubmitting
	}
	if err := d.checkLocked(); err != nil {
		return nil, err
	}

	uploads := make([]Upload, 0, len(d.photos))
	for _, photo := range d.photos {
		data, err := d.registry.Bytes(photo.Handle)
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, Upload{
			Name:      uploadName(photo.Item.Original.Name),
			MediaType: "image/jpeg",
			Width:     photo.Item.WidthPx,
			Height:    photo.Item.HeightPx,
			Data:      data,
		})
	}
	d.submitting = true
	return uploads, nil
}

// Close revokes every photo handle. Later batches are refused.
func (d *Draft) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closeLocked()
}

func (d *Draft) closeLocked() {
	if d.closed {
		return
	}
	for _, photo := range d.photos {
		d.registry.Revoke(photo.Handle)
	}
	d.photos = nil
	d.closed = true
}

// Closed reports whether Close has run.
func (d *Draft) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

func uploadName(original string) string {
	base := filepath.Base(original)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" || base == "." {
		base = "photo"
	}
	return base + ".jpg"
}
