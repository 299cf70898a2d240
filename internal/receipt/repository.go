package receipt

import (
	"fmt"
	"log/slog"
	"sync"
)

// Snapshot is an immutable view of the collection handed to subscribers.
// Consumers must not modify it.
type Snapshot struct {
	Version  uint64
	Receipts []Receipt
}

// Repository owns the in-memory receipt collection and mirrors every mutation
// to a CollectionStore. Mutations are serialized; change notifications are
// published in mutation order.
type Repository struct {
	db      CollectionStore
	storage Storage

	mu          sync.RWMutex
	receipts    []Receipt
	version     uint64
	current     *Snapshot
	subscribers []chan *Snapshot
	closed      bool
}

// NewRepository creates an empty Repository. Call Load to read the stored collection.
func NewRepository(db CollectionStore, storage Storage) *Repository {
	return &Repository{
		db:       db,
		storage:  storage,
		receipts: []Receipt{},
		current:  &Snapshot{Receipts: []Receipt{}},
	}
}

// Load replaces the in-memory collection with the stored one.
// On error the collection is left empty and the error wraps ErrStorageCorrupt
// when the stored data could not be decoded.
func (r *Repository) Load() error {
	receipts, err := r.db.Load()

	r.mu.Lock()
	defer r.mu.Unlock()

	if err != nil {
		r.receipts = []Receipt{}
		r.publishLocked()
		return fmt.Errorf("loading receipts: %w", err)
	}
	r.receipts = receipts
	r.publishLocked()
	return nil
}

// Add appends a receipt
func (r *Repository) Add(receipt Receipt) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.receipts = append(r.receipts, receipt.Clone())
	r.persistLocked()
	r.publishLocked()
}

// Update replaces the receipt with the same ID. The stored attachment and
// creation time are kept. It reports false and does nothing when the ID is unknown.
func (r *Repository) Update(receipt Receipt) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.indexLocked(receipt.ID)
	if idx < 0 {
		return false
	}
	updated := receipt.Clone()
	updated.Attachment = r.receipts[idx].Attachment
	updated.CreatedAt = r.receipts[idx].CreatedAt
	r.receipts[idx] = updated
	r.persistLocked()
	r.publishLocked()
	return true
}

// Delete removes the receipt and its attachment blobs.
// It reports false when the ID is unknown.
func (r *Repository) Delete(id string) bool {
	r.mu.Lock()
	idx := r.indexLocked(id)
	if idx < 0 {
		r.mu.Unlock()
		return false
	}
	removed := r.receipts[idx]
	r.receipts = append(r.receipts[:idx:idx], r.receipts[idx+1:]...)
	r.persistLocked()
	r.publishLocked()
	r.mu.Unlock()

	// blobs are deleted after unlocking; storage may be slow
	r.deleteBlobs(removed.Attachment)
	return true
}

// deleteBlobs removes attachment blobs, logging failures
func (r *Repository) deleteBlobs(a Attachment) {
	if r.storage == nil {
		return
	}
	for _, path := range []string{a.Path, a.ThumbnailPath} {
		if path == "" {
			continue
		}
		if err := r.storage.Delete(path); err != nil {
			slog.Warn("Failed to delete attachment", "path", path, "error", err)
		}
	}
}

// Get returns a copy of the receipt with the given ID
func (r *Repository) Get(id string) (Receipt, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	idx := r.indexLocked(id)
	if idx < 0 {
		return Receipt{}, false
	}
	return r.receipts[idx].Clone(), true
}

// List returns a copy of the collection in insertion order
func (r *Repository) List() []Receipt {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneAll(r.receipts)
}

// ByCategory returns the receipts in a category
func (r *Repository) ByCategory(category Category) []Receipt {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Receipt, 0)
	for _, receipt := range r.receipts {
		if receipt.Category == category {
			out = append(out, receipt.Clone())
		}
	}
	return out
}

// Snapshot returns the latest published snapshot
func (r *Repository) Snapshot() *Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// Subscribe registers a consumer of change notifications. The returned channel
// holds at most one pending snapshot; a newer snapshot replaces an unread one.
// The current snapshot is delivered immediately.
func (r *Repository) Subscribe() <-chan *Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch := make(chan *Snapshot, 1)
	if r.closed {
		close(ch)
		return ch
	}
	ch <- r.current
	r.subscribers = append(r.subscribers, ch)
	return ch
}

// Close stops notifications and closes every subscriber channel
func (r *Repository) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	r.closed = true
	for _, ch := range r.subscribers {
		close(ch)
	}
	r.subscribers = nil
}

func (r *Repository) indexLocked(id string) int {
	for i := range r.receipts {
		if r.receipts[i].ID == id {
			return i
		}
	}
	return -1
}

// persistLocked rewrites the stored collection. Failures are logged and the
// in-memory state stays authoritative.
func (r *Repository) persistLocked() {
	if err := r.db.Persist(r.receipts); err != nil {
		slog.Error("Failed to persist receipts",
			"count", len(r.receipts),
			"error", fmt.Errorf("%w: %w", ErrPersistWrite, err),
		)
	}
}

// publishLocked builds a new snapshot and hands it to every subscriber
func (r *Repository) publishLocked() {
	r.version++
	snap := &Snapshot{Version: r.version, Receipts: cloneAll(r.receipts)}
	r.current = snap
	if r.closed {
		return
	}
	for _, ch := range r.subscribers {
		// Only this method sends, under r.mu, so after draining the send cannot block
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}
