package memory

import (
	"context"
	"sync"

	"github.com/dartanool/user-balance-api/internal/storage"
)

// Directory is an in-memory account directory keyed by user id.
type Directory struct {
	mu  sync.RWMutex
	ids map[int64]struct{}
}

func NewDirectory(userIDs ...int64) *Directory {
	d := &Directory{ids: make(map[int64]struct{}, len(userIDs))}
	for _, id := range userIDs {
		d.ids[id] = struct{}{}
	}
	return d
}

func (d *Directory) Add(userID int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ids[userID] = struct{}{}
}

func (d *Directory) Exists(ctx context.Context, userID int64) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.ids[userID]
	return ok, nil
}

var _ storage.Directory = (*Directory)(nil)
