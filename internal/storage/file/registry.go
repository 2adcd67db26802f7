// Package file stores push subscriptions as a JSON array in a single file.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hermesbot/go-alert-service/pkg/notification"
)

// Registry rewrites the whole file on every change. Suitable for the small
// number of operator browsers it serves.
type Registry struct {
	path   string
	mu     sync.Mutex
	logger *slog.Logger
	now    func() time.Time
}

func NewRegistry(path string, logger *slog.Logger) *Registry {
	return &Registry{
		path:   path,
		logger: logger.With("component", "FileRegistry", "path", path),
		now:    time.Now,
	}
}

func (r *Registry) Add(_ context.Context, sub notification.PushSubscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	subs := r.load()
	now := r.now().UTC()
	sub.UpdatedAt = now

	replaced := false
	for i := range subs {
		if subs[i].Endpoint == sub.Endpoint {
			sub.CreatedAt = subs[i].CreatedAt
			subs[i] = sub
			replaced = true
			break
		}
	}
	if !replaced {
		sub.CreatedAt = now
		subs = append(subs, sub)
	}
	return r.save(subs)
}

func (r *Registry) List(_ context.Context) ([]notification.PushSubscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load(), nil
}

func (r *Registry) Remove(_ context.Context, endpoint string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	subs := r.load()
	kept := subs[:0]
	for _, s := range subs {
		if s.Endpoint != endpoint {
			kept = append(kept, s)
		}
	}
	if len(kept) == len(subs) {
		return nil
	}
	return r.save(kept)
}

// load treats a missing or unreadable file as an empty registry.
func (r *Registry) load() []notification.PushSubscription {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			r.logger.Warn("Registry file unreadable; starting from empty list", "err", err)
		}
		return []notification.PushSubscription{}
	}
	var subs []notification.PushSubscription
	if err := json.Unmarshal(data, &subs); err != nil {
		r.logger.Warn("Registry file corrupt; starting from empty list", "err", err)
		return []notification.PushSubscription{}
	}
	if subs == nil {
		subs = []notification.PushSubscription{}
	}
	return subs
}

// save writes to a temp file and renames it over the registry.
func (r *Registry) save(subs []notification.PushSubscription) error {
	data, err := json.MarshalIndent(subs, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal subscriptions: %w", err)
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create registry dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".subscriptions-*.json")
	if err != nil {
		return fmt.Errorf("create temp registry file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write registry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close registry: %w", err)
	}
	if err := os.Rename(tmpName, r.path); err != nil {
		return fmt.Errorf("replace registry file: %w", err)
	}
	return nil
}
