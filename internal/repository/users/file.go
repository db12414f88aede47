package users

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/pingbot/internal/config"
)

// FileRegistry persists subscribers to a JSON array on disk.
// JSON is produced and consumed via protojson as a structpb.ListValue of
// strings.
type FileRegistry struct {
	// path is the filesystem location of the JSON file.
	path string
	// mu serializes every read-modify-write of the file.
	mu sync.Mutex
}

// NewFileRegistry creates a registry that reads/writes JSON at the provided path.
func NewFileRegistry(path string) *FileRegistry {
	return &FileRegistry{
		path: filepath.Clean(path),
	}
}

// Add inserts id unless it is already present.
func (r *FileRegistry) Add(_ context.Context, id string) error {
	return r.update(func(ids []string) []string {
		if slices.Contains(ids, id) {
			return ids
		}

		return append(ids, id)
	})
}

// Remove deletes id.
func (r *FileRegistry) Remove(_ context.Context, id string) error {
	return r.update(func(ids []string) []string {
		return slices.DeleteFunc(ids, func(existing string) bool { return existing == id })
	})
}

// Clear deletes every id.
func (r *FileRegistry) Clear(context.Context) error {
	return r.update(func([]string) []string { return nil })
}

// List reads the ids from disk.
func (r *FileRegistry) List(context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.load()
}

// Close is a no-op; the file is not held open.
func (r *FileRegistry) Close() error {
	return nil
}

// update performs one serialized read-transform-write cycle.
func (r *FileRegistry) update(transform func([]string) []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids, err := r.load()
	if err != nil {
		return err
	}

	return r.save(transform(ids))
}

// load reads the file; a missing file is an empty registry.
func (r *FileRegistry) load() ([]string, error) {
	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}

		return nil, fmt.Errorf("read users file: %w", err)
	}

	var list structpb.ListValue
	if err = protojson.Unmarshal(contents, &list); err != nil {
		return nil, fmt.Errorf("decode users file: %w", err)
	}

	ids := make([]string, 0, len(list.GetValues()))
	for _, v := range list.GetValues() {
		ids = append(ids, v.GetStringValue())
	}

	return ids, nil
}

// save writes ids to disk.
func (r *FileRegistry) save(ids []string) error {
	values := make([]*structpb.Value, 0, len(ids))
	for _, id := range ids {
		values = append(values, structpb.NewStringValue(id))
	}

	data, err := protojson.Marshal(&structpb.ListValue{Values: values})
	if err != nil {
		return fmt.Errorf("encode users: %w", err)
	}

	if err = os.WriteFile(r.path, data, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write users file: %w", err)
	}

	return nil
}
