package store

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	"github.com/peterbourgon/diskv/v3"
)

const (
	defaultDirMode = 0o755
	lastIDKey      = "last_id"
)

// DiskConfig is the input configuration for disk storage of pastes.
type DiskConfig struct {
	// DataDir must be a writable directory for storing pastes.
	DataDir string `long:"data-dir" env:"DATA_DIR" default:"./data" description:"directory where pastes are stored"`
	// How much memory to use for k/v caches. 0 is probably good for this app.
	CacheSize uint64 `long:"cache-size" env:"CACHE_SIZE" description:"file system storage cache size"`
	// The file mode given to new folders. Uses a sane default if omitted.
	DirMode os.FileMode `long:"dir-mode" env:"DIR_MODE" description:"file mode for new directories"`
}

// DiskStore keeps every paste in its own file, keyed by paste id.
// The last issued id is stored separately so that ids survive restarts and
// are never reused.
type DiskStore struct {
	pastes *diskv.Diskv
	meta   *diskv.Diskv
	lastID int64
	sync.RWMutex
}

// Fail if the struct does not match the Interface.
var _ = Interface(&DiskStore{})

// NewDiskStorage should be called once on startup to initialize a disk storage backend for pastes.
func NewDiskStorage(config *DiskConfig) (*DiskStore, error) {
	if err := makeDiskStorageFolders(config); err != nil {
		return nil, err
	}

	store := &DiskStore{
		pastes: diskv.New(diskv.Options{
			BasePath:     filepath.Join(config.DataDir, "pastes"),
			CacheSizeMax: config.CacheSize,
		}),
		meta: diskv.New(diskv.Options{
			BasePath: filepath.Join(config.DataDir, "meta"),
		}),
	}

	if err := store.loadLastID(); err != nil {
		return nil, err
	}

	return store, nil
}

func makeDiskStorageFolders(config *DiskConfig) error {
	if config.DirMode == 0 {
		config.DirMode = defaultDirMode
	}

	dirStat, err := os.Stat(config.DataDir)
	if err != nil {
		return fmt.Errorf("data dir missing? %w", err)
	}

	if !dirStat.IsDir() {
		return fmt.Errorf("data dir is not a directory: %s", dirStat.Name())
	}

	// Stores all paste data, one file per paste.
	err = os.MkdirAll(filepath.Join(config.DataDir, "pastes"), config.DirMode)
	if err != nil {
		return fmt.Errorf("creating pastes data store: %w", err)
	}

	// Stores the id counter.
	err = os.MkdirAll(filepath.Join(config.DataDir, "meta"), config.DirMode)
	if err != nil {
		return fmt.Errorf("creating meta data store: %w", err)
	}

	return nil
}

// loadLastID restores the id counter. If the counter file is missing (older
// data dir or first start) it falls back to the highest existing paste id.
func (f *DiskStore) loadLastID() error {
	if f.meta.Has(lastIDKey) {
		if err := f.getFromDisk(f.meta, lastIDKey, &f.lastID); err != nil {
			return fmt.Errorf("disk.loadLastID: %w", err)
		}
		return nil
	}

	for _, id := range f.ids() {
		if id > f.lastID {
			f.lastID = id
		}
	}

	return nil
}

// List returns all the pastes ordered by id.
func (f *DiskStore) List(_ context.Context) ([]Paste, error) {
	f.RLock()
	defer f.RUnlock()

	ids := f.ids()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	pastes := make([]Paste, 0, len(ids))
	for _, id := range ids {
		var paste Paste
		if err := f.getFromDisk(f.pastes, f.intStr(id), &paste); err != nil {
			return nil, fmt.Errorf("disk.List: %w", err)
		}
		pastes = append(pastes, paste)
	}

	return pastes, nil
}

// Create new paste and return its id.
func (f *DiskStore) Create(_ context.Context, paste Paste) (int64, error) {
	f.Lock()
	defer f.Unlock()

	id := f.lastID + 1
	if err := f.saveToDisk(f.meta, lastIDKey, &id); err != nil {
		return 0, fmt.Errorf("disk.Create: %w", err)
	}
	f.lastID = id

	paste.ID = id
	if err := f.saveToDisk(f.pastes, f.intStr(id), &paste); err != nil {
		return 0, fmt.Errorf("disk.Create: %w", err)
	}

	return id, nil
}

// Update replaces title and text of an existing paste.
func (f *DiskStore) Update(_ context.Context, id int64, title, text string) (Paste, error) {
	f.Lock()
	defer f.Unlock()

	key := f.intStr(id)
	if !f.pastes.Has(key) {
		return Paste{}, fmt.Errorf("disk.Update: %w: id [%d]", ErrNotFound, id)
	}

	var paste Paste
	if err := f.getFromDisk(f.pastes, key, &paste); err != nil {
		return Paste{}, fmt.Errorf("disk.Update: %w", err)
	}
	paste.Title = title
	paste.Text = text

	if err := f.saveToDisk(f.pastes, key, &paste); err != nil {
		return Paste{}, fmt.Errorf("disk.Update: %w", err)
	}

	return paste, nil
}

// Delete paste by id.
func (f *DiskStore) Delete(_ context.Context, id int64) error {
	f.Lock()
	defer f.Unlock()

	key := f.intStr(id)
	if !f.pastes.Has(key) {
		return nil
	}

	if err := f.pastes.Erase(key); err != nil {
		return fmt.Errorf("disk.Delete: %w", err)
	}

	return nil
}

// Close does nothing, every write is synced to disk.
func (f *DiskStore) Close() error {
	return nil
}

// ids returns ids of all stored pastes in no particular order.
func (f *DiskStore) ids() []int64 {
	var ids []int64
	for key := range f.pastes.Keys(nil) {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			continue // not ours
		}
		ids = append(ids, id)
	}
	return ids
}

func (f *DiskStore) saveToDisk(disk *diskv.Diskv, storeID string, data interface{}) error {
	var (
		buf bytes.Buffer
		enc = gob.NewEncoder(&buf)
	)

	if err := enc.Encode(data); err != nil {
		return fmt.Errorf("encoding buffer: %w", err)
	}

	if err := disk.WriteStream(storeID, &buf, true); err != nil {
		return fmt.Errorf("writing data: %w", err)
	}

	return nil
}

func (f *DiskStore) getFromDisk(disk *diskv.Diskv, storeID string, data interface{}) error {
	buf, err := disk.ReadStream(storeID, true)
	if err != nil {
		return fmt.Errorf("reading storage (id:%s): %w", storeID, err)
	}
	defer buf.Close()

	if err := gob.NewDecoder(buf).Decode(data); err != nil {
		return fmt.Errorf("decoding storage buffer: %w", err)
	}

	return nil
}

// Our library uses an int64 for paste IDs,
// but the disk storage library uses strings for keys.
// This procedure handles the conversion.
func (f *DiskStore) intStr(pasteID int64) string {
	const base10 = 10
	return strconv.FormatInt(pasteID, base10)
}
