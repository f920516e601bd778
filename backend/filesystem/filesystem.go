// Package filesystem is a kvstore backend rooted at a directory.
//
// Layout:
//
//	<dir>/k<base64url(key)>/<creation>-<uuid>.kv   one file per version
//	                                               (creation: unix nano with the sign bit flipped, 20 digits)
//	<dir>/k<base64url(key)>/.tmp-*                           in-flight writes
//	<dir>/k<base64url(key)>/.lock                            advisory lock (MergeOnWrite)
//
// Every version is written to a temp file and renamed into place, so readers
// never see a partial file. In MergeOnRead mode (the default) writers never
// contend: each Set lands its own version file and Store.Get reconciles them.
// In MergeOnWrite mode writers to one key are serialized by an in-process
// lock plus flock(2) on .lock, the merge policy runs in Set and superseded
// version files are deleted.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/unkn0wn-root/kvstore"
	"github.com/unkn0wn-root/kvstore/internal/util"
	"github.com/unkn0wn-root/kvstore/internal/wire"
)

const (
	versionExt = ".kv"
	lockName   = ".lock"
	tmpPattern = ".tmp-*"
)

var (
	ErrNoDir  = errors.New("filesystem backend: directory is required")
	ErrNotDir = errors.New("filesystem backend: root is not a directory")
)

type Backend struct {
	dir   string
	mode  kvstore.ConflictMode
	sync  bool
	mkdir bool
	log   kvstore.Logger
	alloc kvstore.Allocator
	locks *util.KeyLocks
	now   func() time.Time
}

var (
	_ kvstore.Backend        = (*Backend)(nil)
	_ kvstore.AllocatorAware = (*Backend)(nil)
)

type Config struct {
	Dir    string
	Mode   kvstore.ConflictMode // default MergeOnRead
	Create bool                 // create Dir on Connect when missing
	Sync   bool                 // fsync version files before rename
	Logger kvstore.Logger       // nil => NopLogger
}

func New(cfg Config) (*Backend, error) {
	if cfg.Dir == "" {
		return nil, ErrNoDir
	}
	b := &Backend{
		dir:   filepath.Clean(cfg.Dir),
		mode:  cfg.Mode,
		sync:  cfg.Sync,
		mkdir: cfg.Create,
		log:   cfg.Logger,
		alloc: kvstore.HeapAllocator{},
		locks: util.NewKeyLocks(0),
		now:   time.Now,
	}
	if b.log == nil {
		b.log = kvstore.NopLogger{}
	}
	return b, nil
}

func (b *Backend) UseAllocator(a kvstore.Allocator) { b.alloc = a }

// Dir returns the root directory.
func (b *Backend) Dir() string { return b.dir }

func (b *Backend) keyDir(key kvstore.Key) string {
	return filepath.Join(b.dir, util.PathSegment(key))
}

// Connect makes sure the root exists (creating it if configured) and that a
// file can be created in it.
func (b *Backend) Connect(_ context.Context) error {
	if b.mkdir {
		if err := os.MkdirAll(b.dir, 0o755); err != nil {
			return fmt.Errorf("filesystem backend: create %s: %w", b.dir, err)
		}
	}
	fi, err := os.Stat(b.dir)
	if err != nil {
		return fmt.Errorf("filesystem backend: %w", err)
	}
	if !fi.IsDir() {
		return fmt.Errorf("%w: %s", ErrNotDir, b.dir)
	}
	probe, err := os.CreateTemp(b.dir, ".probe-*")
	if err != nil {
		return fmt.Errorf("filesystem backend: %s not writable: %w", b.dir, err)
	}
	name := probe.Name()
	probe.Close()
	os.Remove(name)
	return nil
}

func (b *Backend) Disconnect(_ context.Context) error { return nil }

// Get returns one candidate per live version file, oldest first.
// Expired and corrupt files are deleted on the way.
func (b *Backend) Get(_ context.Context, key kvstore.Key) ([]*kvstore.Value, error) {
	recs, _, err := b.load(b.keyDir(key))
	if err != nil {
		return nil, err
	}
	return wire.Values(b.alloc, recs)
}

// load reads every live version in dir. It returns the records together with
// the file names they came from. A missing dir is not an error.
//
// A MergeOnWrite Set deletes the versions it superseded right after renaming
// the merged one into place, so a listing taken before the rename can name
// only files that are gone by the time they are read. Such a pass is
// discarded and the directory listed again.
func (b *Backend) load(dir string) ([]wire.Record, []string, error) {
	for {
		recs, names, vanished, err := b.scan(dir)
		if err != nil || !vanished {
			return recs, names, err
		}
		b.log.Debug("version files vanished during read, relisting", kvstore.Fields{"dir": dir})
	}
}

// scan makes one pass over dir. vanished reports that a listed version file
// no longer existed when it was read.
func (b *Backend) scan(dir string) (recs []wire.Record, names []string, vanished bool, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, false, nil
		}
		return nil, nil, false, fmt.Errorf("filesystem backend: read %s: %w", dir, err)
	}

	now := b.now()
	for _, e := range entries { // ReadDir sorts by name, i.e. by creation
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, versionExt) {
			continue
		}
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				vanished = true
				continue
			}
			return nil, nil, false, fmt.Errorf("filesystem backend: read %s: %w", path, err)
		}
		rec, err := wire.DecodeRecord(data)
		if err != nil {
			b.log.Warn("dropping corrupt version", kvstore.Fields{"path": path})
			os.Remove(path)
			continue
		}
		if rec.Expired(now) {
			b.log.Debug("dropping expired version", kvstore.Fields{"path": path})
			os.Remove(path)
			continue
		}
		recs = append(recs, rec)
		names = append(names, name)
	}
	return recs, names, vanished, nil
}

// Set writes v as a new version file. In MergeOnWrite mode the stored
// versions and v are reduced by merge first and replaced by the result.
func (b *Backend) Set(_ context.Context, merge kvstore.MergePolicy, key kvstore.Key, v *kvstore.Value) error {
	dir := b.keyDir(key)
	if b.mode != kvstore.MergeOnWrite {
		return b.writeVersion(dir, wire.FromValue(v, b.now()))
	}

	unlock := b.locks.Lock(key)
	defer unlock()
	release, err := lockFile(filepath.Join(dir, lockName))
	if err != nil {
		return fmt.Errorf("filesystem backend: lock %s: %w", dir, err)
	}
	defer release()

	recs, names, err := b.load(dir)
	if err != nil {
		return err
	}
	stored, err := wire.Values(b.alloc, recs)
	if err != nil {
		return err
	}
	merged, err := kvstore.Resolve(merge, key, stored, v)
	if err != nil {
		return err
	}
	defer merged.Destroy()

	if err := b.writeVersion(dir, wire.FromValue(merged, b.now())); err != nil {
		return err
	}
	for _, name := range names {
		if err := os.Remove(filepath.Join(dir, name)); err != nil && !os.IsNotExist(err) {
			b.log.Warn("superseded version not removed", kvstore.Fields{"path": filepath.Join(dir, name), "err": err})
		}
	}
	return nil
}

func (b *Backend) writeVersion(dir string, rec wire.Record) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("filesystem backend: %w", err)
	}
	tmp, err := os.CreateTemp(dir, tmpPattern)
	if err != nil {
		return fmt.Errorf("filesystem backend: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(wire.EncodeRecord(rec)); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("filesystem backend: write %s: %w", tmpName, err)
	}
	if b.sync {
		if err := tmp.Sync(); err != nil {
			tmp.Close()
			os.Remove(tmpName)
			return fmt.Errorf("filesystem backend: sync %s: %w", tmpName, err)
		}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("filesystem backend: close %s: %w", tmpName, err)
	}

	final := filepath.Join(dir, versionName(rec.Creation))
	if err := os.Rename(tmpName, final); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("filesystem backend: rename %s: %w", final, err)
	}
	return nil
}

// versionName orders by creation: flipping the sign bit maps signed unix
// nanoseconds onto unsigned values in the same order, so pre-1970 versions
// still sort oldest first.
func versionName(creation int64) string {
	return fmt.Sprintf("%020d-%s%s", uint64(creation)^(1<<63), uuid.NewString(), versionExt)
}

// Remove deletes the key's directory with every version in it. In
// MergeOnWrite mode it holds the key's flock while doing so, so a writer in
// another process either finishes before the removal or starts after it.
func (b *Backend) Remove(_ context.Context, key kvstore.Key) error {
	dir := b.keyDir(key)
	if b.mode == kvstore.MergeOnWrite {
		unlock := b.locks.Lock(key)
		defer unlock()
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			return nil
		}
		release, err := lockFile(filepath.Join(dir, lockName))
		if err != nil {
			return fmt.Errorf("filesystem backend: lock %s: %w", dir, err)
		}
		defer release()
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("filesystem backend: remove: %w", err)
	}
	return nil
}

// Keys lists every key that has a version directory.
func (b *Backend) Keys(_ context.Context) ([]kvstore.Key, error) {
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("filesystem backend: %w", err)
	}
	var keys []kvstore.Key
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if k, ok := util.ParsePathSegment(e.Name()); ok {
			keys = append(keys, kvstore.Key(k))
		}
	}
	return keys, nil
}

// Destroy holds nothing to release: files are opened per call. Data on disk
// is left alone.
func (b *Backend) Destroy(_ context.Context) error { return nil }
