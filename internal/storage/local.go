package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/scigolib/cubeplace/internal/utils"
)

// LocalBackend implements Backend over the local filesystem, rooted at
// a base directory. Keys map directly onto paths relative to Root.
type LocalBackend struct {
	Root string
}

// NewLocalBackend constructs a LocalBackend rooted at root. The root
// directory is created on first write if absent.
func NewLocalBackend(root string) *LocalBackend {
	return &LocalBackend{Root: root}
}

func (b *LocalBackend) path(key string) string {
	return filepath.Join(b.Root, filepath.FromSlash(key))
}

// Put writes data at key, creating parent directories as needed and
// overwriting any existing file.
func (b *LocalBackend) Put(_ context.Context, key string, data []byte) error {
	full := b.path(key)

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return utils.WrapError("creating parent directories", err)
	}

	buf := utils.GetBuffer(len(data))
	defer utils.ReleaseBuffer(buf)
	copy(buf, data)

	if err := os.WriteFile(full, buf[:len(data)], 0o644); err != nil {
		return utils.WrapError(fmt.Sprintf("writing %s", key), err)
	}

	return nil
}

// PutReader streams size bytes from r into key.
func (b *LocalBackend) PutReader(_ context.Context, key string, r io.Reader, size int64) error {
	full := b.path(key)

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return utils.WrapError("creating parent directories", err)
	}

	f, err := os.Create(full)
	if err != nil {
		return utils.WrapError(fmt.Sprintf("creating %s", key), err)
	}
	defer f.Close()

	written, err := io.Copy(f, r)
	if err != nil {
		return utils.WrapError(fmt.Sprintf("streaming %s", key), err)
	}

	if size >= 0 && written != size {
		return fmt.Errorf("storage: short write for %s: wrote %d of %d bytes", key, written, size)
	}

	return nil
}

// Get reads the full contents of key.
func (b *LocalBackend) Get(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(b.path(key))
	if err != nil {
		return nil, utils.WrapError(fmt.Sprintf("reading %s", key), err)
	}
	return data, nil
}

// Exists reports whether key is present.
func (b *LocalBackend) Exists(_ context.Context, key string) (bool, error) {
	_, err := os.Stat(b.path(key))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, utils.WrapError(fmt.Sprintf("checking %s", key), err)
}

// Delete removes key. Deleting an absent path is not an error.
func (b *LocalBackend) Delete(_ context.Context, key string) error {
	if err := os.Remove(b.path(key)); err != nil && !os.IsNotExist(err) {
		return utils.WrapError(fmt.Sprintf("deleting %s", key), err)
	}
	return nil
}

// DeletePrefix recursively removes every path under prefix.
func (b *LocalBackend) DeletePrefix(_ context.Context, prefix string) error {
	full := b.path(prefix)
	if err := os.RemoveAll(full); err != nil {
		return utils.WrapError(fmt.Sprintf("deleting prefix %s", prefix), err)
	}
	return nil
}

// CopyPrefix recursively copies every file under srcPrefix to the
// equivalent relative path under dstPrefix, deleting any pre-existing
// destination first so the copy always reflects the source exactly.
func (b *LocalBackend) CopyPrefix(ctx context.Context, srcPrefix, dstPrefix string) error {
	srcFull := b.path(srcPrefix)
	dstFull := b.path(dstPrefix)

	if err := os.RemoveAll(dstFull); err != nil {
		return utils.WrapError(fmt.Sprintf("clearing destination %s", dstPrefix), err)
	}

	return filepath.Walk(srcFull, func(walkPath string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		rel, relErr := filepath.Rel(srcFull, walkPath)
		if relErr != nil {
			return relErr
		}

		target := filepath.Join(dstFull, rel)

		if info.IsDir() {
			return os.MkdirAll(target, 0o755)
		}

		data, readErr := os.ReadFile(walkPath)
		if readErr != nil {
			return utils.WrapError(fmt.Sprintf("reading %s", walkPath), readErr)
		}

		if mkErr := os.MkdirAll(filepath.Dir(target), 0o755); mkErr != nil {
			return mkErr
		}

		return os.WriteFile(target, data, 0o644)
	})
}

// List returns every file key under prefix, in sorted order.
func (b *LocalBackend) List(_ context.Context, prefix string) ([]Object, error) {
	full := b.path(prefix)

	var objects []Object

	err := filepath.Walk(full, func(walkPath string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return filepath.SkipDir
			}
			return err
		}
		if info.IsDir() {
			return nil
		}

		rel, relErr := filepath.Rel(b.Root, walkPath)
		if relErr != nil {
			return relErr
		}

		objects = append(objects, Object{
			Key:  filepath.ToSlash(rel),
			Size: info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, utils.WrapError(fmt.Sprintf("listing prefix %s", prefix), err)
	}

	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })

	return objects, nil
}

// ListImmediateChildren returns the immediate child directory names
// directly under prefix, used by the backup mirror to enumerate
// "<dataset>_<slot>_prod" directories without walking their contents.
func (b *LocalBackend) ListImmediateChildren(prefix string) ([]string, error) {
	full := b.path(prefix)

	entries, err := os.ReadDir(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, utils.WrapError(fmt.Sprintf("reading directory %s", prefix), err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}

	sort.Strings(names)
	return names, nil
}

// HasPrefix reports whether name begins with prefix followed by "_",
// a small helper used when matching "<dataset>_<slot>_prod" names.
func HasPrefix(name, prefix string) bool {
	return strings.HasPrefix(name, prefix+"_")
}
