package cache

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	recordExt = ".rec"
	maxKeyLen = 64 << 10
)

// FileBackend stores one file per key inside a directory.
// File names are the hex SHA-256 of the key; each file starts with the
// uvarint-prefixed key so the index can be rebuilt from the directory alone.
type FileBackend struct {
	dir string // Absolute path
}

// NewFileBackend creates the directory if needed and verifies it is writable.
func NewFileBackend(dir string) (*FileBackend, error) {
	if dir == "" {
		return nil, ErrInvalidLocation
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLocation, err)
	}
	if err := os.MkdirAll(absDir, 0755); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLocation, err)
	}

	probe, err := os.CreateTemp(absDir, ".probe-*")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLocation, err)
	}
	_ = probe.Close()
	_ = os.Remove(probe.Name())

	return &FileBackend{dir: absDir}, nil
}

// Dir returns the absolute directory the backend writes to.
func (b *FileBackend) Dir() string {
	return b.dir
}

// Write replaces the record atomically via a temporary file and rename.
func (b *FileBackend) Write(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(key) > maxKeyLen {
		return fmt.Errorf("%w: key is %d bytes, limit is %d", ErrFailedToWriteRecord, len(key), maxKeyLen)
	}

	tmp, err := os.CreateTemp(b.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFailedToWriteRecord, err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	header := binary.AppendUvarint(nil, uint64(len(key)))
	header = append(header, key...)
	if _, err := tmp.Write(header); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: %v", ErrFailedToWriteRecord, err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: %v", ErrFailedToWriteRecord, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrFailedToWriteRecord, err)
	}

	if err := os.Rename(tmp.Name(), b.path(key)); err != nil {
		return fmt.Errorf("%w: %v", ErrFailedToWriteRecord, err)
	}
	return nil
}

// Read returns the payload and refreshes the file's modification time, which
// List reports as the access time.
func (b *FileBackend) Read(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := b.path(key)
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrFailedToReadRecord, err)
	}
	defer func() { _ = f.Close() }()

	r := bufio.NewReader(f)
	stored, err := readRecordKey(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFailedToReadRecord, err)
	}
	if stored != key {
		return nil, ErrNotFound
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFailedToReadRecord, err)
	}

	now := time.Now()
	_ = os.Chtimes(path, now, now)
	return data, nil
}

func (b *FileBackend) Delete(_ context.Context, key string) error {
	if err := os.Remove(b.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %v", ErrFailedToDeleteRecord, err)
	}
	return nil
}

// Clear removes every record file. Unrelated files in the directory are kept.
func (b *FileBackend) Clear(ctx context.Context) error {
	names, err := b.recordFiles()
	if err != nil {
		return err
	}
	var errs []error
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := os.Remove(filepath.Join(b.dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errors.Join(append([]error{ErrFailedToDeleteRecord}, errs...)...)
	}
	return nil
}

// List reports every readable record. Files that cannot be parsed are skipped.
func (b *FileBackend) List(ctx context.Context) ([]BackendRecord, error) {
	names, err := b.recordFiles()
	if err != nil {
		return nil, err
	}

	out := make([]BackendRecord, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := b.stat(filepath.Join(b.dir, name))
		if err != nil {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (b *FileBackend) stat(path string) (BackendRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return BackendRecord{}, err
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return BackendRecord{}, err
	}
	key, err := readRecordKey(bufio.NewReader(f))
	if err != nil {
		return BackendRecord{}, err
	}
	headerLen := int64(len(binary.AppendUvarint(nil, uint64(len(key))))) + int64(len(key))

	return BackendRecord{
		Key:        key,
		Size:       info.Size() - headerLen,
		AccessedAt: info.ModTime(),
	}, nil
}

func (b *FileBackend) recordFiles() ([]string, error) {
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFailedToReadRecord, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() && strings.HasSuffix(e.Name(), recordExt) {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

func (b *FileBackend) path(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(b.dir, hex.EncodeToString(sum[:])+recordExt)
}

func readRecordKey(r *bufio.Reader) (string, error) {
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return "", err
	}
	if n > maxKeyLen {
		return "", ErrCorruptRecord
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}
