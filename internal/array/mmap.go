package array

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"unsafe"
)

// backing is the memory behind a region: the heap, a shared file mapping, or
// (where mapping is unavailable) a heap copy that is written back on Force.
type backing interface {
	words() []int64
	force() error
	close() error
}

type openMode int

const (
	modeRead openMode = iota
	modeModify
	modeCreate
)

type heapBacking struct {
	data []int64
}

func (h *heapBacking) words() []int64 { return h.data }
func (h *heapBacking) force() error   { return nil }
func (h *heapBacking) close() error {
	h.data = nil
	return nil
}

// MmapForReadingShared maps an existing file read-only. The array may be read
// from any number of goroutines and closed from any of them.
func MmapForReadingShared(path string) (*LongArray, error) {
	return mmap(path, modeRead, 0, true)
}

// MmapForReadingConfined maps an existing file read-only for use by a single
// goroutine.
func MmapForReadingConfined(path string) (*LongArray, error) {
	return mmap(path, modeRead, 0, false)
}

// MmapForWritingConfined creates (or truncates) path to hold size words and
// maps it read-write.
func MmapForWritingConfined(path string, size int) (*LongArray, error) {
	return mmap(path, modeCreate, size, false)
}

// MmapForModifyingShared maps an existing file read-write for use from
// several goroutines touching disjoint ranges.
func MmapForModifyingShared(path string) (*LongArray, error) {
	return mmap(path, modeModify, 0, true)
}

// MmapForModifyingConfined maps an existing file read-write for a single
// goroutine.
func MmapForModifyingConfined(path string) (*LongArray, error) {
	return mmap(path, modeModify, 0, false)
}

func mmap(path string, mode openMode, size int, shared bool) (*LongArray, error) {
	if size < 0 {
		return nil, fmt.Errorf("mapping %s: negative size %d", path, size)
	}
	b, err := openMapping(path, mode, size)
	if err != nil {
		return nil, fmt.Errorf("mapping %s: %w", path, err)
	}
	return newArray(b, shared, mode == modeRead), nil
}

// WriteTo dumps the view to w in host byte order.
func (a *LongArray) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(asBytes(a.data))
	return int64(n), err
}

// WriteFile dumps the view to a new file at path.
func (a *LongArray) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	bw := bufio.NewWriterSize(f, 1<<20)
	if _, err := a.WriteTo(bw); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("flushing %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("syncing %s: %w", path, err)
	}
	return f.Close()
}

// ByteOrder is the order words take on disk.
var ByteOrder = binary.NativeEndian

func asBytes(words []int64) []byte {
	if len(words) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&words[0])), len(words)*WordSize)
}

func asWords(raw []byte) []int64 {
	if len(raw) < WordSize {
		return nil
	}
	return unsafe.Slice((*int64)(unsafe.Pointer(&raw[0])), len(raw)/WordSize)
}
