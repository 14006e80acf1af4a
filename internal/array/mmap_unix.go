//go:build unix

package array

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// MmapSupported reports whether file-backed arrays are real shared mappings
// on this platform.
const MmapSupported = true

type mmapBacking struct {
	raw  []byte
	data []int64
}

func (m *mmapBacking) words() []int64 { return m.data }

func (m *mmapBacking) force() error {
	if len(m.raw) == 0 {
		return nil
	}
	return unix.Msync(m.raw, unix.MS_SYNC)
}

func (m *mmapBacking) close() error {
	if m.raw == nil {
		return nil
	}
	err := unix.Munmap(m.raw)
	m.raw = nil
	m.data = nil
	return err
}

func openMapping(path string, mode openMode, size int) (backing, error) {
	flag := os.O_RDONLY
	prot := unix.PROT_READ
	switch mode {
	case modeModify:
		flag = os.O_RDWR
		prot |= unix.PROT_WRITE
	case modeCreate:
		flag = os.O_RDWR | os.O_CREATE | os.O_TRUNC
		prot |= unix.PROT_WRITE
	}
	f, err := os.OpenFile(path, flag, 0o644)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if mode == modeCreate {
		if err := f.Truncate(int64(size) * WordSize); err != nil {
			return nil, fmt.Errorf("sizing file: %w", err)
		}
	} else {
		st, err := f.Stat()
		if err != nil {
			return nil, err
		}
		if st.Size()%WordSize != 0 {
			return nil, fmt.Errorf("size %d is not a whole number of words", st.Size())
		}
		size = int(st.Size() / WordSize)
	}
	if size == 0 {
		return &mmapBacking{}, nil
	}

	raw, err := unix.Mmap(int(f.Fd()), 0, size*WordSize, prot, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap: %w", err)
	}
	if mode == modeRead {
		_ = unix.Madvise(raw, unix.MADV_RANDOM)
	}
	return &mmapBacking{raw: raw, data: asWords(raw)}, nil
}
