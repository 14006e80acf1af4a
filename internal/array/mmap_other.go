//go:build !unix

package array

import (
	"fmt"
	"io"
	"os"
)

// MmapSupported reports whether file-backed arrays are real shared mappings
// on this platform.
const MmapSupported = false

// fileBacking keeps a heap copy of the file and writes it back on Force and
// Close when opened for writing.
type fileBacking struct {
	path     string
	data     []int64
	writable bool
}

func (fb *fileBacking) words() []int64 { return fb.data }

func (fb *fileBacking) force() error {
	if !fb.writable || fb.data == nil {
		return nil
	}
	return Wrap(fb.data).WriteFile(fb.path)
}

func (fb *fileBacking) close() error {
	err := fb.force()
	fb.data = nil
	return err
}

func openMapping(path string, mode openMode, size int) (backing, error) {
	fb := &fileBacking{path: path, writable: mode != modeRead}
	if mode == modeCreate {
		fb.data = make([]int64, size)
		if err := fb.force(); err != nil {
			return nil, err
		}
		return fb, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if st.Size()%WordSize != 0 {
		return nil, fmt.Errorf("size %d is not a whole number of words", st.Size())
	}
	fb.data = make([]int64, st.Size()/WordSize)
	if _, err := io.ReadFull(f, asBytes(fb.data)); err != nil {
		return nil, err
	}
	return fb, nil
}
