package journal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/Adithya-Monish-Kumar-K/edge-index/pkg/errors"
)

func sampleEntries() []Entry {
	return []Entry{
		{DocID: 10, DocMeta: 7, Terms: []Term{{TermID: 1, Meta: 0x11}, {TermID: 2, Meta: 0x22}}},
		{DocID: 20, DocMeta: 8, Terms: []Term{{TermID: 2, Meta: 0x33}}},
		{DocID: 30, DocMeta: 9},
	}
}

func collect(t *testing.T, r Reader) []Entry {
	t.Helper()
	var out []Entry
	require.NoError(t, r.ForEach(func(v EntryView) error {
		out = append(out, v.Entry())
		return nil
	}))
	return out
}

func TestWriteAndReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "j.dat")
	require.NoError(t, WriteFile(path, sampleEntries()))

	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file should be renamed away")

	r, err := OpenFile(path)
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, 3, r.EntryCount())
	got := collect(t, r)
	require.Len(t, got, 3)
	assert.Equal(t, int64(10), got[0].DocID)
	assert.Equal(t, []Term{{TermID: 1, Meta: 0x11}, {TermID: 2, Meta: 0x22}}, got[0].Terms)
	assert.Equal(t, int64(9), got[2].DocMeta)
	assert.Empty(t, got[2].Terms)
}

func TestAbortLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "j.dat")
	w, err := NewWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.Put(sampleEntries()[0]))
	w.Abort()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Error(t, w.Put(sampleEntries()[1]))
}

func TestOpenFileRejectsBadInput(t *testing.T) {
	dir := t.TempDir()

	short := filepath.Join(dir, "short.dat")
	require.NoError(t, os.WriteFile(short, make([]byte, 16), 0644))
	_, err := OpenFile(short)
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.dat")
	require.NoError(t, os.WriteFile(bad, make([]byte, 64), 0644))
	_, err = OpenFile(bad)
	assert.ErrorContains(t, err, "bad magic")

	truncated := filepath.Join(dir, "truncated.dat")
	require.NoError(t, WriteFile(truncated, sampleEntries()))
	raw, err := os.ReadFile(truncated)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(truncated, raw[:len(raw)-8], 0644))
	_, err = OpenFile(truncated)
	assert.Error(t, err)
}

func TestFilteredDropsTermsAndEmptyEntries(t *testing.T) {
	r := Filtered(FromEntries(sampleEntries()), func(meta int64) bool { return meta != 0x33 })
	got := collect(t, r)
	require.Len(t, got, 1)
	assert.Equal(t, int64(10), got[0].DocID)
	assert.Len(t, got[0].Terms, 2)
}

func TestPagedWriterRotates(t *testing.T) {
	dir := t.TempDir()
	w, err := NewPagedWriter(dir, 2)
	require.NoError(t, err)

	for i := range 5 {
		require.NoError(t, w.Put(Entry{DocID: int64(i), Terms: []Term{{TermID: int64(i), Meta: 1}}}))
	}
	pages, err := listPages(dir, pageSuffix)
	require.NoError(t, err)
	assert.Len(t, pages, 2, "the fifth entry sits in an unpublished page")

	require.NoError(t, w.Close())
	pages, err = listPages(dir, pageSuffix)
	require.NoError(t, err)
	assert.Len(t, pages, 3)

	r, err := OpenPaged(dir)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, 5, r.EntryCount())
	got := collect(t, r)
	for i, e := range got {
		assert.Equal(t, int64(i), e.DocID)
	}
}

func TestPagedWriterResumesNumbering(t *testing.T) {
	dir := t.TempDir()
	w, err := NewPagedWriter(dir, 1)
	require.NoError(t, err)
	require.NoError(t, w.Put(Entry{DocID: 1}))
	require.NoError(t, w.Close())

	w, err = NewPagedWriter(dir, 1)
	require.NoError(t, err)
	require.NoError(t, w.Put(Entry{DocID: 2}))
	require.NoError(t, w.Close())

	pages, err := listPages(dir, pageSuffix)
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, 0, pages[0].n)
	assert.Equal(t, 1, pages[1].n)
}

func TestPositionsRoundTrip(t *testing.T) {
	entries := []Entry{
		{DocID: 1, Terms: []Term{{TermID: 4, Meta: 1, Positions: []int{0, 7, 300}}, {TermID: 9, Meta: 2}}},
		{DocID: 2, Terms: []Term{{TermID: 4, Meta: 3, Positions: []int{2}}}},
	}
	path := filepath.Join(t.TempDir(), "j.dat")
	require.NoError(t, WriteFile(path, entries))

	r, err := OpenFile(path)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, entries, collect(t, r))
	assert.Equal(t, entries, collect(t, FromEntries(entries)))

	for _, e := range collect(t, Filtered(r, func(int64) bool { return true })) {
		for _, term := range e.Terms {
			assert.Nil(t, term.Positions)
		}
	}
}

func TestPutRejectsUnorderedPositions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "j.dat")
	w, err := NewWriter(path)
	require.NoError(t, err)
	err = w.Put(Entry{DocID: 1, Terms: []Term{{TermID: 1, Positions: []int{5, 2}}}})
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidCodecInput)
	require.NoError(t, w.Put(sampleEntries()[0]))
	require.NoError(t, w.Close())

	r, err := OpenFile(path)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, []Entry{sampleEntries()[0]}, collect(t, r))
}

func TestPagedWriterRecoversUnpublishedPage(t *testing.T) {
	dir := t.TempDir()
	w, err := NewPagedWriter(dir, 100)
	require.NoError(t, err)
	for i := range 5 {
		require.NoError(t, w.Put(Entry{DocID: int64(i), Terms: []Term{{TermID: 7, Meta: 1, Positions: []int{i}}}}))
	}
	// The process dies: the page is never published and its last entry is
	// torn halfway through.
	tmp := w.current.tmpPath
	require.NoError(t, w.current.f.Close())
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_APPEND, 0)
	require.NoError(t, err)
	_, err = f.Write(make([]byte, 2*8))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	w, err = NewPagedWriter(dir, 100)
	require.NoError(t, err)
	_, err = os.Stat(tmp)
	assert.True(t, os.IsNotExist(err), "the unpublished page is published or removed")
	require.NoError(t, w.Put(Entry{DocID: 5, Terms: []Term{{TermID: 7, Meta: 1}}}))
	require.NoError(t, w.Close())

	pages, err := listPages(dir, pageSuffix)
	require.NoError(t, err)
	require.Len(t, pages, 2)

	r, err := OpenPaged(dir)
	require.NoError(t, err)
	defer r.Close()
	got := collect(t, r)
	require.Len(t, got, 6)
	for i, e := range got {
		assert.Equal(t, int64(i), e.DocID)
	}
	assert.Equal(t, []int{3}, got[3].Terms[0].Positions)
}

func TestPagedWriterDropsPageWithoutWholeEntry(t *testing.T) {
	dir := t.TempDir()
	tmp := filepath.Join(dir, pageName(0)+".tmp")
	require.NoError(t, os.WriteFile(tmp, make([]byte, (HeaderWords+2)*8), 0644))

	w, err := NewPagedWriter(dir, 10)
	require.NoError(t, err)
	_, err = os.Stat(tmp)
	assert.True(t, os.IsNotExist(err))
	require.NoError(t, w.Put(Entry{DocID: 1}))
	require.NoError(t, w.Close())

	pages, err := listPages(dir, pageSuffix)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, 0, pages[0].n)
}

func TestOpenPagedEmpty(t *testing.T) {
	_, err := OpenPaged(t.TempDir())
	assert.ErrorIs(t, err, pkgerrors.ErrEmptyJournal)

	_, err = OpenPaged(filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, pkgerrors.ErrEmptyJournal)

	_, err = NewPagedWriter(t.TempDir(), 0)
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidInput)
}
