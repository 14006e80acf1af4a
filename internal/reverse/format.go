// Package reverse builds and reads the reverse index: a words file holding a
// tree from term id to posting-list offset, and a documents file holding one
// tree per term from rank-biased document id to word metadata.
//
// The words file opens with a fixed header:
//
//	magic, version, wordsBlockBits, docsBlockBits, documentCount, postingCount
//
// followed by the words tree. Posting-list offsets point into the documents
// file, which has no header of its own. Neither file is checksummed; the
// sortedness and containment checks live in the package tests.
package reverse

import (
	"github.com/Adithya-Monish-Kumar-K/edge-index/internal/array"
	"github.com/Adithya-Monish-Kumar-K/edge-index/internal/btree"
	pkgerrors "github.com/Adithya-Monish-Kumar-K/edge-index/pkg/errors"
)

const (
	wordsMagic   int64 = 0x45495257524453 // "EIRWRDS"
	wordsVersion int64 = 1
	headerWords        = 6
	maxLayers          = 5
	entrySize          = 2
)

const (
	DefaultWordsBlockBits = 8
	DefaultDocsBlockBits  = 9
)

// treeContext describes both tree kinds: two words per entry, key first.
func treeContext(blockBits int) btree.Context {
	return btree.Context{MaxLayers: maxLayers, EntrySize: entrySize, BlockSizeBits: blockBits}
}

type fileHeader struct {
	wordsBits int
	docsBits  int
	documents int64
	postings  int64
}

func (h fileHeader) write(arr *array.LongArray) {
	arr.Set(0, wordsMagic)
	arr.Set(1, wordsVersion)
	arr.Set(2, int64(h.wordsBits))
	arr.Set(3, int64(h.docsBits))
	arr.Set(4, h.documents)
	arr.Set(5, h.postings)
}

func readFileHeader(arr *array.LongArray) (fileHeader, error) {
	if arr.Size() < headerWords {
		return fileHeader{}, pkgerrors.Newf(pkgerrors.ErrCorruptIndex, "words file holds %d words", arr.Size())
	}
	if arr.Get(0) != wordsMagic {
		return fileHeader{}, pkgerrors.Newf(pkgerrors.ErrCorruptIndex, "words file: bad magic %x", arr.Get(0))
	}
	if v := arr.Get(1); v != wordsVersion {
		return fileHeader{}, pkgerrors.Newf(pkgerrors.ErrCorruptIndex, "words file: unsupported version %d", v)
	}
	return fileHeader{
		wordsBits: int(arr.Get(2)),
		docsBits:  int(arr.Get(3)),
		documents: arr.Get(4),
		postings:  arr.Get(5),
	}, nil
}
