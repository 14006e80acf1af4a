// Package btree implements the static search tree used for both the term
// dictionary and every posting list. A tree is written once into a word
// array and then only read, usually through a shared read-only mapping.
//
// Layout at the tree's offset:
//
//	header  3 words: layers<<56 | numEntries, indexOffset, dataOffset
//	index   layers of pages, top layer first; every key is the largest key of
//	        its child page (or data block), pages padded with math.MaxInt64
//	data    numEntries entries of EntrySize words, ascending by first word
//
// indexOffset and dataOffset are absolute word offsets into the array.
package btree

import "fmt"

// HeaderSize is the number of words in a tree header.
const HeaderSize = 3

const layerShift = 56

// Context fixes the shape of a family of trees.
type Context struct {
	MaxLayers     int
	EntrySize     int
	BlockSizeBits int
}

// PageSize is both the number of keys per index page and the number of
// entries per data block.
func (c Context) PageSize() int {
	return 1 << c.BlockSizeBits
}

func (c Context) Validate() error {
	if c.EntrySize < 1 {
		return fmt.Errorf("btree context: entry size %d", c.EntrySize)
	}
	if c.BlockSizeBits < 1 || c.BlockSizeBits > 16 {
		return fmt.Errorf("btree context: block size bits %d", c.BlockSizeBits)
	}
	if c.MaxLayers < 0 || c.MaxLayers > 0xFF {
		return fmt.Errorf("btree context: max layers %d", c.MaxLayers)
	}
	return nil
}

// layerKeys returns the number of real keys in each index layer, bottom layer
// first. It is empty when the data fits in one block.
func (c Context) layerKeys(numEntries int) []int {
	p := c.PageSize()
	var keys []int
	blocks := ceilDiv(numEntries, p)
	for blocks > 1 {
		keys = append(keys, blocks)
		blocks = ceilDiv(blocks, p)
	}
	return keys
}

// NumIndexLayers returns how many index layers a tree of numEntries needs.
func (c Context) NumIndexLayers(numEntries int) int {
	return len(c.layerKeys(numEntries))
}

func (c Context) indexWords(numEntries int) int {
	p := c.PageSize()
	total := 0
	for _, k := range c.layerKeys(numEntries) {
		total += ceilDiv(k, p) * p
	}
	return total
}

// CalculateSize returns the words a tree of numEntries occupies.
func (c Context) CalculateSize(numEntries int) int {
	return HeaderSize + c.indexWords(numEntries) + numEntries*c.EntrySize
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
