// Package geometry derives the bit layout of a set-associative cache and
// splits addresses into tag, index and offset fields.
package geometry

import (
	"fmt"
	"math/bits"
)

// AddressWidth is the number of bits in every traced address.
const AddressWidth = 32

// KB is the number of bytes in a kilobyte.
const KB = 1024

// A Geometry describes the shape of a cache. It is immutable once created.
type Geometry struct {
	ways       int
	blockSize  int
	numSets    int
	indexBits  int
	offsetBits int
	tagBits    int
}

// New derives a geometry from the associativity, the total capacity in bytes
// and the block size in bytes.
func New(ways int, capacityBytes uint64, blockSize int) (Geometry, error) {
	if ways <= 0 {
		return Geometry{}, newConfigError("ways", ways, "must be positive")
	}

	if capacityBytes == 0 {
		return Geometry{}, newConfigError(
			"capacity", capacityBytes, "must be positive")
	}

	if blockSize <= 0 {
		return Geometry{}, newConfigError(
			"blockSize", blockSize, "must be positive")
	}

	if !isPowerOfTwo(uint64(blockSize)) {
		return Geometry{}, newConfigError(
			"blockSize", blockSize, "must be a power of two")
	}

	setBytes := uint64(blockSize) * uint64(ways)
	if capacityBytes%setBytes != 0 {
		return Geometry{}, newConfigError("capacity", capacityBytes,
			fmt.Sprintf("must be a multiple of blockSize*ways (%d)", setBytes))
	}

	numSets := capacityBytes / setBytes
	if !isPowerOfTwo(numSets) {
		return Geometry{}, newConfigError(
			"numSets", numSets, "must be a power of two")
	}

	g := Geometry{
		ways:       ways,
		blockSize:  blockSize,
		numSets:    int(numSets),
		indexBits:  log2(numSets),
		offsetBits: log2(uint64(blockSize)),
	}

	if g.indexBits+g.offsetBits > AddressWidth {
		return Geometry{}, newConfigError("indexBits+offsetBits",
			g.indexBits+g.offsetBits,
			fmt.Sprintf("must not exceed the %d-bit address", AddressWidth))
	}

	g.tagBits = AddressWidth - g.indexBits - g.offsetBits

	return g, nil
}

// NewFromKB is New with the capacity given in kilobytes.
func NewFromKB(ways, cacheSizeKB, blockSize int) (Geometry, error) {
	if cacheSizeKB <= 0 {
		return Geometry{}, newConfigError(
			"cacheSizeKB", cacheSizeKB, "must be positive")
	}

	return New(ways, uint64(cacheSizeKB)*KB, blockSize)
}

// Ways returns the number of lines per set.
func (g Geometry) Ways() int { return g.ways }

// BlockSize returns the block size in bytes.
func (g Geometry) BlockSize() int { return g.blockSize }

// NumSets returns the number of sets.
func (g Geometry) NumSets() int { return g.numSets }

// IndexBits returns the width of the index field.
func (g Geometry) IndexBits() int { return g.indexBits }

// OffsetBits returns the width of the offset field.
func (g Geometry) OffsetBits() int { return g.offsetBits }

// TagBits returns the width of the tag field.
func (g Geometry) TagBits() int { return g.tagBits }

// CapacityBytes returns the total number of bytes the cache can hold.
func (g Geometry) CapacityBytes() uint64 {
	return uint64(g.numSets) * uint64(g.ways) * uint64(g.blockSize)
}

func (g Geometry) String() string {
	return fmt.Sprintf(
		"%d-way, %d sets, %dB blocks (tag %d, index %d, offset %d bits)",
		g.ways, g.numSets, g.blockSize, g.tagBits, g.indexBits, g.offsetBits)
}

func isPowerOfTwo(v uint64) bool {
	return v != 0 && v&(v-1) == 0
}

func log2(v uint64) int {
	return bits.TrailingZeros64(v)
}
