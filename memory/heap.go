package memory

import (
	"errors"
	"unsafe"
)

// ErrOutOfMemory is returned by Heap.Alloc when no free block large
// enough for the request exists. The allocator never compacts beyond
// the coalescing Free performs, so this can happen even when the sum
// of all free bytes exceeds the request.
var ErrOutOfMemory = errors.New("memory: heap allocation failed")

// noNext marks a header as the tail of the chain.
const noNext = ^uint32(0)

// blockHeader is the in-band header preceding every heap payload. All
// three fields are uint32 so the header itself, and therefore every
// payload that follows it, stays 4-byte aligned.
type blockHeader struct {
	size uint32 // payload size in bytes, rounded up to a multiple of 4
	free uint32 // 1 if free, 0 if allocated
	next uint32 // byte offset of the next header, or noNext for the tail
}

const headerSize = uint32(unsafe.Sizeof(blockHeader{}))

// Block is an opaque handle to a heap allocation: the payload's byte
// offset within the arena. It stands in for the bare pointer the spec
// describes — callers never see raw addresses, only handles that Free
// consumes. A Block does not record which Heap produced it or its
// length; the length is read from the in-band header (see Len).
type Block struct {
	offset uint32
}

// Heap is a contiguous, fixed-size arena carved into a singly linked
// chain of in-band headers, in address order. Allocation is best-fit
// with first-exact-match short-circuiting; Free coalesces adjacent
// free blocks so no two neighbors are ever both free.
type Heap struct {
	buf []byte
}

// NewHeap reserves a Heap arena of exactly size bytes and installs the
// initial single free block spanning the whole arena.
func NewHeap(size uint32) *Heap {
	h := &Heap{buf: make([]byte, size)}
	root := h.headerAt(0)
	root.size = size - headerSize
	root.free = 1
	root.next = noNext
	return h
}

// Size returns the arena's fixed capacity in bytes, header space
// included.
func (h *Heap) Size() uint32 {
	return uint32(len(h.buf))
}

func (h *Heap) headerAt(offset uint32) *blockHeader {
	return (*blockHeader)(unsafe.Pointer(&h.buf[offset]))
}

func payloadOffset(headerOffset uint32) uint32 {
	return headerOffset + headerSize
}

func headerOffset(blockOffset uint32) uint32 {
	return blockOffset - headerSize
}

// Alloc reserves n bytes, rounded up to a multiple of 4, using a
// best-fit search over the free list; an exact-size match short
// circuits the search. The chosen block is split iff the remainder
// can hold another header plus at least 4 payload bytes, otherwise
// the whole block is consumed (internal fragmentation is accepted).
// Alloc returns ErrOutOfMemory when no free block is large enough.
func (h *Heap) Alloc(n uint32) (Block, error) {
	if n > h.Size() {
		return Block{}, ErrOutOfMemory
	}
	size := (n + 3) &^ 3

	var best uint32
	bestSize := uint32(0)
	found := false

	for off := uint32(0); ; {
		hdr := h.headerAt(off)
		if hdr.free != 0 && hdr.size >= size {
			if !found || hdr.size < bestSize {
				best = off
				bestSize = hdr.size
				found = true
			}
			if hdr.size == size {
				break // perfect match
			}
		}
		if hdr.next == noNext {
			break
		}
		off = hdr.next
	}

	if !found {
		return Block{}, ErrOutOfMemory
	}

	bestHdr := h.headerAt(best)
	const minSplit = headerSize + 4
	if bestHdr.size >= size+minSplit {
		nextOff := best + headerSize + size
		nextHdr := h.headerAt(nextOff)
		nextHdr.size = bestHdr.size - size - headerSize
		nextHdr.free = 1
		nextHdr.next = bestHdr.next

		bestHdr.size = size
		bestHdr.next = nextOff
	}

	bestHdr.free = 0
	return Block{offset: payloadOffset(best)}, nil
}

// Free returns a block previously returned by Alloc to the heap. A
// zero-value Block is a no-op, mirroring heap_free(NULL). Freeing an
// already-free block is undefined by the spec; this implementation
// detects it via the free flag and returns silently rather than
// corrupting the chain.
func (h *Heap) Free(b Block) {
	if b.offset == 0 {
		return
	}

	off := headerOffset(b.offset)
	hdr := h.headerAt(off)
	if hdr.free != 0 {
		return // double free: silently ignored, per spec
	}
	hdr.free = 1

	// Fold the immediate successor first, if it's free.
	if hdr.next != noNext {
		nextHdr := h.headerAt(hdr.next)
		if nextHdr.free != 0 {
			hdr.size += headerSize + nextHdr.size
			hdr.next = nextHdr.next
		}
	}

	// Global forward sweep: join every remaining adjacent free pair.
	// Addresses increase monotonically along the chain, so once the
	// sweep has passed the freed block with nothing left to join, it
	// can stop.
	for cur := uint32(0); ; {
		curHdr := h.headerAt(cur)
		if curHdr.next == noNext {
			break
		}
		nextHdr := h.headerAt(curHdr.next)
		if curHdr.free != 0 && nextHdr.free != 0 {
			curHdr.size += headerSize + nextHdr.size
			curHdr.next = nextHdr.next
			continue // re-check cur against its new neighbor
		}
		if cur > off {
			break
		}
		cur = curHdr.next
	}
}

// Bytes returns the payload slice backing b. The returned slice
// aliases the heap's internal buffer and must not be retained past
// the matching Free.
func (h *Heap) Bytes(b Block) []byte {
	off := headerOffset(b.offset)
	hdr := h.headerAt(off)
	return h.buf[b.offset : b.offset+hdr.size]
}

// Len returns the payload length of the allocation backing b.
func (h *Heap) Len(b Block) uint32 {
	hdr := h.headerAt(headerOffset(b.offset))
	return hdr.size
}

// FreeBlockCount walks the chain and returns the number of free
// blocks currently in it. Intended for tests asserting the
// "no two adjacent free blocks" and full-coalesce invariants.
func (h *Heap) FreeBlockCount() int {
	count := 0
	for off := uint32(0); ; {
		hdr := h.headerAt(off)
		if hdr.free != 0 {
			count++
		}
		if hdr.next == noNext {
			break
		}
		off = hdr.next
	}
	return count
}

// LargestFree returns the payload size of the largest free block
// currently in the chain, or 0 if none is free.
func (h *Heap) LargestFree() uint32 {
	var largest uint32
	for off := uint32(0); ; {
		hdr := h.headerAt(off)
		if hdr.free != 0 && hdr.size > largest {
			largest = hdr.size
		}
		if hdr.next == noNext {
			break
		}
		off = hdr.next
	}
	return largest
}
