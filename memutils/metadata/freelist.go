package metadata

import (
	"fmt"

	"github.com/vkngwrapper/umalloc/memutils/arena"
)

// FreeList is a singly linked list of free blocks kept in address order. It is anchored by a
// sentinel: a permanently allocated block that is never handed to a caller.
type FreeList struct {
	sentinel Block
	length   int
	size     int
}

func newFreeList(sentinel Block) FreeList {
	return FreeList{sentinel: sentinel}
}

// Sentinel returns the head marker of the list
func (l *FreeList) Sentinel() Block { return l.sentinel }

// First returns the lowest-addressed free block, or a nil block if the list is empty
func (l *FreeList) First() Block { return l.sentinel.Next() }

// Len returns the number of blocks in the list
func (l *FreeList) Len() int { return l.length }

// SumSize returns the total size in bytes of every block in the list
func (l *FreeList) SumSize() int { return l.size }

func (l *FreeList) IsEmpty() bool { return l.length == 0 }

// Last returns the highest-addressed free block, or the sentinel if the list is empty
func (l *FreeList) Last() Block {
	last := l.sentinel
	for next := last.Next(); !next.IsNil(); next = next.Next() {
		last = next
	}
	return last
}

// FindPredecessor returns the last block in the list whose address is below addr. If there is
// no such block, the sentinel is returned.
func (l *FreeList) FindPredecessor(addr arena.Addr) Block {
	prev := l.sentinel
	for cur := prev.Next(); !cur.IsNil() && cur.Addr() < addr; cur = cur.Next() {
		prev = cur
	}
	return prev
}

// InsertAfter links block into the list directly after prev. The caller is responsible for
// choosing a prev that keeps the list in address order.
func (l *FreeList) InsertAfter(prev Block, block Block) {
	if block.IsNil() || block.addr == l.sentinel.addr {
		panic(fmt.Sprintf("cannot insert %s into the free list", block))
	}
	if block.IsAllocated() {
		panic(fmt.Sprintf("cannot insert allocated %s into the free list", block))
	}

	block.SetNext(prev.Next())
	prev.SetNext(block)
	l.length++
	l.size += block.Size()
}

// Insert links block into the list at its address-ordered position and returns its predecessor
func (l *FreeList) Insert(block Block) Block {
	prev := l.FindPredecessor(block.Addr())
	l.InsertAfter(prev, block)
	return prev
}

// RemoveAfter unlinks the block that follows prev and returns it
func (l *FreeList) RemoveAfter(prev Block) Block {
	block := prev.Next()
	if block.IsNil() {
		panic(fmt.Sprintf("%s has no successor to remove from the free list", prev))
	}

	prev.SetNext(block.Next())
	block.SetNext(Block{})
	l.length--
	l.size -= block.Size()
	return block
}

// MergeWithNext absorbs the successor of block into block. The two must be adjacent in memory.
func (l *FreeList) MergeWithNext(block Block) {
	next := block.Next()
	if next.IsNil() || block.End() != next.Addr() {
		panic(fmt.Sprintf("cannot merge %s with a block that does not follow it in memory", block))
	}

	block.setSize(block.Size() + next.Size())
	block.SetNext(next.Next())
	next.SetNext(Block{})
	l.length--
}

// shrink reduces the size of a block that stays in the list
func (l *FreeList) shrink(block Block, by int) {
	block.setSize(block.Size() - by)
	l.size -= by
}

// Visit calls visitor for every block in the list, in address order, until it returns an error
func (l *FreeList) Visit(visitor func(block Block) error) error {
	for cur := l.First(); !cur.IsNil(); cur = cur.Next() {
		err := visitor(cur)
		if err != nil {
			return err
		}
	}
	return nil
}
