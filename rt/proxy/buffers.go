package proxy

import (
	"fmt"
	"sync"
	"sync/atomic"
)

type BufferUsage uint8

const (
	BufferUsageVertex BufferUsage = iota
	BufferUsageIndex
)

// GPUBuffer is a device buffer owned by a SectionGroupProxy.
type GPUBuffer interface {
	Size() uint64
	Write(data []byte) error
	Release() error
}

// BufferAllocator creates device buffers. It is only called on the render thread.
type BufferAllocator interface {
	CreateBuffer(label string, usage BufferUsage, data []byte) (GPUBuffer, error)
}

// AlignedSize rounds n up to the 4 byte copy alignment required by GPU queues.
func AlignedSize(n int) uint64 {
	size := uint64(n)
	if size%4 != 0 {
		size += 4 - (size % 4)
	}
	return size
}

// NullAllocator keeps buffer contents in host memory. It is used when no
// device is available and in tests.
type NullAllocator struct {
	live    atomic.Int64
	created atomic.Int64
}

func NewNullAllocator() *NullAllocator { return &NullAllocator{} }

// Live is the number of buffers created and not yet released.
func (a *NullAllocator) Live() int64 { return a.live.Load() }

// Created is the number of buffers created over the allocator's lifetime.
func (a *NullAllocator) Created() int64 { return a.created.Load() }

func (a *NullAllocator) CreateBuffer(label string, usage BufferUsage, data []byte) (GPUBuffer, error) {
	b := &hostBuffer{owner: a, label: label, usage: usage, data: make([]byte, AlignedSize(len(data)))}
	copy(b.data, data)
	a.live.Add(1)
	a.created.Add(1)
	return b, nil
}

type hostBuffer struct {
	owner    *NullAllocator
	label    string
	usage    BufferUsage
	mu       sync.Mutex
	data     []byte
	released bool
}

func (b *hostBuffer) Size() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return uint64(len(b.data))
}

func (b *hostBuffer) Write(data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.released {
		return fmt.Errorf("buffer %s: write after release", b.label)
	}
	if uint64(len(data)) > uint64(len(b.data)) {
		return fmt.Errorf("buffer %s: write of %d bytes exceeds size %d", b.label, len(data), len(b.data))
	}
	copy(b.data, data)
	return nil
}

func (b *hostBuffer) Release() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.released {
		return fmt.Errorf("buffer %s: released twice", b.label)
	}
	b.released = true
	b.data = nil
	b.owner.live.Add(-1)
	return nil
}
