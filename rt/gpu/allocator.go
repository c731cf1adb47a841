// Package gpu backs proxy stream buffers with WebGPU device buffers.
package gpu

import (
	"fmt"

	"github.com/gekko3d/realtimemesh/rt/proxy"

	"github.com/cogentcore/webgpu/wgpu"
)

// Headroom is extra capacity added to every new buffer so small stream
// growth can be written in place.
const Headroom = 4 * 1024

// Allocator creates wgpu buffers for section group streams.
type Allocator struct {
	Device   *wgpu.Device
	Headroom int
}

func NewAllocator(device *wgpu.Device) *Allocator {
	return &Allocator{Device: device, Headroom: Headroom}
}

func usageFlags(usage proxy.BufferUsage) wgpu.BufferUsage {
	if usage == proxy.BufferUsageIndex {
		return wgpu.BufferUsageIndex | wgpu.BufferUsageCopyDst
	}
	return wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst
}

// bufferSize mirrors proxy.AlignedSize after adding headroom.
func bufferSize(dataLen, headroom int) uint64 {
	return proxy.AlignedSize(dataLen + headroom)
}

func (a *Allocator) CreateBuffer(label string, usage proxy.BufferUsage, data []byte) (proxy.GPUBuffer, error) {
	desc := &wgpu.BufferDescriptor{
		Label:            label,
		Size:             bufferSize(len(data), a.Headroom),
		Usage:            usageFlags(usage),
		MappedAtCreation: false,
	}
	buf, err := a.Device.CreateBuffer(desc)
	if err != nil {
		return nil, fmt.Errorf("create buffer %s: %w", label, err)
	}
	b := &deviceBuffer{queue: a.Device.GetQueue(), buf: buf, label: label}
	if len(data) > 0 {
		if err := b.Write(data); err != nil {
			buf.Release()
			return nil, err
		}
	}
	return b, nil
}

type deviceBuffer struct {
	queue    *wgpu.Queue
	buf      *wgpu.Buffer
	label    string
	released bool
}

func (b *deviceBuffer) Size() uint64 {
	if b.released {
		return 0
	}
	return b.buf.GetSize()
}

func (b *deviceBuffer) Write(data []byte) error {
	if b.released {
		return fmt.Errorf("buffer %s: write after release", b.label)
	}
	// Queue writes must be a multiple of 4 bytes.
	if pad := int(proxy.AlignedSize(len(data))) - len(data); pad > 0 {
		padded := make([]byte, len(data)+pad)
		copy(padded, data)
		data = padded
	}
	if err := b.queue.WriteBuffer(b.buf, 0, data); err != nil {
		return fmt.Errorf("write buffer %s: %w", b.label, err)
	}
	return nil
}

func (b *deviceBuffer) Release() error {
	if b.released {
		return fmt.Errorf("buffer %s: released twice", b.label)
	}
	b.released = true
	b.buf.Release()
	return nil
}
