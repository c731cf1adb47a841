package gpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

// Device is a headless WebGPU device used by tools that upload mesh buffers
// without presenting anything.
type Device struct {
	Instance *wgpu.Instance
	Adapter  *wgpu.Adapter
	Device   *wgpu.Device
}

// OpenHeadless requests a high performance adapter with no surface.
func OpenHeadless() (*Device, error) {
	instance := wgpu.CreateInstance(nil)
	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		instance.Release()
		return nil, fmt.Errorf("request adapter: %w", err)
	}
	device, err := adapter.RequestDevice(nil)
	if err != nil {
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("request device: %w", err)
	}
	return &Device{Instance: instance, Adapter: adapter, Device: device}, nil
}

func (d *Device) Allocator() *Allocator { return NewAllocator(d.Device) }

func (d *Device) Release() {
	d.Device.Release()
	d.Adapter.Release()
	d.Instance.Release()
}
