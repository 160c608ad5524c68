// manager.go implements the device manager: an ordered collection of
// active hardware devices with name/type lookup and process-shutdown
// teardown.

package hwdevice

import (
	"context"
	"fmt"

	"github.com/asticode/go-astiav"
	"github.com/asticode/go-astikit"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/avpipeline/types"
	"github.com/xaionaro-go/xsync"
)

// CreateDeviceContextFunc creates a native hardware device context of the
// given type. `backend` is a backend-specific device identifier (may be
// empty for the backend's default device).
type CreateDeviceContextFunc func(
	ctx context.Context,
	deviceType astiav.HardwareDeviceType,
	backend string,
	options types.DictionaryItems,
) (*astiav.HardwareDeviceContext, error)

// DeriveDeviceContextFunc creates a native hardware device context of the
// given type derived from an already initialized device.
type DeriveDeviceContextFunc func(
	ctx context.Context,
	deviceType astiav.HardwareDeviceType,
	src *Device,
) (*astiav.HardwareDeviceContext, error)

// Manager owns every active hardware device. It is constructed by the
// pipeline driver before stream setup and torn down (FreeAll) after all
// streams and filter graphs released their bindings. Devices are never
// removed individually.
type Manager struct {
	// CreateDeviceContext and DeriveDeviceContext are the native creation
	// seams; they default to astiav-backed implementations and may be
	// replaced before the first DeviceInit* call (e.g. in tests).
	CreateDeviceContext CreateDeviceContextFunc
	DeriveDeviceContext DeriveDeviceContextFunc

	// NewFramesContext is the frames-context construction seam used by
	// SetupEncoder; defaults to an astiav-backed implementation.
	NewFramesContext NewFramesContextFunc

	locker  xsync.Mutex
	devices []*Device
	closer  *astikit.Closer
}

func NewManager(ctx context.Context) *Manager {
	m := &Manager{
		closer: astikit.NewCloser(),
	}
	m.CreateDeviceContext = createDeviceContext
	m.DeriveDeviceContext = m.deriveDeviceContext
	m.NewFramesContext = newFramesContext
	logger.Tracef(ctx, "NewManager: %p", m)
	return m
}

// GetByName returns the registered device with exactly this name, or nil.
func (m *Manager) GetByName(
	ctx context.Context,
	name types.HardwareDeviceName,
) *Device {
	return xsync.DoR1(ctx, &m.locker, func() *Device {
		return m.getByNameLocked(name)
	})
}

func (m *Manager) getByNameLocked(name types.HardwareDeviceName) *Device {
	for _, dev := range m.devices {
		if dev.Name == name {
			return dev
		}
	}
	return nil
}

// GetByType returns the registered device of this type if exactly one
// exists. Both "no device" and "more than one device" return nil;
// callers that need to tell them apart must scan Devices() themselves.
func (m *Manager) GetByType(
	ctx context.Context,
	deviceType astiav.HardwareDeviceType,
) *Device {
	return xsync.DoR1(ctx, &m.locker, func() *Device {
		return m.getByTypeLocked(deviceType)
	})
}

func (m *Manager) getByTypeLocked(deviceType astiav.HardwareDeviceType) *Device {
	var found *Device
	for _, dev := range m.devices {
		if dev.Type != deviceType {
			continue
		}
		if found != nil {
			return nil
		}
		found = dev
	}
	return found
}

// Devices returns a snapshot of the registered devices in registration
// order.
func (m *Manager) Devices(ctx context.Context) []*Device {
	return xsync.DoR1(ctx, &m.locker, func() []*Device {
		r := make([]*Device, len(m.devices))
		copy(r, m.devices)
		return r
	})
}

// Add registers an externally constructed device. The manager takes
// ownership of the device context: it is freed at FreeAll.
func (m *Manager) Add(
	ctx context.Context,
	dev *Device,
) (_err error) {
	logger.Debugf(ctx, "Add(ctx, %s)", dev)
	defer func() { logger.Debugf(ctx, "/Add(ctx, %s): %v", dev, _err) }()
	return xsync.DoR1(ctx, &m.locker, func() error {
		return m.addLocked(dev)
	})
}

func (m *Manager) addLocked(dev *Device) error {
	if dev == nil || dev.DeviceContext == nil {
		return fmt.Errorf("unable to register a device without a device context")
	}
	if m.getByNameLocked(dev.Name) != nil {
		return ErrDeviceAlreadyExists{Name: dev.Name}
	}
	m.devices = append(m.devices, dev)
	m.closer.Add(dev.DeviceContext.Free)
	return nil
}

// FreeAll releases every registered device and resets the manager to
// empty. It is supposed to be called exactly once at shutdown, after
// everything that borrowed a device released it; it must not race with
// any other manager operation on other goroutines holding bindings.
func (m *Manager) FreeAll(ctx context.Context) (_err error) {
	logger.Debugf(ctx, "FreeAll")
	defer func() { logger.Debugf(ctx, "/FreeAll: %v", _err) }()
	return xsync.DoR1(ctx, &m.locker, func() error {
		err := m.closer.Close()
		m.devices = nil
		m.closer = astikit.NewCloser()
		if err != nil {
			return fmt.Errorf("unable to free the registered devices: %w", err)
		}
		return nil
	})
}
