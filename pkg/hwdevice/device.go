// device.go defines the Device type: a named handle to a hardware
// acceleration context.

// Package hwdevice manages hardware acceleration device contexts:
// parsing device specifications, registering/deduplicating devices,
// matching codec hardware configs against them, and binding the
// resulting contexts to decoders, encoders and filter graphs.
package hwdevice

import (
	"fmt"
	"strings"

	"github.com/asticode/go-astiav"
	"github.com/xaionaro-go/avpipeline/types"
)

type Device struct {
	Name          types.HardwareDeviceName
	Type          astiav.HardwareDeviceType
	DeviceContext *astiav.HardwareDeviceContext

	// backend is the backend-specific device identifier the context was
	// created with (e.g. "/dev/dri/renderD128"); empty when the backend
	// picked a default. The default derivation path reuses it.
	backend string
}

func (d *Device) String() string {
	if d == nil {
		return "Device(nil)"
	}
	return fmt.Sprintf("Device(%s:%s)", typeName(d.Type), d.Name)
}

func typeName(t astiav.HardwareDeviceType) string {
	return strings.ToLower(strings.TrimSpace(t.String()))
}
