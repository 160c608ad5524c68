// errors.go defines the error types returned by the hwdevice package.

package hwdevice

import (
	"fmt"

	"github.com/asticode/go-astiav"
	"github.com/xaionaro-go/avpipeline/types"
)

// ErrInvalidDeviceSpec is returned when a textual device specification
// cannot be parsed or refers to something that does not exist.
type ErrInvalidDeviceSpec struct {
	Spec   string
	Reason string
}

func (e ErrInvalidDeviceSpec) Error() string {
	return fmt.Sprintf("invalid device specification %q: %s", e.Spec, e.Reason)
}

// ErrDeviceAlreadyExists is returned when registering a device under a
// name that is already taken.
type ErrDeviceAlreadyExists struct {
	Name types.HardwareDeviceName
}

func (e ErrDeviceAlreadyExists) Error() string {
	return fmt.Sprintf("named device already exists: %q", e.Name)
}

// ErrNoSuitableDevice is returned by the decoder setup when the requested
// hardware device type has no registered device.
type ErrNoSuitableDevice struct {
	Type astiav.HardwareDeviceType
}

func (e ErrNoSuitableDevice) Error() string {
	return fmt.Sprintf("no suitable hardware device found for type '%s'", typeName(e.Type))
}

// ErrNoHardwareConfig is returned when a codec declares no hardware
// config capable of device-context binding at all.
type ErrNoHardwareConfig struct{}

func (e ErrNoHardwareConfig) Error() string {
	return "decoder does not support any hardware device type"
}
