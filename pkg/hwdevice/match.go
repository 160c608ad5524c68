// match.go implements capability matching between codec hardware configs
// and registered devices.

package hwdevice

import (
	"context"

	"github.com/asticode/go-astiav"
)

// MethodFlags describes which binding methods a hardware config supports.
type MethodFlags uint

const (
	// MethodDeviceContext means the codec can be bound via a hardware
	// device context.
	MethodDeviceContext MethodFlags = 1 << iota
	// MethodFramesContext means the codec can be bound via a hardware
	// frames context.
	MethodFramesContext
)

func (f MethodFlags) Has(flag MethodFlags) bool {
	return f&flag != 0
}

// HardwareConfig is a plain-value view of one entry of a codec's
// hardware-config list.
type HardwareConfig struct {
	DeviceType  astiav.HardwareDeviceType
	Methods     MethodFlags
	PixelFormat astiav.PixelFormat
}

// CodecHardwareConfigs enumerates the hardware configs a codec declares,
// in declared order.
func CodecHardwareConfigs(codec *astiav.Codec) []HardwareConfig {
	if codec == nil {
		return nil
	}
	var r []HardwareConfig
	for _, cfg := range codec.HardwareConfigs() {
		var methods MethodFlags
		if cfg.MethodFlags().Has(astiav.CodecHardwareConfigMethodFlagHwDeviceCtx) {
			methods |= MethodDeviceContext
		}
		if cfg.MethodFlags().Has(astiav.CodecHardwareConfigMethodFlagHwFramesCtx) {
			methods |= MethodFramesContext
		}
		r = append(r, HardwareConfig{
			DeviceType:  cfg.HardwareDeviceType(),
			Methods:     methods,
			PixelFormat: cfg.PixelFormat(),
		})
	}
	return r
}

// MatchByCodecConfigs returns the device matching the first
// device-context-capable config whose device type has a (unique)
// registered device. nil means no hardware acceleration is applicable;
// that is a valid negotiated outcome, not an error.
func (m *Manager) MatchByCodecConfigs(
	ctx context.Context,
	configs []HardwareConfig,
) *Device {
	for _, cfg := range configs {
		if !cfg.Methods.Has(MethodDeviceContext) {
			continue
		}
		if dev := m.GetByType(ctx, cfg.DeviceType); dev != nil {
			return dev
		}
	}
	return nil
}

// MatchByCodec is a convenience wrapper around MatchByCodecConfigs.
func (m *Manager) MatchByCodec(
	ctx context.Context,
	codec *astiav.Codec,
) *Device {
	return m.MatchByCodecConfigs(ctx, CodecHardwareConfigs(codec))
}

// framesConfigForDevice returns the first frames-context-capable config
// declared for the device's type, if any.
func framesConfigForDevice(
	configs []HardwareConfig,
	dev *Device,
) (HardwareConfig, bool) {
	for _, cfg := range configs {
		if !cfg.Methods.Has(MethodFramesContext) {
			continue
		}
		if cfg.DeviceType != dev.Type {
			continue
		}
		return cfg, true
	}
	return HardwareConfig{}, false
}
