// setup_decoder.go binds a registered device to a decoder context before
// decoding begins.

package hwdevice

import (
	"context"

	"github.com/asticode/go-astiav"
	"github.com/facebookincubator/go-belt/tool/logger"
)

// SetupDecoder attaches the registered device of the requested type to
// the decoder context. `configs` is the decoder codec's hardware-config
// list (see CodecHardwareConfigs).
//
// When requestedType is HardwareDeviceTypeNone this is a no-op. When the
// codec declares no device-context-capable config at all it fails with
// ErrNoHardwareConfig; when the requested type has no registered device
// it fails with ErrNoSuitableDevice.
//
// The returned Device is the stream's borrow of the manager's device:
// the decoder context takes its own native reference, so closing the
// decoder never invalidates the manager's device (which is freed only by
// FreeAll).
func (m *Manager) SetupDecoder(
	ctx context.Context,
	decoderContext *astiav.CodecContext,
	configs []HardwareConfig,
	requestedType astiav.HardwareDeviceType,
) (_ret *Device, _err error) {
	logger.Debugf(ctx, "SetupDecoder(ctx, %p, %d configs, %s)", decoderContext, len(configs), typeName(requestedType))
	defer func() {
		logger.Debugf(ctx, "/SetupDecoder(ctx, %p, %d configs, %s): %v %v", decoderContext, len(configs), typeName(requestedType), _ret, _err)
	}()

	if requestedType == astiav.HardwareDeviceTypeNone {
		return nil, nil
	}

	var dev *Device
	haveDeviceContextConfig := false
	for _, cfg := range configs {
		if !cfg.Methods.Has(MethodDeviceContext) {
			continue
		}
		haveDeviceContextConfig = true
		if cfg.DeviceType != requestedType {
			continue
		}
		if d := m.GetByType(ctx, cfg.DeviceType); d != nil {
			dev = d
			break
		}
	}
	if dev == nil {
		if !haveDeviceContextConfig {
			return nil, ErrNoHardwareConfig{}
		}
		return nil, ErrNoSuitableDevice{Type: requestedType}
	}

	if decoderContext != nil {
		decoderContext.SetHardwareDeviceContext(dev.DeviceContext)
	}
	return dev, nil
}
