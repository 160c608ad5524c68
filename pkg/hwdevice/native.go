// native.go contains the default (astiav-backed) implementations of the
// device context creation seams.

package hwdevice

import (
	"context"
	"fmt"

	"github.com/asticode/go-astiav"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/avpipeline/types"
)

func createDeviceContext(
	ctx context.Context,
	deviceType astiav.HardwareDeviceType,
	backend string,
	options types.DictionaryItems,
) (_ret *astiav.HardwareDeviceContext, _err error) {
	logger.Tracef(ctx, "createDeviceContext(%s, '%s', %v)", typeName(deviceType), backend, options)
	defer func() {
		logger.Tracef(ctx, "/createDeviceContext(%s, '%s', %v): %p %v", typeName(deviceType), backend, options, _ret, _err)
	}()

	var dict *astiav.Dictionary
	if len(options) > 0 {
		dict = astiav.NewDictionary()
		defer dict.Free()
		for _, item := range options {
			dict.Set(item.Key, item.Value, 0)
		}
	}

	deviceContext, err := astiav.CreateHardwareDeviceContext(deviceType, backend, dict, 0)
	if err != nil {
		return nil, fmt.Errorf("unable to create a hardware (%s:%s) device context: %w", typeName(deviceType), backend, err)
	}
	return deviceContext, nil
}

// deriveDeviceContext is the default DeriveDeviceContext implementation.
//
// libav's av_hwdevice_ctx_create_derived is not exposed by the bindings,
// so the closest supported behavior is opening the source device's
// backend identifier under the target type. Callers that need true
// context sharing (zero-copy interop) should inject their own
// DeriveDeviceContextFunc.
func (m *Manager) deriveDeviceContext(
	ctx context.Context,
	deviceType astiav.HardwareDeviceType,
	src *Device,
) (*astiav.HardwareDeviceContext, error) {
	logger.Debugf(ctx, "deriving a '%s' device from %s", typeName(deviceType), src)
	return m.CreateDeviceContext(ctx, deviceType, src.backend, nil)
}
