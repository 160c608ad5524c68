// setup_encoder.go binds a hardware frames context to an encoder context
// before encoding begins.

package hwdevice

import (
	"context"
	"fmt"

	"github.com/asticode/go-astiav"
	"github.com/facebookincubator/go-belt/tool/logger"
)

// NewFramesContextFunc builds a hardware frames context for an encoder
// bound to the given device, using hwPixelFormat as the hardware-side
// pixel format.
type NewFramesContextFunc func(
	ctx context.Context,
	encoderContext *astiav.CodecContext,
	dev *Device,
	hwPixelFormat astiav.PixelFormat,
) (*astiav.HardwareFramesContext, error)

const framesContextInitialPoolSize = 20

func newFramesContext(
	ctx context.Context,
	encoderContext *astiav.CodecContext,
	dev *Device,
	hwPixelFormat astiav.PixelFormat,
) (*astiav.HardwareFramesContext, error) {
	framesContext := astiav.AllocHardwareFramesContext(dev.DeviceContext)
	if framesContext == nil {
		return nil, fmt.Errorf("unable to allocate a hardware frame context")
	}
	framesContext.SetHardwarePixelFormat(hwPixelFormat)
	framesContext.SetSoftwarePixelFormat(encoderContext.PixelFormat())
	framesContext.SetWidth(encoderContext.Width())
	framesContext.SetHeight(encoderContext.Height())
	framesContext.SetInitialPoolSize(framesContextInitialPoolSize)
	if err := framesContext.Initialize(); err != nil {
		framesContext.Free()
		return nil, fmt.Errorf("unable to initialize the hardware frame context: %w", err)
	}
	return framesContext, nil
}

// SetupEncoder matches a registered device against the encoder codec's
// hardware configs and, when a frames-context-capable match exists,
// binds a freshly built frames context to the encoder context.
//
// A nil result with a nil error means the software encode path: no
// matching device, no frames-context-capable config, or frames-context
// construction failed (many codecs work without one, so that failure is
// non-fatal).
func (m *Manager) SetupEncoder(
	ctx context.Context,
	encoderContext *astiav.CodecContext,
	configs []HardwareConfig,
) (_ret *Device, _err error) {
	logger.Debugf(ctx, "SetupEncoder(ctx, %p, %d configs)", encoderContext, len(configs))
	defer func() {
		logger.Debugf(ctx, "/SetupEncoder(ctx, %p, %d configs): %v %v", encoderContext, len(configs), _ret, _err)
	}()

	dev := m.MatchByCodecConfigs(ctx, configs)
	if dev == nil {
		return nil, nil
	}

	cfg, ok := framesConfigForDevice(configs, dev)
	if !ok {
		return nil, nil
	}

	framesContext, err := m.NewFramesContext(ctx, encoderContext, dev, cfg.PixelFormat)
	if err != nil {
		logger.Debugf(ctx, "falling back to software encoding: %v", err)
		return nil, nil
	}
	if framesContext == nil {
		return nil, nil
	}

	if encoderContext != nil {
		encoderContext.SetHardwareFramesContext(framesContext)
	}
	return dev, nil
}
