// reencode.go: the optional re-encode stage of the remix command. The
// produced packets are only counted, not muxed anywhere.

package commands

import (
	"context"
	"errors"

	"github.com/asticode/go-astiav"
	"github.com/asticode/go-astikit"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/avpipeline/packet"

	"github.com/xaionaro-go/avhw/pkg/hwdevice"
)

type reEncoder struct {
	codecContext *astiav.CodecContext
	bytes        uint64
}

func newReEncoder(
	ctx context.Context,
	mgr *hwdevice.Manager,
	closer *astikit.Closer,
	encoderName string,
	decCtx *astiav.CodecContext,
) *reEncoder {
	encCodec := astiav.FindEncoderByName(encoderName)
	if encCodec == nil {
		logger.Fatalf(ctx, "unable to find an encoder named '%s'", encoderName)
	}
	encCtx := astiav.AllocCodecContext(encCodec)
	if encCtx == nil {
		logger.Fatalf(ctx, "unable to allocate an encoder context")
	}
	closer.Add(encCtx.Free)

	encCtx.SetSampleFormat(decCtx.SampleFormat())
	encCtx.SetSampleRate(decCtx.SampleRate())
	encCtx.SetChannelLayout(decCtx.ChannelLayout())
	encCtx.SetTimeBase(astiav.NewRational(1, decCtx.SampleRate()))

	dev, err := mgr.SetupEncoder(ctx, encCtx, hwdevice.CodecHardwareConfigs(encCodec))
	assertNoError(ctx, err)
	if dev != nil {
		logger.Infof(ctx, "encoding on %s", dev)
	}

	assertNoError(ctx, encCtx.Open(encCodec, nil))
	return &reEncoder{codecContext: encCtx}
}

// encode sends one frame to the encoder and drains the produced packets;
// a nil frame flushes.
func (e *reEncoder) encode(ctx context.Context, f *astiav.Frame) error {
	if err := e.codecContext.SendFrame(f); err != nil {
		if errors.Is(err, astiav.ErrEagain) {
			return nil
		}
		return err
	}
	pkt := packet.Pool.Get()
	defer packet.Pool.Put(pkt)
	for {
		err := e.codecContext.ReceivePacket(pkt)
		if err != nil {
			if errors.Is(err, astiav.ErrEof) || errors.Is(err, astiav.ErrEagain) {
				return nil
			}
			return err
		}
		e.bytes += uint64(pkt.Size())
		metricBytesEncoded.Add(float64(pkt.Size()))
		pkt.Unref()
	}
}
