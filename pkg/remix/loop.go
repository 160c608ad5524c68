// loop.go implements the blocking decode loop that remixes every frame
// of one audio stream.

package remix

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/asticode/go-astiav"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/avpipeline/frame"
	"github.com/xaionaro-go/avpipeline/packet"
)

// PacketSource yields demuxed packets; satisfied by
// *astiav.FormatContext.
type PacketSource interface {
	ReadFrame(*astiav.Packet) error
}

// Decoder is the decoding surface the loop drives; satisfied by
// *astiav.CodecContext.
type Decoder interface {
	SendPacket(*astiav.Packet) error
	ReceiveFrame(*astiav.Frame) error
}

// OnFrameFunc receives every remixed frame. The frame is only valid for
// the duration of the call; the callback must copy (or Ref) it to keep
// it.
type OnFrameFunc func(ctx context.Context, f *astiav.Frame) error

// Loop reads packets from the source until end of stream, feeds the ones
// of the given stream to the decoder, remixes every decoded frame with
// `m` and hands it to onFrame. Decoder "send me more" and "drained"
// signals keep the loop going; any other failure stops it and is
// returned as-is. A clean end of stream returns io.EOF.
func Loop(
	ctx context.Context,
	source PacketSource,
	streamIndex int,
	decoder Decoder,
	m Map,
	onFrame OnFrameFunc,
) (_err error) {
	logger.Debugf(ctx, "Loop(ctx, source, %d, decoder, %s, onFrame)", streamIndex, m)
	defer func() {
		logger.Debugf(ctx, "/Loop(ctx, source, %d, decoder, %s, onFrame): %v", streamIndex, m, _err)
	}()

	pkt := packet.Pool.Get()
	defer packet.Pool.Put(pkt)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := source.ReadFrame(pkt)
		if err != nil {
			if errors.Is(err, astiav.ErrEof) {
				break
			}
			return fmt.Errorf("unable to read a packet: %w", err)
		}
		if pkt.StreamIndex() != streamIndex {
			pkt.Unref()
			continue
		}
		err = decodeAndRemix(ctx, decoder, pkt, m, onFrame)
		pkt.Unref()
		if err != nil {
			return err
		}
	}

	// flush the decoder
	if err := decodeAndRemix(ctx, decoder, nil, m, onFrame); err != nil {
		return err
	}
	return io.EOF
}

func decodeAndRemix(
	ctx context.Context,
	decoder Decoder,
	pkt *astiav.Packet,
	m Map,
	onFrame OnFrameFunc,
) error {
	if err := decoder.SendPacket(pkt); err != nil {
		logger.Debugf(ctx, "decoder.SendPacket(): %v", err)
		if errors.Is(err, astiav.ErrEagain) || errors.Is(err, astiav.ErrEof) {
			return nil
		}
		return fmt.Errorf("unable to send a packet to the decoder: %w", err)
	}

	f := frame.Pool.Get()
	defer frame.Pool.Put(f)
	for {
		err := decoder.ReceiveFrame(f)
		if err != nil {
			isEOF := errors.Is(err, astiav.ErrEof)
			isEAgain := errors.Is(err, astiav.ErrEagain)
			logger.Tracef(ctx, "decoder.ReceiveFrame(): %v (isEOF:%t, isEAgain:%t)", err, isEOF, isEAgain)
			if isEOF || isEAgain {
				return nil
			}
			return fmt.Errorf("unable to receive a frame from the decoder: %w", err)
		}
		if err := FrameInPlace(ctx, f, m); err != nil {
			f.Unref()
			return fmt.Errorf("unable to remix a frame: %w", err)
		}
		if onFrame != nil {
			if err := onFrame(ctx, f); err != nil {
				f.Unref()
				return err
			}
		}
		f.Unref()
	}
}
