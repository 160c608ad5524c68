package commands

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/asticode/go-astiav"
	"github.com/asticode/go-astikit"
	"github.com/davecgh/go-spew/spew"
	"github.com/dustin/go-humanize"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/spf13/cobra"
	"github.com/xaionaro-go/avpipeline/avconv"

	"github.com/xaionaro-go/avhw/pkg/filterchain"
	"github.com/xaionaro-go/avhw/pkg/hwdevice"
	"github.com/xaionaro-go/avhw/pkg/remix"
)

var Remix = &cobra.Command{
	Use:   "remix",
	Short: "decode one audio stream (optionally on a hardware device) and remix its channel planes",
	Args:  cobra.ExactArgs(0),
	Run:   remixRun,
}

func remixRun(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()

	input, err := cmd.Flags().GetString("input")
	assertNoError(ctx, err)
	if input == "" {
		logger.Fatalf(ctx, "expected an input (see --input), but have not received any")
	}
	mapString, err := cmd.Flags().GetString("map")
	assertNoError(ctx, err)
	m, err := remix.ParseMap(mapString)
	assertNoError(ctx, err)
	streamIndex, err := cmd.Flags().GetInt("stream-index")
	assertNoError(ctx, err)
	deviceSpecs, err := cmd.Flags().GetStringArray("init-hw-device")
	assertNoError(ctx, err)
	hwAccel, err := cmd.Flags().GetString("hwaccel")
	assertNoError(ctx, err)
	filterSpec, err := cmd.Flags().GetString("filter")
	assertNoError(ctx, err)
	encoderName, err := cmd.Flags().GetString("encoder")
	assertNoError(ctx, err)

	mgr := hwdevice.NewManager(ctx)
	for _, spec := range deviceSpecs {
		dev, err := mgr.DeviceInitFromString(ctx, spec)
		assertNoError(ctx, err)
		logger.Infof(ctx, "initialized %s", dev)
	}

	closer := astikit.NewCloser()
	defer func() {
		assertNoError(ctx, closer.Close())
		assertNoError(ctx, mgr.FreeAll(ctx))
	}()

	fc := astiav.AllocFormatContext()
	if fc == nil {
		logger.Fatalf(ctx, "unable to allocate a format context")
	}
	closer.Add(fc.Free)
	assertNoError(ctx, fc.OpenInput(input, nil, nil))
	closer.Add(fc.CloseInput)
	assertNoError(ctx, fc.FindStreamInfo(nil))

	stream := findAudioStream(fc, streamIndex)
	if stream == nil {
		logger.Fatalf(ctx, "unable to find an audio stream in '%s' (stream index: %d)", input, streamIndex)
	}
	logger.Infof(ctx, "remixing stream #%d of '%s' with the map '%s'", stream.Index(), input, m)

	decCodec := astiav.FindDecoder(stream.CodecParameters().CodecID())
	if decCodec == nil {
		logger.Fatalf(ctx, "unable to find a decoder for codec ID %v", stream.CodecParameters().CodecID())
	}
	decCtx := astiav.AllocCodecContext(decCodec)
	if decCtx == nil {
		logger.Fatalf(ctx, "unable to allocate a decoder context")
	}
	closer.Add(decCtx.Free)
	assertNoError(ctx, stream.CodecParameters().ToCodecContext(decCtx))

	decConfigs := hwdevice.CodecHardwareConfigs(decCodec)
	logger.Debugf(ctx, "decoder hardware configs: %s", spew.Sdump(decConfigs))
	if hwAccel != "" {
		hwType := avconv.HardwareDeviceTypeFromString(ctx, hwAccel)
		if hwType == astiav.HardwareDeviceTypeNone {
			logger.Fatalf(ctx, "unknown hardware device type: '%s'", hwAccel)
		}
		dev, err := mgr.SetupDecoder(ctx, decCtx, decConfigs, hwType)
		assertNoError(ctx, err)
		logger.Infof(ctx, "decoding on %s", dev)
	}

	assertNoError(ctx, decCtx.Open(decCodec, nil))
	decCtx.SetTimeBase(stream.TimeBase())

	if filterSpec != "" {
		chain, err := filterchain.Parse(filterSpec)
		assertNoError(ctx, err)
		graph := &filterchain.Graph{
			Chain:      chain,
			MediaTypes: []astiav.MediaType{astiav.MediaTypeAudio},
		}
		assertNoError(ctx, mgr.SetupFilterGraphForConfigs(ctx, graph, decConfigs))
		fmt.Fprintf(cmd.OutOrStdout(), "filter chain: %s\n", chain)
	}

	var enc *reEncoder
	if encoderName != "" {
		enc = newReEncoder(ctx, mgr, closer, encoderName, decCtx)
	}

	var frames, samples uint64
	err = remix.Loop(ctx, &countingSource{fc}, stream.Index(), decCtx, m, func(ctx context.Context, f *astiav.Frame) error {
		frames++
		samples += uint64(f.NbSamples())
		metricFramesRemixed.Inc()
		if enc != nil {
			return enc.encode(ctx, f)
		}
		return nil
	})
	if !errors.Is(err, io.EOF) {
		assertNoError(ctx, err)
	}
	if enc != nil {
		assertNoError(ctx, enc.encode(ctx, nil))
		logger.Infof(ctx, "re-encoded into %s", humanize.IBytes(enc.bytes))
	}
	logger.Infof(ctx, "remixed %s frames (%s samples per channel)",
		humanize.Comma(int64(frames)), humanize.Comma(int64(samples)))
}

func findAudioStream(fc *astiav.FormatContext, streamIndex int) *astiav.Stream {
	for _, s := range fc.Streams() {
		if streamIndex >= 0 {
			if s.Index() == streamIndex {
				return s
			}
			continue
		}
		if s.CodecParameters().MediaType() == astiav.MediaTypeAudio {
			return s
		}
	}
	return nil
}

// countingSource wraps a packet source to count the packets read.
type countingSource struct {
	backend remix.PacketSource
}

func (s *countingSource) ReadFrame(pkt *astiav.Packet) error {
	err := s.backend.ReadFrame(pkt)
	if err == nil {
		metricPacketsRead.Inc()
	}
	return err
}
