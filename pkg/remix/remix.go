// remix.go implements the per-frame audio channel remix: rearranging the
// channel planes of a planar audio frame according to a channel map.

// Package remix rearranges the channel planes of planar audio frames
// according to a textual channel map (e.g. "1|0" swaps the channels of a
// stereo stream), and provides a blocking decode loop that applies the
// remix to every frame a decoder yields.
package remix

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/asticode/go-astiav"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/avpipeline/frame"
)

// Map is a channel map: entry i is the source plane index the i-th
// output channel is taken from.
type Map []int

func (m Map) String() string {
	tokens := make([]string, 0, len(m))
	for _, p := range m {
		tokens = append(tokens, strconv.Itoa(p))
	}
	return strings.Join(tokens, "|")
}

// ParseMap parses a channel map of the form "1|0" ("," is accepted as a
// separator, too).
func ParseMap(s string) (Map, error) {
	tokens := strings.FieldsFunc(s, func(r rune) bool {
		return r == '|' || r == ','
	})
	if len(tokens) == 0 {
		return nil, fmt.Errorf("empty channel map %q", s)
	}
	m := make(Map, 0, len(tokens))
	for _, token := range tokens {
		p, err := strconv.Atoi(strings.TrimSpace(token))
		if err != nil {
			return nil, fmt.Errorf("unable to parse %q as a channel index: %w", token, err)
		}
		if p < 0 {
			return nil, fmt.Errorf("negative channel index %d in %q", p, s)
		}
		m = append(m, p)
	}
	return m, nil
}

// FrameInPlace replaces the content of `f` with a remixed copy: output
// plane i holds the samples of input plane m[i], the first plane's
// stride taken as the per-plane copy length. Everything else (layout,
// sample count, pts, duration) is preserved. On failure `f` is left
// untouched.
func FrameInPlace(
	ctx context.Context,
	f *astiav.Frame,
	m Map,
) (_err error) {
	logger.Tracef(ctx, "FrameInPlace(ctx, frame, %s)", m)
	defer func() { logger.Tracef(ctx, "/FrameInPlace(ctx, frame, %s): %v", m, _err) }()

	sampleFormat := f.SampleFormat()
	if !sampleFormat.IsPlanar() {
		return fmt.Errorf("sample format %s is not planar; a remix requires one plane per channel", sampleFormat)
	}
	channels := f.ChannelLayout().Channels()
	nbSamples := f.NbSamples()
	if channels <= 0 || nbSamples <= 0 {
		return fmt.Errorf("invalid frame parameters: channels=%d, nbSamples=%d", channels, nbSamples)
	}
	if len(m) != channels {
		return fmt.Errorf("the channel map has %d entries, but the frame has %d channels", len(m), channels)
	}
	for _, p := range m {
		if p >= channels {
			return fmt.Errorf("channel index %d is out of range: the frame has only %d planes", p, channels)
		}
	}

	const align = 1
	bufSize, err := f.SamplesBufferSize(align)
	if err != nil {
		return fmt.Errorf("unable to get the samples buffer size: %w", err)
	}
	planeSize := bufSize / channels

	buf := make([]byte, bufSize)
	if _, err := f.SamplesCopyToBuffer(buf, align); err != nil {
		return fmt.Errorf("unable to copy the samples out of the frame: %w", err)
	}

	remixed := make([]byte, bufSize)
	for i, p := range m {
		copy(remixed[i*planeSize:(i+1)*planeSize], buf[p*planeSize:(p+1)*planeSize])
	}

	newFrame := frame.Pool.Get()
	defer func() {
		if _err != nil {
			frame.Pool.Put(newFrame)
		}
	}()
	newFrame.SetSampleFormat(sampleFormat)
	newFrame.SetSampleRate(f.SampleRate())
	newFrame.SetChannelLayout(f.ChannelLayout())
	newFrame.SetNbSamples(nbSamples)
	if err := newFrame.AllocBuffer(0); err != nil {
		return fmt.Errorf("unable to allocate the remixed frame buffer: %w", err)
	}
	if err := newFrame.Data().SetBytes(remixed, align); err != nil {
		return fmt.Errorf("unable to set the remixed frame data: %w", err)
	}
	newFrame.SetPts(f.Pts())
	newFrame.SetDuration(f.Duration())

	f.Unref()
	frame.CopyReferenced(f, newFrame)
	frame.Pool.Put(newFrame)
	return nil
}
