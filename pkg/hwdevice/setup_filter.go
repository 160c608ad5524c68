// setup_filter.go propagates the selected device's name into the
// device-consuming nodes of a filter graph.

package hwdevice

import (
	"context"
	"fmt"

	"github.com/asticode/go-astiav"
	"github.com/facebookincubator/go-belt/tool/logger"
)

// UploadFilterName is the name of the filter that uploads frames to a
// hardware device and therefore needs to know which device to use.
const UploadFilterName = "hwupload"

// FilterNode is one node of a filter graph, as far as this package is
// concerned: it declares a filter name and accepts string options. The
// graph itself is owned elsewhere.
type FilterNode interface {
	FilterName() string
	SetOption(ctx context.Context, key string, value string) error
}

// FilterGraph is the introspection surface of a constructed filter
// graph: the media types entering its sink and the ordered node list.
type FilterGraph interface {
	SinkInputMediaTypes() []astiav.MediaType
	Nodes() []FilterNode
}

// SetupFilterGraph matches a device against a decoder for the media type
// entering the graph's sink and, if one is found, sets the "device"
// option of every upload-filter node to the device's name. A graph with
// no sink inputs, or without an applicable device, is left untouched.
func (m *Manager) SetupFilterGraph(
	ctx context.Context,
	graph FilterGraph,
) (_err error) {
	logger.Debugf(ctx, "SetupFilterGraph")
	defer func() { logger.Debugf(ctx, "/SetupFilterGraph: %v", _err) }()

	mediaTypes := graph.SinkInputMediaTypes()
	if len(mediaTypes) == 0 {
		return nil
	}
	codec := defaultDecoderForMediaType(mediaTypes[0])
	if codec == nil {
		return nil
	}
	return m.SetupFilterGraphForConfigs(ctx, graph, CodecHardwareConfigs(codec))
}

// SetupFilterGraphForConfigs is SetupFilterGraph with the decoder's
// hardware-config list supplied by the caller.
func (m *Manager) SetupFilterGraphForConfigs(
	ctx context.Context,
	graph FilterGraph,
	configs []HardwareConfig,
) error {
	dev := m.MatchByCodecConfigs(ctx, configs)
	if dev == nil {
		return nil
	}
	for _, node := range graph.Nodes() {
		if node.FilterName() != UploadFilterName {
			continue
		}
		logger.Debugf(ctx, "setting the device of an '%s' node to '%s'", UploadFilterName, dev.Name)
		if err := node.SetOption(ctx, "device", string(dev.Name)); err != nil {
			return fmt.Errorf("unable to set the device option of an '%s' node to %q: %w", UploadFilterName, dev.Name, err)
		}
	}
	return nil
}

// The negotiation needs "a decoder capable of this media type"; we
// resolve that through the default decoder of the most common codec per
// media type.
func defaultDecoderForMediaType(mediaType astiav.MediaType) *astiav.Codec {
	switch mediaType {
	case astiav.MediaTypeVideo:
		return astiav.FindDecoder(astiav.CodecIDH264)
	case astiav.MediaTypeAudio:
		return astiav.FindDecoder(astiav.CodecIDAac)
	}
	return nil
}
