package hwdevice

import (
	"context"
	"fmt"
	"testing"

	"github.com/asticode/go-astiav"
	"github.com/stretchr/testify/require"
)

func TestSetupDecoderNoTypeRequested(t *testing.T) {
	ctx := context.Background()
	m, _ := newFakeManager(ctx)

	dev, err := m.SetupDecoder(ctx, nil, []HardwareConfig{
		{DeviceType: astiav.HardwareDeviceType(1), Methods: MethodDeviceContext},
	}, astiav.HardwareDeviceTypeNone)
	require.NoError(t, err)
	require.Nil(t, dev)
}

func TestSetupDecoderNoHardwareConfig(t *testing.T) {
	ctx := context.Background()
	m, _ := newFakeManager(ctx)

	cuda, err := m.DeviceInitFromString(ctx, "cuda")
	require.NoError(t, err)

	for name, configs := range map[string][]HardwareConfig{
		"none":            nil,
		"frames-ctx-only": {{DeviceType: cuda.Type, Methods: MethodFramesContext}},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := m.SetupDecoder(ctx, nil, configs, cuda.Type)
			require.ErrorAs(t, err, &ErrNoHardwareConfig{})
		})
	}
}

func TestSetupDecoderNoSuitableDevice(t *testing.T) {
	ctx := context.Background()
	m, _ := newFakeManager(ctx)

	vaapi, err := m.DeviceInitFromString(ctx, "vaapi")
	require.NoError(t, err)
	cuda, err := m.DeviceInitFromString(ctx, "cuda")
	require.NoError(t, err)
	require.NoError(t, m.FreeAll(ctx))

	_, err = m.DeviceInitFromString(ctx, "vaapi")
	require.NoError(t, err)

	configs := []HardwareConfig{
		{DeviceType: vaapi.Type, Methods: MethodDeviceContext},
		{DeviceType: cuda.Type, Methods: MethodDeviceContext},
	}
	var noDev ErrNoSuitableDevice
	_, err = m.SetupDecoder(ctx, nil, configs, cuda.Type)
	require.ErrorAs(t, err, &noDev)
	require.Equal(t, cuda.Type, noDev.Type)
}

func TestSetupDecoderPicksRequestedType(t *testing.T) {
	ctx := context.Background()
	m, _ := newFakeManager(ctx)

	vaapi, err := m.DeviceInitFromString(ctx, "vaapi")
	require.NoError(t, err)
	cuda, err := m.DeviceInitFromString(ctx, "cuda")
	require.NoError(t, err)

	configs := []HardwareConfig{
		{DeviceType: vaapi.Type, Methods: MethodDeviceContext},
		{DeviceType: cuda.Type, Methods: MethodDeviceContext},
	}
	dev, err := m.SetupDecoder(ctx, nil, configs, cuda.Type)
	require.NoError(t, err)
	require.Equal(t, cuda, dev)
}

func TestSetupEncoderSoftwareFallbacks(t *testing.T) {
	ctx := context.Background()
	m, _ := newFakeManager(ctx)

	cuda, err := m.DeviceInitFromString(ctx, "cuda")
	require.NoError(t, err)

	framesCalls := 0
	m.NewFramesContext = func(
		_ context.Context,
		_ *astiav.CodecContext,
		_ *Device,
		_ astiav.PixelFormat,
	) (*astiav.HardwareFramesContext, error) {
		framesCalls++
		return nil, fmt.Errorf("the device ran out of memory")
	}

	t.Run("no_matching_device", func(t *testing.T) {
		dev, err := m.SetupEncoder(ctx, nil, []HardwareConfig{
			{DeviceType: cuda.Type + 1, Methods: MethodDeviceContext | MethodFramesContext},
		})
		require.NoError(t, err)
		require.Nil(t, dev)
		require.Equal(t, 0, framesCalls)
	})

	t.Run("no_frames_context_config", func(t *testing.T) {
		dev, err := m.SetupEncoder(ctx, nil, []HardwareConfig{
			{DeviceType: cuda.Type, Methods: MethodDeviceContext},
		})
		require.NoError(t, err)
		require.Nil(t, dev)
		require.Equal(t, 0, framesCalls)
	})

	t.Run("frames_context_failure", func(t *testing.T) {
		dev, err := m.SetupEncoder(ctx, nil, []HardwareConfig{
			{DeviceType: cuda.Type, Methods: MethodDeviceContext | MethodFramesContext},
		})
		require.NoError(t, err)
		require.Nil(t, dev)
		require.Equal(t, 1, framesCalls)
	})
}

func TestSetupEncoderBinds(t *testing.T) {
	ctx := context.Background()
	m, _ := newFakeManager(ctx)

	cuda, err := m.DeviceInitFromString(ctx, "cuda")
	require.NoError(t, err)

	var gotPixFmt astiav.PixelFormat
	m.NewFramesContext = func(
		_ context.Context,
		_ *astiav.CodecContext,
		dev *Device,
		pixFmt astiav.PixelFormat,
	) (*astiav.HardwareFramesContext, error) {
		require.Equal(t, cuda, dev)
		gotPixFmt = pixFmt
		return &astiav.HardwareFramesContext{}, nil
	}

	dev, err := m.SetupEncoder(ctx, nil, []HardwareConfig{
		{DeviceType: cuda.Type, Methods: MethodDeviceContext},
		{DeviceType: cuda.Type, Methods: MethodFramesContext, PixelFormat: astiav.PixelFormatYuv420P},
	})
	require.NoError(t, err)
	require.Equal(t, cuda, dev)
	require.Equal(t, astiav.PixelFormatYuv420P, gotPixFmt)
}

type fakeFilterNode struct {
	name    string
	options map[string]string
	errOnce error
}

var _ FilterNode = (*fakeFilterNode)(nil)

func (n *fakeFilterNode) FilterName() string { return n.name }

func (n *fakeFilterNode) SetOption(_ context.Context, key, value string) error {
	if n.errOnce != nil {
		err := n.errOnce
		n.errOnce = nil
		return err
	}
	if n.options == nil {
		n.options = map[string]string{}
	}
	n.options[key] = value
	return nil
}

type fakeFilterGraph struct {
	mediaTypes []astiav.MediaType
	nodes      []FilterNode
}

var _ FilterGraph = (*fakeFilterGraph)(nil)

func (g *fakeFilterGraph) SinkInputMediaTypes() []astiav.MediaType { return g.mediaTypes }
func (g *fakeFilterGraph) Nodes() []FilterNode                     { return g.nodes }

func TestSetupFilterGraphForConfigs(t *testing.T) {
	ctx := context.Background()
	m, _ := newFakeManager(ctx)

	cuda, err := m.DeviceInitFromString(ctx, "cuda=gpu")
	require.NoError(t, err)

	upload0 := &fakeFilterNode{name: UploadFilterName}
	scale := &fakeFilterNode{name: "scale"}
	upload1 := &fakeFilterNode{name: UploadFilterName}
	graph := &fakeFilterGraph{
		mediaTypes: []astiav.MediaType{astiav.MediaTypeVideo},
		nodes:      []FilterNode{upload0, scale, upload1},
	}

	configs := []HardwareConfig{
		{DeviceType: cuda.Type, Methods: MethodDeviceContext},
	}
	require.NoError(t, m.SetupFilterGraphForConfigs(ctx, graph, configs))
	require.Equal(t, map[string]string{"device": "gpu"}, upload0.options)
	require.Equal(t, map[string]string{"device": "gpu"}, upload1.options)
	require.Empty(t, scale.options)
}

func TestSetupFilterGraphForConfigsNoMatchIsNoOp(t *testing.T) {
	ctx := context.Background()
	m, _ := newFakeManager(ctx)

	upload := &fakeFilterNode{name: UploadFilterName}
	graph := &fakeFilterGraph{
		mediaTypes: []astiav.MediaType{astiav.MediaTypeVideo},
		nodes:      []FilterNode{upload},
	}
	require.NoError(t, m.SetupFilterGraphForConfigs(ctx, graph, []HardwareConfig{
		{DeviceType: astiav.HardwareDeviceType(1), Methods: MethodDeviceContext},
	}))
	require.Empty(t, upload.options)
}

func TestSetupFilterGraphForConfigsPropagatesOptionErrors(t *testing.T) {
	ctx := context.Background()
	m, _ := newFakeManager(ctx)

	cuda, err := m.DeviceInitFromString(ctx, "cuda")
	require.NoError(t, err)

	broken := &fakeFilterNode{name: UploadFilterName, errOnce: fmt.Errorf("option rejected")}
	after := &fakeFilterNode{name: UploadFilterName}
	graph := &fakeFilterGraph{
		mediaTypes: []astiav.MediaType{astiav.MediaTypeVideo},
		nodes:      []FilterNode{broken, after},
	}
	err = m.SetupFilterGraphForConfigs(ctx, graph, []HardwareConfig{
		{DeviceType: cuda.Type, Methods: MethodDeviceContext},
	})
	require.ErrorContains(t, err, "option rejected")
	require.Empty(t, after.options)
}
