package hwdevice

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/asticode/go-astiav"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/avpipeline/types"
)

// fakeNative replaces the astiav-backed creation seams so that the tests
// do not require any actual hardware (or even an initialized libav).
type fakeNative struct {
	createCount int
	deriveCount int
	lastBackend string
	lastOptions types.DictionaryItems
	createErr   error
}

func (f *fakeNative) install(m *Manager) {
	m.CreateDeviceContext = func(
		_ context.Context,
		_ astiav.HardwareDeviceType,
		backend string,
		options types.DictionaryItems,
	) (*astiav.HardwareDeviceContext, error) {
		f.createCount++
		f.lastBackend = backend
		f.lastOptions = options
		if f.createErr != nil {
			return nil, f.createErr
		}
		return &astiav.HardwareDeviceContext{}, nil
	}
	m.DeriveDeviceContext = func(
		_ context.Context,
		_ astiav.HardwareDeviceType,
		_ *Device,
	) (*astiav.HardwareDeviceContext, error) {
		f.deriveCount++
		return &astiav.HardwareDeviceContext{}, nil
	}
}

func newFakeManager(ctx context.Context) (*Manager, *fakeNative) {
	m := NewManager(ctx)
	f := &fakeNative{}
	f.install(m)
	return m, f
}

func TestDeviceInitFromStringDefaultNames(t *testing.T) {
	ctx := context.Background()
	m, f := newFakeManager(ctx)

	dev0, err := m.DeviceInitFromString(ctx, "cuda")
	require.NoError(t, err)
	dev1, err := m.DeviceInitFromString(ctx, "cuda")
	require.NoError(t, err)

	require.Equal(t, types.HardwareDeviceName("cuda0"), dev0.Name)
	require.Equal(t, types.HardwareDeviceName("cuda1"), dev1.Name)
	require.Equal(t, dev0.Type, dev1.Type)
	require.Equal(t, 2, f.createCount)
	require.Len(t, m.Devices(ctx), 2)
	require.Equal(t, dev1, m.GetByName(ctx, "cuda1"))
}

func TestDeviceInitFromStringDefaultNameSkipsTaken(t *testing.T) {
	ctx := context.Background()
	m, _ := newFakeManager(ctx)

	_, err := m.DeviceInitFromString(ctx, "cuda=cuda0")
	require.NoError(t, err)
	dev, err := m.DeviceInitFromString(ctx, "cuda")
	require.NoError(t, err)
	require.Equal(t, types.HardwareDeviceName("cuda1"), dev.Name)
}

func TestDeviceInitFromStringBackendAndOptions(t *testing.T) {
	ctx := context.Background()
	m, f := newFakeManager(ctx)

	dev, err := m.DeviceInitFromString(ctx, "vaapi=left:/dev/dri/renderD128,driver=iHD,kernel_driver=i915")
	require.NoError(t, err)
	require.Equal(t, types.HardwareDeviceName("left"), dev.Name)
	require.Equal(t, "/dev/dri/renderD128", f.lastBackend)
	require.Equal(t, types.DictionaryItems{
		{Key: "driver", Value: "iHD"},
		{Key: "kernel_driver", Value: "i915"},
	}, f.lastOptions)
	require.Equal(t, dev, m.GetByName(ctx, "left"))
}

func TestDeviceInitFromStringOptionsOnly(t *testing.T) {
	ctx := context.Background()
	m, f := newFakeManager(ctx)

	// without an explicit name the type token ends at the first ','
	dev, err := m.DeviceInitFromString(ctx, "qsv,child_device=0")
	require.NoError(t, err)
	require.Equal(t, types.HardwareDeviceName("qsv0"), dev.Name)
	require.Equal(t, "", f.lastBackend)
	require.Equal(t, types.DictionaryItems{{Key: "child_device", Value: "0"}}, f.lastOptions)

	dev, err = m.DeviceInitFromString(ctx, "vaapi,driver=iHD,kernel_driver=i915")
	require.NoError(t, err)
	require.Equal(t, types.HardwareDeviceName("vaapi0"), dev.Name)
	require.Equal(t, types.DictionaryItems{
		{Key: "driver", Value: "iHD"},
		{Key: "kernel_driver", Value: "i915"},
	}, f.lastOptions)

	dev, err = m.DeviceInitFromString(ctx, "qsv=hw,child_device=1")
	require.NoError(t, err)
	require.Equal(t, types.HardwareDeviceName("hw"), dev.Name)
	require.Equal(t, types.DictionaryItems{{Key: "child_device", Value: "1"}}, f.lastOptions)

	require.Equal(t, 3, f.createCount)
}

func TestDeviceInitFromStringUnknownType(t *testing.T) {
	ctx := context.Background()
	m, f := newFakeManager(ctx)

	_, err := m.DeviceInitFromString(ctx, "warpdrive")
	var specErr ErrInvalidDeviceSpec
	require.ErrorAs(t, err, &specErr)
	require.Equal(t, 0, f.createCount)
	require.Empty(t, m.Devices(ctx))
}

func TestDeviceInitFromStringNameCollision(t *testing.T) {
	ctx := context.Background()
	m, f := newFakeManager(ctx)

	_, err := m.DeviceInitFromString(ctx, "cuda=gpu")
	require.NoError(t, err)

	_, err = m.DeviceInitFromString(ctx, "cuda=gpu")
	var specErr ErrInvalidDeviceSpec
	require.ErrorAs(t, err, &specErr)

	// the failed attempt must not create anything nor disturb the registry
	require.Equal(t, 1, f.createCount)
	require.Len(t, m.Devices(ctx), 1)
}

func TestDeviceInitFromStringMalformedOptions(t *testing.T) {
	ctx := context.Background()

	for _, spec := range []string{
		"cuda,oops",
		"cuda,=0",
		"vaapi:/dev/dri/renderD128,flagwithoutvalue",
	} {
		t.Run(spec, func(t *testing.T) {
			m, f := newFakeManager(ctx)
			_, err := m.DeviceInitFromString(ctx, spec)
			var specErr ErrInvalidDeviceSpec
			require.ErrorAs(t, err, &specErr)
			require.Equal(t, 0, f.createCount)
			require.Empty(t, m.Devices(ctx))
		})
	}
}

func TestDeviceInitFromStringDerive(t *testing.T) {
	ctx := context.Background()
	m, f := newFakeManager(ctx)

	src, err := m.DeviceInitFromString(ctx, "vaapi=src:/dev/dri/renderD128")
	require.NoError(t, err)

	dev, err := m.DeviceInitFromString(ctx, "qsv=derived@src")
	require.NoError(t, err)
	require.Equal(t, 1, f.deriveCount)
	require.Equal(t, types.HardwareDeviceName("derived"), dev.Name)
	require.NotEqual(t, src.Type, dev.Type)
	require.Equal(t, src.backend, dev.backend)
}

func TestDeviceInitFromStringDeriveFromMissing(t *testing.T) {
	ctx := context.Background()
	m, f := newFakeManager(ctx)

	_, err := m.DeviceInitFromString(ctx, "qsv@nosuchdevice")
	var specErr ErrInvalidDeviceSpec
	require.ErrorAs(t, err, &specErr)
	require.Equal(t, 0, f.deriveCount)
	require.Empty(t, m.Devices(ctx))
}

func TestDeviceInitFromStringCreationFailure(t *testing.T) {
	ctx := context.Background()
	m, f := newFakeManager(ctx)
	f.createErr = fmt.Errorf("no such device")

	_, err := m.DeviceInitFromString(ctx, "cuda")
	require.Error(t, err)
	var specErr ErrInvalidDeviceSpec
	require.False(t, errors.As(err, &specErr))
	require.Empty(t, m.Devices(ctx))
}

func TestDeviceInitFromType(t *testing.T) {
	ctx := context.Background()
	m, f := newFakeManager(ctx)

	deviceType := astiav.HardwareDeviceType(1) // whatever is valid, we never touch the backend
	dev, err := m.DeviceInitFromType(ctx, deviceType, "/dev/dri/renderD129")
	require.NoError(t, err)
	require.Equal(t, deviceType, dev.Type)
	require.Equal(t, "/dev/dri/renderD129", f.lastBackend)
	require.Equal(t, dev, m.GetByType(ctx, deviceType))
}

func TestGetByTypeAmbiguity(t *testing.T) {
	ctx := context.Background()
	m, _ := newFakeManager(ctx)

	cuda, err := m.DeviceInitFromString(ctx, "cuda")
	require.NoError(t, err)
	vaapi, err := m.DeviceInitFromString(ctx, "vaapi")
	require.NoError(t, err)

	require.Equal(t, cuda, m.GetByType(ctx, cuda.Type))
	require.Equal(t, vaapi, m.GetByType(ctx, vaapi.Type))

	// a second device of the same type makes the type lookup ambiguous,
	// which reports the same as absent
	_, err = m.DeviceInitFromString(ctx, "cuda")
	require.NoError(t, err)
	require.Nil(t, m.GetByType(ctx, cuda.Type))
	require.Equal(t, vaapi, m.GetByType(ctx, vaapi.Type))
}

func TestAddRejectsNilDeviceContext(t *testing.T) {
	ctx := context.Background()
	m, _ := newFakeManager(ctx)

	require.Error(t, m.Add(ctx, nil))
	require.Error(t, m.Add(ctx, &Device{Name: "empty"}))
	require.Empty(t, m.Devices(ctx))
}

func TestFreeAll(t *testing.T) {
	ctx := context.Background()
	m, _ := newFakeManager(ctx)

	_, err := m.DeviceInitFromString(ctx, "cuda")
	require.NoError(t, err)
	_, err = m.DeviceInitFromString(ctx, "vaapi=left")
	require.NoError(t, err)

	require.NoError(t, m.FreeAll(ctx))
	require.Empty(t, m.Devices(ctx))
	require.Nil(t, m.GetByName(ctx, "left"))

	// the manager is reusable after a teardown
	dev, err := m.DeviceInitFromString(ctx, "cuda")
	require.NoError(t, err)
	require.Equal(t, types.HardwareDeviceName("cuda0"), dev.Name)
}
