// parse.go implements initializing devices from textual device
// specifications.

package hwdevice

import (
	"context"
	"fmt"
	"strings"

	"github.com/asticode/go-astiav"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/avpipeline/avconv"
	"github.com/xaionaro-go/avpipeline/types"
	"github.com/xaionaro-go/xsync"
)

// The smallest free index in [0, defaultNameIndexLimit) is used when
// auto-generating a device name like "cuda0".
const defaultNameIndexLimit = 1000

// DeviceInitFromString parses a device specification, creates the device
// and registers it in the manager.
//
// The grammar is TYPE[=NAME]SUFFIX, where SUFFIX is one of:
//   - ``: the default device of TYPE, no options;
//   - `:STRING[,KEY=VAL...]`: a backend device identifier plus options;
//   - `@NAME2`: derive from the registered device NAME2;
//   - `,KEY=VAL[,...]`: options only.
//
// On any failure nothing gets registered and the temporarily created
// device context (if any) is freed.
func (m *Manager) DeviceInitFromString(
	ctx context.Context,
	spec string,
) (_ret *Device, _err error) {
	logger.Debugf(ctx, "DeviceInitFromString(ctx, '%s')", spec)
	defer func() { logger.Debugf(ctx, "/DeviceInitFromString(ctx, '%s'): %v %v", spec, _ret, _err) }()
	return xsync.DoA2R2(ctx, &m.locker, m.deviceInitFromStringLocked, ctx, spec)
}

func (m *Manager) deviceInitFromStringLocked(
	ctx context.Context,
	spec string,
) (*Device, error) {
	invalid := func(reason string) (*Device, error) {
		err := ErrInvalidDeviceSpec{Spec: spec, Reason: reason}
		logger.Errorf(ctx, "%v", err)
		return nil, err
	}

	typeToken, rest := spec, ""
	if k := strings.IndexAny(spec, ":=@,"); k >= 0 {
		typeToken, rest = spec[:k], spec[k:]
	}
	deviceType := avconv.HardwareDeviceTypeFromString(ctx, typeToken)
	if deviceType == astiav.HardwareDeviceTypeNone {
		return invalid("unknown device type")
	}

	var name types.HardwareDeviceName
	if strings.HasPrefix(rest, "=") {
		nameToken := rest[1:]
		rest = ""
		if k := strings.IndexAny(nameToken, ":@,"); k >= 0 {
			nameToken, rest = nameToken[:k], nameToken[k:]
		}
		name = types.HardwareDeviceName(nameToken)
		if m.getByNameLocked(name) != nil {
			return invalid("named device already exists")
		}
	} else {
		var err error
		name, err = m.defaultNameLocked(deviceType)
		if err != nil {
			return nil, err
		}
	}

	var (
		deviceContext *astiav.HardwareDeviceContext
		backend       string
		err           error
	)
	switch {
	case rest == "":
		deviceContext, err = m.CreateDeviceContext(ctx, deviceType, "", nil)
	case strings.HasPrefix(rest, ":"):
		var options types.DictionaryItems
		backend = rest[1:]
		if idx := strings.Index(backend, ","); idx >= 0 {
			var optionsErr error
			options, optionsErr = parseOptions(backend[idx+1:])
			backend = backend[:idx]
			if optionsErr != nil {
				return invalid("failed to parse options")
			}
		}
		deviceContext, err = m.CreateDeviceContext(ctx, deviceType, backend, options)
	case strings.HasPrefix(rest, "@"):
		src := m.getByNameLocked(types.HardwareDeviceName(rest[1:]))
		if src == nil {
			return invalid("invalid source device name")
		}
		backend = src.backend
		deviceContext, err = m.DeriveDeviceContext(ctx, deviceType, src)
	case strings.HasPrefix(rest, ","):
		var options types.DictionaryItems
		options, err = parseOptions(rest[1:])
		if err != nil {
			return invalid("failed to parse options")
		}
		deviceContext, err = m.CreateDeviceContext(ctx, deviceType, "", options)
	default:
		return invalid("parse error")
	}
	if err != nil {
		logger.Errorf(ctx, "device creation failed for '%s': %v", spec, err)
		return nil, fmt.Errorf("unable to create a device context for %q: %w", spec, err)
	}

	dev := &Device{
		Name:          name,
		Type:          deviceType,
		DeviceContext: deviceContext,
		backend:       backend,
	}
	if err := m.addLocked(dev); err != nil {
		deviceContext.Free()
		return nil, err
	}
	return dev, nil
}

// DeviceInitFromType initializes and registers a device of the given type
// with an auto-generated name, skipping the textual grammar. Same
// atomicity contract as DeviceInitFromString.
func (m *Manager) DeviceInitFromType(
	ctx context.Context,
	deviceType astiav.HardwareDeviceType,
	backend string,
) (_ret *Device, _err error) {
	logger.Debugf(ctx, "DeviceInitFromType(ctx, %s, '%s')", typeName(deviceType), backend)
	defer func() {
		logger.Debugf(ctx, "/DeviceInitFromType(ctx, %s, '%s'): %v %v", typeName(deviceType), backend, _ret, _err)
	}()
	return xsync.DoR2(ctx, &m.locker, func() (*Device, error) {
		name, err := m.defaultNameLocked(deviceType)
		if err != nil {
			return nil, err
		}
		deviceContext, err := m.CreateDeviceContext(ctx, deviceType, backend, nil)
		if err != nil {
			logger.Errorf(ctx, "device creation failed for type '%s': %v", typeName(deviceType), err)
			return nil, fmt.Errorf("unable to create a device context of type '%s': %w", typeName(deviceType), err)
		}
		dev := &Device{
			Name:          name,
			Type:          deviceType,
			DeviceContext: deviceContext,
			backend:       backend,
		}
		if err := m.addLocked(dev); err != nil {
			deviceContext.Free()
			return nil, err
		}
		return dev, nil
	})
}

func (m *Manager) defaultNameLocked(
	deviceType astiav.HardwareDeviceType,
) (types.HardwareDeviceName, error) {
	base := typeName(deviceType)
	for idx := 0; idx < defaultNameIndexLimit; idx++ {
		candidate := types.HardwareDeviceName(fmt.Sprintf("%s%d", base, idx))
		if m.getByNameLocked(candidate) == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("unable to generate a default name for device type '%s': first %d candidates are taken", base, defaultNameIndexLimit)
}

func parseOptions(s string) (types.DictionaryItems, error) {
	if s == "" {
		return nil, nil
	}
	var items types.DictionaryItems
	for _, pair := range strings.Split(s, ",") {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("expected KEY=VALUE, but got %q", pair)
		}
		items = append(items, types.DictionaryItem{Key: key, Value: value})
	}
	return items, nil
}
