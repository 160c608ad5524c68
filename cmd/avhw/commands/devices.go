package commands

import (
	"fmt"

	"github.com/asticode/go-astiav"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/spf13/cobra"

	"github.com/xaionaro-go/avhw/pkg/hwdevice"
)

var Devices = &cobra.Command{
	Use:   "devices [SPEC]...",
	Short: "initialize hardware devices from specifications and list them (no arguments: list the known device types)",
	Run:   devices,
}

func devices(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()

	if len(args) == 0 {
		for _, deviceType := range knownDeviceTypes {
			fmt.Fprintln(cmd.OutOrStdout(), deviceType)
		}
		return
	}

	m := hwdevice.NewManager(ctx)

	freeAll, err := cmd.Flags().GetBool("free-all")
	assertNoError(ctx, err)
	if freeAll {
		defer func() { assertNoError(ctx, m.FreeAll(ctx)) }()
	}

	for _, spec := range args {
		if _, err := m.DeviceInitFromString(ctx, spec); err != nil {
			logger.Fatalf(ctx, "unable to initialize a device from %q: %v", spec, err)
		}
	}

	for _, dev := range m.Devices(ctx) {
		fmt.Fprintln(cmd.OutOrStdout(), dev)
	}
}

var knownDeviceTypes = []astiav.HardwareDeviceType{
	astiav.HardwareDeviceTypeCUDA,
	astiav.HardwareDeviceTypeD3D11VA,
	astiav.HardwareDeviceTypeDRM,
	astiav.HardwareDeviceTypeDXVA2,
	astiav.HardwareDeviceTypeMediaCodec,
	astiav.HardwareDeviceTypeOpenCL,
	astiav.HardwareDeviceTypeQSV,
	astiav.HardwareDeviceTypeVAAPI,
	astiav.HardwareDeviceTypeVDPAU,
	astiav.HardwareDeviceTypeVideoToolbox,
	astiav.HardwareDeviceTypeVulkan,
}
