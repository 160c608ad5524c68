package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/asticode/go-astiav"
	"github.com/spf13/cobra"

	"github.com/xaionaro-go/avhw/pkg/hwdevice"
)

var Encoders = &cobra.Command{
	Use:   "encoders",
	Short: "list the available encoders and their hardware device types",
	Args:  cobra.ExactArgs(0),
	Run: func(cmd *cobra.Command, args []string) {
		printCodecs(cmd.OutOrStdout(), (*astiav.Codec).IsEncoder)
	},
}

var Decoders = &cobra.Command{
	Use:   "decoders",
	Short: "list the available decoders and their hardware device types",
	Args:  cobra.ExactArgs(0),
	Run: func(cmd *cobra.Command, args []string) {
		printCodecs(cmd.OutOrStdout(), (*astiav.Codec).IsDecoder)
	},
}

func printCodecs(w io.Writer, filter func(*astiav.Codec) bool) {
	for _, codec := range astiav.Codecs() {
		if !filter(codec) {
			continue
		}
		printCodec(w, codec)
	}
}

func printCodec(w io.Writer, codec *astiav.Codec) {
	var deviceTypes []string
	for _, cfg := range hwdevice.CodecHardwareConfigs(codec) {
		if !cfg.Methods.Has(hwdevice.MethodDeviceContext) {
			continue
		}
		deviceTypes = append(deviceTypes, cfg.DeviceType.String())
	}
	suffix := ""
	if len(deviceTypes) > 0 {
		suffix = " [" + strings.Join(deviceTypes, ", ") + "]"
	}
	fmt.Fprintf(w, "%016X %s%s\n", uint32(codec.ID()), codec.Name(), suffix)
}
