package commands

import (
	"context"
	"net/http"
	_ "net/http/pprof"
	"os"
	"strings"
	"time"

	"github.com/asticode/go-astiav"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/getsentry/sentry-go"
	"github.com/spf13/cobra"
	"github.com/xaionaro-go/avpipeline"
	"github.com/xaionaro-go/observability"
)

var (
	// Access these variables only from a main package:

	Root = &cobra.Command{
		Use: os.Args[0],
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			ctx := cmd.Context()
			l := logger.FromCtx(ctx).WithLevel(LoggerLevel)
			ctx = logger.CtxWithLogger(ctx, l)
			cmd.SetContext(ctx)
			logger.Debugf(ctx, "log-level: %v", LoggerLevel)

			astiav.SetLogLevel(avpipeline.LogLevelToAstiav(l.Level()))
			astiav.SetLogCallback(func(c astiav.Classer, level astiav.LogLevel, format, msg string) {
				var cs string
				if c != nil {
					if cl := c.Class(); cl != nil {
						cs = " - class: " + cl.String()
					}
				}
				l.Logf(avpipeline.LogLevelFromAstiav(level), "%s%s", strings.TrimSpace(msg), cs)
			})

			netPprofAddr, err := cmd.Flags().GetString("go-net-pprof-addr")
			if err != nil {
				l.Error("unable to get the value of the flag 'go-net-pprof-addr': %v", err)
			}
			if netPprofAddr != "" {
				observability.Go(ctx, func(ctx context.Context) {
					l.Infof("starting to listen for net/pprof requests at '%s'", netPprofAddr)
					l.Error(http.ListenAndServe(netPprofAddr, nil))
				})
			}

			metricsAddr, err := cmd.Flags().GetString("metrics-addr")
			if err != nil {
				l.Error("unable to get the value of the flag 'metrics-addr': %v", err)
			}
			if metricsAddr != "" {
				observability.Go(ctx, func(ctx context.Context) {
					l.Infof("starting to serve Prometheus metrics at '%s'", metricsAddr)
					mux := http.NewServeMux()
					registerMetricsHandlers(mux)
					l.Error(http.ListenAndServe(metricsAddr, mux))
				})
			}

			sentryDSN, err := cmd.Flags().GetString("sentry-dsn")
			if err != nil {
				l.Error("unable to get the value of the flag 'sentry-dsn': %v", err)
			}
			if sentryDSN != "" {
				err := sentry.Init(sentry.ClientOptions{
					Dsn:              sentryDSN,
					AttachStacktrace: true,
				})
				if err != nil {
					l.Errorf("unable to initialize sentry: %v", err)
				}
			}
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			ctx := cmd.Context()
			sentry.Flush(2 * time.Second)
			logger.Debug(ctx, "end")
		},
	}

	LoggerLevel = logger.LevelWarning
)

func init() {
	Root.AddCommand(Devices)
	Root.AddCommand(Remix)
	Root.AddCommand(Encoders)
	Root.AddCommand(Decoders)

	Root.PersistentFlags().Var(&LoggerLevel, "log-level", "")
	Root.PersistentFlags().String("go-net-pprof-addr", "", "address to listen to for net/pprof requests")
	Root.PersistentFlags().String("metrics-addr", "", "address to serve Prometheus metrics at")
	Root.PersistentFlags().String("sentry-dsn", "", "DSN of a Sentry instance to send the error reports to")

	Devices.Flags().Bool("free-all", true, "release every device before exiting")

	Remix.Flags().StringP("input", "i", "", "the media file/URL to read the audio from")
	Remix.Flags().String("map", "1|0", "the channel map: which source plane each output channel is taken from")
	Remix.Flags().Int("stream-index", -1, "the index of the stream to remix (-1: the first audio stream)")
	Remix.Flags().StringArray("init-hw-device", nil, "a hardware device specification (TYPE[=NAME][:BACKEND][,KEY=VALUE...] or TYPE[=NAME]@SOURCE); may be given multiple times")
	Remix.Flags().String("hwaccel", "", "the hardware device type to decode with (requires a matching --init-hw-device)")
	Remix.Flags().String("filter", "", "a filter chain description to propagate the selected device into (printed, not executed)")
	Remix.Flags().String("encoder", "", "re-encode the remixed frames with this encoder")
}

func assertNoError(ctx context.Context, err error) {
	if err != nil {
		logger.Panic(ctx, err)
	}
}
