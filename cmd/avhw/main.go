package main

import (
	"context"
	"os"

	child_process_manager "github.com/AgustinSRG/go-child-process-manager"
	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/logger"
	xlogrus "github.com/facebookincubator/go-belt/tool/logger/implementation/logrus"
	"github.com/xaionaro-go/xsync"

	"github.com/xaionaro-go/avhw/cmd/avhw/commands"
)

func main() {
	err := child_process_manager.InitializeChildProcessManager()
	if err != nil {
		panic(err)
	}
	defer child_process_manager.DisposeChildProcessManager()

	l := xlogrus.Default().WithLevel(commands.LoggerLevel)
	logger.Default = func() logger.Logger {
		return l
	}
	ctx := logger.CtxWithLogger(context.Background(), l)
	ctx = xsync.WithNoLogging(ctx, true)
	defer belt.Flush(ctx)

	if err := commands.Root.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
