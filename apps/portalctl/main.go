// Command portalctl logs into the Masomo portal from a terminal and inspects the stored session.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/trezcool/masomo/portal/core"
	logsvc "github.com/trezcool/masomo/portal/services/logger"
)

func main() {
	conf := core.NewConfig()

	zl, err := logsvc.NewZapLogger(conf, "portalctl")
	if err != nil {
		log.Fatal(err)
	}
	logger := logsvc.NewRollbarLogger(zl, conf)
	logger.Enable(!conf.Debug)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cli := newCommandLine(conf, logger, os.Stdout)
	if err := cli.rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", errorMessage(err))
		logger.Sync()
		os.Exit(1)
	}
}
