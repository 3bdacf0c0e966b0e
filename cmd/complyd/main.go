// Command complyd runs the compliance scan API, the recurring-scan scheduler
// and the scan workers in one process.
// Usage: complyd [--config comply.json] [--listen-addr :8080]
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/jessevdk/go-flags"
	"github.com/tedsuo/ifrit"
	"github.com/tedsuo/ifrit/grouper"
	"github.com/tedsuo/ifrit/http_server"
	"github.com/tedsuo/ifrit/sigmon"

	"github.com/raysh454/comply/internal/app"
	"github.com/raysh454/comply/internal/cli"
	"github.com/raysh454/comply/internal/logging"
	"github.com/raysh454/comply/internal/server"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out, errOut io.Writer) int {
	opts, err := cli.ParseArgs(args)
	if err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			fmt.Fprintln(out, ferr.Message)
			return 0
		}
		fmt.Fprintln(errOut, err)
		return 2
	}

	cfg, err := opts.LoadConfig()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}

	logger := logging.NewLogger(out, cfg.LogLevel, "complyd")
	logger.Info("starting", logging.Field{Key: "listen_addr", Value: cfg.ListenAddr}, logging.Field{Key: "db_path", Value: cfg.DBPath})

	application, err := app.NewApplication(cfg, logger, nil, nil)
	if err != nil {
		logger.Error("failed to build application", logging.Field{Key: "error", Value: err.Error()})
		return 1
	}
	defer func() {
		if err := application.Close(); err != nil {
			logger.Error("failed to close application", logging.Field{Key: "error", Value: err.Error()})
		}
	}()

	srv := server.NewServer(server.Config{ListenAddr: cfg.ListenAddr, Logger: logger}, application.Orch, application.Metrics)

	members := append(application.Members(), grouper.Member{
		Name:   "api",
		Runner: http_server.New(cfg.ListenAddr, srv),
	})
	runner := sigmon.New(grouper.NewParallel(os.Interrupt, members))

	if err := <-ifrit.Invoke(runner).Wait(); err != nil {
		logger.Error("exited with error", logging.Field{Key: "error", Value: err.Error()})
		return 1
	}
	logger.Info("done")
	return 0
}
