/*******************************************************************************
 *
 *
 * (c) Copyright Merative US L.P. and others 2020-2022
 *
 * SPDX-Licence-Identifier: Apache 2.0
 *
 *******************************************************************************/

// Command pxctl runs the off-ledger side of the network: a single-process devnet, the
// message relay and the audit exporter.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/choiwab/patient-x/pxchain/config"

	"github.com/hyperledger/fabric/core/chaincode/shim"
	"github.com/pkg/errors"
	"github.com/urfave/cli"
)

var logger = shim.NewLogger("pxctl")

func main() {
	app := cli.NewApp()
	app.Name = "pxctl"
	app.Usage = "run and operate the consent, health and market ledgers"
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "config, c", Usage: "YAML config file", EnvVar: "PX_CONFIG"},
		cli.StringFlag{Name: "log-level", Usage: "DEBUG, INFO, NOTICE, WARNING, ERROR or CRITICAL"},
	}
	app.Commands = []cli.Command{
		devnetCommand,
		relayCommand,
		exportCommand,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "pxctl: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file and applies the global flags.
func loadConfig(c *cli.Context) (config.Config, error) {
	cfg, err := config.Load(c.GlobalString("config"))
	if err != nil {
		return cfg, err
	}
	if c.GlobalIsSet("log-level") {
		cfg.LogLevel = c.GlobalString("log-level")
	}
	level, err := shim.LogLevel(cfg.LogLevel)
	if err != nil {
		return cfg, errors.Wrapf(err, "log level %v", cfg.LogLevel)
	}
	shim.SetLoggingLevel(level)
	return cfg, nil
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// serve runs srv until ctx is done.
func serve(ctx context.Context, srv *http.Server) error {
	errc := make(chan error, 1)
	go func() {
		logger.Infof("listening on %v", srv.Addr)
		errc <- srv.ListenAndServe()
	}()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
