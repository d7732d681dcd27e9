/*******************************************************************************
 *
 *
 * (c) Copyright Merative US L.P. and others 2020-2022
 *
 * SPDX-Licence-Identifier: Apache 2.0
 *
 *******************************************************************************/

package main

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/choiwab/patient-x/pxchain/devnet"
	"github.com/choiwab/patient-x/pxchain/gateway"
	"github.com/choiwab/patient-x/pxchain/messenger/relay"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli"
	"golang.org/x/sync/errgroup"
)

var devnetCommand = cli.Command{
	Name:  "devnet",
	Usage: "run the three ledgers in memory behind one HTTP gateway, with an in-process relay",
	Flags: []cli.Flag{
		cli.StringFlag{Name: "listen", Usage: "gateway address"},
		cli.StringFlag{Name: "admin", Usage: "admin account id"},
	},
	Action: runDevnet,
}

func runDevnet(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if c.IsSet("listen") {
		cfg.Devnet.Listen = c.String("listen")
	}
	if c.IsSet("admin") {
		cfg.Devnet.AdminID = c.String("admin")
	}

	ctx, stop := signalContext()
	defer stop()

	network, err := devnet.Start(ctx, cfg.Devnet, cfg.Relay.ID, cfg.LogLevel)
	if err != nil {
		return err
	}

	// ledger state lives in memory, so the relay cursors must not outlive the process
	dir, err := os.MkdirTemp("", "pxdevnet")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)
	cursors, err := relay.OpenCursorStore(filepath.Join(dir, "cursors.db"))
	if err != nil {
		return err
	}
	defer cursors.Close()

	reg := prometheus.NewRegistry()
	r, err := relay.New(cfg.Relay, network.Ledgers(), cursors, relay.NewMetrics(reg))
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return serve(ctx, &http.Server{Addr: cfg.Devnet.Listen, Handler: gateway.NewHandler(network.Ledgers())})
	})
	g.Go(func() error {
		return serve(ctx, &http.Server{Addr: cfg.Relay.MetricsAddr, Handler: relay.MetricsHandler(reg)})
	})
	g.Go(func() error {
		return r.Run(ctx)
	})
	logger.Infof("devnet up: gateway %v, admin %v, relay %v", cfg.Devnet.Listen, cfg.Devnet.AdminID, cfg.Relay.ID)
	return g.Wait()
}
