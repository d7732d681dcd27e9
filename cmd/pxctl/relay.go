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

	"github.com/choiwab/patient-x/pxchain/gateway"
	"github.com/choiwab/patient-x/pxchain/messenger/relay"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli"
	"golang.org/x/sync/errgroup"
)

var relayCommand = cli.Command{
	Name:  "relay",
	Usage: "deliver outbox messages between ledgers served by HTTP gateways",
	Flags: []cli.Flag{
		cli.StringFlag{Name: "cursor-db", Usage: "bbolt file holding the route cursors"},
		cli.StringFlag{Name: "metrics-addr", Usage: "address of the Prometheus endpoint"},
	},
	Action: runRelay,
}

func runRelay(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if c.IsSet("cursor-db") {
		cfg.Relay.CursorDB = c.String("cursor-db")
	}
	if c.IsSet("metrics-addr") {
		cfg.Relay.MetricsAddr = c.String("metrics-addr")
	}

	ledgers := map[string]gateway.Ledger{}
	for name, url := range cfg.Ledgers {
		ledgers[name] = gateway.NewClient(url)
	}
	cursors, err := relay.OpenCursorStore(cfg.Relay.CursorDB)
	if err != nil {
		return err
	}
	defer cursors.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	r, err := relay.New(cfg.Relay, ledgers, cursors, relay.NewMetrics(reg))
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return serve(ctx, &http.Server{Addr: cfg.Relay.MetricsAddr, Handler: relay.MetricsHandler(reg)})
	})
	g.Go(func() error {
		return r.Run(ctx)
	})
	return g.Wait()
}
