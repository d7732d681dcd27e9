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
	"fmt"

	"github.com/choiwab/patient-x/pxchain/audit_export"
	"github.com/choiwab/patient-x/pxchain/gateway"

	"github.com/pkg/errors"
	"github.com/urfave/cli"
)

var exportCommand = cli.Command{
	Name:  "export-audit",
	Usage: "copy the event logs of the ledgers into Postgres",
	Flags: []cli.Flag{
		cli.StringFlag{Name: "dsn", Usage: "Postgres connection string", EnvVar: "PX_AUDIT_DSN"},
		cli.StringFlag{Name: "caller", Value: "admin", Usage: "account id used to read the event logs"},
		cli.StringSliceFlag{Name: "ledger", Usage: "ledger to export (repeatable, default all configured)"},
	},
	Action: runExport,
}

func runExport(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if c.IsSet("dsn") {
		cfg.Audit.DSN = c.String("dsn")
	}
	if len(cfg.Audit.DSN) == 0 {
		return errors.New("no audit dsn: set audit.dsn or --dsn")
	}

	ledgers := map[string]gateway.Ledger{}
	for name, url := range cfg.Ledgers {
		ledgers[name] = gateway.NewClient(url)
	}
	if only := c.StringSlice("ledger"); len(only) > 0 {
		selected := map[string]gateway.Ledger{}
		for _, name := range only {
			ledger, ok := ledgers[name]
			if !ok {
				return errors.Errorf("ledger %v is not configured", name)
			}
			selected[name] = ledger
		}
		ledgers = selected
	}

	ctx, stop := signalContext()
	defer stop()
	pool, err := audit_export.Connect(ctx, cfg.Audit.DSN, cfg.Audit.MaxConns)
	if err != nil {
		return err
	}
	defer pool.Close()
	store := &audit_export.Store{DB: pool}
	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}

	exporter := &audit_export.Exporter{
		CallerID:  c.String("caller"),
		BatchSize: cfg.Audit.BatchSize,
		Ledgers:   ledgers,
		Sink:      store,
	}
	counts, err := exporter.ExportAll(ctx)
	for name, n := range counts {
		fmt.Printf("%v\t%v events\n", name, n)
	}
	return err
}
