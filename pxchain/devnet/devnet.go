/*******************************************************************************
 *
 *
 * (c) Copyright Merative US L.P. and others 2020-2022
 *
 * SPDX-Licence-Identifier: Apache 2.0
 *
 *******************************************************************************/

// Package devnet runs the consent, health and market chaincodes in one process, each on
// an in-memory world state.
package devnet

import (
	"context"

	"github.com/choiwab/patient-x/pxchain/chaincode/consent_cc"
	"github.com/choiwab/patient-x/pxchain/chaincode/health_cc"
	"github.com/choiwab/patient-x/pxchain/chaincode/market_cc"
	"github.com/choiwab/patient-x/pxchain/config"
	"github.com/choiwab/patient-x/pxchain/data_model"
	"github.com/choiwab/patient-x/pxchain/gateway"
	"github.com/choiwab/patient-x/pxchain/internal/common/global"

	"github.com/hyperledger/fabric/core/chaincode/shim"
	"github.com/pkg/errors"
)

var logger = shim.NewLogger("devnet")

// Network is the three ledgers of a devnet.
type Network struct {
	Consent *gateway.MemoryLedger
	Health  *gateway.MemoryLedger
	Market  *gateway.MemoryLedger
}

// Configs returns the ledger configs of a devnet administered by cfg.AdminID and
// served by the relay relayID.
func Configs(cfg config.Devnet, relayID string, logLevel string) []data_model.LedgerConfig {
	base := data_model.LedgerConfig{
		AdminID:        cfg.AdminID,
		RelayID:        relayID,
		ConsentTimeout: cfg.ConsentTimeout,
		RetryBudget:    cfg.RetryBudget,
		LogLevel:       logLevel,
	}
	consent, health, market := base, base, base
	consent.Ledger = global.LEDGER_CONSENT
	consent.Subscribers = []string{global.LEDGER_HEALTH}
	health.Ledger = global.LEDGER_HEALTH
	market.Ledger = global.LEDGER_MARKET
	return []data_model.LedgerConfig{consent, health, market}
}

// Start creates and initializes the three ledgers.
func Start(ctx context.Context, cfg config.Devnet, relayID string, logLevel string) (*Network, error) {
	n := &Network{
		Consent: gateway.NewMemoryLedger(global.LEDGER_CONSENT, consent_cc.New()),
		Health:  gateway.NewMemoryLedger(global.LEDGER_HEALTH, health_cc.New()),
		Market:  gateway.NewMemoryLedger(global.LEDGER_MARKET, market_cc.New()),
	}
	ledgers := n.byName()
	for _, ledgerConfig := range Configs(cfg, relayID, logLevel) {
		if err := ledgers[ledgerConfig.Ledger].Init(ctx, ledgerConfig); err != nil {
			return nil, errors.Wrapf(err, "init %v", ledgerConfig.Ledger)
		}
	}
	logger.Infof("devnet started, admin %v relay %v", cfg.AdminID, relayID)
	return n, nil
}

func (n *Network) byName() map[string]*gateway.MemoryLedger {
	return map[string]*gateway.MemoryLedger{
		global.LEDGER_CONSENT: n.Consent,
		global.LEDGER_HEALTH:  n.Health,
		global.LEDGER_MARKET:  n.Market,
	}
}

// Ledgers returns the ledgers by name.
func (n *Network) Ledgers() map[string]gateway.Ledger {
	ledgers := map[string]gateway.Ledger{}
	for name, ledger := range n.byName() {
		ledgers[name] = ledger
	}
	return ledgers
}
