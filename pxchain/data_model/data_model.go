/*******************************************************************************
 *
 *
 * (c) Copyright Merative US L.P. and others 2020-2022
 *
 * SPDX-Licence-Identifier: Apache 2.0
 *
 *******************************************************************************/

// Package data_model contains structs used across packages to prevent circular imports.
// For example, the ConsentDecision struct is needed by both consent_mgmt and access_gate,
// but access_gate must not depend on the consent ledger's code.
// They can't import each other, so the shared structs live here.
package data_model

import (
	"github.com/hyperledger/fabric/core/chaincode/shim"
)

var logger = shim.NewLogger("data_model")

// LedgerConfig is stored on each ledger when its chaincode is instantiated.
//
//   - Ledger: name of this ledger (consent, health or market)
//   - AdminID: account allowed to administer the ledger
//   - RelayID: account the message relay invokes the ledger with
//   - Subscribers: ledgers notified of policy status changes (consent ledger only)
//   - ConsentLedger / RecordLedger: where consent checks and provenance logs are sent
//   - ConsentTimeout: seconds before an unanswered consent check is re-sent
//   - RetryBudget: number of consent check sends before a request times out
type LedgerConfig struct {
	Ledger         string   `json:"ledger"`
	AdminID        string   `json:"admin_id"`
	RelayID        string   `json:"relay_id"`
	Subscribers    []string `json:"subscribers,omitempty"`
	ConsentLedger  string   `json:"consent_ledger,omitempty"`
	RecordLedger   string   `json:"record_ledger,omitempty"`
	ConsentTimeout int64    `json:"consent_timeout,omitempty"`
	RetryBudget    int      `json:"retry_budget,omitempty"`
	LogLevel       string   `json:"log_level,omitempty"`
}
