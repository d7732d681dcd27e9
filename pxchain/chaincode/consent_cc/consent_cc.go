/*******************************************************************************
 *
 *
 * (c) Copyright Merative US L.P. and others 2020-2022
 *
 * SPDX-Licence-Identifier: Apache 2.0
 *
 *******************************************************************************/

// Package consent_cc is the chaincode of the consent ledger: the policy store and the
// consent evaluator.
//
// Functions (args after the caller id):
//   - GrantConsent [policyJSON], RevokeConsent [policyID, reason], UpdateConsent [policyID, compensationJSON, jurisdictionsJSON]
//   - GetPolicy [policyID], GetPoliciesByOwner [ownerID]
//   - CheckConsent [policyID, requesterID, purposeJSON, categoriesJSON]
//   - ExpirePolicies
//
// Messages accepted: consent_check. Tick expires policies and re-sends status notices.
package consent_cc

import (
	"github.com/choiwab/patient-x/pxchain/cached_stub"
	"github.com/choiwab/patient-x/pxchain/chaincode"
	"github.com/choiwab/patient-x/pxchain/consent_mgmt"
	"github.com/choiwab/patient-x/pxchain/data_model"
	"github.com/choiwab/patient-x/pxchain/internal/common/global"

	"github.com/hyperledger/fabric/core/chaincode/shim"
)

var logger = shim.NewLogger("consent_cc")

// New returns the consent chaincode.
func New() *chaincode.Router {
	return chaincode.NewRouter(global.LEDGER_CONSENT, initLedger).
		Function("GrantConsent", consent_mgmt.GrantConsent).
		Function("RevokeConsent", consent_mgmt.RevokeConsent).
		Function("UpdateConsent", consent_mgmt.UpdateConsent).
		Function("GetPolicy", consent_mgmt.GetPolicy).
		Function("GetPoliciesByOwner", consent_mgmt.GetPoliciesByOwner).
		Function("CheckConsent", consent_mgmt.CheckConsent).
		Function("ExpirePolicies", consent_mgmt.ExpirePolicies).
		Receiver(data_model.MSG_CONSENT_CHECK, consent_mgmt.ReceiveConsentCheck).
		OnDeliveryFailed(data_model.MSG_CONSENT_DECISION, consent_mgmt.OnDeliveryFailed).
		OnDeliveryFailed(data_model.MSG_POLICY_REVOKED, consent_mgmt.OnDeliveryFailed).
		OnDeliveryFailed(data_model.MSG_POLICY_EXPIRED, consent_mgmt.OnDeliveryFailed).
		OnTick(tick)
}

func initLedger(stub cached_stub.CachedStubInterface, config data_model.LedgerConfig, logLevel shim.LoggingLevel) error {
	logger.SetLevel(logLevel)
	logger.Infof("consent ledger subscribers: %v", config.Subscribers)
	_, err := consent_mgmt.Init(stub, logLevel)
	return err
}

func tick(stub cached_stub.CachedStubInterface) ([]byte, error) {
	return nil, consent_mgmt.Tick(stub)
}
