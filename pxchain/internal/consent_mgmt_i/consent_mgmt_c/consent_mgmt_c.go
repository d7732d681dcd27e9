/*******************************************************************************
 *
 *
 * (c) Copyright Merative US L.P. and others 2020-2022
 *
 * SPDX-Licence-Identifier: Apache 2.0
 *
 *******************************************************************************/

// Package consent_mgmt_c holds the consent functions that packages outside the consent
// ledger need without importing consent_mgmt_i.
//
// In consent_mgmt_c package, only the following pxchain packages are allowed to be imported:
//	"github.com/choiwab/patient-x/pxchain/internal/common/global"
//	"github.com/choiwab/patient-x/pxchain/utils"
//
package consent_mgmt_c

import (
	"github.com/choiwab/patient-x/pxchain/internal/common/global"
	"github.com/choiwab/patient-x/pxchain/utils"
)

// GetPolicyID returns the policy id of the policy ownerID created with label.
// Labels are unique per owner, so the id is too.
func GetPolicyID(ownerID string, label string) string {
	return utils.HashHex(global.CONSENT_PREFIX, ownerID, label)
}
