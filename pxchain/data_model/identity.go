/*******************************************************************************
 *
 *
 * (c) Copyright Merative US L.P. and others 2020-2022
 *
 * SPDX-Licence-Identifier: Apache 2.0
 *
 *******************************************************************************/

package data_model

// Identity is an account known to a ledger.
//
// Supply the following fields:
//   - ID: account id, also the caller id used in chaincode invocations
//   - Role: one of the global.ROLE_* values
//   - Jurisdiction: declared jurisdiction, e.g. "US" or "EU"
//
// Verified and RegisteredAt are set by the ledger.
type Identity struct {
	ID           string `json:"id"`
	Name         string `json:"name,omitempty"`
	Role         string `json:"role"`
	Jurisdiction string `json:"jurisdiction,omitempty"`
	Verified     bool   `json:"verified"`
	RegisteredAt int64  `json:"registered_at"`
}

// ToRequester returns the attributes of the identity the consent evaluator uses.
func (i Identity) ToRequester() Requester {
	return Requester{ID: i.ID, Role: i.Role, Jurisdiction: i.Jurisdiction}
}
