/*******************************************************************************
 *
 *
 * (c) Copyright Merative US L.P. and others 2020-2022
 *
 * SPDX-Licence-Identifier: Apache 2.0
 *
 *******************************************************************************/

// Command consent_cc runs the consent ledger chaincode.
package main

import (
	"fmt"

	"github.com/choiwab/patient-x/pxchain/chaincode/consent_cc"

	"github.com/hyperledger/fabric/core/chaincode/shim"
)

func main() {
	if err := shim.Start(consent_cc.New()); err != nil {
		fmt.Printf("Error starting consent chaincode: %s", err)
	}
}
