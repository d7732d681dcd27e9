/*******************************************************************************
 *
 *
 * (c) Copyright Merative US L.P. and others 2020-2022
 *
 * SPDX-Licence-Identifier: Apache 2.0
 *
 *******************************************************************************/

// Command health_cc runs the health ledger chaincode.
package main

import (
	"fmt"

	"github.com/choiwab/patient-x/pxchain/chaincode/health_cc"

	"github.com/hyperledger/fabric/core/chaincode/shim"
)

func main() {
	if err := shim.Start(health_cc.New()); err != nil {
		fmt.Printf("Error starting health chaincode: %s", err)
	}
}
