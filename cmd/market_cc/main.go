/*******************************************************************************
 *
 *
 * (c) Copyright Merative US L.P. and others 2020-2022
 *
 * SPDX-Licence-Identifier: Apache 2.0
 *
 *******************************************************************************/

// Command market_cc runs the market ledger chaincode.
package main

import (
	"fmt"

	"github.com/choiwab/patient-x/pxchain/chaincode/market_cc"

	"github.com/hyperledger/fabric/core/chaincode/shim"
)

func main() {
	if err := shim.Start(market_cc.New()); err != nil {
		fmt.Printf("Error starting market chaincode: %s", err)
	}
}
