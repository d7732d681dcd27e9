/*******************************************************************************
 *
 *
 * (c) Copyright Merative US L.P. and others 2020-2022
 *
 * SPDX-Licence-Identifier: Apache 2.0
 *
 *******************************************************************************/

// Package index allows for creating indices in the state database.
package index

import (
	"github.com/choiwab/patient-x/pxchain/cached_stub"
	"github.com/choiwab/patient-x/pxchain/index/table_interface"
	"github.com/choiwab/patient-x/pxchain/internal/index_i"

	"github.com/hyperledger/fabric/core/chaincode/shim"
)

var logger = shim.NewLogger("index")

// Init sets up the index package.
func Init(stub cached_stub.CachedStubInterface, logLevel ...shim.LoggingLevel) ([]byte, error) {
	if len(logLevel) > 0 {
		logger.SetLevel(logLevel[0])
	}
	return index_i.Init(stub, logLevel...)
}

// GetTable returns the index table with the given name.
func GetTable(stub cached_stub.CachedStubInterface, name string) table_interface.Table {
	return index_i.GetTable(stub, name)
}

