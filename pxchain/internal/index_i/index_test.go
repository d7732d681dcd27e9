/*******************************************************************************
 *
 *
 * (c) Copyright Merative US L.P. and others 2020-2022
 *
 * SPDX-Licence-Identifier: Apache 2.0
 *
 *******************************************************************************/

package index_i

import (
	"testing"

	"github.com/choiwab/patient-x/pxchain/cached_stub"
	"github.com/choiwab/patient-x/pxchain/test_utils"

	"github.com/hyperledger/fabric/core/chaincode/shim"
)

func setup(t *testing.T) *test_utils.NewMockStub {
	logger.SetLevel(shim.LogDebug)
	mstub := test_utils.CreateNewMockStub(t)
	return mstub
}

func TestPutAndQueryRows(t *testing.T) {
	mstub := setup(t)

	mstub.MockTransactionStart("t1")
	stub := cached_stub.NewCachedStub(mstub)
	table := GetTable(stub, "TestTable")
	test_utils.AssertNilError(t, table.PutRow("policy1", "req2"), "PutRow failed")
	test_utils.AssertNilError(t, table.PutRow("policy1", "req1"), "PutRow failed")
	test_utils.AssertNilError(t, table.PutRow("policy2", "req3"), "PutRow failed")

	// rows written in this transaction are visible before commit
	ids, err := table.GetLastFieldByPartialKey("policy1")
	test_utils.AssertNilError(t, err, "GetLastFieldByPartialKey failed")
	test_utils.AssertListsEqual(t, []string{"req1", "req2"}, ids)
	mstub.MockTransactionEnd("t1")

	mstub.MockTransactionStart("t2")
	stub = cached_stub.NewCachedStub(mstub)
	table = GetTable(stub, "TestTable")
	has, err := table.HasRow("policy2", "req3")
	test_utils.AssertNilError(t, err, "HasRow failed")
	test_utils.AssertTrue(t, has, "Expected row to exist")
	test_utils.AssertNilError(t, table.DeleteRow("policy1", "req2"), "DeleteRow failed")
	ids, err = table.GetLastFieldByPartialKey("policy1")
	test_utils.AssertNilError(t, err, "GetLastFieldByPartialKey failed")
	test_utils.AssertListsEqual(t, []string{"req1"}, ids)
	mstub.MockTransactionEnd("t2")

	mstub.MockTransactionStart("t3")
	stub = cached_stub.NewCachedStub(mstub)
	rows, err := GetTable(stub, "TestTable").GetRowsByPartialKey()
	test_utils.AssertNilError(t, err, "GetRowsByPartialKey failed")
	test_utils.AssertTrue(t, len(rows) == 2, "Expected 2 rows")
	test_utils.AssertListsEqual(t, []string{"policy1", "req1"}, rows[0])
	mstub.MockTransactionEnd("t3")
}

func TestEmptyRow(t *testing.T) {
	mstub := setup(t)
	mstub.MockTransactionStart("t1")
	stub := cached_stub.NewCachedStub(mstub)
	err := GetTable(stub, "TestTable").PutRow()
	test_utils.AssertError(t, err, "Expected error for empty row")
	mstub.MockTransactionEnd("t1")
}
