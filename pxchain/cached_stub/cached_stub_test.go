/*******************************************************************************
 *
 *
 * (c) Copyright Merative US L.P. and others 2020-2022
 *
 * SPDX-Licence-Identifier: Apache 2.0
 *
 *******************************************************************************/

package cached_stub

import (
	"testing"

	"github.com/choiwab/patient-x/pxchain/test_utils"

	"github.com/hyperledger/fabric/core/chaincode/shim"
)

func keys(t *testing.T, stub CachedStubInterface, objectType string) []string {
	iter, err := stub.GetStateByPartialCompositeKey(objectType, []string{})
	test_utils.AssertNilError(t, err, "GetStateByPartialCompositeKey failed")
	defer iter.Close()
	result := []string{}
	for iter.HasNext() {
		kv, err := iter.Next()
		test_utils.AssertNilError(t, err, "Next failed")
		result = append(result, kv.Key)
	}
	return result
}

func TestDeferredWrites(t *testing.T) {
	logger.SetLevel(shim.LogDebug)
	mstub := test_utils.CreateNewMockStub(t)
	mstub.MockTransactionStart("t1")
	stub := NewCachedStub(mstub, true, true)

	test_utils.AssertNilError(t, stub.PutState("a", []byte("1")), "PutState failed")
	val, _ := stub.GetState("a")
	test_utils.AssertTrue(t, string(val) == "1", "Expected buffered write to be readable")
	underlying, _ := mstub.GetState("a")
	test_utils.AssertTrue(t, underlying == nil, "Expected nothing written before Flush")
	test_utils.AssertTrue(t, stub.PendingWrites() == 1, "Expected one pending write")

	test_utils.AssertNilError(t, stub.Flush(), "Flush failed")
	test_utils.AssertTrue(t, stub.PendingWrites() == 0, "Expected no pending writes after Flush")
	mstub.MockTransactionEnd("t1")

	committed, _ := mstub.GetState("a")
	test_utils.AssertTrue(t, string(committed) == "1", "Expected flushed write to commit")
}

func TestDiscardedWrites(t *testing.T) {
	mstub := test_utils.CreateNewMockStub(t)
	mstub.MockTransactionStart("t1")
	stub := NewCachedStub(mstub, true, true)
	test_utils.AssertNilError(t, stub.PutState("a", []byte("1")), "PutState failed")
	// no Flush: the handler failed
	mstub.MockTransactionEnd("t1")

	val, _ := mstub.GetState("a")
	test_utils.AssertTrue(t, val == nil, "Expected unflushed write to be dropped")
}

func TestDeleteAndEmptyPut(t *testing.T) {
	mstub := test_utils.CreateNewMockStub(t)
	mstub.MockTransactionStart("t1")
	stub := NewCachedStub(mstub, true, true)
	stub.PutState("a", []byte("1"))
	stub.PutState("b", []byte("2"))
	stub.Flush()
	mstub.MockTransactionEnd("t1")

	mstub.MockTransactionStart("t2")
	stub = NewCachedStub(mstub, true, true)
	test_utils.AssertNilError(t, stub.DelState("a"), "DelState failed")
	test_utils.AssertNilError(t, stub.PutState("b", nil), "PutState failed")
	val, _ := stub.GetState("a")
	test_utils.AssertTrue(t, val == nil, "Expected deleted key to read as nil")
	stub.Flush()
	mstub.MockTransactionEnd("t2")

	a, _ := mstub.GetState("a")
	b, _ := mstub.GetState("b")
	test_utils.AssertTrue(t, a == nil && b == nil, "Expected both keys deleted")
}

func TestPartialCompositeKeyMergesWrites(t *testing.T) {
	mstub := test_utils.CreateNewMockStub(t)
	mstub.MockTransactionStart("t1")
	stub := NewCachedStub(mstub, true, true)
	for _, id := range []string{"1", "2", "3"} {
		key, _ := stub.CreateCompositeKey("obj", []string{id})
		stub.PutState(key, []byte(id))
	}
	stub.Flush()
	mstub.MockTransactionEnd("t1")

	mstub.MockTransactionStart("t2")
	stub = NewCachedStub(mstub, true, true)
	key2, _ := stub.CreateCompositeKey("obj", []string{"2"})
	key4, _ := stub.CreateCompositeKey("obj", []string{"4"})
	other, _ := stub.CreateCompositeKey("other", []string{"1"})
	stub.DelState(key2)
	stub.PutState(key4, []byte("4"))
	stub.PutState(other, []byte("x"))

	result := keys(t, stub, "obj")
	key1, _ := stub.CreateCompositeKey("obj", []string{"1"})
	key3, _ := stub.CreateCompositeKey("obj", []string{"3"})
	test_utils.AssertListsEqual(t, []string{key1, key3, key4}, result)
	mstub.MockTransactionEnd("t2")
}

func TestCache(t *testing.T) {
	mstub := test_utils.CreateNewMockStub(t)
	stub := NewCachedStub(mstub)
	_, err := stub.GetCache("k")
	test_utils.AssertError(t, err, "Expected error for a missing cache key")
	stub.PutCache("k", 42)
	val, err := stub.GetCache("k")
	test_utils.AssertNilError(t, err, "GetCache failed")
	test_utils.AssertTrue(t, val.(int) == 42, "Expected cached value")
	stub.DelCache("k")
	_, err = stub.GetCache("k")
	test_utils.AssertError(t, err, "Expected error after DelCache")
}

func TestFlushSurfacesWriteFailure(t *testing.T) {
	mstub := test_utils.CreateMisbehavingMockStub(t)
	stub := NewCachedStub(mstub, true, true)

	// the buffer takes writes the ledger would refuse
	test_utils.AssertNilError(t, stub.PutState("a", []byte("1")), "Deferred PutState failed")
	val, err := stub.GetState("a")
	test_utils.AssertNilError(t, err, "GetState of a buffered key failed")
	test_utils.AssertTrue(t, string(val) == "1", "Expected buffered value")
	_, err = stub.GetState("b")
	test_utils.AssertTrue(t, err != nil, "Expected the read error of the ledger")

	test_utils.AssertTrue(t, stub.Flush() != nil, "Expected Flush to fail")

	direct := NewCachedStub(mstub)
	test_utils.AssertTrue(t, direct.PutState("a", []byte("1")) != nil, "Expected direct PutState to fail")
}
