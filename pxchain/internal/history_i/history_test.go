/*******************************************************************************
 *
 *
 * (c) Copyright Merative US L.P. and others 2020-2022
 *
 * SPDX-Licence-Identifier: Apache 2.0
 *
 *******************************************************************************/

package history_i

import (
	"testing"

	"github.com/choiwab/patient-x/pxchain/cached_stub"
	"github.com/choiwab/patient-x/pxchain/data_model"
	"github.com/choiwab/patient-x/pxchain/internal/common"
	"github.com/choiwab/patient-x/pxchain/internal/common/global"
	"github.com/choiwab/patient-x/pxchain/test_utils"

	"github.com/hyperledger/fabric/core/chaincode/shim"
)

func setup(t *testing.T) *test_utils.NewMockStub {
	mstub := test_utils.CreateNewMockStub(t)
	mstub.SetTime(test_utils.T0)
	mstub.MockTransactionStart("t1")
	stub := cached_stub.NewCachedStub(mstub)
	Init(stub)
	common.PutLedgerConfig(stub, data_model.LedgerConfig{Ledger: global.LEDGER_HEALTH})
	mstub.MockTransactionEnd("t1")
	logger.SetLevel(shim.LogDebug)
	return mstub
}

func TestPutAndGetEvents(t *testing.T) {
	mstub := setup(t)

	mstub.MockTransactionStart("t2")
	stub := cached_stub.NewCachedStub(mstub)
	e1, err := PutEvent(stub, data_model.Event{Type: data_model.EVENT_ACCESS_REQUESTED, RequestID: "req1"})
	test_utils.AssertNilError(t, err, "PutEvent failed")
	e2, err := PutEvent(stub, data_model.Event{Type: data_model.EVENT_ACCESS_GRANTED, RequestID: "req1"})
	test_utils.AssertNilError(t, err, "PutEvent failed")
	mstub.MockTransactionEnd("t2")

	test_utils.AssertTrue(t, e1.Seq == 1 && e2.Seq == 2, "Expected gap-free sequence")
	test_utils.AssertTrue(t, e1.Ledger == global.LEDGER_HEALTH, "Expected ledger name from config")
	test_utils.AssertTrue(t, e1.TxID == "t2", "Expected tx id")
	test_utils.AssertTrue(t, e1.Timestamp == test_utils.T0, "Expected tx timestamp")

	mstub.MockTransactionStart("t3")
	stub = cached_stub.NewCachedStub(mstub)
	events, err := GetEvents(stub, 0, 0)
	test_utils.AssertNilError(t, err, "GetEvents failed")
	test_utils.AssertTrue(t, len(events) == 2, "Expected 2 events")
	test_utils.AssertTrue(t, events[1].Type == data_model.EVENT_ACCESS_GRANTED, "Expected events in order")

	events, err = GetEvents(stub, 1, 10)
	test_utils.AssertNilError(t, err, "GetEvents failed")
	test_utils.AssertTrue(t, len(events) == 1 && events[0].Seq == 2, "Expected events after seq 1")

	events, err = GetEvents(stub, 0, 1)
	test_utils.AssertNilError(t, err, "GetEvents failed")
	test_utils.AssertTrue(t, len(events) == 1 && events[0].Seq == 1, "Expected limit to apply")
	mstub.MockTransactionEnd("t3")
}

func TestGetEventsByType(t *testing.T) {
	mstub := setup(t)

	mstub.MockTransactionStart("t2")
	stub := cached_stub.NewCachedStub(mstub)
	for _, eventType := range []data_model.EventType{data_model.EVENT_POLICY_GRANTED, data_model.EVENT_POLICY_REVOKED, data_model.EVENT_POLICY_GRANTED} {
		_, err := PutEvent(stub, data_model.Event{Type: eventType, PolicyID: "p1"})
		test_utils.AssertNilError(t, err, "PutEvent failed")
	}
	granted, err := GetEventsByType(stub, data_model.EVENT_POLICY_GRANTED)
	test_utils.AssertNilError(t, err, "GetEventsByType failed")
	test_utils.AssertTrue(t, len(granted) == 2, "Expected 2 granted events")
	test_utils.AssertTrue(t, granted[0].Seq == 1 && granted[1].Seq == 3, "Expected granted events in order")
	mstub.MockTransactionEnd("t2")

	lastSeq := uint64(0)
	mstub.MockTransactionStart("t3")
	stub = cached_stub.NewCachedStub(mstub)
	lastSeq, err = GetLastSeq(stub)
	test_utils.AssertNilError(t, err, "GetLastSeq failed")
	mstub.MockTransactionEnd("t3")
	test_utils.AssertTrue(t, lastSeq == 3, "Expected last seq 3")
}

func TestPutEventRequiresType(t *testing.T) {
	mstub := setup(t)
	mstub.MockTransactionStart("t2")
	stub := cached_stub.NewCachedStub(mstub)
	_, err := PutEvent(stub, data_model.Event{})
	test_utils.AssertError(t, err, "Expected error for missing event type")
	mstub.MockTransactionEnd("t2")
}
