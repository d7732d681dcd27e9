/*******************************************************************************
 *
 *
 * (c) Copyright Merative US L.P. and others 2020-2022
 *
 * SPDX-Licence-Identifier: Apache 2.0
 *
 *******************************************************************************/

package treasury_i

import (
	"testing"

	"github.com/choiwab/patient-x/pxchain/cached_stub"
	"github.com/choiwab/patient-x/pxchain/custom_errors"
	"github.com/choiwab/patient-x/pxchain/data_model"
	"github.com/choiwab/patient-x/pxchain/internal/common"
	"github.com/choiwab/patient-x/pxchain/internal/common/global"
	"github.com/choiwab/patient-x/pxchain/test_utils"

	"github.com/hyperledger/fabric/core/chaincode/shim"
)

func setup(t *testing.T, funds uint64) *test_utils.NewMockStub {
	logger.SetLevel(shim.LogDebug)
	mstub := test_utils.CreateNewMockStub(t, global.LEDGER_MARKET)
	mstub.SetTime(test_utils.T0)
	mstub.MockTransactionStart("t1")
	stub := cached_stub.NewCachedStub(mstub)
	Init(stub)
	common.PutLedgerConfig(stub, data_model.LedgerConfig{Ledger: global.LEDGER_MARKET, AdminID: "admin"})
	if funds > 0 {
		_, err := Fund(stub, "sponsor", funds)
		test_utils.AssertNilError(t, err, "Fund failed")
	}
	mstub.MockTransactionEnd("t1")
	return mstub
}

func TestFund(t *testing.T) {
	mstub := setup(t, 1000)
	mstub.MockTransactionStart("t2")
	stub := cached_stub.NewCachedStub(mstub)
	pool, err := Fund(stub, "sponsor", 500)
	test_utils.AssertNilError(t, err, "Fund failed")
	test_utils.AssertTrue(t, pool.Balance == 1500 && pool.TotalFunded == 1500, "Expected funded pool")
	_, err = Fund(stub, "sponsor", 0)
	test_utils.AssertTrue(t, custom_errors.Code(err) == "InvalidArgument", "Expected InvalidArgument for zero amount")
	mstub.MockTransactionEnd("t2")
}

func TestPayOncePerRef(t *testing.T) {
	mstub := setup(t, 1000)
	ref := RewardRef("sub1")

	mstub.MockTransactionStart("t2")
	stub := cached_stub.NewCachedStub(mstub)
	payout, err := Pay(stub, ref, "alice", 400)
	test_utils.AssertNilError(t, err, "Pay failed")
	test_utils.AssertTrue(t, payout.Amount == 400 && payout.PaidAt == test_utils.T0, "Expected payout")
	mstub.MockTransactionEnd("t2")

	mstub.MockTransactionStart("t3")
	stub = cached_stub.NewCachedStub(mstub)
	_, err = Pay(stub, ref, "alice", 400)
	test_utils.AssertTrue(t, custom_errors.Code(err) == "DuplicatePayout", "Expected DuplicatePayout")
	_, err = Pay(stub, CitationRef("sub1", "doi:1"), "alice", 700)
	test_utils.AssertTrue(t, custom_errors.Code(err) == "InsufficientFunds", "Expected InsufficientFunds")
	pool, err := GetPool(stub)
	test_utils.AssertNilError(t, err, "GetPool failed")
	test_utils.AssertTrue(t, pool.Balance == 600 && pool.TotalPaid == 400, "Expected one debit")
	account, err := GetAccount(stub, "alice")
	test_utils.AssertNilError(t, err, "GetAccount failed")
	test_utils.AssertTrue(t, account.Balance == 400, "Expected one credit")
	mstub.MockTransactionEnd("t3")
}

func TestReserve(t *testing.T) {
	mstub := setup(t, 1000)

	mstub.MockTransactionStart("t2")
	stub := cached_stub.NewCachedStub(mstub)
	reserved, err := Reserve(stub, RewardRef("sub1"), 800)
	test_utils.AssertNilError(t, err, "Reserve failed")
	test_utils.AssertTrue(t, reserved, "Expected reservation")
	reserved, err = Reserve(stub, RewardRef("sub1"), 800)
	test_utils.AssertNilError(t, err, "Reserve failed")
	test_utils.AssertTrue(t, reserved, "Expected existing reservation")
	reserved, err = Reserve(stub, RewardRef("sub2"), 800)
	test_utils.AssertNilError(t, err, "Reserve failed")
	test_utils.AssertFalse(t, reserved, "Expected no reservation beyond available funds")
	mstub.MockTransactionEnd("t2")

	mstub.MockTransactionStart("t3")
	stub = cached_stub.NewCachedStub(mstub)
	_, err = Pay(stub, RewardRef("sub2"), "bob", 300)
	test_utils.AssertTrue(t, custom_errors.Code(err) == "InsufficientFunds", "Expected reserved funds to be held back")
	_, err = Pay(stub, RewardRef("sub1"), "alice", 800)
	test_utils.AssertNilError(t, err, "Pay of reserved ref failed")
	pool, err := GetPool(stub)
	test_utils.AssertNilError(t, err, "GetPool failed")
	test_utils.AssertTrue(t, pool.Balance == 200 && pool.Reserved == 0, "Expected reservation consumed")
	mstub.MockTransactionEnd("t3")
}

func TestRelease(t *testing.T) {
	mstub := setup(t, 1000)

	mstub.MockTransactionStart("t2")
	stub := cached_stub.NewCachedStub(mstub)
	reserved, err := Reserve(stub, RewardRef("sub1"), 800)
	test_utils.AssertNilError(t, err, "Reserve failed")
	test_utils.AssertTrue(t, reserved, "Expected reservation")
	released, err := Release(stub, RewardRef("sub1"))
	test_utils.AssertNilError(t, err, "Release failed")
	test_utils.AssertTrue(t, released, "Expected the reservation released")
	released, err = Release(stub, RewardRef("sub1"))
	test_utils.AssertNilError(t, err, "Release failed")
	test_utils.AssertFalse(t, released, "Expected nothing left to release")
	pool, err := GetPool(stub)
	test_utils.AssertNilError(t, err, "GetPool failed")
	test_utils.AssertTrue(t, pool.Reserved == 0 && pool.Available() == 1000, "Expected funds available again")
	mstub.MockTransactionEnd("t2")

	// released funds can pay another ref
	mstub.MockTransactionStart("t3")
	stub = cached_stub.NewCachedStub(mstub)
	_, err = Pay(stub, RewardRef("sub2"), "bob", 900)
	test_utils.AssertNilError(t, err, "Pay after release failed")
	mstub.MockTransactionEnd("t3")
}

func TestPayOnFailingStore(t *testing.T) {
	stub := cached_stub.NewCachedStub(test_utils.CreateMisbehavingMockStub(t))
	_, err := Pay(stub, RewardRef("sub1"), "alice", 100)
	test_utils.AssertTrue(t, err != nil, "Expected Pay to fail")
	test_utils.AssertTrue(t, custom_errors.Describe(err).Category == custom_errors.CATEGORY_INTERNAL, "Expected an internal error")
	_, err = Fund(stub, "sponsor", 100)
	test_utils.AssertTrue(t, err != nil, "Expected Fund to fail")
	_, err = Release(stub, RewardRef("sub1"))
	test_utils.AssertTrue(t, err != nil, "Expected Release to fail")
}
