/*******************************************************************************
 *
 *
 * (c) Copyright Merative US L.P. and others 2020-2022
 *
 * SPDX-Licence-Identifier: Apache 2.0
 *
 *******************************************************************************/

// Package treasury is the reward treasury of the market ledger.
//
// The pool is funded by any caller and pays rewards and citation bonuses. Every payout
// carries a reference and happens at most once per reference, so a redelivered or
// repeated claim can never pay twice. Funds may be reserved for a reference ahead of
// its payout.
package treasury

import (
	"encoding/json"
	"strconv"

	"github.com/choiwab/patient-x/pxchain/cached_stub"
	"github.com/choiwab/patient-x/pxchain/custom_errors"
	"github.com/choiwab/patient-x/pxchain/data_model"
	"github.com/choiwab/patient-x/pxchain/internal/treasury_i"
	"github.com/choiwab/patient-x/pxchain/utils"

	"github.com/hyperledger/fabric/core/chaincode/shim"
	"github.com/pkg/errors"
)

var logger = shim.NewLogger("treasury")

// ------------------------------------------------------
// ---------------------- INIT FUNCTIONS ----------------
// ------------------------------------------------------

// Init sets up the treasury package.
func Init(stub cached_stub.CachedStubInterface, logLevel ...shim.LoggingLevel) ([]byte, error) {
	if len(logLevel) > 0 {
		logger.SetLevel(logLevel[0])
	}
	defer utils.ExitFnLogger(logger, utils.EnterFnLogger(logger))
	return treasury_i.Init(stub, logLevel...)
}

// RewardRef is the payout reference of the reward of a submission.
func RewardRef(submissionID string) string {
	return treasury_i.RewardRef(submissionID)
}

// CitationRef is the payout reference of the bonus of one citation of a submission.
func CitationRef(submissionID string, publicationRef string) string {
	return treasury_i.CitationRef(submissionID, publicationRef)
}

// Fund adds funds to the pool.
//
// args = [ amount ]
//
// Returns the pool.
func Fund(stub cached_stub.CachedStubInterface, caller data_model.Identity, args []string) ([]byte, error) {
	defer utils.ExitFnLogger(logger, utils.EnterFnLogger(logger))
	logger.Debugf("callerID: %v", caller.ID)

	if len(args) != 1 {
		return nil, argsError("expected [amount]")
	}
	amount, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		custom_err := &custom_errors.InvalidArgumentError{Argument: "amount", Reason: err.Error()}
		logger.Errorf("%v", custom_err)
		return nil, errors.WithStack(custom_err)
	}
	pool, err := FundWithParams(stub, caller, amount)
	if err != nil {
		return nil, err
	}
	return json.Marshal(pool)
}

// FundWithParams adds funds to the pool.
func FundWithParams(stub cached_stub.CachedStubInterface, caller data_model.Identity, amount uint64) (data_model.TreasuryPool, error) {
	return treasury_i.Fund(stub, caller.ID, amount)
}

// Reserve earmarks amount for the payout with reference ref if the pool can cover it.
func Reserve(stub cached_stub.CachedStubInterface, ref string, amount uint64) (bool, error) {
	return treasury_i.Reserve(stub, ref, amount)
}

// Release returns the funds reserved under ref to the pool.
func Release(stub cached_stub.CachedStubInterface, ref string) (bool, error) {
	return treasury_i.Release(stub, ref)
}

// Pay pays amount to accountID under ref. It fails with DuplicatePayout if ref was paid
// and with InsufficientFunds if the pool cannot cover it.
func Pay(stub cached_stub.CachedStubInterface, ref string, accountID string, amount uint64) (data_model.Payout, error) {
	return treasury_i.Pay(stub, ref, accountID, amount)
}

// GetPool returns the pool.
//
// args = [ ]
func GetPool(stub cached_stub.CachedStubInterface, caller data_model.Identity, args []string) ([]byte, error) {
	pool, err := GetPoolWithParams(stub)
	if err != nil {
		return nil, err
	}
	return json.Marshal(pool)
}

// GetPoolWithParams returns the pool.
func GetPoolWithParams(stub cached_stub.CachedStubInterface) (data_model.TreasuryPool, error) {
	return treasury_i.GetPool(stub)
}

// GetBalance returns the balance of an account. Without args, the caller's account.
//
// args = [ accountID? ]
func GetBalance(stub cached_stub.CachedStubInterface, caller data_model.Identity, args []string) ([]byte, error) {
	accountID := caller.ID
	if len(args) > 0 && !utils.IsStringEmpty(args[0]) {
		accountID = args[0]
	}
	account, err := GetBalanceWithParams(stub, accountID)
	if err != nil {
		return nil, err
	}
	return json.Marshal(account)
}

// GetBalanceWithParams returns the balance of an account.
func GetBalanceWithParams(stub cached_stub.CachedStubInterface, accountID string) (data_model.TreasuryAccount, error) {
	return treasury_i.GetAccount(stub, accountID)
}

// GetPayout returns the payout made under a reference.
//
// args = [ ref ]
func GetPayout(stub cached_stub.CachedStubInterface, caller data_model.Identity, args []string) ([]byte, error) {
	if len(args) != 1 {
		return nil, argsError("expected [ref]")
	}
	payout, found, err := GetPayoutWithParams(stub, args[0])
	if err != nil {
		return nil, err
	}
	if !found {
		custom_err := &custom_errors.NotFoundError{Type: "Payout", ID: args[0]}
		logger.Errorf("%v", custom_err)
		return nil, errors.WithStack(custom_err)
	}
	return json.Marshal(payout)
}

// GetPayoutWithParams returns the payout made under ref.
func GetPayoutWithParams(stub cached_stub.CachedStubInterface, ref string) (data_model.Payout, bool, error) {
	return treasury_i.GetPayout(stub, ref)
}

func argsError(reason string) error {
	custom_err := &custom_errors.InvalidArgumentError{Argument: "args", Reason: reason}
	logger.Errorf("%v", custom_err)
	return errors.WithStack(custom_err)
}
