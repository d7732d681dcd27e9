/*******************************************************************************
 *
 *
 * (c) Copyright Merative US L.P. and others 2020-2022
 *
 * SPDX-Licence-Identifier: Apache 2.0
 *
 *******************************************************************************/

// Package treasury_i keeps the reward pool, reservations, account balances and payouts
// of the market ledger.
package treasury_i

import (
	"strconv"
	"strings"

	"github.com/choiwab/patient-x/pxchain/cached_stub"
	"github.com/choiwab/patient-x/pxchain/custom_errors"
	"github.com/choiwab/patient-x/pxchain/data_model"
	"github.com/choiwab/patient-x/pxchain/history"
	"github.com/choiwab/patient-x/pxchain/internal/common"
	"github.com/choiwab/patient-x/pxchain/internal/common/global"
	"github.com/choiwab/patient-x/pxchain/utils"

	"github.com/hyperledger/fabric/core/chaincode/shim"
	"github.com/pkg/errors"
)

var logger = shim.NewLogger("treasury_i")

// Init sets up the treasury package.
func Init(stub cached_stub.CachedStubInterface, logLevel ...shim.LoggingLevel) ([]byte, error) {
	if len(logLevel) > 0 {
		logger.SetLevel(logLevel[0])
	}
	return nil, nil
}

// RewardRef is the payout reference of the reward of a submission.
func RewardRef(submissionID string) string {
	return global.PAYOUT_REWARD_PREFIX + ":" + submissionID
}

// CitationRef is the payout reference of the bonus of one citation of a submission.
func CitationRef(submissionID string, publicationRef string) string {
	return strings.Join([]string{global.PAYOUT_CITATION_PREFIX, submissionID, publicationRef}, ":")
}

// Fund adds amount to the pool.
func Fund(stub cached_stub.CachedStubInterface, funderID string, amount uint64) (data_model.TreasuryPool, error) {
	defer utils.ExitFnLogger(logger, utils.EnterFnLogger(logger))

	pool, err := GetPool(stub)
	if err != nil {
		return pool, err
	}
	if amount == 0 {
		custom_err := &custom_errors.InvalidArgumentError{Argument: "amount", Reason: "amount must be positive"}
		logger.Errorf("%v", custom_err)
		return pool, errors.WithStack(custom_err)
	}
	if pool.Balance+amount < pool.Balance {
		custom_err := &custom_errors.InvalidArgumentError{Argument: "amount", Reason: "balance overflow"}
		logger.Errorf("%v", custom_err)
		return pool, errors.WithStack(custom_err)
	}
	pool.Balance += amount
	pool.TotalFunded += amount
	if err := putPool(stub, pool); err != nil {
		return pool, err
	}
	_, err = history.PutEvent(stub, data_model.Event{Type: data_model.EVENT_TREASURY_FUNDED, ActorID: funderID, Amount: amount, Data: poolData(pool)})
	logger.Infof("treasury funded with %v by %v, balance %v", amount, funderID, pool.Balance)
	return pool, err
}

// Reserve earmarks amount for the payout with reference ref if the pool can cover it.
// It returns false when the pool is short; the payout may still succeed later if the
// pool is funded in between. Reserving an already reserved or paid ref changes nothing.
func Reserve(stub cached_stub.CachedStubInterface, ref string, amount uint64) (bool, error) {
	defer utils.ExitFnLogger(logger, utils.EnterFnLogger(logger))

	if _, paid, err := GetPayout(stub, ref); err != nil || paid {
		return false, err
	}
	if _, reserved, err := getReservation(stub, ref); err != nil || reserved {
		return reserved, err
	}
	pool, err := GetPool(stub)
	if err != nil {
		return false, err
	}
	if pool.Available() < amount {
		logger.Warningf("cannot reserve %v for %v, %v available", amount, ref, pool.Available())
		return false, nil
	}
	now, err := utils.GetTxTime(stub)
	if err != nil {
		return false, err
	}
	pool.Reserved += amount
	if err := putPool(stub, pool); err != nil {
		return false, err
	}
	key, err := common.CompositeKey(stub, global.TREASURY_RESERVATION_PREFIX, ref)
	if err != nil {
		return false, err
	}
	return true, common.PutJSON(stub, key, data_model.Reservation{Ref: ref, Amount: amount, ReservedAt: now}, "Reservation")
}

// Release drops the reservation under ref and returns its funds to the available
// balance. It returns false if nothing was reserved under ref.
func Release(stub cached_stub.CachedStubInterface, ref string) (bool, error) {
	defer utils.ExitFnLogger(logger, utils.EnterFnLogger(logger))

	reservation, reserved, err := getReservation(stub, ref)
	if err != nil || !reserved {
		return false, err
	}
	pool, err := GetPool(stub)
	if err != nil {
		return false, err
	}
	if pool.Reserved < reservation.Amount {
		pool.Reserved = 0
	} else {
		pool.Reserved -= reservation.Amount
	}
	if err := putPool(stub, pool); err != nil {
		return false, err
	}
	key, err := common.CompositeKey(stub, global.TREASURY_RESERVATION_PREFIX, ref)
	if err != nil {
		return false, err
	}
	if err := common.DelKey(stub, key); err != nil {
		return false, err
	}
	logger.Infof("released %v reserved for %v", reservation.Amount, ref)
	return true, nil
}

// Pay moves amount from the pool to the account of accountID, once per ref.
// A reservation under ref is consumed and its funds count towards the payment.
func Pay(stub cached_stub.CachedStubInterface, ref string, accountID string, amount uint64) (data_model.Payout, error) {
	defer utils.ExitFnLogger(logger, utils.EnterFnLogger(logger))

	payout, paid, err := GetPayout(stub, ref)
	if err != nil {
		return payout, err
	}
	if paid {
		custom_err := &custom_errors.DuplicatePayoutError{Ref: ref}
		logger.Errorf("%v", custom_err)
		return payout, errors.WithStack(custom_err)
	}
	pool, err := GetPool(stub)
	if err != nil {
		return payout, err
	}
	reservation, reserved, err := getReservation(stub, ref)
	if err != nil {
		return payout, err
	}
	available := pool.Available() + reservation.Amount
	if amount > available {
		custom_err := &custom_errors.InsufficientFundsError{Requested: amount, Available: available}
		logger.Errorf("%v", custom_err)
		return payout, errors.WithStack(custom_err)
	}
	now, err := utils.GetTxTime(stub)
	if err != nil {
		return payout, err
	}

	if reserved {
		pool.Reserved -= reservation.Amount
		key, err := common.CompositeKey(stub, global.TREASURY_RESERVATION_PREFIX, ref)
		if err != nil {
			return payout, err
		}
		if err := common.DelKey(stub, key); err != nil {
			return payout, err
		}
	}
	pool.Balance -= amount
	pool.TotalPaid += amount
	if err := putPool(stub, pool); err != nil {
		return payout, err
	}
	account, err := GetAccount(stub, accountID)
	if err != nil {
		return payout, err
	}
	account.Balance += amount
	if err := putAccount(stub, account); err != nil {
		return payout, err
	}

	payout = data_model.Payout{Ref: ref, AccountID: accountID, Amount: amount, PaidAt: now, TxID: stub.GetTxID()}
	key, err := common.CompositeKey(stub, global.TREASURY_PAYOUT_PREFIX, ref)
	if err != nil {
		return payout, err
	}
	if err := common.PutJSON(stub, key, payout, "Payout"); err != nil {
		return payout, err
	}
	logger.Infof("paid %v to %v for %v, balance %v", amount, accountID, ref, pool.Balance)
	return payout, nil
}

// GetPool returns the pool.
func GetPool(stub cached_stub.CachedStubInterface) (data_model.TreasuryPool, error) {
	pool := data_model.TreasuryPool{}
	_, err := common.GetJSON(stub, global.TREASURY_POOL_KEY, &pool, "TreasuryPool")
	return pool, err
}

// GetAccount returns the balance of an account; unknown accounts have a zero balance.
func GetAccount(stub cached_stub.CachedStubInterface, accountID string) (data_model.TreasuryAccount, error) {
	account := data_model.TreasuryAccount{AccountID: accountID}
	key, err := common.CompositeKey(stub, global.TREASURY_ACCOUNT_PREFIX, accountID)
	if err != nil {
		return account, err
	}
	_, err = common.GetJSON(stub, key, &account, "TreasuryAccount")
	return account, err
}

// GetPayout returns the payout made under ref.
func GetPayout(stub cached_stub.CachedStubInterface, ref string) (data_model.Payout, bool, error) {
	payout := data_model.Payout{}
	key, err := common.CompositeKey(stub, global.TREASURY_PAYOUT_PREFIX, ref)
	if err != nil {
		return payout, false, err
	}
	found, err := common.GetJSON(stub, key, &payout, "Payout")
	return payout, found, err
}

func poolData(pool data_model.TreasuryPool) map[string]string {
	return map[string]string{
		"balance":  strconv.FormatUint(pool.Balance, 10),
		"reserved": strconv.FormatUint(pool.Reserved, 10),
	}
}

func getReservation(stub cached_stub.CachedStubInterface, ref string) (data_model.Reservation, bool, error) {
	reservation := data_model.Reservation{}
	key, err := common.CompositeKey(stub, global.TREASURY_RESERVATION_PREFIX, ref)
	if err != nil {
		return reservation, false, err
	}
	found, err := common.GetJSON(stub, key, &reservation, "Reservation")
	return reservation, found, err
}

func putPool(stub cached_stub.CachedStubInterface, pool data_model.TreasuryPool) error {
	return common.PutJSON(stub, global.TREASURY_POOL_KEY, pool, "TreasuryPool")
}

func putAccount(stub cached_stub.CachedStubInterface, account data_model.TreasuryAccount) error {
	key, err := common.CompositeKey(stub, global.TREASURY_ACCOUNT_PREFIX, account.AccountID)
	if err != nil {
		return err
	}
	return common.PutJSON(stub, key, account, "TreasuryAccount")
}
