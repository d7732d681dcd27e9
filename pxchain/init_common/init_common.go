/*******************************************************************************
 *
 *
 * (c) Copyright Merative US L.P. and others 2020-2022
 *
 * SPDX-Licence-Identifier: Apache 2.0
 *
 *******************************************************************************/

// Package init_common contains the setup shared by the consent, health and market
// chaincodes: initialization of the common packages, storage of the ledger config and
// resolution of the caller of an invocation.
// Init should be called on startup by all chaincodes.
package init_common

import (
	"encoding/json"

	"github.com/choiwab/patient-x/pxchain/cached_stub"
	"github.com/choiwab/patient-x/pxchain/custom_errors"
	"github.com/choiwab/patient-x/pxchain/data_model"
	"github.com/choiwab/patient-x/pxchain/history"
	"github.com/choiwab/patient-x/pxchain/identity"
	"github.com/choiwab/patient-x/pxchain/index"
	"github.com/choiwab/patient-x/pxchain/internal/common"
	"github.com/choiwab/patient-x/pxchain/internal/common/global"
	"github.com/choiwab/patient-x/pxchain/messenger"
	"github.com/choiwab/patient-x/pxchain/utils"

	"github.com/hyperledger/fabric/core/chaincode/shim"
	"github.com/hyperledger/fabric/core/chaincode/shim/ext/cid"
	"github.com/pkg/errors"
)

var logger = shim.NewLogger("init_common")

// CALLER_ATTRIBUTE is the certificate attribute holding the account id of the caller.
const CALLER_ATTRIBUTE = "px.id"

// ====================================================================
//               This function is called by init of each chaincode
// ====================================================================

// Init initializes the packages every ledger uses: index, history, identity and messenger.
func Init(stub cached_stub.CachedStubInterface, logLevel ...shim.LoggingLevel) ([]byte, error) {

	if len(logLevel) > 0 {
		logger.SetLevel(logLevel[0])
	}
	logger.Infof("Global Data Init Called")

	//index
	ret, err := index.Init(stub, logLevel...)
	if err != nil {
		return ret, err
	}

	//History Index
	ret, err = history.Init(stub, logLevel...)
	if err != nil {
		return ret, err
	}

	//Identity directory
	ret, err = identity.Init(stub, logLevel...)
	if err != nil {
		return ret, err
	}

	//Outbox and inbox
	ret, err = messenger.Init(stub, logLevel...)
	if err != nil {
		return ret, err
	}

	logger.Infof("Global Data Init Completed")
	return nil, nil
}

// InitSetup does the following three things:
// 1. Run a very simple self test by writing to the ledger.
// 2. Initialize common packages by calling init_common.Init() with logLevel.
// 3. Store the ledger config passed as the last arg.
//
// args = [ ("_loglevel", loglevel,) configJSON ]
//
// loglevel = "DEBUG" | "INFO" | "NOTICE" | "WARNING" |"ERROR" | "CRITICAL"
// When no "_loglevel" arg is given, the log_level field of the config is used.
func InitSetup(stub cached_stub.CachedStubInterface) (data_model.LedgerConfig, shim.LoggingLevel, error) {
	defer utils.ExitFnLogger(logger, utils.EnterFnLogger(logger))

	_, args := stub.GetFunctionAndParameters()
	logLevel := shim.LogInfo
	config := data_model.LedgerConfig{}

	// 1. Run a very simple self test by trying to put a ledger item
	err := stub.PutState("selftest", []byte("init"))
	if err != nil {
		logger.Errorf("self test failed: %v", err)
		return config, logLevel, errors.New("self test failed")
	}

	logopt := ""
	if len(args) >= 2 && args[0] == "_loglevel" {
		logopt = args[1]
		args = args[2:]
	}
	if len(args) != 1 {
		custom_err := &custom_errors.InvalidArgumentError{Argument: "args", Reason: "expected [(_loglevel, level,) config]"}
		logger.Errorf("%v", custom_err)
		return config, logLevel, errors.WithStack(custom_err)
	}
	if err := json.Unmarshal([]byte(args[0]), &config); err != nil {
		custom_err := &custom_errors.UnmarshalError{Type: "LedgerConfig"}
		logger.Errorf("%v: %v", custom_err, err)
		return config, logLevel, errors.Wrap(err, custom_err.Error())
	}
	if err := ValidateConfig(config); err != nil {
		return config, logLevel, err
	}
	if len(logopt) == 0 {
		logopt = config.LogLevel
	}
	if len(logopt) > 0 {
		level, err := shim.LogLevel(logopt)
		if err != nil {
			logger.Warningf("unknown log level %v, using INFO", logopt)
		} else {
			logLevel = level
		}
	}

	// 2. Initialize common packages
	_, err = Init(stub, logLevel)
	if err != nil {
		logger.Errorf("Failed to run common Init: %v", err)
		return config, logLevel, errors.Wrap(err, "Failed to run common Init")
	}

	// 3. Store the ledger config
	if err := common.PutLedgerConfig(stub, config); err != nil {
		return config, logLevel, err
	}
	logger.Infof("InitSetup completed successfully for ledger %v", config.Ledger)
	return common.ApplyConfigDefaults(config), logLevel, nil
}

// ValidateConfig checks the fields of a ledger config every chaincode needs.
func ValidateConfig(config data_model.LedgerConfig) error {
	if !utils.InList([]string{global.LEDGER_CONSENT, global.LEDGER_HEALTH, global.LEDGER_MARKET}, config.Ledger) {
		custom_err := &custom_errors.InvalidArgumentError{Argument: "config.ledger", Reason: "unknown ledger " + config.Ledger}
		logger.Errorf("%v", custom_err)
		return errors.WithStack(custom_err)
	}
	if utils.IsStringEmpty(config.AdminID) {
		custom_err := &custom_errors.InvalidArgumentError{Argument: "config.admin_id", Reason: "admin_id is required"}
		logger.Errorf("%v", custom_err)
		return errors.WithStack(custom_err)
	}
	for _, subscriber := range config.Subscribers {
		if subscriber == config.Ledger {
			custom_err := &custom_errors.InvalidArgumentError{Argument: "config.subscribers", Reason: "a ledger cannot subscribe to itself"}
			logger.Errorf("%v", custom_err)
			return errors.WithStack(custom_err)
		}
	}
	return nil
}

// InvokeSetup performs following:
// - reads the function name and the claimed caller id (first arg)
// - checks the claimed id against the caller certificate
// - loads the caller from the identity directory
//
// Returns caller, function, remaining args, error.
// Callers that are not registered (the admin before it registers itself, the relay) get
// an identity holding only their id.
func InvokeSetup(stub cached_stub.CachedStubInterface) (data_model.Identity, string, []string, error) {
	defer utils.ExitFnLogger(logger, utils.EnterFnLogger(logger))
	function, args := stub.GetFunctionAndParameters()
	caller := data_model.Identity{}

	if len(args) < 1 || utils.IsStringEmpty(args[0]) {
		custom_err := &custom_errors.InvalidArgumentError{Argument: "caller", Reason: "args must start with the caller id"}
		logger.Errorf("%v", custom_err)
		return caller, function, args, errors.WithStack(custom_err)
	}
	callerID, err := resolveCallerID(stub, args[0])
	if err != nil {
		return caller, function, args, err
	}

	caller, found, err := identity.GetIdentityWithParams(stub, callerID)
	if err != nil {
		return caller, function, args, err
	}
	if !found {
		caller = data_model.Identity{ID: callerID}
	}
	logger.Debugf("caller: %v role: %v function: %v", caller.ID, caller.Role, function)
	return caller, function, args[1:], nil
}

// resolveCallerID returns the caller id of the invocation. When the creator certificate
// carries CALLER_ATTRIBUTE it must match the claimed id; stubs without a certificate
// (devnet and tests) use the claimed id.
func resolveCallerID(stub cached_stub.CachedStubInterface, claimed string) (string, error) {
	certID, found, err := cid.GetAttributeValue(stub, CALLER_ATTRIBUTE)
	if err != nil || !found {
		logger.Debugf("no %v attribute, using claimed caller %v", CALLER_ATTRIBUTE, claimed)
		return claimed, nil
	}
	if certID != claimed {
		custom_err := &custom_errors.CallerMismatchError{Claimed: claimed, Actual: certID}
		logger.Errorf("%v", custom_err)
		return "", errors.WithStack(custom_err)
	}
	return certID, nil
}
