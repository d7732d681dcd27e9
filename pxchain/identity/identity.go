/*******************************************************************************
 *
 *
 * (c) Copyright Merative US L.P. and others 2020-2022
 *
 * SPDX-Licence-Identifier: Apache 2.0
 *
 *******************************************************************************/

// Package identity is the identity and capability directory of a ledger.
//
// Every ledger keeps its own copy of the accounts it needs to know about. The consent
// ledger reads requester attributes (role, jurisdiction) when evaluating a policy and
// the market ledger checks verifier roles.
package identity

import (
	"encoding/json"
	"strconv"

	"github.com/choiwab/patient-x/pxchain/cached_stub"
	"github.com/choiwab/patient-x/pxchain/custom_errors"
	"github.com/choiwab/patient-x/pxchain/data_model"
	"github.com/choiwab/patient-x/pxchain/internal/identity_i"
	"github.com/choiwab/patient-x/pxchain/utils"

	"github.com/hyperledger/fabric/core/chaincode/shim"
	"github.com/pkg/errors"
)

var logger = shim.NewLogger("identity")

// Directory looks up accounts and their capabilities.
type Directory interface {
	// GetIdentity returns the identity with the given id and whether it exists.
	GetIdentity(identityID string) (data_model.Identity, bool, error)

	// HasRole returns true if the identity exists and holds one of roles.
	HasRole(identityID string, roles ...string) (bool, error)
}

type ledgerDirectory struct {
	stub cached_stub.CachedStubInterface
}

// GetDirectory returns the Directory kept on the ledger of stub.
func GetDirectory(stub cached_stub.CachedStubInterface) Directory {
	return &ledgerDirectory{stub: stub}
}

func (d *ledgerDirectory) GetIdentity(identityID string) (data_model.Identity, bool, error) {
	return identity_i.GetIdentity(d.stub, identityID)
}

func (d *ledgerDirectory) HasRole(identityID string, roles ...string) (bool, error) {
	return identity_i.HasRole(d.stub, identityID, roles...)
}

// ------------------------------------------------------
// ---------------------- INIT FUNCTIONS ----------------
// ------------------------------------------------------

// Init sets up the identity package.
func Init(stub cached_stub.CachedStubInterface, logLevel ...shim.LoggingLevel) ([]byte, error) {
	if len(logLevel) > 0 {
		logger.SetLevel(logLevel[0])
	}
	defer utils.ExitFnLogger(logger, utils.EnterFnLogger(logger))
	return identity_i.Init(stub, logLevel...)
}

// RegisterIdentity registers or updates an identity.
//
// args = [ identity ]
//
// identity is the JSON of a data_model.Identity.
func RegisterIdentity(stub cached_stub.CachedStubInterface, caller data_model.Identity, args []string) ([]byte, error) {
	defer utils.ExitFnLogger(logger, utils.EnterFnLogger(logger))
	if len(args) != 1 {
		custom_err := &custom_errors.InvalidArgumentError{Argument: "args", Reason: "expected [identity]"}
		logger.Errorf("%v", custom_err)
		return nil, errors.WithStack(custom_err)
	}
	identity := data_model.Identity{}
	if err := json.Unmarshal([]byte(args[0]), &identity); err != nil {
		custom_err := &custom_errors.InvalidArgumentError{Argument: "identity", Reason: err.Error()}
		logger.Errorf("%v", custom_err)
		return nil, errors.WithStack(custom_err)
	}
	registered, err := RegisterIdentityWithParams(stub, caller, identity)
	if err != nil {
		return nil, err
	}
	return json.Marshal(registered)
}

// RegisterIdentityWithParams registers or updates an identity.
func RegisterIdentityWithParams(stub cached_stub.CachedStubInterface, caller data_model.Identity, identity data_model.Identity) (data_model.Identity, error) {
	defer utils.ExitFnLogger(logger, utils.EnterFnLogger(logger))
	return identity_i.RegisterIdentity(stub, caller, identity)
}

// SetVerified marks an identity as verified or not. Admin only.
//
// args = [ identityID, verified ]
func SetVerified(stub cached_stub.CachedStubInterface, caller data_model.Identity, args []string) ([]byte, error) {
	defer utils.ExitFnLogger(logger, utils.EnterFnLogger(logger))
	if len(args) != 2 {
		custom_err := &custom_errors.InvalidArgumentError{Argument: "args", Reason: "expected [identityID, verified]"}
		logger.Errorf("%v", custom_err)
		return nil, errors.WithStack(custom_err)
	}
	verified, err := strconv.ParseBool(args[1])
	if err != nil {
		custom_err := &custom_errors.InvalidArgumentError{Argument: "verified", Reason: err.Error()}
		logger.Errorf("%v", custom_err)
		return nil, errors.WithStack(custom_err)
	}
	return nil, identity_i.SetVerified(stub, caller, args[0], verified)
}

// GetIdentity returns the JSON of an identity.
//
// args = [ identityID ]
func GetIdentity(stub cached_stub.CachedStubInterface, caller data_model.Identity, args []string) ([]byte, error) {
	defer utils.ExitFnLogger(logger, utils.EnterFnLogger(logger))
	if len(args) != 1 {
		custom_err := &custom_errors.InvalidArgumentError{Argument: "args", Reason: "expected [identityID]"}
		logger.Errorf("%v", custom_err)
		return nil, errors.WithStack(custom_err)
	}
	identity, found, err := identity_i.GetIdentity(stub, args[0])
	if err != nil {
		return nil, err
	}
	if !found {
		custom_err := &custom_errors.NotFoundError{Type: "Identity", ID: args[0]}
		logger.Errorf("%v", custom_err)
		return nil, errors.WithStack(custom_err)
	}
	return json.Marshal(identity)
}

// GetIdentityWithParams returns an identity and whether it exists.
func GetIdentityWithParams(stub cached_stub.CachedStubInterface, identityID string) (data_model.Identity, bool, error) {
	return identity_i.GetIdentity(stub, identityID)
}

// IsAdmin returns true if caller administers the ledger of stub.
func IsAdmin(stub cached_stub.CachedStubInterface, caller data_model.Identity) (bool, error) {
	return identity_i.IsAdmin(stub, caller)
}

// RequireRole returns a MissingRoleError unless caller holds one of roles.
func RequireRole(caller data_model.Identity, roles ...string) error {
	if utils.InList(roles, caller.Role) {
		return nil
	}
	custom_err := &custom_errors.MissingRoleError{CallerID: caller.ID, Roles: roles}
	logger.Errorf("%v", custom_err)
	return errors.WithStack(custom_err)
}
