/*******************************************************************************
 *
 *
 * (c) Copyright Merative US L.P. and others 2020-2022
 *
 * SPDX-Licence-Identifier: Apache 2.0
 *
 *******************************************************************************/

// Package identity_i stores the accounts known to a ledger and their roles.
package identity_i

import (
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

var logger = shim.NewLogger("identity_i")

var knownRoles = []string{
	global.ROLE_PATIENT,
	global.ROLE_RESEARCHER,
	global.ROLE_INSTITUTION,
	global.ROLE_AUDITOR,
	global.ROLE_PUBLISHER,
	global.ROLE_REGULATOR,
	global.ROLE_ADMIN,
	global.ROLE_RELAY,
}

// Init sets up the identity package.
func Init(stub cached_stub.CachedStubInterface, logLevel ...shim.LoggingLevel) ([]byte, error) {
	if len(logLevel) > 0 {
		logger.SetLevel(logLevel[0])
	}
	return nil, nil
}

// IsAdmin returns true if caller administers the ledger.
func IsAdmin(stub cached_stub.CachedStubInterface, caller data_model.Identity) (bool, error) {
	config, err := common.GetLedgerConfig(stub)
	if err != nil {
		return false, err
	}
	return caller.ID == config.AdminID || caller.Role == global.ROLE_ADMIN, nil
}

// RegisterIdentity registers a new identity or updates the name and jurisdiction of an
// existing one. Roles other than patient, researcher and publisher are assigned by the
// admin only, and an existing identity's role never changes.
func RegisterIdentity(stub cached_stub.CachedStubInterface, caller data_model.Identity, identity data_model.Identity) (data_model.Identity, error) {
	defer utils.ExitFnLogger(logger, utils.EnterFnLogger(logger))
	logger.Debugf("caller: %v identity: %v role: %v", caller.ID, identity.ID, identity.Role)

	if utils.IsStringEmpty(identity.ID) {
		custom_err := &custom_errors.InvalidArgumentError{Argument: "identity.ID"}
		logger.Errorf("%v", custom_err)
		return identity, errors.WithStack(custom_err)
	}
	if !utils.InList(knownRoles, identity.Role) {
		custom_err := &custom_errors.InvalidArgumentError{Argument: "identity.Role", Reason: "unknown role " + identity.Role}
		logger.Errorf("%v", custom_err)
		return identity, errors.WithStack(custom_err)
	}

	isAdmin, err := IsAdmin(stub, caller)
	if err != nil {
		return identity, err
	}
	if !isAdmin && caller.ID != identity.ID {
		custom_err := &custom_errors.NotOwnerError{Type: "Identity", ID: identity.ID, CallerID: caller.ID}
		logger.Errorf("%v", custom_err)
		return identity, errors.WithStack(custom_err)
	}

	existing, found, err := GetIdentity(stub, identity.ID)
	if err != nil {
		return identity, err
	}
	if found {
		existing.Name = identity.Name
		if !utils.IsStringEmpty(identity.Jurisdiction) {
			existing.Jurisdiction = identity.Jurisdiction
		}
		return existing, putIdentity(stub, existing)
	}

	if !isAdmin && !utils.InList(global.SELF_REGISTER_ROLES, identity.Role) {
		custom_err := &custom_errors.MissingRoleError{CallerID: caller.ID, Roles: []string{global.ROLE_ADMIN}}
		logger.Errorf("%v", custom_err)
		return identity, errors.WithStack(custom_err)
	}

	identity.RegisteredAt, err = utils.GetTxTime(stub)
	if err != nil {
		return identity, err
	}
	// only the admin vouches for an identity
	identity.Verified = isAdmin && identity.Verified
	if err := putIdentity(stub, identity); err != nil {
		return identity, err
	}
	_, err = history.PutEvent(stub, data_model.Event{
		Type:    data_model.EVENT_IDENTITY_REGISTERED,
		ActorID: caller.ID,
		Data:    map[string]string{"identity": identity.ID, "role": identity.Role},
	})
	return identity, err
}

// SetVerified sets the verified flag of an identity. Admin only.
func SetVerified(stub cached_stub.CachedStubInterface, caller data_model.Identity, identityID string, verified bool) error {
	defer utils.ExitFnLogger(logger, utils.EnterFnLogger(logger))

	isAdmin, err := IsAdmin(stub, caller)
	if err != nil {
		return err
	}
	if !isAdmin {
		custom_err := &custom_errors.MissingRoleError{CallerID: caller.ID, Roles: []string{global.ROLE_ADMIN}}
		logger.Errorf("%v", custom_err)
		return errors.WithStack(custom_err)
	}
	identity, found, err := GetIdentity(stub, identityID)
	if err != nil {
		return err
	}
	if !found {
		custom_err := &custom_errors.NotFoundError{Type: "Identity", ID: identityID}
		logger.Errorf("%v", custom_err)
		return errors.WithStack(custom_err)
	}
	identity.Verified = verified
	return putIdentity(stub, identity)
}

// GetIdentity returns the identity with the given id.
func GetIdentity(stub cached_stub.CachedStubInterface, identityID string) (data_model.Identity, bool, error) {
	identity := data_model.Identity{}
	key, err := common.CompositeKey(stub, global.IDENTITY_PREFIX, identityID)
	if err != nil {
		return identity, false, err
	}
	found, err := common.GetJSON(stub, key, &identity, "Identity")
	return identity, found, err
}

// HasRole returns true if the identity exists and holds one of roles.
func HasRole(stub cached_stub.CachedStubInterface, identityID string, roles ...string) (bool, error) {
	identity, found, err := GetIdentity(stub, identityID)
	if err != nil || !found {
		return false, err
	}
	return utils.InList(roles, identity.Role), nil
}

func putIdentity(stub cached_stub.CachedStubInterface, identity data_model.Identity) error {
	key, err := common.CompositeKey(stub, global.IDENTITY_PREFIX, identity.ID)
	if err != nil {
		return err
	}
	return common.PutJSON(stub, key, identity, "Identity")
}
