/*******************************************************************************
 *
 *
 * (c) Copyright Merative US L.P. and others 2020-2022
 *
 * SPDX-Licence-Identifier: Apache 2.0
 *
 *******************************************************************************/

package identity_i

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

func setup(t *testing.T) *test_utils.NewMockStub {
	mstub := test_utils.CreateNewMockStub(t)
	mstub.SetTime(test_utils.T0)
	mstub.MockTransactionStart("t1")
	stub := cached_stub.NewCachedStub(mstub)
	Init(stub)
	common.PutLedgerConfig(stub, data_model.LedgerConfig{Ledger: global.LEDGER_MARKET, AdminID: "admin"})
	mstub.MockTransactionEnd("t1")
	logger.SetLevel(shim.LogDebug)
	return mstub
}

func TestSelfRegister(t *testing.T) {
	mstub := setup(t)

	mstub.MockTransactionStart("t2")
	stub := cached_stub.NewCachedStub(mstub)
	alice := test_utils.CreateTestIdentity("alice", global.ROLE_RESEARCHER)
	registered, err := RegisterIdentity(stub, data_model.Identity{ID: "alice"}, alice)
	test_utils.AssertNilError(t, err, "RegisterIdentity failed")
	test_utils.AssertFalse(t, registered.Verified, "Self-registered identity must not be verified")
	test_utils.AssertTrue(t, registered.RegisteredAt == test_utils.T0, "Expected registration time")
	mstub.MockTransactionEnd("t2")

	mstub.MockTransactionStart("t3")
	stub = cached_stub.NewCachedStub(mstub)
	hasRole, err := HasRole(stub, "alice", global.VERIFIER_ROLES...)
	test_utils.AssertNilError(t, err, "HasRole failed")
	test_utils.AssertFalse(t, hasRole, "Researcher is not a verifier")
	hasRole, err = HasRole(stub, "alice", global.ROLE_RESEARCHER)
	test_utils.AssertNilError(t, err, "HasRole failed")
	test_utils.AssertTrue(t, hasRole, "Expected researcher role")

	// role of an existing identity never changes
	alice.Role = global.ROLE_PATIENT
	alice.Jurisdiction = "EU"
	updated, err := RegisterIdentity(stub, data_model.Identity{ID: "alice"}, alice)
	test_utils.AssertNilError(t, err, "RegisterIdentity update failed")
	test_utils.AssertTrue(t, updated.Role == global.ROLE_RESEARCHER, "Role must not change")
	test_utils.AssertTrue(t, updated.Jurisdiction == "EU", "Jurisdiction should be updated")
	mstub.MockTransactionEnd("t3")
}

func TestRegisterPrivilegedRole(t *testing.T) {
	mstub := setup(t)

	mstub.MockTransactionStart("t2")
	stub := cached_stub.NewCachedStub(mstub)
	_, err := RegisterIdentity(stub, data_model.Identity{ID: "mallory"}, test_utils.CreateTestIdentity("mallory", global.ROLE_AUDITOR))
	test_utils.AssertTrue(t, custom_errors.Code(err) == "MissingRole", "Expected MissingRole")

	_, err = RegisterIdentity(stub, data_model.Identity{ID: "mallory"}, test_utils.CreateTestIdentity("bob", global.ROLE_PATIENT))
	test_utils.AssertTrue(t, custom_errors.Code(err) == "NotOwner", "Expected NotOwner")

	_, err = RegisterIdentity(stub, data_model.Identity{ID: "admin"}, data_model.Identity{ID: "x", Role: "pirate"})
	test_utils.AssertTrue(t, custom_errors.Code(err) == "InvalidArgument", "Expected InvalidArgument")

	registered, err := RegisterIdentity(stub, data_model.Identity{ID: "admin"}, test_utils.CreateTestIdentity("hospital", global.ROLE_INSTITUTION))
	test_utils.AssertNilError(t, err, "Admin RegisterIdentity failed")
	test_utils.AssertTrue(t, registered.Verified, "Admin may register verified identities")
	mstub.MockTransactionEnd("t2")

	mstub.MockTransactionStart("t3")
	stub = cached_stub.NewCachedStub(mstub)
	err = SetVerified(stub, data_model.Identity{ID: "hospital"}, "hospital", false)
	test_utils.AssertTrue(t, custom_errors.Code(err) == "MissingRole", "Expected MissingRole")
	err = SetVerified(stub, data_model.Identity{ID: "admin"}, "nobody", true)
	test_utils.AssertTrue(t, custom_errors.Code(err) == "NotFound", "Expected NotFound")
	err = SetVerified(stub, data_model.Identity{ID: "admin"}, "hospital", false)
	test_utils.AssertNilError(t, err, "SetVerified failed")
	identity, found, err := GetIdentity(stub, "hospital")
	test_utils.AssertNilError(t, err, "GetIdentity failed")
	test_utils.AssertTrue(t, found && !identity.Verified, "Expected unverified identity")
	mstub.MockTransactionEnd("t3")
}
