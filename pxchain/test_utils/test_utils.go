/*******************************************************************************
 *
 *
 * (c) Copyright Merative US L.P. and others 2020-2022
 *
 * SPDX-Licence-Identifier: Apache 2.0
 *
 *******************************************************************************/

// Package test_utils contains test utility functions for creating mock stubs,
// identities, policies, and etc.
// These functions should only be used in unit tests.
package test_utils

import (
	"runtime/debug"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/choiwab/patient-x/pxchain/data_model"
	"github.com/choiwab/patient-x/pxchain/internal/common/global"

	"github.com/hyperledger/fabric/core/chaincode/shim"
)

var logger = shim.NewLogger("test_utils")

// DAY is one day in seconds.
const DAY int64 = 24 * 60 * 60

// YEAR is 365 days in seconds.
const YEAR int64 = 365 * DAY

// T0 is a fixed reference instant (2024-01-01T00:00:00Z) for time-dependent tests.
const T0 int64 = 1704067200

var txCounter uint64

// AssertTrue asserts that the given boolean is true.
func AssertTrue(t *testing.T, assertion bool, message string) {
	if !assertion {
		debug.PrintStack()
		t.Fatal(message)
	}
}

// AssertFalse asserts that the given boolean is false.
func AssertFalse(t *testing.T, assertion bool, message string) {
	if assertion {
		debug.PrintStack()
		t.Fatal(message)
	}
}

// AssertNilError if myError is not nil, prints error details/stack and fails the test
func AssertNilError(t *testing.T, myError error, message string) {
	if myError != nil {
		debug.PrintStack()
		logger.Errorf("%v || ErrorDetails: %v", message, myError)
		t.Fatalf("%v: %v", message, myError)
	}
}

// AssertError asserts that myError is not nil.
func AssertError(t *testing.T, myError error, message string) {
	if myError == nil {
		debug.PrintStack()
		t.Fatal(message)
	}
}

// AssertListsEqual asserts that two lists are equal.
func AssertListsEqual(t *testing.T, expectedList []string, actualList []string) {
	if len(expectedList) != len(actualList) {
		debug.PrintStack()
		t.Fatalf("List of keys was incorrect, got: %v, want: %v.", actualList, expectedList)
	}
	for i, key := range actualList {
		if key != expectedList[i] {
			debug.PrintStack()
			t.Fatalf("List of keys was incorrect, got: %v, want: %v.", actualList, expectedList)
		}
	}
}

// GenerateTxID returns a unique transaction id for tests.
func GenerateTxID() string {
	return "tx" + strconv.FormatUint(atomic.AddUint64(&txCounter, 1), 10)
}

// CreateTestIdentity returns an identity with the given role and jurisdiction "US".
func CreateTestIdentity(id string, role string) data_model.Identity {
	return data_model.Identity{
		ID:           id,
		Name:         id,
		Role:         role,
		Jurisdiction: "US",
		Verified:     true,
	}
}

// CreateTestPolicy returns a research policy open to institutions for one year from start.
func CreateTestPolicy(ownerID string, label string, start int64) data_model.ConsentPolicy {
	return data_model.ConsentPolicy{
		OwnerID:        ownerID,
		Label:          label,
		Purpose:        data_model.Purpose{Kind: data_model.PURPOSE_RESEARCH_GENERAL},
		Window:         data_model.Window{Start: start, End: start + YEAR},
		DataCategories: []string{data_model.DATA_DIAGNOSTICS, data_model.DATA_LAB_RESULTS},
		Parties:        data_model.PartyRule{Kind: data_model.PARTIES_CATEGORY, Categories: []string{global.ROLE_INSTITUTION}},
		Compensation:   data_model.Compensation{Kind: data_model.COMPENSATION_FREE},
	}
}

// CreateTestMetadata returns outcome metadata that earns every bonus when the disease
// area is rare.
func CreateTestMetadata(diseaseArea string) data_model.OutcomeMetadata {
	return data_model.OutcomeMetadata{
		TrialPhase:                 data_model.PHASE_2,
		DiseaseArea:                diseaseArea,
		DiscontinuationReason:      "lack of efficacy",
		PrimaryEndpoints:           []string{"progression-free survival"},
		SampleSize:                 120,
		SafetySignals:              []string{"hepatotoxicity"},
		EfficacyData:               &data_model.EfficacyData{Summary: "no separation from placebo", EffectSize: 0.02},
		MonthsSinceDiscontinuation: 3,
		Summary:                    "phase 2 stopped at interim analysis",
	}
}
