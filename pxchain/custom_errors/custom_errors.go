/*******************************************************************************
 *
 *
 * (c) Copyright Merative US L.P. and others 2020-2022
 *
 * SPDX-Licence-Identifier: Apache 2.0
 *
 *******************************************************************************/

// Package custom_errors defines our custom error types.
//
// Custom types are useful for:
// 1) allowing callers to do type-checking to see the cause of the error.
// 2) re-using messages for common errors.
// If neither scenario applies, it's perfectly fine to instead use errors.New("some message").
//
// A custom error can be wrapped by another error when returned using errors.Wrap(err, custom_err.Error()).
// To return a custom error with stack trace, use errors.WithStack(custom_err).
// If returning a custom error for type checking, it must be returned without a wrapper.
//
// Domain errors additionally implement CategorizedError. Describe walks errors.Cause
// to find the category and code that are reported to callers.
package custom_errors

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
)

// Error categories reported to callers.
const (
	CATEGORY_POLICY        = "PolicyError"
	CATEGORY_STATE         = "StateError"
	CATEGORY_TRANSPORT     = "TransportError"
	CATEGORY_AUTHORIZATION = "AuthorizationError"
	CATEGORY_VALIDATION    = "ValidationError"
	CATEGORY_INTERNAL      = "InternalError"
)

// CategorizedError is implemented by every domain error.
type CategorizedError interface {
	error
	Category() string
	Code() string
}

// ErrorDescriptor is the typed error returned to callers.
type ErrorDescriptor struct {
	Category string `json:"category"`
	Code     string `json:"code"`
	Message  string `json:"message"`
}

// Describe returns the descriptor of err. Errors that are not domain errors are
// reported as InternalError.
func Describe(err error) ErrorDescriptor {
	if err == nil {
		return ErrorDescriptor{}
	}
	if ce, ok := errors.Cause(err).(CategorizedError); ok {
		return ErrorDescriptor{Category: ce.Category(), Code: ce.Code(), Message: err.Error()}
	}
	return ErrorDescriptor{Category: CATEGORY_INTERNAL, Code: "Internal", Message: err.Error()}
}

// DescribeJSON returns the JSON encoding of Describe(err).
func DescribeJSON(err error) string {
	b, _ := json.Marshal(Describe(err))
	return string(b)
}

// ParseDescriptor decodes a descriptor produced by DescribeJSON. Messages that are not
// descriptors are returned as InternalError.
func ParseDescriptor(msg string) ErrorDescriptor {
	d := ErrorDescriptor{}
	if err := json.Unmarshal([]byte(msg), &d); err != nil || len(d.Category) == 0 {
		return ErrorDescriptor{Category: CATEGORY_INTERNAL, Code: "Internal", Message: msg}
	}
	return d
}

// Category returns the category of err, or "" if err is not a domain error.
func Category(err error) string {
	if ce, ok := errors.Cause(err).(CategorizedError); ok {
		return ce.Category()
	}
	return ""
}

// Code returns the code of err, or "" if err is not a domain error.
func Code(err error) string {
	if ce, ok := errors.Cause(err).(CategorizedError); ok {
		return ce.Code()
	}
	return ""
}

func (d ErrorDescriptor) Error() string {
	return fmt.Sprintf("%v/%v: %v", d.Category, d.Code, d.Message)
}

/*
******************************************************************************************************
Ledger plumbing
******************************************************************************************************
*/

// IterError provides an error message for Iter.Next() failure.
type IterError struct{}

func (e *IterError) Error() string {
	return "Error reading next KV"
}

// MarshalError provides an error message for json.Marshal failure.
type MarshalError struct {
	Type string
}

func (e *MarshalError) Error() string {
	return fmt.Sprintf("Failed to marshal %v", e.Type)
}

// UnmarshalError provides an error message for json.Unmarshal failure.
type UnmarshalError struct {
	Type string
}

func (e *UnmarshalError) Error() string {
	return fmt.Sprintf("Failed to unmarshal %v", e.Type)
}

// CreateCompositeKeyError provides an error message for CreateCompositeKey failure.
type CreateCompositeKeyError struct {
	Type string
}

func (e *CreateCompositeKeyError) Error() string {
	return fmt.Sprintf("Failed to create composite key for %v", e.Type)
}

// SplitCompositeKeyError provides an error message for SplitCompositeKey failure.
type SplitCompositeKeyError struct {
	Key string
}

func (e *SplitCompositeKeyError) Error() string {
	return fmt.Sprintf("Failed to split composite key %v", e.Key)
}

// GetLedgerError provides an error message for GetState failure.
type GetLedgerError struct {
	LedgerKey  string
	LedgerItem string
}

func (e *GetLedgerError) Error() string {
	return fmt.Sprintf("Failed to get %v from ledger with key %v", e.LedgerItem, e.LedgerKey)
}

// PutLedgerError provides an error message for PutState failure.
type PutLedgerError struct {
	LedgerKey string
}

func (e *PutLedgerError) Error() string {
	return fmt.Sprintf("Failed to put ledger key %v", e.LedgerKey)
}

// DeleteLedgerError provides an error message for DelState failure.
type DeleteLedgerError struct {
	LedgerKey string
}

func (e *DeleteLedgerError) Error() string {
	return fmt.Sprintf("Failed to delete ledger key %v", e.LedgerKey)
}

// GetTxTimestampError provides an error message for GetTxTimestamp failure.
type GetTxTimestampError struct{}

func (e *GetTxTimestampError) Error() string {
	return "Failed to read transaction timestamp"
}

/*
******************************************************************************************************
Validation
******************************************************************************************************
*/

// InvalidArgumentError is returned when an input is missing or malformed.
type InvalidArgumentError struct {
	Argument string
	Reason   string
}

func (e *InvalidArgumentError) Error() string {
	if len(e.Reason) == 0 {
		return fmt.Sprintf("Invalid argument %v", e.Argument)
	}
	return fmt.Sprintf("Invalid argument %v: %v", e.Argument, e.Reason)
}

func (e *InvalidArgumentError) Category() string { return CATEGORY_VALIDATION }
func (e *InvalidArgumentError) Code() string     { return "InvalidArgument" }

// UnknownFunctionError is returned by chaincode routers.
type UnknownFunctionError struct {
	Function string
}

func (e *UnknownFunctionError) Error() string {
	return fmt.Sprintf("Unknown function %v", e.Function)
}

func (e *UnknownFunctionError) Category() string { return CATEGORY_VALIDATION }
func (e *UnknownFunctionError) Code() string     { return "UnknownFunction" }

/*
******************************************************************************************************
Policy errors
******************************************************************************************************
*/

// ConsentDeniedError carries the violated rule of a Deny decision when a caller needs
// the decision as an error.
type ConsentDeniedError struct {
	PolicyID string
	Reason   string
}

func (e *ConsentDeniedError) Error() string {
	return fmt.Sprintf("Consent denied by policy %v: %v", e.PolicyID, e.Reason)
}

func (e *ConsentDeniedError) Category() string { return CATEGORY_POLICY }
func (e *ConsentDeniedError) Code() string     { return e.Reason }

/*
******************************************************************************************************
State errors
******************************************************************************************************
*/

// NotFoundError is returned when an object does not exist.
type NotFoundError struct {
	Type string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%v %v not found", e.Type, e.ID)
}

func (e *NotFoundError) Category() string { return CATEGORY_STATE }
func (e *NotFoundError) Code() string     { return "NotFound" }

// DuplicateActiveRequestError is returned when a non-terminal access request exists for the pair.
type DuplicateActiveRequestError struct {
	RequesterID string
	RecordRef   string
	RequestID   string
}

func (e *DuplicateActiveRequestError) Error() string {
	return fmt.Sprintf("Requester %v already has active request %v for record %v", e.RequesterID, e.RequestID, e.RecordRef)
}

func (e *DuplicateActiveRequestError) Category() string { return CATEGORY_STATE }
func (e *DuplicateActiveRequestError) Code() string     { return "DuplicateActiveRequest" }

// AlreadyDecidedError is returned when an object already left its pending state.
type AlreadyDecidedError struct {
	Type  string
	ID    string
	State string
}

func (e *AlreadyDecidedError) Error() string {
	return fmt.Sprintf("%v %v is already %v", e.Type, e.ID, e.State)
}

func (e *AlreadyDecidedError) Category() string { return CATEGORY_STATE }
func (e *AlreadyDecidedError) Code() string     { return "AlreadyDecided" }

// AlreadyClaimedError is returned when a reward was already paid.
type AlreadyClaimedError struct {
	SubmissionID string
}

func (e *AlreadyClaimedError) Error() string {
	return fmt.Sprintf("Reward for submission %v is already claimed", e.SubmissionID)
}

func (e *AlreadyClaimedError) Category() string { return CATEGORY_STATE }
func (e *AlreadyClaimedError) Code() string     { return "AlreadyClaimed" }

// TooManyCitationsError is returned past the citation bound.
type TooManyCitationsError struct {
	SubmissionID string
	Max          int
}

func (e *TooManyCitationsError) Error() string {
	return fmt.Sprintf("Submission %v already has the maximum of %v citations", e.SubmissionID, e.Max)
}

func (e *TooManyCitationsError) Category() string { return CATEGORY_STATE }
func (e *TooManyCitationsError) Code() string     { return "TooManyCitations" }

// DuplicateSubmissionError is returned when (submitter, record) was already submitted.
type DuplicateSubmissionError struct {
	SubmissionID string
}

func (e *DuplicateSubmissionError) Error() string {
	return fmt.Sprintf("Submission %v already exists", e.SubmissionID)
}

func (e *DuplicateSubmissionError) Category() string { return CATEGORY_STATE }
func (e *DuplicateSubmissionError) Code() string     { return "DuplicateSubmission" }

// DuplicatePolicyError is returned when an owner reuses a policy label.
type DuplicatePolicyError struct {
	PolicyID string
}

func (e *DuplicatePolicyError) Error() string {
	return fmt.Sprintf("Consent policy %v already exists", e.PolicyID)
}

func (e *DuplicatePolicyError) Category() string { return CATEGORY_STATE }
func (e *DuplicatePolicyError) Code() string     { return "DuplicatePolicy" }

// PolicyNotActiveError is returned when mutating a revoked or expired policy.
type PolicyNotActiveError struct {
	PolicyID string
	State    string
}

func (e *PolicyNotActiveError) Error() string {
	return fmt.Sprintf("Consent policy %v is %v", e.PolicyID, e.State)
}

func (e *PolicyNotActiveError) Category() string { return CATEGORY_STATE }
func (e *PolicyNotActiveError) Code() string     { return "PolicyNotActive" }

// NotVerifiedError is returned when claiming or citing an unverified submission.
type NotVerifiedError struct {
	SubmissionID string
}

func (e *NotVerifiedError) Error() string {
	return fmt.Sprintf("Submission %v is not verified", e.SubmissionID)
}

func (e *NotVerifiedError) Category() string { return CATEGORY_STATE }
func (e *NotVerifiedError) Code() string     { return "NotVerified" }

// NotEligibleError is returned when a submission's protocol checks are incomplete.
type NotEligibleError struct {
	SubmissionID string
	Reason       string
}

func (e *NotEligibleError) Error() string {
	return fmt.Sprintf("Submission %v is not eligible: %v", e.SubmissionID, e.Reason)
}

func (e *NotEligibleError) Category() string { return CATEGORY_STATE }
func (e *NotEligibleError) Code() string     { return "NotEligible" }

// InsufficientFundsError is returned when the treasury cannot cover a payout.
type InsufficientFundsError struct {
	Requested uint64
	Available uint64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("Insufficient treasury funds: requested %v, available %v", e.Requested, e.Available)
}

func (e *InsufficientFundsError) Category() string { return CATEGORY_STATE }
func (e *InsufficientFundsError) Code() string     { return "InsufficientFunds" }

// DuplicatePayoutError is returned when a payout reference was already used.
type DuplicatePayoutError struct {
	Ref string
}

func (e *DuplicatePayoutError) Error() string {
	return fmt.Sprintf("Payout %v was already made", e.Ref)
}

func (e *DuplicatePayoutError) Category() string { return CATEGORY_STATE }
func (e *DuplicatePayoutError) Code() string     { return "DuplicatePayout" }

// RecordRemovedError is returned when operating on a removed record.
type RecordRemovedError struct {
	RecordRef string
}

func (e *RecordRemovedError) Error() string {
	return fmt.Sprintf("Record %v has been removed", e.RecordRef)
}

func (e *RecordRemovedError) Category() string { return CATEGORY_STATE }
func (e *RecordRemovedError) Code() string     { return "RecordRemoved" }

// ContentMismatchError is returned when fetched content does not hash to its reference.
type ContentMismatchError struct {
	ContentRef string
}

func (e *ContentMismatchError) Error() string {
	return fmt.Sprintf("Content does not match reference %v", e.ContentRef)
}

func (e *ContentMismatchError) Category() string { return CATEGORY_STATE }
func (e *ContentMismatchError) Code() string     { return "ContentMismatch" }

// DuplicateRecordError is returned when a record reference is registered twice.
type DuplicateRecordError struct {
	RecordRef string
}

func (e *DuplicateRecordError) Error() string {
	return fmt.Sprintf("Record %v already exists", e.RecordRef)
}

func (e *DuplicateRecordError) Category() string { return CATEGORY_STATE }
func (e *DuplicateRecordError) Code() string     { return "DuplicateRecord" }

/*
******************************************************************************************************
Transport errors
******************************************************************************************************
*/

// ConsentCheckTimeoutError is returned when the consent check retry budget is exhausted.
type ConsentCheckTimeoutError struct {
	CorrelationID string
	Attempts      int
}

func (e *ConsentCheckTimeoutError) Error() string {
	return fmt.Sprintf("Consent check %v timed out after %v attempts", e.CorrelationID, e.Attempts)
}

func (e *ConsentCheckTimeoutError) Category() string { return CATEGORY_TRANSPORT }
func (e *ConsentCheckTimeoutError) Code() string     { return "ConsentCheckTimeout" }

// DeliveryError is returned by the relay when a message could not be delivered.
type DeliveryError struct {
	Channel  string
	Seq      uint64
	Attempts int
	Cause    string
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("Delivery of %v#%v failed after %v attempts: %v", e.Channel, e.Seq, e.Attempts, e.Cause)
}

func (e *DeliveryError) Category() string { return CATEGORY_TRANSPORT }
func (e *DeliveryError) Code() string     { return "DeliveryFailed" }

/*
******************************************************************************************************
Authorization errors
******************************************************************************************************
*/

// UnauthorizedVerifierError is returned when the verifier lacks a verifier role.
type UnauthorizedVerifierError struct {
	VerifierID string
}

func (e *UnauthorizedVerifierError) Error() string {
	return fmt.Sprintf("%v is not authorized to verify submissions", e.VerifierID)
}

func (e *UnauthorizedVerifierError) Category() string { return CATEGORY_AUTHORIZATION }
func (e *UnauthorizedVerifierError) Code() string     { return "UnauthorizedVerifier" }

// NotSubmitterError is returned when someone other than the submitter acts on a submission.
type NotSubmitterError struct {
	SubmissionID string
	CallerID     string
}

func (e *NotSubmitterError) Error() string {
	return fmt.Sprintf("%v is not the submitter of %v", e.CallerID, e.SubmissionID)
}

func (e *NotSubmitterError) Category() string { return CATEGORY_AUTHORIZATION }
func (e *NotSubmitterError) Code() string     { return "NotSubmitter" }

// NotOwnerError is returned when someone other than the owner mutates a policy or record.
type NotOwnerError struct {
	Type     string
	ID       string
	CallerID string
}

func (e *NotOwnerError) Error() string {
	return fmt.Sprintf("%v is not the owner of %v %v", e.CallerID, e.Type, e.ID)
}

func (e *NotOwnerError) Category() string { return CATEGORY_AUTHORIZATION }
func (e *NotOwnerError) Code() string     { return "NotOwner" }

// NotRequesterError is returned when someone other than the requester cancels a request.
type NotRequesterError struct {
	RequestID string
	CallerID  string
}

func (e *NotRequesterError) Error() string {
	return fmt.Sprintf("%v is not the requester of %v", e.CallerID, e.RequestID)
}

func (e *NotRequesterError) Category() string { return CATEGORY_AUTHORIZATION }
func (e *NotRequesterError) Code() string     { return "NotRequester" }

// AccessNotGrantedError is returned when reading a record without a live grant.
type AccessNotGrantedError struct {
	RecordRef string
	CallerID  string
}

func (e *AccessNotGrantedError) Error() string {
	return fmt.Sprintf("%v has no live grant on record %v", e.CallerID, e.RecordRef)
}

func (e *AccessNotGrantedError) Category() string { return CATEGORY_AUTHORIZATION }
func (e *AccessNotGrantedError) Code() string     { return "AccessNotGranted" }

// MissingRoleError is returned when the caller lacks a role required by an operation.
type MissingRoleError struct {
	CallerID string
	Roles    []string
}

func (e *MissingRoleError) Error() string {
	return fmt.Sprintf("%v does not hold any of the roles %v", e.CallerID, e.Roles)
}

func (e *MissingRoleError) Category() string { return CATEGORY_AUTHORIZATION }
func (e *MissingRoleError) Code() string     { return "MissingRole" }

// CallerMismatchError is returned when the claimed caller does not match the certificate.
type CallerMismatchError struct {
	Claimed string
	Actual  string
}

func (e *CallerMismatchError) Error() string {
	return fmt.Sprintf("Claimed caller %v does not match certificate identity %v", e.Claimed, e.Actual)
}

func (e *CallerMismatchError) Category() string { return CATEGORY_AUTHORIZATION }
func (e *CallerMismatchError) Code() string     { return "CallerMismatch" }
