/*******************************************************************************
 *
 *
 * (c) Copyright Merative US L.P. and others 2020-2022
 *
 * SPDX-Licence-Identifier: Apache 2.0
 *
 *******************************************************************************/

// Package utils contains convenience, helper, and utility functions.
package utils

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"regexp"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/choiwab/patient-x/pxchain/custom_errors"
	"github.com/choiwab/patient-x/pxchain/internal/common/global"

	"github.com/golang/protobuf/ptypes"
	"github.com/hyperledger/fabric/core/chaincode/shim"
	"github.com/pkg/errors"
)

var logger = shim.NewLogger("utils")

/*
******************************************************************************************************
Trace functions
******************************************************************************************************
*/

// RE_stripFnPreamble uses regex to extract function names (and not the module path).
var RE_stripFnPreamble = regexp.MustCompile(`^.*\.(.*)$`)

// EnterFnLogger logs and returns the current function name at the start of function execution.
func EnterFnLogger(mylogger *shim.ChaincodeLogger) string {
	fnName := "<unknown>"
	// Skip this function, and fetch the PC and file for its parent
	pc, _, _, ok := runtime.Caller(1)
	if ok {
		fnName = RE_stripFnPreamble.ReplaceAllString(runtime.FuncForPC(pc).Name(), "$1")
	}

	mylogger.Debugf("---> %s\n", fnName)
	return fnName
}

// ExitFnLogger logs the current function name at the end of execution.
func ExitFnLogger(mylogger *shim.ChaincodeLogger, s string) {
	mylogger.Debugf("<--- %s\n", s)
}

/*
******************************************************************************************************
Helper functions
******************************************************************************************************
*/

// InList returns true if item is in listdata, false otherwise.
func InList(listdata []string, item string) bool {
	for i := 0; i < len(listdata); i++ {
		if listdata[i] == item {
			return true
		}
	}
	return false
}

// GetSetFromList converts a list of strings into a sorted set of trimmed, non-empty strings.
func GetSetFromList(items []string) []string {
	itemMap := make(map[string]bool)
	for _, n := range items {
		n = strings.TrimSpace(n)
		if len(n) > 0 {
			itemMap[n] = true
		}
	}
	set := make([]string, 0, len(itemMap))
	for name := range itemMap {
		set = append(set, name)
	}
	sort.Strings(set)
	return set
}

// IsStringEmpty returns true if the provided string is empty or whitespace.
func IsStringEmpty(s string) bool {
	return len(strings.TrimSpace(s)) == 0
}

// PadSeq zero-pads a sequence number so keys sort in numeric order.
func PadSeq(seq uint64) string {
	s := strconv.FormatUint(seq, 10)
	if len(s) >= global.SEQ_PAD_WIDTH {
		return s
	}
	return strings.Repeat("0", global.SEQ_PAD_WIDTH-len(s)) + s
}

// ParseSeq parses a sequence number produced by PadSeq.
func ParseSeq(s string) (uint64, error) {
	return strconv.ParseUint(s, 10, 64)
}

// HashHex returns the hex encoded sha256 of the concatenated parts, each followed by a
// zero byte so that ("ab","c") and ("a","bc") hash differently.
func HashHex(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// GetTxTime returns the transaction timestamp in unix seconds. All peers endorsing the
// transaction see the same value, so it is safe to use in ledger logic.
func GetTxTime(stub shim.ChaincodeStubInterface) (int64, error) {
	ts, err := stub.GetTxTimestamp()
	if err != nil {
		custom_err := &custom_errors.GetTxTimestampError{}
		logger.Errorf("%v: %v", custom_err, err)
		return 0, errors.Wrap(err, custom_err.Error())
	}
	t, err := ptypes.Timestamp(ts)
	if err != nil {
		custom_err := &custom_errors.GetTxTimestampError{}
		logger.Errorf("%v: %v", custom_err, err)
		return 0, errors.Wrap(err, custom_err.Error())
	}
	return t.Unix(), nil
}

// TimestampToDateString converts a timestamp to an RFC3339 UTC date string.
func TimestampToDateString(ts int64) string {
	return time.Unix(ts, 0).UTC().Format(time.RFC3339)
}

// PerformHTTP performs an HTTP request and returns the response and its body.
// A 429 Too Many Requests response is retried once.
func PerformHTTP(ctx context.Context, client *http.Client, method string, url string, requestBody []byte, headers map[string]string, retry ...int) (*http.Response, []byte, error) {
	retryno := 0
	if len(retry) > 0 {
		retryno = retry[0]
	}
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(requestBody))
	if err != nil {
		logger.Errorf("Error building a %s request: %v err: %v", method, url, err)
		return nil, nil, errors.Wrap(err, "Error building a "+method+" request")
	}
	req.ContentLength = int64(len(requestBody))

	for key, value := range headers {
		req.Header.Add(key, value)
	}

	logger.Debugf("Request: %v %v", method, url)

	response, err := client.Do(req)
	if err != nil {
		logger.Errorf("Error attempt to %s %s: %v", method, url, err)
		return nil, nil, errors.Wrap(err, "Error attempt to "+method+" "+url)
	}

	defer response.Body.Close()
	body, err := io.ReadAll(response.Body)
	if err != nil {
		logger.Errorf("Error reading HTTP response body: %v", err)
		return nil, nil, errors.Wrap(err, "Error reading HTTP response body")
	}

	// retry one more time if status is 429 Too Many Request
	if response.StatusCode == http.StatusTooManyRequests && retryno < 1 {
		logger.Warningf("Response code: %v for url %v, retrying...", response.StatusCode, url)
		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
		return PerformHTTP(ctx, client, method, url, requestBody, headers, retryno+1)
	}

	return response, body, nil
}
