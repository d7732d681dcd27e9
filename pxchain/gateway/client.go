/*******************************************************************************
 *
 *
 * (c) Copyright Merative US L.P. and others 2020-2022
 *
 * SPDX-Licence-Identifier: Apache 2.0
 *
 *******************************************************************************/

package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/choiwab/patient-x/pxchain/custom_errors"
	"github.com/choiwab/patient-x/pxchain/utils"

	"github.com/pkg/errors"
)

// Client is a Ledger served by a gateway at BaseURL, for example
// http://localhost:8080/ledgers/consent.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient returns a client for the ledger at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Invoke runs function as caller on the remote ledger. Ledger failures are returned as
// custom_errors.ErrorDescriptor; transport failures as other errors.
func (c *Client) Invoke(ctx context.Context, caller string, function string, args ...string) ([]byte, error) {
	body, err := json.Marshal(InvokeRequest{Caller: caller, Function: function, Args: args})
	if err != nil {
		return nil, errors.Wrap(err, "marshal invoke request")
	}
	resp, respBody, err := utils.PerformHTTP(ctx, c.HTTPClient, http.MethodPost, c.BaseURL+"/invoke", body, map[string]string{"Content-Type": "application/json"})
	if err != nil {
		return nil, errors.Wrapf(err, "invoke %v", function)
	}

	if resp.StatusCode >= 300 {
		failure := ErrorResponse{}
		if err := json.Unmarshal(respBody, &failure); err != nil || len(failure.Error.Category) == 0 {
			return nil, errors.Errorf("%v: http %d: %s", function, resp.StatusCode, strings.TrimSpace(string(respBody)))
		}
		return nil, failure.Error
	}
	out := InvokeResponse{}
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, errors.Wrapf(err, "decode %v response", function)
	}
	return out.Payload, nil
}

// IsLedgerError reports whether err was returned by the ledger rather than by the
// transport.
func IsLedgerError(err error) bool {
	_, ok := errors.Cause(err).(custom_errors.ErrorDescriptor)
	return ok
}
