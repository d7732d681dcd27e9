/*******************************************************************************
 *
 *
 * (c) Copyright Merative US L.P. and others 2020-2022
 *
 * SPDX-Licence-Identifier: Apache 2.0
 *
 *******************************************************************************/

package relay

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/choiwab/patient-x/pxchain/config"
	"github.com/choiwab/patient-x/pxchain/consent_mgmt"
	"github.com/choiwab/patient-x/pxchain/data_model"
	"github.com/choiwab/patient-x/pxchain/devnet"
	"github.com/choiwab/patient-x/pxchain/gateway"
	"github.com/choiwab/patient-x/pxchain/internal/common/global"
	"github.com/choiwab/patient-x/pxchain/test_utils"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const adminID = "admin"

var purpose = `{"kind":"` + data_model.PURPOSE_RESEARCH_GENERAL + `"}`

// flakyLedger fails Deliver calls while failures is non-zero; -1 fails forever.
type flakyLedger struct {
	gateway.Ledger
	mu       sync.Mutex
	failures int
	delivers int
}

func (f *flakyLedger) Invoke(ctx context.Context, caller string, function string, args ...string) ([]byte, error) {
	if function == "Deliver" {
		f.mu.Lock()
		f.delivers++
		fail := f.failures != 0
		if f.failures > 0 {
			f.failures--
		}
		f.mu.Unlock()
		if fail {
			return nil, errors.New("connection refused")
		}
	}
	return f.Ledger.Invoke(ctx, caller, function, args...)
}

type fixture struct {
	t       *testing.T
	ctx     context.Context
	cfg     config.Relay
	ledgers map[string]gateway.Ledger
	cursors *CursorStore
	reg     *prometheus.Registry
	relay   *Relay
	waits   []time.Duration
}

func newFixture(t *testing.T, tweak func(cfg *config.Relay, ledgers map[string]gateway.Ledger)) *fixture {
	t.Helper()
	ctx := context.Background()
	cfg := config.Default().Relay
	cfg.MaxAttempts = 2

	network, err := devnet.Start(ctx, config.Devnet{AdminID: adminID}, cfg.ID, "ERROR")
	require.NoError(t, err)
	ledgers := network.Ledgers()
	if tweak != nil {
		tweak(&cfg, ledgers)
	}

	cursors, err := OpenCursorStore(filepath.Join(t.TempDir(), "cursors.db"))
	require.NoError(t, err)
	t.Cleanup(func() { cursors.Close() })

	f := &fixture{t: t, ctx: ctx, cfg: cfg, ledgers: ledgers, cursors: cursors, reg: prometheus.NewRegistry()}
	f.relay, err = New(cfg, ledgers, cursors, NewMetrics(f.reg))
	require.NoError(t, err)
	f.relay.wait = func(_ context.Context, d time.Duration) error {
		f.waits = append(f.waits, d)
		return nil
	}
	return f
}

func (f *fixture) mustInvoke(ledger string, caller string, function string, args ...string) []byte {
	payload, err := f.ledgers[ledger].Invoke(f.ctx, caller, function, args...)
	require.NoError(f.t, err, "%v on %v", function, ledger)
	return payload
}

// requestAccess sets up a patient record with a research policy and returns the id of
// an access request by an institution.
func (f *fixture) requestAccess() string {
	for _, id := range []struct{ id, role string }{{"patient1", global.ROLE_PATIENT}, {"inst1", global.ROLE_INSTITUTION}} {
		identityBytes, _ := json.Marshal(test_utils.CreateTestIdentity(id.id, id.role))
		f.mustInvoke(global.LEDGER_CONSENT, adminID, "RegisterIdentity", string(identityBytes))
		f.mustInvoke(global.LEDGER_HEALTH, adminID, "RegisterIdentity", string(identityBytes))
	}
	policyBytes, _ := json.Marshal(test_utils.CreateTestPolicy("patient1", "research", time.Now().Unix()-test_utils.DAY))
	f.mustInvoke(global.LEDGER_CONSENT, "patient1", "GrantConsent", string(policyBytes))

	recordBytes, _ := json.Marshal(data_model.RecordInput{
		RecordRef:  "rec1",
		PolicyID:   consent_mgmt.GetPolicyID("patient1", "research"),
		Categories: []string{data_model.DATA_DIAGNOSTICS},
		Content:    []byte("hba1c 6.1"),
	})
	f.mustInvoke(global.LEDGER_HEALTH, "patient1", "RegisterRecord", string(recordBytes))

	request := data_model.AccessRequest{}
	require.NoError(f.t, json.Unmarshal(f.mustInvoke(global.LEDGER_HEALTH, "inst1", "RequestAccess", "rec1", purpose), &request))
	return request.RequestID
}

func (f *fixture) accessRequest(requestID string) data_model.AccessRequest {
	request := data_model.AccessRequest{}
	require.NoError(f.t, json.Unmarshal(f.mustInvoke(global.LEDGER_HEALTH, adminID, "GetAccessRequest", requestID), &request))
	return request
}

func TestDrainGrantsAccess(t *testing.T) {
	f := newFixture(t, nil)
	requestID := f.requestAccess()

	moved, err := f.relay.Drain(f.ctx)
	require.NoError(t, err)
	// consent check, decision, provenance log, provenance logged
	assert.Equal(t, 4, moved)

	request := f.accessRequest(requestID)
	assert.Equal(t, data_model.ACCESS_GRANTED, request.State)
	assert.NotEmpty(t, request.ProvenanceHash)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.relay.metrics.Delivered.WithLabelValues("health>consent")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.relay.metrics.Delivered.WithLabelValues("consent>health")))
	assert.Equal(t, 0.0, testutil.ToFloat64(f.relay.metrics.Failed.WithLabelValues("health>consent")))

	cursor, err := f.cursors.Get("health>consent")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), cursor)

	moved, err = f.relay.Drain(f.ctx)
	require.NoError(t, err)
	assert.Zero(t, moved, "cursors keep delivered messages from being sent again")
}

func TestDrainRetriesWithBackoff(t *testing.T) {
	var consent *flakyLedger
	f := newFixture(t, func(cfg *config.Relay, ledgers map[string]gateway.Ledger) {
		consent = &flakyLedger{Ledger: ledgers[global.LEDGER_CONSENT], failures: 1}
		ledgers[global.LEDGER_CONSENT] = consent
	})
	requestID := f.requestAccess()

	_, err := f.relay.Drain(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, data_model.ACCESS_GRANTED, f.accessRequest(requestID).State)
	assert.Equal(t, 2, consent.delivers)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.relay.metrics.Retries.WithLabelValues("health>consent")))
	assert.Equal(t, []time.Duration{f.cfg.BaseBackoff}, f.waits)
}

func TestDeliveryFailureTimesOutRequest(t *testing.T) {
	var consent *flakyLedger
	f := newFixture(t, func(cfg *config.Relay, ledgers map[string]gateway.Ledger) {
		consent = &flakyLedger{Ledger: ledgers[global.LEDGER_CONSENT], failures: -1}
		ledgers[global.LEDGER_CONSENT] = consent
	})
	requestID := f.requestAccess()

	_, err := f.relay.Drain(f.ctx)
	require.NoError(t, err)

	request := f.accessRequest(requestID)
	assert.Equal(t, data_model.ACCESS_DENIED, request.State)
	assert.Equal(t, data_model.DENY_CONSENT_CHECK_TIMEOUT, request.DenyReason)
	assert.Equal(t, global.DEFAULT_RETRY_BUDGET, request.Attempts)

	// every send of the consent check was tried MaxAttempts times, then reported
	assert.Equal(t, global.DEFAULT_RETRY_BUDGET*f.cfg.MaxAttempts, consent.delivers)
	assert.Equal(t, float64(global.DEFAULT_RETRY_BUDGET), testutil.ToFloat64(f.relay.metrics.Failed.WithLabelValues("health>consent")))

	cursor, err := f.cursors.Get("health>consent")
	require.NoError(t, err)
	assert.Equal(t, uint64(global.DEFAULT_RETRY_BUDGET), cursor, "failed messages are resolved")
}

func TestBackoff(t *testing.T) {
	r := &Relay{cfg: config.Relay{BaseBackoff: 100 * time.Millisecond, MaxBackoff: time.Second}}
	assert.Equal(t, 100*time.Millisecond, r.Backoff(1))
	assert.Equal(t, 200*time.Millisecond, r.Backoff(2))
	assert.Equal(t, 400*time.Millisecond, r.Backoff(3))
	assert.Equal(t, 800*time.Millisecond, r.Backoff(4))
	assert.Equal(t, time.Second, r.Backoff(5))
	assert.Equal(t, time.Second, r.Backoff(30))
}

func TestTickAll(t *testing.T) {
	f := newFixture(t, nil)
	f.relay.TickAll(f.ctx)
	for _, ledger := range []string{global.LEDGER_CONSENT, global.LEDGER_HEALTH, global.LEDGER_MARKET} {
		assert.Equal(t, 1.0, testutil.ToFloat64(f.relay.metrics.Ticks.WithLabelValues(ledger, "ok")), ledger)
	}
}

func TestNewRequiresEveryEndpoint(t *testing.T) {
	cfg := config.Default().Relay
	_, err := New(cfg, map[string]gateway.Ledger{}, nil, NewMetrics(prometheus.NewRegistry()))
	assert.Error(t, err)
}

func TestRunUntilCanceled(t *testing.T) {
	f := newFixture(t, nil)
	f.relay.cfg.PollInterval = 5 * time.Millisecond
	f.relay.cfg.TickInterval = 10 * time.Millisecond
	f.relay.wait = sleep
	requestID := f.requestAccess()

	ctx, cancel := context.WithCancel(f.ctx)
	done := make(chan error, 1)
	go func() { done <- f.relay.Run(ctx) }()

	require.Eventually(t, func() bool {
		return len(f.accessRequest(requestID).ProvenanceHash) > 0
	}, 5*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("relay did not stop")
	}
}

func TestCursorStorePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cursors.db")
	store, err := OpenCursorStore(path)
	require.NoError(t, err)

	seq, err := store.Get("a>b")
	require.NoError(t, err)
	assert.Zero(t, seq)
	require.NoError(t, store.Put("a>b", 42))
	require.NoError(t, store.Put("b>a", 7))
	require.NoError(t, store.Close())

	store, err = OpenCursorStore(path)
	require.NoError(t, err)
	defer store.Close()
	all, err := store.All()
	require.NoError(t, err)
	assert.Equal(t, map[string]uint64{"a>b": 42, "b>a": 7}, all)
}

func TestMetricsHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	metrics.Delivered.WithLabelValues("health>consent").Add(3)

	srv := httptest.NewServer(MetricsHandler(reg))
	defer srv.Close()
	resp, err := srv.Client().Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `pxrelay_delivered_total{route="health>consent"} 3`)
}
