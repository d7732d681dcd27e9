/*******************************************************************************
 *
 *
 * (c) Copyright Merative US L.P. and others 2020-2022
 *
 * SPDX-Licence-Identifier: Apache 2.0
 *
 *******************************************************************************/

// Package relay moves outbox messages between ledgers.
//
// Each route from>to is drained in sequence order: the relay reads the outbox of the
// sending ledger after the route cursor, calls Deliver on the receiving ledger, and
// moves the cursor once the message is resolved. A message that keeps failing is
// retried with exponential backoff up to MaxAttempts and is then reported to the
// sender through DeliveryFailed. Delivery is at-least-once; receivers drop duplicates.
//
// Routes run concurrently, one goroutine each, and every ledger is sent a Tick each
// tick interval so that timeouts and expiries fire without other traffic.
package relay

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"time"

	"github.com/choiwab/patient-x/pxchain/config"
	"github.com/choiwab/patient-x/pxchain/custom_errors"
	"github.com/choiwab/patient-x/pxchain/data_model"
	"github.com/choiwab/patient-x/pxchain/gateway"

	"github.com/google/uuid"
	"github.com/hyperledger/fabric/core/chaincode/shim"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

var logger = shim.NewLogger("relay")

// Relay delivers messages along the configured routes.
type Relay struct {
	cfg      config.Relay
	instance string
	ledgers  map[string]gateway.Ledger
	cursors  *CursorStore
	metrics  *Metrics

	// wait blocks for d or until ctx is done.
	wait func(ctx context.Context, d time.Duration) error
}

// New returns a relay. Every ledger named by a route must be in ledgers.
func New(cfg config.Relay, ledgers map[string]gateway.Ledger, cursors *CursorStore, metrics *Metrics) (*Relay, error) {
	for _, name := range cfg.LedgerNames() {
		if _, ok := ledgers[name]; !ok {
			return nil, errors.Errorf("no endpoint for ledger %v", name)
		}
	}
	r := &Relay{
		cfg:      cfg,
		instance: uuid.New().String(),
		ledgers:  ledgers,
		cursors:  cursors,
		metrics:  metrics,
		wait:     sleep,
	}
	metrics.Info.WithLabelValues(cfg.ID, r.instance).Set(1)
	return r, nil
}

// Instance returns the id of this relay process.
func (r *Relay) Instance() string {
	return r.instance
}

// Run drains every route and ticks every ledger until ctx is done.
func (r *Relay) Run(ctx context.Context) error {
	logger.Infof("relay %v (instance %v) starting with %v routes", r.cfg.ID, r.instance, len(r.cfg.Routes))
	g, ctx := errgroup.WithContext(ctx)
	for _, route := range r.cfg.Routes {
		route := route
		g.Go(func() error {
			for {
				moved, err := r.PumpRoute(ctx, route)
				if err != nil {
					if ctx.Err() != nil {
						return nil
					}
					logger.Warningf("route %v: %v", route, err)
				}
				if moved > 0 && err == nil {
					continue
				}
				if err := r.wait(ctx, r.cfg.PollInterval); err != nil {
					return nil
				}
			}
		})
	}
	g.Go(func() error {
		for {
			if err := r.wait(ctx, r.cfg.TickInterval); err != nil {
				return nil
			}
			r.TickAll(ctx)
		}
	})
	err := g.Wait()
	logger.Infof("relay %v stopped", r.cfg.ID)
	return err
}

// Drain pumps every route until a full round moves nothing and returns the number of
// messages resolved. Used by single-process networks and tests.
func (r *Relay) Drain(ctx context.Context) (int, error) {
	total := 0
	for {
		round := 0
		for _, route := range r.cfg.Routes {
			moved, err := r.PumpRoute(ctx, route)
			round += moved
			if err != nil {
				return total + round, err
			}
		}
		if round == 0 {
			return total, nil
		}
		total += round
	}
}

// PumpRoute resolves up to one batch of messages on route and returns how many were
// resolved. An error leaves the cursor at the last resolved message.
func (r *Relay) PumpRoute(ctx context.Context, route config.Route) (int, error) {
	name := route.String()
	cursor, err := r.cursors.Get(name)
	if err != nil {
		return 0, err
	}
	payload, err := r.ledgers[route.From].Invoke(ctx, r.cfg.ID, "GetOutbox", route.To, strconv.FormatUint(cursor, 10), strconv.Itoa(r.cfg.BatchSize))
	if err != nil {
		return 0, errors.Wrapf(err, "read outbox %v", name)
	}
	msgs := []data_model.Message{}
	if err := json.Unmarshal(payload, &msgs); err != nil {
		return 0, errors.Wrapf(err, "decode outbox %v", name)
	}

	moved := 0
	for _, msg := range msgs {
		if err := r.resolve(ctx, route, msg); err != nil {
			return moved, err
		}
		if err := r.cursors.Put(name, msg.Seq); err != nil {
			return moved, err
		}
		r.metrics.Cursor.WithLabelValues(name).Set(float64(msg.Seq))
		moved++
	}
	return moved, nil
}

// resolve delivers msg, or reports it to the sender once the attempts are used up.
func (r *Relay) resolve(ctx context.Context, route config.Route, msg data_model.Message) error {
	name := route.String()
	msgBytes, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "marshal message")
	}

	var lastErr error
	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		_, lastErr = r.ledgers[route.To].Invoke(ctx, r.cfg.ID, "Deliver", string(msgBytes))
		if lastErr == nil {
			r.metrics.Delivered.WithLabelValues(name).Inc()
			logger.Debugf("delivered %v#%v %v", name, msg.Seq, msg.Kind)
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Warningf("deliver %v#%v attempt %v: %v", name, msg.Seq, attempt, lastErr)
		if attempt == r.cfg.MaxAttempts {
			break
		}
		r.metrics.Retries.WithLabelValues(name).Inc()
		if err := r.wait(ctx, r.Backoff(attempt)); err != nil {
			return err
		}
	}

	custom_err := &custom_errors.DeliveryError{Channel: name, Seq: msg.Seq, Attempts: r.cfg.MaxAttempts, Cause: lastErr.Error()}
	logger.Errorf("%v", custom_err)
	failureBytes, err := json.Marshal(data_model.DeliveryFailure{Message: msg, Attempts: r.cfg.MaxAttempts, Reason: lastErr.Error()})
	if err != nil {
		return errors.Wrap(err, "marshal delivery failure")
	}
	if _, err := r.ledgers[route.From].Invoke(ctx, r.cfg.ID, "DeliveryFailed", string(failureBytes)); err != nil {
		return errors.Wrap(err, custom_err.Error())
	}
	r.metrics.Failed.WithLabelValues(name).Inc()
	return nil
}

// Backoff returns the wait after the given failed attempt: BaseBackoff doubled per
// attempt, capped at MaxBackoff.
func (r *Relay) Backoff(attempt int) time.Duration {
	d := r.cfg.BaseBackoff
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= r.cfg.MaxBackoff {
			return r.cfg.MaxBackoff
		}
	}
	if d > r.cfg.MaxBackoff {
		return r.cfg.MaxBackoff
	}
	return d
}

// TickAll sends Tick to every ledger. Failures are logged and counted.
func (r *Relay) TickAll(ctx context.Context) {
	names := make([]string, 0, len(r.ledgers))
	for name := range r.ledgers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, err := r.ledgers[name].Invoke(ctx, r.cfg.ID, "Tick"); err != nil {
			logger.Warningf("tick %v: %v", name, err)
			r.metrics.Ticks.WithLabelValues(name, "error").Inc()
			continue
		}
		r.metrics.Ticks.WithLabelValues(name, "ok").Inc()
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
