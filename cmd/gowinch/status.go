package main

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cjeanneret/GoWinch/internal/logic/winch"
)

type stateSink interface {
	BroadcastState(state interface{})
}

type statePublisher interface {
	PublishState()
}

type statusSource interface {
	Status() winch.Status
}

// statusReporter pushes the winch status to MQTT and SSE clients whenever
// it changes, checked once per interval.
type statusReporter struct {
	ctrl        statusSource
	bridge      statePublisher // may be nil
	broadcaster stateSink      // may be nil
	last        []byte
}

func (r *statusReporter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.report()
		}
	}
}

// report publishes the status if it differs from the last one published.
func (r *statusReporter) report() bool {
	st := r.ctrl.Status()
	data, err := json.Marshal(st)
	if err != nil || string(data) == string(r.last) {
		return false
	}
	r.last = data

	if r.bridge != nil {
		r.bridge.PublishState()
	}
	if r.broadcaster != nil {
		r.broadcaster.BroadcastState(st)
	}
	return true
}
