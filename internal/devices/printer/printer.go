// Webdeck - Self-Hosted Device Dashboard
// Copyright 2026 The Webdeck Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/webdeck-io/webdeck

// Package printer is the print-queue device. Documents are enqueued with
// Write, staged for a run with Request, committed to the spool with
// Confirm, and dropped with Dismiss. The queue lives in process memory.
package printer

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/webdeck-io/webdeck/internal/authz"
	"github.com/webdeck-io/webdeck/internal/command"
	"github.com/webdeck-io/webdeck/internal/device"
)

// Job states.
const (
	stateQueued  = "queued"
	statePending = "pending"
	stateSpooled = "spooled"
)

// Job is one document in the queue.
type Job struct {
	ID       string    `json:"id"`
	Owner    string    `json:"owner"`
	Name     string    `json:"name"`
	Document string    `json:"-"`
	State    string    `json:"state"`
	Enqueued time.Time `json:"enqueued"`
}

// Device is the print-queue device.
type Device struct {
	engine *authz.Engine

	mu   sync.Mutex
	jobs map[string]*Job
}

// New builds an empty print queue.
func New(engine *authz.Engine) *Device {
	return &Device{engine: engine, jobs: make(map[string]*Job)}
}

var _ device.Device = (*Device)(nil)

// ReadData lists the queue, oldest first.
func (d *Device) ReadData(ctx context.Context, env *command.Envelope) (device.Result, error) {
	if err := d.engine.RequireGroup(ctx, env.Username, "printer_read"); err != nil {
		return nil, err
	}

	d.mu.Lock()
	jobs := make([]*Job, 0, len(d.jobs))
	for _, j := range d.jobs {
		jobs = append(jobs, j)
	}
	d.mu.Unlock()

	sort.Slice(jobs, func(i, k int) bool { return jobs[i].Enqueued.Before(jobs[k].Enqueued) })
	return marshal(jobs)
}

// ReadStatus reports queue depth by state.
func (d *Device) ReadStatus(ctx context.Context, env *command.Envelope) (device.Result, error) {
	if err := d.engine.RequireGroup(ctx, env.Username, device.GroupStatus); err != nil {
		return nil, err
	}

	d.mu.Lock()
	counts := map[string]int{stateQueued: 0, statePending: 0, stateSpooled: 0}
	for _, j := range d.jobs {
		counts[j.State]++
	}
	d.mu.Unlock()
	return marshal(counts)
}

// WriteData enqueues a document; the command is the job name, the payload
// the document body. Returns the new job ID.
func (d *Device) WriteData(ctx context.Context, env *command.Envelope) (device.Result, error) {
	if err := d.engine.RequireGroup(ctx, env.Username, "printer_write"); err != nil {
		return nil, err
	}
	if env.Payload == "" {
		return nil, fmt.Errorf("%w: empty document", command.ErrInvalidInput)
	}

	job := &Job{
		ID:       uuid.NewString(),
		Owner:    env.Username,
		Name:     env.Command,
		Document: env.Payload,
		State:    stateQueued,
		Enqueued: time.Now().UTC(),
	}
	d.mu.Lock()
	d.jobs[job.ID] = job
	d.mu.Unlock()

	return device.Result(job.ID), nil
}

// RequestQuery stages a queued job for a print run; the payload is the job
// ID.
func (d *Device) RequestQuery(ctx context.Context, env *command.Envelope) (device.Result, error) {
	if err := d.engine.RequireGroup(ctx, env.Username, "printer_request"); err != nil {
		return nil, err
	}
	return d.transition(env.Payload, stateQueued, statePending)
}

// ConfirmQuery commits a pending job to the spool.
func (d *Device) ConfirmQuery(ctx context.Context, env *command.Envelope) (device.Result, error) {
	if err := d.engine.RequireGroup(ctx, env.Username, "printer_confirm"); err != nil {
		return nil, err
	}
	return d.transition(env.Payload, statePending, stateSpooled)
}

// DismissQuery drops a pending job back to queued.
func (d *Device) DismissQuery(ctx context.Context, env *command.Envelope) (device.Result, error) {
	if err := d.engine.RequireGroup(ctx, env.Username, "printer_dismiss"); err != nil {
		return nil, err
	}
	return d.transition(env.Payload, statePending, stateQueued)
}

// transition moves job id from one state to another; wrong-state and
// unknown IDs fail as device errors.
func (d *Device) transition(id, from, to string) (device.Result, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: malformed job id", command.ErrInvalidInput)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	job, ok := d.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: no such job", command.ErrDeviceError)
	}
	if job.State != from {
		return nil, fmt.Errorf("%w: job is %s, not %s", command.ErrDeviceError, job.State, from)
	}
	job.State = to
	return device.Result(to), nil
}

func marshal(v any) (device.Result, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: encode response: %v", command.ErrDeviceError, err)
	}
	return device.Result(raw), nil
}
