// Package router implements the Command Router (spec.md §4.6): it pulls
// frames from the shared command queue, dispatches by exact operation
// name, and routes each response back to the transport that originated the
// command.
package router

import (
	"context"
	"time"

	"github.com/valveguard/corectl/internal/frame"
	"github.com/valveguard/corectl/internal/observability"
)

// Response is the router's output: a resp_frame_t carrying the same id and
// origin as its originating command.
type Response struct {
	ID      uint16
	Status  int8
	Payload []byte
	Origin  frame.Origin
	IsFinal bool
}

// Handler processes one decoded command frame and produces a status and
// response payload. A handler does not see or set origin/id; the router
// owns that.
type Handler func(ctx context.Context, f frame.Frame) (status int8, payload []byte, isFinal bool)

// unknownOpStatus is the status sent back when no handler matches op
// (spec.md §4.6).
const unknownOpStatus int8 = -1

// Router dequeues command frames and dispatches them by exact op match.
// Responses are pushed onto a transport-specific queue, one per origin
// (spec.md §9 open question, resolved as fan-out-by-origin rather than a
// single shared response queue).
type Router struct {
	commands chan frame.Frame
	handlers map[string]Handler

	responseQueues map[frame.Origin]chan Response

	log     *observability.Logger
	metrics *observability.Metrics
}

// New creates a Router with the given command-queue depth and one
// response queue per known transport origin, each sized responseQueueDepth.
func New(commandQueueDepth, responseQueueDepth int, log *observability.Logger, metrics *observability.Metrics) *Router {
	r := &Router{
		commands: make(chan frame.Frame, commandQueueDepth),
		handlers: make(map[string]Handler),
		responseQueues: map[frame.Origin]chan Response{
			frame.OriginBLE:    make(chan Response, responseQueueDepth),
			frame.OriginMQTT:   make(chan Response, responseQueueDepth),
			frame.OriginCustom: make(chan Response, responseQueueDepth),
		},
		log:     log.WithComponent("router"),
		metrics: metrics,
	}
	return r
}

// RegisterHandler installs the service handler for an exact op name.
// Registering the same op twice replaces the previous handler.
func (r *Router) RegisterHandler(op string, h Handler) {
	r.handlers[op] = h
}

// Enqueue pushes a decoded command frame onto the command queue. The
// router becomes the owner of f.Payload once this call returns.
func (r *Router) Enqueue(f frame.Frame) {
	r.commands <- f
}

// Responses returns the response queue for one transport origin, for the
// transport's dedicated TX thread to block-receive on.
func (r *Router) Responses(origin frame.Origin) <-chan Response {
	return r.responseQueues[origin]
}

// Run drains the command queue until ctx is canceled. It is meant to run
// on its own goroutine, mirroring the firmware's dedicated router thread.
func (r *Router) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case f := <-r.commands:
			r.dispatch(ctx, f)
		}
	}
}

func (r *Router) dispatch(ctx context.Context, f frame.Frame) {
	start := time.Now()
	op := "unknown"

	h, ok := r.handlers[f.Op]
	var status int8
	var payload []byte
	var isFinal bool = true

	if !ok {
		status = unknownOpStatus
		payload = nil
		if r.metrics != nil {
			r.metrics.RouterUnknownOpsTotal.Inc()
		}
		r.log.Debug("unknown op, returning status -1")
	} else {
		op = f.Op
		status, payload, isFinal = h(ctx, f)
	}

	resp := Response{
		ID:      f.ID,
		Status:  status,
		Payload: payload,
		Origin:  f.Origin,
		IsFinal: isFinal,
	}

	queue, ok := r.responseQueues[f.Origin]
	if ok {
		queue <- resp
	}

	if r.metrics != nil {
		r.metrics.RouterDispatchDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}
}
