// Package dispatch runs tool invocations: resolve, validate, authorize, execute, verify.
// Every call ends in a contract.Envelope; no error or panic crosses Dispatch.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	authx "github.com/tanpawarit/Chative-Commerce-Tools/agent/auth"
	contractx "github.com/tanpawarit/Chative-Commerce-Tools/agent/contract"
	toolx "github.com/tanpawarit/Chative-Commerce-Tools/agent/tool"
)

const tracerName = "github.com/tanpawarit/Chative-Commerce-Tools/agent/dispatch"

// unknownToolLabel keeps arbitrary caller-supplied names out of metric labels.
const unknownToolLabel = "_unknown"

var _ contractx.Dispatcher = (*Dispatcher)(nil)

type Option func(*Dispatcher)

func WithMetrics(m *Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(d *Dispatcher) {
		if t != nil {
			d.tracer = t
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		if now != nil {
			d.now = now
		}
	}
}

type Dispatcher struct {
	registry *toolx.Registry
	gate     authx.Gate
	metrics  *Metrics
	tracer   trace.Tracer
	now      func() time.Time

	runner compose.Runnable[request, contractx.Envelope]
}

func New(registry *toolx.Registry, gate authx.Gate, opts ...Option) (*Dispatcher, error) {
	if registry == nil {
		return nil, errors.New("tool registry is required")
	}
	if gate == nil {
		return nil, errors.New("authorization gate is required")
	}

	d := &Dispatcher{
		registry: registry,
		gate:     gate,
		tracer:   otel.Tracer(tracerName),
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}

	runner, err := d.compileDispatchGraph(context.Background())
	if err != nil {
		return nil, err
	}
	d.runner = runner

	return d, nil
}

// Dispatch runs one tool call and always returns an envelope.
func (d *Dispatcher) Dispatch(ctx context.Context, tool string, args map[string]any, caller contractx.CallerContext) contractx.Envelope {
	tool = strings.TrimSpace(tool)
	start := d.now()

	label := tool
	if _, ok := d.registry.Lookup(tool); !ok {
		label = unknownToolLabel
	}

	ctx, span := d.tracer.Start(ctx, "dispatch."+label,
		trace.WithAttributes(
			attribute.String("tool.name", tool),
			attribute.Bool("caller.identified", caller.CallerID != ""),
		),
	)
	defer span.End()

	env, err := d.runner.Invoke(ctx, request{Tool: tool, Args: args, Caller: caller})
	if err != nil {
		// only reachable if the graph itself misbehaves
		env = contractx.Failure(fmt.Errorf("dispatch graph: %w", err))
	}

	elapsed := d.now().Sub(start)
	d.metrics.observe(label, env, elapsed)

	span.SetAttributes(attribute.String("tool.status", env.Status))
	if !env.OK() {
		span.SetAttributes(attribute.String("tool.error_kind", string(env.Kind)))
		span.SetStatus(codes.Error, env.Message)
	}

	logDispatch(ctx, tool, env, elapsed)
	return env
}

func logDispatch(ctx context.Context, tool string, env contractx.Envelope, elapsed time.Duration) {
	logger := zerolog.Ctx(ctx)

	var event *zerolog.Event
	switch env.Kind {
	case "":
		event = logger.Info()
	case contractx.KindStore, contractx.KindInternal:
		event = logger.Error()
	default:
		event = logger.Warn()
	}

	event = event.
		Str("component", "dispatcher").
		Str("tool", tool).
		Str("status", env.Status).
		Dur("duration", elapsed)
	if env.Kind != "" {
		event = event.Str("kind", string(env.Kind)).Str("message", env.Message)
	}
	event.Msg("tool dispatched")
}
