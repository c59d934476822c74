package dispatch

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/cloudwego/eino/compose"
	"github.com/rs/zerolog"

	contractx "github.com/tanpawarit/Chative-Commerce-Tools/agent/contract"
	toolx "github.com/tanpawarit/Chative-Commerce-Tools/agent/tool"
)

type request struct {
	Tool   string
	Args   map[string]any
	Caller contractx.CallerContext
}

// dispatchState flows through every node. Once err is set the remaining
// nodes pass it along untouched and render turns it into the error envelope.
type dispatchState struct {
	req    request
	tool   *toolx.Tool
	input  any
	output any
	err    error
}

func (s *dispatchState) failed() bool {
	return s.err != nil
}

func (d *Dispatcher) compileDispatchGraph(ctx context.Context) (compose.Runnable[request, contractx.Envelope], error) {
	graph := compose.NewGraph[request, contractx.Envelope]()

	if err := graph.AddLambdaNode("resolve_tool",
		compose.InvokableLambda(func(ctx context.Context, req request) (*dispatchState, error) {
			return d.resolveTool(req), nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add node resolve_tool: %w", err)
	}

	if err := graph.AddLambdaNode("decode_input",
		compose.InvokableLambda(func(ctx context.Context, in *dispatchState) (*dispatchState, error) {
			return decodeInput(in), nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add node decode_input: %w", err)
	}

	if err := graph.AddLambdaNode("authorize",
		compose.InvokableLambda(func(ctx context.Context, in *dispatchState) (*dispatchState, error) {
			return d.authorize(in), nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add node authorize: %w", err)
	}

	if err := graph.AddLambdaNode("execute",
		compose.InvokableLambda(func(ctx context.Context, in *dispatchState) (*dispatchState, error) {
			return execute(ctx, in), nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add node execute: %w", err)
	}

	if err := graph.AddLambdaNode("verify_output",
		compose.InvokableLambda(func(ctx context.Context, in *dispatchState) (*dispatchState, error) {
			return verifyOutput(in), nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add node verify_output: %w", err)
	}

	if err := graph.AddLambdaNode("render_envelope",
		compose.InvokableLambda(func(ctx context.Context, in *dispatchState) (contractx.Envelope, error) {
			return renderEnvelope(ctx, in), nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add node render_envelope: %w", err)
	}

	edges := [][2]string{
		{compose.START, "resolve_tool"},
		{"resolve_tool", "decode_input"},
		{"decode_input", "authorize"},
		{"authorize", "execute"},
		{"execute", "verify_output"},
		{"verify_output", "render_envelope"},
		{"render_envelope", compose.END},
	}

	for _, edge := range edges {
		if err := graph.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("add edge %s->%s: %w", edge[0], edge[1], err)
		}
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("dispatch.tool_call"))
	if err != nil {
		return nil, fmt.Errorf("compile dispatch graph: %w", err)
	}
	return runner, nil
}

func (d *Dispatcher) resolveTool(req request) *dispatchState {
	state := &dispatchState{req: req}
	tool, ok := d.registry.Lookup(req.Tool)
	if !ok {
		state.err = fmt.Errorf("%w: %q", contractx.ErrUnknownTool, req.Tool)
		return state
	}
	state.tool = tool
	return state
}

func decodeInput(s *dispatchState) *dispatchState {
	if s.failed() {
		return s
	}
	in, err := s.tool.Decode(s.req.Args)
	if err != nil {
		s.err = err
		return s
	}
	s.input = in
	return s
}

// authorize runs after decoding so malformed input is reported first, and before
// execute so a forbidden call never reaches the store.
func (d *Dispatcher) authorize(s *dispatchState) *dispatchState {
	if s.failed() {
		return s
	}
	privilege := d.gate.Classify(s.req.Caller)
	if !privilege.Allows(s.tool.Privilege) {
		s.err = fmt.Errorf("%w: tool %q requires elevated privilege", contractx.ErrForbidden, s.tool.Name)
	}
	return s
}

func execute(ctx context.Context, s *dispatchState) (out *dispatchState) {
	if s.failed() {
		return s
	}

	defer func() {
		if r := recover(); r != nil {
			zerolog.Ctx(ctx).Error().
				Str("component", "dispatcher").
				Str("tool", s.tool.Name).
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("tool handler panicked")
			s.err = fmt.Errorf("tool=%s panicked: %v", s.tool.Name, r)
			out = s
		}
	}()

	result, err := s.tool.Invoke(ctx, s.input)
	if err != nil {
		s.err = err
		return s
	}
	s.output = result
	return s
}

func verifyOutput(s *dispatchState) *dispatchState {
	if s.failed() {
		return s
	}
	if err := s.tool.Verify(s.output); err != nil {
		s.err = err
	}
	return s
}

func renderEnvelope(ctx context.Context, s *dispatchState) contractx.Envelope {
	if !s.failed() {
		return contractx.Success(s.output)
	}

	env := contractx.Failure(s.err)
	if env.Kind == contractx.KindStore || env.Kind == contractx.KindInternal {
		// the envelope hides the cause, so keep it in the log
		zerolog.Ctx(ctx).Error().
			Err(s.err).
			Str("component", "dispatcher").
			Str("tool", s.req.Tool).
			Msg("tool call failed")
	}
	return env
}
