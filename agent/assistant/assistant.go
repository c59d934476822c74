// Package assistant answers chat messages with a tool-calling model.
// Every tool call goes through the dispatcher, so the model sees only envelopes.
package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"

	contractx "github.com/tanpawarit/Chative-Commerce-Tools/agent/contract"
	statex "github.com/tanpawarit/Chative-Commerce-Tools/agent/state"
)

var (
	ErrModelInvoke = errors.New("model invoke failed")
	ErrStepLimit   = errors.New("assistant step limit reached")
)

const (
	defaultMaxSteps = 6
	historyKey      = "history"
)

type Config struct {
	SystemPrompt string
	MaxSteps     int
	HistoryTurns int
}

type Assistant struct {
	model      einomodel.ToolCallingChatModel
	template   einoprompt.ChatTemplate
	dispatcher contractx.Dispatcher
	memory     statex.Store

	maxSteps     int
	historyTurns int
	now          func() time.Time
}

// New binds tools to chatModel. A nil memory keeps no history between messages.
func New(
	chatModel einomodel.ToolCallingChatModel,
	tools []*schema.ToolInfo,
	dispatcher contractx.Dispatcher,
	memory statex.Store,
	cfg Config,
) (*Assistant, error) {
	if chatModel == nil {
		return nil, errors.New("chat model is required")
	}
	if dispatcher == nil {
		return nil, errors.New("dispatcher is required")
	}
	if strings.TrimSpace(cfg.SystemPrompt) == "" {
		return nil, errors.New("system prompt is required")
	}

	bound, err := chatModel.WithTools(tools)
	if err != nil {
		return nil, fmt.Errorf("%w: bind tools: %v", ErrModelInvoke, err)
	}

	maxSteps := cfg.MaxSteps
	if maxSteps <= 0 {
		maxSteps = defaultMaxSteps
	}
	historyTurns := cfg.HistoryTurns
	if historyTurns <= 0 {
		historyTurns = statex.DefaultMaxTurns
	}

	return &Assistant{
		model: bound,
		template: einoprompt.FromMessages(
			schema.FString,
			schema.SystemMessage(fstringLiteral(strings.TrimSpace(cfg.SystemPrompt))),
			schema.MessagesPlaceholder(historyKey, true),
			schema.UserMessage("User Details: {user_details}\n\nQuery: {query}"),
		),
		dispatcher:   dispatcher,
		memory:       memory,
		maxSteps:     maxSteps,
		historyTurns: historyTurns,
		now:          time.Now,
	}, nil
}

// Reply runs the tool-calling loop for one inbound message and returns the model's final text.
// userDetails identifies the caller to the tools and keys the conversation history.
func (a *Assistant) Reply(ctx context.Context, userDetails, text string) (string, error) {
	userDetails = strings.TrimSpace(userDetails)
	text = strings.TrimSpace(text)
	if userDetails == "" {
		return "", fmt.Errorf("%w: sender is required", contractx.ErrValidation)
	}
	if text == "" {
		return "", fmt.Errorf("%w: message body is required", contractx.ErrValidation)
	}

	logger := zerolog.Ctx(ctx).With().Str("component", "assistant").Str("user", userDetails).Logger()
	conv := a.loadConversation(ctx, logger, userDetails)

	messages, err := a.template.Format(ctx, map[string]any{
		historyKey:     historyMessages(conv),
		"user_details": userDetails,
		"query":        text,
	})
	if err != nil {
		return "", fmt.Errorf("%w: format prompt: %v", ErrModelInvoke, err)
	}

	caller := contractx.CallerContext{Text: text, CallerID: userDetails}
	reply, err := a.runLoop(ctx, logger, messages, caller)
	if err != nil {
		return "", err
	}

	now := a.now()
	conv.Append(statex.RoleUser, text, now, a.historyTurns)
	conv.Append(statex.RoleAssistant, reply, now, a.historyTurns)
	a.saveConversation(ctx, logger, conv)

	return reply, nil
}

func (a *Assistant) runLoop(
	ctx context.Context,
	logger zerolog.Logger,
	messages []*schema.Message,
	caller contractx.CallerContext,
) (string, error) {
	for step := 0; step < a.maxSteps; step++ {
		msg, err := a.model.Generate(ctx, messages)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrModelInvoke, err)
		}
		if msg == nil {
			return "", fmt.Errorf("%w: empty model response", ErrModelInvoke)
		}

		if len(msg.ToolCalls) == 0 {
			content := strings.TrimSpace(msg.Content)
			if content == "" {
				return "", fmt.Errorf("%w: model returned neither text nor tool calls", ErrModelInvoke)
			}
			return content, nil
		}

		messages = append(messages, msg)
		for _, call := range msg.ToolCalls {
			env := a.callTool(ctx, call, caller)
			logger.Debug().
				Int("step", step).
				Str("tool", call.Function.Name).
				Str("status", env.Status).
				Msg("tool call answered")

			payload, err := json.Marshal(env)
			if err != nil {
				payload, _ = json.Marshal(contractx.Failure(fmt.Errorf("encode tool result: %w", err)))
			}
			messages = append(messages, schema.ToolMessage(string(payload), call.ID))
		}
	}
	return "", fmt.Errorf("%w: %d steps", ErrStepLimit, a.maxSteps)
}

func (a *Assistant) callTool(ctx context.Context, call schema.ToolCall, caller contractx.CallerContext) contractx.Envelope {
	name := strings.TrimSpace(call.Function.Name)

	args := map[string]any{}
	if raw := strings.TrimSpace(call.Function.Arguments); raw != "" {
		if err := json.Unmarshal([]byte(raw), &args); err != nil {
			return contractx.Failure(contractx.NewValidationError(contractx.FieldError{
				Field:   "arguments",
				Rule:    "json",
				Message: fmt.Sprintf("arguments for %s are not a JSON object: %v", name, err),
			}))
		}
	}

	return a.dispatcher.Dispatch(ctx, name, args, caller)
}

func (a *Assistant) loadConversation(ctx context.Context, logger zerolog.Logger, userDetails string) *statex.Conversation {
	if a.memory == nil {
		return statex.NewConversation(userDetails, a.now())
	}
	conv, err := a.memory.Load(ctx, userDetails)
	if err != nil {
		if !errors.Is(err, statex.ErrConversationNotFound) {
			logger.Warn().Err(err).Msg("load conversation failed, starting fresh")
		}
		return statex.NewConversation(userDetails, a.now())
	}
	return conv
}

func (a *Assistant) saveConversation(ctx context.Context, logger zerolog.Logger, conv *statex.Conversation) {
	if a.memory == nil {
		return
	}
	if err := a.memory.Save(ctx, conv); err != nil {
		logger.Warn().Err(err).Msg("save conversation failed")
	}
}

func historyMessages(conv *statex.Conversation) []*schema.Message {
	out := make([]*schema.Message, 0, len(conv.Turns))
	for _, t := range conv.Turns {
		switch t.Role {
		case statex.RoleUser:
			out = append(out, schema.UserMessage(t.Content))
		case statex.RoleAssistant:
			out = append(out, schema.AssistantMessage(t.Content, nil))
		}
	}
	return out
}

// fstringLiteral escapes braces so configured text is never read as a template variable.
func fstringLiteral(s string) string {
	return strings.NewReplacer("{", "{{", "}", "}}").Replace(s)
}
