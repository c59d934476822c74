package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/tanpawarit/Chative-Commerce-Tools/agent/assistant"
	contractx "github.com/tanpawarit/Chative-Commerce-Tools/agent/contract"
)

type toolDescriptor struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Privilege   string         `json:"privilege"`
	InputSchema map[string]any `json:"inputSchema"`
}

func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	tools := s.deps.Registry.Tools()
	out := make([]toolDescriptor, 0, len(tools))
	for _, t := range tools {
		out = append(out, toolDescriptor{
			Name:        t.Name,
			Description: t.Description,
			Privilege:   string(t.Privilege),
			InputSchema: t.InputSchema(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"tools": out})
}

// handleDispatchTool always answers 200; the outcome lives in the envelope.
func (s *Server) handleDispatchTool(w http.ResponseWriter, r *http.Request) {
	body, err := readObject(r)
	if err != nil {
		writeJSON(w, http.StatusOK, contractx.Failure(err))
		return
	}

	args := map[string]any{}
	if raw, ok := body["arguments"]; ok && raw != nil {
		obj, ok := raw.(map[string]any)
		if !ok {
			writeJSON(w, http.StatusOK, contractx.Failure(contractx.NewValidationError(contractx.FieldError{
				Field:   "arguments",
				Rule:    "object",
				Message: "arguments must be a JSON object",
			})))
			return
		}
		args = obj
	}

	caller := contractx.CallerContext{
		Text:     stringField(body, "callerText"),
		CallerID: stringField(body, "callerId"),
	}
	env := s.deps.Dispatcher.Dispatch(r.Context(), r.PathValue("name"), args, caller)
	writeJSON(w, http.StatusOK, env)
}

type agentMessage struct {
	From string `json:"from"`
	Body string `json:"body"`
}

func (s *Server) handleAgentMessage(w http.ResponseWriter, r *http.Request) {
	if s.deps.Assistant == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "assistant is disabled"})
		return
	}

	body, err := readObject(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	msg := agentMessage{From: stringField(body, "from"), Body: stringField(body, "body")}

	reply, err := s.deps.Assistant.Reply(r.Context(), msg.From, msg.Body)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"reply": reply})
	case errors.Is(err, contractx.ErrValidation):
		writeError(w, r, err)
	case errors.Is(err, assistant.ErrModelInvoke), errors.Is(err, assistant.ErrStepLimit):
		zerolog.Ctx(r.Context()).Warn().Err(err).Str("component", "api").Msg("assistant failed")
		writeJSON(w, http.StatusBadGateway, errorBody{Error: "assistant unavailable"})
	default:
		writeError(w, r, err)
	}
}

func stringField(body map[string]any, key string) string {
	v, _ := body[key].(string)
	return strings.TrimSpace(v)
}
