package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	contractx "github.com/tanpawarit/Chative-Commerce-Tools/agent/contract"
)

// Tool is one named operation with a typed input and output contract.
// The closures are bound to concrete types by New, so callers only ever see any.
type Tool struct {
	Name        string
	Description string
	Privilege   contractx.Privilege
	Params      map[string]*schema.ParameterInfo

	decode func(args map[string]any) (any, error)
	invoke func(ctx context.Context, in any) (any, error)
	verify func(out any) error
}

// New builds a tool whose input decodes into I and whose output must satisfy O's contract.
func New[I, O any](name, description string, privilege contractx.Privilege, params map[string]*schema.ParameterInfo, handler func(ctx context.Context, in I) (O, error)) *Tool {
	name = strings.TrimSpace(name)
	if privilege == "" {
		privilege = contractx.PrivilegeStandard
	}

	return &Tool{
		Name:        name,
		Description: strings.TrimSpace(description),
		Privilege:   privilege,
		Params:      params,
		decode: func(args map[string]any) (any, error) {
			return DecodeInput[I](args)
		},
		invoke: func(ctx context.Context, in any) (any, error) {
			typed, ok := in.(I)
			if !ok {
				return nil, fmt.Errorf("tool=%s: unexpected input type %T", name, in)
			}
			return handler(ctx, typed)
		},
		verify: func(out any) error {
			typed, ok := out.(O)
			if !ok {
				return fmt.Errorf("%w: tool=%s produced %T", contractx.ErrSchemaViolation, name, out)
			}
			return VerifyOutput(typed)
		},
	}
}

// Decode turns raw arguments into the tool's validated input value.
func (t *Tool) Decode(args map[string]any) (any, error) {
	return t.decode(args)
}

func (t *Tool) Invoke(ctx context.Context, in any) (any, error) {
	return t.invoke(ctx, in)
}

// Verify checks a handler result against the output contract.
func (t *Tool) Verify(out any) error {
	return t.verify(out)
}

func (t *Tool) Elevated() bool {
	return t.Privilege == contractx.PrivilegeElevated
}

// Info describes the tool for a tool-calling chat model.
func (t *Tool) Info() *schema.ToolInfo {
	info := &schema.ToolInfo{
		Name: t.Name,
		Desc: t.Description,
	}
	if len(t.Params) > 0 {
		info.ParamsOneOf = schema.NewParamsOneOfByParams(t.Params)
	}
	return info
}

// DecodeInput maps args onto I through its JSON tags and validates the result.
// A nil args map decodes as an empty object.
func DecodeInput[I any](args map[string]any) (I, error) {
	var in I
	if args == nil {
		args = map[string]any{}
	}

	raw, err := json.Marshal(args)
	if err != nil {
		return in, contractx.NewValidationError(contractx.FieldError{
			Rule:    "json",
			Message: fmt.Sprintf("arguments are not encodable: %v", err),
		})
	}
	if err := json.Unmarshal(raw, &in); err != nil {
		return in, decodeError(err)
	}
	if err := ValidateStruct(in); err != nil {
		return in, err
	}
	return in, nil
}
