// Package auth decides the privilege of a single tool invocation.
package auth

import (
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/Chative-Commerce-Tools/agent/contract"
)

const DefaultElevationToken = "JESUS"

const (
	ModeKeyword   = "keyword"
	ModeAllowList = "allowlist"
	ModeBoth      = "both"
)

// Gate classifies a caller for the current request only. Implementations keep no session state.
type Gate interface {
	Classify(caller contractx.CallerContext) contractx.Privilege
}

type Config struct {
	Mode           string   `split_words:"true" default:"keyword"`
	ElevationToken string   `split_words:"true" default:"JESUS"`
	AllowedCallers []string `split_words:"true"`
}

// KeywordGate elevates when the caller text contains Token, matched case-sensitively.
// Anyone who types the token is elevated; it only guards against accidental destructive calls.
type KeywordGate struct {
	Token string
}

func NewKeywordGate(token string) KeywordGate {
	if token == "" {
		token = DefaultElevationToken
	}
	return KeywordGate{Token: token}
}

func (g KeywordGate) Classify(caller contractx.CallerContext) contractx.Privilege {
	if g.Token != "" && strings.Contains(caller.Text, g.Token) {
		return contractx.PrivilegeElevated
	}
	return contractx.PrivilegeStandard
}

// AllowListGate elevates known caller identities supplied by the channel.
type AllowListGate struct {
	callers map[string]struct{}
}

func NewAllowListGate(callerIDs ...string) AllowListGate {
	callers := make(map[string]struct{}, len(callerIDs))
	for _, id := range callerIDs {
		if id = strings.TrimSpace(id); id != "" {
			callers[id] = struct{}{}
		}
	}
	return AllowListGate{callers: callers}
}

func (g AllowListGate) Classify(caller contractx.CallerContext) contractx.Privilege {
	if _, ok := g.callers[strings.TrimSpace(caller.CallerID)]; ok && caller.CallerID != "" {
		return contractx.PrivilegeElevated
	}
	return contractx.PrivilegeStandard
}

// AnyGate elevates when at least one wrapped gate does.
type AnyGate []Gate

func (g AnyGate) Classify(caller contractx.CallerContext) contractx.Privilege {
	for _, gate := range g {
		if gate != nil && gate.Classify(caller) == contractx.PrivilegeElevated {
			return contractx.PrivilegeElevated
		}
	}
	return contractx.PrivilegeStandard
}

// New builds the gate selected by cfg.Mode.
func New(cfg Config) (Gate, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	switch mode {
	case "", ModeKeyword:
		return NewKeywordGate(strings.TrimSpace(cfg.ElevationToken)), nil
	case ModeAllowList:
		return NewAllowListGate(cfg.AllowedCallers...), nil
	case ModeBoth:
		return AnyGate{
			NewKeywordGate(strings.TrimSpace(cfg.ElevationToken)),
			NewAllowListGate(cfg.AllowedCallers...),
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown auth mode %q", contractx.ErrValidation, cfg.Mode)
	}
}
