package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

const (
	paramAgentID      = "/config/agent_id"
	paramAgentAliasID = "/config/agent_alias_id"
	paramModelID      = "/config/model_id"
)

// ParamGetter fetches a batch of parameters by full name.
type ParamGetter interface {
	GetParameters(ctx context.Context, names ...string) (map[string]string, error)
}

// RuntimeSettings are the upstream identifiers resolved from the parameter
// store at first use.
type RuntimeSettings struct {
	AgentID      string
	AgentAliasID string
	ModelID      string
}

// SettingsLoader caches RuntimeSettings after the first successful load. A
// failed load is retried on the next call.
type SettingsLoader struct {
	params ParamGetter
	prefix string

	mu       sync.RWMutex
	loaded   bool
	settings RuntimeSettings
}

func NewSettingsLoader(p ParamGetter, paramPrefix string) (*SettingsLoader, error) {
	if p == nil {
		return nil, errors.New("usecase: param getter must not be nil")
	}
	paramPrefix = strings.TrimRight(strings.TrimSpace(paramPrefix), "/")
	if paramPrefix == "" {
		return nil, errors.New("usecase: parameter prefix must not be empty")
	}
	return &SettingsLoader{params: p, prefix: paramPrefix}, nil
}

// StaticSettings returns a loader that never touches the parameter store.
func StaticSettings(s RuntimeSettings) *SettingsLoader {
	return &SettingsLoader{loaded: true, settings: s}
}

func (l *SettingsLoader) Settings(ctx context.Context) (RuntimeSettings, error) {
	l.mu.RLock()
	if l.loaded {
		s := l.settings
		l.mu.RUnlock()
		return s, nil
	}
	l.mu.RUnlock()

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.loaded {
		return l.settings, nil
	}

	names := []string{l.prefix + paramAgentID, l.prefix + paramAgentAliasID, l.prefix + paramModelID}
	vals, err := l.params.GetParameters(ctx, names...)
	if err != nil {
		return RuntimeSettings{}, fmt.Errorf("usecase: load runtime settings: %w", err)
	}
	s := RuntimeSettings{
		AgentID:      strings.TrimSpace(vals[names[0]]),
		AgentAliasID: strings.TrimSpace(vals[names[1]]),
		ModelID:      strings.TrimSpace(vals[names[2]]),
	}
	for i, v := range []string{s.AgentID, s.AgentAliasID, s.ModelID} {
		if v == "" {
			return RuntimeSettings{}, fmt.Errorf("usecase: load runtime settings: %s is empty", names[i])
		}
	}

	l.settings = s
	l.loaded = true
	return s, nil
}
