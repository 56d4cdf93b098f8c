package tools

import (
	"iter"
	"maps"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/adk/session"
	"google.golang.org/adk/tool"
	"google.golang.org/adk/tool/functiontool"
)

// mapState is a plain map behind the session.State interface
type mapState map[string]any

func (m mapState) Get(key string) (any, error) {
	v, ok := m[key]
	if !ok {
		return nil, session.ErrStateKeyNotExist
	}
	return v, nil
}

func (m mapState) Set(key string, value any) error {
	m[key] = value
	return nil
}

func (m mapState) All() iter.Seq2[string, any] {
	return maps.All(m)
}

func newTestTool(t *testing.T, name string) tool.Tool {
	t.Helper()
	tl, err := functiontool.New(
		functiontool.Config{Name: name, Description: "test tool " + name},
		func(tool.Context, map[string]any) (map[string]any, error) {
			return map[string]any{"tool": name}, nil
		},
	)
	require.NoError(t, err)
	return tl
}
