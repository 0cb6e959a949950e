package anthropic

import (
	"strings"
	"testing"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quiltt/activeagent-go/prompt"
	"github.com/quiltt/activeagent-go/provider"
)

func TestOptionsValidate(t *testing.T) {
	valid := Options{Model: "claude-sonnet-4-20250514", Temperature: 0.7, MaxTokens: 1024}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name  string
		opts  Options
		field string
	}{
		{"missing model", Options{Temperature: 0.7, MaxTokens: 1024}, "model"},
		{"temperature above range", Options{Model: "m", Temperature: 1.5, MaxTokens: 1024}, "temperature"},
		{"temperature below range", Options{Model: "m", Temperature: -0.1, MaxTokens: 1024}, "temperature"},
		{"non-positive max tokens", Options{Model: "m", Temperature: 0.7}, "max_tokens"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate()
			var cfgErr *provider.ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func newTestProvider(t *testing.T) *Provider {
	t.Helper()
	p, err := NewProvider(func(o *Options) { o.APIKey = "sk-ant-test" })
	require.NoError(t, err)
	return p
}

func TestBuildParams(t *testing.T) {
	p := newTestProvider(t)

	t.Run("instructions become system blocks", func(t *testing.T) {
		req := provider.Request{
			Instructions: []string{"be brief", "stay factual"},
			Messages:     []prompt.Message{prompt.NewUser("hi")},
		}
		params, err := p.buildParams(req)
		require.NoError(t, err)
		require.Len(t, params.System, 2)
		assert.Equal(t, "be brief", params.System[0].Text)
		assert.Equal(t, "stay factual", params.System[1].Text)
	})

	t.Run("max tokens always present", func(t *testing.T) {
		params, err := p.buildParams(provider.Request{Messages: []prompt.Message{prompt.NewUser("hi")}})
		require.NoError(t, err)
		assert.Equal(t, int64(4096), params.MaxTokens)
	})

	t.Run("tool results ride in user messages", func(t *testing.T) {
		assistant := prompt.NewAssistant("")
		assistant.RequestedActions = []prompt.ActionCall{{ID: "toolu_1", Name: "lookup", Arguments: `{"q":"x"}`}}
		req := provider.Request{Messages: []prompt.Message{
			prompt.NewUser("q"),
			assistant,
			prompt.NewToolFailure("toolu_1", "lookup", "backend down"),
		}}
		params, err := p.buildParams(req)
		require.NoError(t, err)
		require.Len(t, params.Messages, 3)
		assert.Equal(t, anthropicsdk.MessageParamRoleAssistant, params.Messages[1].Role)

		resultMsg := params.Messages[2]
		assert.Equal(t, anthropicsdk.MessageParamRoleUser, resultMsg.Role)
		require.Len(t, resultMsg.Content, 1)
		tr := resultMsg.Content[0].OfToolResult
		require.NotNil(t, tr)
		assert.Equal(t, "toolu_1", tr.ToolUseID)
		assert.True(t, tr.IsError.Value)
	})

	t.Run("output schema appended as trailing system block", func(t *testing.T) {
		req := provider.Request{
			Messages:     []prompt.Message{prompt.NewUser("hi")},
			OutputSchema: map[string]any{"type": "object"},
		}
		params, err := p.buildParams(req)
		require.NoError(t, err)
		require.NotEmpty(t, params.System)
		last := params.System[len(params.System)-1]
		assert.True(t, strings.Contains(last.Text, "JSON schema"))
		assert.True(t, strings.Contains(last.Text, `"type":"object"`))
	})
}

func TestBuildTools(t *testing.T) {
	tools := buildTools([]prompt.ActionSchema{{
		Name:        "get_weather",
		Description: "Weather lookup",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"city": map[string]any{"type": "string"},
			},
			"required": []string{"city"},
		},
	}})
	require.Len(t, tools, 1)
	tool := tools[0].OfTool
	require.NotNil(t, tool)
	assert.Equal(t, "get_weather", tool.Name)
	assert.Equal(t, "Weather lookup", tool.Description.Value)
	assert.Equal(t, []string{"city"}, tool.InputSchema.Required)
}

func TestToolChoice(t *testing.T) {
	assert.Nil(t, toolChoice(prompt.ToolChoice{}))

	named := toolChoice(prompt.ToolChoice{Name: "lookup"})
	require.NotNil(t, named)
	require.NotNil(t, named.OfTool)
	assert.Equal(t, "lookup", named.OfTool.Name)

	auto := toolChoice(prompt.ToolChoice{Mode: "auto"})
	require.NotNil(t, auto)
	assert.NotNil(t, auto.OfAuto)

	any_ := toolChoice(prompt.ToolChoice{Mode: "required"})
	require.NotNil(t, any_)
	assert.NotNil(t, any_.OfAny)

	none := toolChoice(prompt.ToolChoice{Mode: "none"})
	require.NotNil(t, none)
	assert.NotNil(t, none.OfNone)
}

func TestAssistantBlocks(t *testing.T) {
	m := prompt.NewAssistant("thinking out loud")
	m.RequestedActions = []prompt.ActionCall{
		{ID: "toolu_1", Name: "lookup", Arguments: `{"q":"tides"}`},
		{ID: "toolu_2", Name: "noargs", Arguments: ""},
	}
	blocks := assistantBlocks(m)
	require.Len(t, blocks, 3)
	require.NotNil(t, blocks[0].OfText)

	first := blocks[1].OfToolUse
	require.NotNil(t, first)
	assert.Equal(t, "toolu_1", first.ID)
	assert.Equal(t, "lookup", first.Name)
	assert.Equal(t, map[string]any{"q": "tides"}, first.Input)

	second := blocks[2].OfToolUse
	require.NotNil(t, second)
	assert.Equal(t, map[string]any{}, second.Input)
}

func TestUsageFromMessage(t *testing.T) {
	u := usageFromMessage(anthropicsdk.Usage{
		InputTokens:              120,
		OutputTokens:             30,
		CacheReadInputTokens:     50,
		CacheCreationInputTokens: 20,
	})
	assert.Equal(t, 120, u.InputTokens)
	assert.Equal(t, 30, u.OutputTokens)
	assert.Equal(t, 150, u.TotalTokens)
	assert.Equal(t, 70, u.CachedTokens)
}
