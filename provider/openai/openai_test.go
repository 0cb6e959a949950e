package openai

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quiltt/activeagent-go/provider"
)

func TestOptionsValidate(t *testing.T) {
	valid := Options{Model: "gpt-4o", Temperature: 0.7, API: APIChat}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name  string
		opts  Options
		field string
	}{
		{"missing model", Options{API: APIChat}, "model"},
		{"temperature out of range", Options{Model: "m", Temperature: 2.5, API: APIChat}, "temperature"},
		{"unknown api", Options{Model: "m", API: "completions"}, "api"},
		{"unknown service tier", Options{Model: "m", API: APIChat, ServiceTier: "turbo"}, "service_tier"},
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

func TestNewProviderResponsesRequiresKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	_, err := NewProvider(func(o *Options) { o.API = APIResponses })
	var cfgErr *provider.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "api_key", cfgErr.Field)
}

func TestChatProviderRejectsResponsesRequests(t *testing.T) {
	p, err := NewProvider(func(o *Options) { o.APIKey = "sk-test" })
	require.NoError(t, err)

	req := provider.Request{Options: provider.Options{"api": APIResponses}}
	_, err = p.Generate(context.Background(), req, nil)
	var cfgErr *provider.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
}
