package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend is a controllable backend for gateway tests.
type fakeBackend struct {
	name       string
	configured bool
	err        error
	text       string
	calls      int
}

func (f *fakeBackend) Name() string       { return f.name }
func (f *fakeBackend) IsConfigured() bool { return f.configured }

func (f *fakeBackend) Generate(ctx context.Context, system, prompt string) (*GenerateResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	text := f.text
	if text == "" {
		text = "reply from " + f.name
	}
	return &GenerateResult{
		Text:       text,
		TokensUsed: 42,
		Model:      f.name + "-model",
		Provider:   f.name,
	}, nil
}

func TestGateway_Generate_AutoPrefersPrimary(t *testing.T) {
	primary := &fakeBackend{name: "gemini", configured: true}
	secondary := &fakeBackend{name: "openai", configured: true}
	gateway := NewGateway(primary, secondary)

	result, err := gateway.Generate(context.Background(), GenerateRequest{PreferredProvider: "auto"})

	require.NoError(t, err)
	assert.Equal(t, "gemini", result.Provider)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 0, secondary.calls)
}

func TestGateway_Generate_FallsBackOnPrimaryFailure(t *testing.T) {
	primary := &fakeBackend{name: "gemini", configured: true, err: errors.New("quota exceeded")}
	secondary := &fakeBackend{name: "openai", configured: true}
	gateway := NewGateway(primary, secondary)

	result, err := gateway.Generate(context.Background(), GenerateRequest{PreferredProvider: "auto"})

	require.NoError(t, err)
	assert.Equal(t, "openai", result.Provider)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, secondary.calls)
}

func TestGateway_Generate_BothFail(t *testing.T) {
	primary := &fakeBackend{name: "gemini", configured: true, err: errors.New("quota exceeded")}
	secondary := &fakeBackend{name: "openai", configured: true, err: errors.New("rate limited")}
	gateway := NewGateway(primary, secondary)

	_, err := gateway.Generate(context.Background(), GenerateRequest{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestGateway_Generate_RequestedProviderUsed(t *testing.T) {
	primary := &fakeBackend{name: "gemini", configured: true}
	secondary := &fakeBackend{name: "openai", configured: true}
	gateway := NewGateway(primary, secondary)

	result, err := gateway.Generate(context.Background(), GenerateRequest{PreferredProvider: "openai"})

	require.NoError(t, err)
	assert.Equal(t, "openai", result.Provider)
	assert.Equal(t, 0, primary.calls)
}

func TestGateway_Generate_RequestedButUnconfiguredDegrades(t *testing.T) {
	// A specifically requested provider without a credential silently
	// degrades to the other; the result records which one actually ran.
	primary := &fakeBackend{name: "gemini", configured: false}
	secondary := &fakeBackend{name: "openai", configured: true}
	gateway := NewGateway(primary, secondary)

	result, err := gateway.Generate(context.Background(), GenerateRequest{PreferredProvider: "gemini-1.5-pro"})

	require.NoError(t, err)
	assert.Equal(t, "openai", result.Provider)
	assert.Equal(t, 0, primary.calls)
}

func TestGateway_Generate_NoProviderConfigured(t *testing.T) {
	gateway := NewGateway(
		&fakeBackend{name: "gemini"},
		&fakeBackend{name: "openai"},
	)

	_, err := gateway.Generate(context.Background(), GenerateRequest{PreferredProvider: "auto"})

	assert.ErrorIs(t, err, ErrNoProviderConfigured)
}

func TestNormalizeProvider(t *testing.T) {
	tests := []struct {
		name     string
		hint     string
		expected string
	}{
		{"Empty hint", "", ""},
		{"Auto hint", "auto", ""},
		{"Exact gemini", "gemini", "gemini"},
		{"Gemini model name", "gemini-1.5-flash", "gemini"},
		{"Exact openai", "openai", "openai"},
		{"GPT alias", "gpt-4o", "openai"},
		{"ChatGPT alias", "chatgpt", "openai"},
		{"Unknown provider", "claude", ""},
		{"Mixed case", "Gemini-1.5-Pro", "gemini"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, normalizeProvider(tt.hint, "gemini", "openai"))
		})
	}
}

func TestCredentialLooksValid(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		expected bool
	}{
		{"Empty key", "", false},
		{"Placeholder key", "your-api-key-here", false},
		{"Changeme key", "changeme", false},
		{"Key with spaces", "abc def ghi jkl mno", false},
		{"Too short", "abc123", false},
		{"Plausible key", "AIzaSyD4e9f8g7h6j5k4l3m2n1", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, credentialLooksValid(tt.key))
		})
	}
}
