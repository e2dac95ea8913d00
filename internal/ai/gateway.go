package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/reviewloop/reviewloop/internal/models"
	"github.com/sirupsen/logrus"
)

// ErrNoProviderConfigured is returned when generation is requested and no
// backend has a usable credential. Fatal to the caller, never retried here.
var ErrNoProviderConfigured = errors.New("no AI provider configured")

// Tones accepted by generation requests.
const (
	ToneFriendly     = "friendly"
	ToneProfessional = "professional"
	ToneEmpathetic   = "empathetic"
	ToneConcise      = "concise"
	ToneFormal       = "formal"
)

// GenerateRequest describes one reply-generation call.
type GenerateRequest struct {
	ReviewText         string
	ReviewerName       string
	Rating             int
	Sentiment          models.Sentiment
	BusinessName       string
	Tone               string
	CustomInstructions string
	// PreferredProvider is "auto" or a provider name; matched by prefix so
	// e.g. "gemini-1.5-flash" selects the Gemini backend.
	PreferredProvider string
}

// GenerateResult carries the generated text plus token accounting. The
// caller persists/aggregates usage; the gateway keeps no state.
type GenerateResult struct {
	Text       string
	TokensUsed int
	Model      string
	Provider   string
}

// Backend is one interchangeable AI text-generation backend.
type Backend interface {
	Name() string
	// IsConfigured reports whether the backend's credential is present and
	// well-formed. Evaluated per call, never cached, so credential changes
	// take effect without a restart.
	IsConfigured() bool
	Generate(ctx context.Context, system, prompt string) (*GenerateResult, error)
}

// Gateway selects among configured backends and falls back on failure.
// The primary backend is the cheaper one and is preferred under "auto".
type Gateway struct {
	primary   Backend
	secondary Backend
}

// NewGateway creates a gateway over a primary (preferred, lower-cost) and a
// secondary backend.
func NewGateway(primary, secondary Backend) *Gateway {
	return &Gateway{primary: primary, secondary: secondary}
}

// Generate produces a reply for the request, transparently choosing a
// backend. If the primary fails transiently the secondary is tried once;
// if both fail the last error propagates.
func (g *Gateway) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	first, second := g.pick(req.PreferredProvider)
	if first == nil {
		return nil, ErrNoProviderConfigured
	}

	system, prompt := buildReplyPrompt(req)

	result, err := first.Generate(ctx, system, prompt)
	if err == nil {
		return result, nil
	}

	if second == nil {
		return nil, fmt.Errorf("%s generation failed: %w", first.Name(), err)
	}

	logrus.Warnf("Provider %s failed, falling back to %s: %v", first.Name(), second.Name(), err)
	result, ferr := second.Generate(ctx, system, prompt)
	if ferr != nil {
		return nil, fmt.Errorf("%s fallback failed after %s error (%v): %w", second.Name(), first.Name(), err, ferr)
	}
	return result, nil
}

// pick resolves the provider hint into a (first, fallback) pair of
// configured backends. A specifically requested but unconfigured provider
// silently degrades to the other; the result records which one actually ran.
func (g *Gateway) pick(preferred string) (Backend, Backend) {
	requested := normalizeProvider(preferred, g.primary.Name(), g.secondary.Name())

	primaryOK := g.primary.IsConfigured()
	secondaryOK := g.secondary.IsConfigured()

	switch {
	case requested == g.primary.Name() && primaryOK:
		return g.primary, fallbackOf(g.secondary, secondaryOK)
	case requested == g.secondary.Name() && secondaryOK:
		return g.secondary, fallbackOf(g.primary, primaryOK)
	case primaryOK && secondaryOK:
		return g.primary, g.secondary
	case primaryOK:
		return g.primary, nil
	case secondaryOK:
		return g.secondary, nil
	}
	return nil, nil
}

func fallbackOf(b Backend, configured bool) Backend {
	if configured {
		return b
	}
	return nil
}

// normalizeProvider maps a free-form provider hint onto a backend name by
// prefix, so "gemini-1.5-pro" and "gpt-4o" both resolve sensibly. Anything
// unrecognized (including "auto" and "") means no specific preference.
func normalizeProvider(hint, primaryName, secondaryName string) string {
	h := strings.ToLower(strings.TrimSpace(hint))
	if h == "" || h == "auto" {
		return ""
	}
	for _, name := range []string{primaryName, secondaryName} {
		if strings.HasPrefix(h, name) {
			return name
		}
	}
	// Common aliases for the OpenAI backend.
	if strings.HasPrefix(h, "gpt") || strings.HasPrefix(h, "chatgpt") {
		if primaryName == "openai" || secondaryName == "openai" {
			return "openai"
		}
	}
	return ""
}
