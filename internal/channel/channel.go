// Package channel implements the Channel Adapters (C10): chat, email, SMS,
// and web-push senders sharing one retry contract (3 attempts, 100ms *
// 2^(attempt-1), transient-only). The retry/backoff shape and the
// transient-vs-permanent split are grounded on the teacher's provider
// retry logic (network/5xx retried, 4xx auth not), generalized here via
// [[internal/apperr]]'s Transient helper instead of a provider-specific
// status check.
package channel

import (
	"context"
	"fmt"
	"time"

	"github.com/edgearb/edge/internal/apperr"
	"github.com/edgearb/edge/internal/types"
)

const maxAttempts = 3

// Sender delivers a rendered payload to one endpoint.
type Sender interface {
	Name() string
	Send(ctx context.Context, endpoint, payload string) error
}

// SendWithRetry applies the shared retry contract around any Sender.
func SendWithRetry(ctx context.Context, s Sender, endpoint, payload string) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := s.Send(ctx, endpoint, payload)
		if err == nil {
			return nil
		}
		lastErr = err
		if !apperr.Transient(err) {
			return err
		}
		if attempt < maxAttempts {
			delay := time.Duration(100*pow2(attempt-1)) * time.Millisecond
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return lastErr
}

func pow2(n int) int64 {
	out := int64(1)
	for i := 0; i < n; i++ {
		out *= 2
	}
	return out
}

// RenderChat builds the exact plaintext chat payload of §6.4, varying the
// header line by distribution strategy.
func RenderChat(opp *types.ArbitrageOpportunity, strategy types.DistributionStrategy) string {
	header := "🚀 New Arbitrage Opportunity!"
	switch strategy {
	case types.StrategyPriority:
		header = "🚀 Priority Arbitrage Opportunity!"
	case types.StrategyGeographic:
		header = "🌍 Regional Arbitrage Opportunity!"
	}

	return fmt.Sprintf(
		"%s\n\nPair: %s\nExchanges: %s ↔ %s\nProfit: %.2f%%\nConfidence: %.1f%%",
		header,
		opp.Pair,
		opp.LongVenue,
		opp.ShortVenue,
		opp.RateDifference*100,
		opp.Confidence*100,
	)
}

// ChatAdapter sends to a chat webhook/bot endpoint.
type ChatAdapter struct {
	post func(ctx context.Context, endpoint, payload string) error
}

// NewChatAdapter builds a ChatAdapter around a post function (HTTP client,
// bot API call, etc.), kept abstract so tests don't need network access.
func NewChatAdapter(post func(ctx context.Context, endpoint, payload string) error) *ChatAdapter {
	return &ChatAdapter{post: post}
}

func (a *ChatAdapter) Name() string { return "chat" }
func (a *ChatAdapter) Send(ctx context.Context, endpoint, payload string) error {
	return a.post(ctx, endpoint, payload)
}

// EmailAdapter sends via a transactional email API.
type EmailAdapter struct {
	send func(ctx context.Context, toAddress, body string) error
}

func NewEmailAdapter(send func(ctx context.Context, toAddress, body string) error) *EmailAdapter {
	return &EmailAdapter{send: send}
}

func (a *EmailAdapter) Name() string { return "email" }
func (a *EmailAdapter) Send(ctx context.Context, endpoint, payload string) error {
	return a.send(ctx, endpoint, payload)
}

// SMSAdapter sends via an SMS gateway.
type SMSAdapter struct {
	send func(ctx context.Context, toNumber, body string) error
}

func NewSMSAdapter(send func(ctx context.Context, toNumber, body string) error) *SMSAdapter {
	return &SMSAdapter{send: send}
}

func (a *SMSAdapter) Name() string { return "sms" }
func (a *SMSAdapter) Send(ctx context.Context, endpoint, payload string) error {
	return a.send(ctx, endpoint, payload)
}

// WebPushAdapter sends a web-push notification to a subscription endpoint.
type WebPushAdapter struct {
	push func(ctx context.Context, subscription, body string) error
}

func NewWebPushAdapter(push func(ctx context.Context, subscription, body string) error) *WebPushAdapter {
	return &WebPushAdapter{push: push}
}

func (a *WebPushAdapter) Name() string { return "web-push" }
func (a *WebPushAdapter) Send(ctx context.Context, endpoint, payload string) error {
	return a.push(ctx, endpoint, payload)
}

// ResolveEndpoint picks the delivery endpoint for a channel from a user's
// channel endpoints.
func ResolveEndpoint(channelName string, endpoints types.ChannelEndpoints) string {
	switch channelName {
	case "chat":
		return endpoints.ChatID
	case "email":
		return endpoints.Email
	case "sms":
		return endpoints.Phone
	case "web-push":
		return endpoints.WebPushSubscription
	default:
		return ""
	}
}
