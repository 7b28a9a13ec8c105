package pipeline

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/edgearb/edge/internal/distribution"
	"github.com/edgearb/edge/internal/queue"
	"github.com/edgearb/edge/internal/types"
	"github.com/edgearb/edge/internal/userstore"
)

// Dispatcher turns a detected opportunity into recipient selection (C9) and
// hands the resulting message to the Queue Manager (C8) for eventual
// delivery through the Channel Adapters (C10). The user directory is an
// external collaborator (§6.2); with none wired, broadcast degrades to a
// queue-only fan-out that a delivery worker can still drain.
type Dispatcher struct {
	logger   zerolog.Logger
	selector *distribution.Engine
	queue    *queue.Manager
	users    userstore.Store
	strategy types.DistributionStrategy
}

// NewDispatcher builds a Dispatcher. users may be nil when no external
// directory is wired, in which case messages are queued unaddressed.
func NewDispatcher(logger zerolog.Logger, selector *distribution.Engine, queueManager *queue.Manager, users userstore.Store, strategy types.DistributionStrategy) *Dispatcher {
	return &Dispatcher{
		logger:   logger.With().Str("component", "dispatcher").Logger(),
		selector: selector,
		queue:    queueManager,
		users:    users,
		strategy: strategy,
	}
}

// Distribute implements pipeline.OpportunitySink.
func (d *Dispatcher) Distribute(ctx context.Context, opp *types.ArbitrageOpportunity) {
	var recipients []distribution.Recipient
	if d.users != nil {
		profiles, err := d.users.ListUsers(ctx, userstore.UserFilter{})
		if err != nil {
			d.logger.Warn().Err(err).Msg("user directory lookup failed, falling back to unaddressed dispatch")
		} else {
			recipients = profilesToRecipients(profiles)
		}
	}

	selected := recipients
	if d.selector != nil && len(recipients) > 0 {
		selected = d.selector.Select(ctx, d.strategy, recipients, opp.DetectedAt.UTC().Hour())
	}

	msg := distribution.BuildMessage(opp, selected, d.strategy)
	d.enqueue(msg)
}

func (d *Dispatcher) enqueue(msg types.DistributionMessage) {
	if d.queue == nil {
		return
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		d.logger.Error().Err(err).Msg("failed to marshal distribution message")
		return
	}

	queueType := types.QueueStandard
	if msg.Priority == types.PriorityCritical || msg.Priority == types.PriorityHigh {
		queueType = types.QueueHighPriority
	}

	if _, err := d.queue.Enqueue(queueType, payload, msg.Priority, msg.MessageID, msg.MessageID); err != nil {
		d.logger.Error().Err(err).Str("message_id", msg.MessageID).Msg("failed to enqueue distribution message")
	}
}

func profilesToRecipients(profiles []*types.UserProfile) []distribution.Recipient {
	out := make([]distribution.Recipient, 0, len(profiles))
	for _, p := range profiles {
		if p == nil {
			continue
		}
		out = append(out, distribution.Recipient{
			UserID:           p.UserID,
			Tier:             p.Tier,
			ActivityScore:    p.ActivityScore,
			TimezoneOffset:   p.TimezoneOffset,
			TradingHourStart: p.TradingHourStart,
			TradingHourEnd:   p.TradingHourEnd,
		})
	}
	return out
}
