package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/zmartlabs/zmartd/internal/domain"
)

// Watcher bridges the signal bus to the notifier: it subscribes to the
// market and proposal channels and turns selected events into operator
// notifications. Delivery is best effort; a failed send never blocks the
// feed.
type Watcher struct {
	bus      domain.SignalBus
	notifier *Notifier
	logger   *slog.Logger
}

// NewWatcher creates a Watcher reading from bus and delivering through
// notifier.
func NewWatcher(bus domain.SignalBus, notifier *Notifier, logger *slog.Logger) *Watcher {
	return &Watcher{
		bus:      bus,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "notify_watcher")),
	}
}

// Run subscribes to the event channels and forwards events until ctx is
// cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	markets, err := w.bus.Subscribe(ctx, domain.ChannelMarkets)
	if err != nil {
		return fmt.Errorf("notify: subscribe %s: %w", domain.ChannelMarkets, err)
	}
	proposals, err := w.bus.Subscribe(ctx, domain.ChannelProposals)
	if err != nil {
		return fmt.Errorf("notify: subscribe %s: %w", domain.ChannelProposals, err)
	}

	w.logger.InfoContext(ctx, "watching event channels")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case payload, ok := <-markets:
			if !ok {
				return fmt.Errorf("notify: %s channel closed", domain.ChannelMarkets)
			}
			w.handle(ctx, payload)
		case payload, ok := <-proposals:
			if !ok {
				return fmt.Errorf("notify: %s channel closed", domain.ChannelProposals)
			}
			w.handle(ctx, payload)
		}
	}
}

func (w *Watcher) handle(ctx context.Context, payload []byte) {
	var ev domain.Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		w.logger.WarnContext(ctx, "dropping malformed event",
			slog.String("error", err.Error()),
		)
		return
	}

	title, message, ok := format(ev)
	if !ok {
		return
	}
	if err := w.notifier.Notify(ctx, ev.Type, title, message); err != nil {
		w.logger.WarnContext(ctx, "notification delivery failed",
			slog.String("event", ev.Type),
			slog.String("error", err.Error()),
		)
	}
}

// format renders an event as a notification. Events that are pure data-plane
// noise (individual bets, votes, claims) return ok=false and are skipped
// regardless of the configured event filter.
func format(ev domain.Event) (title, message string, ok bool) {
	switch ev.Type {
	case domain.EventMarketCreated:
		if ev.Market == nil {
			return "", "", false
		}
		return "Market opened",
			fmt.Sprintf("%s\nid=%s ends=%s", ev.Market.Question, ev.Market.MarketID, ev.Market.EndTime.Format("2006-01-02 15:04 MST")),
			true
	case domain.EventMarketResolved:
		if ev.Market == nil {
			return "", "", false
		}
		return "Market resolved",
			fmt.Sprintf("%s\nid=%s outcome=%s", ev.Market.Question, ev.Market.MarketID, ev.Market.Outcome),
			true
	case domain.EventMarketCancelled:
		if ev.Market == nil {
			return "", "", false
		}
		return "Market cancelled",
			fmt.Sprintf("%s\nid=%s stakes are refundable", ev.Market.Question, ev.Market.MarketID),
			true
	case domain.EventProposalApproved:
		if ev.Proposal == nil {
			return "", "", false
		}
		return "Proposal approved",
			fmt.Sprintf("#%d %s\nfor=%d against=%d", ev.Proposal.ProposalID, ev.Proposal.Question, ev.Proposal.VotesFor, ev.Proposal.VotesAgainst),
			true
	case domain.EventProposalRejected:
		if ev.Proposal == nil {
			return "", "", false
		}
		return "Proposal rejected",
			fmt.Sprintf("#%d %s\nfor=%d against=%d", ev.Proposal.ProposalID, ev.Proposal.Question, ev.Proposal.VotesFor, ev.Proposal.VotesAgainst),
			true
	case domain.EventProposalExecuted:
		if ev.Proposal == nil {
			return "", "", false
		}
		return "Proposal executed",
			fmt.Sprintf("#%d %s is now a live market", ev.Proposal.ProposalID, ev.Proposal.Question),
			true
	}
	return "", "", false
}
