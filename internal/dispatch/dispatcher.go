package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/mikey/mail-triage/internal/core"
	"go.uber.org/zap"
)

// Dispatcher executes routing actions through the capability sinks. Each
// action is applied independently: a failure is recorded on that action's
// result and never aborts its siblings.
type Dispatcher struct {
	mailbox  Mailbox
	notifier Notifier
	tasks    TaskTracker
	senders  SenderList
	logger   *zap.Logger
}

// NewDispatcher creates a dispatcher over the given sinks.
func NewDispatcher(mailbox Mailbox, notifier Notifier, tasks TaskTracker, senders SenderList, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		mailbox:  mailbox,
		notifier: notifier,
		tasks:    tasks,
		senders:  senders,
		logger:   logger,
	}
}

// fallbackEntry is the minimum guaranteed action set for a category.
type fallbackEntry struct {
	route    string
	tag      string
	priority string
}

var fallbackActions = map[string]fallbackEntry{
	"spam":      {route: "spam", tag: "spam", priority: "low"},
	"important": {route: "inbox", tag: "important", priority: "high"},
	"promotion": {route: "promotions", tag: "promotion", priority: "medium"},
	"social":    {route: "social", tag: "social", priority: "low"},
	"updates":   {route: "updates", tag: "update", priority: "medium"},
}

// Dispatch applies the actions to the message. When the rule engine
// produced none, the static per-category fallback supplies a route, a tag
// and a priority so every classified message still gets a minimum action
// set.
func (d *Dispatcher) Dispatch(ctx context.Context, msg *core.Message, result *core.ClassificationResult, actions []core.Action) []core.ActionResult {
	if len(actions) == 0 {
		actions = d.fallback(result)
	}

	results := make([]core.ActionResult, 0, len(actions))
	for _, action := range actions {
		res := core.ActionResult{
			Action:    action,
			Status:    core.ActionCompleted,
			Timestamp: time.Now(),
		}
		if err := d.apply(ctx, msg, action); err != nil {
			res.Status = core.ActionFailed
			res.Error = err.Error()
			d.logger.Warn("Action failed",
				zap.String("action", string(action.Type)),
				zap.String("value", action.Value),
				zap.Error(err))
		}
		results = append(results, res)
	}

	d.logger.Info("Actions dispatched",
		zap.String("external_id", msg.ExternalID),
		zap.Int("count", len(results)))

	return results
}

// fallback builds the guaranteed action set for a classification that
// matched no rule.
func (d *Dispatcher) fallback(result *core.ClassificationResult) []core.Action {
	entry, ok := fallbackActions[result.Category]
	if !ok {
		if result.Department != "" {
			entry = fallbackEntry{route: result.Department, tag: result.Category, priority: "medium"}
		} else {
			entry = fallbackEntry{route: "inbox", tag: "unclassified", priority: "medium"}
		}
	}

	actions := []core.Action{
		{Type: core.ActionRoute, Value: entry.route},
		{Type: core.ActionTag, Value: entry.tag},
		{Type: core.ActionPriority, Value: entry.priority},
	}

	switch {
	case result.Category == "spam" && result.Confidence > 0.8:
		actions = append(actions, core.Action{Type: core.ActionMarkSpam, Value: "true"})
	case result.Category == "important" && result.Confidence > 0.7:
		actions = append(actions, core.Action{Type: core.ActionPriority, Value: "high"})
	}

	return actions
}

// apply routes one action to its capability sink.
func (d *Dispatcher) apply(ctx context.Context, msg *core.Message, action core.Action) error {
	switch action.Type {
	case core.ActionRoute:
		return d.mailbox.Route(ctx, msg, action.Value)
	case core.ActionTag:
		return d.mailbox.Tag(ctx, msg, action.Value)
	case core.ActionPriority:
		return d.mailbox.SetPriority(ctx, msg, action.Value)
	case core.ActionForward:
		return d.mailbox.Forward(ctx, msg, action.Value)
	case core.ActionArchive:
		return d.mailbox.Archive(ctx, msg)
	case core.ActionDelete:
		return d.mailbox.Delete(ctx, msg)
	case core.ActionMarkRead:
		return d.mailbox.MarkRead(ctx, msg, true)
	case core.ActionMarkUnread:
		return d.mailbox.MarkRead(ctx, msg, false)
	case core.ActionStar:
		return d.mailbox.Star(ctx, msg)
	case core.ActionSnooze:
		return d.mailbox.Snooze(ctx, msg, action.Value)
	case core.ActionMarkSpam:
		return d.mailbox.MarkSpam(ctx, msg)
	case core.ActionCreateTask:
		return d.tasks.CreateTask(ctx, msg)
	case core.ActionNotify:
		return d.notifier.Notify(ctx, msg, action.Value)
	case core.ActionBlockSender:
		return d.senders.Block(ctx, msg.Sender)
	case core.ActionWhitelistSender:
		return d.senders.Whitelist(ctx, msg.Sender)
	case core.ActionCustom:
		d.logger.Info("Custom action requested",
			zap.String("value", action.Value),
			zap.String("external_id", msg.ExternalID))
		return nil
	}
	return fmt.Errorf("unknown action type %q", action.Type)
}
