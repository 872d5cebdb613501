package engine

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/mikey/mail-triage/internal/core"
	"go.uber.org/zap"
)

// ErrRuleNotFound is returned by rule CRUD operations for an unknown id.
var ErrRuleNotFound = errors.New("rule not found")

// Engine evaluates the mutable routing rule set against a message and its
// classification. Evaluation takes a snapshot under a read lock, so rule
// CRUD and list edits can happen concurrently and become visible to the
// next evaluation without a restart.
type Engine struct {
	mu        sync.RWMutex
	rules     []*Rule // insertion order
	whitelist []string
	blacklist []string
	logger    *zap.Logger
	customSeq int
}

// NewEngine creates an engine preloaded with the default rule set.
func NewEngine(logger *zap.Logger) *Engine {
	return &Engine{
		rules:  DefaultRules(),
		logger: logger,
	}
}

// NewEmptyEngine creates an engine with no rules.
func NewEmptyEngine(logger *zap.Logger) *Engine {
	return &Engine{logger: logger}
}

// Evaluate runs the message through the rule set. Enabled rules are tried
// in priority order (descending, insertion order breaks ties); within a
// rule, conditions are AND-ed. A condition that cannot be evaluated makes
// only its own rule non-matching. A matching rule with StopProcessing set
// halts the pass, so nothing below it contributes actions.
func (e *Engine) Evaluate(msg *core.Message, result *core.ClassificationResult) *core.Evaluation {
	e.mu.RLock()
	rules := make([]*Rule, 0, len(e.rules))
	for _, r := range e.rules {
		if r.Enabled {
			rules = append(rules, r)
		}
	}
	whitelist := append([]string(nil), e.whitelist...)
	blacklist := append([]string(nil), e.blacklist...)
	e.mu.RUnlock()

	sort.SliceStable(rules, func(i, j int) bool {
		return rules[i].Priority > rules[j].Priority
	})

	eval := &core.Evaluation{}
	for _, rule := range rules {
		if !e.matches(rule, msg, result, whitelist, blacklist) {
			continue
		}

		actions := rule.materialize(result)
		eval.Matched = append(eval.Matched, core.MatchedRule{
			RuleID:   rule.ID,
			RuleName: rule.Name,
			Priority: rule.Priority,
			Stop:     rule.StopProcessing,
			Actions:  actions,
		})
		eval.Actions = append(eval.Actions, actions...)

		if rule.StopProcessing {
			eval.Stopped = true
			eval.StoppedBy = rule.ID
			e.logger.Debug("Rule halted evaluation",
				zap.String("rule_id", rule.ID),
				zap.Int("priority", rule.Priority))
			break
		}
	}

	return eval
}

// matches evaluates all of a rule's conditions with AND semantics.
func (e *Engine) matches(rule *Rule, msg *core.Message, result *core.ClassificationResult, whitelist, blacklist []string) bool {
	if len(rule.Conditions) == 0 {
		return false
	}

	for i := range rule.Conditions {
		cond := rule.Conditions[i]
		switch cond.ListSource {
		case ListWhitelist:
			cond.Values = whitelist
		case ListBlacklist:
			cond.Values = blacklist
		}

		ok, err := cond.evaluate(msg, result)
		if err != nil {
			e.logger.Warn("Condition evaluation failed, treating rule as non-matching",
				zap.String("rule_id", rule.ID),
				zap.String("condition_type", cond.Type),
				zap.Error(err))
			return false
		}
		if !ok {
			return false
		}
	}

	return true
}

// AddRule appends a rule. Rules without an id get a generated one.
func (e *Engine) AddRule(rule *Rule) string {
	e.mu.Lock()
	defer e.mu.Unlock()

	if rule.ID == "" {
		e.customSeq++
		rule.ID = fmt.Sprintf("custom_%d", e.customSeq)
	}
	e.rules = append(e.rules, rule)
	e.logger.Info("Added rule",
		zap.String("rule_id", rule.ID),
		zap.String("name", rule.Name),
		zap.Int("priority", rule.Priority))
	return rule.ID
}

// UpdateRule replaces the rule with the given id, keeping its position in
// insertion order so tie-breaking stays stable.
func (e *Engine) UpdateRule(id string, rule *Rule) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i, r := range e.rules {
		if r.ID == id {
			rule.ID = id
			e.rules[i] = rule
			e.logger.Info("Updated rule", zap.String("rule_id", id))
			return nil
		}
	}
	return ErrRuleNotFound
}

// DeleteRule removes the rule with the given id.
func (e *Engine) DeleteRule(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i, r := range e.rules {
		if r.ID == id {
			e.rules = append(e.rules[:i], e.rules[i+1:]...)
			e.logger.Info("Deleted rule", zap.String("rule_id", id))
			return nil
		}
	}
	return ErrRuleNotFound
}

// GetRule returns the rule with the given id.
func (e *Engine) GetRule(id string) (*Rule, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, r := range e.rules {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, ErrRuleNotFound
}

// Rules returns the rule set in insertion order.
func (e *Engine) Rules() []*Rule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]*Rule(nil), e.rules...)
}

// SetWhitelist replaces the sender whitelist consulted by list-sourced
// conditions.
func (e *Engine) SetWhitelist(senders []string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.whitelist = lowerAll(senders)
}

// SetBlacklist replaces the sender blacklist consulted by list-sourced
// conditions.
func (e *Engine) SetBlacklist(senders []string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.blacklist = lowerAll(senders)
}
