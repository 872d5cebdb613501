package engine

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/mikey/mail-triage/internal/core"
)

// Condition types. Each names the message or classification attribute the
// condition inspects.
const (
	ConditionCategory      = "category"
	ConditionConfidence    = "confidence"
	ConditionSender        = "sender"
	ConditionSubject       = "subject"
	ConditionBody          = "body"
	ConditionKeywords      = "keywords"
	ConditionTimeReceived  = "time_received"
	ConditionDayOfWeek     = "day_of_week"
	ConditionHasAttachment = "has_attachment"
	ConditionDomain        = "domain"
	ConditionProbability   = "probability"
)

// Comparison operators.
const (
	OpEquals       = "equals"
	OpNotEquals    = "not_equals"
	OpContains     = "contains"
	OpNotContains  = "not_contains"
	OpStartsWith   = "starts_with"
	OpEndsWith     = "ends_with"
	OpGreaterThan  = "greater_than"
	OpLessThan     = "less_than"
	OpGreaterEqual = "greater_equal"
	OpLessEqual    = "less_equal"
	OpRegex        = "regex"
	OpIn           = "in"
	OpNotIn        = "not_in"
)

// List sources for conditions whose value set is maintained outside the
// rule, refreshed immediately before each evaluation.
const (
	ListWhitelist = "whitelist"
	ListBlacklist = "blacklist"
)

// Condition is one predicate of a rule. String conditions compare against
// Value (or Values for in/not_in and keywords), numeric conditions against
// Number. Category selects which probability a probability condition reads.
// ListSource, when set, replaces Values with the engine's current sender
// whitelist or blacklist at evaluation time.
type Condition struct {
	Type       string   `json:"type"`
	Operator   string   `json:"operator"`
	Value      string   `json:"value,omitempty"`
	Values     []string `json:"values,omitempty"`
	Number     float64  `json:"number,omitempty"`
	Category   string   `json:"category,omitempty"`
	ListSource string   `json:"list_source,omitempty"`
}

// ActionSource produces a rule's actions at match time, so computed sources
// can inspect the classification that triggered the rule.
type ActionSource func(result *core.ClassificationResult) []core.Action

// Rule is one entry of the routing rule set. Higher Priority evaluates
// first; StopProcessing halts evaluation after this rule's actions are
// materialized, which is how a failsafe rule overrides everything below it.
// Compute, when set, takes precedence over the static Actions list.
type Rule struct {
	ID             string        `json:"id"`
	Name           string        `json:"name"`
	Enabled        bool          `json:"enabled"`
	Priority       int           `json:"priority"`
	Conditions     []Condition   `json:"conditions"`
	Actions        []core.Action `json:"actions,omitempty"`
	Compute        ActionSource  `json:"-"`
	StopProcessing bool          `json:"stop_processing,omitempty"`
}

// materialize resolves the rule's actions for this classification.
func (r *Rule) materialize(result *core.ClassificationResult) []core.Action {
	if r.Compute != nil {
		return r.Compute(result)
	}
	return append([]core.Action(nil), r.Actions...)
}

// evaluate reports whether the condition holds for the message and
// classification. An error means the condition could not be evaluated
// (malformed regex, unknown type or operator); the caller treats that as
// non-matching for the enclosing rule only.
func (c *Condition) evaluate(msg *core.Message, result *core.ClassificationResult) (bool, error) {
	switch c.Type {
	case ConditionCategory:
		return c.compareString(result.Category, c.Value, c.Values)

	case ConditionConfidence:
		return c.compareNumber(result.Confidence)

	case ConditionProbability:
		return c.compareNumber(result.Probabilities[c.Category])

	case ConditionSender:
		return c.compareString(strings.ToLower(msg.Sender), strings.ToLower(c.Value), lowerAll(c.Values))

	case ConditionSubject:
		return c.compareString(strings.ToLower(msg.Subject), strings.ToLower(c.Value), lowerAll(c.Values))

	case ConditionBody:
		return c.compareString(strings.ToLower(msg.Body), strings.ToLower(c.Value), lowerAll(c.Values))

	case ConditionDomain:
		return c.compareString(msg.Domain(), strings.ToLower(c.Value), lowerAll(c.Values))

	case ConditionKeywords:
		text := strings.ToLower(msg.Subject + " " + msg.Body)
		keywords := c.Values
		if len(keywords) == 0 && c.Value != "" {
			keywords = []string{c.Value}
		}
		found := false
		for _, kw := range keywords {
			if strings.Contains(text, strings.ToLower(kw)) {
				found = true
				break
			}
		}
		if c.Operator == OpNotContains {
			return !found, nil
		}
		return found, nil

	case ConditionTimeReceived:
		received := msg.ReceivedAt
		if received.IsZero() {
			received = time.Now()
		}
		// Zero-padded HH:MM compares correctly as a string.
		return c.compareString(received.Format("15:04"), c.Value, c.Values)

	case ConditionDayOfWeek:
		received := msg.ReceivedAt
		if received.IsZero() {
			received = time.Now()
		}
		day := strings.ToLower(received.Weekday().String())
		return c.compareString(day, strings.ToLower(c.Value), lowerAll(c.Values))

	case ConditionHasAttachment:
		want := strings.EqualFold(c.Value, "true")
		if c.Operator == OpNotEquals {
			return msg.HasAttachment() != want, nil
		}
		return msg.HasAttachment() == want, nil
	}

	return false, fmt.Errorf("unknown condition type %q", c.Type)
}

func (c *Condition) compareString(actual, value string, values []string) (bool, error) {
	switch c.Operator {
	case OpEquals:
		return actual == value, nil
	case OpNotEquals:
		return actual != value, nil
	case OpContains:
		return strings.Contains(actual, value), nil
	case OpNotContains:
		return !strings.Contains(actual, value), nil
	case OpStartsWith:
		return strings.HasPrefix(actual, value), nil
	case OpEndsWith:
		return strings.HasSuffix(actual, value), nil
	case OpRegex:
		re, err := regexp.Compile("(?i)" + c.Value)
		if err != nil {
			return false, fmt.Errorf("invalid pattern %q: %w", c.Value, err)
		}
		return re.MatchString(actual), nil
	case OpIn:
		return containsString(values, actual), nil
	case OpNotIn:
		return !containsString(values, actual), nil
	case OpGreaterThan:
		return actual > value, nil
	case OpLessThan:
		return actual < value, nil
	case OpGreaterEqual:
		return actual >= value, nil
	case OpLessEqual:
		return actual <= value, nil
	}
	return false, fmt.Errorf("unknown operator %q", c.Operator)
}

func (c *Condition) compareNumber(actual float64) (bool, error) {
	switch c.Operator {
	case OpEquals:
		return actual == c.Number, nil
	case OpNotEquals:
		return actual != c.Number, nil
	case OpGreaterThan:
		return actual > c.Number, nil
	case OpLessThan:
		return actual < c.Number, nil
	case OpGreaterEqual:
		return actual >= c.Number, nil
	case OpLessEqual:
		return actual <= c.Number, nil
	}
	return false, fmt.Errorf("operator %q not usable on numbers", c.Operator)
}

func lowerAll(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
