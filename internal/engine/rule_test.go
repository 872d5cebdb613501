package engine

import (
	"testing"
	"time"

	"github.com/mikey/mail-triage/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func evalCondition(t *testing.T, c Condition, msg *core.Message, result *core.ClassificationResult) bool {
	t.Helper()
	ok, err := c.evaluate(msg, result)
	require.NoError(t, err)
	return ok
}

func TestCondition_StringOperators(t *testing.T) {
	msg := &core.Message{
		Subject: "Invoice #42 overdue",
		Sender:  "Billing@Vendor.Example.COM",
	}
	result := &core.ClassificationResult{Category: "important"}

	cases := []struct {
		name string
		cond Condition
		want bool
	}{
		{"equals", Condition{Type: ConditionCategory, Operator: OpEquals, Value: "important"}, true},
		{"not_equals", Condition{Type: ConditionCategory, Operator: OpNotEquals, Value: "spam"}, true},
		{"contains", Condition{Type: ConditionSubject, Operator: OpContains, Value: "invoice"}, true},
		{"not_contains", Condition{Type: ConditionSubject, Operator: OpNotContains, Value: "receipt"}, true},
		{"starts_with", Condition{Type: ConditionSubject, Operator: OpStartsWith, Value: "invoice"}, true},
		{"ends_with", Condition{Type: ConditionSubject, Operator: OpEndsWith, Value: "overdue"}, true},
		{"regex", Condition{Type: ConditionSubject, Operator: OpRegex, Value: `invoice #\d+`}, true},
		{"in", Condition{Type: ConditionCategory, Operator: OpIn, Values: []string{"spam", "important"}}, true},
		{"not_in", Condition{Type: ConditionCategory, Operator: OpNotIn, Values: []string{"spam"}}, true},
		{"sender case folded", Condition{Type: ConditionSender, Operator: OpEquals, Value: "billing@vendor.example.com"}, true},
		{"no match", Condition{Type: ConditionSubject, Operator: OpContains, Value: "shipment"}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, evalCondition(t, tc.cond, msg, result))
		})
	}
}

func TestCondition_NumericOperators(t *testing.T) {
	msg := &core.Message{Subject: "x"}
	result := &core.ClassificationResult{
		Category:      "spam",
		Confidence:    0.75,
		Probabilities: map[string]float64{"spam": 0.75, "updates": 0.25},
	}

	assert.True(t, evalCondition(t, Condition{Type: ConditionConfidence, Operator: OpGreaterThan, Number: 0.7}, msg, result))
	assert.False(t, evalCondition(t, Condition{Type: ConditionConfidence, Operator: OpGreaterThan, Number: 0.75}, msg, result))
	assert.True(t, evalCondition(t, Condition{Type: ConditionConfidence, Operator: OpGreaterEqual, Number: 0.75}, msg, result))
	assert.True(t, evalCondition(t, Condition{Type: ConditionConfidence, Operator: OpLessThan, Number: 0.8}, msg, result))
	assert.True(t, evalCondition(t, Condition{Type: ConditionConfidence, Operator: OpLessEqual, Number: 0.75}, msg, result))
	assert.True(t, evalCondition(t, Condition{Type: ConditionConfidence, Operator: OpEquals, Number: 0.75}, msg, result))
	assert.True(t, evalCondition(t, Condition{Type: ConditionConfidence, Operator: OpNotEquals, Number: 0.5}, msg, result))

	// Probability conditions read a specific class, not the winner
	assert.True(t, evalCondition(t, Condition{Type: ConditionProbability, Category: "updates", Operator: OpLessThan, Number: 0.5}, msg, result))
	assert.False(t, evalCondition(t, Condition{Type: ConditionProbability, Category: "missing", Operator: OpGreaterThan, Number: 0}, msg, result))
}

func TestCondition_Keywords(t *testing.T) {
	msg := &core.Message{
		Subject: "Server maintenance window",
		Body:    "Expect a brief OUTAGE tonight",
	}
	result := &core.ClassificationResult{}

	// Any-of semantics over subject and body, case insensitive
	assert.True(t, evalCondition(t, Condition{
		Type: ConditionKeywords, Operator: OpContains, Values: []string{"urgent", "outage"},
	}, msg, result))

	assert.False(t, evalCondition(t, Condition{
		Type: ConditionKeywords, Operator: OpContains, Values: []string{"urgent", "critical"},
	}, msg, result))

	// not_contains inverts the whole match
	assert.True(t, evalCondition(t, Condition{
		Type: ConditionKeywords, Operator: OpNotContains, Values: []string{"invoice"},
	}, msg, result))

	// A single Value works like a one-element Values list
	assert.True(t, evalCondition(t, Condition{
		Type: ConditionKeywords, Operator: OpContains, Value: "maintenance",
	}, msg, result))
}

func TestCondition_TimeReceived(t *testing.T) {
	msg := &core.Message{
		Subject:    "x",
		ReceivedAt: time.Date(2025, 6, 2, 14, 5, 0, 0, time.UTC),
	}
	result := &core.ClassificationResult{}

	assert.True(t, evalCondition(t, Condition{Type: ConditionTimeReceived, Operator: OpGreaterEqual, Value: "09:00"}, msg, result))
	assert.True(t, evalCondition(t, Condition{Type: ConditionTimeReceived, Operator: OpLessEqual, Value: "17:00"}, msg, result))
	assert.False(t, evalCondition(t, Condition{Type: ConditionTimeReceived, Operator: OpLessThan, Value: "14:05"}, msg, result))
	assert.True(t, evalCondition(t, Condition{Type: ConditionTimeReceived, Operator: OpEquals, Value: "14:05"}, msg, result))
}

func TestCondition_DayOfWeek(t *testing.T) {
	msg := &core.Message{
		Subject:    "x",
		ReceivedAt: time.Date(2025, 6, 7, 10, 0, 0, 0, time.UTC), // a Saturday
	}
	result := &core.ClassificationResult{}

	assert.True(t, evalCondition(t, Condition{Type: ConditionDayOfWeek, Operator: OpEquals, Value: "Saturday"}, msg, result))
	assert.True(t, evalCondition(t, Condition{Type: ConditionDayOfWeek, Operator: OpIn, Values: []string{"saturday", "sunday"}}, msg, result))
	assert.False(t, evalCondition(t, Condition{Type: ConditionDayOfWeek, Operator: OpEquals, Value: "monday"}, msg, result))
}

func TestCondition_HasAttachment(t *testing.T) {
	with := &core.Message{Subject: "x", Headers: map[string]string{"has_attachment": "true"}}
	without := &core.Message{Subject: "x"}
	result := &core.ClassificationResult{}

	assert.True(t, evalCondition(t, Condition{Type: ConditionHasAttachment, Operator: OpEquals, Value: "true"}, with, result))
	assert.False(t, evalCondition(t, Condition{Type: ConditionHasAttachment, Operator: OpEquals, Value: "true"}, without, result))
	assert.True(t, evalCondition(t, Condition{Type: ConditionHasAttachment, Operator: OpNotEquals, Value: "true"}, without, result))
}

func TestCondition_Domain(t *testing.T) {
	msg := &core.Message{Subject: "x", Sender: "alice@Corp.Example.COM"}
	result := &core.ClassificationResult{}

	assert.True(t, evalCondition(t, Condition{Type: ConditionDomain, Operator: OpEquals, Value: "corp.example.com"}, msg, result))
	assert.True(t, evalCondition(t, Condition{Type: ConditionDomain, Operator: OpEndsWith, Value: "example.com"}, msg, result))

	// Not an address at all
	noAddr := &core.Message{Subject: "x", Sender: "MAILER-DAEMON"}
	assert.False(t, evalCondition(t, Condition{Type: ConditionDomain, Operator: OpEquals, Value: "example.com"}, noAddr, result))
}

func TestCondition_Errors(t *testing.T) {
	msg := &core.Message{Subject: "x"}
	result := &core.ClassificationResult{}

	_, err := (&Condition{Type: "telepathy", Operator: OpEquals, Value: "x"}).evaluate(msg, result)
	assert.Error(t, err)

	_, err = (&Condition{Type: ConditionSubject, Operator: "sorta_matches", Value: "x"}).evaluate(msg, result)
	assert.Error(t, err)

	_, err = (&Condition{Type: ConditionSubject, Operator: OpRegex, Value: "[unclosed"}).evaluate(msg, result)
	assert.Error(t, err)

	_, err = (&Condition{Type: ConditionConfidence, Operator: OpRegex, Number: 0.5}).evaluate(msg, result)
	assert.Error(t, err)
}
