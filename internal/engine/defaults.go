package engine

import (
	"github.com/mikey/mail-triage/internal/classifier"
	"github.com/mikey/mail-triage/internal/core"
)

// DefaultRules is the built-in rule set. The legal hold failsafe sits at
// the top with StopProcessing set, so it always wins over every
// category/confidence rule no matter what the classifier said.
func DefaultRules() []*Rule {
	return []*Rule{
		{
			ID:       "legal_hold",
			Name:     "Legal Hold Failsafe",
			Enabled:  true,
			Priority: 1000,
			Conditions: []Condition{
				{Type: ConditionKeywords, Operator: OpContains, Values: []string{
					"legal hold", "litigation hold", "subpoena", "court order", "preservation notice",
				}},
			},
			Actions: []core.Action{
				{Type: core.ActionRoute, Value: classifier.DeptLegal},
				{Type: core.ActionTag, Value: "legal_hold"},
				{Type: core.ActionPriority, Value: "high"},
				{Type: core.ActionNotify, Value: "legal"},
			},
			StopProcessing: true,
		},
		{
			ID:       "whitelist_override",
			Name:     "Whitelist Sender Override",
			Enabled:  true,
			Priority: 100,
			Conditions: []Condition{
				{Type: ConditionSender, Operator: OpIn, ListSource: ListWhitelist},
			},
			Actions: []core.Action{
				{Type: core.ActionPriority, Value: "high"},
				{Type: core.ActionStar, Value: "true"},
				{Type: core.ActionRoute, Value: "inbox"},
			},
		},
		{
			ID:       "blacklist_sender",
			Name:     "Block Blacklisted Senders",
			Enabled:  true,
			Priority: 90,
			Conditions: []Condition{
				{Type: ConditionSender, Operator: OpIn, ListSource: ListBlacklist},
			},
			Actions: []core.Action{
				{Type: core.ActionDelete, Value: "true"},
				{Type: core.ActionRoute, Value: classifier.DeptSpam},
			},
		},
		{
			ID:       "spam_high_confidence",
			Name:     "High Confidence Spam",
			Enabled:  true,
			Priority: 10,
			Conditions: []Condition{
				{Type: ConditionCategory, Operator: OpEquals, Value: classifier.CategorySpam},
				{Type: ConditionConfidence, Operator: OpGreaterThan, Number: 0.9},
			},
			Actions: []core.Action{
				{Type: core.ActionRoute, Value: classifier.DeptSpam},
				{Type: core.ActionDelete, Value: "true"},
				{Type: core.ActionBlockSender, Value: "true"},
			},
		},
		{
			ID:       "billing_emails",
			Name:     "Invoice and Billing",
			Enabled:  true,
			Priority: 9,
			Conditions: []Condition{
				{Type: ConditionKeywords, Operator: OpContains, Values: []string{
					"invoice", "billing", "payment", "receipt", "statement",
				}},
			},
			Actions: []core.Action{
				{Type: core.ActionTag, Value: "billing"},
				{Type: core.ActionPriority, Value: "medium"},
				{Type: core.ActionRoute, Value: classifier.DeptFinance},
			},
		},
		{
			ID:       "urgent_keywords",
			Name:     "Urgent Keywords",
			Enabled:  true,
			Priority: 8,
			Conditions: []Condition{
				{Type: ConditionKeywords, Operator: OpContains, Values: []string{
					"urgent", "asap", "immediate", "critical", "emergency", "outage",
				}},
			},
			Actions: []core.Action{
				{Type: core.ActionPriority, Value: "high"},
				{Type: core.ActionNotify, Value: "urgent"},
			},
		},
		{
			ID:       "meeting_emails",
			Name:     "Meeting and Calendar Emails",
			Enabled:  true,
			Priority: 7,
			Conditions: []Condition{
				{Type: ConditionKeywords, Operator: OpContains, Values: []string{
					"meeting", "calendar", "appointment", "conference", "call",
				}},
			},
			Actions: []core.Action{
				{Type: core.ActionCreateTask, Value: "true"},
				{Type: core.ActionStar, Value: "true"},
			},
		},
		{
			ID:       "updates_with_attachments",
			Name:     "Important Updates with Attachments",
			Enabled:  true,
			Priority: 6,
			Conditions: []Condition{
				{Type: ConditionCategory, Operator: OpEquals, Value: classifier.CategoryUpdates},
				{Type: ConditionHasAttachment, Operator: OpEquals, Value: "true"},
			},
			Actions: []core.Action{
				{Type: core.ActionStar, Value: "true"},
				{Type: core.ActionPriority, Value: "medium"},
			},
		},
		{
			ID:       "important_urgent",
			Name:     "Urgent Important Emails",
			Enabled:  true,
			Priority: 5,
			Conditions: []Condition{
				{Type: ConditionCategory, Operator: OpEquals, Value: classifier.CategoryImportant},
				{Type: ConditionConfidence, Operator: OpGreaterThan, Number: 0.85},
			},
			Actions: []core.Action{
				{Type: core.ActionPriority, Value: "high"},
				{Type: core.ActionStar, Value: "true"},
				{Type: core.ActionMarkUnread, Value: "true"},
				{Type: core.ActionNotify, Value: "urgent"},
			},
		},
		{
			ID:       "social_work_hours",
			Name:     "Social Emails During Work Hours",
			Enabled:  true,
			Priority: 4,
			Conditions: []Condition{
				{Type: ConditionCategory, Operator: OpEquals, Value: classifier.CategorySocial},
				{Type: ConditionTimeReceived, Operator: OpGreaterEqual, Value: "09:00"},
				{Type: ConditionTimeReceived, Operator: OpLessEqual, Value: "17:00"},
			},
			Actions: []core.Action{
				{Type: core.ActionSnooze, Value: "18:00"},
				{Type: core.ActionRoute, Value: "social"},
			},
		},
		{
			ID:       "promotion_archive",
			Name:     "Archive Promotions",
			Enabled:  true,
			Priority: 3,
			Conditions: []Condition{
				{Type: ConditionCategory, Operator: OpIn, Values: []string{
					classifier.CategoryPromotion, classifier.DeptSales,
				}},
				{Type: ConditionConfidence, Operator: OpGreaterThan, Number: 0.7},
			},
			Actions: []core.Action{
				{Type: core.ActionRoute, Value: "promotions"},
				{Type: core.ActionArchive, Value: "true"},
				{Type: core.ActionMarkRead, Value: "true"},
			},
		},
		{
			ID:       "low_confidence_review",
			Name:     "Low Confidence Manual Review",
			Enabled:  true,
			Priority: 1,
			Conditions: []Condition{
				{Type: ConditionConfidence, Operator: OpLessThan, Number: 0.5},
			},
			Actions: []core.Action{
				{Type: core.ActionTag, Value: "needs_review"},
				{Type: core.ActionMarkUnread, Value: "true"},
			},
		},
	}
}
