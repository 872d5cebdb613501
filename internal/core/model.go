package core

import (
	"strings"
	"time"
)

// Message represents an inbound message handed to the triage pipeline.
// Messages pulled from a mail source carry the provider's id in ExternalID;
// API-submitted messages may leave it empty and get a synthetic id at
// ingestion. A persisted message is immutable, only its classification
// record is updated afterwards.
type Message struct {
	ExternalID string
	Subject    string
	Body       string
	Sender     string
	Recipient  string
	ReceivedAt time.Time
	Headers    map[string]string
}

// HasAttachment reports whether the source flagged the message as carrying
// an attachment.
func (m *Message) HasAttachment() bool {
	if m.Headers == nil {
		return false
	}
	return strings.EqualFold(m.Headers["has_attachment"], "true")
}

// Domain returns the sender's domain part, lowercased, or "" when the
// sender is not an address.
func (m *Message) Domain() string {
	at := strings.LastIndex(m.Sender, "@")
	if at < 0 || at == len(m.Sender)-1 {
		return ""
	}
	return strings.ToLower(m.Sender[at+1:])
}

// ClassificationResult is the outcome of running a message through the
// classifier chain. Category uses the vocabulary of the stage that answered;
// Department is the canonical routing target derived from it.
type ClassificationResult struct {
	Category      string
	Confidence    float64
	Probabilities map[string]float64
	Department    string
	Explanation   string
	Stage         string
	ProcessingID  string
	AnalyzedAt    time.Time
	FromCache     bool
}

// CategoryUnknown is the sentinel category a stage returns when it has no
// answer; the chain treats it as "try the next stage".
const CategoryUnknown = "unknown"

// Answered reports whether the result is good enough to stop the fallback
// chain.
func (r *ClassificationResult) Answered() bool {
	return r != nil && r.Confidence > 0 && r.Category != CategoryUnknown
}

// MessageStatus tracks a persisted message through the pipeline.
type MessageStatus string

const (
	StatusPending    MessageStatus = "pending"
	StatusProcessing MessageStatus = "processing"
	StatusProcessed  MessageStatus = "processed"
	StatusFailed     MessageStatus = "failed"
)

// StoredMessage is the persisted record for an ingested message together
// with its single current classification.
type StoredMessage struct {
	ID         string
	Message    Message
	Status     MessageStatus
	Error      string
	Result     *ClassificationResult
	Actions    []ActionResult
	IngestedAt time.Time
	UpdatedAt  time.Time
}

// TriageStatus is the ingestion boundary verdict for a message.
type TriageStatus string

const (
	TriageReceived TriageStatus = "received"
	TriageSkipped  TriageStatus = "skipped"
)

// SkipReasonDuplicate marks a message whose external id was already known.
const SkipReasonDuplicate = "duplicate"

// TriageOutcome is returned to the caller of Receive. When classification
// runs asynchronously, Queued is set and Classification stays nil.
type TriageOutcome struct {
	Status         TriageStatus
	Reason         string
	MessageID      string
	Queued         bool
	Classification *ClassificationResult
}

// ActionType identifies one kind of side effect a routing rule can request.
type ActionType string

const (
	ActionRoute           ActionType = "route"
	ActionTag             ActionType = "tag"
	ActionPriority        ActionType = "priority"
	ActionForward         ActionType = "forward"
	ActionArchive         ActionType = "archive"
	ActionDelete          ActionType = "delete"
	ActionMarkRead        ActionType = "mark_read"
	ActionMarkUnread      ActionType = "mark_unread"
	ActionStar            ActionType = "star"
	ActionSnooze          ActionType = "snooze"
	ActionCreateTask      ActionType = "create_task"
	ActionNotify          ActionType = "notify"
	ActionBlockSender     ActionType = "block_sender"
	ActionWhitelistSender ActionType = "whitelist_sender"
	ActionMarkSpam        ActionType = "mark_as_spam"
	ActionCustom          ActionType = "custom"
)

// Action is one side effect requested by a matched rule (or the fallback
// table). Value carries the action payload: a folder for route, a label for
// tag, an address for forward, and so on.
type Action struct {
	Type  ActionType
	Value string
}

// Action dispatch statuses.
const (
	ActionCompleted = "completed"
	ActionFailed    = "failed"
)

// ActionResult records the outcome of dispatching a single action. A failed
// action never aborts its siblings.
type ActionResult struct {
	Action    Action
	Status    string
	Error     string
	Timestamp time.Time
}

// MatchedRule is one rule that matched during evaluation, with its actions
// already materialized.
type MatchedRule struct {
	RuleID   string
	RuleName string
	Priority int
	Stop     bool
	Actions  []Action
}
