package models

import (
	"bytes"
	"encoding/json"
	"math"
	"time"
)

// MessageTypeAIResponse marks messages produced by the assistant.
const MessageTypeAIResponse = "ai_response"

type Conversation struct {
	ID        string
	OrgID     string
	UserID    string
	IsDeleted bool
	CreatedAt time.Time
	Messages  []Message
}

type Message struct {
	ID          string
	MessageType string
	Content     string
	CreatedAt   time.Time
	Feedback    []FeedbackEntry
}

// ConversationFilter narrows a conversation scan. Empty fields do not filter.
// Soft-deleted conversations are never returned.
type ConversationFilter struct {
	OrgID       string
	UserID      string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

type CitationFeedback struct {
	CitationID     string   `json:"citationId,omitempty"`
	RelevanceScore *float64 `json:"relevanceScore,omitempty"`
}

// FeedbackEntry is one user reaction to an AI response. Every field is optional.
type FeedbackEntry struct {
	IsHelpful        *bool              `json:"isHelpful,omitempty"`
	Ratings          map[string]float64 `json:"ratings,omitempty"`
	CitationFeedback []CitationFeedback `json:"citationFeedback,omitempty"`
	CreatedAt        *time.Time         `json:"createdAt,omitempty"`

	// Raw is the record exactly as it was stored.
	Raw json.RawMessage `json:"-"`
}

// UnmarshalJSON never fails. Fields with an unexpected shape are left absent.
func (f *FeedbackEntry) UnmarshalJSON(data []byte) error {
	*f = ParseFeedbackEntry(data)
	return nil
}

// MarshalJSON emits the stored record when there is one.
func (f FeedbackEntry) MarshalJSON() ([]byte, error) {
	if len(f.Raw) > 0 && json.Valid(f.Raw) {
		return f.Raw, nil
	}
	type plain FeedbackEntry
	return json.Marshal(plain(f))
}

// ParseFeedbackEntry decodes a stored feedback record.
func ParseFeedbackEntry(data []byte) FeedbackEntry {
	entry := FeedbackEntry{Raw: append(json.RawMessage(nil), bytes.TrimSpace(data)...)}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return entry
	}

	var helpful bool
	if raw, ok := fields["isHelpful"]; ok && json.Unmarshal(raw, &helpful) == nil && !isNull(raw) {
		entry.IsHelpful = &helpful
	}

	if raw, ok := fields["ratings"]; ok {
		entry.Ratings = parseRatings(raw)
	}

	if raw, ok := fields["citationFeedback"]; ok {
		entry.CitationFeedback = parseCitations(raw)
	}

	var ts string
	if raw, ok := fields["createdAt"]; ok && json.Unmarshal(raw, &ts) == nil {
		if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			entry.CreatedAt = &parsed
		}
	}

	return entry
}

// ParseFeedbackList decodes a stored JSON array of feedback records.
// A column that is not an array yields no entries.
func ParseFeedbackList(data []byte) []FeedbackEntry {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil
	}
	out := make([]FeedbackEntry, 0, len(items))
	for _, item := range items {
		out = append(out, ParseFeedbackEntry(item))
	}
	return out
}

func parseRatings(raw json.RawMessage) map[string]float64 {
	var values map[string]json.RawMessage
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil
	}
	ratings := make(map[string]float64, len(values))
	for dim, v := range values {
		if n, ok := parseNumber(v); ok {
			ratings[dim] = n
		}
	}
	if len(ratings) == 0 {
		return nil
	}
	return ratings
}

func parseCitations(raw json.RawMessage) []CitationFeedback {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	out := make([]CitationFeedback, 0, len(items))
	for _, item := range items {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(item, &fields); err != nil {
			continue
		}
		var cf CitationFeedback
		_ = json.Unmarshal(fields["citationId"], &cf.CitationID)
		if n, ok := parseNumber(fields["relevanceScore"]); ok {
			cf.RelevanceScore = &n
		}
		out = append(out, cf)
	}
	return out
}

func parseNumber(raw json.RawMessage) (float64, bool) {
	var n float64
	if len(raw) == 0 || isNull(raw) || json.Unmarshal(raw, &n) != nil {
		return 0, false
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
