package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// User is the resolved view of a Telegram ID: its tier, its server access and
// whether it is listed as an owner.
type User struct {
	ID      string     `json:"id"`
	Tier    Tier       `json:"tier"`
	Access  []ServerID `json:"access"`
	IsOwner bool       `json:"isOwner"`
}

// TierRecord is the canonical per-user entry in tier.json.
// Meta keeps every other field (adpCreated and whatever the bot writes) so
// rewriting a record never drops data.
type TierRecord struct {
	Tier      Tier
	CreatedAt time.Time
	Meta      map[string]json.RawMessage
}

// NewTierRecord initializes a record the way the bot does on first assignment.
func NewTierRecord(t Tier, now time.Time) TierRecord {
	return TierRecord{
		Tier:      t,
		CreatedAt: now.UTC(),
		Meta:      map[string]json.RawMessage{"adpCreated": json.RawMessage(`{}`)},
	}
}

func (r TierRecord) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(r.Meta)+2)
	for k, v := range r.Meta {
		out[k] = v
	}
	tier, err := json.Marshal(string(r.Tier))
	if err != nil {
		return nil, err
	}
	out["tier"] = tier
	if !r.CreatedAt.IsZero() {
		created, err := json.Marshal(r.CreatedAt.UTC().Format(time.RFC3339Nano))
		if err != nil {
			return nil, err
		}
		out["createdAt"] = created
	}
	return json.Marshal(out)
}

func (r *TierRecord) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = TierRecord{Meta: map[string]json.RawMessage{}}
	for k, v := range raw {
		switch k {
		case "tier":
			var s string
			if err := json.Unmarshal(v, &s); err != nil {
				return fmt.Errorf("tier field: %w", err)
			}
			t, ok := ParseTier(s)
			if !ok {
				return fmt.Errorf("unknown tier %q", s)
			}
			r.Tier = t
		case "createdAt":
			var s string
			if err := json.Unmarshal(v, &s); err == nil && s != "" {
				if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
					r.CreatedAt = ts
					continue
				}
			}
			// Unparseable timestamps are kept as-is.
			r.Meta[k] = v
		default:
			r.Meta[k] = v
		}
	}
	return nil
}
