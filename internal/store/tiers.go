package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sort"
	"time"

	"panel-dash/internal/model"

	"go.uber.org/zap"
)

// ErrTierConflict is returned when tier.json assigns one user more than one tier.
var ErrTierConflict = errors.New("user holds more than one tier")

// ErrInvalidTier is returned by SetTier for labels outside the ranked sequence.
var ErrInvalidTier = errors.New("invalid tier")

// tierDocument is tier.json decoded into its two shapes. Entries that match
// neither are carried through untouched.
type tierDocument struct {
	records map[string]model.TierRecord
	legacy  map[string][]string
	other   map[string]json.RawMessage
}

func (d *tierDocument) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	d.records = make(map[string]model.TierRecord)
	d.legacy = make(map[string][]string)
	d.other = make(map[string]json.RawMessage)

	for key, v := range raw {
		trimmed := bytes.TrimSpace(v)
		if len(trimmed) == 0 {
			continue
		}
		switch trimmed[0] {
		case '[':
			var ids []string
			if err := json.Unmarshal(trimmed, &ids); err == nil {
				d.legacy[key] = ids
				continue
			}
		case '{':
			var rec model.TierRecord
			if err := json.Unmarshal(trimmed, &rec); err == nil && rec.Tier != model.TierNone {
				d.records[key] = rec
				continue
			}
		}
		d.other[key] = v
	}
	return nil
}

func (d *tierDocument) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(d.records)+len(d.legacy)+len(d.other))
	for k, v := range d.other {
		out[k] = v
	}
	for k, ids := range d.legacy {
		if ids == nil {
			ids = []string{}
		}
		out[k] = ids
	}
	for k, rec := range d.records {
		out[k] = rec
	}
	return json.Marshal(out)
}

// resolve finds the single tier claimed for id under either shape.
func (d *tierDocument) resolve(id string) (model.Tier, error) {
	var claims []model.Tier
	if rec, ok := d.records[id]; ok {
		claims = append(claims, rec.Tier)
	}
	names := make([]string, 0, len(d.legacy))
	for name := range d.legacy {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		t, ok := model.ParseTier(name)
		if !ok || t == model.TierNone {
			continue
		}
		if slices.Contains(d.legacy[name], id) {
			claims = append(claims, t)
		}
	}

	switch len(claims) {
	case 0:
		return model.TierNone, nil
	case 1:
		return claims[0], nil
	default:
		return model.TierNone, fmt.Errorf("%w: user %s claims %v", ErrTierConflict, id, claims)
	}
}

func (d *tierDocument) userIDs() []string {
	seen := make(map[string]struct{})
	for id := range d.records {
		seen[id] = struct{}{}
	}
	for name, ids := range d.legacy {
		if t, ok := model.ParseTier(name); !ok || t == model.TierNone {
			continue
		}
		for _, id := range ids {
			seen[id] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// stripLegacy removes id from every legacy list.
func (d *tierDocument) stripLegacy(id string) bool {
	changed := false
	for name, ids := range d.legacy {
		if !slices.Contains(ids, id) {
			continue
		}
		d.legacy[name] = slices.DeleteFunc(slices.Clone(ids), func(v string) bool { return v == id })
		changed = true
	}
	return changed
}

// TierRegistry resolves and updates user tiers in tier.json.
type TierRegistry struct {
	files *FileStore
	path  string
	log   *zap.Logger
	now   func() time.Time
}

func NewTierRegistry(files *FileStore, path string, log *zap.Logger) *TierRegistry {
	return &TierRegistry{files: files, path: path, log: log, now: time.Now}
}

func (r *TierRegistry) load() (*tierDocument, error) {
	doc := &tierDocument{}
	found, err := r.files.Read(r.path, doc)
	if err != nil {
		return nil, err
	}
	if !found {
		doc = &tierDocument{
			records: map[string]model.TierRecord{},
			legacy:  map[string][]string{},
			other:   map[string]json.RawMessage{},
		}
	}
	return doc, nil
}

// GetTier returns the user's tier, TierNone when they have none.
func (r *TierRegistry) GetTier(userID string) (model.Tier, error) {
	doc, err := r.load()
	if err != nil {
		return model.TierNone, err
	}
	t, err := doc.resolve(userID)
	if err != nil {
		r.log.Warn("tier data integrity", zap.String("user_id", userID), zap.Error(err))
	}
	return t, err
}

// SetTier assigns tier to userID. TierNone removes the user's entry entirely.
// Any legacy list membership is dropped on write so the user resolves from
// exactly one place afterwards.
func (r *TierRegistry) SetTier(userID string, tier model.Tier) error {
	if tier != model.TierNone && !tier.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidTier, tier)
	}
	doc := &tierDocument{}
	return r.files.Update(r.path, doc, func() (bool, error) {
		if doc.records == nil {
			doc.records = map[string]model.TierRecord{}
			doc.legacy = map[string][]string{}
			doc.other = map[string]json.RawMessage{}
		}
		changed := doc.stripLegacy(userID)

		rec, exists := doc.records[userID]
		switch {
		case tier == model.TierNone:
			if exists {
				delete(doc.records, userID)
				changed = true
			}
		case exists:
			if rec.Tier != tier {
				rec.Tier = tier
				doc.records[userID] = rec
				changed = true
			}
		default:
			doc.records[userID] = model.NewTierRecord(tier, r.now())
			changed = true
		}
		return changed, nil
	})
}

// Delete removes every tier entry for userID.
func (r *TierRegistry) Delete(userID string) error {
	return r.SetTier(userID, model.TierNone)
}

// All resolves every user mentioned in tier.json. Users with conflicting
// entries are reported without a tier.
func (r *TierRegistry) All() (map[string]model.Tier, error) {
	doc, err := r.load()
	if err != nil {
		return nil, err
	}
	out := make(map[string]model.Tier)
	for _, id := range doc.userIDs() {
		t, err := doc.resolve(id)
		if err != nil {
			r.log.Warn("tier data integrity", zap.String("user_id", id), zap.Error(err))
		}
		out[id] = t
	}
	return out, nil
}

// Groups returns the members of each tier, ids sorted.
func (r *TierRegistry) Groups() (map[model.Tier][]string, error) {
	all, err := r.All()
	if err != nil {
		return nil, err
	}
	out := make(map[model.Tier][]string, len(model.Tiers))
	for _, t := range model.Tiers {
		out[t] = []string{}
	}
	for id, t := range all {
		if t == model.TierNone {
			continue
		}
		out[t] = append(out[t], id)
	}
	for t := range out {
		sort.Strings(out[t])
	}
	return out, nil
}
