package store

import (
	"errors"
	"fmt"
	"sort"

	"panel-dash/internal/model"
)

// Directory joins the tier and access registries with the owner list.
type Directory struct {
	Tiers  *TierRegistry
	Access *AccessRegistry
	owners []string
}

func NewDirectory(tiers *TierRegistry, access *AccessRegistry, owners []string) *Directory {
	return &Directory{Tiers: tiers, Access: access, owners: owners}
}

// IsOwner reports whether id is a configured owner. Tier never implies ownership.
func (d *Directory) IsOwner(id string) bool {
	for _, o := range d.owners {
		if o == id {
			return true
		}
	}
	return false
}

// Lookup resolves id. known is false when id has no tier, no access and is
// not an owner.
func (d *Directory) Lookup(id string) (u model.User, known bool, err error) {
	tier, err := d.Tiers.GetTier(id)
	if err != nil {
		return model.User{}, false, err
	}
	access, err := d.Access.GetAccess(id)
	if err != nil {
		return model.User{}, false, err
	}
	u = model.User{ID: id, Tier: tier, Access: access, IsOwner: d.IsOwner(id)}
	known = u.IsOwner || tier != model.TierNone || len(access) > 0
	return u, known, nil
}

// List returns every user that appears in any server list or in tier.json,
// sorted by id.
func (d *Directory) List() ([]model.User, error) {
	members, err := d.Access.AllMembers()
	if err != nil {
		return nil, err
	}
	tiers, err := d.Tiers.All()
	if err != nil {
		return nil, err
	}

	access := make(map[string][]model.ServerID)
	for _, s := range d.Access.Servers() {
		for _, id := range members[s] {
			access[id] = append(access[id], s)
		}
	}
	ids := make(map[string]struct{}, len(access)+len(tiers))
	for id := range access {
		ids[id] = struct{}{}
	}
	for id := range tiers {
		ids[id] = struct{}{}
	}

	users := make([]model.User, 0, len(ids))
	for id := range ids {
		a := access[id]
		if a == nil {
			a = []model.ServerID{}
		}
		users = append(users, model.User{ID: id, Tier: tiers[id], Access: a, IsOwner: d.IsOwner(id)})
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

// Update applies a tier and a full access set for id.
func (d *Directory) Update(id string, tier model.Tier, access []model.ServerID) error {
	// Nothing is written unless both halves are acceptable.
	if err := d.Access.Validate(access); err != nil {
		return fmt.Errorf("set access: %w", err)
	}
	if err := d.Tiers.SetTier(id, tier); err != nil {
		return fmt.Errorf("set tier: %w", err)
	}
	if err := d.Access.SetAccess(id, access); err != nil {
		return fmt.Errorf("set access: %w", err)
	}
	return nil
}

// Delete removes id from tier.json and from every server list. Both are
// attempted even if the first fails.
func (d *Directory) Delete(id string) error {
	var tierErr, accessErr error
	if err := d.Tiers.Delete(id); err != nil {
		tierErr = fmt.Errorf("delete tier: %w", err)
	}
	if err := d.Access.DeleteUser(id); err != nil {
		accessErr = fmt.Errorf("delete access: %w", err)
	}
	return errors.Join(tierErr, accessErr)
}
