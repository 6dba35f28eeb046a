// Package authz decides what a dashboard user may do. It is the only place
// the tier and owner rules live; route guards and the UI permission map both
// call Allow.
package authz

import (
	"slices"

	"panel-dash/internal/model"
)

// Capability names an action a route performs.
type Capability string

const (
	ViewOverview Capability = "view_overview"
	ViewServers  Capability = "view_servers"
	CreatePanel  Capability = "create_panel"
	ViewUsers    Capability = "view_users"
	ViewTiers    Capability = "view_tiers"
	ViewSettings Capability = "view_settings"
	ManageUsers  Capability = "manage_users"
	ViewAudit    Capability = "view_audit"
)

// Capabilities lists every capability Allow knows about.
var Capabilities = []Capability{
	ViewOverview, ViewServers, CreatePanel, ViewUsers,
	ViewTiers, ViewSettings, ManageUsers, ViewAudit,
}

// Subject is the caller as captured in their session.
type Subject struct {
	UserID string
	Tier   model.Tier
	Owner  bool
}

// Allow reports whether s may use c. Owners may do everything; capabilities
// not listed here are denied.
func Allow(s Subject, c Capability) bool {
	if s.Owner {
		return slices.Contains(Capabilities, c)
	}
	switch c {
	case ViewOverview, ViewServers:
		return true
	case CreatePanel:
		return s.Tier.Valid()
	case ViewUsers:
		return s.Tier.AtLeast(model.TierOwn)
	default:
		return false
	}
}

// Permissions evaluates every capability for s. The dashboard uses this map
// to decide which controls to show.
func Permissions(s Subject) map[Capability]bool {
	out := make(map[Capability]bool, len(Capabilities))
	for _, c := range Capabilities {
		out[c] = Allow(s, c)
	}
	return out
}

// CanUseServer reports whether server is in the access set.
func CanUseServer(access []model.ServerID, server model.ServerID) bool {
	return slices.Contains(access, server)
}
