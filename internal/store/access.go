package store

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"

	"panel-dash/internal/model"
)

// ErrUnknownServer is returned for server ids outside the configured set.
var ErrUnknownServer = errors.New("unknown server")

// AccessRegistry keeps one member list per server under <dir>/servers/<id>.json.
type AccessRegistry struct {
	files   *FileStore
	dir     string
	servers []model.ServerID
}

func NewAccessRegistry(files *FileStore, dataDir string, servers []model.ServerID) *AccessRegistry {
	return &AccessRegistry{
		files:   files,
		dir:     filepath.Join(dataDir, "servers"),
		servers: slices.Clone(servers),
	}
}

// Servers returns the known server ids in order.
func (r *AccessRegistry) Servers() []model.ServerID {
	return slices.Clone(r.servers)
}

func (r *AccessRegistry) path(id model.ServerID) string {
	return filepath.Join(r.dir, string(id)+".json")
}

func (r *AccessRegistry) known(id model.ServerID) bool {
	return slices.Contains(r.servers, id)
}

// Members returns the ids allowed on server, without duplicates.
func (r *AccessRegistry) Members(server model.ServerID) ([]string, error) {
	if !r.known(server) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownServer, server)
	}
	var ids []string
	if _, err := r.files.Read(r.path(server), &ids); err != nil {
		return nil, err
	}
	return dedupe(ids), nil
}

// AllMembers returns the member list of every server.
func (r *AccessRegistry) AllMembers() (map[model.ServerID][]string, error) {
	out := make(map[model.ServerID][]string, len(r.servers))
	for _, s := range r.servers {
		ids, err := r.Members(s)
		if err != nil {
			return nil, err
		}
		out[s] = ids
	}
	return out, nil
}

// GetAccess returns the servers whose member list contains userID.
func (r *AccessRegistry) GetAccess(userID string) ([]model.ServerID, error) {
	access := []model.ServerID{}
	for _, s := range r.servers {
		ids, err := r.Members(s)
		if err != nil {
			return nil, err
		}
		if slices.Contains(ids, userID) {
			access = append(access, s)
		}
	}
	return access, nil
}

// Validate returns ErrUnknownServer for the first server that has no list.
func (r *AccessRegistry) Validate(servers []model.ServerID) error {
	for _, s := range servers {
		if !r.known(s) {
			return fmt.Errorf("%w: %s", ErrUnknownServer, s)
		}
	}
	return nil
}

// SetAccess replaces userID's access with exactly the given servers. Every
// known server file is visited, including those not in the set.
func (r *AccessRegistry) SetAccess(userID string, servers []model.ServerID) error {
	if err := r.Validate(servers); err != nil {
		return err
	}
	for _, s := range r.servers {
		want := slices.Contains(servers, s)
		var ids []string
		err := r.files.Update(r.path(s), &ids, func() (bool, error) {
			next := slices.DeleteFunc(dedupe(ids), func(v string) bool { return v == userID })
			if want {
				next = append(next, userID)
			}
			if slices.Equal(next, ids) {
				return false, nil
			}
			if next == nil {
				next = []string{}
			}
			ids = next
			return true, nil
		})
		if err != nil {
			return fmt.Errorf("update access for %s: %w", s, err)
		}
	}
	return nil
}

// DeleteUser removes userID from every server.
func (r *AccessRegistry) DeleteUser(userID string) error {
	return r.SetAccess(userID, nil)
}

func dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}
