package acl

import (
	"fmt"
	"os"

	"github.com/vmihailenco/msgpack/v5"
)

// snapshot is the on-disk shape of an ACL's role/resource/rule state.
// Assertions cannot be serialized; a snapshot loaded at startup always
// carries nil assertions, matching how `setRule` is used to layer
// assertion-bearing rules on top afterward.
type snapshot struct {
	RoleParents     map[string][]string      `msgpack:"role_parents"`
	ResourceParents map[string]string        `msgpack:"resource_parents"`
	Rules           []snapshotRule           `msgpack:"rules"`
}

type snapshotRule struct {
	Resource  string   `msgpack:"resource"`
	Role      string   `msgpack:"role"`
	Privilege string   `msgpack:"privilege"`
	Type      RuleType `msgpack:"type"`
}

// SaveSnapshot writes the ACL's current role/resource/rule state to
// path as msgpack, for seeding a server's ACL on the next startup.
func (a *ACL) SaveSnapshot(path string) error {
	a.mu.RLock()
	snap := snapshot{
		RoleParents:     cloneParents(a.Roles),
		ResourceParents: cloneResourceParents(a.Resources),
	}
	for resource, byRole := range a.rules {
		for role, slot := range byRole {
			if slot.allPrivileges != nil {
				snap.Rules = append(snap.Rules, snapshotRule{resource, role, "", slot.allPrivileges.Type})
			}
			for privilege, rule := range slot.byPrivilege {
				snap.Rules = append(snap.Rules, snapshotRule{resource, role, privilege, rule.Type})
			}
		}
	}
	a.mu.RUnlock()

	data, err := msgpack.Marshal(&snap)
	if err != nil {
		return fmt.Errorf("acl: marshal snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("acl: write snapshot %s: %w", path, err)
	}
	return nil
}

// LoadSnapshot replaces the ACL's role/resource/rule state with the
// one stored at path.
func (a *ACL) LoadSnapshot(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("acl: read snapshot %s: %w", path, err)
	}
	var snap snapshot
	if err := msgpack.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("acl: unmarshal snapshot: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.Roles = NewRoleRegistry()
	for role, parents := range snap.RoleParents {
		for _, parent := range parents {
			a.Roles.AddParent(role, parent)
		}
	}
	a.Resources = NewResourceRegistry()
	for resource, parent := range snap.ResourceParents {
		a.Resources.SetParent(resource, parent)
	}
	a.rules = make(map[string]map[string]*privilegeRules)
	a.slot("", "").allPrivileges = &Rule{Type: Deny}
	for _, r := range snap.Rules {
		setSlotRule(a.slot(r.Resource, r.Role), r.Privilege, &Rule{Type: r.Type})
	}
	return nil
}

func cloneParents(r *RoleRegistry) map[string][]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string][]string, len(r.parents))
	for role, parents := range r.parents {
		out[role] = append([]string(nil), parents...)
	}
	return out
}

func cloneResourceParents(r *ResourceRegistry) map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.parent))
	for resource, parent := range r.parent {
		out[resource] = parent
	}
	return out
}
