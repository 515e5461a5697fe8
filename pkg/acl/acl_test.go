package acl

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultDenyByDefault(t *testing.T) {
	a := New()
	assert.False(t, a.IsAllowed("anyone", "anything", "anything"))
}

func TestExplicitAllowGrantsOnlyThatTriple(t *testing.T) {
	a := New()
	a.SetRule(OpAdd, Allow, []string{"admin"}, []string{"res"}, []string{"priv"}, nil)

	assert.True(t, a.IsAllowed("admin", "res", "priv"))
	assert.False(t, a.IsAllowed("guest", "res", "priv"))
	assert.False(t, a.IsAllowed("admin", "res", "other-priv"))
}

func TestRoleInheritanceGrantsThroughParent(t *testing.T) {
	a := New()
	a.Roles.AddParent("child", "admin")
	a.SetRule(OpAdd, Allow, []string{"admin"}, []string{"res"}, []string{"priv"}, nil)

	assert.True(t, a.IsAllowed("child", "res", "priv"))
}

// TestMostRecentlyAddedParentWinsFirst exercises the DFS order: when a
// role has two parents with conflicting rules, the parent added last
// is visited first and its rule decides the outcome.
func TestMostRecentlyAddedParentWinsFirst(t *testing.T) {
	a := New()
	a.Roles.AddParent("child", "p1")
	a.Roles.AddParent("child", "p2")
	a.SetRule(OpAdd, Deny, []string{"p1"}, []string{"res"}, []string{"priv"}, nil)
	a.SetRule(OpAdd, Allow, []string{"p2"}, []string{"res"}, []string{"priv"}, nil)

	assert.True(t, a.IsAllowed("child", "res", "priv"), "p2 was added last and should be visited first")
}

func TestResourceTreeFallsBackToParentResource(t *testing.T) {
	a := New()
	a.Resources.SetParent("child-res", "parent-res")
	a.SetRule(OpAdd, Allow, []string{"admin"}, []string{"parent-res"}, []string{"priv"}, nil)

	assert.True(t, a.IsAllowed("admin", "child-res", "priv"))
}

// TestAllPrivilegesDenyShortCircuit: a privilege-less query for a role
// with at least one DENY among its specific-privilege rules is denied
// outright, even if allPrivileges itself would otherwise allow.
func TestAllPrivilegesDenyShortCircuit(t *testing.T) {
	a := New()
	a.SetRule(OpAdd, Allow, []string{"admin"}, []string{"res"}, nil, nil)
	a.SetRule(OpAdd, Deny, []string{"admin"}, []string{"res"}, []string{"danger"}, nil)

	assert.False(t, a.IsAllowed("admin", "res", ""))
	assert.True(t, a.IsAllowed("admin", "res", "safe"))
	assert.False(t, a.IsAllowed("admin", "res", "danger"))
}

// TestAssertionInversionOnlyAtDefaultRule: a failing assertion makes a
// non-default rule inapplicable (falls through to default deny), but
// at the global default rule it flips the rule's type instead.
func TestAssertionInversionOnlyAtDefaultRule(t *testing.T) {
	a := New()
	alwaysFalse := func(resource, role, privilege string) bool { return false }

	a.SetRule(OpAdd, Allow, []string{"admin"}, []string{"res"}, []string{"priv"}, alwaysFalse)
	assert.False(t, a.IsAllowed("admin", "res", "priv"), "non-default rule with failing assertion is inapplicable, falls to default deny")

	a.SetRule(OpAdd, Deny, nil, nil, nil, alwaysFalse)
	assert.True(t, a.IsAllowed("nobody", "nowhere", "nothing"), "default rule inverts its type when its assertion fails")
}

func TestSetRuleRemoveDeletesMatchingType(t *testing.T) {
	a := New()
	a.SetRule(OpAdd, Allow, []string{"admin"}, []string{"res"}, []string{"priv"}, nil)
	assert.True(t, a.IsAllowed("admin", "res", "priv"))

	a.SetRule(OpRemove, Allow, []string{"admin"}, []string{"res"}, []string{"priv"}, nil)
	assert.False(t, a.IsAllowed("admin", "res", "priv"))
}

func TestSetRuleRemoveResetsGlobalDefault(t *testing.T) {
	a := New()
	a.SetRule(OpAdd, Allow, nil, nil, nil, nil)
	assert.True(t, a.IsAllowed("anyone", "anything", "anything"))

	a.SetRule(OpRemove, Allow, nil, nil, nil, nil)
	assert.False(t, a.IsAllowed("anyone", "anything", "anything"), "removing the global default resets it to deny, not deletes it")
}
