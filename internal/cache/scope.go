package cache

// ScopeKind names one independently loaded slice of a workspace.
type ScopeKind string

// Scope kinds.
const (
	// ScopeTypes is the workspace-wide registry of entities by object type.
	ScopeTypes ScopeKind = "types"
	// ScopeMembership is the per-collection entity lists. Loading it loads ScopeTypes first.
	ScopeMembership ScopeKind = "membership"
	// ScopeCollections is the workspace's collection list.
	ScopeCollections ScopeKind = "collections"
)

// ScopeKinds lists every kind, in load-dependency order.
var ScopeKinds = []ScopeKind{ScopeTypes, ScopeMembership, ScopeCollections}

// Scope identifies a loadable slice of one workspace.
type Scope struct {
	WorkspaceID string
	Kind        ScopeKind
}

// String returns the single-flight key for the scope.
func (s Scope) String() string {
	return s.WorkspaceID + "/" + string(s.Kind)
}

// TypesScope returns the type-registry scope of a workspace.
func TypesScope(workspaceID string) Scope { return Scope{WorkspaceID: workspaceID, Kind: ScopeTypes} }

// MembershipScope returns the membership scope of a workspace.
func MembershipScope(workspaceID string) Scope {
	return Scope{WorkspaceID: workspaceID, Kind: ScopeMembership}
}

// CollectionsScope returns the collection-list scope of a workspace.
func CollectionsScope(workspaceID string) Scope {
	return Scope{WorkspaceID: workspaceID, Kind: ScopeCollections}
}

// ScopeState is the load state of a scope.
type ScopeState int

// Scope states.
const (
	Unloaded ScopeState = iota
	Loading
	Loaded
)

func (s ScopeState) String() string {
	switch s {
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	default:
		return "unloaded"
	}
}
