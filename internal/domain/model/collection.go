package model

// Collection names a record collection in the backing store.
type Collection string

const (
	CollectionProjects    Collection = "projects"
	CollectionTasks       Collection = "tasks"
	CollectionResources   Collection = "resources"
	CollectionAllocations Collection = "allocations"
	CollectionPresence    Collection = "presence"
	CollectionPermissions Collection = "permissions"
)
