package tuition

import "github.com/xraph/tuition/id"

// ID is the identifier type of every tuition entity.
type ID = id.ID

// Prefix identifies the entity type encoded in a TypeID.
type Prefix = id.Prefix
