package innosupps

import "github.com/simd-personal/Inno-Supps/id"

// ID is the identifier type for generated entities.
type ID = id.ID

// SystemWorkspace is the workspace recorded for jobs enqueued without one.
const SystemWorkspace = "system"
