package agents

import (
	"stock-analyst/repository"
	"stock-analyst/services"
)

// Type aliases for the collaborators the analyst depends on, defined in
// their own packages
type Completer = services.Completer
type CacheStore = repository.Store
