// Package all is a meta-package that imports all store implementations.
//
// Import it for side effects so that every backend is available by name.
package all

import (
	_ "github.com/TecharoHQ/webauth/lib/store/bbolt"
	_ "github.com/TecharoHQ/webauth/lib/store/memory"
	_ "github.com/TecharoHQ/webauth/lib/store/valkey"
)
