// Package all registers every built-in reasoning engine via side-effect
// imports. Import it for its side effects:
//
//	import _ "github.com/planweave/planweave/engine/all"
//
// Binaries that only need a subset can import the individual engine
// packages instead.
package all

import (
	_ "github.com/planweave/planweave/engine/heuristic"
	_ "github.com/planweave/planweave/engine/llmcli"
	_ "github.com/planweave/planweave/engine/script"
)
