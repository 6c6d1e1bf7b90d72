package cluster

import (
	"github.com/btcsuite/btclog/v2"

	"github.com/latticeforge/veridian/internal/logutil"
)

var log logutil.Logger = logutil.Disabled{}

// UseLogger sets the package-wide logger used by the cluster membership
// subsystem. Callers should invoke this once during start-up, the same way
// actor.UseLogger is wired in the daemon's main package.
func UseLogger(logger btclog.Logger) {
	log = logutil.New(logger)
}
