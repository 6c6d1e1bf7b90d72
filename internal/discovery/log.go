package discovery

import (
	"github.com/btcsuite/btclog/v2"

	"github.com/latticeforge/veridian/internal/logutil"
)

var log logutil.Logger = logutil.Disabled{}

// UseLogger sets the package-wide logger used by the discovery subsystem.
func UseLogger(logger btclog.Logger) {
	log = logutil.New(logger)
}
