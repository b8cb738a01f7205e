package processing

import (
	"time"

	"github.com/corvidlabs/blockctl/internal/client"
	"github.com/corvidlabs/blockctl/internal/resilience"
)

// classifyBlockError classifies a failed blocks/create call the same
// way the resolver classifies a failed resolve call, so C3's
// permanent/transient split means the same thing on both paths.
func classifyBlockError(err error, now time.Time) resilience.Classification {
	return client.ClassifyCallError(err, now)
}
