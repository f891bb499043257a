// Package classify implements the batch classification engine: the
// vision classifier client, the retry controller, taxonomy discovery
// and the bounded-concurrency dispatcher.
package classify

import (
	"fmt"

	"github.com/pixelsense/pixelsense/internal/images"
	"github.com/pixelsense/pixelsense/internal/providers"
)

// ErrorRecord is the terminal failure for one image after retries were
// exhausted. Items with an ErrorRecord are never retried again within
// the same run.
type ErrorRecord struct {
	Ref     images.ImageRef
	Kind    providers.ErrorKind
	Message string
}

func (e *ErrorRecord) Error() string {
	return fmt.Sprintf("%s: %s failure: %s", e.Ref.Filename(), e.Kind, e.Message)
}
