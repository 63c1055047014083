package feedback

import (
	"context"
	"fmt"
)

// Mock is a canned advisory client for local runs and tests; it never
// touches the network.
type Mock struct{}

func (Mock) Advise(_ context.Context, req Request) (string, error) {
	return fmt.Sprintf("Your %s section reads well. Consider tightening the first sentence.", req.StageName), nil
}
