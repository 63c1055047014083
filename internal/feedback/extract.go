package feedback

import (
	"fmt"

	"github.com/tidwall/gjson"
)

// extractPaths lists where known advisory backends put the feedback text,
// tried in precedence order. The first path resolving to a string wins.
var extractPaths = []string{
	"feedback",
	"message",
	"message.content",
	"message.content.AIFeedback",
	"content",
}

// Extract pulls the advisory text out of a raw reply body. Returns
// ErrMalformedResponse when no recognized shape matches.
func Extract(body []byte) (string, error) {
	if !gjson.ValidBytes(body) {
		return "", fmt.Errorf("%w: not valid JSON", ErrMalformedResponse)
	}
	for _, path := range extractPaths {
		result := gjson.GetBytes(body, path)
		if result.Type == gjson.String {
			return result.Str, nil
		}
	}
	return "", ErrMalformedResponse
}
