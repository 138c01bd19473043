package launcher

import (
	"fmt"
	"strings"

	"github.com/kballard/go-shellquote"
)

// SplitParams splits a parameter string into individual arguments the way a
// shell would, honoring single and double quotes. Blank input yields nil.
func SplitParams(params string) ([]string, error) {
	if strings.TrimSpace(params) == "" {
		return nil, nil
	}
	args, err := shellquote.Split(params)
	if err != nil {
		return nil, fmt.Errorf("failed to split parameters %q: %w", params, err)
	}
	return args, nil
}
