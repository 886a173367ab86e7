package jsonod

import (
	"fmt"

	"github.com/samsamfire/objdictgen/pkg/od"
	"github.com/tailscale/hujson"
	"golang.org/x/exp/slices"
)

// standardize turns a JSONC document into plain JSON. Comments and
// trailing commas become spaces, so decoder offsets are unchanged.
func standardize(data []byte) ([]byte, error) {
	std, err := hujson.Standardize(slices.Clone(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", od.ErrSchemaViolation, err)
	}
	return std, nil
}
