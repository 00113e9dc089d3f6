package districtstats

import (
	"errors"
	"strings"
)

// DistrictKey is a validated district name. Keys compare exactly: no case folding,
// no trimming, no fuzzy matching.
type DistrictKey string

var errEmptyDistrictName = errors.New("district name is empty")

// NewDistrictKey validates a boundary district name.
func NewDistrictKey(name string) (DistrictKey, error) {
	if strings.TrimSpace(name) == "" {
		return "", errEmptyDistrictName
	}
	return DistrictKey(name), nil
}

func (k DistrictKey) String() string { return string(k) }
