package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/0x00000002/multi-ai/pkg/aierrors"
)

// LoadUserConfig reads a per-user overlay document. Unlike the catalog it
// is a flat YAML mapping, so it goes through yaml directly rather than the
// koanf pipeline.
func LoadUserConfig(path string) (*UserConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, aierrors.Wrap(aierrors.KindConfigNotFound,
			fmt.Sprintf("failed to read user config %s", path), err)
	}

	var uc UserConfig
	if err := yaml.Unmarshal(data, &uc); err != nil {
		return nil, aierrors.Wrap(aierrors.KindConfigInvalid,
			fmt.Sprintf("failed to parse user config %s", path), err)
	}

	if uc.Temperature != nil && (*uc.Temperature < 0 || *uc.Temperature > 2) {
		return nil, aierrors.Newf(aierrors.KindConfigInvalid,
			"user config temperature %v out of range [0, 2]", *uc.Temperature)
	}

	return &uc, nil
}
