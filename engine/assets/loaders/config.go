package loaders

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spaghettifunk/framering/engine/core"
	"github.com/spaghettifunk/framering/engine/renderer/metadata"
)

// ConfigLoader reads engine configuration files. The resource data is a *core.Config.
type ConfigLoader struct{}

func (cl *ConfigLoader) Load(path string, assetType metadata.ResourceType, params interface{}) (*metadata.Resource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := core.ParseConfig(data)
	if err != nil {
		core.LogError("config %s rejected: %s", path, err.Error())
		return nil, err
	}
	return &metadata.Resource{
		Type:     metadata.ResourceTypeConfig,
		Name:     strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		FullPath: path,
		DataSize: uint64(len(data)),
		Data:     cfg,
	}, nil
}

func (cl *ConfigLoader) Unload(*metadata.Resource) error {
	return nil
}
