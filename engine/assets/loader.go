package assets

import "github.com/spaghettifunk/framering/engine/renderer/metadata"

type Loader interface {
	Load(path string, assetType metadata.ResourceType, params interface{}) (*metadata.Resource, error) // `interface{}` here allows loaders to return various asset types
	Unload(*metadata.Resource) error
}

// ReloadHandler receives the result of reloading a watched asset that
// changed on disk. res is nil when err is set.
type ReloadHandler func(path string, res *metadata.Resource, err error)
