package metadata

import (
	"fmt"
	"sync"
)

/** @brief A compiled pipeline state object. 0 means none. */
type PipelineHandle uint32

/** @brief A root signature. 0 means none. */
type RootSignatureHandle uint32

const (
	InvalidPipeline      PipelineHandle      = 0
	InvalidRootSignature RootSignatureHandle = 0
)

// PipelineCatalog resolves pipeline and root signature names to handles once
// at load time so the frame loop never looks up strings.
type PipelineCatalog struct {
	mu             sync.RWMutex
	pipelines      map[string]PipelineHandle
	rootSignatures map[string]RootSignatureHandle
	nextPipeline   PipelineHandle
	nextRoot       RootSignatureHandle
}

func NewPipelineCatalog() *PipelineCatalog {
	return &PipelineCatalog{
		pipelines:      make(map[string]PipelineHandle),
		rootSignatures: make(map[string]RootSignatureHandle),
	}
}

// RegisterPipeline returns the handle for name, creating it on first use.
func (pc *PipelineCatalog) RegisterPipeline(name string) PipelineHandle {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	if h, ok := pc.pipelines[name]; ok {
		return h
	}
	pc.nextPipeline++
	pc.pipelines[name] = pc.nextPipeline
	return pc.nextPipeline
}

func (pc *PipelineCatalog) RegisterRootSignature(name string) RootSignatureHandle {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	if h, ok := pc.rootSignatures[name]; ok {
		return h
	}
	pc.nextRoot++
	pc.rootSignatures[name] = pc.nextRoot
	return pc.nextRoot
}

func (pc *PipelineCatalog) Pipeline(name string) (PipelineHandle, error) {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	h, ok := pc.pipelines[name]
	if !ok {
		return InvalidPipeline, fmt.Errorf("pipeline %q is not registered", name)
	}
	return h, nil
}

func (pc *PipelineCatalog) RootSignature(name string) (RootSignatureHandle, error) {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	h, ok := pc.rootSignatures[name]
	if !ok {
		return InvalidRootSignature, fmt.Errorf("root signature %q is not registered", name)
	}
	return h, nil
}
