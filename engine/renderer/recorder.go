package renderer

import (
	"fmt"

	"github.com/spaghettifunk/framering/engine/core"
	"github.com/spaghettifunk/framering/engine/renderer/metadata"
)

type trackedResource struct {
	boundary metadata.ResourceState
	final    metadata.ResourceState
	current  metadata.ResourceState
	history  []metadata.ResourceState
}

// CommandRecorder wraps a CommandList and owns the state of every resource
// registered with Track. Each tracked resource must be back in its boundary
// state when the list is closed.
type CommandRecorder struct {
	list    CommandList
	tracked map[Resource]*trackedResource
	order   []Resource
	err     error
}

func NewCommandRecorder(list CommandList) *CommandRecorder {
	return &CommandRecorder{
		list:    list,
		tracked: make(map[Resource]*trackedResource),
	}
}

// Reset starts a new recording into allocator and forgets all tracking.
func (cr *CommandRecorder) Reset(allocator CommandAllocator, pipeline metadata.PipelineHandle) error {
	cr.tracked = make(map[Resource]*trackedResource)
	cr.order = cr.order[:0]
	cr.err = nil
	if err := cr.list.Reset(allocator, pipeline); err != nil {
		return fmt.Errorf("reset command list: %w", err)
	}
	return nil
}

// Track registers res, which is in boundary at the start and must be in
// boundary again at Close. Tracking an already tracked resource is a no-op.
func (cr *CommandRecorder) Track(res Resource, boundary metadata.ResourceState) {
	cr.TrackHandoff(res, boundary, boundary)
}

// TrackHandoff registers a resource that enters the list in initial and is
// handed to later lists in final, such as a freshly created buffer that is
// filled by a copy.
func (cr *CommandRecorder) TrackHandoff(res Resource, initial, final metadata.ResourceState) {
	if _, ok := cr.tracked[res]; ok {
		return
	}
	cr.tracked[res] = &trackedResource{
		boundary: initial,
		final:    final,
		current:  initial,
		history:  []metadata.ResourceState{initial},
	}
	cr.order = append(cr.order, res)
}

// Transition records a barrier from the tracked state of res to target.
// Transitions to the current state record nothing.
func (cr *CommandRecorder) Transition(res Resource, target metadata.ResourceState) error {
	t, ok := cr.tracked[res]
	if !ok {
		err := fmt.Errorf("%w: %s", core.ErrUntrackedResource, res.Name())
		core.LogError(err.Error())
		cr.fail(err)
		return err
	}
	if t.current == target {
		return nil
	}
	cr.list.ResourceBarrier(Barrier{Resource: res, Before: t.current, After: target})
	t.current = target
	t.history = append(t.history, target)
	return nil
}

// TransitionAll moves several resources to the same state with one barrier call.
func (cr *CommandRecorder) TransitionAll(target metadata.ResourceState, resources ...Resource) error {
	barriers := make([]Barrier, 0, len(resources))
	for _, res := range resources {
		t, ok := cr.tracked[res]
		if !ok {
			err := fmt.Errorf("%w: %s", core.ErrUntrackedResource, res.Name())
			cr.fail(err)
			return err
		}
		if t.current == target {
			continue
		}
		barriers = append(barriers, Barrier{Resource: res, Before: t.current, After: target})
		t.current = target
		t.history = append(t.history, target)
	}
	if len(barriers) > 0 {
		cr.list.ResourceBarrier(barriers...)
	}
	return nil
}

// State is the state res will be in at this point of the list.
func (cr *CommandRecorder) State(res Resource) (metadata.ResourceState, bool) {
	t, ok := cr.tracked[res]
	if !ok {
		return 0, false
	}
	return t.current, true
}

// History lists every state res passed through in this recording, starting
// with the state it entered the list in.
func (cr *CommandRecorder) History(res Resource) []metadata.ResourceState {
	t, ok := cr.tracked[res]
	if !ok {
		return nil
	}
	return append([]metadata.ResourceState(nil), t.history...)
}

// List gives access to the non barrier commands.
func (cr *CommandRecorder) List() CommandList {
	return cr.list
}

// Close verifies the pairing of every transition and closes the list.
func (cr *CommandRecorder) Close() error {
	if cr.err != nil {
		return cr.err
	}
	for _, res := range cr.order {
		t := cr.tracked[res]
		if t.current != t.final {
			err := fmt.Errorf("%w: %s left in %s, expected %s",
				core.ErrUnpairedTransition, res.Name(), t.current, t.final)
			core.LogError(err.Error())
			return err
		}
	}
	if err := cr.list.Close(); err != nil {
		return fmt.Errorf("%w: close command list: %v", core.ErrSubmission, err)
	}
	return nil
}

func (cr *CommandRecorder) fail(err error) {
	if cr.err == nil {
		cr.err = err
	}
}
