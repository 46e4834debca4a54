//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Runs the instancing demo for 600 frames with the default configuration.
func (Run) Demo() error {
	fmt.Println("Run demo...")
	if _, err := executeCmd("go", withArgs("run", ".", "-config", "assets/configs/engine.toml", "-frames", "600"), withStream()); err != nil {
		return err
	}
	return nil
}

// Runs the demo until interrupted, rendering the dynamic cube map as well.
func (Run) Cube() error {
	mg.Deps(Build.Binary)
	_, err := executeCmd("bin/framering", withArgs("-cube"), withStream())
	return err
}
