//go:build mage

package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

type cmdOptions struct {
	args   []string
	env    map[string]string
	stream bool
}

type cmdOption func(*cmdOptions)

func withArgs(args ...string) cmdOption {
	return func(o *cmdOptions) {
		o.args = args
	}
}

// withEnv adds variables on top of the current environment.
func withEnv(env map[string]string) cmdOption {
	return func(o *cmdOptions) {
		o.env = env
	}
}

func withStream() cmdOption {
	return func(o *cmdOptions) {
		o.stream = true
	}
}

// executeCmd runs the command and returns its combined output. Output is
// echoed while running with -v or withStream, otherwise only on failure.
func executeCmd(command string, options ...cmdOption) (string, error) {
	opts := &cmdOptions{}
	for _, o := range options {
		o(opts)
	}
	fmt.Printf("> %s %s\n", command, strings.Join(opts.args, " "))

	var out bytes.Buffer
	stdout, stderr := io.Writer(&out), io.Writer(&out)
	echo := mg.Verbose() || opts.stream
	if echo {
		stdout = io.MultiWriter(&out, os.Stdout)
		stderr = io.MultiWriter(&out, os.Stderr)
	}

	ran, err := sh.Exec(opts.env, stdout, stderr, command, opts.args...)
	if err != nil {
		if !echo {
			fmt.Println(out.String())
		}
		if !ran {
			return "", fmt.Errorf("%s could not be started: %w", command, err)
		}
		return "", fmt.Errorf("%s exited with code %d: %w", command, sh.ExitStatus(err), err)
	}
	return out.String(), nil
}
