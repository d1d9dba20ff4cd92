//go:build mage

package main

import (
	"flag"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/magefile/mage/mg"
)

// Container image constants.
const (
	dockerImageName = "ideate"
	dockerImageTag  = "latest"
	dockerfileDir   = "magefiles"
	containerPort   = "5055"
)

// Docker groups the container image targets.
type Docker mg.Namespace

// containerRuntime returns "podman" or "docker" if a working runtime
// is available, or "" if neither is usable. It checks both that the
// binary exists on PATH and that it can connect to its daemon/machine.
func containerRuntime() string {
	for _, name := range []string{"podman", "docker"} {
		if _, err := exec.LookPath(name); err != nil {
			continue
		}
		if exec.Command(name, "info").Run() != nil {
			fmt.Fprintf(os.Stderr, "WARNING: %s found on PATH but not usable (is the daemon/machine running?)\n", name)
			continue
		}
		return name
	}
	return ""
}

func requireRuntime() (string, error) {
	rt := containerRuntime()
	if rt == "" {
		return "", fmt.Errorf("no container runtime found (tried podman, docker)")
	}
	return rt, nil
}

// imageRef returns the full image reference (name:tag).
func imageRef() string {
	return dockerImageName + ":" + dockerImageTag
}

func runtimeCmd(rt string, args ...string) *exec.Cmd {
	cmd := exec.Command(rt, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd
}

// Build builds the container image from magefiles/Dockerfile.
// The build context is the repo root.
func (Docker) Build() error {
	rt, err := requireRuntime()
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stderr, "Building container image...")
	return runtimeCmd(rt, "build",
		"--build-arg", "VERSION="+version(),
		"-t", imageRef(),
		"-f", filepath.Join(dockerfileDir, "Dockerfile"),
		".").Run()
}

// Run starts the container image. --port sets the host port and --config
// mounts a configuration directory holding config.yaml and domains/.
func (Docker) Run() error {
	fs := flag.NewFlagSet("docker:run", flag.ContinueOnError)
	port := fs.String("port", containerPort, "host port")
	config := fs.String("config", "", "configuration directory to mount")
	parseTargetFlags(fs)

	rt, err := requireRuntime()
	if err != nil {
		return err
	}
	args := []string{"run", "--rm", "-p", *port + ":" + containerPort}
	if *config != "" {
		abs, err := filepath.Abs(*config)
		if err != nil {
			return err
		}
		args = append(args, "-v", abs+":/etc/ideate:ro")
	}
	args = append(args, imageRef())
	return runtimeCmd(rt, args...).Run()
}

// Clean removes the container image. Errors are ignored because the image
// may not exist.
func (Docker) Clean() {
	rt := containerRuntime()
	if rt == "" {
		return
	}
	fmt.Fprintln(os.Stderr, "Removing container image...")
	_ = exec.Command(rt, "rmi", imageRef()).Run()
}
