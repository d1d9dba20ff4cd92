//go:build mage

// Package main provides build targets for the ideate project using Mage.
//
// Usage:
//
//	mage build            Compile the ideate binary to bin/
//	mage run [flags]      Build and run "ideate serve" with the given flags
//	mage test:all         Run all tests
//	mage test:race        Run all tests with the race detector
//	mage test:cover       Run all tests and write coverage.out
//	mage lint             Run golangci-lint
//	mage vet              Run go vet
//	mage fmt              Fail on files that need gofmt
//	mage check            Run fmt, vet, lint and test:all
//	mage clean            Remove build artifacts
//	mage install          Install ideate to GOPATH/bin
//	mage stats            Print Go lines of code per top-level directory
//	mage docker:build     Build the container image
//	mage docker:run       Run the container image on port 5055
package main

import (
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Run builds ideate and starts "ideate serve". Flags after the target are
// passed through, e.g. "mage run --domain tasks.yaml --addr :8080".
func Run() error {
	mg.Deps(Build)
	args := append([]string{"serve"}, targetArgs...)
	return sh.RunV(filepath.Join(binaryDir, binaryName), args...)
}
