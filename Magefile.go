//go:build mage
// +build mage

package main

import (
	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

var Default = Build

func Build() error {
	return sh.Run(mg.GoCmd(), "build", "./...")
}

func Test() error {
	args := []string{"test"}
	if mg.Verbose() {
		args = append(args, "-v")
	}
	args = append(args, "./...")
	return sh.RunV(mg.GoCmd(), args...)
}

func Vet() error {
	return sh.RunV(mg.GoCmd(), "vet", "./...")
}

func Lint() error {
	return sh.RunV("staticcheck", "./...")
}

// Check runs Vet, Lint, and Test in order.
func Check() {
	mg.SerialDeps(Vet, Lint, Test)
}
