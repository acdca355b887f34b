package env

import "runtime"

func platformName() string {
	return runtime.GOOS
}

func osVersion() string {
	return runtime.GOOS + "/" + runtime.GOARCH
}
