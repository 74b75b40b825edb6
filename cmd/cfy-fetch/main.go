package main

import (
	"fmt"

	cfyfetch "github.com/cloudify-cosmo/cfy-fetch"
)

func main() {
	version, err := cfyfetch.GetVersion()
	if err != nil {
		fmt.Println("Failed to load version:", err)
	}
	execute(version)
}
