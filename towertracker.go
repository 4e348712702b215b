package main

import (
	"runtime"

	"towertracker/cmd"
)

// highgui windows must be created, shown and polled from the same OS thread
func init() {
	runtime.LockOSThread()
}

func main() {
	cmd.Execute()
}
