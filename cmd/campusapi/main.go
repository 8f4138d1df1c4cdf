package main

import "github.com/pensezy/edutrack/cmd/campusapi/cmd"

func main() {
	cmd.Execute()
}
