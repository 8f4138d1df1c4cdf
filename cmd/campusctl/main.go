package main

import "github.com/pensezy/edutrack/cmd/campusctl/cmd"

func main() {
	cmd.Execute()
}
