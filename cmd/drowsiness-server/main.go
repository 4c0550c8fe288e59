package main

import "github.com/oshokin/drowsiness-alarm/cmd/drowsiness-server/cmd"

func main() {
	cmd.Execute()
}
