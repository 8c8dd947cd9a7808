package main

import (
	"github.com/microdroid-test/payload/cmd"
)

func main() {
	cmd.Execute()
}
