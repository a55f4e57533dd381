package main

import (
	"os"

	"github.com/trajectly/trt/internal/trtcli"
)

var version = "0.0.0-dev"

func main() {
	r := trtcli.Runner{
		Version: version,
	}
	os.Exit(r.Run(os.Args[1:]))
}
