package main

import (
	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/cmd"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cmd.SetVersion(version)
	cmd.Execute()
}
