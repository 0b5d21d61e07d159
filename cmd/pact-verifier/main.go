// Command pact-verifier is a thin CLI over pkg/provider.Verifier: it loads
// pacts from a file, a directory, a URL or a Pact Broker, replays them
// against a running provider, and reports the result.
package main

import (
	"os"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}
