package cmd

// Version is the release version stamped into the binary. Overridden at
// build time via -ldflags "-X github.com/askeland/vaspin/cmd.Version=...".
var Version = "0.1.0-dev"
