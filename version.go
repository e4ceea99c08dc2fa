package questgraph

// Version is the library and CLI version. Release builds override it with
// -ldflags "-X github.com/aretw0/questgraph.Version=...".
var Version = "0.3.0-dev"
