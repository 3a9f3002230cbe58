package version

// Commit is set at build time with -ldflags "-X .../internal/version.Commit=<sha>".
var Commit = "dev"
