package diagram

// Version is the release of the module, set at build time with
// -ldflags "-X github.com/aretw0/diagram.Version=v1.2.3".
var Version = "dev"
