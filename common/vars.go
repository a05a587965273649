package common

// Version is overridden at build time with -ldflags "-X .../common.Version=..."
var Version = "dev"

// PackageName tags metrics exported by the service.
const PackageName = "github.com/educhainverify/credential-service"
