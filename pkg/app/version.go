package app

// Name is the service name used in log lines.
const Name = "ctfchannels"

// Version is the service version. Release builds override it with -ldflags.
var Version = "dev"
