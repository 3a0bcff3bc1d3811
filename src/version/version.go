package version

// Version is the tool version. Release builds override it via
// -ldflags "-X virt-backup/src/version.Version=v1.2.3".
var Version = "v0.1.0-dev"
