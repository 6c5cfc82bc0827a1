package version

// Version is the current version of lustrezfs.
// Use semantic versioning: MAJOR.MINOR.PATCH
const Version = "0.3.0"

// LDDConfigVersion is written to lustre:version on every new target
const LDDConfigVersion = 1
