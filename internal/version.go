package internal

// CurrentVersion is overwritten by ldflags during build.
var CurrentVersion = "v0.3.0"
