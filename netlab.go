package netlab

// Specifies the netlab suite version.
const Version = "1.3.0"

// Build date injected at compile time via -ldflags, e.g.:
// -ldflags="-X 'github.com/grimm00/networking-learning-sub003.BuildDate=...'".
var BuildDate = "unset"
