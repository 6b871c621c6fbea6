package version

// Current is the released module version, without a "v" prefix.
const Current = "1.0.0"
