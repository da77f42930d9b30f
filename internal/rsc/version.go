package rsc

// Version is set at compile time.
var Version string

// Component is set at startup time to identify which binary of the cache is
// running (e.g. "rsc-api" or "rsc-janitor").
var Component = "rsc"

// AcceptedVersionPrefix is the product prefix that GET /version/check
// requires the client-supplied version string to start with.
const AcceptedVersionPrefix = "wake/"
