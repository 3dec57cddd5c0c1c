package api

// Version is the Control Service's semver, returned by GET /version
// (spec §6).
const Version = "1.0.0"
