package types

// Version is the canonical project version.
// The server, client and wire format share this version.
const Version = "0.3.0"
