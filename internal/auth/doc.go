// Package auth verifies JWT bearer tokens for the Hearth Core API.
//
// The core does not mint user tokens or manage accounts — that lives in
// the external account service which shares the signing secret. This
// package validates signature, expiry, and required claims, and exposes
// a small generator used by tests and provisioning tooling.
package auth
