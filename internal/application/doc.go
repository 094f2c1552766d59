// Package application wires a pool service together: it builds the version
// handler and router from the resolved configuration, binds the listening
// socket and runs the HTTP server, leaving the main packages to CLI parsing
// and signal handling.
package application
