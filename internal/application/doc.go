// Package application provides application initialization and dependency wiring.
// It opens the applicant store and premium cache selected by configuration and
// injects them, together with the calculator, into the quote service, handlers,
// routers and HTTP server. Nothing is kept in package-level state, so tests can
// build as many independent instances as they need.
package application
