// Package dispatch routes a submitted request to the hooks of the one form it
// belongs to.
//
// Hooks are registered by form name in a Catalog at start-up. Each request
// binds its descriptors to hooks (Catalog.Bind), collects the bound forms in a
// Set, and calls Set.Process with the request method and values. Process runs
// the marker check, the session key check, cancel handling, field rules, the
// validate hook and, only when no error was recorded, the submit hook.
//
// Hooks receive the request's user, session and record store through Env;
// nothing is looked up from globals.
package dispatch
