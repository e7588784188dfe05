// Package orchestrator turns an OpenAPI operation into a rendered form: it
// loads the document, converts the operation's request body into a form
// config, builds the descriptor and renders it through the registry.
package orchestrator
