// Package openapi derives form configurations from OpenAPI 3 documents. The
// request body schema of one operation becomes the element list of a form
// whose action and method follow the operation.
package openapi
