// Package model defines form descriptors: the declarative description of a
// submittable form, its ordered elements and their field rules. Pages build a
// descriptor per request from a Config literal (or load them from a Library of
// YAML/JSON files); NewBuilder rejects structurally malformed configurations
// with errors wrapping ErrConfig. Field values are never inspected here; rule
// evaluation happens in the dispatcher. Marker and cancel field names derive
// from the descriptor and element names so renderers and the dispatcher agree
// on the wire contract without sharing state.
package model
