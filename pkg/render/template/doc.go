// Package template defines the template engine seam the HTML renderer and the
// page layout render through. The pongo subpackage provides the pongo2 engine.
package template
