// Package render turns an assembled plan into a printable document.
package render

import "errors"

// ErrPDFDependencyMissing indicates headless Chrome is not installed
var ErrPDFDependencyMissing = errors.New("pdf dependency missing")

// Result contains the rendered output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}
