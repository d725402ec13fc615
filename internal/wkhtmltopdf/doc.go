// Package wkhtmltopdf encodes conversion options for the wkhtmltopdf binary.
//
// Workers are started with --read-args-from-stdin, so flags never travel on
// the OS command line. Instead each conversion writes one control line:
//
//	--page-size "A4" --disable-javascript --javascript-delay 0 - -
//
// followed by the raw HTML document on the same stdin. The two trailing "-"
// tokens select stdin as input and stdout as output.
//
// Options keep insertion order, which is also the order of the emitted flags:
//
//	opts := wkhtmltopdf.DefaultOptions()
//	opts.Set("orientation", "Landscape")
//	line := wkhtmltopdf.ControlLine(opts)
package wkhtmltopdf
