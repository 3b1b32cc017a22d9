package cli

import (
	"encoding/json"
	"fmt"
	"io"
)

// emit writes v as indented JSON, or calls text for the text format.
func emit(w io.Writer, opts *RootOptions, v interface{}, text func(io.Writer)) error {
	if opts.Format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(w)
	return nil
}

func line(w io.Writer, format string, args ...interface{}) {
	fmt.Fprintf(w, format+"\n", args...)
}
