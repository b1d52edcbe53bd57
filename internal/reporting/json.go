// File: internal/reporting/json.go
package reporting

import (
	"io"

	jsoniter "github.com/json-iterator/go"

	"github.com/vulngate/vulngate/internal/gate"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// jsonReporter emits the verdict as a machine-readable JSON document.
type jsonReporter struct {
	writer io.WriteCloser
}

func newJSONReporter(writer io.WriteCloser) *jsonReporter {
	return &jsonReporter{writer: writer}
}

func (r *jsonReporter) Write(verdict *gate.Verdict) error {
	enc := json.NewEncoder(r.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(verdict)
}

func (r *jsonReporter) Close() error { return r.writer.Close() }
