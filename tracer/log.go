package tracer

import (
	"io/ioutil"
	"log"
	"os"
)

// PrintDebugInfo selects verbose stop-condition logging, following the
// package-level debug switch used throughout this codebase. It is read
// once, when the package is initialized; changing it afterwards does not
// affect logging.
var PrintDebugInfo = false

var logger *log.Logger

func init() {
	w := ioutil.Discard
	if PrintDebugInfo {
		w = os.Stderr
	}
	logger = log.New(w, "", log.Lshortfile)
}
