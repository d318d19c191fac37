package generator

import (
	"io/ioutil"
	"log"
	"os"
)

// PrintDebugInfo selects verbose packet-decision logging, mirroring the
// same package-level debug switch tracer uses. It is read once, when the
// package is initialized; changing it afterwards does not affect logging.
var PrintDebugInfo = false

var logger *log.Logger

func init() {
	w := ioutil.Discard
	if PrintDebugInfo {
		w = os.Stderr
	}
	logger = log.New(w, "", log.Lshortfile)
}
