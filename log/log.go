package log

import (
	"io"
	"io/ioutil"
	"log"
	"os"
)

var (
	Trace   *log.Logger
	Info    *log.Logger
	Warning *log.Logger
	Error   *log.Logger
)

func init() {
	InitLog()
}

// InitLog (re)creates the package loggers. Trace output is discarded
// unless STROKES_TRACE=1.
func InitLog() {
	var traceHandle io.Writer
	if os.Getenv("STROKES_TRACE") == "1" {
		traceHandle = os.Stdout
	} else {
		traceHandle = ioutil.Discard
	}

	Init(traceHandle, os.Stdout, os.Stdout, os.Stderr)
}

// Init points every logger at its own writer.
func Init(traceHandle, infoHandle, warningHandle, errorHandle io.Writer) {
	Trace = log.New(traceHandle,
		"TRACE: ",
		log.Ldate|log.Ltime|log.Lshortfile)

	Info = log.New(infoHandle,
		"INFO: ",
		log.Ldate|log.Ltime)

	Warning = log.New(warningHandle,
		"WARNING: ",
		log.Ldate|log.Ltime|log.Lshortfile)

	Error = log.New(errorHandle,
		"ERROR: ",
		log.Ldate|log.Ltime|log.Lshortfile)
}
