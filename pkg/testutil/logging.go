package testutil

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Importing testutil silences logs unless the test binary runs verbosely, in
// which case everything down to trace is emitted.
func init() {
	logrus.SetLevel(logrus.TraceLevel)
	if !isVerbose(os.Args[1:]) {
		logrus.SetOutput(io.Discard)
	}
}

func isVerbose(args []string) bool {
	for _, arg := range args {
		switch arg {
		case "-test.v", "-test.v=true", "--test.v", "--test.v=true":
			return true
		}
	}
	return false
}
