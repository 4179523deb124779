package util_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/pterm/pterm"

	"github.com/1ureka/aselink/internal/util"
)

func TestLogFieldsOnlyAtDebug(t *testing.T) {
	writer, level := pterm.DefaultLogger.Writer, pterm.DefaultLogger.Level
	defer func() {
		pterm.DefaultLogger.Writer = writer
		pterm.DefaultLogger.Level = level
	}()

	var buf bytes.Buffer
	util.SetLogOutput(&buf)
	pterm.DefaultLogger.Level = pterm.LogLevelInfo

	util.LogFields("dispatched", "tag", "Image")
	if buf.Len() != 0 {
		t.Fatalf("debug fields logged at info level: %q", buf.String())
	}

	util.EnableDebug()
	util.LogFields("dispatched", "tag", "Image", "bytes", 12)
	out := buf.String()
	for _, want := range []string{"dispatched", "tag", "Image", "bytes", "12"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q is missing %q", out, want)
		}
	}
}
