package logging_test

import (
	"io"
	"testing"

	"github.com/rs/zerolog"

	"virt-backup/src/logging"
)

func TestNew_ParsesLevel(t *testing.T) {
	log := logging.New("debug", io.Discard)
	if log.GetLevel() != zerolog.DebugLevel {
		t.Fatalf("got level %v, want debug", log.GetLevel())
	}
}

func TestNew_UnknownLevelFallsBackToInfo(t *testing.T) {
	log := logging.New("chatty", io.Discard)
	if log.GetLevel() != zerolog.InfoLevel {
		t.Fatalf("got level %v, want info", log.GetLevel())
	}
}
