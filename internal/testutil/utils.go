package testutil

import (
	"log"
	"os"
	"testing"

	"github.com/npezzotti/go-anonchat/internal/stats"
	"github.com/stretchr/testify/mock"
)

func TestLogger(t *testing.T) *log.Logger {
	logger := log.New(os.Stdout, "[test] ", log.LstdFlags)
	t.Cleanup(func() {
		logger.SetOutput(os.Stderr)
	})
	return logger
}

// TestStats returns a stats mock that accepts any metric traffic.
func TestStats(t *testing.T) *stats.MockStatsUpdater {
	su := &stats.MockStatsUpdater{}
	su.On("RegisterMetric", mock.Anything).Maybe()
	su.On("Incr", mock.Anything).Maybe()
	su.On("Decr", mock.Anything).Maybe()
	su.On("Run").Maybe()
	return su
}
