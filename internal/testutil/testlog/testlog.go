package testlog

import (
	"testing"

	"github.com/danmuck/formwire/internal/logging"
)

func Start(t *testing.T) {
	t.Helper()
	logging.ConfigureTests()
	logging.Logger.Info().Str("test", t.Name()).Msg("start")
}
