package core

import (
	"github.com/rs/zerolog"

	"github.com/kilnbuild/kiln/pkg/config"
	"github.com/kilnbuild/kiln/pkg/logging"
)

// SetupLogger configures global logging from the log section of the
// configuration. Each verbosity step lowers the configured level by one,
// down to debug.
func SetupLogger(cfg config.LogConfig, verbosity int) zerolog.Level {
	level := logging.ParseLevel(cfg.Level)
	for i := 0; i < verbosity && level > zerolog.DebugLevel; i++ {
		level--
	}
	logging.SetFormat(cfg.Format, cfg.NoColor)
	logging.ConfigureGlobal(level)
	return level
}
