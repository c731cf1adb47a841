package realtimemesh

import (
	"fmt"

	"github.com/gekko3d/realtimemesh/rt/core"
)

type Logger = core.Logger

// LoggingModule installs a zap backed logger as a resource.
type LoggingModule struct {
	Prefix string
	Debug  bool
	// Format is "console" (default) or "json".
	Format string
}

func (m LoggingModule) Install(app *App, cmd *Commands) {
	logger, err := core.NewZapLogger(m.Prefix, m.Debug, m.Format)
	if err != nil {
		panic(fmt.Sprintf("LoggingModule: %v", err))
	}
	cmd.AddResources(logger)
}

// Logger returns the first Logger resource if present, otherwise a no-op logger.
// Safe to call at any time; never returns nil.
func (app *App) Logger() Logger {
	if app == nil {
		return core.NewNopLogger()
	}
	for _, r := range app.resourceOrder {
		if l, ok := r.(Logger); ok {
			return l
		}
	}
	return core.NewNopLogger()
}
