package bootstrap

import (
	"net/http"

	"github.com/jonesrussell/north-cloud/intent-crawler/internal/api"
	"github.com/jonesrussell/north-cloud/intent-crawler/internal/task"
)

// ServerComponents holds the HTTP server and the handler that owns the runs.
type ServerComponents struct {
	Server  *http.Server
	Handler *api.TaskHandler
}

// SetupHTTPServer wires the task API around store and run.
func SetupHTTPServer(deps *CommandDeps, store task.Store, run api.RunFunc) *ServerComponents {
	cfg := deps.Config
	handler := api.NewTaskHandler(store, run, cfg.Pipeline.RunTimeout, api.Defaults{
		MaxPages:  cfg.Pipeline.MaxPages,
		StartPage: cfg.Pipeline.StartPage,
		Mode:      cfg.Pipeline.Mode,
	}, deps.Logger)

	router := api.NewRouter(handler, deps.Registry, deps.Logger)
	return &ServerComponents{
		Server:  api.NewServer(cfg.Server, router),
		Handler: handler,
	}
}
