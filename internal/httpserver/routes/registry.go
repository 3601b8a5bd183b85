// Package routes collects route groups; each file registers its own group from init.
package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/linkvault/internal/httpserver/deps"
	"github.com/MrSnakeDoc/linkvault/internal/logger"
)

type Registrar func(r chi.Router, d deps.Deps)

type group struct {
	name string
	reg  Registrar
}

var registry []group

func Register(name string, reg Registrar) {
	registry = append(registry, group{name: name, reg: reg})
}

// RegisterAll mounts every group on r. Called once from httpserver.NewRouter.
func RegisterAll(r chi.Router, d deps.Deps) {
	names := make([]string, 0, len(registry))
	for _, g := range registry {
		g.reg(r, d)
		names = append(names, g.name)
	}
	if d.Logger != nil {
		d.Logger.Debug("routes registered", logger.Strings("groups", names))
	}
}
