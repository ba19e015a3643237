package app

import (
	"github.com/vk/weave/internal/registry"
	"github.com/vk/weave/modules/core"
	"github.com/vk/weave/modules/ctyfuncs"
	"github.com/vk/weave/modules/env_vars"
	"github.com/vk/weave/modules/print"
)

// coreModules is the definitive list of all modules that are compiled into
// the weave binary.
func coreModules() []registry.Module {
	return []registry.Module{
		&core.Module{},
		&ctyfuncs.Module{},
		&env_vars.Module{},
		&print.Module{},
	}
}
