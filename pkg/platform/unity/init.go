package unity

import (
	"github.com/supercrema/adforge/pkg/config"
	"github.com/supercrema/adforge/pkg/platform/core"
	"github.com/supercrema/adforge/pkg/platform/registry"
)

func init() {
	registry.Register(Network, func(cfg *config.BaseConfig) (core.Adapter, error) {
		return New(cfg)
	})
}
