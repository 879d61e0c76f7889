package imagery

import (
	"github.com/geopulselabs/geopulse/internal/config"
	"github.com/geopulselabs/geopulse/internal/imagery/domain"
	"github.com/geopulselabs/geopulse/internal/imagery/sentinelhub"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("imagery",
	fx.Provide(newProvider),
	fx.Provide(NewFetcher),
)

func newProvider(cfg config.Config, log *zap.Logger) domain.Provider {
	return sentinelhub.New(cfg.Provider, log)
}
