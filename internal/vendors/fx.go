package vendors

import (
	"github.com/smallbiznis/tiffin/internal/vendors/repository"
	"github.com/smallbiznis/tiffin/internal/vendors/service"
	"go.uber.org/fx"
)

var Module = fx.Module("vendors.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
