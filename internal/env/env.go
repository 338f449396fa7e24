package env

import (
	"snowmelt-controller/internal/config"
)

var Cfg *config.Config
