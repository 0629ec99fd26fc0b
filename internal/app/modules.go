package app

import (
	"github.com/vk/framegrid/internal/featuregate"
	"github.com/vk/framegrid/modules/assetloader"
	"github.com/vk/framegrid/modules/render"
	"github.com/vk/framegrid/modules/sprite2d"
	"github.com/vk/framegrid/modules/window"
)

// coreModules is the definitive list of built-in modules compiled into
// the framegrid binary. Registration order here fixes the default
// resolver tie-break between unordered modules.
var coreModules = []featuregate.Module{
	&window.Module{},
	&render.Module{},
	&sprite2d.Module{},
	&assetloader.Module{},
}
