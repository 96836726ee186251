package main

import (
	"go.uber.org/fx"

	"github.com/sultanlodh/Stream/internal/app"
)

func main() {
	fx.New(app.Module).Run()
}
