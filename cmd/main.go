package main

import (
	"github.com/corray333/backend-labs/pharmacy/internal/app"
	"github.com/corray333/backend-labs/pharmacy/internal/config"
)

func main() {
	config.MustInit()
	app.MustNewApp().Run()
}
