package main

import (
	_ "go.uber.org/automaxprocs"

	"github.com/gatewing-io/gatewing/cmd/gatewing-update-agent/app"
)

func main() {
	app.NewApp().Run()
}
