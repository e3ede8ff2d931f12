package app

import (
	"fmt"

	genericapiserver "k8s.io/apiserver/pkg/server"

	"github.com/gatewing-io/gatewing/cmd/gatewing-update-agent/app/options"
	"github.com/gatewing-io/gatewing/pkg/app"
	"github.com/gatewing-io/gatewing/pkg/log"
)

const (
	commandName = "gatewing-update-agent"
	commandDesc = `The Gatewing update agent runs on a fleet device. It listens for
firmware update commands on the message bus, drives the secure image
transfer to the inactive storage bank and reboots the device into the
new image, tracking update provenance across boots.`
)

func NewApp() *app.App {
	opts := options.NewAgentOptions()
	application := app.NewApp(
		commandName,
		"Launch the Gatewing firmware update agent",
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithDefaultValidArgs(),
		app.WithRunFunc(run(opts)),
	)
	return application
}

func run(opts *options.AgentOptions) app.RunFunc {
	return func() error {
		log.Init(opts.Log)

		ctx := genericapiserver.SetupSignalContext()

		cfg, err := opts.Config()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		agent, err := cfg.NewAgent(ctx)
		if err != nil {
			return fmt.Errorf("failed to create agent: %w", err)
		}

		return agent.Run(ctx)
	}
}
