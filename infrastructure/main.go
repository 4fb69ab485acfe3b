package main

import (
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi/config"

	"github.com/zhang1980s/sakura-pocketbase-stack/internal/settings"
	"github.com/zhang1980s/sakura-pocketbase-stack/internal/stack"
)

func main() {
	pulumi.Run(run)
}

func run(ctx *pulumi.Context) error {
	// 1. Load stack configuration
	params, err := settings.Load(config.New(ctx, settings.Namespace))
	if err != nil {
		return err
	}

	// 2. Declare the deployment
	res, err := stack.Build(ctx, params)
	if err != nil {
		return err
	}

	// 3. Export operator outputs
	res.Outputs.Export(ctx, params.EnableDNS)
	return nil
}
