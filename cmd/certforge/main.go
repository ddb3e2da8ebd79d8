package main

import (
	"context"
	"os"

	"github.com/alecthomas/kong"
	"github.com/wolfeidau/certforge/cmd/certforge/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		Keygen   commands.KeygenCmd   `cmd:"" help:"Generate a private key"`
		SelfSign commands.SelfSignCmd `cmd:"" name:"self-sign" help:"Create a self-signed certificate"`
		Sign     commands.SignCmd     `cmd:"" help:"Issue certificates signed by an existing CA"`
		Debug    bool                 `help:"Enable debug mode."`
		Version  kong.VersionFlag
	}
)

func main() {
	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Name("certforge"),
		kong.Description("Build and sign X.509 certificates."),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{Debug: cli.Debug, Version: version, Out: os.Stdout})
	cmd.FatalIfErrorf(err)
}
