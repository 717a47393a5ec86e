// cmd/tools/agendactl/main.go
package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/codr1/agendabeleza/internal/config"
	"github.com/codr1/agendabeleza/internal/db"
)

var CLI struct {
	Config string `help:"Config file path." type:"path" default:"config/app.yaml" env:"CONFIG_PATH"`

	Owner struct {
		Create OwnerCreateCmd `cmd:"" help:"Register a business owner."`
		List   OwnerListCmd   `cmd:"" help:"List business owners."`
	} `cmd:"" help:"Manage business owners."`
	Key struct {
		Issue  KeyIssueCmd  `cmd:"" help:"Issue an API key for an owner."`
		Revoke KeyRevokeCmd `cmd:"" help:"Revoke an API key."`
	} `cmd:"" help:"Manage API keys."`
	Migrate MigrateCmd `cmd:"" help:"Run schema migrations from a directory."`
}

// Context carries what every command needs.
type Context struct {
	ConfigPath string
}

// openDB loads the configuration and opens the database it names.
func (c *Context) openDB() (*db.DB, error) {
	cfg, err := config.Load(c.ConfigPath)
	if err != nil {
		return nil, err
	}
	return db.NewFromConfig(cfg)
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("agendactl"),
		kong.Description("Administration tool for the appointment service"),
		kong.UsageOnError(),
	)

	if err := ctx.Run(&Context{ConfigPath: CLI.Config}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
