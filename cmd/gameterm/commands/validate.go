package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/moolen/gameterm/internal/aliasstore"
	"github.com/moolen/gameterm/internal/catalog"
	"github.com/moolen/gameterm/internal/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration, catalog, policy and alias files",
	RunE:  runValidate,
}

func runValidate(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	fmt.Fprintf(out, "config:  ok (server %s)\n", cfg.ServerURL)

	if cfg.CatalogPath != "" {
		file, err := config.LoadCatalogFile(cfg.CatalogPath)
		if err != nil {
			return err
		}
		defs, err := catalog.Build(file)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "catalog: ok (%d commands)\n", len(defs))
	}

	if cfg.PolicyPath != "" {
		policy, err := config.LoadPolicyFile(cfg.PolicyPath)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "policy:  ok (%d entries)\n", len(policy.Commands))
	}

	if cfg.AliasPath != "" {
		aliases, err := aliasstore.New(cfg.AliasPath).Load()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "aliases: ok (%d aliases)\n", len(aliases))
	}
	return nil
}
