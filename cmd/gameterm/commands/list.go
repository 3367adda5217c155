package commands

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/moolen/gameterm/internal/catalog"
	"github.com/moolen/gameterm/internal/commands"
	"github.com/moolen/gameterm/internal/config"
)

var (
	listLevel int
	listAll   bool
)

var listCmd = &cobra.Command{
	Use:   "commands",
	Short: "List the commands a user would see",
	Long: `List the built-in and catalog commands, after applying the policy
file, as a user of the given access level would see them in help.`,
	RunE: runList,
}

func init() {
	listCmd.Flags().IntVar(&listLevel, "level", -1, "Access level to list for (defaults to user.access_level)")
	listCmd.Flags().BoolVar(&listAll, "all", false, "Include commands hidden at this level")
	listCmd.Flags().StringVar(&catalogPath, "catalog", "", "Command catalog file (overrides catalog_path)")
	listCmd.Flags().StringVar(&policyPath, "policy", "", "Command policy file (overrides policy_path)")
}

func runList(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("catalog") {
		cfg.CatalogPath = catalogPath
	}
	if cmd.Flags().Changed("policy") {
		cfg.PolicyPath = policyPath
	}

	registry, err := buildRegistry(cfg)
	if err != nil {
		return err
	}
	if cfg.PolicyPath != "" {
		policy, err := config.LoadPolicyFile(cfg.PolicyPath)
		if err != nil {
			return err
		}
		for _, entry := range policy.Commands {
			registry.ApplyPatch(entry.Name, catalog.Patch(entry))
		}
	}

	user := commands.User{Name: cfg.User.Name, AccessLevel: cfg.User.AccessLevel}
	if listLevel >= 0 {
		user.AccessLevel = listLevel
	}

	defs := registry.Discoverable(user)
	if listAll {
		defs = registry.All()
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("NAME", "CATEGORY", "ACCESS", "VISIBLE", "USABLE", "DESCRIPTION")
	for _, def := range defs {
		t.Row(
			def.Name,
			def.Category,
			strconv.Itoa(def.AccessLevel),
			strconv.Itoa(def.Visibility),
			yesNo(commands.CanUse(user, def)),
			def.Description,
		)
	}

	fmt.Fprintln(cmd.OutOrStdout(), t.String())
	fmt.Fprintf(cmd.OutOrStdout(), "%d commands at level %d\n", len(defs), user.AccessLevel)
	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
