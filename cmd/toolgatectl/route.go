package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"toolgate/internal/domain"
	"toolgate/internal/infra/catalog"
	"toolgate/internal/infra/embedder"
	"toolgate/internal/infra/index"
	"toolgate/internal/infra/permission"
	"toolgate/internal/infra/router"
)

func newRouteCommand(opts *cliOptions) *cobra.Command {
	var (
		role       string
		contextTag string
	)

	cmd := &cobra.Command{
		Use:   "route <query>",
		Short: "Rank the tool subset a query would expose",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, _, err := buildRouter(cmd.Context(), opts)
			if err != nil {
				return err
			}
			result, err := r.Route(cmd.Context(), args[0], role, contextTag)
			if err != nil {
				return err
			}
			return printRouteResult(result, opts.jsonOutput)
		},
	}
	cmd.Flags().StringVar(&role, "role", domain.RoleUser, "caller role")
	cmd.Flags().StringVar(&contextTag, "context", "", "conversation domain tag")
	return cmd
}

func newSkillsCommand(opts *cliOptions) *cobra.Command {
	var role string

	cmd := &cobra.Command{
		Use:   "skills <query>",
		Short: "Rank the skills a query would surface",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, _, err := buildRouter(cmd.Context(), opts)
			if err != nil {
				return err
			}
			skills, err := r.RouteSkills(cmd.Context(), args[0], role)
			if err != nil {
				return err
			}
			return printSkills(skills, opts.jsonOutput)
		},
	}
	cmd.Flags().StringVar(&role, "role", domain.RoleUser, "caller role")
	return cmd
}

func newCatalogCommand(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "Validate and list the tool catalog",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			parsed, err := catalog.LoadCatalog(cfg.CatalogPath)
			if err != nil {
				return exitWith(2, err.Error())
			}
			if opts.jsonOutput {
				return writeJSON(map[string]any{
					"tools":  parsed.Tools,
					"skills": parsed.Skills,
				})
			}
			fmt.Printf("tools=%d skills=%d\n", len(parsed.Tools), len(parsed.Skills))
			for _, tool := range parsed.Tools {
				marker := " "
				if tool.Core {
					marker = "*"
				}
				fmt.Printf("%s %-30s %-12s %s\n", marker, tool.Name, tool.Domain, tool.Description)
			}
			for _, skill := range parsed.Skills {
				fmt.Printf("s %-30s %-12s %s\n", skill.Name, skill.Domain, skill.Description)
			}
			return nil
		},
	}
}

func loadConfig(opts *cliOptions) (domain.Config, error) {
	cfg, err := catalog.NewLoader(opts.logger).Load(opts.configPath)
	if err != nil {
		return domain.Config{}, err
	}
	if cfg.CatalogPath == "" {
		return domain.Config{}, exitWith(2, "config: catalogPath is required")
	}
	return cfg, nil
}

// buildRouter assembles just enough of the governor to route a query:
// catalog, embedder, freshly built index, gate, router.
func buildRouter(ctx context.Context, opts *cliOptions) (*router.SemanticRouter, domain.Config, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, domain.Config{}, err
	}
	parsed, err := catalog.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		return nil, domain.Config{}, exitWith(2, err.Error())
	}
	embedClient, err := embedder.NewOpenAIClient(cfg.Embedding)
	if err != nil {
		return nil, domain.Config{}, exitWith(2, err.Error())
	}

	idx := index.New(embedClient, index.Options{Logger: opts.logger})
	if err := idx.Rebuild(ctx, parsed.Tools, parsed.Skills); err != nil {
		fmt.Printf("warning: index build failed (%v), routing degrades to all permitted tools\n", err)
	}

	gate := permission.NewGate(cfg.Permissions, opts.logger)
	r := router.New(idx, embedClient, gate, router.Options{
		Routing: cfg.Routing,
		Logger:  opts.logger,
	})
	return r, cfg, nil
}

func printRouteResult(result domain.RouteResult, jsonOutput bool) error {
	if jsonOutput {
		payload := map[string]any{
			"tools":    result.Names(),
			"degraded": result.Degraded,
		}
		if result.Ambiguity != nil {
			payload["ambiguity"] = result.Ambiguity
		}
		return writeJSON(payload)
	}
	if result.Degraded {
		fmt.Println("degraded: ranking unavailable, showing all permitted tools")
	}
	if result.Ambiguity != nil {
		fmt.Printf("ambiguous: %s (%s) vs %s (%s), gap %.3f\n",
			result.Ambiguity.First, result.Ambiguity.FirstDomain,
			result.Ambiguity.Second, result.Ambiguity.SecondDomain,
			result.Ambiguity.Gap)
	}
	for _, tool := range result.Tools {
		fmt.Printf("%-30s %-12s %s\n", tool.Name, tool.Domain, tool.Description)
	}
	return nil
}

func printSkills(skills []domain.SkillDescriptor, jsonOutput bool) error {
	if jsonOutput {
		return writeJSON(skills)
	}
	if len(skills) == 0 {
		fmt.Println("no matching skills")
		return nil
	}
	for _, skill := range skills {
		keywords := ""
		if len(skill.Keywords) > 0 {
			keywords = " [" + strings.Join(skill.Keywords, ", ") + "]"
		}
		fmt.Printf("%-30s %s%s\n", skill.Name, skill.Description, keywords)
	}
	return nil
}
