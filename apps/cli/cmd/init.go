package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/abdul-hamid-achik/pagespec/packages/core/config"
	"github.com/abdul-hamid-achik/pagespec/packages/history"
	"github.com/spf13/cobra"
)

var forceInit bool

var initCmd = &cobra.Command{
	Use:   "init [directory]",
	Short: "Initialize a new pagespec project",
	Long: `Initialize a new pagespec project in the current directory, or in
the given one.

This creates:
  - pagespec.yaml             - Configuration file with environments
  - pages/home.page.yaml      - Example suite for a home page
  - pages/blog.page.yaml      - Example suite using groups, within and after

Examples:
  pagespec init
  pagespec init ./site-tests --force`,
	Args: cobra.MaximumNArgs(1),
	RunE: initCommand,
}

func init() {
	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Overwrite existing files")
}

const homeSuite = `name: Home Page
visit: /
tags: [smoke]
scenarios:
  - name: has blog title
    steps:
      - selector: h1
        contains: Caffeinated Thoughts
  - name: links to the about page
    steps:
      - selector: nav a[href='/about/']
        exists: true
  - name: old twitter handle is gone
    steps:
      - selector: a[href='https://twitter.com/dkpk']
        notExists: true
after:
  - click: a.header-link-home
  - url:
      includes: /
`

const blogSuite = `name: Blog
visit: /
groups:
  - name: Latest post
    scenarios:
      - name: shows a title and a date
        steps:
          - within: article:first-of-type
            steps:
              - selector: h2
                exists: true
              - selector: time
                attr: datetime
  - name: Footer
    scenarios:
      - name: has a copyright line
        steps:
          - selector: footer
            matches: /copyright|©/i
`

func initCommand(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) == 1 {
		dir = args[0]
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return err
	}

	configFile := filepath.Join(dir, "pagespec.yaml")
	homeFile := filepath.Join(dir, "pages", "home.page.yaml")
	blogFile := filepath.Join(dir, "pages", "blog.page.yaml")

	if !forceInit {
		for _, f := range []string{configFile, homeFile, blogFile} {
			if _, err := os.Stat(f); err == nil {
				return exitErrorf(ExitUsageError, "file already exists: %s (use --force to overwrite)", f)
			}
		}
	}

	if err := os.MkdirAll(filepath.Join(dir, "pages"), 0755); err != nil {
		return fmt.Errorf("failed to create pages directory: %w", err)
	}

	cfg := config.DefaultConfig()
	cfg.History = history.DefaultPath
	cfg.Headers = map[string]string{
		"User-Agent": "pagespec/" + version,
	}
	cfg.Environments = map[string]map[string]string{
		"dev": {
			"baseUrl": "http://localhost:4000",
		},
		"staging": {
			"baseUrl": "https://staging.example.com",
		},
		"prod": {
			"baseUrl": "https://example.com",
		},
	}
	if err := cfg.SaveConfig(configFile); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", configFile)

	examples := []struct{ path, content string }{
		{homeFile, homeSuite},
		{blogFile, blogSuite},
	}
	for _, ex := range examples {
		if err := os.WriteFile(ex.path, []byte(ex.content), 0644); err != nil {
			return fmt.Errorf("failed to create example suite: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", ex.path)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\npagespec project initialized!\n")
	fmt.Fprintf(cmd.OutOrStdout(), "Run 'pagespec run pages/' to execute the example suites.\n")

	return nil
}
