package main

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/template"

	"github.com/nao1215/sitemirror/internal/config"
	"github.com/spf13/cobra"
)

//go:embed templates/sitemirror.yaml.tmpl
var configTemplateText string

// configTemplate documents the built-in defaults, so the generated file
// always shows the values the mirror command would actually use.
var configTemplate = template.Must(template.New("sitemirror.yaml").Parse(configTemplateText))

// errConfigExists is returned by init when the target file exists and
// --force was not given.
var errConfigExists = errors.New("configuration file already exists")

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a sitemirror configuration file",
		Long: `Init writes a commented .sitemirror configuration file.

The file lists the built-in defaults (depth, delay, User-Agent) and shows
how to override them for every site or for a single host. Nothing is
active until you uncomment it.

Examples:
  # Create .sitemirror in current directory
  sitemirror init

  # Create the file sitemirror reads from the XDG config directory
  sitemirror init -o ~/.config/sitemirror/config.yaml

  # Replace an existing file
  sitemirror init -f`,
		Args: cobra.NoArgs,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", config.DefaultConfigFile,
		"Output file path for the configuration")
	cmd.Flags().BoolP("force", "f", false,
		"Overwrite existing configuration file")

	return cmd
}

// runInitCmd executes the init command.
func runInitCmd(cmd *cobra.Command, _ []string) error {
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	content, err := renderConfigTemplate(config.NewConfig())
	if err != nil {
		return err
	}
	if err := writeConfigFile(outputPath, content, force); err != nil {
		return err
	}

	printInitSummary(cmd.OutOrStdout(), outputPath)
	return nil
}

// renderConfigTemplate fills the template with the defaults of cfg.
func renderConfigTemplate(cfg *config.Config) ([]byte, error) {
	var buf bytes.Buffer
	if err := configTemplate.Execute(&buf, cfg); err != nil {
		return nil, fmt.Errorf("failed to render config template: %w", err)
	}
	return buf.Bytes(), nil
}

// writeConfigFile writes content to path. The file may hold request
// headers with credentials later on, so it is created owner-only.
func writeConfigFile(path string, content []byte, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%w: %s (use -f to overwrite)", errConfigExists, path)
		}
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, content, 0600); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}
	return nil
}

func printInitSummary(out io.Writer, path string) {
	fmt.Fprintf(out, "Created configuration file: %s\n", path)
	fmt.Fprintln(out, "\nUncomment entries to change, for every site or for one host:")
	fmt.Fprintln(out, "  - crawl depth and delay")
	fmt.Fprintln(out, "  - User-Agent and extra request headers")
}
