package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kadirpekel/notely/pkg/config"
)

// redacted replaces secrets in printed configs.
const redacted = "<redacted>"

// ValidateCmd validates a configuration file.
type ValidateCmd struct {
	// Config is the configuration file path (positional argument)
	Config string `arg:"" name:"config" help:"Configuration file path." placeholder:"PATH"`

	// Format specifies the output format
	Format string `short:"f" help:"Output format: compact, verbose, json." default:"compact" enum:"compact,verbose,json"`

	// PrintConfig prints the expanded configuration
	PrintConfig bool `short:"p" name:"print-config" help:"Print the expanded configuration (defaults applied, env vars resolved, secrets redacted)."`
}

// Run executes the validate command.
func (c *ValidateCmd) Run() error {
	return c.run(context.Background(), os.Stdout, os.Stderr)
}

func (c *ValidateCmd) run(ctx context.Context, stdout, stderr io.Writer) error {
	_ = config.LoadDotEnvForConfig(c.Config)

	// LoadConfigFile applies defaults and validates.
	cfg, loader, err := config.LoadConfigFile(ctx, c.Config)
	if err != nil {
		return printLoadError(stdout, stderr, c.Format, c.Config, err)
	}
	defer loader.Close()

	if c.PrintConfig {
		return printExpandedConfig(stdout, c.Format, c.Config, cfg)
	}

	printSuccess(stdout, c.Format, c.Config)
	return nil
}

// ValidationError represents a single validation error.
type ValidationError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// printLoadError prints a configuration load error.
func printLoadError(stdout, stderr io.Writer, format, file string, err error) error {
	switch format {
	case "json":
		printJSONResult(stdout, false, file, []ValidationError{{Type: "load", Message: err.Error()}})
	case "verbose":
		fmt.Fprintf(stderr, "Configuration Load Error\n")
		fmt.Fprintf(stderr, "========================\n\n")
		fmt.Fprintf(stderr, "File:    %s\n", file)
		fmt.Fprintf(stderr, "Error:   %s\n", err.Error())
	default: // compact
		fmt.Fprintf(stderr, "%s: load error: %s\n", file, err.Error())
	}
	return fmt.Errorf("config load failed")
}

// printSuccess prints a success message.
func printSuccess(stdout io.Writer, format, file string) {
	switch format {
	case "json":
		printJSONResult(stdout, true, file, nil)
	case "verbose":
		fmt.Fprintf(stdout, "Configuration Validation Successful\n")
		fmt.Fprintf(stdout, "===================================\n\n")
		fmt.Fprintf(stdout, "File:   %s\n", file)
		fmt.Fprintf(stdout, "Status: OK Valid\n")
	default: // compact
		fmt.Fprintf(stdout, "%s: valid\n", file)
	}
}

// printExpandedConfig prints the expanded configuration with secrets redacted.
func printExpandedConfig(stdout io.Writer, format, file string, cfg *config.Config) error {
	printable := *cfg
	if printable.LLM.APIKey != "" {
		printable.LLM.APIKey = redacted
	}

	switch format {
	case "json":
		encoder := json.NewEncoder(stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(printable); err != nil {
			return fmt.Errorf("failed to encode config as JSON: %w", err)
		}
	default:
		fmt.Fprintf(stdout, "# Expanded Configuration from: %s\n", file)
		fmt.Fprintf(stdout, "# (defaults applied, env vars resolved)\n\n")

		encoder := yaml.NewEncoder(stdout)
		encoder.SetIndent(2)
		if err := encoder.Encode(printable); err != nil {
			return fmt.Errorf("failed to encode config as YAML: %w", err)
		}
		return encoder.Close()
	}
	return nil
}

type jsonOutput struct {
	Valid  bool              `json:"valid"`
	File   string            `json:"file"`
	Errors []ValidationError `json:"errors,omitempty"`
}

func printJSONResult(w io.Writer, valid bool, file string, errors []ValidationError) {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(jsonOutput{Valid: valid, File: file, Errors: errors}); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
	}
}
