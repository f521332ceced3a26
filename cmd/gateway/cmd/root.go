// Package cmd provides the CLI commands for the policy gateway.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/promptgate/gateway/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "gateway",
	Short: "A policy evaluation gateway for LLM prompt/response traffic",
	Long: `gateway evaluates prompt and response text against a YAML policy
document: deterministic match rules, optional semantic near-duplicate
matching, and optional PII detection and redaction.

Quick start:
  1. Create a policy document: policy.yaml
  2. Run: gateway start

Configuration:
  Config is loaded from gateway.yaml in the current directory,
  $HOME/.gateway/, or /etc/gateway/.

  Environment variables can override config values with the GATEWAY_ prefix.
  Example: GATEWAY_SERVER_ADDR=:9090

Commands:
  start       Start the gateway server
  validate    Validate a policy document without starting the server
  version     Print version information`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./gateway.yaml)")
}

func initConfig() {
	config.InitViper(cfgFile)
}
