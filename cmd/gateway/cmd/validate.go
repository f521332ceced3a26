package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/promptgate/gateway/internal/config"
	"github.com/promptgate/gateway/internal/domain/policy"
	"github.com/promptgate/gateway/internal/policy/store"
)

var validateCmd = &cobra.Command{
	Use:   "validate [path]",
	Short: "Validate a policy document without starting the server",
	Long: `Compile the policy document at path (or the configured policy.path
if omitted) and report whether it is valid, without persisting or applying
it to a running gateway.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	path, err := resolvePolicyPath(args)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read policy file: %w", err)
	}

	var file policy.PolicyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse policy file: %w", err)
	}

	if err := store.Validate(&file); err != nil {
		return fmt.Errorf("policy invalid: %w", err)
	}

	fmt.Printf("%s is valid: %d rule(s)\n", path, len(file.Rules))
	return nil
}

// resolvePolicyPath returns the explicit path argument if given, otherwise
// the policy.path from the loaded configuration.
func resolvePolicyPath(args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}

	cfg, err := config.LoadConfigRaw()
	if err != nil {
		return "", fmt.Errorf("load config: %w", err)
	}
	return cfg.Policy.Path, nil
}
