package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Veraticus/spendguard/internal/cli"
	"github.com/Veraticus/spendguard/internal/common"
	"github.com/Veraticus/spendguard/internal/messaging"
	"github.com/Veraticus/spendguard/internal/model"
)

const budgetPrefix = "budget."

func settingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "View and change cooldown settings",
		Long: `View and change the settings read at every interception.

Keys for "settings set":
  cooldown          cooldown length in seconds
  nudges            true or false
  scam-detection    true or false
  budget.<Category> monthly budget; leave empty to remove`,
	}

	cmd.AddCommand(settingsShowCmd())
	cmd.AddCommand(settingsSetCmd())
	cmd.AddCommand(settingsExportCmd())
	cmd.AddCommand(settingsImportCmd())
	return cmd
}

func settingsShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the current settings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClient(cmd, func(ctx context.Context, c *messaging.Client) error {
				settings, err := c.Settings(ctx)
				if err != nil {
					return err
				}
				return writeSettingsYAML(cmd.OutOrStdout(), settings)
			})
		},
	}
	addRemoteFlag(cmd)
	return cmd
}

func settingsSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "set <key>=<value>...",
		Short:   "Change one or more settings",
		Example: "  spendguard settings set cooldown=60 budget.Electronics=200",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(ctx context.Context, c *messaging.Client) error {
				current, err := c.Settings(ctx)
				if err != nil {
					return err
				}
				next, err := applyAssignments(current, args)
				if err != nil {
					return err
				}
				saved, err := replaceSettings(ctx, c, current, next)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Settings updated")) //nolint:forbidigo // User-facing output
				return writeSettingsYAML(cmd.OutOrStdout(), saved)
			})
		},
	}
	addRemoteFlag(cmd)
	return cmd
}

func settingsExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export [file]",
		Short: "Write the settings as YAML to a file or stdout",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(ctx context.Context, c *messaging.Client) error {
				settings, err := c.Settings(ctx)
				if err != nil {
					return err
				}
				if len(args) == 0 {
					return writeSettingsYAML(cmd.OutOrStdout(), settings)
				}

				f, err := os.Create(args[0]) //nolint:gosec // Path comes from the user
				if err != nil {
					return fmt.Errorf("failed to create %s: %w", args[0], err)
				}
				if err := writeSettingsYAML(f, settings); err != nil {
					_ = f.Close()
					return err
				}
				if err := f.Close(); err != nil {
					return fmt.Errorf("failed to write %s: %w", args[0], err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Settings exported to "+args[0])) //nolint:forbidigo // User-facing output
				return nil
			})
		},
	}
	addRemoteFlag(cmd)
	return cmd
}

func settingsImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Replace the settings with a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0]) //nolint:gosec // Path comes from the user
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}
			next, err := parseSettingsYAML(data)
			if err != nil {
				return err
			}

			return withClient(cmd, func(ctx context.Context, c *messaging.Client) error {
				current, err := c.Settings(ctx)
				if err != nil {
					return err
				}
				if _, err := replaceSettings(ctx, c, current, next); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Settings imported from "+args[0])) //nolint:forbidigo // User-facing output
				return nil
			})
		},
	}
	addRemoteFlag(cmd)
	return cmd
}

func writeSettingsYAML(w io.Writer, s model.Settings) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	return enc.Close()
}

// parseSettingsYAML decodes a full settings document. Fields missing from
// the document take their defaults.
func parseSettingsYAML(data []byte) (model.Settings, error) {
	s := model.DefaultSettings()
	if err := yaml.Unmarshal(data, &s); err != nil {
		return model.Settings{}, common.NewUserError("Settings file is not valid YAML", err)
	}
	if err := s.Validate(); err != nil {
		return model.Settings{}, common.NewUserError("Settings file is invalid", err)
	}
	return s, nil
}

// applyAssignments returns s with each key=value applied.
func applyAssignments(s model.Settings, assignments []string) (model.Settings, error) {
	budgets := make(map[string]float64, len(s.CategoryBudgets))
	for k, v := range s.CategoryBudgets {
		budgets[k] = v
	}
	s.CategoryBudgets = budgets

	for _, a := range assignments {
		key, value, ok := strings.Cut(a, "=")
		if !ok {
			return model.Settings{}, common.NewUserError(fmt.Sprintf("Expected key=value, got %q", a), common.ErrInvalidRequest)
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch {
		case key == "cooldown":
			n, err := strconv.Atoi(value)
			if err != nil {
				return model.Settings{}, common.NewUserError("cooldown must be a whole number of seconds", err)
			}
			s.CooldownSeconds = n
		case key == "nudges" || key == "scam-detection":
			b, err := strconv.ParseBool(value)
			if err != nil {
				return model.Settings{}, common.NewUserError(key+" must be true or false", err)
			}
			if key == "nudges" {
				s.EnableNudges = b
			} else {
				s.EnableScamDetection = b
			}
		case strings.HasPrefix(key, budgetPrefix):
			category := strings.TrimPrefix(key, budgetPrefix)
			if value == "" {
				deleteBudget(s.CategoryBudgets, category)
				continue
			}
			limit, err := strconv.ParseFloat(strings.TrimPrefix(value, "$"), 64)
			if err != nil {
				return model.Settings{}, common.NewUserError("budget must be a number", err)
			}
			deleteBudget(s.CategoryBudgets, category)
			s.CategoryBudgets[category] = limit
		default:
			return model.Settings{}, common.NewUserError(fmt.Sprintf("Unknown setting %q", key), common.ErrInvalidRequest)
		}
	}

	if err := s.Validate(); err != nil {
		return model.Settings{}, common.NewUserError("Invalid settings", err)
	}
	return s, nil
}

// deleteBudget removes category, matched case-insensitively.
func deleteBudget(budgets map[string]float64, category string) {
	for name := range budgets {
		if strings.EqualFold(name, category) {
			delete(budgets, name)
		}
	}
}

// replaceSettings stores next in full. Budget maps merge on update, so a
// budget removed from current is cleared with a null patch first.
func replaceSettings(ctx context.Context, c *messaging.Client, current, next model.Settings) (model.Settings, error) {
	for name := range current.CategoryBudgets {
		if _, ok := next.CategoryBudgets[name]; !ok {
			if _, err := c.UpdateSettings(ctx, []byte(`{"categoryBudgets":null}`)); err != nil {
				return model.Settings{}, err
			}
			break
		}
	}

	patch, err := json.Marshal(map[string]any{
		"cooldownSeconds":     next.CooldownSeconds,
		"enableNudges":        next.EnableNudges,
		"enableScamDetection": next.EnableScamDetection,
		"categoryBudgets":     next.CategoryBudgets,
	})
	if err != nil {
		return model.Settings{}, fmt.Errorf("failed to encode settings: %w", err)
	}
	return c.UpdateSettings(ctx, patch)
}
