package cmd

import (
	"fmt"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/Krayangel/ARSW-LAB03/cmd/highlander"
	"github.com/Krayangel/ARSW-LAB03/pkg/config"
	"github.com/Krayangel/ARSW-LAB03/pkg/logger"
	"github.com/Krayangel/ARSW-LAB03/pkg/utils"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage run profiles",
	Long:  `Manage named run settings stored in $HOME/.immortals/profiles.yaml`,
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved profiles",
	RunE:  listProfiles,
}

var profileShowCmd = &cobra.Command{
	Use:   "show NAME",
	Short: "Print a profile as YAML",
	Args:  cobra.ExactArgs(1),
	RunE:  showProfile,
}

var profileAddCmd = &cobra.Command{
	Use:   "add [NAME]",
	Short: "Add a new profile",
	Args:  cobra.MaximumNArgs(1),
	RunE:  addProfile,
}

var profileRemoveCmd = &cobra.Command{
	Use:   "remove [NAME]",
	Short: "Remove a profile",
	Args:  cobra.MaximumNArgs(1),
	RunE:  removeProfile,
}

func init() {
	profileRemoveCmd.Flags().BoolP("yes", "y", false, "do not ask for confirmation")

	profileCmd.AddCommand(profileListCmd)
	profileCmd.AddCommand(profileShowCmd)
	profileCmd.AddCommand(profileAddCmd)
	profileCmd.AddCommand(profileRemoveCmd)
}

func listProfiles(cmd *cobra.Command, _ []string) error {
	profiles, err := config.LoadProfiles()
	if err != nil {
		return fmt.Errorf("failed to load profiles: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(profiles.Profiles) == 0 {
		_, _ = fmt.Fprintln(out, "No profiles configured")
		return nil
	}

	table := logger.NewTable("NAME", "COUNT", "MODE", "HEALTH", "DAMAGE", "DURATION")
	for _, name := range profiles.Names() {
		s, _ := profiles.Find(name)
		table.AddRow(name, fmt.Sprint(s.Count), s.FightMode, fmt.Sprint(s.Health), fmt.Sprint(s.Damage), s.Duration.String())
	}
	table.Fprint(out)
	return nil
}

func showProfile(cmd *cobra.Command, args []string) error {
	profiles, err := config.LoadProfiles()
	if err != nil {
		return fmt.Errorf("failed to load profiles: %w", err)
	}

	s, ok := profiles.Find(args[0])
	if !ok {
		return fmt.Errorf("profile %s not found", args[0])
	}
	_, _ = fmt.Fprint(cmd.OutOrStdout(), s.String())
	return nil
}

func addProfile(_ *cobra.Command, args []string) error {
	profiles, err := config.LoadProfiles()
	if err != nil {
		return fmt.Errorf("failed to load profiles: %w", err)
	}

	var name string
	if len(args) == 1 {
		name = args[0]
	} else {
		namePrompt := &survey.Input{
			Message: "Profile name:",
		}
		if err := survey.AskOne(namePrompt, &name, survey.WithValidator(survey.Required)); err != nil {
			return err
		}
	}

	if _, exists := profiles.Find(name); exists {
		return fmt.Errorf("profile %s already exists", name)
	}

	descriptor := highlander.New().Descriptor()
	answers, err := utils.PromptForParameters(descriptor.Parameters, config.Default().Params())
	if err != nil {
		return fmt.Errorf("failed to get parameters: %w", err)
	}

	settings, err := highlander.ValidateAndParse(answers, nil)
	if err != nil {
		return fmt.Errorf("invalid profile: %w", err)
	}

	if err := profiles.Add(name, settings); err != nil {
		return err
	}

	if err := config.SaveProfiles(profiles); err != nil {
		return fmt.Errorf("failed to save profiles: %w", err)
	}

	logger.Successf("Profile %s added", name)
	return nil
}

func removeProfile(cmd *cobra.Command, args []string) error {
	profiles, err := config.LoadProfiles()
	if err != nil {
		return fmt.Errorf("failed to load profiles: %w", err)
	}

	if len(profiles.Profiles) == 0 {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No profiles to remove")
		return nil
	}

	var selected string
	if len(args) == 1 {
		selected = args[0]
	} else {
		prompt := &survey.Select{
			Message: "Select profile to remove:",
			Options: profiles.Names(),
		}
		if err := survey.AskOne(prompt, &selected); err != nil {
			return err
		}
	}

	if yes, _ := cmd.Flags().GetBool("yes"); !yes {
		var confirm bool
		confirmPrompt := &survey.Confirm{
			Message: fmt.Sprintf("Are you sure you want to remove %s?", selected),
			Default: false,
		}
		if err := survey.AskOne(confirmPrompt, &confirm); err != nil {
			return err
		}
		if !confirm {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Removal cancelled")
			return nil
		}
	}

	if !profiles.Remove(selected) {
		return fmt.Errorf("profile %s not found", selected)
	}

	if err := config.SaveProfiles(profiles); err != nil {
		return fmt.Errorf("failed to save profiles: %w", err)
	}

	logger.Successf("Profile %s removed", selected)
	return nil
}
