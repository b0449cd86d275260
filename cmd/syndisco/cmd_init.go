package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dimits-ts/syndisco/pkg/config"
	"github.com/dimits-ts/syndisco/wool"
)

// examplePersonas seed a fresh persona directory.
var examplePersonas = []wool.Persona{
	{
		Username:                   "Emma35",
		Age:                        35,
		Sex:                        "female",
		SexualOrientation:          "heterosexual",
		DemographicGroup:           "white",
		CurrentEmployment:          "software developer",
		EducationLevel:             "bachelor's",
		PersonalityCharacteristics: []string{"analytical", "sarcastic"},
	},
	{
		Username:                   "GeorgeB",
		Age:                        62,
		Sex:                        "male",
		SexualOrientation:          "heterosexual",
		DemographicGroup:           "latino",
		CurrentEmployment:          "retired bus driver",
		EducationLevel:             "high school",
		PersonalityCharacteristics: []string{"stubborn", "friendly"},
	},
	{
		Username:                   "samir_k",
		Age:                        24,
		Sex:                        "male",
		SexualOrientation:          "bisexual",
		DemographicGroup:           "south asian",
		CurrentEmployment:          "graduate student",
		EducationLevel:             "master's",
		PersonalityCharacteristics: []string{"curious", "impatient"},
	},
}

// newInitCmd creates the "syndisco init" subcommand.
func newInitCmd(a *app) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a default config file and example personas",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			path := a.path()
			created, err := config.InitConfig(path, force)
			if err != nil {
				return err
			}
			if !created {
				fmt.Fprintf(out, "Config already exists at %s (use --force to overwrite)\n", path)
			} else {
				fmt.Fprintf(out, "Config initialized at %s\n", path)
			}

			dir := config.Default().Discussions.PersonaDir
			if _, err := os.Stat(dir); err == nil {
				return nil
			}
			for _, p := range examplePersonas {
				if err := wool.SavePersona(filepath.Join(dir, p.Username+".yaml"), p); err != nil {
					return err
				}
			}
			fmt.Fprintf(out, "Wrote %d example personas to %s\n", len(examplePersonas), dir)
			fmt.Fprintln(out, "Edit the config to point 'backends.local' at your model server.")
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing config file")
	return cmd
}
