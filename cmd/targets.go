package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/outreach-engine/internal/model"
)

var targetsCmd = &cobra.Command{
	Use:   "targets",
	Short: "Manage the scraping target rotation",
}

var targetsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured targets",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		targets, err := st.ListTargets(ctx)
		if err != nil {
			return err
		}
		if len(targets) == 0 {
			fmt.Println("no targets configured")
			return nil
		}
		for _, t := range targets {
			fmt.Printf("%d\t%s\t%s\n", t.ID, t.Industry, t.Location())
		}
		return nil
	},
}

var (
	targetIndustry string
	targetCountry  string
	targetState    string
)

var targetsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a target to the rotation",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		t := model.Target{
			Industry: targetIndustry,
			Country:  targetCountry,
			State:    targetState,
		}
		id, err := st.CreateTarget(ctx, &t)
		if err != nil {
			return err
		}
		zap.L().Info("target added",
			zap.Int64("id", id),
			zap.String("industry", t.Industry),
			zap.String("location", t.Location()),
		)
		return nil
	},
}

var targetsRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove a target by id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return eris.Wrapf(err, "invalid target id %q", args[0])
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		if err := st.DeleteTarget(ctx, id); err != nil {
			return err
		}
		zap.L().Info("target removed", zap.Int64("id", id))
		return nil
	},
}

// targetsFile is the YAML shape for bulk imports:
//
//	targets:
//	  - industry: plumbers
//	    country: United States
//	    state: Texas
type targetsFile struct {
	Targets []struct {
		Industry string `yaml:"industry"`
		Country  string `yaml:"country"`
		State    string `yaml:"state"`
	} `yaml:"targets"`
}

var targetsImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import targets from a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		data, err := os.ReadFile(args[0])
		if err != nil {
			return eris.Wrapf(err, "read %s", args[0])
		}

		var file targetsFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return eris.Wrapf(err, "parse %s", args[0])
		}
		if len(file.Targets) == 0 {
			return eris.Errorf("%s contains no targets", args[0])
		}
		for i, t := range file.Targets {
			if t.Industry == "" || t.Country == "" {
				return eris.Errorf("target %d: industry and country are required", i+1)
			}
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		for _, t := range file.Targets {
			if _, err := st.CreateTarget(ctx, &model.Target{
				Industry: t.Industry,
				Country:  t.Country,
				State:    t.State,
			}); err != nil {
				return err
			}
		}
		zap.L().Info("targets imported", zap.Int("count", len(file.Targets)))
		return nil
	},
}

func init() {
	targetsAddCmd.Flags().StringVar(&targetIndustry, "industry", "", "industry to search for (required)")
	targetsAddCmd.Flags().StringVar(&targetCountry, "country", "", "country to search in (required)")
	targetsAddCmd.Flags().StringVar(&targetState, "state", "", "state or province (optional)")
	_ = targetsAddCmd.MarkFlagRequired("industry")
	_ = targetsAddCmd.MarkFlagRequired("country")

	targetsCmd.AddCommand(targetsListCmd, targetsAddCmd, targetsRemoveCmd, targetsImportCmd)
	rootCmd.AddCommand(targetsCmd)
}
