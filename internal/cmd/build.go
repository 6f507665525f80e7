package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sbeschke/ducttape/internal/builder"
	"github.com/sbeschke/ducttape/internal/fixture"
	"github.com/sbeschke/ducttape/internal/inputcheck"
	"github.com/sbeschke/ducttape/internal/unpack"
	"github.com/sbeschke/ducttape/internal/version"
)

var (
	buildWorkflowDir string
	buildVersionDir  string
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Compile and unpack the fixture workflow, check inputs, and record a version",
	RunE:  runBuild,
}

func init() {
	buildCmd.Flags().StringVar(&buildWorkflowDir, "workflow-dir", ".", "directory literal input paths are resolved relative to")
	buildCmd.Flags().StringVar(&buildVersionDir, "version-dir", "versions", "root of the persisted version history")
}

func runBuild(c *cobra.Command, _ []string) error {
	logger := newLogger("ducttape")

	wf := fixture.S1()

	g, _, err := builder.Build(wf, builder.WithLogger(logger.Named("builder")))
	if err != nil {
		return fmt.Errorf("build: %w", err)
	}

	result, err := unpack.Unpack(g, nil)
	if err != nil {
		return fmt.Errorf("unpack: %w", err)
	}

	out := c.OutOrStdout()
	for _, v := range result.Order {
		for _, rt := range result.ByVertex[v] {
			fmt.Fprintf(out, "%s/%s\n", rt.Name(), rt.RealizationName())
		}
	}

	if err := inputcheck.Check(result.All(), buildWorkflowDir); err != nil {
		fmt.Fprintf(out, "input check:\n%s\n", err)
	}

	hist, err := version.Load(buildVersionDir, version.WithLogger(logger.Named("version")))
	if err != nil {
		return fmt.Errorf("load version history: %w", err)
	}

	ids := make([]version.VersionedTaskId, 0, len(result.All()))
	next := hist.NextVersion()
	for _, rt := range result.All() {
		ids = append(ids, version.VersionedTaskId{Task: rt.Name(), Realization: rt.RealizationName(), Version: next})
	}
	info, err := hist.Persist(ids)
	if err != nil {
		return fmt.Errorf("persist version: %w", err)
	}
	fmt.Fprintf(out, "persisted version %d (%d tasks) under %s\n", info.Version, len(info.Tasks), buildVersionDir)

	return nil
}
