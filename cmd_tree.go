package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sercano/qahub/coverage"
	"github.com/sercano/qahub/models"
	"github.com/sercano/qahub/store"
	"github.com/sercano/qahub/workflow"
)

var (
	flagTreeUncovered bool
	flagTreeNoCache   bool
)

var treeCmd = &cobra.Command{
	Use:   "tree",
	Short: "Run the product-tree analysis and print endpoint coverage",
	RunE:  runTree,
}

func runTree(cmd *cobra.Command, args []string) error {
	if err := requireUser(cmd); err != nil {
		return err
	}

	stateStore.Remember(store.KeyTreeProject, flagProject)
	stateStore.Remember(store.KeyTreeVersion, flagVersion)
	stateStore.Remember(store.KeyTreeEnvironment, flagEnv)

	runner := workflow.NewProductTreeRunner(apiClient, nil)
	result, err := runWorkflow(cmd, runner, &models.ProductTreeRequest{
		Project:     flagProject,
		Version:     flagVersion,
		Environment: flagEnv,
		UseCache:    !flagTreeNoCache,
	})
	if err != nil {
		return err
	}

	data, ok := result.Partial.(models.ProductTreeData)
	if !ok {
		return fmt.Errorf("analysis finished without a coverage payload")
	}

	tree := coverage.Build(data)
	if flagTreeUncovered {
		tree = coverage.FilterUncovered(tree)
	}
	printTree(cmd.OutOrStdout(), tree)
	return nil
}

// printTree renders the coverage tree as indented text
func printTree(out io.Writer, tree *coverage.Tree) {
	fmt.Fprintln(out)
	for _, project := range tree.Projects {
		fmt.Fprintf(out, "%s %s\n", percentCell(project.CoveragePercent), project.Name)
		for _, app := range project.Apps {
			fmt.Fprintf(out, "%s   %s  (%d/%d endpoints tested)\n",
				percentCell(app.CoveragePercent), app.Name, app.TestedEndpoints, app.TotalEndpoints)
			for _, ctrl := range app.Controllers {
				fmt.Fprintf(out, "%s     %s\n", percentCell(ctrl.CoveragePercent), ctrl.Name)
				for _, endpoint := range ctrl.Endpoints {
					fmt.Fprintf(out, "%s       %-6s %s  %s\n",
						percentCell(endpoint.CoveragePercent), endpoint.Method, endpoint.FullPath, endpointMarks(endpoint))
				}
			}
		}
	}
}

// percentCell renders a fixed-width percentage with its band
func percentCell(percent int) string {
	return fmt.Sprintf("%3d%% %-5s", percent, coverage.BandFor(percent))
}

// endpointMarks renders the three category verdicts of an endpoint
func endpointMarks(e coverage.EndpointNode) string {
	var marks []string
	if e.HasHappyPassed {
		marks = append(marks, "happy")
	}
	if e.HasAlternatifPassed {
		marks = append(marks, "alternatif")
	}
	if e.HasNegatifPassed {
		marks = append(marks, "negatif")
	}
	if len(marks) == 0 {
		return "(no passed categories)"
	}
	return "(" + strings.Join(marks, ", ") + ")"
}

func init() {
	treeCmd.Flags().StringVar(&flagProject, "project", "", "project to analyze (required)")
	treeCmd.Flags().StringVar(&flagVersion, "version", "", "release version")
	treeCmd.Flags().StringVar(&flagEnv, "env", "", "environment")
	treeCmd.Flags().BoolVar(&flagTreeUncovered, "uncovered", false, "show only endpoints below full coverage")
	treeCmd.Flags().BoolVar(&flagTreeNoCache, "no-cache", false, "force a fresh backend analysis")
	treeCmd.MarkFlagRequired("project")

	rootCmd.AddCommand(treeCmd)
}
