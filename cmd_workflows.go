package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sercano/qahub/api"
	"github.com/sercano/qahub/models"
	"github.com/sercano/qahub/store"
	"github.com/sercano/qahub/workflow"
)

var (
	flagYes        bool
	flagSourceType string
	flagJSONData   string
	flagJSONFile   string
	flagProjectKey string
	flagCycleID    string
	flagCycleName  string
	flagVersion    string
	flagProject    string
	flagEnv        string
)

var jiragenCmd = &cobra.Command{
	Use:   "jiragen",
	Short: "Validate generated tests and create them in Jira",
	RunE:  runJiraGen,
}

var buglinkCmd = &cobra.Command{
	Use:   "buglink",
	Short: "Link failed test results in a cycle to their bug tickets",
	RunE:  runBugLink,
}

var cycleaddCmd = &cobra.Command{
	Use:   "cycleadd",
	Short: "Compose a test cycle from planned executions",
	RunE:  runCycleAdd,
}

var apirerunCmd = &cobra.Command{
	Use:   "apirerun",
	Short: "Re-run the API tests of a cycle",
	RunE:  runAPIRerun,
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Stream the test-result analysis table",
	RunE:  runAnalysis(workflow.NewTestAnalysisRunner),
}

var apianalyzeCmd = &cobra.Command{
	Use:   "apianalyze",
	Short: "Stream the API-result analysis table",
	RunE:  runAnalysis(workflow.NewAPIAnalysisRunner),
}

// runWorkflow drives one runner to a terminal phase: it prints log frames
// as they arrive, asks for confirmation at the ready phase unless --yes
// was given, and reports the failure reason on a failed run.
func runWorkflow(cmd *cobra.Command, runner *workflow.Runner, body interface{}) (workflow.State, error) {
	out := cmd.OutOrStdout()

	updates, unsubscribe := runner.Bus().Subscribe()
	printerDone := make(chan struct{})
	go func() {
		defer close(printerDone)
		for update := range updates {
			if update.Kind == workflow.UpdateLog {
				fmt.Fprintln(out, "  "+update.Line)
			}
		}
	}()
	drain := func() {
		unsubscribe()
		<-printerDone
	}

	if err := runner.Start(cmd.Context(), body); err != nil {
		drain()
		return workflow.State{}, err
	}

	state := runner.State()
	if state.Phase == workflow.PhaseReady {
		if !flagYes && !confirm(cmd, "Execute?") {
			runner.Reset()
			drain()
			fmt.Fprintln(out, "Discarded.")
			return runner.State(), nil
		}
		if err := runner.Execute(cmd.Context()); err != nil {
			drain()
			return workflow.State{}, err
		}
		state = runner.State()
	}

	drain()
	if state.Phase == workflow.PhaseFailed {
		return state, fmt.Errorf("workflow failed: %s", state.Err)
	}
	return state, nil
}

// confirm prompts on stdin with a y/N question
func confirm(cmd *cobra.Command, question string) bool {
	fmt.Fprintf(cmd.OutOrStdout(), "%s [y/N]: ", question)
	reader := bufio.NewReader(cmd.InOrStdin())
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

func runJiraGen(cmd *cobra.Command, args []string) error {
	if err := requireUser(cmd); err != nil {
		return err
	}

	jsonData := flagJSONData
	if flagJSONFile != "" {
		raw, err := os.ReadFile(flagJSONFile)
		if err != nil {
			return fmt.Errorf("reading test JSON: %w", err)
		}
		jsonData = string(raw)
	}
	if jsonData == "" {
		return fmt.Errorf("provide the test payload with --json or --file")
	}
	stateStore.Remember(store.KeyLastWorkflowSource, flagSourceType)

	runner := workflow.NewJiraGenRunner(apiClient, nil, flagProjectKey)
	result, err := runWorkflow(cmd, runner, &models.JiraGenRequest{
		SourceType: flagSourceType,
		JSONData:   jsonData,
		ProjectKey: flagProjectKey,
	})
	if err != nil {
		return err
	}
	printJiraGenSummary(cmd.OutOrStdout(), result)
	return nil
}

func printJiraGenSummary(out io.Writer, state workflow.State) {
	result, ok := state.Partial.(*models.JiraGenResult)
	if !ok {
		return
	}
	fmt.Fprintf(out, "\n%d tests: %d valid, %d invalid\n",
		result.Stats.Total, result.Stats.Valid, result.Stats.Invalid)
	for _, test := range result.Tests {
		switch {
		case test.Created:
			fmt.Fprintf(out, "  [%s] %s\n", test.JiraKey, test.Name)
		case test.CreateError != "":
			fmt.Fprintf(out, "  [failed] %s: %s\n", test.Name, test.CreateError)
		case !test.Validation.IsValid:
			fmt.Fprintf(out, "  [invalid] %s: %s\n", test.Name, strings.Join(test.Validation.Errors, ", "))
		}
	}
}

func runBugLink(cmd *cobra.Command, args []string) error {
	if err := requireUser(cmd); err != nil {
		return err
	}

	runner := workflow.NewBugLinkRunner(apiClient, nil)
	result, err := runWorkflow(cmd, runner, &models.BugLinkRequest{
		CycleID:    flagCycleID,
		ProjectKey: flagProjectKey,
	})
	if err != nil {
		return err
	}
	if plan, ok := result.Partial.(*models.BugLinkResult); ok {
		fmt.Fprintf(cmd.OutOrStdout(), "\nCycle %s: %d results, %d bound to bugs\n",
			plan.CycleID, plan.Stats.Total, plan.Stats.ToBind)
	}
	return nil
}

func runCycleAdd(cmd *cobra.Command, args []string) error {
	if err := requireUser(cmd); err != nil {
		return err
	}

	runner := workflow.NewCycleAddRunner(apiClient, nil)
	result, err := runWorkflow(cmd, runner, &models.CycleAddRequest{
		CycleName:  flagCycleName,
		ProjectKey: flagProjectKey,
		Version:    flagVersion,
	})
	if err != nil {
		return err
	}
	if plan, ok := result.Partial.(*models.CycleAddResult); ok {
		fmt.Fprintf(cmd.OutOrStdout(), "\n%d executions: %d added, %d skipped\n",
			plan.Stats.Total, plan.Stats.ToAdd, plan.Stats.ToSkip)
	}
	return nil
}

func runAPIRerun(cmd *cobra.Command, args []string) error {
	if err := requireUser(cmd); err != nil {
		return err
	}

	runner := workflow.NewAPIRerunRunner(apiClient, nil)
	result, err := runWorkflow(cmd, runner, &models.APIRerunRequest{
		CycleID:    flagCycleID,
		ProjectKey: flagProjectKey,
	})
	if err != nil {
		return err
	}
	if rerun, ok := result.Partial.(*models.APIRerunResult); ok && rerun.Output != "" {
		fmt.Fprintln(cmd.OutOrStdout(), "\n"+rerun.Output)
	}
	return nil
}

// runAnalysis builds the RunE for the two analysis commands, which differ
// only in their endpoint
func runAnalysis(build func(*api.Client, *workflow.Bus, ...workflow.Option) *workflow.Runner) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if err := requireUser(cmd); err != nil {
			return err
		}

		runner := build(apiClient, nil)
		result, err := runWorkflow(cmd, runner, &models.AnalysisRequest{
			Project:     flagProject,
			Version:     flagVersion,
			Environment: flagEnv,
		})
		if err != nil {
			return err
		}
		if snap, ok := result.Partial.(*workflow.AnalysisSnapshot); ok {
			printAnalysisTable(cmd.OutOrStdout(), snap)
		}
		return nil
	}
}

// printAnalysisTable renders the generic row set with a stable column
// order
func printAnalysisTable(out io.Writer, snap *workflow.AnalysisSnapshot) {
	if len(snap.Rows) == 0 {
		fmt.Fprintln(out, "\nNo rows.")
		return
	}

	columns := make([]string, 0, len(snap.Rows[0]))
	for column := range snap.Rows[0] {
		columns = append(columns, column)
	}
	sort.Strings(columns)

	w := tabwriter.NewWriter(out, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Join(columns, "\t"))
	for _, row := range snap.Rows {
		values := make([]string, len(columns))
		for i, column := range columns {
			values[i] = fmt.Sprintf("%v", row[column])
		}
		fmt.Fprintln(w, strings.Join(values, "\t"))
	}
	w.Flush()

	if len(snap.Metrics) > 0 {
		keys := make([]string, 0, len(snap.Metrics))
		for key := range snap.Metrics {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		fmt.Fprintln(out)
		for _, key := range keys {
			fmt.Fprintf(out, "%s: %v\n", key, snap.Metrics[key])
		}
	}
}

func init() {
	jiragenCmd.Flags().StringVar(&flagSourceType, "type", "api", "test source type (api, ui, manual)")
	jiragenCmd.Flags().StringVar(&flagJSONData, "json", "", "test payload as a JSON string")
	jiragenCmd.Flags().StringVar(&flagJSONFile, "file", "", "path to a file holding the test payload")
	jiragenCmd.Flags().StringVar(&flagProjectKey, "project-key", "", "target Jira project key")
	jiragenCmd.Flags().BoolVarP(&flagYes, "yes", "y", false, "execute without confirmation")

	buglinkCmd.Flags().StringVar(&flagCycleID, "cycle", "", "test cycle id (required)")
	buglinkCmd.Flags().StringVar(&flagProjectKey, "project-key", "", "Jira project key")
	buglinkCmd.Flags().BoolVarP(&flagYes, "yes", "y", false, "execute without confirmation")
	buglinkCmd.MarkFlagRequired("cycle")

	cycleaddCmd.Flags().StringVar(&flagCycleName, "cycle-name", "", "name of the cycle to compose (required)")
	cycleaddCmd.Flags().StringVar(&flagProjectKey, "project-key", "", "Jira project key (required)")
	cycleaddCmd.Flags().StringVar(&flagVersion, "version", "", "release version")
	cycleaddCmd.Flags().BoolVarP(&flagYes, "yes", "y", false, "execute without confirmation")
	cycleaddCmd.MarkFlagRequired("cycle-name")
	cycleaddCmd.MarkFlagRequired("project-key")

	apirerunCmd.Flags().StringVar(&flagCycleID, "cycle", "", "test cycle id (required)")
	apirerunCmd.Flags().StringVar(&flagProjectKey, "project-key", "", "Jira project key")
	apirerunCmd.MarkFlagRequired("cycle")

	for _, cmd := range []*cobra.Command{analyzeCmd, apianalyzeCmd} {
		cmd.Flags().StringVar(&flagProject, "project", "", "project to analyze (required)")
		cmd.Flags().StringVar(&flagVersion, "version", "", "release version")
		cmd.Flags().StringVar(&flagEnv, "env", "", "environment")
		cmd.MarkFlagRequired("project")
	}

	rootCmd.AddCommand(jiragenCmd)
	rootCmd.AddCommand(buglinkCmd)
	rootCmd.AddCommand(cycleaddCmd)
	rootCmd.AddCommand(apirerunCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(apianalyzeCmd)
}
