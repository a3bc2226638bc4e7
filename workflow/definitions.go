package workflow

import (
	"context"

	"github.com/sercano/qahub/api"
)

// Factory functions for the backend's seven streaming workflows. Each
// returns a fresh idle runner; the caller drives it with Start/Execute.

// NewJiraGenRunner builds the Jira test-generation workflow
// (validate → confirm → create).
func NewJiraGenRunner(client *api.Client, bus *Bus, projectKey string, opts ...Option) *Runner {
	return NewRunner(client, Definition{
		Name:        "jiragen",
		AnalyzePath: api.PathJiraGenValidate,
		ExecutePath: api.PathJiraGenCreate,
		Reducer:     NewJiraGenReducer(projectKey),
	}, bus, opts...)
}

// NewBugLinkRunner builds the bug-link workflow (analyze → confirm → bind)
func NewBugLinkRunner(client *api.Client, bus *Bus, opts ...Option) *Runner {
	return NewRunner(client, Definition{
		Name:        "buglink",
		AnalyzePath: api.PathBugLinkAnalyze,
		ExecutePath: api.PathBugLinkBind,
		Reducer:     NewBugLinkReducer(),
	}, bus, opts...)
}

// NewCycleAddRunner builds the cycle composition workflow
// (analyze → confirm → execute).
func NewCycleAddRunner(client *api.Client, bus *Bus, opts ...Option) *Runner {
	return NewRunner(client, Definition{
		Name:        "cycleadd",
		AnalyzePath: api.PathCycleAddAnalyze,
		ExecutePath: api.PathCycleAddExecute,
		Reducer:     NewCycleAddReducer(),
	}, bus, opts...)
}

// NewAPIRerunRunner builds the single-phase API rerun workflow
func NewAPIRerunRunner(client *api.Client, bus *Bus, opts ...Option) *Runner {
	return NewRunner(client, Definition{
		Name:        "apirerun",
		AnalyzePath: api.PathAPIRerun,
		SinglePhase: true,
		Reducer:     NewAPIRerunReducer(),
	}, bus, opts...)
}

// NewTestAnalysisRunner builds the single-phase test analysis workflow
func NewTestAnalysisRunner(client *api.Client, bus *Bus, opts ...Option) *Runner {
	return NewRunner(client, Definition{
		Name:        "analysis",
		AnalyzePath: api.PathTestAnalysis,
		SinglePhase: true,
		Reducer:     NewAnalysisReducer(),
	}, bus, opts...)
}

// NewAPIAnalysisRunner builds the single-phase API analysis workflow
func NewAPIAnalysisRunner(client *api.Client, bus *Bus, opts ...Option) *Runner {
	return NewRunner(client, Definition{
		Name:        "apianalysis",
		AnalyzePath: api.PathAPIAnalysis,
		SinglePhase: true,
		Reducer:     NewAnalysisReducer(),
	}, bus, opts...)
}

// NewProductTreeRunner builds the coverage-tree workflow. When the stream
// ends with cacheReady instead of an inline tree, the cached payload is
// fetched before the phase advances to done.
func NewProductTreeRunner(client *api.Client, bus *Bus, opts ...Option) *Runner {
	reducer := NewProductTreeReducer()
	return NewRunner(client, Definition{
		Name:        "producttree",
		AnalyzePath: api.PathProductTreeRun,
		SinglePhase: true,
		Reducer:     reducer,
		Finalize: func(ctx context.Context) error {
			if !reducer.NeedsFetch() {
				return nil
			}
			tree, err := client.ProductTreeData(ctx)
			if err != nil {
				return err
			}
			reducer.SetTree(tree)
			return nil
		},
	}, bus, opts...)
}
