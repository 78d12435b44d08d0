// Command statepath loads a YAML manifest of state roots and answers path
// queries against it.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/goliatone/go-statepath"
	"github.com/ohler55/ojg/oj"
	"github.com/spf13/cobra"
)

var (
	manifestPath string
	rootName     string
	statePath    string
	indexes      []int
	verbose      bool
	showTrace    bool
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&manifestPath, "manifest", "m", "statepath.yaml", "Path to the roots manifest")
	rootCmd.PersistentFlags().StringVarP(&rootName, "root", "r", "", "State root to query")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log resolution steps to stderr")

	resolveCmd.Flags().StringVarP(&statePath, "path", "p", "", "Path to resolve, e.g. users.*.name")
	resolveCmd.Flags().IntSliceVarP(&indexes, "index", "i", nil, "List index per wildcard, outermost first")
	resolveCmd.Flags().BoolVar(&showTrace, "trace", false, "Print the resolution trace")
	_ = resolveCmd.MarkFlagRequired("path")

	depsCmd.Flags().StringVarP(&statePath, "path", "p", "", "Path whose dependents are listed")
	_ = depsCmd.MarkFlagRequired("path")

	rootCmd.AddCommand(resolveCmd, depsCmd, pathsCmd)
}

var rootCmd = &cobra.Command{
	Use:           "statepath",
	Short:         "Resolve and inspect reactive state paths",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resolve a path and print its value",
	RunE: func(cmd *cobra.Command, _ []string) error {
		engine, loops, err := loadEngine(cmd.Context())
		if err != nil {
			return err
		}
		binding, err := loopBinding(loops, statePath, indexes)
		if err != nil {
			return err
		}
		binding.ScopeName = rootName

		value, trace, err := engine.ResolveWithTrace(binding)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), oj.JSON(value, &oj.Options{Indent: 2, Sort: true}))
		if showTrace {
			payload, err := trace.ToJSON()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(payload))
		}
		return nil
	},
}

var depsCmd = &cobra.Command{
	Use:   "deps",
	Short: "List the paths invalidated when a path changes",
	RunE: func(cmd *cobra.Command, _ []string) error {
		engine, _, err := loadEngine(cmd.Context())
		if err != nil {
			return err
		}
		root, err := engine.Roots().Lookup(rootName)
		if err != nil {
			return err
		}
		tracker := root.Dependencies()
		for _, dep := range tracker.StaticDependents(statePath) {
			fmt.Fprintf(cmd.OutOrStdout(), "static\t%s\n", dep.Path)
		}
		for _, dep := range tracker.DynamicDependents(statePath) {
			fmt.Fprintf(cmd.OutOrStdout(), "dynamic\t%s\n", dep.Path)
		}
		return nil
	},
}

var pathsCmd = &cobra.Command{
	Use:   "paths",
	Short: "List the structural paths of a root",
	RunE: func(cmd *cobra.Command, _ []string) error {
		engine, _, err := loadEngine(cmd.Context())
		if err != nil {
			return err
		}
		root, err := engine.Roots().Lookup(rootName)
		if err != nil {
			return err
		}
		return root.WithState(cmd.Context(), statepath.ReadOnly, func(a statepath.Accessor) error {
			for _, path := range statepath.DescribePaths(a.Snapshot()) {
				fmt.Fprintln(cmd.OutOrStdout(), path)
			}
			return nil
		})
	},
}

func loadEngine(ctx context.Context) (*statepath.Engine, *statepath.NodeLoopContexts, error) {
	manifest, err := statepath.LoadManifestFile(manifestPath)
	if err != nil {
		return nil, nil, err
	}
	opts := []statepath.Option{}
	if verbose {
		handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
		opts = append(opts, statepath.WithLogger(statepath.NewSlogLogger(slog.New(handler))))
	}
	loops := statepath.NewNodeLoopContexts()
	opts = append(opts, statepath.WithLoopContexts(loops))

	engine := statepath.New(opts...)
	if _, err := engine.ApplyManifest(ctx, manifest); err != nil {
		return nil, nil, err
	}
	if rootName == "" && len(manifest.Roots) > 0 {
		rootName = manifest.Roots[0].Name
	}
	return engine, loops, nil
}

// cliNode stands in for a rendered node so --index can be expressed as a
// loop context.
type cliNode struct{}

func (*cliNode) ParentNode() statepath.TreeNode { return nil }

func loopBinding(loops *statepath.NodeLoopContexts, path string, idx []int) (*statepath.BindingInfo, error) {
	desc, err := statepath.ResolvePath(path)
	if err != nil {
		return nil, err
	}
	binding := &statepath.BindingInfo{StatePath: path}
	if len(idx) == 0 {
		return binding, nil
	}
	element := desc.DeepestWildcard()
	if element == nil {
		return nil, fmt.Errorf("--index given but %q has no wildcard", path)
	}
	if len(idx) != element.WildcardCount {
		return nil, fmt.Errorf("%q needs %d indexes, got %d", path, element.WildcardCount, len(idx))
	}
	var li *statepath.ListIndex
	for _, i := range idx {
		li = statepath.NewListIndex(li, i)
	}
	node := &cliNode{}
	loops.Attach(node, statepath.NewLoopContext(nil, element, li))
	binding.Node = node
	return binding, nil
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
