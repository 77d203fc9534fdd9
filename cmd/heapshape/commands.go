// ABOUTME: Subcommands of the heapshape tool: verify, join, abstract, concretize and version
// ABOUTME: Each loads descriptions through the shared loader and prints graphs in the configured format

package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/prateek/heapshape"
	"github.com/prateek/heapshape/graph"
	"github.com/prateek/heapshape/join"
	"github.com/prateek/heapshape/shape"
)

func newVerifyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "verify FILE...",
		Short: "Parse descriptions and check graph consistency",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var failed int
			for _, path := range args {
				m, err := a.loader.LoadFile(path)
				if err == nil {
					err = m.Verify()
				}
				if err != nil {
					failed++
					fmt.Fprintf(a.out, "%s: %v\n", path, err)
					continue
				}
				fmt.Fprintf(a.out, "%s: ok (%d heap objects, %d values)\n",
					path, len(m.HeapObjects()), len(m.Values()))
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d descriptions failed verification", failed, len(args))
			}
			return nil
		},
	}
}

func newJoinCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "join LEFT RIGHT",
		Short: "Join two memory graphs into one over-approximation",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, span := a.tracer.Start(cmd.Context(), "join",
				trace.WithAttributes(attribute.String("left", args[0]), attribute.String("right", args[1])))
			defer span.End()

			inputs := make([]*graph.Memory, len(args))
			var g errgroup.Group
			for i, path := range args {
				g.Go(func() error {
					m, err := a.loader.LoadFile(path)
					if err != nil {
						return err
					}
					inputs[i] = m
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "load failed")
				return err
			}

			res, err := join.Join(inputs[0], inputs[1],
				join.WithLogger(a.log), join.WithChecks(a.cfg.Join.Checks))
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "join failed")
				return err
			}
			span.SetAttributes(attribute.Bool("defined", res.Defined))
			if !res.Defined {
				fmt.Fprintf(a.out, "undefined: %s\n", res.Reason)
				return nil
			}
			span.SetAttributes(attribute.String("status", res.Status.String()))
			fmt.Fprintf(a.out, "status: %s\n", res.Status)
			return a.writeGraph(res.Memory)
		},
	}
}

func newAbstractCmd(a *app) *cobra.Command {
	var listOnly bool
	cmd := &cobra.Command{
		Use:   "abstract FILE",
		Short: "Fold list and tree shapes into abstract objects",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.loader.LoadFile(args[0])
			if err != nil {
				return err
			}
			abs := shape.NewAbstractor(
				shape.WithListThreshold(a.cfg.Shape.ListThreshold),
				shape.WithTreeMinDepth(a.cfg.Shape.TreeMinDepth),
				shape.WithLogger(a.log),
			)
			if listOnly {
				for _, c := range abs.Candidates(m) {
					fmt.Fprintln(a.out, c)
				}
				return nil
			}
			out, applied := abs.Abstract(m)
			for _, c := range applied {
				fmt.Fprintf(a.out, "# folded %v\n", c)
			}
			return a.writeGraph(out)
		},
	}
	cmd.Flags().BoolVar(&listOnly, "candidates", false, "only print the candidates found, best first")
	return cmd
}

func newConcretizeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "concretize FILE OBJECT",
		Short: "Materialise one concrete node out of an abstract list or tree",
		Long: `concretize splits the abstract object named OBJECT (h<id> or <id>)
into every graph it may stand for and prints each one in turn.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.loader.LoadFile(args[0])
			if err != nil {
				return err
			}
			id, err := parseObjectRef(args[1])
			if err != nil {
				return err
			}
			if !m.ContainsObject(id) {
				return fmt.Errorf("object %s does not exist in %s", args[1], args[0])
			}
			results, err := shape.Concretize(m, id)
			if err != nil {
				return err
			}
			for i, r := range results {
				fmt.Fprintf(a.out, "# result %d of %d\n", i+1, len(results))
				if err := a.writeGraph(r); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func newPathsCmd(a *app) *cobra.Command {
	var maxPaths int
	cmd := &cobra.Command{
		Use:   "paths FILE OBJECT",
		Short: "Show how a heap object is reached from globals and stack variables",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.loader.LoadFile(args[0])
			if err != nil {
				return err
			}
			id, err := parseObjectRef(args[1])
			if err != nil {
				return err
			}
			if !m.ContainsObject(id) {
				return fmt.Errorf("object %s does not exist in %s", args[1], args[0])
			}

			names := rootNames(m)
			paths := graph.PathsToRoots(m, id, maxPaths)
			if len(paths) == 0 {
				fmt.Fprintf(a.out, "h%d is unreachable\n", id)
				return nil
			}
			for _, p := range paths {
				fmt.Fprintln(a.out, formatPath(p, names))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&maxPaths, "max", 5, "maximum number of paths to print")
	return cmd
}

// formatPath writes p root first, each hop as object[field offset]
func formatPath(p graph.Path, names map[graph.ObjID]string) string {
	label := func(id graph.ObjID) string {
		if name, ok := names[id]; ok {
			return name
		}
		return fmt.Sprintf("h%d", id)
	}
	var hops []string
	for i := len(p.Via) - 1; i >= 0; i-- {
		hops = append(hops, fmt.Sprintf("%s[%d]", label(p.Via[i].Object), p.Via[i].Offset))
	}
	return strings.Join(append(hops, label(p.Target)), " -> ")
}

// rootNames labels every root region with the variable it backs
func rootNames(m *graph.Memory) map[graph.ObjID]string {
	names := make(map[graph.ObjID]string)
	for _, name := range m.GlobalNames() {
		id, _ := m.Global(name)
		names[id] = name
	}
	for _, f := range m.Frames() {
		for _, name := range f.LocalNames() {
			id, _ := f.Local(name)
			names[id] = f.Function + "." + name
		}
		if id, ok := f.Return(); ok {
			names[id] = f.Function + ".<return>"
		}
	}
	return names
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the heapshape version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(a.out, heapshape.Version)
		},
	}
}

// parseObjectRef accepts the h<id> names Describe assigns as well as bare ids
func parseObjectRef(s string) (graph.ObjID, error) {
	n, err := strconv.ParseUint(strings.TrimPrefix(s, "h"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid object reference %q: want h<id> or <id>", s)
	}
	return graph.ObjID(n), nil
}
