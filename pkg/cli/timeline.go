package cli

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/gonewx/closetkingdom/pkg/config"
	"github.com/gonewx/closetkingdom/pkg/timeline"
)

func newTimelineCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "timeline",
		Short: "Validate and inspect screen timelines",
	}
	cmd.AddCommand(newTimelineValidateCommand())
	cmd.AddCommand(newTimelineDumpCommand())
	return cmd
}

func newTimelineValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file.yaml>...",
		Short: "Check timeline files for structural problems",
		Long: `Check timeline files: phase order, names, durations, ramps and param
references. Every problem in a file is reported, not just the first one.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			var errs []error
			for _, path := range args {
				cfg, err := config.LoadTimelineConfig(path)
				if err != nil {
					fprintf(out, "FAIL  %s\n", path)
					printValidationProblems(out, err)
					errs = append(errs, err)
					continue
				}
				spec, err := cfg.Build(nil)
				if err != nil {
					errs = append(errs, err)
					continue
				}
				plan, err := timeline.Compile(spec)
				if err != nil {
					errs = append(errs, err)
					continue
				}
				fprintf(out, "ok    %s  (%s, %d phases, %dms)\n", path, cfg.Name, len(spec.Phases), plan.End())
			}
			if len(errs) > 0 {
				return fmt.Errorf("%d of %d timeline files are invalid", len(errs), len(args))
			}
			return nil
		},
	}
}

// printValidationProblems 逐条打印校验问题；其他错误原样打印
func printValidationProblems(w io.Writer, err error) {
	var verr *timeline.ValidationError
	if !errors.As(err, &verr) {
		fprintf(w, "      %v\n", err)
		return
	}
	for _, p := range verr.Problems {
		fprintf(w, "      %s\n", p)
	}
}

type dumpOptions struct {
	params map[string]int
}

func newTimelineDumpCommand() *cobra.Command {
	opts := &dumpOptions{}

	cmd := &cobra.Command{
		Use:   "dump <screen|file.yaml>",
		Short: "Print the state of a timeline at every boundary",
		Long: `Print a table with the active phases, ramp values and sounds at every
instant where the state of the timeline can change.

The argument is either a screen id (stage-clear, dungeon-clear, endroll,
crown) or the path of a timeline file.`,
		Example: `  closetkingdom timeline dump stage-clear --set exp=12`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadTimelineArg(args[0])
			if err != nil {
				return err
			}
			spec, err := cfg.Build(opts.params)
			if err != nil {
				return err
			}
			plan, err := timeline.Compile(spec)
			if err != nil {
				return err
			}
			printPlan(cmd.OutOrStdout(), plan)
			return nil
		},
	}

	cmd.Flags().StringToIntVar(&opts.params, "set", nil, "Override timeline params, e.g. --set exp=12")

	return cmd
}

// loadTimelineArg 按画面ID读取嵌入配置，按 .yaml/.yml 后缀读取文件
func loadTimelineArg(arg string) (*config.TimelineConfig, error) {
	if strings.HasSuffix(arg, ".yaml") || strings.HasSuffix(arg, ".yml") {
		return config.LoadTimelineConfig(arg)
	}
	return config.LoadScreenTimeline(arg)
}

// printPlan 输出每个边界时刻的状态
func printPlan(w io.Writer, plan *timeline.Plan) {
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fprintf(tw, "T(ms)\tACTIVE\tRAMPS\tSOUNDS\tDONE\n")

	prev := int64(-1)
	for _, t := range plan.Boundaries() {
		st := plan.At(t)

		active := "-"
		if len(st.Active) > 0 {
			active = strings.Join(st.Active, ",")
		}

		ramps := "-"
		if len(st.RampValues) > 0 {
			names := make([]string, 0, len(st.RampValues))
			for name := range st.RampValues {
				names = append(names, name)
			}
			sort.Strings(names)
			parts := make([]string, 0, len(names))
			for _, name := range names {
				parts = append(parts, fmt.Sprintf("%s=%d", name, st.RampValues[name]))
			}
			ramps = strings.Join(parts, ",")
		}

		sounds := "-"
		var ids []string
		for _, p := range plan.ActivatedBetween(prev, t) {
			if p.Sound != "" {
				ids = append(ids, p.Sound)
			}
		}
		if len(ids) > 0 {
			sounds = strings.Join(ids, ",")
		}

		fprintf(tw, "%d\t%s\t%s\t%s\t%t\n", t, active, ramps, sounds, st.Done)
		prev = t
	}
	_ = tw.Flush()
}
