package cmd

import (
	"fmt"

	"towertracker/overlay"
	"towertracker/pipeline"
	"towertracker/publish"
	"towertracker/stream"

	"gocv.io/x/gocv"

	"github.com/spf13/cobra"
)

var analyzeOpts struct {
	annotated string
	repeat    int
}

// annotatedWriter saves the annotated frame of the last processed frame
type annotatedWriter struct {
	path  string
	saved bool
}

func (aw *annotatedWriter) Observe(frames overlay.Frames) {
	aw.saved = gocv.IMWrite(aw.path, frames.Annotated)
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <image>",
	Short: "Run the targeting pipeline on a stored image and print the output",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if analyzeOpts.repeat < 1 {
			return fmt.Errorf("--repeat must be at least 1")
		}

		source, err := stream.OpenImage(args[0], analyzeOpts.repeat)
		if err != nil {
			return err
		}
		defer source.Close()

		table := publish.NewTable(cfg.Publish.Table)
		p, err := pipeline.New(cfg.PipelineConfig(), publish.NewTableSink(table, cfg.Publish.Key))
		if err != nil {
			return err
		}
		defer p.Close()

		var writer *annotatedWriter
		if analyzeOpts.annotated != "" {
			writer = &annotatedWriter{path: analyzeOpts.annotated}
			p.SetObserver(writer)
		}

		frame := gocv.NewMat()
		defer frame.Close()

		var outputs []string
		for source.Read(&frame) == nil {
			outcome, err := p.ProcessFrame(frame)
			if err != nil {
				return err
			}
			outputs = append(outputs, outcome.Output)
			logger.debugMsg("ANALYZE", fmt.Sprintf("%s: %s (%d candidates, %d accepted)",
				args[0], outcome.Result, outcome.Candidates, outcome.Accepted))
		}

		for i := 1; i < len(outputs); i++ {
			if outputs[i] != outputs[0] {
				return fmt.Errorf("run %d produced %q, first run produced %q", i+1, outputs[i], outputs[0])
			}
		}

		if writer != nil && !writer.saved {
			return fmt.Errorf("failed to write annotated frame to %s", writer.path)
		}

		fmt.Fprintln(cmd.OutOrStdout(), outputs[0])
		return nil
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeOpts.annotated, "annotated", "", "Write the annotated frame to this image file")
	analyzeCmd.Flags().IntVar(&analyzeOpts.repeat, "repeat", 1, "Process the image this many times and check the output never changes")
	rootCmd.AddCommand(analyzeCmd)
}
