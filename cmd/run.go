package cmd

import (
	"context"
	"fmt"

	"towertracker/pipeline"
	"towertracker/publish"
	"towertracker/stream"

	"github.com/spf13/cobra"
)

var runOpts struct {
	input   string
	listen  string
	udpAddr string
	stdout  bool
	jpgPath string
	display bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Track the target on a live video stream and publish its geometry",
	Long: `Connects to the camera stream, processes frames one at a time and publishes
"<width>,<pan>,<tilt>" for the widest qualifying target (or an empty string when
there is none). The latest value is served at GET /<table>/<key>. The stream is
reopened with backoff whenever it fails.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		applyRunFlags(cmd)
		if err := cfg.Validate(); err != nil {
			return err
		}

		policy, err := cfg.SessionPolicy()
		if err != nil {
			return err
		}

		table := publish.NewTable(cfg.Publish.Table)
		sink, closeSinks, err := buildSink(cfg, table)
		if err != nil {
			return err
		}
		defer closeSinks()

		if cfg.Publish.Listen != "" {
			addr, stopServing, err := serveTable(cmd.Context(), cfg, table)
			if err != nil {
				return err
			}
			defer func() {
				if err := stopServing(); err != nil {
					logger.logMsg("PUBLISH", err.Error())
				}
			}()
			logger.logMsg("PUBLISH", fmt.Sprintf("Serving http://%s/%s/%s", addr, cfg.Publish.Table, cfg.Publish.Key))
		}

		p, err := pipeline.New(cfg.PipelineConfig(), sink)
		if err != nil {
			return err
		}
		defer p.Close()

		observers, closeObservers, err := buildObservers(cfg)
		if err != nil {
			return err
		}
		defer closeObservers()
		if len(observers) > 0 {
			p.SetObserver(observers)
		}

		input := cfg.Input
		opener := func(ctx context.Context) (stream.Source, error) {
			return stream.OpenCapture(input)
		}

		session := stream.NewSession(opener, p, policy)
		logger.logMsg("SYSTEM", fmt.Sprintf("Tracking %s, publishing to %s/%s", input, cfg.Publish.Table, cfg.Publish.Key))

		err = session.Run(cmd.Context())

		s := p.Stats().Snapshot()
		logger.logMsg("SYSTEM", fmt.Sprintf("Stopped after %d frames (%d published, %d no target, %d skipped)",
			s.Frames, s.Published, s.NoTarget, s.Skipped))
		return err
	},
}

// applyRunFlags overrides the configuration with flags the user actually set
func applyRunFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("input") {
		cfg.Input = runOpts.input
	}
	if flags.Changed("listen") {
		cfg.Publish.Listen = runOpts.listen
	}
	if flags.Changed("udp") {
		cfg.Publish.UDPAddr = runOpts.udpAddr
	}
	if flags.Changed("stdout") {
		cfg.Publish.Stdout = runOpts.stdout
	}
	if flags.Changed("jpg-path") {
		cfg.Debug.JPGPath = runOpts.jpgPath
	}
	if flags.Changed("display") {
		cfg.Debug.Display = runOpts.display
	}
}

func init() {
	runCmd.Flags().StringVar(&runOpts.input, "input", "", "Video stream URL, file, or device index (overrides config)")
	runCmd.Flags().StringVar(&runOpts.listen, "listen", "", "Serve the targeting table over HTTP on this address, \"\" to disable (overrides config)")
	runCmd.Flags().StringVar(&runOpts.udpAddr, "udp", "", "Also publish each output as a UDP datagram to host:port")
	runCmd.Flags().BoolVar(&runOpts.stdout, "stdout", false, "Also print each output on stdout")
	runCmd.Flags().StringVar(&runOpts.jpgPath, "jpg-path", "", "Save debug frames as JPEG under this directory")
	runCmd.Flags().BoolVar(&runOpts.display, "display", false, "Show original, HSV, mask and annotated frames in windows")
	rootCmd.AddCommand(runCmd)
}
