package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pagecap/pagecap/internal/capture"
	"github.com/pagecap/pagecap/internal/config"
	"github.com/pagecap/pagecap/internal/observability"
	"github.com/pagecap/pagecap/internal/runner"
)

// viewportPresets are the named viewport sizes accepted by --preset.
var viewportPresets = map[string][2]int64{
	"desktop": {1920, 1080},
	"laptop":  {1366, 768},
	"tablet":  {768, 1024},
	"mobile":  {375, 812},
}

type captureFlags struct {
	output      string
	preset      string
	width       int64
	height      int64
	fullPage    bool
	noFullPage  bool
	wait        time.Duration
	dpi         float64
	quality     int
	startHeight int64
	endHeight   int64
	username    string
	password    string
	loginMethod string
}

func newCaptureCmd() *cobra.Command {
	flags := &captureFlags{}

	cmd := &cobra.Command{
		Use:   "capture <url>",
		Short: "Capture a rendered web page as an image",
		Long: `Capture renders the given URL in a headless browser and writes a
screenshot to disk. Long pages can be captured whole (--full-page) or as a
vertical slice (--start-height/--end-height). With --username and --password
the tool first attempts to log in, probing known login-page layouts.`,
		Args: cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Browser toggles override config and environment.
			if err := viper.BindPFlag("browser.headless", cmd.Flags().Lookup("headless")); err != nil {
				return err
			}
			return viper.BindPFlag("browser.ignore_tls_errors", cmd.Flags().Lookup("ignore-tls-errors"))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.NewConfigFromViper(viper.GetViper())
			if err != nil {
				return err
			}

			req, err := buildRequest(args[0], flags)
			if err != nil {
				return err
			}

			r := runner.New(cfg, observability.GetLogger())
			if err := r.Run(cmd.Context(), req, flags.output); err != nil {
				return err
			}

			// The output path on stdout is the one machine-readable result.
			fmt.Fprintln(cmd.OutOrStdout(), flags.output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&flags.output, "output", "o", "screenshot.png", "Output image path (.png, .jpg)")
	cmd.Flags().StringVar(&flags.preset, "preset", "", "Named viewport size: desktop, laptop, tablet, mobile")
	cmd.Flags().Int64VarP(&flags.width, "width", "w", 0, "Viewport width in pixels (overrides --preset)")
	cmd.Flags().Int64Var(&flags.height, "height", 0, "Viewport height in pixels (overrides --preset)")
	cmd.Flags().BoolVar(&flags.fullPage, "full-page", true, "Capture the whole page, stitched from scroll segments")
	cmd.Flags().BoolVar(&flags.noFullPage, "no-full-page", false, "Capture the viewport only")
	cmd.Flags().DurationVar(&flags.wait, "wait", 0, "Extra wait after page load before capturing")
	cmd.Flags().Float64Var(&flags.dpi, "dpi", 1.0, "Page zoom factor applied before capture")
	cmd.Flags().IntVar(&flags.quality, "quality", 0, "JPEG quality 1-100 (default from config)")
	cmd.Flags().Int64Var(&flags.startHeight, "start-height", 0, "Top of the vertical capture range in pixels")
	cmd.Flags().Int64Var(&flags.endHeight, "end-height", -1, "Bottom of the vertical capture range in pixels")
	cmd.Flags().StringVar(&flags.username, "username", "", "Login username; enables the authentication flow")
	cmd.Flags().StringVar(&flags.password, "password", "", "Login password")
	cmd.Flags().StringVar(&flags.loginMethod, "login-method", "", "Pin a login provider (grafana, openshift, generic) instead of auto-detecting")
	cmd.Flags().Bool("headless", true, "Run the browser headless")
	cmd.Flags().Bool("ignore-tls-errors", true, "Ignore TLS certificate errors")

	return cmd
}

// buildRequest translates the flag surface into a validated CaptureRequest.
func buildRequest(rawURL string, flags *captureFlags) (capture.CaptureRequest, error) {
	width, height, err := resolveViewport(flags)
	if err != nil {
		return capture.CaptureRequest{}, err
	}

	req := capture.CaptureRequest{
		URL:            capture.NormalizeURL(rawURL),
		ViewportWidth:  width,
		ViewportHeight: height,
		StartHeight:    flags.startHeight,
		FullPage:       flags.fullPage && !flags.noFullPage,
		Wait:           flags.wait,
		DPI:            flags.dpi,
		Quality:        flags.quality,
		Username:       flags.username,
		Password:       flags.password,
		LoginMethod:    flags.loginMethod,
	}
	if flags.endHeight >= 0 {
		end := flags.endHeight
		req.EndHeight = &end
	}

	if err := req.Validate(); err != nil {
		return capture.CaptureRequest{}, err
	}
	return req, nil
}

// resolveViewport combines --preset with explicit --width/--height overrides.
func resolveViewport(flags *captureFlags) (int64, int64, error) {
	width, height := viewportPresets["desktop"][0], viewportPresets["desktop"][1]
	if flags.preset != "" {
		size, ok := viewportPresets[flags.preset]
		if !ok {
			return 0, 0, fmt.Errorf("unknown viewport preset %q", flags.preset)
		}
		width, height = size[0], size[1]
	}
	if flags.width > 0 {
		width = flags.width
	}
	if flags.height > 0 {
		height = flags.height
	}
	return width, height, nil
}

func init() {
	rootCmd.AddCommand(newCaptureCmd())
}
