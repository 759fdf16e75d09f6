package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"live-recorder/internal/platform/config"
	"live-recorder/internal/platform/metrics"
	"live-recorder/internal/version"
)

type Dependencies struct {
	Config  *config.Config
	Secrets *config.Secrets
	Log     *slog.Logger
	Metrics *metrics.Metrics
}

func NewRootCmd(deps *Dependencies) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "live-recorder",
		Short: "Record TikTok live broadcasts",
		Long: "Records TikTok live broadcasts to disk, either for a single account or for a whole roster,\n" +
			"remuxes them with ffmpeg and optionally delivers them to Telegram or S3.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.Version = version.Version
	rootCmd.SetVersionTemplate(version.Full() + "\n")

	rootCmd.AddCommand(NewRecordCmd(deps))
	rootCmd.AddCommand(NewMonitorCmd(deps))
	rootCmd.AddCommand(NewDoctorCmd(deps))

	return rootCmd
}
