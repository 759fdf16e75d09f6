package cli

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"live-recorder/internal/recorder"
	"live-recorder/internal/tiktok"
)

func NewRecordCmd(deps *Dependencies) *cobra.Command {
	var (
		flags   recordingFlags
		user    string
		room    string
		liveURL string
		mode    string
	)

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record one account",
		Long: "Record a single account. In manual mode the account must be live right now;\n" +
			"in automatic mode the account is polled and every broadcast is recorded until Ctrl+C.",
		Example: "  live-recorder record -u someone\n" +
			"  live-recorder record --url https://www.tiktok.com/@someone/live -m automatic --interval 2m",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			account, err := resolveAccountFlags(user, room, liveURL)
			if err != nil {
				return err
			}
			m, err := recorder.ParseMode(mode)
			if err != nil {
				return err
			}

			engine, err := flags.engine(ctx, deps, nil)
			if err != nil {
				return err
			}
			spec := flags.spec(deps)
			spec.Account = account
			spec.Mode = m

			handle := recorder.NewSessionHandle(account.Name())
			ctrl, err := recorder.NewController(ctx, spec, engine, handle)
			if err != nil {
				return err
			}
			if err := ctrl.Run(ctx); err != nil {
				return err
			}
			info := handle.Info()
			deps.Log.Info("recorder finished",
				slog.String("account", ctrl.Account().Name()),
				slog.Int64("recordings", info.Recordings),
				slog.Int64("bytes", info.Bytes),
				slog.String("last_file", info.Path))
			return nil
		},
	}

	cmd.Flags().StringVarP(&user, "user", "u", "", "Username to record (with or without @)")
	cmd.Flags().StringVar(&room, "room", "", "Room id to record")
	cmd.Flags().StringVar(&liveURL, "url", "", "Live page URL, e.g. https://www.tiktok.com/@user/live")
	cmd.Flags().StringVarP(&mode, "mode", "m", string(recorder.ModeManual), "manual or automatic")
	flags.register(cmd, deps)

	return cmd
}

func resolveAccountFlags(user, room, liveURL string) (recorder.Account, error) {
	account := recorder.Account{User: strings.TrimPrefix(strings.TrimSpace(user), "@"), RoomID: strings.TrimSpace(room)}
	if liveURL != "" {
		u, err := tiktok.ParseLiveURL(liveURL)
		if err != nil {
			return recorder.Account{}, err
		}
		account.User = u
	}
	if account.User == "" && account.RoomID == "" {
		return recorder.Account{}, errors.New("one of --user, --room or --url is required")
	}
	return account, nil
}
