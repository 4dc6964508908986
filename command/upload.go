package command

import (
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/frantjc/ota"
	"github.com/spf13/cobra"
)

func newUpload() *cobra.Command {
	var (
		output string
		cmd    = &cobra.Command{
			Use:   "upload FILE.ipa",
			Short: "Upload an .ipa to an ota server",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				var (
					ctx = cmd.Context()
					log = ota.LoggerFrom(ctx)
				)

				cli, err := newClient(cmd)
				if err != nil {
					return err
				}

				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()

				fi, err := f.Stat()
				if err != nil {
					return err
				}

				log.Info("uploading " + fi.Name() + " (" + humanize.Bytes(uint64(fi.Size())) + ")")

				app, err := cli.UploadApp(ctx, filepath.Base(args[0]), f)
				if err != nil {
					return err
				}

				return encode(cmd.OutOrStdout(), output, app)
			},
		}
	)

	addOutputFlag(cmd, &output)

	return cmd
}

func newDelete() *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete an app from an ota server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cli, err := newClient(cmd)
			if err != nil {
				return err
			}

			return cli.DeleteApp(cmd.Context(), args[0])
		},
	}
}
