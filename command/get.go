package command

import (
	"github.com/spf13/cobra"
)

func newGet() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Get apps from an ota server",
	}

	cmd.AddCommand(newGetApps(), newGetApp())

	return cmd
}

func newGetApps() *cobra.Command {
	var (
		output string
		cmd    = &cobra.Command{
			Use:  "apps",
			Args: cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cli, err := newClient(cmd)
				if err != nil {
					return err
				}

				apps, err := cli.GetApps(cmd.Context())
				if err != nil {
					return err
				}

				return encode(cmd.OutOrStdout(), output, apps)
			},
		}
	)

	addOutputFlag(cmd, &output)

	return cmd
}

func newGetApp() *cobra.Command {
	var (
		output  string
		install bool
		cmd     = &cobra.Command{
			Use:  "app ID",
			Args: cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				var (
					ctx = cmd.Context()
					id  = args[0]
				)

				cli, err := newClient(cmd)
				if err != nil {
					return err
				}

				if install {
					installURL, err := cli.GetInstallURL(ctx, id)
					if err != nil {
						return err
					}

					_, err = cmd.OutOrStdout().Write([]byte(installURL + "\n"))
					return err
				}

				app, err := cli.GetApp(ctx, id)
				if err != nil {
					return err
				}

				return encode(cmd.OutOrStdout(), output, app)
			},
		}
	)

	addOutputFlag(cmd, &output)
	cmd.Flags().BoolVar(&install, "install-url", false, "Print the URL that installs the app instead")

	return cmd
}
