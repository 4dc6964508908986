package command

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/frantjc/ota"
	"github.com/frantjc/ota/internal/otablob"
	"github.com/frantjc/ota/ios"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gocloud.dev/blob"
)

// extract reads the Metadata out of the .ipa at name, saving its icon to
// the bucket at bloburlstr if one is given.
func extract(cmd *cobra.Command, name, bloburlstr string) (*ios.Metadata, error) {
	var (
		ctx   = cmd.Context()
		log   = ota.LoggerFrom(ctx)
		store ios.IconStore
	)

	b, err := os.ReadFile(name)
	if err != nil {
		return nil, err
	}

	log.Info("inspecting " + name + " (" + humanize.Bytes(uint64(len(b))) + ")")

	if bloburlstr != "" {
		log.Info("opening bucket " + bloburlstr)
		bucket, err := blob.OpenBucket(ctx, bloburlstr)
		if err != nil {
			return nil, err
		}
		defer bucket.Close()

		store = &otablob.Store{Bucket: bucket}
	}

	return ios.Extract(ctx, b, store)
}

func newInspect() *cobra.Command {
	var (
		output     string
		bloburlstr string
		cmd        = &cobra.Command{
			Use:   "inspect FILE.ipa",
			Short: "Print the metadata of an .ipa",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				md, err := extract(cmd, args[0], bloburlstr)
				if err != nil {
					return err
				}

				return encode(cmd.OutOrStdout(), output, md)
			},
		}
	)

	addOutputFlag(cmd, &output)
	cmd.Flags().StringVar(&bloburlstr, "blob", "", "Blob URL to save the icon of the .ipa to")

	return cmd
}

func newManifest() *cobra.Command {
	var (
		bloburlstr string
		id         string
		cmd        = &cobra.Command{
			Use:   "manifest FILE.ipa",
			Short: "Print the install manifest of an .ipa",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				base, err := baseURL(cmd)
				if err != nil {
					return err
				} else if base == nil {
					return fmt.Errorf("--url is required")
				}

				md, err := extract(cmd, args[0], bloburlstr)
				if err != nil {
					return err
				}

				if id == "" {
					id = uuid.NewString()
				}

				fileName := id + ota.ExtIPA
				if err = ios.EncodeManifest(cmd.OutOrStdout(), ios.BuildManifest(md, otablob.PackagePath(fileName), base), "  "); err != nil {
					return err
				}

				ota.LoggerFrom(cmd.Context()).Info("serve " + filepath.Base(args[0]) + " at " + base.JoinPath(otablob.PackagePath(fileName)).String())

				return nil
			},
		}
	)

	cmd.Flags().StringVar(&bloburlstr, "blob", "", "Blob URL to save the icon of the .ipa to")
	cmd.Flags().StringVar(&id, "id", "", "ID of the app to build the manifest for")

	return cmd
}
