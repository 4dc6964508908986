package command

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/frantjc/ota"
	"github.com/frantjc/ota/internal/otablob"
	"github.com/frantjc/ota/internal/otahttp"
	"github.com/frantjc/ota/internal/otaplist"
	"github.com/frantjc/ota/internal/otapubsub"
	"github.com/frantjc/ota/internal/otaregistry"
	"github.com/frantjc/ota/internal/otasql"
	"github.com/frantjc/ota/ios"
	"github.com/spf13/cobra"
	"gocloud.dev/blob"
	"gocloud.dev/postgres"
	"gocloud.dev/pubsub"
	"golang.org/x/sync/errgroup"
)

// NewOta returns the root command for
// ota which acts as its CLI entrypoint.
func NewOta() *cobra.Command {
	var (
		address       string
		tlsAddress    string
		tlsCert       string
		tlsKey        string
		dburlstr      string
		pubsuburlstr  string
		bloburlstr    string
		maxUploadSize int64
		extractOpts   = &ios.ExtractOpts{}
		cmd           = &cobra.Command{
			Use: "ota",
			RunE: func(cmd *cobra.Command, _ []string) error {
				var (
					ctx = cmd.Context()
					log = ota.LoggerFrom(ctx)
				)

				base, err := baseURL(cmd)
				if err != nil {
					return err
				}

				log.Info("opening bucket " + bloburlstr)
				bucket, err := blob.OpenBucket(ctx, bloburlstr)
				if err != nil {
					return err
				}
				defer bucket.Close()

				var registry otahttp.Registry = otaregistry.New(bucket)
				if dburlstr != "" {
					var db *sql.DB

					log.Info("opening postgres " + dburlstr)
					if err = retry(func() error {
						db, err = postgres.Open(ctx, dburlstr)
						return err
					}, 9); err != nil {
						return err
					}
					defer db.Close()

					log.Info("running migrations against postgres " + dburlstr)
					if err = retry(func() error {
						return otasql.Migrate(ctx, db)
					}, 9); err != nil {
						return err
					}

					registry = &otasql.Registry{DB: db}
				}

				log.Info("opening topic " + pubsuburlstr)
				topic, err := pubsub.OpenTopic(ctx, pubsuburlstr)
				if err != nil {
					return err
				}
				defer topic.Shutdown(context.WithoutCancel(ctx))

				log.Info("opening subscription " + pubsuburlstr)
				subscription, err := pubsub.OpenSubscription(ctx, pubsuburlstr)
				if err != nil {
					return err
				}
				defer subscription.Shutdown(context.WithoutCancel(ctx))

				var (
					eg, egctx = errgroup.WithContext(ctx)
					srv       = &http.Server{
						ReadHeaderTimeout: time.Second * 5,
						BaseContext: func(_ net.Listener) context.Context {
							return egctx
						},
						Handler: otahttp.NewHandler(
							&otablob.Store{Bucket: bucket},
							registry,
							&otahttp.Opts{
								Base:          base,
								Topic:         topic,
								MaxUploadSize: maxUploadSize,
								ExtractOpts:   extractOpts,
							},
						),
					}
				)

				lis, err := net.Listen("tcp", address)
				if err != nil {
					return err
				}
				defer lis.Close()

				eg.Go(func() error {
					log.Info("listening on " + address)
					return ignoreServerClosed(srv.Serve(lis))
				})

				if tlsAddress != "" {
					tlsLis, err := net.Listen("tcp", tlsAddress)
					if err != nil {
						return err
					}
					defer tlsLis.Close()

					eg.Go(func() error {
						log.Info("listening with tls on " + tlsAddress)
						return ignoreServerClosed(srv.ServeTLS(tlsLis, tlsCert, tlsKey))
					})
				}

				eg.Go(func() error {
					log.Info("receiving messages on " + pubsuburlstr)
					return otapubsub.Receive(egctx, subscription, otapubsub.LogEvent)
				})

				eg.Go(func() error {
					<-egctx.Done()

					shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(egctx), time.Second*10)
					defer cancel()

					return srv.Shutdown(shutdownCtx)
				})

				return eg.Wait()
			},
		}
	)

	cmd.Flags().StringVar(&address, "addr", ":8080", "Listen address for ota")
	cmd.Flags().StringVar(&tlsAddress, "tls-addr", "", "Listen address for ota to serve TLS on")
	cmd.Flags().StringVar(&tlsCert, "tls-cert", "", "TLS certificate file")
	cmd.Flags().StringVar(&tlsKey, "tls-key", "", "TLS key file")
	cmd.MarkFlagsRequiredTogether("tls-addr", "tls-cert", "tls-key")
	cmd.Flags().StringVar(&dburlstr, "db", "", "Postgres URL to keep the app registry in instead of the bucket")
	cmd.Flags().StringVar(&pubsuburlstr, "pubsub", "mem://ota", "Pubsub URL for ota")
	cmd.Flags().StringVar(&bloburlstr, "blob", "mem://", "Blob URL for ota")
	cmd.Flags().Int64Var(&maxUploadSize, "max-upload-size", otahttp.DefaultMaxUploadSize, "Maximum size of an upload in bytes")
	cmd.Flags().IntVar(&extractOpts.MaxEntries, "max-entries", ios.DefaultMaxEntries, "Maximum number of entries in an uploaded package")
	cmd.Flags().Int64Var(&extractOpts.MaxEntrySize, "max-entry-size", ios.DefaultMaxEntrySize, "Maximum decompressed size of a package entry in bytes")
	cmd.Flags().IntVar(&extractOpts.MaxDepth, "max-plist-depth", otaplist.DefaultMaxDepth, "Maximum nesting depth of an Info.plist")
	cmd.Flags().IntVar(&extractOpts.MaxObjects, "max-plist-objects", otaplist.DefaultMaxObjects, "Maximum number of objects in an Info.plist")
	cmd.Flags().IntVar(&extractOpts.MaxBytes, "max-plist-bytes", otaplist.DefaultMaxBytes, "Maximum size of the data and strings decoded from an Info.plist in bytes")

	cmd.AddCommand(newGet(), newUpload(), newDelete(), newInspect(), newManifest())

	return setCommon(cmd)
}

func ignoreServerClosed(err error) error {
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}

	return err
}
