package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/cdnkeeper/internal/assets"
	"github.com/dmitrijs2005/cdnkeeper/internal/buildinfo"
	"github.com/dmitrijs2005/cdnkeeper/internal/cfsign"
	"github.com/dmitrijs2005/cdnkeeper/internal/common"
	"github.com/dmitrijs2005/cdnkeeper/internal/invalidation"
	"github.com/dmitrijs2005/cdnkeeper/internal/s3store"
	"github.com/dmitrijs2005/cdnkeeper/internal/tiering"
)

func (a *App) signCommand() *cobra.Command {
	var (
		sourceIP  string
		notBefore string
		check     bool
	)

	cmd := &cobra.Command{
		Use:   "sign BUCKET KEY",
		Short: "Print a CloudFront signed URL for BUCKET/KEY",
		Long: `Print a CloudFront signed URL for BUCKET/KEY, valid for --ttl-days.

BUCKET is the host name the distribution answers on. Without --source-ip
or --not-before a canned policy is used; with either a custom policy is
signed instead.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			signer, err := a.newSigner()
			if err != nil {
				return err
			}

			ttl := a.config.SignTTLDays()
			var signed string
			if sourceIP != "" || notBefore != "" {
				opts := cfsign.PolicyOptions{TTLDays: ttl, SourceIP: sourceIP}
				if notBefore != "" {
					t, err := time.Parse(time.RFC3339, notBefore)
					if err != nil {
						return fmt.Errorf("--not-before: %w", err)
					}
					opts.NotBefore = t
				}
				signed, err = signer.SignWithPolicy(args[0], args[1], opts)
			} else {
				signed, err = signer.Sign(args[0], args[1], ttl)
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), signed)

			if !check {
				return nil
			}
			code, err := signer.Check(cmd.Context(), signed)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "status: %d\n", code)
			if code >= 400 {
				return fmt.Errorf("distribution rejected the signed URL with status %d", code)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&sourceIP, "source-ip", "", "restrict the URL to this address or CIDR range")
	cmd.Flags().StringVar(&notBefore, "not-before", "", "RFC 3339 time before which the URL is rejected")
	cmd.Flags().BoolVar(&check, "check", false, "request the signed URL and report the HTTP status")

	return cmd
}

func (a *App) signKeyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sign-key BUCKET KEY",
		Short: "Print only the signing query string for BUCKET/KEY",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			signer, err := a.newSigner()
			if err != nil {
				return err
			}
			query, err := signer.SignKeyOnly(args[0], args[1], a.config.SignTTLDays())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), query)
			return nil
		},
	}
}

func (a *App) retierCommand() *cobra.Command {
	var (
		copyACL string
		output  string
	)

	cmd := &cobra.Command{
		Use:   "retier BUCKET PREFIX TARGET",
		Short: "Move every object under PREFIX to the TARGET storage class",
		Long: `Move every object under BUCKET/PREFIX to the TARGET storage class.

TARGET is one of STANDARD, REDUCED_REDUNDANCY, STANDARD_IA, ONEZONE_IA,
GLACIER or DEEP_ARCHIVE. Objects already in TARGET, and objects smaller
than 128 KiB when TARGET is an infrequent-access class, are skipped.
Archived objects cannot be moved and are reported as failures.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			// Checked before anything is copied.
			if err := checkOutputFormat(output); err != nil {
				return err
			}

			target, err := tiering.ParseStorageClass(strings.ToUpper(args[2]))
			if err != nil {
				return err
			}

			var opts []s3store.Option
			if copyACL != "" {
				opts = append(opts, s3store.WithCopyACL(copyACL))
			}
			store, err := a.newObjectStore(ctx, opts...)
			if err != nil {
				return err
			}

			manager := tiering.NewManager(store, a.logger, a.metrics)
			report, err := tiering.NewBatch(store, manager, a.config.Concurrency, a.logger).
				Run(ctx, args[0], args[1], target)
			if err != nil {
				return err
			}

			if err := writeReport(cmd.OutOrStdout(), report, output); err != nil {
				return err
			}
			if report.Failed > 0 {
				return fmt.Errorf("%d of %d objects failed", report.Failed, len(report.Results))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&copyACL, "copy-acl", "", "canned ACL to apply to copied objects")
	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "report format (table, json, yaml)")

	return cmd
}

func (a *App) invalidator(cmd *cobra.Command) (*invalidation.Invalidator, error) {
	var api invalidation.API
	if a.config.DistributionID != "" {
		var err error
		if api, err = a.newCloudFront(cmd.Context()); err != nil {
			return nil, err
		}
	}
	return invalidation.New(api, a.config.DistributionID, a.config.StaticLocation, a.logger,
		invalidation.WithCallerReference(a.config.CallerReference),
		invalidation.WithMetrics(a.metrics),
	), nil
}

func (a *App) invalidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "invalidate [NAME]",
		Short: "Invalidate NAME (default: the static manifest) on the CDN",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := a.config.ManifestName()
			if len(args) == 1 {
				name = args[0]
			}

			inv, err := a.invalidator(cmd)
			if err != nil {
				return err
			}

			res := inv.Invalidate(cmd.Context(), name)
			if res == nil {
				return fmt.Errorf("invalidation of %s: %w", inv.Path(name), common.ErrRemoteService)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", res.ID, res.Status, res.Path)
			return nil
		},
	}
}

func (a *App) uploadCommand() *cobra.Command {
	var (
		name    string
		private bool
		signed  bool
	)

	cmd := &cobra.Command{
		Use:   "upload FILE",
		Short: "Upload FILE to the static (or private) bucket and print its URL",
		Long: `Upload FILE to the static bucket under --location and print its URL.

Uploading the compressor manifest invalidates it on the CDN. With
--private the file goes to the private bucket uncompressed and without a
public ACL; add --signed to print a CloudFront signed URL for it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			body, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			if name == "" {
				name = filepath.ToSlash(filepath.Base(args[0]))
			}

			uploader, err := a.newObjectStore(ctx)
			if err != nil {
				return err
			}

			var store *assets.Store
			if private {
				store, err = a.privateStore(uploader, signed)
			} else {
				store, err = a.staticStore(cmd, uploader)
			}
			if err != nil {
				return err
			}

			saved, err := store.Save(ctx, name, body)
			if err != nil {
				return err
			}

			if private && signed {
				u, err := store.SignedURL(saved, a.config.SignTTLDays())
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), u)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), store.URL(saved))
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "storage name (default: the file's base name)")
	cmd.Flags().BoolVar(&private, "private", false, "upload to the private bucket")
	cmd.Flags().BoolVar(&signed, "signed", false, "print a signed URL (with --private)")

	return cmd
}

func (a *App) staticStore(cmd *cobra.Command, uploader assets.Uploader) (*assets.Store, error) {
	inv, err := a.invalidator(cmd)
	if err != nil {
		return nil, err
	}

	return assets.New(uploader, assets.Options{
		Bucket:       a.config.StaticBucket,
		Domain:       a.config.StaticDomain,
		Location:     a.config.StaticLocation,
		ACL:          a.config.UploadACL,
		Gzip:         a.config.Gzip,
		LocalDir:     a.config.LocalCacheDir,
		ManifestName: a.config.ManifestName(),
	}, a.logger, assets.WithInvalidator(inv), assets.WithMetrics(a.metrics)), nil
}

func (a *App) privateStore(uploader assets.Uploader, signed bool) (*assets.Store, error) {
	opts := []assets.Option{assets.WithMetrics(a.metrics)}
	if signed {
		signer, err := a.newSigner()
		if err != nil {
			return nil, err
		}
		opts = append(opts, assets.WithSigner(signer))
	}

	return assets.New(uploader, assets.Options{
		Bucket: a.config.PrivateBucket,
		Domain: a.config.PrivateDomain,
		ACL:    "private",
	}, a.logger, opts...), nil
}

func (a *App) presignCommand() *cobra.Command {
	var expires time.Duration

	cmd := &cobra.Command{
		Use:   "presign BUCKET KEY",
		Short: "Print an S3 presigned GET URL for BUCKET/KEY",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.newObjectStore(cmd.Context())
			if err != nil {
				return err
			}
			u, err := store.PresignGet(cmd.Context(), args[0], args[1], expires)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), u)
			return nil
		},
	}

	cmd.Flags().DurationVar(&expires, "expires", 15*time.Minute, "lifetime of the presigned URL")

	return cmd
}

func (a *App) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		// No credentials or configuration are needed.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, _ []string) {
			buildinfo.PrintBuildData(cmd.OutOrStdout())
		},
	}
}
