// Command u4pak is a thin CLI front end over the archive codec: check,
// list, and extract. Table formatting, size pretty-printing, and FUSE
// mounting are deliberately not implemented here.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/panzi/u4pak"
	"github.com/panzi/u4pak/internal/cipher"
	"github.com/panzi/u4pak/internal/pathfilter"
)

func main() {
	app := &cli.App{
		Name:  "u4pak",
		Usage: "read, verify, and extract Unreal Engine .pak archives",
		Commands: []*cli.Command{
			newCheckCmd(),
			newListCmd(),
			newExtractCmd(),
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func commonOpenFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "key", Usage: "base64-encoded AES-256 key for an encrypted index"},
		&cli.Uint64Flag{Name: "force-version", Usage: "override the footer's version field"},
		&cli.BoolFlag{Name: "ignore-magic", Usage: "skip the footer magic number check"},
	}
}

func openArchive(c *cli.Context, path string) (*u4pak.Archive, error) {
	opts := u4pak.ReadOptions{
		IgnoreMagic:  c.Bool("ignore-magic"),
		ForceVersion: uint32(c.Uint64("force-version")),
	}
	if key := c.String("key"); key != "" {
		k, err := cipher.ParseKey(key)
		if err != nil {
			return nil, err
		}
		opts.EncryptionKey = &k
	}
	return u4pak.Open(path, opts)
}

func newCheckCmd() *cli.Command {
	return &cli.Command{
		Name:      "check",
		Usage:     "verify an archive's index and record digests",
		ArgsUsage: "<archive.pak>",
		Flags: append(commonOpenFlags(),
			&cli.IntFlag{Name: "workers", Usage: "worker pool size, default NumCPU"},
			&cli.BoolFlag{Name: "abort-on-error", Usage: "stop checking at the first failure"},
			&cli.BoolFlag{Name: "ignore-null-checksums", Usage: "skip digest checks when the stored SHA-1 is all zero"},
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}},
		),
		Action: func(c *cli.Context) error {
			path := c.Args().First()
			if path == "" {
				return cli.Exit("missing archive path", 2)
			}
			archive, err := openArchive(c, path)
			if err != nil {
				return err
			}
			logger, _ := zap.NewDevelopment()
			defer logger.Sync()

			failures, err := u4pak.Check(archive, path, u4pak.CheckOptions{
				Workers:             c.Int("workers"),
				AbortOnError:        c.Bool("abort-on-error"),
				IgnoreNullChecksums: c.Bool("ignore-null-checksums"),
				Verbose:             c.Bool("verbose"),
				Logger:              logger,
			})
			if err != nil {
				return err
			}
			if failures > 0 {
				return cli.Exit(fmt.Sprintf("%d check failures", failures), 1)
			}
			return nil
		},
	}
}

func newListCmd() *cli.Command {
	return &cli.Command{
		Name:      "list",
		Usage:     "print every archive entry's filename, one per line",
		ArgsUsage: "<archive.pak>",
		Flags:     commonOpenFlags(),
		Action: func(c *cli.Context) error {
			path := c.Args().First()
			if path == "" {
				return cli.Exit("missing archive path", 2)
			}
			archive, err := openArchive(c, path)
			if err != nil {
				return err
			}
			for _, rec := range archive.Records {
				fmt.Println(rec.Filename)
			}
			return nil
		},
	}
}

func newExtractCmd() *cli.Command {
	return &cli.Command{
		Name:      "extract",
		Usage:     "extract matching archive entries to a directory",
		ArgsUsage: "<archive.pak> <out-dir> [path-prefix...]",
		Flags: append(commonOpenFlags(),
			&cli.IntFlag{Name: "workers", Usage: "worker pool size, default NumCPU"},
			&cli.BoolFlag{Name: "abort-on-error", Usage: "stop extracting at the first failure"},
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}},
		),
		Action: func(c *cli.Context) error {
			path := c.Args().First()
			outDir := c.Args().Get(1)
			if path == "" || outDir == "" {
				return cli.Exit("missing archive path or output directory", 2)
			}
			archive, err := openArchive(c, path)
			if err != nil {
				return err
			}

			var filter *pathfilter.Filter
			if all := c.Args().Slice(); len(all) > 2 {
				filter = pathfilter.New(all[2:]...)
			}

			logger, _ := zap.NewDevelopment()
			defer logger.Sync()

			n, err := u4pak.Extract(archive, path, outDir, u4pak.ExtractOptions{
				Workers:       c.Int("workers"),
				AbortOnError:  c.Bool("abort-on-error"),
				Verbose:       c.Bool("verbose"),
				Logger:        logger,
				Filter:        filter,
				EncryptionKey: archiveKey(c),
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "extracted %d entries\n", n)
			return nil
		},
	}
}

func archiveKey(c *cli.Context) *cipher.Key {
	key := c.String("key")
	if key == "" {
		return nil
	}
	k, err := cipher.ParseKey(key)
	if err != nil {
		return nil
	}
	return &k
}
