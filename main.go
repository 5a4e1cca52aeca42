package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"asset-index/internal/database"
	"asset-index/internal/indexer"
	"asset-index/internal/logging"
	"asset-index/internal/phash"
	"asset-index/internal/tags"
)

func main() {
	cmd := &cli.Command{
		Name:  "asset-index",
		Usage: "Index game-art asset trees into a searchable catalog",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "db",
				Usage:   "Path to the catalog database",
				Value:   "assets.db",
				Sources: cli.EnvVars("ASSET_DB"),
			},
		},
		Commands: []*cli.Command{
			indexCommand(),
			searchCommand(),
			similarCommand(),
			infoCommand(),
			packsCommand(),
			tagsCommand(),
			statsCommand(),
			pruneCommand(),
			overrideCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		logging.Error("%v", err)
		os.Exit(1)
	}
}

func openDB(ctx context.Context, cmd *cli.Command) (*database.Database, error) {
	return database.New(ctx, cmd.String("db"))
}

func indexCommand() *cli.Command {
	return &cli.Command{
		Name:      "index",
		Usage:     "Index an asset directory",
		ArgsUsage: "<asset-root>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "force", Aliases: []string{"f"}, Usage: "Reprocess every file, ignoring stored hashes"},
			&cli.BoolFlag{Name: "watch", Aliases: []string{"w"}, Usage: "Keep running and re-index on filesystem changes"},
			&cli.BoolFlag{Name: "prune", Usage: "Remove catalog rows for files no longer on disk"},
			&cli.IntFlag{Name: "workers", Usage: "Extraction worker count (0 = auto)"},
			&cli.StringFlag{Name: "vocab", Usage: "Path to a YAML tag vocabulary"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			root := cmd.Args().First()
			if root == "" {
				return fmt.Errorf("missing asset root argument")
			}
			info, err := os.Stat(root)
			if err != nil {
				return err
			}
			if !info.IsDir() {
				return fmt.Errorf("not a directory: %s", root)
			}

			db, err := openDB(ctx, cmd)
			if err != nil {
				return err
			}
			defer closeDB(db)

			opts := []indexer.Option{
				indexer.WithForce(cmd.Bool("force")),
				indexer.WithWorkers(int(cmd.Int("workers"))),
			}
			if vocabPath := cmd.String("vocab"); vocabPath != "" {
				vocab, err := tags.LoadVocabulary(vocabPath)
				if err != nil {
					return err
				}
				opts = append(opts, indexer.WithVocabulary(vocab))
			}
			idx := indexer.New(db, root, opts...)

			if cmd.Bool("watch") {
				return idx.Watch(ctx)
			}

			result, err := idx.Run(ctx)
			if err != nil {
				return err
			}
			if cmd.Bool("prune") {
				if result.Pruned, err = idx.PruneMissing(ctx); err != nil {
					return err
				}
			}
			fmt.Printf("Indexed %d new/changed, skipped %d unchanged, %d failed, pruned %d (%v)\n",
				result.Indexed, result.Skipped, result.Failed, result.Pruned, result.Duration.Round(time.Millisecond))
			return nil
		},
	}
}

func searchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Search assets by name, tags, color, pack, or filetype",
		ArgsUsage: "[query]",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "tag", Aliases: []string{"t"}, Usage: "Filter by tag (repeatable, all must match)"},
			&cli.StringFlag{Name: "color", Aliases: []string{"c"}, Usage: "Filter by dominant color (name or hex)"},
			&cli.StringFlag{Name: "pack", Aliases: []string{"p"}, Usage: "Filter by pack name"},
			&cli.StringFlag{Name: "type", Usage: "Filter by filetype"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Usage: "Max results", Value: 50},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			db, err := openDB(ctx, cmd)
			if err != nil {
				return err
			}
			defer closeDB(db)

			results, err := db.Search(ctx, database.SearchFilters{
				Query:    cmd.Args().First(),
				Tags:     cmd.StringSlice("tag"),
				Color:    cmd.String("color"),
				Pack:     cmd.String("pack"),
				Filetype: cmd.String("type"),
				Limit:    int(cmd.Int("limit")),
			})
			if err != nil {
				return err
			}
			if len(results) == 0 {
				fmt.Println("No assets found.")
				return nil
			}
			for _, r := range results {
				size := "-"
				if r.Width > 0 {
					size = fmt.Sprintf("%dx%d", r.Width, r.Height)
					if r.FrameCount > 1 {
						size += fmt.Sprintf(" (%df)", r.FrameCount)
					}
				}
				pack := r.PackName
				if pack == "" {
					pack = "-"
				}
				fmt.Printf("%6d  %-40s %-12s %-20s %s\n",
					r.ID, r.Filename, size, pack, strings.Join(r.Tags, ","))
			}
			return nil
		},
	}
}

func similarCommand() *cli.Command {
	return &cli.Command{
		Name:      "similar",
		Usage:     "Find visually similar assets",
		ArgsUsage: "<asset-id | path-fragment | image-file>",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "distance", Aliases: []string{"d"}, Usage: "Max Hamming distance", Value: 15},
			&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Usage: "Max results", Value: 10},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			reference := cmd.Args().First()
			if reference == "" {
				return fmt.Errorf("missing reference argument")
			}

			db, err := openDB(ctx, cmd)
			if err != nil {
				return err
			}
			defer closeDB(db)

			ref, excludeID, err := resolveReference(ctx, db, reference)
			if err != nil {
				return err
			}

			results, err := db.FindSimilar(ctx, ref, int(cmd.Int("distance")), int(cmd.Int("limit")), excludeID)
			if err != nil {
				return err
			}
			if len(results) == 0 {
				fmt.Printf("No similar assets found for %s\n", reference)
				return nil
			}
			for _, r := range results {
				pack := r.PackName
				if pack == "" {
					pack = "-"
				}
				fmt.Printf("%4d  %6d  %-40s %s\n", r.Distance, r.AssetID, r.Filename, pack)
			}
			return nil
		},
	}
}

// resolveReference turns the similar command's argument into a fingerprint:
// a numeric asset id, a path fragment of an indexed asset, or an image file
// outside the catalog.
func resolveReference(ctx context.Context, db *database.Database, reference string) (phash.Hash, int64, error) {
	if id, err := strconv.ParseInt(reference, 10, 64); err == nil {
		h, err := db.PHashByAssetID(ctx, id)
		if err != nil {
			return nil, 0, fmt.Errorf("no fingerprint for asset %d: %w", id, err)
		}
		return h, id, nil
	}

	if id, h, err := db.PHashByPath(ctx, reference); err == nil {
		return h, id, nil
	}

	img, err := imaging.Open(reference)
	if err != nil {
		return nil, 0, fmt.Errorf("could not find or compute fingerprint for %q", reference)
	}
	h, err := phash.Compute(img)
	if err != nil {
		return nil, 0, err
	}
	return h, 0, nil
}

func infoCommand() *cli.Command {
	return &cli.Command{
		Name:      "info",
		Usage:     "Show full metadata for an asset",
		ArgsUsage: "<asset-id>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			id, err := strconv.ParseInt(cmd.Args().First(), 10, 64)
			if err != nil {
				return fmt.Errorf("asset id must be a number")
			}

			db, err := openDB(ctx, cmd)
			if err != nil {
				return err
			}
			defer closeDB(db)

			detail, err := db.GetAssetDetail(ctx, id)
			if err != nil {
				return fmt.Errorf("asset %d not found", id)
			}

			fmt.Printf("%s\n", detail.Filename)
			fmt.Printf("  Path: %s\n", detail.Path)
			if detail.PackName != "" {
				fmt.Printf("  Pack: %s\n", detail.PackName)
			}
			fmt.Printf("  Type: %s\n", detail.Filetype)
			fmt.Printf("  Size: %d bytes\n", detail.FileSize)
			if detail.Width > 0 {
				fmt.Printf("  Dimensions: %dx%d\n", detail.Width, detail.Height)
			}
			if detail.PreviewBounds != nil {
				r := detail.PreviewBounds
				fmt.Printf("  Preview: %d,%d %dx%d\n", r.X, r.Y, r.Width, r.Height)
			}
			if detail.FrameCount > 0 {
				fmt.Printf("  Frames: %d (%dms total)\n", detail.FrameCount, detail.DurationMS)
			}
			if len(detail.Tags) > 0 {
				var names []string
				for _, tag := range detail.Tags {
					names = append(names, tag.Name)
				}
				fmt.Printf("  Tags: %s\n", strings.Join(names, ", "))
			}
			if len(detail.Colors) > 0 {
				var cs []string
				for _, c := range detail.Colors {
					cs = append(cs, fmt.Sprintf("%s (%.0f%%)", c.Hex, c.Percentage*100))
				}
				fmt.Printf("  Colors: %s\n", strings.Join(cs, ", "))
			}
			if len(detail.Relations) > 0 {
				fmt.Println("  Related:")
				for _, r := range detail.Relations {
					fmt.Printf("    - %s (%s)\n", r.Filename, r.Type)
				}
			}
			return nil
		},
	}
}

func packsCommand() *cli.Command {
	return &cli.Command{
		Name:  "packs",
		Usage: "List indexed packs",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			db, err := openDB(ctx, cmd)
			if err != nil {
				return err
			}
			defer closeDB(db)

			packs, err := db.ListPacks(ctx)
			if err != nil {
				return err
			}
			if len(packs) == 0 {
				fmt.Println("No packs indexed yet.")
				return nil
			}
			for _, p := range packs {
				version := p.Version
				if version == "" {
					version = "-"
				}
				fmt.Printf("%4d  %-40s %-8s %d assets\n", p.ID, p.Name, version, p.AssetCount)
			}
			return nil
		},
	}
}

func tagsCommand() *cli.Command {
	return &cli.Command{
		Name:  "tags",
		Usage: "List tags by usage",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Usage: "Max tags", Value: 50},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			db, err := openDB(ctx, cmd)
			if err != nil {
				return err
			}
			defer closeDB(db)

			counts, err := db.ListTags(ctx, int(cmd.Int("limit")))
			if err != nil {
				return err
			}
			for _, tc := range counts {
				fmt.Printf("%-30s %d\n", tc.Name, tc.Count)
			}
			return nil
		},
	}
}

func statsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Show catalog statistics",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			db, err := openDB(ctx, cmd)
			if err != nil {
				return err
			}
			defer closeDB(db)

			stats, err := db.GetStats(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Packs:  %d\n", stats.Packs)
			fmt.Printf("Assets: %d\n", stats.Assets)
			fmt.Printf("Tags:   %d\n", stats.Tags)
			for ft, count := range stats.Filetypes {
				fmt.Printf("  %s: %d\n", ft, count)
			}
			return nil
		},
	}
}

func pruneCommand() *cli.Command {
	return &cli.Command{
		Name:      "prune",
		Usage:     "Remove catalog rows for files no longer on disk",
		ArgsUsage: "<asset-root>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "vacuum", Usage: "Reclaim database space after pruning"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			root := cmd.Args().First()
			if root == "" {
				return fmt.Errorf("missing asset root argument")
			}

			db, err := openDB(ctx, cmd)
			if err != nil {
				return err
			}
			defer closeDB(db)

			pruned, err := indexer.New(db, root).PruneMissing(ctx)
			if err != nil {
				return err
			}
			if cmd.Bool("vacuum") {
				if err := db.Vacuum(); err != nil {
					return err
				}
			}
			fmt.Printf("Pruned %d assets.\n", pruned)
			return nil
		},
	}
}

func overrideCommand() *cli.Command {
	return &cli.Command{
		Name:      "override",
		Usage:     "Manage preview overrides (full image instead of detected bounds)",
		ArgsUsage: "<asset-path>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "clear", Usage: "Remove the override, restoring detected bounds"},
			&cli.BoolFlag{Name: "list", Usage: "List all overrides"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			db, err := openDB(ctx, cmd)
			if err != nil {
				return err
			}
			defer closeDB(db)

			if cmd.Bool("list") {
				overrides, err := db.ListPreviewOverrides(ctx)
				if err != nil {
					return err
				}
				for _, o := range overrides {
					mode := "bounds"
					if o.UseFullImage {
						mode = "full"
					}
					fmt.Printf("%-60s %s\n", o.Path, mode)
				}
				return nil
			}

			path := cmd.Args().First()
			if path == "" {
				return fmt.Errorf("missing asset path argument")
			}
			if cmd.Bool("clear") {
				return db.DeletePreviewOverride(ctx, path)
			}
			return db.SetPreviewOverride(ctx, path, true)
		},
	}
}

func closeDB(db *database.Database) {
	if err := db.Close(); err != nil {
		logging.Error("Failed to close database: %v", err)
	}
}
