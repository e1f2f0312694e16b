package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/carlmjohnson/versioninfo"
	"github.com/dustin/go-humanize"
	"github.com/iancoleman/strcase"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/pdok/skypix/config"
	"github.com/pdok/skypix/coverage"
	"github.com/pdok/skypix/gpkg"
	"github.com/pdok/skypix/logging"
	"github.com/pdok/skypix/mapslicehelp"
	"github.com/pdok/skypix/metrics"
	"github.com/pdok/skypix/processing"
	"github.com/pdok/skypix/region"
)

const CONFIG string = `config`
const OUTPUT string = `output`
const INPUT string = `input`
const SEEDMAP string = `seedMap`
const MAXRESOLUTION string = `maxResolution`
const MAXLEVEL string = `maxLevel`
const STARTINDEX string = `startIndex`
const FINISHINDEX string = `finishIndex`
const WEIGHT string = `weight`
const ADDMAPS string = `addMaps`
const VERBOSE string = `verbose`
const WORKERS string = `workers`
const STATUSINTERVAL string = `statusInterval`
const GPKG string = `gpkg`
const GPKGTABLE string = `gpkgTable`
const OVERWRITE string = `overwrite`
const WKT string = `wkt`
const METRICS string = `metrics`

//nolint:funlen
func main() {
	app := cli.NewApp()
	app.Name = "skypix"
	app.Usage = "Pixelizes sky regions (circles, rectangles, polygons) into one weighted coverage map"
	app.Version = versioninfo.Short()

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    CONFIG,
			Aliases: []string{"c"},
			Usage:   "YAML or JSON config file. Flags override its values",
			EnvVars: []string{strcase.ToScreamingSnake(CONFIG)},
		},
		&cli.StringFlag{
			Name:    OUTPUT,
			Aliases: []string{"o"},
			Usage:   "Map file to write. Compressed when ending in .gz or .zst. Progress goes to <output>_status",
			EnvVars: []string{strcase.ToScreamingSnake(OUTPUT)},
		},
		&cli.StringSliceFlag{
			Name:    INPUT,
			Aliases: []string{"i"},
			Usage:   "Region file(s), comma separated. All regions end up in one map",
			EnvVars: []string{strcase.ToScreamingSnake(INPUT)},
		},
		&cli.StringFlag{
			Name:    SEEDMAP,
			Aliases: []string{"s"},
			Usage:   "Existing map (text or .gpkg) to add or ingest the regions into",
			EnvVars: []string{strcase.ToScreamingSnake(SEEDMAP)},
		},
		&cli.IntFlag{
			Name:    MAXRESOLUTION,
			Aliases: []string{"r"},
			Usage:   "Maximum resolution (power of two) to pixelize regions at",
			Value:   config.Default().MaxResolution,
			EnvVars: []string{strcase.ToScreamingSnake(MAXRESOLUTION)},
		},
		&cli.IntFlag{
			Name:    MAXLEVEL,
			Aliases: []string{"l"},
			Usage:   "Maximum cell level (0-30). Overrides the maximum resolution",
			Value:   -1,
			EnvVars: []string{strcase.ToScreamingSnake(MAXLEVEL)},
		},
		&cli.Int64Flag{
			Name:    STARTINDEX,
			Usage:   "First region index to pixelize",
			EnvVars: []string{strcase.ToScreamingSnake(STARTINDEX)},
		},
		&cli.Int64Flag{
			Name:    FINISHINDEX,
			Usage:   "Region index to stop before, -1 for all",
			Value:   -1,
			EnvVars: []string{strcase.ToScreamingSnake(FINISHINDEX)},
		},
		&cli.Float64Flag{
			Name:    WEIGHT,
			Aliases: []string{"w"},
			Usage:   "Weight for regions without one",
			Value:   config.Default().DefaultWeight,
			EnvVars: []string{strcase.ToScreamingSnake(WEIGHT)},
		},
		&cli.BoolFlag{
			Name:    ADDMAPS,
			Aliases: []string{"a"},
			Usage:   "Sum the weights of overlapping regions instead of keeping the first",
			EnvVars: []string{strcase.ToScreamingSnake(ADDMAPS)},
		},
		&cli.BoolFlag{
			Name:    VERBOSE,
			Aliases: []string{"v"},
			Usage:   "Log every region",
			EnvVars: []string{strcase.ToScreamingSnake(VERBOSE)},
		},
		&cli.IntFlag{
			Name:    WORKERS,
			Usage:   "Number of regions pixelized in parallel, 0 for one per CPU",
			EnvVars: []string{strcase.ToScreamingSnake(WORKERS)},
		},
		&cli.IntFlag{
			Name:    STATUSINTERVAL,
			Usage:   "Write the status file every this many regions",
			Value:   processing.DefaultStatusInterval,
			EnvVars: []string{strcase.ToScreamingSnake(STATUSINTERVAL)},
		},
		&cli.StringFlag{
			Name:    GPKG,
			Usage:   "Also write the map to this GeoPackage, one polygon per cell",
			EnvVars: []string{strcase.ToScreamingSnake(GPKG)},
		},
		&cli.StringFlag{
			Name:    GPKGTABLE,
			Usage:   "Table name in the GeoPackage (seed map and output)",
			Value:   gpkg.DefaultTableName,
			EnvVars: []string{strcase.ToScreamingSnake(GPKGTABLE)},
		},
		&cli.BoolFlag{
			Name:    OVERWRITE,
			Usage:   "Overwrite the GeoPackage if it exists",
			EnvVars: []string{strcase.ToScreamingSnake(OVERWRITE)},
		},
		&cli.StringFlag{
			Name:    WKT,
			Usage:   "Also write the map as WKT polygons, for debugging",
			EnvVars: []string{strcase.ToScreamingSnake(WKT)},
		},
		&cli.StringFlag{
			Name:    METRICS,
			Usage:   "Write run metrics to this file in Prometheus text format",
			EnvVars: []string{strcase.ToScreamingSnake(METRICS)},
		},
	}

	app.Action = func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}
		logger := logging.New(cfg.Verbose)
		defer func() { _ = logger.Sync() }()

		ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
		defer stop()
		return run(ctx, cfg, logger)
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal(err)
	}
}

// loadConfig reads the config file, if any, and applies the flags that were set.
//
//nolint:cyclop
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg := config.Default()
	if path := c.String(CONFIG); path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	}
	if c.IsSet(OUTPUT) {
		cfg.Output = c.String(OUTPUT)
	}
	if c.IsSet(INPUT) {
		cfg.Inputs = c.StringSlice(INPUT)
	}
	if c.IsSet(SEEDMAP) {
		cfg.SeedMap = c.String(SEEDMAP)
	}
	if c.IsSet(MAXRESOLUTION) {
		cfg.MaxResolution = c.Int(MAXRESOLUTION)
	}
	if c.IsSet(MAXLEVEL) {
		cfg.MaxLevel = c.Int(MAXLEVEL)
	}
	if c.IsSet(STARTINDEX) {
		cfg.StartIndex = c.Int64(STARTINDEX)
	}
	if c.IsSet(FINISHINDEX) {
		cfg.FinishIndex = c.Int64(FINISHINDEX)
	}
	if c.IsSet(WEIGHT) {
		cfg.DefaultWeight = c.Float64(WEIGHT)
	}
	if c.IsSet(ADDMAPS) {
		cfg.AddMaps = c.Bool(ADDMAPS)
	}
	if c.IsSet(VERBOSE) {
		cfg.Verbose = c.Bool(VERBOSE)
	}
	if c.IsSet(WORKERS) {
		cfg.Workers = c.Int(WORKERS)
	}
	if c.IsSet(STATUSINTERVAL) {
		cfg.StatusInterval = c.Int(STATUSINTERVAL)
	}
	if c.IsSet(GPKG) {
		cfg.GeopackageOutput = c.String(GPKG)
	}
	if c.IsSet(GPKGTABLE) {
		cfg.GeopackageTable = c.String(GPKGTABLE)
	}
	if c.IsSet(OVERWRITE) {
		cfg.Overwrite = c.Bool(OVERWRITE)
	}
	if c.IsSet(WKT) {
		cfg.WktOutput = c.String(WKT)
	}
	if c.IsSet(METRICS) {
		cfg.MetricsOutput = c.String(METRICS)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) (err error) {
	opts, err := cfg.Options()
	if err != nil {
		return err
	}
	acc, err := readSeedMap(cfg, logger)
	if err != nil {
		return err
	}

	m := metrics.New()
	if cfg.MetricsOutput != "" {
		defer func() {
			if merr := m.WriteFile(cfg.MetricsOutput); merr != nil {
				logger.Error("could not write metrics", zap.Error(merr))
			}
		}()
	}

	logger.Info("=== start pixelizing ===",
		zap.Int("maxLevel", opts.MaxLevel),
		zap.Stringer("mode", opts.Mode),
		zap.Int64("start", opts.Range.Start),
		zap.Int64("finish", opts.Range.Finish))
	p := processing.New(opts, logger, m)
	for _, input := range cfg.Inputs {
		if err = processFile(ctx, p, input, acc, logger); err != nil {
			return err
		}
	}
	status := p.Status()
	logger.Info("=== done pixelizing ===",
		zap.String("regions", humanize.Comma(mapslicehelp.SumVals(status.ByType))),
		zap.String("kept", humanize.Comma(status.Kept)),
		zap.String("empty", humanize.Comma(status.Empty)),
		zap.String("skipped", humanize.Comma(status.Skipped)),
		zap.Float64("pixelizedArea", status.PixelizedArea),
		zap.Float64("rawArea", status.RawArea))
	for _, typ := range mapslicehelp.OrderedMapKeys(status.ByType) {
		n, _ := status.ByType.Get(typ)
		logger.Info("  regions by type", zap.String("type", typ), zap.String("count", humanize.Comma(n)))
	}

	if acc.IsEmpty() {
		logger.Warn("no pixels in map, nothing written")
		return nil
	}
	logger.Info("writing map",
		zap.String("file", cfg.Output),
		zap.String("cells", humanize.Comma(int64(acc.Size()))),
		zap.Float64("area", acc.Area()),
		zap.Float64("weightedArea", acc.WeightedArea()),
		zap.Int("minLevel", acc.MinLevel()),
		zap.Int("maxLevel", acc.MaxLevel()))

	targets := []processing.Target{processing.MapFile(cfg.Output)}
	if cfg.WktOutput != "" {
		targets = append(targets, processing.WktFile(cfg.WktOutput))
	}
	if cfg.GeopackageOutput != "" {
		target, terr := initGPKGTarget(cfg, logger)
		if terr != nil {
			return terr
		}
		defer func() {
			if cerr := target.Close(); err == nil {
				err = cerr
			}
		}()
		targets = append(targets, target)
	}
	return processing.WriteTargets(acc, targets...)
}

func processFile(ctx context.Context, p *processing.Processor, input string, acc *coverage.Map, logger *zap.Logger) error {
	f, err := os.Open(input)
	if err != nil {
		return fmt.Errorf("could not open region file: %w", err)
	}
	defer f.Close()

	logger.Info("parsing", zap.String("file", input))
	if err = p.Run(ctx, region.NewReader(f), acc); err != nil {
		return fmt.Errorf("%s: %w", input, err)
	}
	logger.Info("parsed", zap.String("file", input), zap.String("status", p.Status().String()))
	return nil
}

func readSeedMap(cfg *config.Config, logger *zap.Logger) (*coverage.Map, error) {
	if cfg.SeedMap == "" {
		return coverage.New(), nil
	}
	var m *coverage.Map
	var err error
	if strings.EqualFold(filepath.Ext(cfg.SeedMap), ".gpkg") {
		m, err = readGPKGMap(cfg.SeedMap, cfg.GeopackageTable)
	} else {
		m, err = coverage.ReadFile(cfg.SeedMap)
	}
	if err != nil {
		return nil, fmt.Errorf("could not read seed map: %w", err)
	}
	logger.Info("seed map",
		zap.String("file", cfg.SeedMap),
		zap.String("cells", humanize.Comma(int64(m.Size()))),
		zap.Float64("area", m.Area()))
	return m, nil
}

func readGPKGMap(file, table string) (*coverage.Map, error) {
	source, err := gpkg.OpenSource(file, gpkg.CoverageTable(table))
	if err != nil {
		return nil, err
	}
	defer source.Close()
	return source.ReadMap()
}

func initGPKGTarget(cfg *config.Config, logger *zap.Logger) (*gpkg.TargetGeopackage, error) {
	if cfg.Overwrite {
		err := os.Remove(cfg.GeopackageOutput)
		var pathError *os.PathError
		if err != nil && !(errors.As(err, &pathError) && errors.Is(pathError.Err, syscall.ENOENT)) {
			return nil, fmt.Errorf("could not remove target file: %w", err)
		}
	}
	return gpkg.NewTarget(cfg.GeopackageOutput, gpkg.CoverageTable(cfg.GeopackageTable), gpkg.DefaultPagesize, logger)
}
