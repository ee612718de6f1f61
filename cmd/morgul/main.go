package main

import (
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"log"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/bodgit/morgul"
	"github.com/bodgit/morgul/calibration"
	"github.com/bodgit/morgul/config"
	"github.com/bodgit/morgul/correct"
	"github.com/bodgit/morgul/geometry"
	"github.com/bodgit/morgul/output"
	"github.com/bodgit/morgul/preview"
	"github.com/urfave/cli/v2"
)

const defaultConfig = "morgul.yaml"

func init() {
	cli.VersionFlag = &cli.BoolFlag{
		Name:    "version",
		Aliases: []string{"V"},
		Usage:   "print the version",
	}
}

func newLogger(c *cli.Context) *log.Logger {
	logger := log.New(ioutil.Discard, "", 0)
	if c.Bool("verbose") {
		logger.SetOutput(os.Stderr)
	}
	return logger
}

// loadConfig reads the configuration file and applies any flags given on the
// command line over it
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return nil, err
	}

	if db := c.String("db"); db != "" {
		cfg.Database = db
	}
	if c.IsSet("gains") {
		cfg.Gains = c.String("gains")
	}
	if c.IsSet("energy") {
		cfg.Energy = c.Float64("energy")
	}
	if c.IsSet("skip") {
		cfg.Skip = c.Int("skip")
	}
	if c.IsSet("workers") {
		cfg.Workers = c.Int("workers")
	}
	if c.IsSet("overflow") {
		cfg.Overflow = c.String("overflow")
	}
	if c.IsSet("output") {
		cfg.Output.Directory = c.String("output")
	}
	if c.IsSet("prefix") {
		cfg.Output.Prefix = c.String("prefix")
	}
	if c.IsSet("format") {
		switch c.Command.Name {
		case "preview":
			cfg.Preview.Format = c.String("format")
		default:
			cfg.Output.Format = c.String("format")
		}
	}
	if c.IsSet("compact") && c.Bool("compact") {
		cfg.Output.Geometry = config.Compact
	}
	if c.IsSet("threshold") {
		cfg.Mask.Threshold = c.Float64("threshold")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func newCorrector(cfg *config.Config, p *calibration.Pedestals) (*correct.Corrector, error) {
	g, err := calibration.ReadGainsFile(cfg.Gains)
	if err != nil {
		return nil, err
	}

	cal, err := calibration.New(g, p)
	if err != nil {
		return nil, err
	}

	policy, err := correct.ParsePolicy(cfg.Overflow)
	if err != nil {
		return nil, err
	}

	return correct.New(cal, cfg.Energy, correct.WithPolicy(policy))
}

func writePedestals(file string, p *calibration.Pedestals) error {
	b, err := p.MarshalBinary()
	if err != nil {
		return err
	}
	return ioutil.WriteFile(file, b, 0666)
}

func pedestal(c *cli.Context) error {
	var files []string
	switch {
	case c.IsSet("low") || c.IsSet("medium") || c.IsSet("high"):
		files = []string{c.String("low"), c.String("medium"), c.String("high")}
	case c.NArg() == 1:
		files = []string{c.Args().First()}
	default:
		cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
	}

	logger := newLogger(c)

	cfg, err := loadConfig(c)
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	p, err := morgul.EstimatePedestals(logger, c.Int("frames"), files...)
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	if c.IsSet("save") {
		if err := writePedestals(c.String("save"), p); err != nil {
			return cli.NewExitError(err, 1)
		}
	}

	db, err := morgul.NewDB(cfg.Database)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	defer db.Close()

	id, err := db.SavePedestal(c.String("name"), p)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	logger.Printf("Stored pedestal \"%s\" with id %d\n", c.String("name"), id)

	return nil
}

func mask(c *cli.Context) error {
	if c.NArg() < 1 {
		cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
	}

	logger := newLogger(c)

	cfg, err := loadConfig(c)
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	db, err := morgul.NewDB(cfg.Database)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	defer db.Close()

	_, p, err := db.LoadPedestal(c.String("pedestal"))
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	corrector, err := newCorrector(cfg, p)
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	bad, err := morgul.FlatField(logger, corrector, c.Args().First(), c.Int("skip"), cfg.Mask.Threshold)
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	cal, err := corrector.Calibration().WithMask(bad)
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	p = cal.Pedestals()
	id, err := db.SavePedestal(c.String("name"), p)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	logger.Printf("Stored pedestal \"%s\" with id %d and %d pixels masked\n", c.String("name"), id, p.Masked())

	return nil
}

func correctFrames(c *cli.Context) error {
	if c.NArg() < 1 {
		cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
	}

	logger := newLogger(c)

	cfg, err := loadConfig(c)
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	db, err := morgul.NewDB(cfg.Database)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	defer db.Close()

	files := c.Args().Slice()

	var id int64
	var p *calibration.Pedestals
	if c.IsSet("pedestal") {
		id, p, err = db.LoadPedestal(c.String("pedestal"))
	} else {
		// The dark runs were recorded at the start of the first file
		p, err = morgul.EstimatePedestals(logger, c.Int("frames"), files[0])
	}
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	corrector, err := newCorrector(cfg, p)
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	format, err := output.ParseFormat(cfg.Output.Format)
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	w := db.Catalog(&output.Directory{
		Root:   cfg.Output.Directory,
		Prefix: cfg.Output.Prefix,
		Format: format,
		Energy: cfg.Energy,
	}, id)

	inputs := make([]morgul.Input, len(files))
	for i, file := range files {
		inputs[i].Path = file
	}
	inputs[0].Skip = cfg.Skip

	m := morgul.New(corrector, w, logger, morgul.WithWorkers(cfg.Workers), morgul.WithCompact(cfg.IsCompact()))
	if _, err := m.Process(context.Background(), inputs); err != nil {
		return cli.NewExitError(err, 1)
	}

	return nil
}

func pattern(c *cli.Context) error {
	if c.NArg() < 1 {
		cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
	}

	m, err := geometry.Expand(geometry.TestPattern())
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	f, err := os.Create(c.Args().First())
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	defer f.Close()

	if err := output.EncodeRaw(f, m); err != nil {
		return cli.NewExitError(err, 1)
	}

	return nil
}

func readImage(file string, compact bool) (*geometry.Image, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if compact {
		return output.DecodeRaw(f, geometry.NX, geometry.NY)
	}
	return output.DecodeRaw(f, geometry.ExpandedX, geometry.ExpandedY)
}

func renderPreview(c *cli.Context) error {
	if c.NArg() < 2 {
		cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	format, err := preview.ParseFormat(cfg.Preview.Format)
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	m, err := readImage(c.Args().Get(0), cfg.IsCompact())
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	f, err := os.Create(c.Args().Get(1))
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	defer f.Close()

	if err := preview.Encode(f, m, format); err != nil {
		return cli.NewExitError(err, 1)
	}

	return nil
}

func printPedestals(out io.Writer, db *morgul.DB, verify bool) error {
	list, err := db.Pedestals()
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCREATED\tFRAMES\tMASKED\tWRITTEN")
	for _, p := range list {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%d\n", p.ID, p.Name, p.Created.Format("2006-01-02 15:04:05"), p.Frames, p.Masked, p.Written)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if !verify {
		return nil
	}

	for _, p := range list {
		bad, err := db.Verify(p.ID)
		if err != nil {
			return err
		}
		for _, file := range bad {
			fmt.Fprintf(out, "%s: \"%s\" is missing or modified\n", p.Name, file)
		}
	}

	return nil
}

func list(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	db, err := morgul.NewDB(cfg.Database)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	defer db.Close()

	if err := printPedestals(os.Stdout, db, c.Bool("verify")); err != nil {
		return cli.NewExitError(err, 1)
	}

	return nil
}

func main() {
	app := cli.NewApp()

	app.Name = "morgul"
	app.Usage = "Jungfrau detector module correction utility"
	app.Version = "1.0.0"

	cwd, err := os.Getwd()
	if err != nil {
		log.Fatal(err)
	}

	calibrationFlags := []cli.Flag{
		&cli.StringFlag{
			Name:    "gains",
			EnvVars: []string{"MORGUL_GAINS"},
			Usage:   "path to gain table",
		},
		&cli.Float64Flag{
			Name:    "energy",
			Aliases: []string{"e"},
			EnvVars: []string{"MORGUL_ENERGY"},
			Usage:   "photon energy in keV",
		},
		&cli.StringFlag{
			Name:  "overflow",
			Usage: "how out of range counts are stored, wrap or saturate",
		},
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			EnvVars: []string{"MORGUL_CONFIG"},
			Value:   filepath.Join(cwd, defaultConfig),
			Usage:   "path to configuration file",
		},
		&cli.StringFlag{
			Name:    "db",
			EnvVars: []string{"MORGUL_DB"},
			Usage:   "path to database, overriding the configuration file",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "increase verbosity",
		},
	}

	app.Commands = []*cli.Command{
		{
			Name:        "pedestal",
			Usage:       "Estimate pedestals from dark runs",
			Description: "Estimate pedestals either from three dark run files or from one file holding the low, medium and high gain runs back to back.",
			ArgsUsage:   "[FILE]",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "low",
					Usage: "low gain dark run",
				},
				&cli.StringFlag{
					Name:  "medium",
					Usage: "medium gain dark run",
				},
				&cli.StringFlag{
					Name:  "high",
					Usage: "high gain dark run",
				},
				&cli.IntFlag{
					Name:  "frames",
					Value: calibration.DefaultFrames,
					Usage: "frames in each dark run",
				},
				&cli.StringFlag{
					Name:     "name",
					Required: true,
					Usage:    "name to store the pedestal under",
				},
				&cli.StringFlag{
					Name:  "save",
					Usage: "also write the pedestal to this file",
				},
			},
			Action: pedestal,
		},
		{
			Name:        "mask",
			Usage:       "Mask pixels with excessive dispersion in a flat field",
			Description: "",
			ArgsUsage:   "FILE",
			Flags: append([]cli.Flag{
				&cli.StringFlag{
					Name:     "pedestal",
					Required: true,
					Usage:    "stored pedestal to correct with",
				},
				&cli.StringFlag{
					Name:     "name",
					Required: true,
					Usage:    "name to store the masked pedestal under",
				},
				&cli.Float64Flag{
					Name:  "threshold",
					Usage: "variance to mean ratio above which a pixel is masked",
				},
				&cli.IntFlag{
					Name:  "skip",
					Usage: "frames to skip at the start of the flat field",
				},
			}, calibrationFlags...),
			Action: mask,
		},
		{
			Name:        "correct",
			Usage:       "Correct raw frames to photon counts",
			Description: "Without --pedestal the pedestal is estimated from the dark runs at the start of the first file, which are then skipped.",
			ArgsUsage:   "FILE...",
			Flags: append([]cli.Flag{
				&cli.StringFlag{
					Name:  "pedestal",
					Usage: "stored pedestal to correct with",
				},
				&cli.IntFlag{
					Name:  "frames",
					Value: calibration.DefaultFrames,
					Usage: "frames in each dark run",
				},
				&cli.IntFlag{
					Name:  "skip",
					Usage: "frames to skip at the start of the first file",
				},
				&cli.IntFlag{
					Name:  "workers",
					Usage: "number of correcting workers",
				},
				&cli.StringFlag{
					Name:    "output",
					Aliases: []string{"o"},
					Usage:   "output directory",
				},
				&cli.StringFlag{
					Name:  "prefix",
					Usage: "output filename prefix",
				},
				&cli.StringFlag{
					Name:  "format",
					Usage: "output format, raw or fits",
				},
				&cli.BoolFlag{
					Name:  "compact",
					Usage: "write frames without expanding them to the sensor geometry",
				},
			}, calibrationFlags...),
			Action: correctFrames,
		},
		{
			Name:        "pattern",
			Usage:       "Write the expanded test pattern",
			Description: "",
			ArgsUsage:   "FILE",
			Action:      pattern,
		},
		{
			Name:        "preview",
			Usage:       "Render a corrected frame as an image",
			Description: "",
			ArgsUsage:   "INPUT OUTPUT",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "format",
					Usage: "image format, png or tiff",
				},
				&cli.BoolFlag{
					Name:  "compact",
					Usage: "input frame is not expanded",
				},
			},
			Action: renderPreview,
		},
		{
			Name:        "list",
			Usage:       "List stored pedestals",
			Description: "",
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:  "verify",
					Usage: "check the frames written with each pedestal are unchanged",
				},
			},
			Action: list,
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
