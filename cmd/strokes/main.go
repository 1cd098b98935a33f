package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	flag "github.com/ogier/pflag"
	"github.com/pkg/errors"

	"github.com/juruen/strokerecovery/config"
	"github.com/juruen/strokerecovery/dataset"
	"github.com/juruen/strokerecovery/encoding/iamxml"
	"github.com/juruen/strokerecovery/gt"
	"github.com/juruen/strokerecovery/log"
	"github.com/juruen/strokerecovery/render"
	"github.com/juruen/strokerecovery/shell"
)

const usage = `usage: strokes <command> [flags] [files]

commands:
  prep    build a dataset json from stroke files
  align   align a sampled prediction against each file and print the cost
  render  draw ground truth, prediction and alignment to a pdf
  export  write the ground truth of a file as a reMarkable page or dataset
  serve   expose a session over http
  shell   interactive session, or run one shell command given after --
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	var err error
	switch cmd, args := os.Args[1], os.Args[2:]; cmd {
	case "prep":
		err = prep(args)
	case "align":
		err = align(args)
	case "render":
		err = renderPDF(args)
	case "export":
		err = export(args)
	case "serve":
		err = serve(args)
	case "shell":
		err = runShell(args)
	case "help", "-h", "--help":
		fmt.Print(usage)
	default:
		err = errors.Errorf("unknown command %q", cmd)
	}

	if err != nil && err != flag.ErrHelp {
		log.Error.Println(err)
		os.Exit(1)
	}
}

// loadConfig reads path, or the defaults when it is empty, and applies the
// logging settings.
func loadConfig(path string) (*config.Config, error) {
	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	}
	cfg.ApplyLogging()
	return cfg, nil
}

func prep(args []string) error {
	flagSet := flag.NewFlagSet("prep", flag.ContinueOnError)
	cfgPath := flagSet.StringP("config", "c", "", "yaml config")
	out := flagSet.StringP("output", "o", "dataset.json", "dataset file to write")
	images := flagSet.String("images", "", "directory holding <name>.png line images")
	rangeArg := flagSet.String("range", "", "strokes to keep, as start:end")
	seed := flagSet.Int64("seed", 1, "random seed for sampling noise")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if flagSet.NArg() == 0 {
		return errors.New("prep: no input files")
	}
	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return err
	}
	opts, err := cfg.DatasetOptions(*seed)
	if err != nil {
		return err
	}
	if opts.Range, err = shell.ParseRange(*rangeArg); err != nil {
		return err
	}

	sources := make([]dataset.Source, flagSet.NArg())
	for i, path := range flagSet.Args() {
		sources[i].Path = path
		if *images != "" {
			name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
			sources[i].Image = filepath.Join(*images, name+".png")
		}
	}
	instances, err := dataset.Build(context.Background(), sources, opts)
	if err != nil {
		return err
	}
	if len(instances) == 0 {
		return errors.New("prep: every input failed")
	}
	if err := dataset.Save(*out, instances); err != nil {
		return err
	}
	log.Info.Printf("wrote %d of %d instances to %s", len(instances), len(sources), *out)
	return nil
}

// sampleFlags are shared by align and render.
type sampleFlags struct {
	cfgPath string
	points  int
	noise   string
	seed    int64
	reverse bool
	window  int
	repair  bool
}

func (sf *sampleFlags) register(flagSet *flag.FlagSet) {
	flagSet.StringVarP(&sf.cfgPath, "config", "c", "", "yaml config")
	flagSet.IntVar(&sf.points, "points", 0, "prediction length, 0 keeps the ground truth length")
	flagSet.StringVar(&sf.noise, "noise", string(gt.RandomNoise), "time noise of the sampled prediction")
	flagSet.Int64Var(&sf.seed, "seed", 1, "random seed")
	flagSet.BoolVar(&sf.reverse, "reverse", false, "allow strokes to be matched backwards")
	flagSet.IntVar(&sf.window, "window", 0, "band constraint, 0 for none")
	flagSet.BoolVar(&sf.repair, "repair", false, "try to reverse the worst strokes after aligning")
}

// session loads path and aligns a sampled prediction against it.
func (sf *sampleFlags) session(cfg *config.Config, path string) (*shell.ShellCtxt, error) {
	noise, err := gt.ParseNoise(sf.noise)
	if err != nil {
		return nil, err
	}
	ctx := shell.NewShellCtxt(cfg)
	if _, err := ctx.Load(path, iamxml.All); err != nil {
		return nil, err
	}
	if err := ctx.Sample(sf.points, noise, sf.seed); err != nil {
		return nil, errors.Wrap(err, path)
	}
	if _, err := ctx.Align(sf.reverse, sf.window); err != nil {
		return nil, errors.Wrap(err, path)
	}
	if sf.repair {
		opts := cfg.RepairOptions()
		for i := 0; i < opts.Candidates; i++ {
			res, err := ctx.Repair(opts)
			if err != nil {
				return nil, err
			}
			if !res.Improved {
				break
			}
			log.Trace.Printf("%s: reversed stroke %d, cost %g", path, res.Stroke, res.Cost)
		}
	}
	return ctx, nil
}

func align(args []string) error {
	var sf sampleFlags
	flagSet := flag.NewFlagSet("align", flag.ContinueOnError)
	sf.register(flagSet)
	withLoss := flagSet.Bool("loss", false, "also print the configured losses")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	cfg, err := loadConfig(sf.cfgPath)
	if err != nil {
		return err
	}
	for _, path := range flagSet.Args() {
		ctx, err := sf.session(cfg, path)
		if err != nil {
			log.Warning.Println(err)
			continue
		}
		al := ctx.Alignment()
		line := fmt.Sprintf("%s\tcost %.6f\tpairs %d", path, al.Cost, al.Len())
		if *withLoss {
			res, err := ctx.Loss(false)
			if err != nil {
				return err
			}
			line += fmt.Sprintf("\tloss %.6f", res.Combined)
		}
		fmt.Println(line)
	}
	return nil
}

func renderPDF(args []string) error {
	var sf sampleFlags
	opts := render.DefaultOptions()
	flagSet := flag.NewFlagSet("render", flag.ContinueOnError)
	sf.register(flagSet)
	out := flagSet.StringP("output", "o", "", "pdf to write, defaults to <input>.pdf")
	flagSet.Float64Var(&opts.LineWidth, "width", opts.LineWidth, "stroke width")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if flagSet.NArg() != 1 {
		return errors.New("render: expected one input file")
	}
	cfg, err := loadConfig(sf.cfgPath)
	if err != nil {
		return err
	}
	path := flagSet.Arg(0)
	ctx, err := sf.session(cfg, path)
	if err != nil {
		return err
	}
	if *out == "" {
		*out = strings.TrimSuffix(path, filepath.Ext(path)) + ".pdf"
	}
	return ctx.Render(*out, opts)
}

func export(args []string) error {
	flagSet := flag.NewFlagSet("export", flag.ContinueOnError)
	cfgPath := flagSet.StringP("config", "c", "", "yaml config")
	out := flagSet.StringP("output", "o", "", "output .rm or .json file")
	rangeArg := flagSet.String("range", "", "strokes to keep, as start:end")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if flagSet.NArg() == 0 || *out == "" {
		return errors.New("export: need an input file and -o")
	}
	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return err
	}
	rg, err := shell.ParseRange(*rangeArg)
	if err != nil {
		return err
	}
	ctx := shell.NewShellCtxt(cfg)
	for _, path := range flagSet.Args() {
		if _, err := ctx.Load(path, rg); err != nil {
			return err
		}
	}
	return ctx.Export(*out, false)
}

// runShell passes everything after "--" to the shell, e.g.
// strokes shell -c exp.yaml -- load --range 0:3 a01.xml
func runShell(args []string) error {
	flagSet := flag.NewFlagSet("shell", flag.ContinueOnError)
	cfgPath := flagSet.StringP("config", "c", "", "yaml config")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return err
	}
	return shell.RunShell(cfg, flagSet.Args())
}
