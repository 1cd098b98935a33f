// Package config loads the YAML run configuration.
package config

import (
	"io/ioutil"
	"math/rand"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/juruen/strokerecovery/coords"
	"github.com/juruen/strokerecovery/dataset"
	"github.com/juruen/strokerecovery/dtw"
	"github.com/juruen/strokerecovery/gt"
	"github.com/juruen/strokerecovery/log"
	"github.com/juruen/strokerecovery/loss"
	"github.com/juruen/strokerecovery/stroke"
)

const (
	EnvWorkers = "STROKES_WORKERS"
	EnvTrace   = "STROKES_TRACE"
)

// Subcoef is a list of weights. YAML may give it as a sequence or as a
// comma separated string.
type Subcoef []float64

func (s *Subcoef) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var list []float64
	if err := unmarshal(&list); err == nil {
		*s = list
		return nil
	}
	var str string
	if err := unmarshal(&str); err != nil {
		return errors.New("subcoef must be a list or a comma separated string")
	}
	*s = nil
	for _, f := range strings.Split(str, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return errors.Wrapf(err, "subcoef %q", f)
		}
		*s = append(*s, v)
	}
	return nil
}

// Loss is one entry of loss_fns. Indices are channel names of the gt format.
type Loss struct {
	Name                   string   `yaml:"name"`
	Type                   string   `yaml:"type"`
	Coef                   float64  `yaml:"coef"`
	Subcoef                Subcoef  `yaml:"subcoef"`
	MonitorOnly            bool     `yaml:"monitor_only"`
	LossIndices            []string `yaml:"loss_indices"`
	MappingBasis           []string `yaml:"dtw_mapping_basis"`
	CrossEntropyIndices    []string `yaml:"cross_entropy_indices"`
	RelativefyCrossEntropy bool     `yaml:"relativefy_cross_entropy_gt"`
	Activation             string   `yaml:"activation"`
	Constraint             int      `yaml:"window_size"`
	Resample               bool     `yaml:"resample"`
}

type Repair struct {
	Buffer     int  `yaml:"buffer"`
	Candidates int  `yaml:"candidates"`
	Normalize  bool `yaml:"normalize"`
}

type Dataset struct {
	ImageHeight int `yaml:"image_height"`
	CNNStride   int `yaml:"cnn_stride"`
	Workers     int `yaml:"workers"`
	// Substrokes > 0 splits every image into windows of that many strokes.
	Substrokes int `yaml:"substrokes"`
}

// Config is the whole run configuration.
type Config struct {
	GTFormat         []string `yaml:"gt_format"`
	Interpolation    string   `yaml:"interpolation"`
	Noise            string   `yaml:"noise"`
	TimeInterval     float64  `yaml:"time_interval"`
	ScaleTimeDist    bool     `yaml:"scale_time_distance"`
	Convolve         string   `yaml:"convolve_func"`
	KernelLength     int      `yaml:"kernel_length"`
	Workers          int      `yaml:"workers"`
	Trace            bool     `yaml:"trace"`
	Losses           []Loss   `yaml:"loss_fns"`
	Repair           Repair   `yaml:"repair"`
	Dataset          Dataset  `yaml:"dataset"`
	EvalSampleLength int      `yaml:"eval_sample_length"`
}

// Default returns the configuration used when a key is missing.
func Default() *Config {
	return &Config{
		GTFormat:      []string{"x", "y", "sos", "eos"},
		Interpolation: "time",
		Noise:         "none",
		ScaleTimeDist: true,
		Convolve:      string(coords.Cumsum),
		KernelLength:  coords.DefaultKernelLength,
		Losses: []Loss{
			{Type: string(loss.DTW), Coef: 1, LossIndices: []string{"x", "y"}},
			{Type: string(loss.CrossEntropy), Coef: 1, LossIndices: []string{"sos"}, Activation: "sigmoid"},
		},
		Repair:  Repair{Buffer: 20, Candidates: 3, Normalize: true},
		Dataset: Dataset{ImageHeight: 61, CNNStride: 4},
	}
}

// Load reads a YAML file over the defaults and applies the environment.
func Load(path string) (*Config, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults. Unknown keys are errors.
func Parse(data []byte) (*Config, error) {
	c := Default()
	if len(strings.TrimSpace(string(data))) > 0 {
		// loss_fns replaces the default list
		c.Losses = nil
		if err := yaml.UnmarshalStrict(data, c); err != nil {
			return nil, errors.Wrap(err, "parse config")
		}
		if c.Losses == nil {
			c.Losses = Default().Losses
		}
	}
	if err := c.applyEnv(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) applyEnv() error {
	if v, ok := os.LookupEnv(EnvWorkers); ok {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return errors.Errorf("%s: invalid worker count %q", EnvWorkers, v)
		}
		c.Workers = n
	}
	if os.Getenv(EnvTrace) == "1" {
		c.Trace = true
	}
	return nil
}

// Validate checks the values that are not checked when they are used.
func (c *Config) Validate() error {
	if _, err := c.Format(); err != nil {
		return err
	}
	if _, err := c.Param(); err != nil {
		return err
	}
	if _, err := gt.ParseNoise(c.Noise); err != nil {
		return err
	}
	if _, err := c.Convolver(); err != nil {
		return err
	}
	if c.Dataset.CNNStride <= 0 {
		return errors.Errorf("cnn_stride must be positive, got %d", c.Dataset.CNNStride)
	}
	if _, err := c.LossDefinitions(); err != nil {
		return err
	}
	return nil
}

// ApplyLogging routes trace output to stdout when tracing is on.
func (c *Config) ApplyLogging() {
	if c.Trace {
		log.Trace.SetOutput(os.Stdout)
	}
}

func (c *Config) Format() (gt.Format, error) {
	return gt.ParseFormat(c.GTFormat)
}

func (c *Config) Param() (stroke.Param, error) {
	switch strings.ToLower(c.Interpolation) {
	case "", "time":
		return stroke.ByTime, nil
	case "distance":
		return stroke.ByDistance, nil
	}
	return stroke.ByTime, errors.Errorf("unknown interpolation %q", c.Interpolation)
}

func (c *Config) PrepareOptions() stroke.Options {
	return stroke.Options{TimeInterval: c.TimeInterval, ScaleTimeDistance: c.ScaleTimeDist}
}

func (c *Config) Convolver() (*coords.Convolver, error) {
	return coords.NewConvolver(coords.Kind(c.Convolve), c.KernelLength)
}

func (c *Config) RepairOptions() dtw.RepairOptions {
	return dtw.RepairOptions{
		Buffer:     c.Repair.Buffer,
		Candidates: c.Repair.Candidates,
		Normalize:  c.Repair.Normalize,
	}
}

// DatasetOptions are the preprocessing settings. A random source is only
// attached when noise is requested.
func (c *Config) DatasetOptions(seed int64) (dataset.Options, error) {
	f, err := c.Format()
	if err != nil {
		return dataset.Options{}, err
	}
	p, err := c.Param()
	if err != nil {
		return dataset.Options{}, err
	}
	noise, err := gt.ParseNoise(c.Noise)
	if err != nil {
		return dataset.Options{}, err
	}
	opts := dataset.Options{
		Prepare:     c.PrepareOptions(),
		GT:          gt.Options{Param: p, Noise: noise},
		Format:      f,
		Points:      c.EvalSampleLength,
		ImageHeight: c.Dataset.ImageHeight,
		CNNStride:   c.Dataset.CNNStride,
		Workers:     int64(c.Dataset.Workers),
		Substrokes:  c.Dataset.Substrokes,
	}
	if noise != gt.NoNoise {
		opts.GT.Rand = rand.New(rand.NewSource(seed))
	}
	return opts, nil
}

// LossDefinitions resolves the channel names of every loss against the gt
// format.
func (c *Config) LossDefinitions() ([]loss.Definition, error) {
	f, err := c.Format()
	if err != nil {
		return nil, err
	}
	defs := make([]loss.Definition, 0, len(c.Losses))
	for i, l := range c.Losses {
		kind, err := loss.ParseKind(l.Type)
		if err != nil {
			return nil, errors.Wrapf(err, "loss_fns[%d]", i)
		}
		d := loss.Definition{
			Name:                   l.Name,
			Kind:                   kind,
			Coef:                   l.Coef,
			Subcoef:                l.Subcoef,
			MonitorOnly:            l.MonitorOnly,
			RelativefyCrossEntropy: l.RelativefyCrossEntropy,
			Activation:             l.Activation,
			Constraint:             l.Constraint,
			Resample:               l.Resample,
			Format:                 f,
		}
		if d.LossIndices, err = f.Indices(l.LossIndices); err != nil {
			return nil, errors.Wrapf(err, "loss_fns[%d] loss_indices", i)
		}
		if len(l.MappingBasis) > 0 {
			if d.MappingBasis, err = f.Indices(l.MappingBasis); err != nil {
				return nil, errors.Wrapf(err, "loss_fns[%d] dtw_mapping_basis", i)
			}
		}
		if len(l.CrossEntropyIndices) > 0 {
			if d.CrossEntropyIndices, err = f.Indices(l.CrossEntropyIndices); err != nil {
				return nil, errors.Wrapf(err, "loss_fns[%d] cross_entropy_indices", i)
			}
		}
		d.SOSIndex = f.Index(gt.SOS)
		if _, err := loss.New(d); err != nil {
			return nil, errors.Wrapf(err, "loss_fns[%d]", i)
		}
		defs = append(defs, d)
	}
	return defs, nil
}
