// Package dataset turns handwriting files into training instances.
package dataset

import (
	"context"
	"encoding/json"
	"io/ioutil"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/semaphore"

	"github.com/juruen/strokerecovery/encoding/iamxml"
	"github.com/juruen/strokerecovery/encoding/rm"
	"github.com/juruen/strokerecovery/gt"
	"github.com/juruen/strokerecovery/log"
	"github.com/juruen/strokerecovery/stroke"
)

// ErrUnsupportedSource is returned for files that are neither IAM XML nor
// reMarkable lines.
var ErrUnsupportedSource = errors.New("unsupported stroke source")

// Instance is one preprocessed image.
type Instance struct {
	ID         string      `json:"id"`
	Source     string      `json:"source"`
	Image      string      `json:"image,omitempty"`
	XToY       float64     `json:"x_to_y"`
	Format     gt.Format   `json:"gt_format"`
	GT         [][]float64 `json:"gt"`
	StartTimes []float64   `json:"start_times"`
	// Raw are the strokes as read, before normalisation.
	Raw []stroke.Stroke `json:"raw,omitempty"`
}

// Sequence returns the ground truth as a sequence.
func (in *Instance) Sequence() *gt.Sequence {
	return &gt.Sequence{Format: in.Format, Rows: in.GT}
}

// Source names a stroke file and, optionally, its line image.
type Source struct {
	Path  string
	Image string
}

// Options drive Build.
type Options struct {
	Prepare stroke.Options
	GT      gt.Options
	Format  gt.Format
	// Points is the ground truth length. 0 derives it from the line image
	// width at ImageHeight.
	Points      int
	ImageHeight int
	CNNStride   int
	Range       iamxml.Range
	// Substrokes > 0 splits every image into windows of that many strokes.
	Substrokes int
	// Workers bounds the files processed at once.
	Workers int64
	KeepRaw bool
}

// ReadStrokes reads the strokes of one file, chosen by extension.
func ReadStrokes(path string, rg iamxml.Range) ([]stroke.Stroke, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xml":
		s, err := iamxml.ReadFile(path, rg)
		if err != nil {
			return nil, err
		}
		return s.Strokes, nil
	case ".rm":
		data, err := ioutil.ReadFile(path)
		if err != nil {
			return nil, err
		}
		var page rm.Rm
		if err := page.UnmarshalBinary(data); err != nil {
			return nil, errors.Wrap(err, path)
		}
		return page.Strokes(), nil
	}
	return nil, errors.Wrap(ErrUnsupportedSource, path)
}

// NewInstance preprocesses the strokes of src. Unless Points fixes it, the
// ground truth length is the prediction width over the line image of src
// resized to ImageHeight, or over the image the strokes would make at that
// height when src has none.
func NewInstance(src Source, strokes []stroke.Stroke, opts Options) (*Instance, error) {
	d, err := stroke.Prepare(strokes, opts.Prepare)
	if err != nil {
		return nil, err
	}
	width, err := imageWidth(src, opts)
	if err != nil {
		return nil, err
	}
	in, err := fromDict(src, d, width, opts)
	if err != nil {
		return nil, err
	}
	if opts.KeepRaw {
		in.Raw = strokes
	}
	return in, nil
}

// NewInstances is NewInstance split into windows of opts.Substrokes
// consecutive strokes. Windows are shorter than the line image, so their
// length always comes from their own extent.
func NewInstances(src Source, strokes []stroke.Stroke, opts Options) ([]*Instance, error) {
	if opts.Substrokes <= 0 {
		in, err := NewInstance(src, strokes, opts)
		if err != nil {
			return nil, err
		}
		return []*Instance{in}, nil
	}
	d, err := stroke.Prepare(strokes, opts.Prepare)
	if err != nil {
		return nil, err
	}
	subs := stroke.Substrokes(d, opts.Substrokes)
	out := make([]*Instance, 0, len(subs))
	for k, sd := range subs {
		width := 0
		if sd == d {
			if width, err = imageWidth(src, opts); err != nil {
				return nil, err
			}
		}
		in, err := fromDict(src, sd, width, opts)
		if err != nil {
			return nil, errors.Wrapf(err, "substroke window %d", k)
		}
		if opts.KeepRaw {
			in.Raw = sd.Raw
		}
		out = append(out, in)
	}
	return out, nil
}

func imageWidth(src Source, opts Options) (int, error) {
	if src.Image == "" || opts.Points > 0 {
		return 0, nil
	}
	img, err := LoadImage(src.Image, opts.ImageHeight)
	if err != nil {
		return 0, err
	}
	return img.Bounds().Dx(), nil
}

// fromDict samples d. width is the resized line image width, 0 when
// unknown.
func fromDict(src Source, d *stroke.Dict, width int, opts Options) (*Instance, error) {
	n := opts.Points
	if n <= 0 {
		if width <= 0 {
			width = int(math.Round(d.XToY * float64(opts.ImageHeight)))
		}
		n = SequenceLength(width, opts.CNNStride)
	}
	if least := 2 * d.StrokeCount(); n < least {
		n = least
	}
	f := opts.Format
	if len(f) == 0 {
		f = gt.DefaultFormat
	}
	seq, err := gt.Build(d, n, f, opts.GT)
	if err != nil {
		return nil, err
	}
	return &Instance{
		ID:         uuid.New().String(),
		Source:     src.Path,
		Image:      src.Image,
		XToY:       d.XToY,
		Format:     f,
		GT:         seq.Rows,
		StartTimes: d.StartTimes,
	}, nil
}

// Build preprocesses every source concurrently. A source that fails is
// logged and skipped; the result keeps the order of sources.
func Build(ctx context.Context, sources []Source, opts Options) ([]*Instance, error) {
	workers := opts.Workers
	if workers <= 0 {
		workers = 4
	}
	results := make([][]*Instance, len(sources))
	// a rand.Rand is not safe for concurrent use, every source gets its own
	seeds := make([]int64, len(sources))
	if opts.GT.Rand != nil {
		for i := range seeds {
			seeds[i] = opts.GT.Rand.Int63()
		}
	}
	sem := semaphore.NewWeighted(workers)
	var wg sync.WaitGroup
	for i, src := range sources {
		if err := ctx.Err(); err != nil {
			wg.Wait()
			return nil, err
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			wg.Wait()
			return nil, err
		}
		wg.Add(1)
		go func(i int, src Source) {
			defer sem.Release(1)
			defer wg.Done()
			strokes, err := ReadStrokes(src.Path, opts.Range)
			if err != nil {
				log.Warning.Printf("skipping %s: %v", src.Path, err)
				return
			}
			o := opts
			if opts.GT.Rand != nil {
				o.GT.Rand = rand.New(rand.NewSource(seeds[i]))
			}
			ins, err := NewInstances(src, strokes, o)
			if err != nil {
				log.Warning.Printf("skipping %s: %v", src.Path, err)
				return
			}
			results[i] = ins
		}(i, src)
	}
	wg.Wait()

	var out []*Instance
	prepared := 0
	for _, ins := range results {
		if ins != nil {
			prepared++
			out = append(out, ins...)
		}
	}
	log.Info.Printf("dataset: %d of %d sources prepared, %d instances", prepared, len(sources), len(out))
	return out, nil
}

// Save writes instances as JSON.
func Save(path string, instances []*Instance) error {
	data, err := json.Marshal(instances)
	if err != nil {
		return errors.Wrap(err, "encode dataset")
	}
	return ioutil.WriteFile(path, data, 0644)
}

// Load reads instances written by Save.
func Load(path string) ([]*Instance, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var out []*Instance
	if err := json.NewDecoder(f).Decode(&out); err != nil {
		return nil, errors.Wrapf(err, "decode dataset %s", path)
	}
	return out, nil
}
