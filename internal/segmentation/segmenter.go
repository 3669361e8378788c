package segmentation

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/ironsheep/salient-regions/internal/imaging"
)

// Params controls the graph-based segmentation.
type Params struct {
	// Sigma is the Gaussian pre-smoothing applied to each domain image.
	Sigma float64

	// Ks are the granularity settings, one segmentation level each. Larger
	// values favour larger segments. Level i uses Ks[i].
	Ks []float64

	// MinSize is the minimum component size in pixels after post-merging.
	MinSize int
}

// Result holds the label maps of one domain, indexed by level.
type Result struct {
	Domain imaging.Domain
	Levels []*LabelMap
}

// Segmenter runs the graph segmentation for every (domain, level) pair.
type Segmenter struct {
	params  Params
	workers int
	logger  *slog.Logger
}

// NewSegmenter returns a segmenter using at most GOMAXPROCS goroutines.
// A nil logger discards output.
func NewSegmenter(params Params, logger *slog.Logger) *Segmenter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Segmenter{params: params, workers: runtime.GOMAXPROCS(0), logger: logger}
}

// Segment produces the label maps of a single domain image, one per k.
// The edge graph is built once and reused for every level.
func (s *Segmenter) Segment(ctx context.Context, di *imaging.DomainImage) (*Result, error) {
	start := time.Now()
	edges := buildGraph(di, s.params.Sigma)
	b := di.Img.Bounds()

	res := &Result{Domain: di.Domain, Levels: make([]*LabelMap, 0, len(s.params.Ks))}
	for level, k := range s.params.Ks {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrapf(err, "segmentation of %s cancelled", di.Domain)
		}
		lm := segmentGraph(b.Dx(), b.Dy(), edges, k, s.params.MinSize)
		s.logger.Debug("segmented level",
			"domain", di.Domain.String(), "level", level, "k", k, "segments", lm.Count)
		res.Levels = append(res.Levels, lm)
	}

	s.logger.Debug("segmented domain", "domain", di.Domain.String(), "elapsed", time.Since(start))
	return res, nil
}

// SegmentAll segments every domain image concurrently. Results keep the
// order of images. The first failure cancels the remaining work.
func (s *Segmenter) SegmentAll(ctx context.Context, images []*imaging.DomainImage) ([]*Result, error) {
	results := make([]*Result, len(images))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, di := range images {
		g.Go(func() error {
			res, err := s.Segment(ctx, di)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
