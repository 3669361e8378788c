// Package pipeline runs region proposal and saliency analysis end to end.
//
// GenerateProposals segments a working-resolution copy of the image in every
// configured colour domain and level, extracts and merges proposals, and maps
// the significant ones back to the image resolution. AnalyzeSaliency prunes
// and refines those proposals against a saliency map of the full image. Run
// chains the two.
package pipeline

import (
	"context"
	"image"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"github.com/ironsheep/salient-regions/internal/config"
	"github.com/ironsheep/salient-regions/internal/imaging"
	"github.com/ironsheep/salient-regions/internal/proposal"
	"github.com/ironsheep/salient-regions/internal/regions"
	"github.com/ironsheep/salient-regions/internal/saliency"
	"github.com/ironsheep/salient-regions/internal/segmentation"
)

// Pipeline holds the configuration and image cache shared by every run.
type Pipeline struct {
	cfg    *config.Config
	cache  *imaging.ImageCache
	logger *slog.Logger
}

// New creates a pipeline. A nil cfg uses config.Default, a nil cache a fresh
// one and a nil logger discards output.
func New(cfg *config.Config, cache *imaging.ImageCache, logger *slog.Logger) *Pipeline {
	if cfg == nil {
		cfg = config.Default()
	}
	if cache == nil {
		cache = imaging.NewImageCache()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Pipeline{cfg: cfg, cache: cache, logger: logger}
}

// Config returns the pipeline configuration.
func (p *Pipeline) Config() *config.Config {
	return p.cfg
}

// WithConfig returns a pipeline sharing p's cache and logger but using cfg.
func (p *Pipeline) WithConfig(cfg *config.Config) *Pipeline {
	return New(cfg, p.cache, p.logger)
}

// Cache returns the image cache used by RunFile.
func (p *Pipeline) Cache() *imaging.ImageCache {
	return p.cache
}

// ProposalSet is the output of GenerateProposals.
type ProposalSet struct {
	// Size is the image size; proposal boxes are in this coordinate space.
	Size image.Point

	// WorkingSize is the resolution segmentation ran at.
	WorkingSize image.Point

	// Extracted counts the proposals taken from the label maps before
	// merging.
	Extracted int

	// Proposals are the significant proposals, best first, with scores
	// normalised by the merger.
	Proposals []proposal.Proposal
}

// GenerateProposals produces the significant region proposals of img.
func (p *Pipeline) GenerateProposals(ctx context.Context, img image.Image) (*ProposalSet, error) {
	start := time.Now()
	if img.Bounds().Empty() {
		return nil, errors.New("failed to generate proposals: empty image")
	}
	domains, err := p.cfg.Domains()
	if err != nil {
		return nil, err
	}

	working := imaging.ResizeToHeight(img, p.cfg.WorkingHeight)
	workingSize := working.Bounds().Size()
	images := imaging.ConvertDomains(working, domains)

	seg := segmentation.NewSegmenter(p.cfg.SegmentationParams(), p.logger)
	results, err := seg.SegmentAll(ctx, images)
	if err != nil {
		return nil, errors.Wrap(err, "failed to segment image")
	}

	var sets []proposal.LabelSet
	for _, r := range results {
		for level, lm := range r.Levels {
			sets = append(sets, proposal.LabelSet{Domain: int(r.Domain), Level: level, Map: lm})
		}
	}
	extracted := proposal.GenerateProposals(sets, p.cfg.ExtractParams())
	count := len(extracted)

	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "proposal generation cancelled")
	}

	m := p.cfg.Merge
	merger := proposal.NewMerger(workingSize, len(p.cfg.Segmentation.Ks), p.logger)
	significant := merger.MergeAll(extracted,
		m.WithinLevel.Rule(), m.MinScore, m.BetweenLevels.Rule(), m.CommonInDomain.Rule())

	size := img.Bounds().Size()
	set := &ProposalSet{
		Size:        size,
		WorkingSize: workingSize,
		Extracted:   count,
		Proposals:   proposal.Resize(significant, workingSize, size),
	}

	p.logger.Debug("generated proposals",
		"working_size", workingSize.String(),
		"label_maps", len(sets),
		"extracted", count,
		"significant", len(set.Proposals),
		"elapsed", time.Since(start))
	return set, nil
}

// SaliencyMaps are the maps the analyzer works on.
type SaliencyMaps struct {
	// Raw is the map as computed; reconciliation profiles use it.
	Raw *saliency.Map

	// Stats is the equalised map (or Raw when equalisation is off);
	// region statistics and edge refinement use it.
	Stats *saliency.Map

	// Gray is the grayscale image used for texture entropy.
	Gray *imaging.Plane
}

// ComputeSaliency builds the saliency maps of img.
func (p *Pipeline) ComputeSaliency(img image.Image) (*SaliencyMaps, error) {
	raw, err := saliency.Compute(img, p.cfg.SaliencyMethod())
	if err != nil {
		return nil, errors.Wrap(err, "failed to compute saliency map")
	}
	stats := raw
	if p.cfg.Saliency.Equalize {
		stats = raw.Equalize()
	}
	return &SaliencyMaps{Raw: raw, Stats: stats, Gray: imaging.GrayPlane(img)}, nil
}

// Analysis is the output of AnalyzeSaliency.
type Analysis struct {
	// Regions are the surviving boxes.
	Regions []image.Rectangle

	// Details holds every analysed region, including rejected ones with
	// the status recording why.
	Details []regions.Region
}

// AnalyzeSaliency prunes and refines proposals against the saliency of img.
// Proposal boxes must be in img coordinates.
func (p *Pipeline) AnalyzeSaliency(img image.Image, ps []proposal.Proposal) (*Analysis, error) {
	start := time.Now()
	maps, err := p.ComputeSaliency(img)
	if err != nil {
		return nil, err
	}

	a := regions.NewAnalyzer(maps.Stats, maps.Raw, maps.Gray, p.cfg.AnalyzerOptions(), p.logger)
	a.AddProposals(ps)
	boxes := a.Run()

	p.logger.Debug("analyzed saliency",
		"method", string(p.cfg.SaliencyMethod()),
		"proposals", len(ps),
		"surviving", len(boxes),
		"elapsed", time.Since(start))
	return &Analysis{Regions: boxes, Details: a.Regions()}, nil
}

// Result is the output of a full run.
type Result struct {
	Size      image.Point
	Proposals []proposal.Proposal
	Regions   []image.Rectangle
	Details   []regions.Region
	Elapsed   time.Duration
}

// Run generates proposals for img and analyses them.
func (p *Pipeline) Run(ctx context.Context, img image.Image) (*Result, error) {
	start := time.Now()
	set, err := p.GenerateProposals(ctx, img)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "region analysis cancelled")
	}

	analysis, err := p.AnalyzeSaliency(img, set.Proposals)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Size:      set.Size,
		Proposals: set.Proposals,
		Regions:   analysis.Regions,
		Details:   analysis.Details,
		Elapsed:   time.Since(start),
	}
	p.logger.Info("found salient regions", "regions", len(res.Regions), "elapsed", res.Elapsed)
	return res, nil
}

// RunFile loads the image at path through the cache and runs the pipeline.
func (p *Pipeline) RunFile(ctx context.Context, path string) (*Result, error) {
	img, err := p.cache.Load(path)
	if err != nil {
		return nil, err
	}
	return p.Run(ctx, img)
}
