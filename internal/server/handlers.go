package server

import (
	"context"
	"encoding/json"
	"image"

	"github.com/pkg/errors"

	"github.com/ironsheep/salient-regions/internal/imaging"
	"github.com/ironsheep/salient-regions/internal/pipeline"
	"github.com/ironsheep/salient-regions/internal/proposal"
	"github.com/ironsheep/salient-regions/internal/regions"
	"github.com/ironsheep/salient-regions/internal/saliency"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "image_load", "regions_propose").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	switch name {
	// Basic Image Information
	case "image_load":
		return s.handleImageLoad(args)
	case "image_dimensions":
		return s.handleImageDimensions(args)
	case "image_crop":
		return s.handleImageCrop(args)

	// Region Operations
	case "regions_propose":
		return s.handleRegionsPropose(ctx, args)
	case "regions_segment_proposals":
		return s.handleSegmentProposals(ctx, args)
	case "regions_saliency_map":
		return s.handleSaliencyMap(args)
	case "regions_annotate":
		return s.handleAnnotate(ctx, args)

	default:
		return nil, errors.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure it returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

func decodeArgs(args json.RawMessage, v interface{}) error {
	if err := json.Unmarshal(args, v); err != nil {
		return errors.Wrap(err, "invalid arguments")
	}
	return nil
}

// === Wire types ===

// BoxJSON is a half-open box in image coordinates.
type BoxJSON struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

func toBoxJSON(r image.Rectangle) BoxJSON {
	return BoxJSON{X1: r.Min.X, Y1: r.Min.Y, X2: r.Max.X, Y2: r.Max.Y}
}

func (b BoxJSON) rect() image.Rectangle {
	return image.Rect(b.X1, b.Y1, b.X2, b.Y2)
}

// ProposalJSON is one significant proposal.
type ProposalJSON struct {
	BoxJSON
	Score  float64 `json:"score"`
	Domain string  `json:"domain"`
	Level  string  `json:"level"`
}

func toProposalJSON(p proposal.Proposal) ProposalJSON {
	domain := "mixed"
	if p.Domain != proposal.DomainMixed {
		domain = imaging.Domain(p.Domain).String()
	}
	level := "across-levels"
	if p.SegLevel == proposal.LevelCommon {
		level = "common"
	}
	return ProposalJSON{BoxJSON: toBoxJSON(p.Box), Score: p.Score, Domain: domain, Level: level}
}

// RegionJSON is one analysed region.
type RegionJSON struct {
	BoxJSON
	Rank        int     `json:"rank,omitempty"`
	Score       float64 `json:"score"`
	Status      string  `json:"status"`
	AvgSaliency float64 `json:"avg_saliency"`
	StdChange   float64 `json:"std_change"`
	Preview     string  `json:"preview_base64,omitempty"`

	Colors []imaging.ColorFrequency `json:"colors,omitempty"`
}

// regionColors is the palette size reported per surviving region.
const regionColors = 3

// === Basic Image Information Handlers ===

type imageLoadArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleImageLoad(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	return imaging.LoadImageInfo(s.cache, a.Path, s.pipeline.Config().WorkingHeight)
}

func (s *Server) handleImageDimensions(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	return imaging.GetDimensions(s.cache, a.Path)
}

type imageCropArgs struct {
	Path  string  `json:"path"`
	X1    int     `json:"x1"`
	Y1    int     `json:"y1"`
	X2    int     `json:"x2"`
	Y2    int     `json:"y2"`
	Scale float64 `json:"scale"`
}

func (s *Server) handleImageCrop(args json.RawMessage) (interface{}, error) {
	var a imageCropArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Scale == 0 {
		a.Scale = 1.0
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	return imaging.Crop(img, image.Rect(a.X1, a.Y1, a.X2, a.Y2), a.Scale)
}

// === Region Operation Handlers ===

type regionsProposeArgs struct {
	Path            string `json:"path"`
	Keep            *int   `json:"keep"`
	Preview         bool   `json:"preview"`
	IncludeRejected bool   `json:"include_rejected"`
}

// RegionsProposeResult is the output of regions_propose.
type RegionsProposeResult struct {
	Width     int          `json:"width"`
	Height    int          `json:"height"`
	Proposals int          `json:"proposals"`
	Regions   []RegionJSON `json:"regions"`
	Rejected  []RegionJSON `json:"rejected,omitempty"`
	ElapsedMs int64        `json:"elapsed_ms"`
}

// withKeep returns the server pipeline, or a copy whose analyzer keeps at
// most keep regions.
func (s *Server) withKeep(keep *int) (*pipeline.Pipeline, error) {
	if keep == nil {
		return s.pipeline, nil
	}
	cfg := *s.pipeline.Config()
	cfg.Analyzer.Keep = *keep
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return s.pipeline.WithConfig(&cfg), nil
}

func (s *Server) handleRegionsPropose(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a regionsProposeArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	p, err := s.withKeep(a.Keep)
	if err != nil {
		return nil, err
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}

	res, err := p.Run(ctx, img)
	if err != nil {
		return nil, err
	}

	out := &RegionsProposeResult{
		Width:     res.Size.X,
		Height:    res.Size.Y,
		Proposals: len(res.Proposals),
		Regions:   []RegionJSON{},
		ElapsedMs: res.Elapsed.Milliseconds(),
	}

	alive, rejected := rankRegions(res.Details)
	if a.IncludeRejected {
		out.Rejected = rejected
	}
	for _, rj := range alive {
		box := rj.rect()
		if rj.Colors, err = imaging.DominantColors(img, box, regionColors); err != nil {
			return nil, errors.Wrapf(err, "failed to sample region %d", rj.Rank)
		}
		if a.Preview {
			crop, err := imaging.Crop(img, box, 1.0)
			if err != nil {
				return nil, errors.Wrapf(err, "failed to preview region %d", rj.Rank)
			}
			rj.Preview = crop.ImageBase64
		}
		out.Regions = append(out.Regions, rj)
	}
	return out, nil
}

// rankRegions splits analysed regions into survivors, ranked from 1 in
// analysis order, and rejected ones.
func rankRegions(details []regions.Region) (alive, rejected []RegionJSON) {
	for _, r := range details {
		rj := RegionJSON{
			BoxJSON:     toBoxJSON(r.Box),
			Score:       r.Score,
			Status:      r.Status.String(),
			AvgSaliency: r.Stats.AvgSal,
			StdChange:   r.Stats.StdChange,
		}
		if !r.Alive() {
			rejected = append(rejected, rj)
			continue
		}
		rj.Rank = len(alive) + 1
		alive = append(alive, rj)
	}
	return alive, rejected
}

type segmentProposalsArgs struct {
	Path  string `json:"path"`
	Limit int    `json:"limit"`
}

// SegmentProposalsResult is the output of regions_segment_proposals.
type SegmentProposalsResult struct {
	Width         int            `json:"width"`
	Height        int            `json:"height"`
	WorkingWidth  int            `json:"working_width"`
	WorkingHeight int            `json:"working_height"`
	Extracted     int            `json:"extracted"`
	Significant   int            `json:"significant"`
	Proposals     []ProposalJSON `json:"proposals"`
}

func (s *Server) handleSegmentProposals(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a segmentProposalsArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Limit < 0 {
		return nil, errors.New("limit must not be negative")
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}

	set, err := s.pipeline.GenerateProposals(ctx, img)
	if err != nil {
		return nil, err
	}

	ps := set.Proposals
	if a.Limit > 0 && len(ps) > a.Limit {
		ps = ps[:a.Limit]
	}
	out := &SegmentProposalsResult{
		Width:         set.Size.X,
		Height:        set.Size.Y,
		WorkingWidth:  set.WorkingSize.X,
		WorkingHeight: set.WorkingSize.Y,
		Extracted:     set.Extracted,
		Significant:   len(set.Proposals),
		Proposals:     make([]ProposalJSON, len(ps)),
	}
	for i, p := range ps {
		out.Proposals[i] = toProposalJSON(p)
	}
	return out, nil
}

type saliencyMapArgs struct {
	Path     string `json:"path"`
	Method   string `json:"method"`
	Equalize bool   `json:"equalize"`
}

// SaliencyMapResult is the output of regions_saliency_map.
type SaliencyMapResult struct {
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	Method      string  `json:"method"`
	Equalized   bool    `json:"equalized"`
	Mean        float64 `json:"mean"`
	Std         float64 `json:"std"`
	ImageBase64 string  `json:"image_base64"`
	MimeType    string  `json:"mime_type"`
}

func (s *Server) handleSaliencyMap(args json.RawMessage) (interface{}, error) {
	var a saliencyMapArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	method := s.pipeline.Config().SaliencyMethod()
	if a.Method != "" {
		m, err := saliency.ParseMethod(a.Method)
		if err != nil {
			return nil, err
		}
		method = m
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}

	m, err := saliency.Compute(img, method)
	if err != nil {
		return nil, err
	}
	if a.Equalize {
		m = m.Equalize()
	}
	mean, std := m.GlobalMeanStd()

	encoded, err := imaging.EncodePNGBase64(m.ToGray())
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode saliency map")
	}
	return &SaliencyMapResult{
		Width:       m.Width(),
		Height:      m.Height(),
		Method:      string(method),
		Equalized:   a.Equalize,
		Mean:        mean,
		Std:         std,
		ImageBase64: encoded,
		MimeType:    "image/png",
	}, nil
}

type annotateArgs struct {
	Path      string    `json:"path"`
	Boxes     []BoxJSON `json:"boxes"`
	Color     string    `json:"color"`
	Thickness int       `json:"thickness"`
}

func (s *Server) handleAnnotate(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a annotateArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Color == "" {
		a.Color = "#FF0000"
	}
	if a.Thickness == 0 {
		a.Thickness = 2
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}

	var boxes []image.Rectangle
	if a.Boxes == nil {
		res, err := s.pipeline.Run(ctx, img)
		if err != nil {
			return nil, err
		}
		boxes = res.Regions
	} else {
		for i, b := range a.Boxes {
			r := b.rect()
			if r.Empty() || !r.In(img.Bounds()) {
				return nil, errors.Errorf("box %d %v is empty or outside the image %v", i+1, r, img.Bounds())
			}
			boxes = append(boxes, r)
		}
	}
	return imaging.Annotate(img, boxes, a.Color, a.Thickness)
}
