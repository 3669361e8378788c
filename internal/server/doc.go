// Package server implements the MCP (Model Context Protocol) server for salient
// region detection.
//
// The server exposes the region pipeline as JSON-RPC 2.0 tools so that an MCP
// client can ask where the interesting parts of an image are, look at them
// and draw them.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// Basic Image Information:
//   - image_load: Load image and get metadata, including the working size
//   - image_dimensions: Get width and height
//   - image_crop: Extract a rectangular region
//
// Region Operations:
//   - regions_propose: Full pipeline, returns ranked salient regions
//   - regions_segment_proposals: Segmentation and merging only
//   - regions_saliency_map: Saliency map as a grayscale PNG
//   - regions_annotate: Draw numbered boxes on the image
//
// All boxes are half-open: x2 and y2 are exclusive.
//
// # Image Caching
//
// Images are cached by path and reused across tool calls for the lifetime of
// the server process. The cache is shared with the pipeline.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: The Go error string
//
// # Usage
//
//	p := pipeline.New(cfg, nil, logger)
//	srv := server.New(p)
//	if err := srv.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package server
