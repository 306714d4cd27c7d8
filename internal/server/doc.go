// Package server implements the MCP (Model Context Protocol) server for
// odometer reading.
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
// Odometer Reading:
//   - odometer_read: Read the odometer in a photo, with advisory validation
//   - odometer_inspect: Both pass outcomes plus annotated model canvases
//   - odometer_history: Recent readings recorded by odometer_read
//   - odometer_ocr_digits: Cross-check a reading with Tesseract
//   - odometer_quality: Brightness, contrast and sharpness of a photo
//   - odometer_status: Model and threshold configuration
//
// Basic Image Information:
//   - image_load: Load image and get metadata
//   - image_dimensions: Get width and height
//
// # Concurrency
//
// Every reading goes through a single pipeline.Queue, so at most one
// two-pass run touches the detector at a time regardless of how requests
// arrive.
//
// # Image Caching
//
// Decoded images are cached by path and reused across tool calls for the
// lifetime of the server process.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: The Go error string, e.g. "model unavailable"
//
// # Usage
//
//	srv := server.New(cfg, pipeline.New(det, pipeline.OptionsFromConfig(cfg)), hist)
//	defer srv.Close()
//	if err := srv.Run(); err != nil {
//	    log.Fatal(err)
//	}
package server
