package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"log"

	"github.com/ironsheep/odometer-mcp/internal/detection"
	"github.com/ironsheep/odometer-mcp/internal/imaging"
	"github.com/ironsheep/odometer-mcp/internal/ocr"
	"github.com/ironsheep/odometer-mcp/internal/pipeline"
	"github.com/ironsheep/odometer-mcp/internal/quality"
)

// ErrHistoryDisabled is returned by odometer_history when the server runs
// without a history store.
var ErrHistoryDisabled = errors.New("reading history is disabled")

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "odometer_read", "image_load").
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
func (s *Server) handleToolsCall(req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(params.Name, params.Arguments)
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
func (s *Server) executeTool(name string, args json.RawMessage) (interface{}, error) {
	switch name {
	// Odometer Reading
	case "odometer_read":
		return s.handleOdometerRead(args)
	case "odometer_inspect":
		return s.handleOdometerInspect(args)
	case "odometer_history":
		return s.handleOdometerHistory(args)
	case "odometer_ocr_digits":
		return s.handleOdometerOCRDigits(args)
	case "odometer_quality":
		return s.handleOdometerQuality(args)
	case "odometer_status":
		return s.handleOdometerStatus(args)

	// Basic Image Information
	case "image_load":
		return s.handleImageLoad(args)
	case "image_dimensions":
		return s.handleImageDimensions(args)

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
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
// Panics are suppressed; on marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// decodeArgs unmarshals tool arguments. Tools without required arguments may
// be called with none.
func decodeArgs(args json.RawMessage, v interface{}) error {
	if len(args) == 0 || string(args) == "null" {
		return nil
	}
	return json.Unmarshal(args, v)
}

// === Odometer Reading Handlers ===

type odometerReadArgs struct {
	Path          string `json:"path"`
	Record        *bool  `json:"record"`
	AssessQuality bool   `json:"assess_quality"`
}

type readResponse struct {
	pipeline.Result
	Validation quality.Validation  `json:"validation"`
	Quality    *quality.Assessment `json:"quality,omitempty"`
	HistoryID  string              `json:"history_id,omitempty"`
}

func (s *Server) handleOdometerRead(args json.RawMessage) (interface{}, error) {
	var a odometerReadArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}

	report, err := s.queue.SubmitInspect(context.Background(), img, nil)
	if err != nil {
		return nil, err
	}

	digits := detection.DigitDetections(report.Chosen().Detections)
	resp := readResponse{
		Result:     report.Result,
		Validation: quality.Validate(report.Result.Value, report.Result.Confidence, digits),
	}

	if a.AssessQuality {
		assessment, err := quality.Assess(img)
		if err != nil {
			return nil, err
		}
		resp.Quality = assessment
	}

	if s.history != nil && (a.Record == nil || *a.Record) {
		entry, err := s.history.Add(a.Path, report.Result)
		if err != nil {
			log.Printf("Failed to record reading: %v", err)
		} else {
			resp.HistoryID = entry.ID
		}
	}

	return resp, nil
}

type odometerInspectArgs struct {
	Path     string `json:"path"`
	Annotate *bool  `json:"annotate"`
}

type passView struct {
	pipeline.PassOutcome
	Error     string                  `json:"error,omitempty"`
	Annotated *imaging.AnnotateResult `json:"annotated,omitempty"`
}

type inspectResponse struct {
	Result pipeline.Result `json:"result"`
	Full   passView        `json:"full"`
	Crop   passView        `json:"crop"`
}

func (s *Server) handleOdometerInspect(args json.RawMessage) (interface{}, error) {
	var a odometerInspectArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}

	annotated := make(map[pipeline.PassKind]*imaging.AnnotateResult)
	var observe pipeline.CanvasObserver
	if a.Annotate == nil || *a.Annotate {
		observe = func(pass pipeline.PassKind, canvas image.Image, dets []detection.BoxDetection) {
			result, err := imaging.Annotate(canvas, labeledRects(dets))
			if err != nil {
				log.Printf("Failed to annotate %s canvas: %v", pass, err)
				return
			}
			annotated[pass] = result
		}
	}

	report, err := s.queue.SubmitInspect(context.Background(), img, observe)
	if err != nil {
		return nil, err
	}

	return inspectResponse{
		Result: report.Result,
		Full:   passView{PassOutcome: report.Full, Error: report.Full.Failure(), Annotated: annotated[pipeline.PassFull]},
		Crop:   passView{PassOutcome: report.Crop, Error: report.Crop.Failure(), Annotated: annotated[pipeline.PassCrop]},
	}, nil
}

func labeledRects(dets []detection.BoxDetection) []imaging.LabeledRect {
	rects := make([]imaging.LabeledRect, 0, len(dets))
	for _, d := range dets {
		rects = append(rects, imaging.LabeledRect{
			Rect:  imaging.RectFromCorners(d.Box.X1, d.Box.Y1, d.Box.X2, d.Box.Y2),
			Label: d.Label,
		})
	}
	return rects
}

type odometerHistoryArgs struct {
	Limit int  `json:"limit"`
	Clear bool `json:"clear"`
}

func (s *Server) handleOdometerHistory(args json.RawMessage) (interface{}, error) {
	var a odometerHistoryArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if s.history == nil {
		return nil, ErrHistoryDisabled
	}
	if a.Clear {
		removed, err := s.history.Count()
		if err != nil {
			return nil, err
		}
		if err := s.history.Clear(); err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"cleared": removed,
		}, nil
	}
	if a.Limit <= 0 {
		a.Limit = s.cfg.HistoryLimit
	}

	entries, err := s.history.Recent(a.Limit)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"readings": entries,
		"count":    len(entries),
	}, nil
}

type odometerOCRArgs struct {
	Path     string `json:"path"`
	Language string `json:"language"`
}

// ocrPass holds what Tesseract saw on one pass canvas. Row is the read of
// just the band the model found digits in.
type ocrPass struct {
	Read     *ocr.DigitRead `json:"read,omitempty"`
	Row      *ocr.DigitRead `json:"row,omitempty"`
	Error    string         `json:"error,omitempty"`
	RowError string         `json:"row_error,omitempty"`
}

// digits prefers the row read over the full canvas read.
func (p *ocrPass) digits() string {
	switch {
	case p == nil:
		return ""
	case p.Row != nil:
		return p.Row.Digits
	case p.Read != nil:
		return p.Read.Digits
	}
	return ""
}

// ocrRowPad is the margin in canvas pixels kept around the digit row.
const ocrRowPad = 4

type ocrResponse struct {
	Reading   pipeline.Result `json:"reading"`
	Full      *ocrPass        `json:"full,omitempty"`
	Crop      *ocrPass        `json:"crop,omitempty"`
	Agreement ocr.Agreement   `json:"agreement"`
	OCR       ocr.Info        `json:"ocr"`
}

func (s *Server) handleOdometerOCRDigits(args json.RawMessage) (interface{}, error) {
	var a odometerOCRArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Language == "" {
		a.Language = ocr.DefaultLanguage
	}

	info := ocr.GetInfo()
	if !info.Available {
		return nil, ocr.ErrUnavailable
	}

	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}

	passes := make(map[pipeline.PassKind]*ocrPass)
	observe := func(pass pipeline.PassKind, canvas image.Image, dets []detection.BoxDetection) {
		p := &ocrPass{}
		passes[pass] = p
		if read, err := ocr.ReadDigits(canvas, a.Language); err != nil {
			p.Error = err.Error()
		} else {
			p.Read = read
		}

		digits := detection.DigitDetections(dets)
		if len(digits) == 0 {
			return
		}
		rects := labeledRects(digits)
		boxes := make([]image.Rectangle, len(rects))
		for i, r := range rects {
			boxes[i] = r.Rect
		}
		row := ocr.RowRegion(boxes, ocrRowPad, canvas.Bounds())
		if read, err := ocr.ReadDigitsInRegion(canvas, row, a.Language); err != nil {
			p.RowError = err.Error()
		} else {
			p.Row = read
		}
	}

	report, err := s.queue.SubmitInspect(context.Background(), img, observe)
	if err != nil {
		return nil, err
	}

	return ocrResponse{
		Reading:   report.Result,
		Full:      passes[pipeline.PassFull],
		Crop:      passes[pipeline.PassCrop],
		Agreement: ocr.Compare(report.Result.Value, passes[report.Chosen().Pass].digits()),
		OCR:       info,
	}, nil
}

type imagePathArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleOdometerQuality(args json.RawMessage) (interface{}, error) {
	var a imagePathArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	return quality.Assess(img)
}

type statusResponse struct {
	ModelLoaded    bool       `json:"model_loaded"`
	ModelPath      string     `json:"model_path,omitempty"`
	Backend        string     `json:"backend"`
	InputSize      int        `json:"input_size,omitempty"`
	ConfThreshold  float64    `json:"conf_threshold"`
	IoUThreshold   float64    `json:"iou_threshold"`
	CrossClassNMS  bool       `json:"cross_class_nms"`
	CropMarginPx   int        `json:"crop_margin_px"`
	AspectWindow   [2]float64 `json:"aspect_window"`
	HistoryEnabled bool       `json:"history_enabled"`
	CachedImages   int        `json:"cached_images"`
	OCR            ocr.Info   `json:"ocr"`
}

func (s *Server) handleOdometerStatus(_ json.RawMessage) (interface{}, error) {
	return statusResponse{
		ModelLoaded:    s.pipe.Available(),
		ModelPath:      s.cfg.ModelPath,
		Backend:        s.cfg.Backend,
		InputSize:      s.pipe.InputSize(),
		ConfThreshold:  s.cfg.ConfThreshold,
		IoUThreshold:   s.cfg.IoUThreshold,
		CrossClassNMS:  s.cfg.CrossClassNMS,
		CropMarginPx:   s.cfg.CropMarginPx,
		AspectWindow:   [2]float64{s.cfg.MinAspect, s.cfg.MaxAspect},
		HistoryEnabled: s.history != nil,
		CachedImages:   s.cache.Len(),
		OCR:            ocr.GetInfo(),
	}, nil
}

// === Basic Image Information Handlers ===

func (s *Server) handleImageLoad(args json.RawMessage) (interface{}, error) {
	var a imagePathArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	return imaging.LoadImageInfo(s.cache, a.Path)
}

func (s *Server) handleImageDimensions(args json.RawMessage) (interface{}, error) {
	var a imagePathArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	return imaging.GetDimensions(s.cache, a.Path)
}
