package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func pathProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Absolute path to the image file",
	}
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Odometer Reading
		{
			Name:        "odometer_read",
			Description: "Read the odometer in a photograph. Runs the detection model on the letterboxed full frame and on a center crop, and returns the better reading with its confidence and which pass produced it (Original or Cropped). Warnings flag low confidence, unusual digit counts and digits that are not on one row.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
					"record": map[string]interface{}{
						"type":        "boolean",
						"description": "Add the reading to the session history. Default true",
						"default":     true,
					},
					"assess_quality": map[string]interface{}{
						"type":        "boolean",
						"description": "Also score brightness, contrast and sharpness of the photo. Default false",
						"default":     false,
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "odometer_inspect",
			Description: "Run the odometer reader and report both passes in detail: status, every surviving detection box and each pass's reading. Optionally returns the model canvases with the boxes drawn on them as base64 PNG.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
					"annotate": map[string]interface{}{
						"type":        "boolean",
						"description": "Return annotated canvases. Default true",
						"default":     true,
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "odometer_history",
			Description: "List the most recent readings of this session, newest first. History is kept in memory only.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"limit": map[string]interface{}{
						"type":        "integer",
						"description": "Number of readings to return. Default 5",
						"default":     5,
					},
					"clear": map[string]interface{}{
						"type":        "boolean",
						"description": "Forget every recorded reading instead of listing them",
						"default":     false,
					},
				},
			},
		},
		{
			Name:        "odometer_ocr_digits",
			Description: "Cross-check a reading with Tesseract OCR restricted to digits. OCR runs on both model canvases and on the band the model found digits in, and is compared with the chosen reading; it never changes the reading.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
					"language": map[string]interface{}{
						"type":        "string",
						"description": "Tesseract language code. Default 'eng'",
						"default":     "eng",
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "odometer_quality",
			Description: "Score a photo's brightness, contrast and sharpness before reading it. Scores are between 0 and 1.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "odometer_status",
			Description: "Report whether a detection model is loaded, which backend runs it, its input size, and whether OCR is available.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},

		// Basic Image Information
		{
			Name:        "image_load",
			Description: "Load an image file and return its dimensions and format. The decoded image is cached for subsequent operations.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "image_dimensions",
			Description: "Get the width and height of an image file after orientation correction and downsampling.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
				},
				"required": []string{"path"},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
