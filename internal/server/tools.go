package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// Tool names.
const (
	ToolAnalyzeImage = "ctg_analyze_image"
	ToolClassify     = "ctg_classify_features"
	ToolPredict      = "ctg_predict"
	ToolEdgeMap      = "ctg_edge_map"
	ToolModelInfo    = "ctg_model_info"
	ToolMetrics      = "ctg_metrics"
)

func pathProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Absolute path to the CTG strip image",
	}
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Analysis
		{
			Name: ToolAnalyzeImage,
			Description: "Digitize a scanned CTG strip, normalize the trace to 50-200 bpm, extract baseline, variability, " +
				"decelerations and sinusoidal pattern, plot the trace and classify it as Normal, Suspicious or Pathological. " +
				"Give either a path on the server or a base64-encoded upload with its filename.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
					"image_base64": map[string]interface{}{
						"type":        "string",
						"description": "Image bytes, base64-encoded. Used when path is empty",
					},
					"filename": map[string]interface{}{
						"type":        "string",
						"description": "Original filename of the upload, e.g. strip.png",
					},
				},
			},
		},
		{
			Name:        ToolClassify,
			Description: "Classify an already extracted feature set with the rule engine, falling back to the classifier model when no rule decides.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"Baseline": map[string]interface{}{
						"type":        "number",
						"description": "Mean heart rate in bpm",
					},
					"Variability": map[string]interface{}{
						"type":        "number",
						"description": "Population standard deviation of the heart rate in bpm",
					},
					"Decelerations": map[string]interface{}{
						"type":        "integer",
						"description": "Number of samples below the deceleration threshold",
					},
					"IsSinusoidal": map[string]interface{}{
						"type":        "boolean",
						"description": "Whether the dominant frequency lies in the sinusoidal band",
						"default":     false,
					},
				},
				"required": []string{"Baseline", "Variability", "Decelerations"},
			},
		},
		{
			Name:        ToolPredict,
			Description: "Predict fetal health (Normal, Suspicious, Pathological) from numeric CTG features using the fetal-health model.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"features": map[string]interface{}{
						"type":                 "object",
						"description":          "Feature name to value, e.g. {\"baseline value\": 120, \"accelerations\": 0.003}",
						"additionalProperties": map[string]interface{}{"type": "number"},
					},
				},
				"required": []string{"features"},
			},
		},

		// Inspection
		{
			Name:        ToolEdgeMap,
			Description: "Return the Canny edge map the digitizer traces for an image, as base64-encoded PNG with edges in white.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        ToolModelInfo,
			Description: "Describe the loaded classifier and fetal-health models, or why they are unavailable.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
		{
			Name:        ToolMetrics,
			Description: "Return analysis, prediction and error counters in Prometheus text format.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
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
