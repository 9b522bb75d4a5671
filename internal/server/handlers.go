package server

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ironsheep/ctg-digitizer-mcp/internal/features"
	"github.com/ironsheep/ctg-digitizer-mcp/internal/model"
	"github.com/ironsheep/ctg-digitizer-mcp/internal/ocr"
	"github.com/ironsheep/ctg-digitizer-mcp/internal/pipeline"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "ctg_analyze_image").
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
// Tool execution errors return a JSON-RPC error response with code -32000
// whose data is the structured error payload (kind, stage, message and,
// for missing features, the absent field names).
func (s *Server) handleToolsCall(req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(params.Name, params.Arguments)
	if err != nil {
		payload := pipeline.PayloadOf(err)
		// Stage failures are counted by the pipeline itself.
		var pe *pipeline.Error
		if !errors.As(err, &pe) {
			s.pipeline.Metrics().Errors.Inc(string(payload.Kind))
		}
		s.logger.Warn().Str("tool", params.Name).Err(err).Msg("tool failed")
		return s.errorResponse(req.ID, -32000, "Tool execution failed", payload)
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
	// Analysis
	case ToolAnalyzeImage:
		return s.handleAnalyzeImage(args)
	case ToolClassify:
		return s.handleClassify(args)
	case ToolPredict:
		return s.handlePredict(args)

	// Inspection
	case ToolEdgeMap:
		return s.handleEdgeMap(args)
	case ToolModelInfo:
		return s.handleModelInfo()
	case ToolMetrics:
		return s.handleMetrics()

	default:
		return nil, fmt.Errorf("%w: unknown tool: %s", pipeline.ErrInvalidInput, name)
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// decodeArgs unmarshals tool arguments. Absent arguments decode as {}.
func decodeArgs(args json.RawMessage, v interface{}) error {
	if len(args) == 0 {
		return nil
	}
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("%w: %v", pipeline.ErrInvalidInput, err)
	}
	return nil
}

// === Analysis Handlers ===

type analyzeImageArgs struct {
	Path        string `json:"path"`
	ImageBase64 string `json:"image_base64"`
	Filename    string `json:"filename"`
}

func (s *Server) handleAnalyzeImage(args json.RawMessage) (interface{}, error) {
	var a analyzeImageArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}

	switch {
	case a.Path != "":
		return s.pipeline.AnalyzeFile(a.Path)
	case a.ImageBase64 != "":
		data, err := base64.StdEncoding.DecodeString(a.ImageBase64)
		if err != nil {
			return nil, fmt.Errorf("%w: image_base64: %v", pipeline.ErrInvalidInput, err)
		}
		if a.Filename == "" {
			a.Filename = "upload.png"
		}
		return s.pipeline.AnalyzeUpload(a.Filename, data)
	default:
		return nil, fmt.Errorf("%w: path or image_base64 is required", pipeline.ErrInvalidInput)
	}
}

type classifyArgs struct {
	Baseline      *float64 `json:"Baseline"`
	Variability   *float64 `json:"Variability"`
	Decelerations *int     `json:"Decelerations"`
	IsSinusoidal  bool     `json:"IsSinusoidal"`
}

func (s *Server) handleClassify(args json.RawMessage) (interface{}, error) {
	var a classifyArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Baseline == nil || a.Variability == nil || a.Decelerations == nil {
		return nil, fmt.Errorf("%w: Baseline, Variability and Decelerations are required", pipeline.ErrInvalidInput)
	}

	return s.pipeline.Classify(features.FeatureSet{
		Baseline:      *a.Baseline,
		Variability:   *a.Variability,
		Decelerations: *a.Decelerations,
		IsSinusoidal:  a.IsSinusoidal,
	})
}

type predictArgs struct {
	Features map[string]float64 `json:"features"`
}

func (s *Server) handlePredict(args json.RawMessage) (interface{}, error) {
	var a predictArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	return s.pipeline.Predict(a.Features)
}

// === Inspection Handlers ===

type edgeMapArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleEdgeMap(args json.RawMessage) (interface{}, error) {
	var a edgeMapArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Path == "" {
		return nil, fmt.Errorf("%w: path is required", pipeline.ErrInvalidInput)
	}

	edges, err := s.pipeline.EdgeMap(a.Path)
	if err != nil {
		return nil, err
	}
	return edges.Encode()
}

// ModelStatus reports one model.
type ModelStatus struct {
	Available bool        `json:"available"`
	Info      *model.Info `json:"info,omitempty"`
	Error     string      `json:"error,omitempty"`
}

// ServerInfo is the result of ctg_model_info.
type ServerInfo struct {
	Name       string      `json:"name"`
	Version    string      `json:"version"`
	Classifier ModelStatus `json:"classifier"`
	Predictor  ModelStatus `json:"predictor"`
	OCR        string      `json:"ocr,omitempty"`
}

func modelStatus(ref model.Ref) ModelStatus {
	f, err := ref.Forest()
	if err != nil {
		return ModelStatus{Error: err.Error()}
	}
	info := f.Info()
	return ModelStatus{Available: true, Info: &info}
}

func (s *Server) handleModelInfo() (interface{}, error) {
	res := ServerInfo{
		Name:       s.info.Name,
		Version:    s.info.Version,
		Classifier: modelStatus(s.info.Classifier),
		Predictor:  modelStatus(s.info.Predictor),
	}
	if s.info.OCREnabled {
		res.OCR = "tesseract " + ocr.Version()
	}
	return res, nil
}

func (s *Server) handleMetrics() (interface{}, error) {
	text, err := s.pipeline.Metrics().Text()
	if err != nil {
		return nil, err
	}
	return map[string]string{"text": text}, nil
}
