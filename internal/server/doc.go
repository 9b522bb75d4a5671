// Package server implements the MCP (Model Context Protocol) server for CTG
// strip analysis.
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
// Analysis:
//   - ctg_analyze_image: Digitize, extract features, plot and classify a strip
//   - ctg_classify_features: Classify a caller-supplied feature set
//   - ctg_predict: Fetal-health prediction from numeric features
//
// Inspection:
//   - ctg_edge_map: Canny edge map the digitizer traces
//   - ctg_model_info: Loaded models and OCR engine
//   - ctg_metrics: Counters in Prometheus text format
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with
// code -32000. The data member is a structured payload:
//
//	{"kind": "NoWaveformDetectedError", "stage": "digitize", "message": "..."}
//
// Missing-feature errors from ctg_predict add "fields" listing the absent
// feature names. Malformed requests use the standard JSON-RPC codes
// -32700, -32601 and -32602.
//
// # Usage
//
//	srv := server.New(p, server.Info{Version: version}, logger)
//	if err := srv.Run(); err != nil {
//	    logger.Fatal().Err(err).Msg("server error")
//	}
package server
