package models

// UploadResponse reports what ingestion produced for an uploaded file.
type UploadResponse struct {
	SessionID string `json:"session_id"`
	FileName  string `json:"file_name"`
	Pages     int    `json:"pages"`
	Chunks    int    `json:"chunks"`
	Indexed   bool   `json:"indexed"`
	Message   string `json:"message"`
}

// AnalyzeRequest asks for the one-shot analysis of a processed session.
type AnalyzeRequest struct {
	SessionID string `json:"session_id" binding:"required"`
}

// AnalyzeResponse carries the generated analysis and table status.
// TableRows is zero when no table could be extracted; that is not an
// error.
type AnalyzeResponse struct {
	SessionID     string `json:"session_id"`
	Analysis      string `json:"analysis"`
	TableRows     int    `json:"table_rows"`
	TableCSV      string `json:"table_csv,omitempty"`
	TableXLSX     string `json:"table_xlsx,omitempty"`
	UsedRetrieval bool   `json:"used_retrieval"`
}

// ChatRequest is one conversational turn against a processed session.
type ChatRequest struct {
	SessionID string `json:"session_id" binding:"required"`
	Query     string `json:"query" binding:"required"`
}

// ChatResponse carries the reply plus the session's accumulated state
// sizes for client display.
type ChatResponse struct {
	SessionID       string   `json:"session_id"`
	Reply           string   `json:"reply"`
	HistorySize     int      `json:"history_size"`
	Topics          []string `json:"topics,omitempty"`
	Recommendations []string `json:"recommendations,omitempty"`
}

// ResetResponse confirms a session teardown.
type ResetResponse struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}
