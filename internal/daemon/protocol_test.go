package daemon

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequest_JSON(t *testing.T) {
	req := Request{
		JSONRPC: "2.0",
		Method:  MethodQuery,
		Params: QueryParams{
			Query: "test query",
			Limit: 10,
		},
		ID: "req-1",
	}

	data, err := json.Marshal(req)
	require.NoError(t, err)

	var decoded Request
	err = json.Unmarshal(data, &decoded)
	require.NoError(t, err)

	assert.Equal(t, "2.0", decoded.JSONRPC)
	assert.Equal(t, MethodQuery, decoded.Method)
	assert.Equal(t, "req-1", decoded.ID)
}

func TestResponse_Success(t *testing.T) {
	results := []QueryResult{
		{Content: "some chunk text", FilePath: "/test.go", Score: 0.95},
	}

	resp := NewSuccessResponse("req-1", results)

	assert.Equal(t, "2.0", resp.JSONRPC)
	assert.Equal(t, "req-1", resp.ID)
	assert.NotNil(t, resp.Result)
	assert.Nil(t, resp.Error)
}

func TestResponse_Error(t *testing.T) {
	resp := NewErrorResponse("req-1", ErrCodeInvalidParams, "invalid query")

	assert.Equal(t, "2.0", resp.JSONRPC)
	assert.Equal(t, "req-1", resp.ID)
	assert.Nil(t, resp.Result)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeInvalidParams, resp.Error.Code)
	assert.Equal(t, "invalid query", resp.Error.Message)
}

func TestQueryParams_Validate(t *testing.T) {
	tests := []struct {
		name    string
		params  QueryParams
		wantErr bool
	}{
		{
			name:    "valid params",
			params:  QueryParams{Query: "test", Limit: 10},
			wantErr: false,
		},
		{
			name:    "empty query",
			params:  QueryParams{Query: ""},
			wantErr: true,
		},
		{
			name:    "negative limit is corrected, not an error",
			params:  QueryParams{Query: "test", Limit: -1},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := tt.params
			err := params.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.GreaterOrEqual(t, params.Limit, 0)
			}
		})
	}
}

func TestQueryResult_JSON(t *testing.T) {
	result := QueryResult{
		Content:      "func TestSomething() {",
		Score:        0.89,
		FilePath:     "/path/to/file.go",
		FileType:     "go",
		LastModified: 1700000000,
	}

	data, err := json.Marshal(result)
	require.NoError(t, err)

	var decoded QueryResult
	err = json.Unmarshal(data, &decoded)
	require.NoError(t, err)

	assert.Equal(t, result.Content, decoded.Content)
	assert.InDelta(t, result.Score, decoded.Score, 0.001)
	assert.Equal(t, result.FilePath, decoded.FilePath)
	assert.Equal(t, result.FileType, decoded.FileType)
	assert.Equal(t, result.LastModified, decoded.LastModified)
}

func TestStatsResult_JSON(t *testing.T) {
	stats := StatsResult{FileCount: 12, ChunkCount: 340, DBSizeBytes: 1 << 20}

	data, err := json.Marshal(stats)
	require.NoError(t, err)

	var decoded StatsResult
	err = json.Unmarshal(data, &decoded)
	require.NoError(t, err)

	assert.Equal(t, stats, decoded)
}

func TestStatusResult_JSON(t *testing.T) {
	status := StatusResult{
		Running:        true,
		PID:            12345,
		Uptime:         "1h30m",
		EmbedderType:   "onnx",
		EmbedderStatus: "ready",
	}

	data, err := json.Marshal(status)
	require.NoError(t, err)

	var decoded StatusResult
	err = json.Unmarshal(data, &decoded)
	require.NoError(t, err)

	assert.Equal(t, status, decoded)
}

func TestMethodConstants(t *testing.T) {
	assert.Equal(t, "query", MethodQuery)
	assert.Equal(t, "stats", MethodStats)
	assert.Equal(t, "status", MethodStatus)
	assert.Equal(t, "ping", MethodPing)
}

func TestErrorCodes(t *testing.T) {
	assert.Equal(t, -32700, ErrCodeParseError)
	assert.Equal(t, -32600, ErrCodeInvalidRequest)
	assert.Equal(t, -32601, ErrCodeMethodNotFound)
	assert.Equal(t, -32602, ErrCodeInvalidParams)
	assert.Equal(t, -32603, ErrCodeInternalError)
	assert.Equal(t, -32001, ErrCodeQueryFailed)
}
