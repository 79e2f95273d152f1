package api

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/shape-studio/backend/internal/models"
	"github.com/shape-studio/backend/internal/session"
	"github.com/shape-studio/backend/internal/storage"
)

// WebSocket message types for the upload and sync protocol
const (
	// Client -> Server messages
	MsgTypeUploadInit     = "upload:init"
	MsgTypeUploadChunk    = "upload:chunk"
	MsgTypeUploadComplete = "upload:complete"
	MsgTypeLibraryUpload  = "library:upload"
	MsgTypeSyncWatch      = "sync:watch"
	MsgTypePing           = "ping"

	// Server -> Client messages
	MsgTypeAck          = "ack"
	MsgTypeProgress     = "progress"
	MsgTypeComplete     = "complete"
	MsgTypeError        = "error"
	MsgTypeProcessing   = "processing"
	MsgTypeSyncProgress = "sync:progress"
	MsgTypePong         = "pong"
)

// WebSocket message structure
type WSMessage struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// Upload init payload
type UploadInitPayload struct {
	FileName    string `json:"fileName"`
	TotalChunks int    `json:"totalChunks"`
	TotalSize   int64  `json:"totalSize"`
	Encoding    string `json:"encoding,omitempty"` // "gzip", "none"
}

// Upload chunk payload
type UploadChunkPayload struct {
	UploadID   string `json:"uploadId"`
	ChunkIndex int    `json:"chunkIndex"`
	Data       string `json:"data"` // Base64 encoded chunk
	IsLast     bool   `json:"isLast,omitempty"`
}

// Upload complete payload
type UploadCompletePayload struct {
	UploadID       string `json:"uploadId"`
	FileName       string `json:"fileName"`
	TotalChunks    int    `json:"totalChunks"`
	OriginalSize   int64  `json:"originalSize"`
	CompressedSize int64  `json:"compressedSize,omitempty"`
	Encoding       string `json:"encoding,omitempty"`
}

// Library upload payload (single message, libraries are small)
type LibraryUploadPayload struct {
	FileID string `json:"fileId"` // loaded workspace file to attach to
	Name   string `json:"name"`
	Data   string `json:"data"` // Base64 encoded export
}

// Sync watch payload
type SyncWatchPayload struct {
	SessionID string `json:"sessionId"`
}

// WebSocket progress response
type WSProgressResponse struct {
	Type     string  `json:"type"`
	UploadID string  `json:"uploadId,omitempty"`
	Progress float64 `json:"progress"`
	Stage    string  `json:"stage,omitempty"`
	Message  string  `json:"message,omitempty"`
}

// WebSocket completion response
type WSCompleteResponse struct {
	Type     string           `json:"type"`
	UploadID string           `json:"uploadId,omitempty"`
	FileInfo *models.FileInfo `json:"fileInfo,omitempty"`
	Result   interface{}      `json:"result,omitempty"`
}

// WebSocket error response
type WSErrorResponse struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// UploadSession tracks an in-progress upload over WebSocket
type UploadSession struct {
	ID             string
	FileName       string
	TotalChunks    int
	ReceivedChunks map[int]bool
	Chunks         [][]byte
	OriginalSize   int64
	Encoding       string
	CreatedAt      time.Time
}

// WebSocketHandler manages WebSocket connections for uploads and sync
// progress watching
type WebSocketHandler struct {
	store      storage.Store
	stateStore *session.StateStore
	syncMgr    *session.Manager
	upgrader   websocket.Upgrader
	sessions   map[string]*UploadSession
	sessionsMu sync.RWMutex
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(store storage.Store, stateStore *session.StateStore, syncMgr *session.Manager) *WebSocketHandler {
	return &WebSocketHandler{
		store:      store,
		stateStore: stateStore,
		syncMgr:    syncMgr,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Allow connections from dev server
				return true
			},
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
		},
		sessions: make(map[string]*UploadSession),
	}
}

// HandleWebSocket upgrades the HTTP connection and runs the message loop
func (wsh *WebSocketHandler) HandleWebSocket(c echo.Context) error {
	ws, err := wsh.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer ws.Close()

	fmt.Println("[WebSocket] Client connected")

	wsh.sendMessage(ws, WSMessage{
		Type:      "connected",
		Timestamp: time.Now().UnixMilli(),
	})

	for {
		var msg WSMessage
		err := ws.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				fmt.Printf("[WebSocket] Connection error: %v\n", err)
			}
			break
		}

		switch msg.Type {
		case MsgTypePing:
			wsh.sendMessage(ws, WSMessage{Type: MsgTypePong, Timestamp: time.Now().UnixMilli()})
		case MsgTypeUploadInit:
			wsh.handleUploadInit(ws, msg)
		case MsgTypeUploadChunk:
			wsh.handleUploadChunk(ws, msg)
		case MsgTypeUploadComplete:
			wsh.handleUploadComplete(ws, msg)
		case MsgTypeLibraryUpload:
			wsh.handleLibraryUpload(ws, msg)
		case MsgTypeSyncWatch:
			wsh.handleSyncWatch(ws, msg)
		default:
			wsh.sendError(ws, "Unknown message type: "+msg.Type, "INVALID_TYPE")
		}
	}

	fmt.Println("[WebSocket] Client disconnected")
	return nil
}

// handleUploadInit initializes a new chunked upload session
func (wsh *WebSocketHandler) handleUploadInit(ws *websocket.Conn, msg WSMessage) {
	var payload UploadInitPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		wsh.sendError(ws, "Invalid init payload: "+err.Error(), "INVALID_PAYLOAD")
		return
	}

	sessionID := generateUploadID()
	sess := &UploadSession{
		ID:             sessionID,
		FileName:       payload.FileName,
		TotalChunks:    payload.TotalChunks,
		ReceivedChunks: make(map[int]bool),
		Chunks:         make([][]byte, payload.TotalChunks),
		OriginalSize:   payload.TotalSize,
		Encoding:       payload.Encoding,
		CreatedAt:      time.Now(),
	}

	wsh.sessionsMu.Lock()
	wsh.sessions[sessionID] = sess
	wsh.sessionsMu.Unlock()

	wsh.sendMessage(ws, WSMessage{
		Type:      MsgTypeAck,
		ID:        sessionID,
		Timestamp: time.Now().UnixMilli(),
	})

	fmt.Printf("[WebSocket] Upload initialized: %s (%d chunks, %d bytes)\n",
		sessionID, payload.TotalChunks, payload.TotalSize)
}

// handleUploadChunk receives and stores a chunk
func (wsh *WebSocketHandler) handleUploadChunk(ws *websocket.Conn, msg WSMessage) {
	var payload UploadChunkPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		wsh.sendError(ws, "Invalid chunk payload: "+err.Error(), "INVALID_PAYLOAD")
		return
	}

	wsh.sessionsMu.Lock()
	sess, exists := wsh.sessions[payload.UploadID]
	wsh.sessionsMu.Unlock()

	if !exists {
		wsh.sendError(ws, "Upload session not found: "+payload.UploadID, "SESSION_NOT_FOUND")
		return
	}

	chunkData, err := base64.StdEncoding.DecodeString(payload.Data)
	if err != nil {
		wsh.sendError(ws, "Invalid base64 data: "+err.Error(), "INVALID_DATA")
		return
	}

	sess.ReceivedChunks[payload.ChunkIndex] = true
	sess.Chunks[payload.ChunkIndex] = chunkData

	received := len(sess.ReceivedChunks)
	progress := float64(received) / float64(sess.TotalChunks) * 100

	wsh.sendMessage(ws, WSMessage{
		Type:      MsgTypeProgress,
		ID:        payload.UploadID,
		Timestamp: time.Now().UnixMilli(),
		Payload: mustJSON(WSProgressResponse{
			Type:     MsgTypeProgress,
			UploadID: payload.UploadID,
			Progress: progress,
			Stage:    "uploading",
			Message:  fmt.Sprintf("Received chunk %d/%d", received, sess.TotalChunks),
		}),
	})
}

// handleUploadComplete assembles chunks and saves the export
func (wsh *WebSocketHandler) handleUploadComplete(ws *websocket.Conn, msg WSMessage) {
	var payload UploadCompletePayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		wsh.sendError(ws, "Invalid complete payload: "+err.Error(), "INVALID_PAYLOAD")
		return
	}

	wsh.sessionsMu.Lock()
	sess, exists := wsh.sessions[payload.UploadID]
	wsh.sessionsMu.Unlock()

	if !exists {
		wsh.sendError(ws, "Upload session not found: "+payload.UploadID, "SESSION_NOT_FOUND")
		return
	}

	if len(sess.ReceivedChunks) != sess.TotalChunks {
		wsh.sendError(ws, fmt.Sprintf("Missing chunks: got %d, expected %d",
			len(sess.ReceivedChunks), sess.TotalChunks), "INCOMPLETE_UPLOAD")
		return
	}

	wsh.sendMessage(ws, WSMessage{
		Type:      MsgTypeProcessing,
		ID:        payload.UploadID,
		Timestamp: time.Now().UnixMilli(),
		Payload: mustJSON(WSProgressResponse{
			Type:     MsgTypeProcessing,
			UploadID: payload.UploadID,
			Progress: 50,
			Stage:    "assembling",
			Message:  "Assembling export chunks...",
		}),
	})

	totalSize := 0
	for _, chunk := range sess.Chunks {
		totalSize += len(chunk)
	}

	assembledData := make([]byte, 0, totalSize)
	for _, chunk := range sess.Chunks {
		assembledData = append(assembledData, chunk...)
	}

	if payload.Encoding == "gzip" || sess.Encoding == "gzip" {
		wsh.sendMessage(ws, WSMessage{
			Type:      MsgTypeProcessing,
			ID:        payload.UploadID,
			Timestamp: time.Now().UnixMilli(),
			Payload: mustJSON(WSProgressResponse{
				Type:     MsgTypeProcessing,
				UploadID: payload.UploadID,
				Progress: 75,
				Stage:    "decompressing",
				Message:  "Decompressing export...",
			}),
		})

		decompressed, err := decompressGzip(assembledData)
		if err != nil {
			fmt.Printf("[WebSocket] Decompression failed, using as-is: %v\n", err)
		} else {
			assembledData = decompressed
		}
	}

	info, err := wsh.store.Save(payload.FileName, bytes.NewReader(assembledData))
	if err != nil {
		wsh.sendError(ws, "Failed to save export: "+err.Error(), "SAVE_ERROR")
		return
	}

	wsh.sessionsMu.Lock()
	delete(wsh.sessions, payload.UploadID)
	wsh.sessionsMu.Unlock()

	wsh.sendMessage(ws, WSMessage{
		Type:      MsgTypeComplete,
		ID:        payload.UploadID,
		Timestamp: time.Now().UnixMilli(),
		Payload: mustJSON(WSCompleteResponse{
			Type:     MsgTypeComplete,
			UploadID: payload.UploadID,
			FileInfo: info,
		}),
	})

	fmt.Printf("[WebSocket] Upload complete: %s (%d bytes)\n", info.ID, info.Size)
}

// handleLibraryUpload saves a library export and attaches it to a loaded
// workspace file in one message
func (wsh *WebSocketHandler) handleLibraryUpload(ws *websocket.Conn, msg WSMessage) {
	var payload LibraryUploadPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		wsh.sendError(ws, "Invalid library upload payload: "+err.Error(), "INVALID_PAYLOAD")
		return
	}

	decoded, err := base64.StdEncoding.DecodeString(payload.Data)
	if err != nil {
		wsh.sendError(ws, "Invalid base64 data: "+err.Error(), "INVALID_DATA")
		return
	}

	info, err := wsh.store.Save(payload.Name, bytes.NewReader(decoded))
	if err != nil {
		wsh.sendError(ws, "Failed to save library export: "+err.Error(), "SAVE_ERROR")
		return
	}

	path, err := wsh.store.GetFilePath(info.ID)
	if err != nil {
		wsh.sendError(ws, "Failed to resolve export path: "+err.Error(), "FILE_ERROR")
		return
	}

	lib, err := wsh.stateStore.AttachLibrary(payload.FileID, path)
	if err != nil {
		wsh.sendError(ws, "Failed to attach library: "+err.Error(), "ATTACH_ERROR")
		return
	}

	wsh.sendMessage(ws, WSMessage{
		Type:      MsgTypeComplete,
		Timestamp: time.Now().UnixMilli(),
		Payload: mustJSON(WSCompleteResponse{
			Type:     MsgTypeComplete,
			FileInfo: info,
			Result: map[string]interface{}{
				"libraryId":    lib.ID,
				"components":   len(lib.Components),
				"colors":       len(lib.Colors),
				"typographies": len(lib.Typographies),
			},
		}),
	})

	fmt.Printf("[WebSocket] Library attached: %s -> %s\n", lib.ID, payload.FileID)
}

// handleSyncWatch pushes sync session progress until it finishes
func (wsh *WebSocketHandler) handleSyncWatch(ws *websocket.Conn, msg WSMessage) {
	var payload SyncWatchPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		wsh.sendError(ws, "Invalid sync watch payload: "+err.Error(), "INVALID_PAYLOAD")
		return
	}

	sess, ok := wsh.syncMgr.GetSession(payload.SessionID)
	if !ok {
		wsh.sendError(ws, "Sync session not found: "+payload.SessionID, "SESSION_NOT_FOUND")
		return
	}

	deadline := time.Now().Add(5 * time.Minute)
	for time.Now().Before(deadline) {
		wsh.sendMessage(ws, WSMessage{
			Type:      MsgTypeSyncProgress,
			ID:        payload.SessionID,
			Timestamp: time.Now().UnixMilli(),
			Payload:   mustJSON(sess),
		})

		if sess.Status == models.SyncStatusComplete || sess.Status == models.SyncStatusError {
			return
		}

		time.Sleep(100 * time.Millisecond)

		sess, ok = wsh.syncMgr.GetSession(payload.SessionID)
		if !ok {
			wsh.sendError(ws, "Sync session not found: "+payload.SessionID, "SESSION_NOT_FOUND")
			return
		}
	}
	wsh.sendError(ws, "Sync watch timeout", "WATCH_TIMEOUT")
}

// Helper methods

func (wsh *WebSocketHandler) sendMessage(ws *websocket.Conn, msg WSMessage) {
	if err := ws.WriteJSON(msg); err != nil {
		fmt.Printf("[WebSocket] Failed to send message: %v\n", err)
	}
}

func (wsh *WebSocketHandler) sendError(ws *websocket.Conn, message, code string) {
	wsh.sendMessage(ws, WSMessage{
		Type:      MsgTypeError,
		Timestamp: time.Now().UnixMilli(),
		Payload: mustJSON(WSErrorResponse{
			Type:    MsgTypeError,
			Message: message,
			Code:    code,
		}),
	})
}

func generateUploadID() string {
	return fmt.Sprintf("%d-%d", time.Now().UnixMilli(), time.Now().Nanosecond())
}

func mustJSON(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return data
}

func decompressGzip(data []byte) ([]byte, error) {
	reader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer reader.Close()
	return io.ReadAll(reader)
}
