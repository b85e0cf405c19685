package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/prismrag/ragjobs/pkg/core"
)

// jobView is the wire form of a job snapshot.
type jobView struct {
	ID        string       `json:"id"`
	Kind      string       `json:"kind"`
	Status    string       `json:"status"`
	Stage     string       `json:"stage,omitempty"`
	Progress  float64      `json:"progress"`
	File      *fileView    `json:"file,omitempty"`
	Prompt    string       `json:"prompt,omitempty"`
	Result    resultView   `json:"result"`
	Error     *failureView `json:"error,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

type fileView struct {
	Filename  string `json:"filename"`
	MimeType  string `json:"mimeType"`
	SizeBytes int64  `json:"sizeBytes"`
}

type resultView struct {
	Chunks      int    `json:"chunks"`
	TotalChunks int    `json:"totalChunks"`
	Text        string `json:"text,omitempty"`
}

type failureView struct {
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

func toJobView(s core.Snapshot) jobView {
	v := jobView{
		ID:       s.ID,
		Kind:     string(s.Kind),
		Status:   string(s.Status),
		Stage:    s.Stage,
		Progress: s.Progress,
		Result: resultView{
			Chunks:      s.Result.Chunks,
			TotalChunks: s.Result.TotalChunks,
			Text:        s.Result.Text,
		},
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
	if s.File != nil {
		v.File = &fileView{
			Filename:  s.File.Filename,
			MimeType:  s.File.MimeType,
			SizeBytes: s.File.SizeBytes,
		}
	}
	if s.Prompt != nil {
		v.Prompt = s.Prompt.Prompt
	}
	if s.Failure != nil {
		v.Error = &failureView{
			Message:   s.Failure.Message,
			Retryable: s.Failure.Retryable,
		}
	}
	return v
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	var body errorBody
	body.Error.Code = code
	body.Error.Message = message
	writeJSON(w, status, body)
}
