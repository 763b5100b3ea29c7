// Package transport is the JSON/HTTP shell spec.md §6 describes: a
// single inbound surface that decodes a Message envelope, hands it to
// the dispatcher, and renders the reply or mapped error back out.
package transport

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/dwnode/dwnd/internal/dispatcher"
	"github.com/dwnode/dwnd/internal/logging"
	"github.com/dwnode/dwnd/internal/model"
)

// LocalManifest supplies the record_id/latest-entry_id pairs the
// manifest endpoint advertises to a syncing peer.
type LocalManifest interface {
	PrepareSync(ctx context.Context) ([]model.LocalRecordRef, error)
}

// Server is the HTTP shell around one Dispatcher.
type Server struct {
	dispatcher *dispatcher.Dispatcher
	manifest   LocalManifest
	mux        *http.ServeMux
}

// NewServer builds a Server routing every DWN interface.method call
// through d. manifest backs the GET .../manifest endpoint a peer's
// sync worker polls ahead of a RecordsSync.
func NewServer(d *dispatcher.Dispatcher, manifest LocalManifest) *Server {
	s := &Server{dispatcher: d, manifest: manifest, mux: http.NewServeMux()}

	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.HandleFunc("GET /dwn/{owner}/manifest", s.handleManifest)
	s.mux.HandleFunc("POST /dwn/{owner}", s.handleProcess)

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// handleProcess decodes the request body as a Message and runs it
// through the dispatcher for the owner DID named by the path, tagging
// the request with a correlation id for logging.
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.New().String()

	ctx := logging.WithLogger(r.Context(), "", false)
	logger := logging.FromContext(ctx).With("request_id", requestID, "owner", r.PathValue("owner"))

	var msg model.Message

	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		logger.Warn("failed to decode request body", "error", err)
		writeError(w, requestID, dispatcher.KindInvalidEnvelope, err.Error())

		return
	}

	reply, err := s.dispatcher.Process(ctx, r.PathValue("owner"), msg)
	if err != nil {
		logger.Info("message processing failed", "error", err)
		writeError(w, requestID, dispatcher.KindOf(err), err.Error())

		return
	}

	writeJSON(w, http.StatusOK, reply)
}

// handleManifest advertises the record_id/entry_id pairs of every
// record in the local store (the {owner} path segment does not narrow
// them) so a syncing peer can diff its own manifest against them before
// issuing a RecordsSync.
func (s *Server) handleManifest(w http.ResponseWriter, r *http.Request) {
	refs, err := s.manifest.PrepareSync(r.Context())
	if err != nil {
		writeError(w, uuid.New().String(), dispatcher.KindBackendError, err.Error())

		return
	}

	writeJSON(w, http.StatusOK, refs)
}

type errorBody struct {
	RequestID string `json:"requestId"`
	Kind      string `json:"kind"`
	Message   string `json:"message"`
}

func writeError(w http.ResponseWriter, requestID string, kind dispatcher.Kind, message string) {
	writeJSON(w, kind.HTTPStatus(), errorBody{RequestID: requestID, Kind: kind.String(), Message: message})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
