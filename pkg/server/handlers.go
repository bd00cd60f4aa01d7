package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/matzehuels/stackbom/pkg/assemble"
	"github.com/matzehuels/stackbom/pkg/buildinfo"
	"github.com/matzehuels/stackbom/pkg/cache"
	"github.com/matzehuels/stackbom/pkg/cdx"
	errs "github.com/matzehuels/stackbom/pkg/errors"
	"github.com/matzehuels/stackbom/pkg/validate"
)

// Media types of the two document encodings.
const (
	MediaTypeJSON   = "application/vnd.cyclonedx+json"
	MediaTypeBinary = "application/x.vnd.cyclonedx+protobuf"
)

// ValidateResponse is the body of a validate response.
type ValidateResponse struct {
	OK          bool   `json:"ok"`
	SpecVersion string `json:"specVersion"`
	validate.Result
}

// AssembleRequest is the body of an assemble request.
type AssembleRequest struct {
	ProjectRoot string `json:"projectRoot"`
	// SpecVersion of the merged document. Defaults to the latest.
	SpecVersion string          `json:"specVersion,omitempty"`
	Documents   []InputDocument `json:"documents"`
}

// InputDocument is one per-manifest document and the manifest path it was
// generated from.
type InputDocument struct {
	Path     string          `json:"path"`
	Document json.RawMessage `json:"document"`
}

// AssembleResponse is the body of an assemble response.
type AssembleResponse struct {
	Document   *cdx.Document   `json:"document"`
	Partial    bool            `json:"partial"`
	Warnings   []string        `json:"warnings"`
	Validation validate.Result `json:"validation"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": buildinfo.Version})
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, errs.Wrap(errs.ErrCodeInvalidInput, err, "read request body"))
		return
	}
	doc, err := cdx.Unmarshal(body, r.URL.Query().Get("specVersion"))
	if err != nil {
		writeError(w, err)
		return
	}
	g, err := cdx.FromDocument(doc)
	if err != nil {
		writeError(w, err)
		return
	}
	res := s.validator.Validate(g)
	writeJSON(w, http.StatusOK, ValidateResponse{OK: res.OK(), SpecVersion: doc.SpecVersion, Result: res})
}

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	to, err := cdx.ParseFormat(q.Get("to"))
	if err != nil {
		writeError(w, err)
		return
	}
	target := q.Get("specVersion")
	if target != "" {
		if _, err := cdx.CheckSpecVersion(target); err != nil {
			writeError(w, err)
			return
		}
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, errs.Wrap(errs.ErrCodeInvalidInput, err, "read request body"))
		return
	}

	key := strings.Join([]string{"convert", cache.Hash(body), string(to), target}, ":")
	if data, ok, _ := s.opts.Cache.Get(r.Context(), key); ok {
		writeDocument(w, to, data)
		return
	}

	data, err := convert(body, to, target)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.opts.Cache.Set(r.Context(), key, data, s.opts.CacheTTL); err != nil {
		s.opts.Logger.Debug("cache write failed", "error", err)
	}
	writeDocument(w, to, data)
}

// convert re-encodes a document in format to. An empty target keeps the
// document's spec version.
func convert(body []byte, to cdx.Format, target string) ([]byte, error) {
	doc, err := cdx.Unmarshal(body, "")
	if err != nil {
		return nil, err
	}
	out, err := cdx.Convert(doc, target)
	if err != nil {
		return nil, err
	}
	return cdx.Marshal(out, to)
}

func writeDocument(w http.ResponseWriter, f cdx.Format, data []byte) {
	if f == cdx.FormatBinary {
		w.Header().Set("Content-Type", MediaTypeBinary)
	} else {
		w.Header().Set("Content-Type", MediaTypeJSON)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleAssemble(w http.ResponseWriter, r *http.Request) {
	var req AssembleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errs.Wrap(errs.ErrCodeInvalidInput, err, "decode request"))
		return
	}
	if req.ProjectRoot == "" {
		writeError(w, errs.New(errs.ErrCodeInvalidInput, "projectRoot is required"))
		return
	}
	if len(req.Documents) == 0 {
		writeError(w, errs.New(errs.ErrCodeInvalidInput, "at least one document is required"))
		return
	}

	inputs := make([]assemble.Input, len(req.Documents))
	for i, in := range req.Documents {
		if in.Path == "" {
			writeError(w, errs.New(errs.ErrCodeInvalidInput, "documents[%d]: path is required", i))
			return
		}
		doc, err := cdx.ReadJSON(bytes.NewReader(in.Document))
		if err != nil {
			writeError(w, errs.Wrap(errs.GetCode(err), err, "documents[%d]", i))
			return
		}
		g, err := cdx.FromDocument(doc)
		if err != nil {
			writeError(w, errs.Wrap(errs.GetCode(err), err, "documents[%d]", i))
			return
		}
		inputs[i] = assemble.Input{Path: in.Path, Graph: g}
	}

	g, report := assemble.Assemble(inputs, req.ProjectRoot, s.opts.Assemble)
	res := s.validator.Validate(g)
	doc, err := cdx.ToDocument(g, req.SpecVersion)
	if err != nil {
		writeError(w, err)
		return
	}

	warnings := append(append([]string{}, report.Warnings...), res.Warnings...)
	writeJSON(w, http.StatusOK, AssembleResponse{
		Document:   doc,
		Partial:    report.Partial,
		Warnings:   warnings,
		Validation: res,
	})
}
