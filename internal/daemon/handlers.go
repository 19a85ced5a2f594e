package daemon

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/MayankTamakuwala/TranscriBelt/internal/api"
	"github.com/MayankTamakuwala/TranscriBelt/internal/logging"
	"github.com/MayankTamakuwala/TranscriBelt/internal/services"
)

const (
	// uploadFieldName is the multipart field holding the video.
	uploadFieldName = "file"
	// multipartOverhead leaves room for boundaries and part headers on top of
	// the configured upload cap.
	multipartOverhead = 1 << 20
	maxCommentBody    = 64 << 10
)

func (s *apiServer) handleUpload(w http.ResponseWriter, r *http.Request) {
	if limit := s.cfg.MaxUploadBytes(); limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)
	}
	up := api.Upload{ClientKey: s.clientKey(r)}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		reader, err := r.MultipartReader()
		if err != nil {
			s.writeError(w, r, fmt.Errorf("%w: malformed multipart body", api.ErrEmptyUpload))
			return
		}
		part, err := nextFilePart(reader)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		defer part.Close()
		up.DeclaredType = part.Header.Get("Content-Type")
		up.Body = part
	} else {
		up.DeclaredType = r.Header.Get("Content-Type")
		up.Body = r.Body
	}

	resp, err := s.deps.submitter.Submit(r.Context(), up)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, resp)
}

// nextFilePart skips form fields until the upload part.
func nextFilePart(reader *multipart.Reader) (*multipart.Part, error) {
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: missing %q field", api.ErrEmptyUpload, uploadFieldName)
		}
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				return nil, api.ErrTooLarge
			}
			return nil, fmt.Errorf("%w: malformed multipart body", api.ErrEmptyUpload)
		}
		if part.FormName() == uploadFieldName {
			return part, nil
		}
		part.Close()
	}
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.deps.statuses.Get(r.Context(), r.PathValue("job_id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, st)
}

func (s *apiServer) handleDownload(w http.ResponseWriter, r *http.Request) {
	dl, err := s.deps.downloads.Open(r.Context(), r.PathValue("filename"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer dl.Body.Close()

	w.Header().Set("Content-Type", dl.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": dl.Name}))
	if dl.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(dl.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, dl.Body); err != nil {
		logging.WithContext(r.Context(), s.logger).Warn("download interrupted",
			logging.String("name", dl.Name),
			logging.Error(err),
			logging.String(logging.FieldEventType, "download_interrupted"),
		)
	}
}

func (s *apiServer) handleFolders(w http.ResponseWriter, r *http.Request) {
	listing, err := s.deps.review.Folders(r.Context(), r.URL.Query().Get("prefix"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, listing)
}

func (s *apiServer) handleSummary(w http.ResponseWriter, r *http.Request) {
	resp, err := s.deps.review.Summary(r.Context(), r.PathValue("folder_id"), r.URL.Query().Get("format"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleListComments(w http.ResponseWriter, r *http.Request) {
	resp, err := s.deps.review.Comments(r.Context(), r.PathValue("folder_id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleAddComment(w http.ResponseWriter, r *http.Request) {
	var req api.CommentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	c, err := s.deps.review.AddComment(r.Context(), r.PathValue("folder_id"), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, c)
}

func (s *apiServer) handleEditComment(w http.ResponseWriter, r *http.Request) {
	var req api.CommentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	c, err := s.deps.review.EditComment(r.Context(), r.PathValue("folder_id"), r.PathValue("comment_id"), req.Text)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, c)
}

func (s *apiServer) handleDeleteComment(w http.ResponseWriter, r *http.Request) {
	resp, err := s.deps.review.DeleteComment(r.Context(), r.PathValue("folder_id"), r.PathValue("comment_id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := s.deps.health(r.Context())
	code := http.StatusOK
	if resp.Status != "ok" {
		code = http.StatusServiceUnavailable
	}
	s.writeJSON(w, code, resp)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCommentBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid JSON body", services.ErrValidation)
	}
	return nil
}
