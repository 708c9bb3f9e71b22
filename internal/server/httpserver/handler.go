package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/dmitrijs2005/sealpay/internal/common"
	"github.com/dmitrijs2005/sealpay/internal/server/models"
	"github.com/dmitrijs2005/sealpay/internal/wire"
)

const (
	uploadFormField = "file"
	// multipartOverhead bounds headers and boundaries around the file part.
	multipartOverhead = 1 << 20
	maxJSONBody       = 1 << 16
)

func (s *HTTPServer) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload+multipartOverhead)

	body, closeBody, err := uploadBody(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer closeBody()

	res, err := s.contents.Seal(r.Context(), body)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if uploader, ok := r.Context().Value(uploaderKey).(string); ok {
		s.logger.Info(r.Context(), "content sealed", "id", res.ID, "uploader", uploader)
	}

	writeJSON(w, http.StatusCreated, wire.UploadResponse{ID: res.ID, Algorithm: res.Algorithm, Size: res.Size})
}

// uploadBody returns the raw request body, or the "file" part of a
// multipart form.
func uploadBody(r *http.Request) (io.Reader, func(), error) {
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mt != "multipart/form-data" {
		return r.Body, func() {}, nil
	}

	mr, err := r.MultipartReader()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", common.ErrorInput, err)
	}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, nil, fmt.Errorf("%w: missing %q form field", common.ErrorInput, uploadFormField)
		}
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", common.ErrorInput, err)
		}
		if part.FormName() == uploadFormField {
			return part, func() { _ = part.Close() }, nil
		}
		_ = part.Close()
	}
}

func (s *HTTPServer) handleDownload(w http.ResponseWriter, r *http.Request) {
	rc, err := s.contents.Open(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", common.ContentTypeOctetStream)
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		s.logger.Error(r.Context(), "blob copy failed", "id", r.PathValue("id"), "error", err)
	}
}

func (s *HTTPServer) handleRequestPayment(w http.ResponseWriter, r *http.Request) {
	var req wire.PaymentRequest
	if r.ContentLength != 0 {
		dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
		if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			s.writeError(w, r, fmt.Errorf("%w: %v", common.ErrorInput, err))
			return
		}
	}

	in, err := s.payments.RequestPayment(r.Context(), r.PathValue("id"), req.Payer)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, intentDTO(in))
}

func (s *HTTPServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.payments.Status(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, wire.PaymentStatus{
		ContentID:    st.ContentID,
		IntentStatus: string(st.IntentStatus),
		PaymentState: string(st.PaymentState),
	})
}

func (s *HTTPServer) handleKey(w http.ResponseWriter, r *http.Request) {
	k, err := s.payments.ReleaseKey(r.Context(), r.PathValue("id"), r.URL.Query().Get("payer"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer common.WipeByteArray(k.ContentKey)

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, wire.ReleasedKey{
		ID:         k.ID,
		Algorithm:  k.Algorithm,
		ContentKey: k.ContentKey,
		Nonce:      k.Nonce,
	})
}

func intentDTO(in *models.PaymentIntent) wire.PaymentIntent {
	return wire.PaymentIntent{
		ContentID:      in.ContentID,
		Backend:        in.Backend,
		ExternalRef:    in.ExternalRef,
		PaymentRequest: in.PaymentRequest,
		Payer:          in.Payer,
		Status:         string(in.Status),
		CreatedAt:      in.CreatedAt,
	}
}
