package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"xdc-transfer/internal/form"
	"xdc-transfer/internal/models"
	"xdc-transfer/internal/receive"
	"xdc-transfer/internal/transfer"
)

type sessionView struct {
	Address    string `json:"address,omitempty"`
	AddressURL string `json:"address_url,omitempty"`
	ChainID    int64  `json:"chain_id,omitempty"`
	ChainName  string `json:"chain_name"`
	Connected  bool   `json:"connected"`
	Symbol     string `json:"symbol"`
}

type formView struct {
	State     form.State `json:"state"`
	CanSubmit bool       `json:"can_submit"`
	Connected bool       `json:"connected"`
}

type editRequest struct {
	Value string `json:"value"`
}

type submitResponse struct {
	State    form.State            `json:"state"`
	Transfer *models.TransferEvent `json:"transfer,omitempty"`
	Error    string                `json:"error,omitempty"`
	Kind     transfer.Kind         `json:"kind,omitempty"`
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	page, err := staticFS.ReadFile("static/index.html")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "page unavailable")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(page)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	cur := s.session.Current()
	view := sessionView{
		Address:   cur.Address,
		ChainID:   cur.ChainID,
		ChainName: cur.ChainName,
		Connected: cur.Connected,
		Symbol:    s.chain.Symbol,
	}
	if cur.Connected {
		if c, ok := models.LookupChain(cur.ChainID); ok {
			view.AddressURL = c.AddressURL(cur.Address)
			view.Symbol = c.Symbol
		}
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	account, ok := s.session.Account()
	if !ok {
		writeError(w, http.StatusConflict, errNotConnected.Error())
		return
	}
	display, err := s.balances.Read(r.Context(), account)
	if err != nil {
		writeError(w, http.StatusBadGateway, "balance unavailable")
		return
	}
	writeJSON(w, http.StatusOK, display)
}

func (s *Server) handleQR(w http.ResponseWriter, r *http.Request) {
	cur := s.session.Current()
	if !cur.Connected {
		writeError(w, http.StatusConflict, errNotConnected.Error())
		return
	}
	png, err := s.receive.QR(cur.Address)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to render receive QR")
		writeError(w, http.StatusInternalServerError, "qr unavailable")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(png)
}

func (s *Server) handleCopy(w http.ResponseWriter, r *http.Request) {
	cur := s.session.Current()
	if !cur.Connected {
		writeError(w, http.StatusConflict, errNotConnected.Error())
		return
	}
	if err := s.receive.Copy(cur.Address); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, receive.ErrClipboardUnsupported) {
			status = http.StatusNotImplemented
		}
		writeError(w, status, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) formView(state form.State) formView {
	_, connected := s.session.Account()
	return formView{
		State:     state,
		CanSubmit: connected && state.CanSubmit(),
		Connected: connected,
	}
}

func (s *Server) handleForm(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.formView(s.form.State()))
}

func (s *Server) handleEditDestination(w http.ResponseWriter, r *http.Request) {
	var req editRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.formView(s.form.EditDestination(req.Value)))
}

func (s *Server) handleEditAmount(w http.ResponseWriter, r *http.Request) {
	var req editRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.formView(s.form.EditAmount(req.Value)))
}

func (s *Server) handleCloseScanner(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.formView(s.form.CloseScanner()))
}

// handleSubmit blocks until the transfer settles. A client that goes away
// does not cancel a dispatched transfer.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	res, err := s.form.Submit(context.WithoutCancel(r.Context()))
	state := s.form.State()

	switch {
	case errors.Is(err, form.ErrSubmitDisabled):
		writeJSON(w, http.StatusConflict, submitResponse{State: state, Error: "Submit is disabled."})
	case err != nil:
		status := http.StatusBadGateway
		if transfer.IsLocal(err) {
			status = http.StatusUnprocessableEntity
		}
		writeJSON(w, status, submitResponse{
			State: state,
			Error: transfer.UserMessage(err),
			Kind:  transfer.KindOf(err),
		})
	default:
		event := res.Event
		writeJSON(w, http.StatusOK, submitResponse{State: state, Transfer: &event})
	}
}

func (s *Server) handleTransfers(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotFound, "transfer history is disabled")
		return
	}

	limit := queryInt(r, "limit", 20)
	if limit < 1 || limit > 100 {
		limit = 20
	}
	offset := queryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}
	address := r.URL.Query().Get("address")
	if address == "" {
		if account, ok := s.session.Account(); ok {
			address = account.Hex()
		}
	}

	transfers, err := s.history(address, limit, offset)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to load transfer history")
		writeError(w, http.StatusInternalServerError, "history unavailable")
		return
	}
	views := make([]map[string]interface{}, 0, len(transfers))
	for _, t := range transfers {
		views = append(views, t.View())
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"transfers": views})
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
