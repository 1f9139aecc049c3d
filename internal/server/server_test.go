package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xdc-transfer/internal/balance"
	"xdc-transfer/internal/database"
	"xdc-transfer/internal/form"
	"xdc-transfer/internal/models"
	"xdc-transfer/internal/session"
	"xdc-transfer/internal/transfer"
)

var (
	alice       = common.HexToAddress("0x95222290DD7278Aa3Ddd389Cc1E1d165CC4BAfe5")
	zeroAddress = "0x" + strings.Repeat("0", 40)
)

type fakeSession struct {
	mu        sync.Mutex
	connected bool
	chainID   int64
}

func (f *fakeSession) setChainID(id int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chainID = id
}

func (f *fakeSession) setConnected(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = v
}

func (f *fakeSession) Current() session.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return session.Session{ChainName: models.UnknownChainName}
	}
	return session.Session{Address: alice.Hex(), ChainID: 51, ChainName: "XDC Apothem Testnet", Connected: true}
}

func (f *fakeSession) Account() (common.Address, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return alice, f.connected
}

func (f *fakeSession) Signer() transfer.Signer {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return nil
	}
	return &fakeSigner{chainID: f.chainID}
}

type fakeSigner struct {
	chainID int64
}

func (*fakeSigner) Account() common.Address { return alice }
func (s *fakeSigner) ChainID(ctx context.Context) (*big.Int, error) {
	return big.NewInt(s.chainID), nil
}
func (*fakeSigner) SendValueTransfer(ctx context.Context, to common.Address, amount *big.Int) (common.Hash, error) {
	return common.HexToHash("0xfeed"), nil
}

type fakeWatcher struct{}

func (fakeWatcher) WaitForConfirmation(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	return &types.Receipt{Status: types.ReceiptStatusSuccessful, TxHash: hash, BlockNumber: big.NewInt(9)}, nil
}

type fakeBalances struct{}

func (fakeBalances) Read(ctx context.Context, account common.Address) (balance.Display, error) {
	return balance.Display{Address: account.Hex(), Value: "2", Symbol: "XDC", Text: "2 XDC"}, nil
}

type fakeCard struct {
	mu     sync.Mutex
	copied []string
}

func (f *fakeCard) QR(address string) ([]byte, error) { return []byte("\x89PNG-" + address), nil }
func (f *fakeCard) Copy(address string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.copied = append(f.copied, address)
	return nil
}

type fixture struct {
	srv     *httptest.Server
	form    *form.Controller
	session *fakeSession
	card    *fakeCard
}

func newFixture(t *testing.T, history HistoryFunc) *fixture {
	t.Helper()
	sess := &fakeSession{connected: true, chainID: models.XDCApothem.ID}
	submitter := transfer.NewSubmitter(fakeWatcher{}, nil, models.XDCApothem, time.Second, nil)
	controller := form.NewController(submitter, sess, nil)
	card := &fakeCard{}

	s := New(Options{
		Form:     controller,
		Session:  sess,
		Balances: fakeBalances{},
		Receive:  card,
		History:  history,
		Chain:    models.XDCApothem,
	})
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return &fixture{srv: srv, form: controller, session: sess, card: card}
}

func (f *fixture) do(t *testing.T, method, path, body string) (*http.Response, map[string]interface{}) {
	t.Helper()
	req, err := http.NewRequest(method, f.srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]interface{}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp, out
}

func TestIndex(t *testing.T) {
	f := newFixture(t, nil)
	resp, err := http.Get(f.srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
}

func TestSession(t *testing.T) {
	f := newFixture(t, nil)
	resp, body := f.do(t, "GET", "/api/session", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, alice.Hex(), body["address"])
	assert.Equal(t, "XDC Apothem Testnet", body["chain_name"])
	assert.Equal(t, "https://explorer.apothem.network/address/"+alice.Hex(), body["address_url"])

	f.session.setConnected(false)
	_, body = f.do(t, "GET", "/api/session", "")
	assert.Equal(t, "Unknown", body["chain_name"])
	assert.Equal(t, false, body["connected"])
}

func TestBalance(t *testing.T) {
	f := newFixture(t, nil)
	resp, body := f.do(t, "GET", "/api/balance", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "2 XDC", body["text"])

	f.session.setConnected(false)
	resp, _ = f.do(t, "GET", "/api/balance", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestReceive(t *testing.T) {
	f := newFixture(t, nil)
	resp, err := http.Get(f.srv.URL + "/api/receive/qr.png")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))

	resp, _ = f.do(t, "POST", "/api/receive/copy", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, []string{alice.Hex()}, f.card.copied)
}

func TestSubmitFlow(t *testing.T) {
	f := newFixture(t, nil)

	_, body := f.do(t, "PUT", "/api/form/destination", `{"value":"`+zeroAddress+`"}`)
	assert.Equal(t, false, body["can_submit"])
	_, body = f.do(t, "PUT", "/api/form/amount", `{"value":"1.5"}`)
	assert.Equal(t, true, body["can_submit"])

	resp, body := f.do(t, "POST", "/api/form/submit", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	tr := body["transfer"].(map[string]interface{})
	assert.Equal(t, "1.5", tr["amount"])
	assert.Equal(t, "1500000000000000000", tr["amount_base_units"])
	assert.Equal(t, form.State{}, f.form.State())
}

func TestSubmitInvalidDestination(t *testing.T) {
	f := newFixture(t, nil)
	f.do(t, "PUT", "/api/form/destination", `{"value":"notanaddress"}`)
	f.do(t, "PUT", "/api/form/amount", `{"value":"1"}`)

	resp, body := f.do(t, "POST", "/api/form/submit", "")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "INVALID_DESTINATION", body["kind"])
	assert.Equal(t, "Invalid destination address.", body["error"])
	state := body["state"].(map[string]interface{})
	assert.Equal(t, "notanaddress", state["destination"])
	assert.Equal(t, "destination", state["error_field"])
}

func TestSubmitWalletOnOtherChain(t *testing.T) {
	f := newFixture(t, nil)
	f.session.setChainID(models.XDCMainnet.ID)
	f.do(t, "PUT", "/api/form/destination", `{"value":"`+zeroAddress+`"}`)
	f.do(t, "PUT", "/api/form/amount", `{"value":"1"}`)

	resp, body := f.do(t, "POST", "/api/form/submit", "")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "WRONG_CHAIN", body["kind"])
	assert.Equal(t, "Wallet is connected to a different network.", body["error"])
	assert.Nil(t, body["transfer"])

	state := f.form.State()
	assert.Equal(t, zeroAddress, state.DestinationText)
	assert.Equal(t, "1", state.AmountText)
	assert.False(t, state.Submitting)
}

func TestSubmitDisconnected(t *testing.T) {
	f := newFixture(t, nil)
	f.session.setConnected(false)
	f.do(t, "PUT", "/api/form/destination", `{"value":"`+zeroAddress+`"}`)
	f.do(t, "PUT", "/api/form/amount", `{"value":"1"}`)

	resp, _ := f.do(t, "POST", "/api/form/submit", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, zeroAddress, f.form.State().DestinationText)
}

func TestEditRejectsUnknownFields(t *testing.T) {
	f := newFixture(t, nil)
	resp, _ := f.do(t, "PUT", "/api/form/amount", `{"amount":"1"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTransfers(t *testing.T) {
	f := newFixture(t, nil)
	resp, _ := f.do(t, "GET", "/api/transfers", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var gotAddress string
	var gotLimit int
	f = newFixture(t, func(address string, limit, offset int) ([]database.Transfer, error) {
		gotAddress, gotLimit = address, limit
		return []database.Transfer{{
			ID:     "t1",
			Amount: "1.5",
			Status: models.StatusConfirmed,
			TxHash: sql.NullString{String: "0xabc", Valid: true},
		}}, nil
	})
	resp, body := f.do(t, "GET", "/api/transfers?limit=500", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, alice.Hex(), gotAddress)
	assert.Equal(t, 20, gotLimit)
	list := body["transfers"].([]interface{})
	require.Len(t, list, 1)
	assert.Equal(t, "0xabc", list[0].(map[string]interface{})["tx_hash"])
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t, nil)
	resp, err := http.Get(f.srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(f.srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func wsDial(t *testing.T, f *fixture, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestScanSocketAcceptsFirstCode(t *testing.T) {
	f := newFixture(t, nil)
	f.form.EditDestination("typed")
	conn := wsDial(t, f, "/ws/scan")

	require.Eventually(t, func() bool { return f.form.State().ScannerOpen }, time.Second, time.Millisecond)

	require.NoError(t, conn.WriteJSON(scanFrame{Error: frameErrorNoCode}))
	require.NoError(t, conn.WriteJSON(scanFrame{Text: "  " + zeroAddress + "\n"}))

	// the server closes the socket once the session ends
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)

	require.Eventually(t, func() bool { return f.form.State().DestinationText == zeroAddress }, time.Second, time.Millisecond)
	assert.False(t, f.form.State().ScannerOpen)
}

func TestScanSocketCodeLandsBeforeSocketCloses(t *testing.T) {
	f := newFixture(t, nil)
	for i := 0; i < 20; i++ {
		f.form.EditDestination("typed")
		conn := wsDial(t, f, "/ws/scan")
		require.Eventually(t, func() bool { return f.form.State().ScannerOpen }, time.Second, time.Millisecond)

		require.NoError(t, conn.WriteJSON(scanFrame{Text: zeroAddress}))
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, _, err := conn.ReadMessage()
		require.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)

		// the close frame is sent only after the form took the code
		st := f.form.State()
		require.Equal(t, zeroAddress, st.DestinationText, "attempt %d", i)
		require.False(t, st.ScannerOpen, "attempt %d", i)
		conn.Close()
	}
}

func TestScanSocketCameraError(t *testing.T) {
	f := newFixture(t, nil)
	conn := wsDial(t, f, "/ws/scan")

	require.NoError(t, conn.WriteJSON(scanFrame{Error: frameErrorCamera, Detail: "Permission denied"}))
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, _ = conn.ReadMessage()

	require.Eventually(t, func() bool { return f.form.State().ErrorField == form.FieldScan }, time.Second, time.Millisecond)
	st := f.form.State()
	assert.False(t, st.ScannerOpen)
	assert.Equal(t, form.FieldScan, st.ErrorField)
	assert.Equal(t, "Camera unavailable: Permission denied", st.ErrorText)
}

func TestScanSocketCloseScannerEndsSocket(t *testing.T) {
	f := newFixture(t, nil)
	conn := wsDial(t, f, "/ws/scan")
	require.Eventually(t, func() bool { return f.form.State().ScannerOpen }, time.Second, time.Millisecond)

	f.do(t, "POST", "/api/form/scanner/close", "")
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)

	// a code sent after close never reaches the form
	_ = conn.WriteJSON(scanFrame{Text: zeroAddress})
	assert.Empty(t, f.form.State().DestinationText)
}

func TestScanSocketDisconnectClosesScanner(t *testing.T) {
	f := newFixture(t, nil)
	conn := wsDial(t, f, "/ws/scan")
	require.Eventually(t, func() bool { return f.form.State().ScannerOpen }, time.Second, time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return !f.form.State().ScannerOpen }, time.Second, time.Millisecond)
}

func TestFormSocketPushesChanges(t *testing.T) {
	f := newFixture(t, nil)
	conn := wsDial(t, f, "/ws/form")
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var view formView
	require.NoError(t, conn.ReadJSON(&view))
	assert.Equal(t, "", view.State.AmountText)

	f.form.EditAmount("3")
	require.NoError(t, conn.ReadJSON(&view))
	assert.Equal(t, "3", view.State.AmountText)
}
