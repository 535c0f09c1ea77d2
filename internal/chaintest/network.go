package chaintest

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/crypto/sha3"
)

// Node paths served by the fake network.
const (
	PathBalance                 = "/v1/client/get/balance"
	PathPutTransaction          = "/v1/transaction/put"
	PathTransactionConfirmation = "/v1/transaction/get/confirmation"
	PathLatestFinalizedBlock    = "/v1/block/get/latest_finalized"
	PathChainStats              = "/v1/chain/get/stats"
	PathClient                  = "/v1/client/get"
)

const (
	errValueNotPresent = `{"code":"resource_not_found","error":"value not present"}`
	errEntityNotFound  = `{"code":"entity_not_found","error":"entity not found"}`
)

// Response is a canned reply a node gives instead of consulting the ledger.
type Response struct {
	Status int
	Body   string
}

// Node is one fake miner or sharder.
type Node struct {
	ID  string
	URL string

	mu        sync.Mutex
	delay     time.Duration
	down      int
	overrides map[string]Response
	hits      map[string]int

	srv *httptest.Server
}

// SetDelay makes every request to n take at least d.
func (n *Node) SetDelay(d time.Duration) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.delay = d
}

// SetDown makes n answer every request with status and no JSON body. Zero
// restores normal operation.
func (n *Node) SetDown(status int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.down = status
}

// Override makes n answer path with a fixed response.
func (n *Node) Override(path string, status int, body string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.overrides[path] = Response{Status: status, Body: body}
}

// ClearOverrides removes every override.
func (n *Node) ClearOverrides() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.overrides = make(map[string]Response)
}

// Hits returns how many requests n received for path.
func (n *Node) Hits(path string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.hits[path]
}

func (n *Node) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n.mu.Lock()
		n.hits[r.URL.Path]++
		delay, down := n.delay, n.down
		override, overridden := n.overrides[r.URL.Path]
		n.mu.Unlock()

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}
		if down != 0 {
			w.WriteHeader(down)
			return
		}
		if overridden {
			writeRaw(w, override.Status, override.Body)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Network is an in-process chain of miners and sharders sharing one Ledger,
// plus a discovery endpoint listing them.
type Network struct {
	Ledger   *Ledger
	Miners   []*Node
	Sharders []*Node

	discovery *httptest.Server
}

// New starts a network with the given number of miners and sharders. It is
// shut down when the test ends.
func New(t testing.TB, miners, sharders int) *Network {
	t.Helper()

	n := &Network{Ledger: NewLedger()}
	for i := 0; i < miners; i++ {
		n.Miners = append(n.Miners, n.startNode(fmt.Sprintf("miner%02d", i), n.minerRouter()))
	}
	for i := 0; i < sharders; i++ {
		n.Sharders = append(n.Sharders, n.startNode(fmt.Sprintf("sharder%02d", i), n.sharderRouter()))
	}

	r := mux.NewRouter()
	r.HandleFunc("/network", n.serveDiscovery).Methods(http.MethodGet)
	r.HandleFunc("/dns/network", n.serveDiscovery).Methods(http.MethodGet)
	n.discovery = httptest.NewServer(r)

	t.Cleanup(n.Close)
	return n
}

// Domain returns the discovery domain of the network, with scheme.
func (n *Network) Domain() string {
	return n.discovery.URL
}

// MinerURLs returns the base URLs of all miners.
func (n *Network) MinerURLs() []string {
	return urls(n.Miners)
}

// SharderURLs returns the base URLs of all sharders.
func (n *Network) SharderURLs() []string {
	return urls(n.Sharders)
}

// Close stops every server of the network.
func (n *Network) Close() {
	if n.discovery != nil {
		n.discovery.Close()
	}
	for _, node := range append(append([]*Node(nil), n.Miners...), n.Sharders...) {
		node.srv.Close()
	}
}

func (n *Network) startNode(id string, r *mux.Router) *Node {
	node := &Node{
		ID:        id,
		overrides: make(map[string]Response),
		hits:      make(map[string]int),
	}
	r.Use(node.middleware)
	node.srv = httptest.NewServer(r)
	node.URL = node.srv.URL
	return node
}

func (n *Network) serveDiscovery(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"miners":   n.MinerURLs(),
		"sharders": n.SharderURLs(),
	})
}

func (n *Network) minerRouter() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc(PathPutTransaction, n.servePutTransaction).Methods(http.MethodPost)
	r.HandleFunc(PathChainStats, n.serveChainStats).Methods(http.MethodGet)
	r.HandleFunc(PathClient, n.serveClient).Methods(http.MethodGet)
	return r
}

func (n *Network) sharderRouter() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc(PathBalance, n.serveBalance).Methods(http.MethodGet)
	r.HandleFunc(PathTransactionConfirmation, n.serveConfirmation).Methods(http.MethodGet)
	r.HandleFunc(PathLatestFinalizedBlock, n.serveLatestBlock).Methods(http.MethodGet)
	r.HandleFunc(PathChainStats, n.serveChainStats).Methods(http.MethodGet)
	r.HandleFunc(PathClient, n.serveClient).Methods(http.MethodGet)
	return r
}

func (n *Network) serveBalance(w http.ResponseWriter, r *http.Request) {
	acct, ok := n.Ledger.Account(r.URL.Query().Get("client_id"))
	if !ok {
		writeRaw(w, http.StatusBadRequest, errValueNotPresent)
		return
	}
	writeJSON(w, http.StatusOK, acct)
}

func (n *Network) servePutTransaction(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeRaw(w, http.StatusBadRequest, `{"error":"unreadable body"}`)
		return
	}
	tx, err := n.Ledger.apply(raw)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"async":  true,
		"entity": tx,
	})
}

func (n *Network) serveConfirmation(w http.ResponseWriter, r *http.Request) {
	c, ok := n.Ledger.confirmation(r.URL.Query().Get("hash"))
	if !ok {
		writeRaw(w, http.StatusBadRequest, errEntityNotFound)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (n *Network) serveLatestBlock(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, n.Ledger.latestBlock())
}

func (n *Network) serveChainStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"current_round": n.Ledger.Round(),
		"count":         n.Ledger.Txns(),
	})
}

func (n *Network) serveClient(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	key, ok := n.Ledger.publicKey(id)
	if !ok {
		writeRaw(w, http.StatusBadRequest, errValueNotPresent)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "public_key": key})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeRaw(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func urls(nodes []*Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.URL
	}
	return out
}

func blockHash(round int64) string {
	sum := sha3.Sum256([]byte("block:" + strconv.FormatInt(round, 10)))
	return hex.EncodeToString(sum[:])
}
