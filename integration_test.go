package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/pricewatch/config"
	"sjsage522/pricewatch/internal/history"
	"sjsage522/pricewatch/pkg/errors"
)

// retailer serves a search page with one product and a product page with a settable price
type retailer struct {
	mu    sync.Mutex
	price string
}

func (r *retailer) setPrice(p string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.price = p
}

func (r *retailer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Query().Get("w") != "venvanse 70mg" {
			w.Write([]byte(`<html><body><p>Nenhum resultado</p></body></html>`))
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(`<html><body>
			<a href="/produto/venvanse-70mg">Venvanse</a>
			<a href="/produto/venvanse-70mg">Comprar</a>
			<a href="/ajuda">Ajuda</a>
		</body></html>`))
	})
	mux.HandleFunc("/produto/venvanse-70mg", func(w http.ResponseWriter, req *http.Request) {
		r.mu.Lock()
		price := r.price
		r.mu.Unlock()
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(`<html><body><h1>X</h1><span class="price">R$ ` + price + `</span></body></html>`))
	})
	return mux
}

// telegram records sendMessage texts
type telegram struct {
	mu       sync.Mutex
	messages []string
}

func (tg *telegram) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			ChatID string `json:"chat_id"`
			Text   string `json:"text"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil || body.ChatID != "chat-1" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		tg.mu.Lock()
		tg.messages = append(tg.messages, body.Text)
		tg.mu.Unlock()
		w.Write([]byte(`{"ok":true}`))
	})
}

func (tg *telegram) take() []string {
	tg.mu.Lock()
	defer tg.mu.Unlock()
	out := tg.messages
	tg.messages = nil
	return out
}

func testConfig(t *testing.T, retailerURL, telegramURL string) *config.Config {
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("CHAT_ID", "chat-1")
	t.Setenv("RETAILER_URL", retailerURL)
	t.Setenv("TELEGRAM_API_URL", telegramURL)
	t.Setenv("DB_FILE", filepath.Join(t.TempDir(), "prices.json"))
	t.Setenv("THROTTLE_MS", "0")
	t.Setenv("TARGET_PRICES", "")
	t.Setenv("PCT_DROP_ALERT", "")
	t.Setenv("MEMCACHE_ADDR", "")
	t.Setenv("REDIS_ADDR", "")

	cfg := config.LoadConfig()
	cfg.Queries = []string{"venvanse 70mg"}
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestSweepEndToEnd(t *testing.T) {
	shop := &retailer{price: "120,00"}
	shopServer := httptest.NewServer(shop.handler())
	defer shopServer.Close()

	tg := &telegram{}
	tgServer := httptest.NewServer(tg.handler())
	defer tgServer.Close()

	cfg := testConfig(t, shopServer.URL, tgServer.URL)
	location := shopServer.URL + "/produto/venvanse-70mg"
	ctx := context.Background()

	// First run: empty history, no alert
	summary, err := newWorker(cfg, &Services{}).RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Checked)
	assert.Equal(t, 0, summary.Alerts)
	assert.Equal(t, []string{"✅ Varredura finalizada.\nItens checados: 1\nAlertas enviados: 0"}, tg.take())

	store, err := history.Load(cfg.DBFile)
	require.NoError(t, err)
	require.Equal(t, []string{location}, store.Locations())
	assert.True(t, decimal.NewFromInt(120).Equal(store.Get(location).Price))
	assert.Equal(t, "X", store.Get(location).Name)

	// Second run: 120 -> 110 is an 8.3% drop
	shop.setPrice("110,00")
	summary, err = newWorker(cfg, &Services{}).RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Alerts)

	messages := tg.take()
	require.Len(t, messages, 2)
	assert.Equal(t, "📉 Queda de preço!\nBusca: venvanse 70mg\nDe: R$ 120.00\nPara: R$ 110.00\nQueda: 8.3%\nProduto: X\n"+location, messages[0])
	assert.Equal(t, "✅ Varredura finalizada.\nItens checados: 1\nAlertas enviados: 1", messages[1])

	store, err = history.Load(cfg.DBFile)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(110).Equal(store.Get(location).Price))

	// Third run: unchanged price, nothing to report but the summary
	_, err = newWorker(cfg, &Services{}).RunOnce(ctx)
	require.NoError(t, err)
	assert.Len(t, tg.take(), 1)
}

func TestSweepTelegramFailureKeepsHistory(t *testing.T) {
	shop := &retailer{price: "120,00"}
	shopServer := httptest.NewServer(shop.handler())
	defer shopServer.Close()

	tgServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer tgServer.Close()

	cfg := testConfig(t, shopServer.URL, tgServer.URL)

	_, err := newWorker(cfg, &Services{}).RunOnce(context.Background())
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeNotification, errors.TypeOf(err))

	// the history was saved before the summary failed
	store, err := history.Load(cfg.DBFile)
	require.NoError(t, err)
	assert.Equal(t, 1, store.Len())
}
