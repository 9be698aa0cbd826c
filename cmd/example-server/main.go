package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"
)

// Upstream de IA de exemplo: simula um serviço de geração que informa os
// tokens consumidos no header X-Tokens-Used — é daí que o gateway mede o
// custo real de cada requisição. FAIL_EVERY=n faz 1 a cada n requisições
// falhar com 502, para exercitar a assimetria do registro de uso.
func main() {
	failEvery := 0
	if v := os.Getenv("FAIL_EVERY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			failEvery = n
		}
	}

	var served atomic.Int64

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		n := served.Add(1)
		if failEvery > 0 && n%int64(failEvery) == 0 {
			http.Error(w, "upstream model error", http.StatusBadGateway)
			return
		}

		body, _ := io.ReadAll(io.LimitReader(r.Body, 1<<16))

		// Custo simulado: proporcional ao tamanho do prompt, com um piso.
		tokens := int64(32 + len(body)/4)

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Set("X-Tokens-Used", strconv.FormatInt(tokens, 10))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":          fmt.Sprintf("gen-%d", n),
			"content":     "generated content placeholder",
			"tokens_used": tokens,
		})
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	addr := ":8081"
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		addr = v
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("example upstream listening on %s (failEvery=%d)", addr, failEvery)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}
