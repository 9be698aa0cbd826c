package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"
)

// Cliente de validação manual: dispara uma rajada contra o gateway e imprime
// a distribuição de vereditos. Uso:
//
//	GATEWAY_URL=http://localhost:8080/v1/banners API_KEY=sk-demo N=20 go run .
func main() {
	url := getenv("GATEWAY_URL", "http://localhost:8080/v1/banners")
	apiKey := getenv("API_KEY", "sk-demo")
	n, _ := strconv.Atoi(getenv("N", "20"))

	counts := map[int]int{}
	client := &http.Client{Timeout: 10 * time.Second}

	for i := 0; i < n; i++ {
		req, err := http.NewRequest(http.MethodPost, url, nil)
		if err != nil {
			fmt.Printf("erro montando request: %v\n", err)
			os.Exit(1)
		}
		req.Header.Set("X-Api-Key", apiKey)

		resp, err := client.Do(req)
		if err != nil {
			fmt.Printf("erro: %v\n", err)
			continue
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()

		counts[resp.StatusCode]++
		fmt.Printf("#%02d status=%d remaining=%s retry-after=%s\n",
			i+1, resp.StatusCode,
			resp.Header.Get("X-RateLimit-Remaining"),
			resp.Header.Get("Retry-After"),
		)
	}

	fmt.Println("---")
	for status, c := range counts {
		fmt.Printf("status %d: %d\n", status, c)
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
