package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"time"

	"Intent-Chain/sdk/go/intentchain"
)

func main() {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/preview", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(intentchain.Preview{
			RequestID: "req-demo",
			Action:    "send",
			Summary:   "send 20 dai to 0x1c0aa8ccd568d90d61659f060d1bfb1e6f855a20",
			Amount:    "20000000000000000000",
		})
	})
	mux.HandleFunc("/api/v1/execute", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			_ = json.NewEncoder(w).Encode(intentchain.Result{
				RequestID: "req-demo",
				Action:    "send",
				Amount:    "20000000000000000000",
			})
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/api/v1/balance", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(intentchain.Balance{
			Asset:   "0x6B175474E89094C44Da98b954EedeAC495271d0F",
			Raw:     "20000000000000000000",
			Display: "20",
		})
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := intentchain.NewClient(srv.URL, srv.Client())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	preview, err := client.Preview(ctx, "0x00000000000000000000000000000000000000a1", "send vitalik 20 dai")
	if err != nil {
		panic(err)
	}
	fmt.Printf("previewed %s: %s\n", preview.RequestID, preview.Summary)

	result, err := client.Execute(ctx, "0x00000000000000000000000000000000000000a1", "send vitalik 20 dai")
	if err != nil {
		panic(err)
	}
	fmt.Printf("executed %s (action=%s amount=%s)\n", result.RequestID, result.Action, result.Amount)

	balance, err := client.Balance(ctx, "0x1c0aa8ccd568d90d61659f060d1bfb1e6f855a20", "dai")
	if err != nil {
		panic(err)
	}
	fmt.Printf("recipient holds %s dai\n", balance.Display)
}
