// Package main is the entry point for the chatbridge gateway.
package main

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/hmartell/chatbridge/internal/config"
	"github.com/hmartell/chatbridge/internal/fallback"
	"github.com/hmartell/chatbridge/internal/provider"
	"github.com/hmartell/chatbridge/internal/server"
)

// upstreamTimeout bounds every provider call. The exact number matters
// less than having one at all — without it, a hung upstream would pin the
// request forever. With two providers configured, the worst case for one
// chat request is roughly twice this.
const upstreamTimeout = 60 * time.Second

func main() {
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// One shared HTTP client for all adapters: connection pooling across
	// requests, and the single place the upstream timeout lives.
	client := &http.Client{Timeout: upstreamTimeout}

	// constructors maps provider names (from config) to the function that
	// creates them. This avoids a big if/else chain and makes adding a
	// new backend a two-line change: write the adapter, add an entry
	// here. The fallback chain itself never changes.
	type providerFactory func(config.ProviderConfig, *http.Client) provider.Provider

	constructors := map[string]providerFactory{
		"gemini": func(pc config.ProviderConfig, c *http.Client) provider.Provider {
			return provider.NewGemini(pc, c)
		},
		"openai": func(pc config.ProviderConfig, c *http.Client) provider.Provider {
			return provider.NewOpenAI(pc, c)
		},
	}

	// Build the fallback chain in config order — the order of the
	// providers list in config.yaml IS the fallback priority.
	adapters := make([]provider.Provider, 0, len(cfg.Providers))

	for _, pc := range cfg.Providers {
		factory, ok := constructors[pc.Name]
		if !ok {
			log.Fatalf("unknown provider in config: %q", pc.Name)
		}

		p := factory(pc, client)
		adapters = append(adapters, p)
		log.Printf("registered provider %q (model %s, available=%v)",
			p.Name(), p.Model(), p.Available(),
		)
	}

	chain := fallback.NewChain(adapters...)
	srv := server.New(cfg, chain)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      srv,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	log.Printf("chatbridge listening on :%d", cfg.Server.Port)

	if err := httpServer.ListenAndServe(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
