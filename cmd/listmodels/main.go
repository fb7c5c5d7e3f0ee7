// Command listmodels prints the Gemini models your API key can see, and
// which of them support generateContent. Handy when a model name in
// config.yaml starts returning 404s — run this to see what the key
// actually has access to.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const modelsURL = "https://generativelanguage.googleapis.com/v1beta/models"

// modelList mirrors the relevant slice of Gemini's ListModels response.
type modelList struct {
	Models []struct {
		Name                       string   `json:"name"`
		DisplayName                string   `json:"displayName"`
		SupportedGenerationMethods []string `json:"supportedGenerationMethods"`
	} `json:"models"`
}

func main() {
	_ = godotenv.Load()

	apiKey := os.Getenv("GOOGLE_AI_API_KEY")
	if apiKey == "" {
		log.Fatal("GOOGLE_AI_API_KEY is not set")
	}

	client := &http.Client{Timeout: 30 * time.Second}

	resp, err := client.Get(fmt.Sprintf("%s?key=%s", modelsURL, apiKey))
	if err != nil {
		log.Fatalf("listing models: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errBody map[string]any
		json.NewDecoder(resp.Body).Decode(&errBody)
		log.Fatalf("listing models: HTTP %d: %v", resp.StatusCode, errBody)
	}

	var list modelList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		log.Fatalf("decoding model list: %v", err)
	}

	fmt.Println("Available models:")
	for _, m := range list.Models {
		fmt.Printf("  %s\n", m.Name)
		fmt.Printf("    display name: %s\n", m.DisplayName)
		fmt.Printf("    methods: %s\n", strings.Join(m.SupportedGenerationMethods, ", "))
	}

	fmt.Println("\nModels supporting generateContent:")
	for _, m := range list.Models {
		if slices.Contains(m.SupportedGenerationMethods, "generateContent") {
			// Model names come back as "models/gemini-2.5-flash"; print
			// just the part that goes in config.yaml.
			fmt.Printf("  %s\n", strings.TrimPrefix(m.Name, "models/"))
		}
	}
}
