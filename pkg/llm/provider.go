// Package llm provides abstractions for LLM provider integration.
//
// Example usage:
//
//	package main
//
//	import (
//	    "context"
//	    "fmt"
//	    "log"
//	    "os"
//
//	    "github.com/neuralops/auditor/pkg/llm/openai"
//	    "github.com/neuralops/auditor/pkg/types"
//	)
//
//	func main() {
//	    provider, err := openai.NewProvider(
//	        os.Getenv("DEEPSEEK_API_KEY"),
//	        openai.WithBaseURL("https://api.deepseek.com"),
//	        openai.WithModel("deepseek-chat"),
//	    )
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//
//	    messages := []*types.Message{
//	        types.NewUserMessage("Hello!"),
//	    }
//
//	    resp, err := provider.Complete(context.Background(), messages)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    fmt.Println(resp.Content)
//	}
package llm

import (
	"context"

	"github.com/neuralops/auditor/pkg/types"
)

// Provider defines the interface for LLM integrations.
//
// Providers handle API communication with LLM services and return plain
// messages. This design keeps providers focused on LLM concerns without
// coupling them to the analysis pipeline; the analyzer layer owns prompt
// construction and response parsing.
//
// This separation allows providers to be:
// - Reusable in non-analysis contexts (batch tools, smoke tests, etc.)
// - Testable independently of dispatch logic
// - Simpler to implement and maintain
type Provider interface {
	// Complete sends messages to the LLM and returns the full response.
	//
	// Transient transport failures are retried internally with bounded
	// backoff; provider-reported semantic errors (bad request, auth) are
	// returned immediately. Returns the assistant's response message or
	// an error.
	Complete(ctx context.Context, messages []*types.Message) (*types.Message, error)

	// GetModelInfo returns information about the LLM model being used.
	GetModelInfo() *types.ModelInfo

	// GetModel returns the model name being used.
	GetModel() string

	// GetBaseURL returns the base URL being used for API requests.
	GetBaseURL() string
}
