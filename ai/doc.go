// Package ai defines the contract between jobstream and the external model that turns
// unstructured text into structured records.
//
// The core never talks to a vendor directly. It sends an ai.Request (a schema name and
// the text to read) to an ai.Gateway and receives the model's raw JSON answer. Parsing,
// validation and retries live in the extraction package; gateways only translate
// transport failures into ErrTimeout, ErrRateLimited or ErrUnavailable.
//
// Two gateways are provided:
//
//   - openai: any OpenAI-compatible chat endpoint (Ollama, vLLM, OpenAI) via langchaingo
//   - gemini: Google's Gemini API via google.golang.org/genai
//
// The mock package provides a scriptable gateway for tests.
//
// # Configuration
//
//	cfg := ai.NewConfig(
//	    ai.WithHost("http://localhost:11434"),
//	    ai.WithModel("qwen2.5:7b"),
//	)
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package ai
