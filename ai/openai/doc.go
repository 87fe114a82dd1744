// Package openai provides an ai.Embedder backed by OpenAI-compatible
// embedding APIs, including local servers such as Ollama.
package openai
