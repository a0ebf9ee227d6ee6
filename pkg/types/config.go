// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "refcheck/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// CompletionConfig holds settings for the language-model collaborator.
type CompletionConfig struct {
	// Model is the model identifier (e.g. "gpt-4o-mini").
	Model string `json:"model" yaml:"model"`

	// APIKeys is the credential pool. Batch items pick a key by index
	// modulo pool size to spread per-key rate limits.
	APIKeys []string `json:"api_keys,omitempty" yaml:"api_keys,omitempty"`

	// BaseURL overrides the API endpoint (OpenAI-compatible servers).
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`

	// MaxTokens caps the completion length (default 1024).
	MaxTokens int `json:"max_tokens" yaml:"max_tokens"`
}

// WebSearchConfig holds settings for the web search collaborator.
type WebSearchConfig struct {
	HTTPConfig `yaml:",inline"`

	// APIKey authenticates against the search API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// BaseURL overrides the search API endpoint.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`

	// MaxResults is the maximum number of organic results to keep (default 10).
	MaxResults int `json:"max_results" yaml:"max_results"`
}

// DOIConfig holds settings for the Crossref DOI resolver.
type DOIConfig struct {
	HTTPConfig `yaml:",inline"`

	// MailTo is included in requests per the Crossref polite-pool convention.
	MailTo string `json:"mail_to,omitempty" yaml:"mail_to,omitempty"`

	// BaseURL overrides the registry endpoint.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
}

// FetchConfig holds settings for raw URL fetching.
type FetchConfig struct {
	HTTPConfig `yaml:",inline"`

	// MaxContentBytes caps the sanitized page content (default 15360).
	MaxContentBytes int `json:"max_content_bytes" yaml:"max_content_bytes"`
}

// VerifyConfig holds settings for the verification strategy chain.
type VerifyConfig struct {
	// MaxRetries is the number of retry attempts per external call (default 2).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// RetryBaseDelay is the base duration for exponential backoff (default 1s).
	RetryBaseDelay time.Duration `json:"retry_base_delay" yaml:"retry_base_delay"`

	// StrictNoResults treats an empty search result set as evidence that the
	// reference does not exist (default true). When false an empty result
	// set yields needs-human instead.
	StrictNoResults bool `json:"strict_no_results" yaml:"strict_no_results"`

	// EnableURLCheck enables the URL content cross-check fallback (default true).
	EnableURLCheck bool `json:"enable_url_check" yaml:"enable_url_check"`
}

// AgentConfig holds settings for the agent loop controller.
type AgentConfig struct {
	// Enabled escalates references the chain leaves unverified or in error
	// to the iterative agent loop.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// MaxIterations caps the tool-dispatch loop (default 5).
	MaxIterations int `json:"max_iterations" yaml:"max_iterations"`
}

// BatchConfig holds settings for the batch scheduler.
type BatchConfig struct {
	// SearchBatchSize is the window size for the search pass (default 10).
	// Search calls are cheap, so these windows are wider.
	SearchBatchSize int `json:"search_batch_size" yaml:"search_batch_size"`

	// VerifyBatchSize is the window size for the model-judgment pass
	// (default 5), kept small to respect per-key rate limits.
	VerifyBatchSize int `json:"verify_batch_size" yaml:"verify_batch_size"`

	// SearchWindowDelay is the pause between search windows (default 300ms).
	SearchWindowDelay time.Duration `json:"search_window_delay" yaml:"search_window_delay"`

	// VerifyWindowDelay is the pause between verify windows (default 1s).
	VerifyWindowDelay time.Duration `json:"verify_window_delay" yaml:"verify_window_delay"`
}

// ReportConfig holds settings for the verification run store.
type ReportConfig struct {
	// Dir is the directory holding the runs database (default "reports").
	Dir string `json:"dir" yaml:"dir"`

	// MaxRuns is the default number of runs listed (default 20).
	MaxRuns int `json:"max_runs" yaml:"max_runs"`
}

// PipelineConfig groups all stage configurations.
type PipelineConfig struct {
	Completion CompletionConfig `json:"completion" yaml:"completion"`
	WebSearch  WebSearchConfig  `json:"web_search" yaml:"web_search"`
	DOI        DOIConfig        `json:"doi" yaml:"doi"`
	Fetch      FetchConfig      `json:"fetch" yaml:"fetch"`
	Verify     VerifyConfig     `json:"verify" yaml:"verify"`
	Agent      AgentConfig      `json:"agent" yaml:"agent"`
	Batch      BatchConfig      `json:"batch" yaml:"batch"`
	Report     ReportConfig     `json:"report" yaml:"report"`
}

// DefaultPipelineConfig returns the baseline configuration. Viper overlays
// file and environment values on top of this.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Completion: CompletionConfig{
			Model:     "gpt-4o-mini",
			MaxTokens: 1024,
		},
		WebSearch: WebSearchConfig{
			HTTPConfig: HTTPConfig{Timeout: 30 * time.Second, UserAgent: "refcheck/0.1"},
			MaxResults: 10,
		},
		DOI: DOIConfig{
			HTTPConfig: HTTPConfig{Timeout: 30 * time.Second, UserAgent: "refcheck/0.1"},
		},
		Fetch: FetchConfig{
			HTTPConfig:      HTTPConfig{Timeout: 30 * time.Second, UserAgent: "refcheck/0.1"},
			MaxContentBytes: 15 * 1024,
		},
		Verify: VerifyConfig{
			MaxRetries:      2,
			RetryBaseDelay:  time.Second,
			StrictNoResults: true,
			EnableURLCheck:  true,
		},
		Agent: AgentConfig{
			MaxIterations: 5,
		},
		Batch: BatchConfig{
			SearchBatchSize:   10,
			VerifyBatchSize:   5,
			SearchWindowDelay: 300 * time.Millisecond,
			VerifyWindowDelay: time.Second,
		},
		Report: ReportConfig{
			Dir:     "reports",
			MaxRuns: 20,
		},
	}
}
