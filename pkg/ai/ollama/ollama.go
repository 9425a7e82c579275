// Package ollama implements ai.Client against an Ollama server, for
// deployments that keep extraction and embeddings on local models.
package ollama

import (
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/ollama/ollama/api"
	"golang.org/x/sync/semaphore"

	"github.com/rolohq/rolo/pkg/ai"
)

// GraphOllamaClient implements ai.Client using Ollama as the backend.
type GraphOllamaClient struct {
	embeddingModel  string
	extractionModel string

	timeout time.Duration
	reqLock *semaphore.Weighted

	metricsLock sync.Mutex
	metrics     ai.ModelMetrics

	baseURL    *url.URL
	httpClient *http.Client

	Client *api.Client
}

var _ ai.Client = (*GraphOllamaClient)(nil)

// NewGraphOllamaClientParams configures a client. BaseURL left empty uses
// the Ollama default; ApiKey is optional and sent as a bearer token for
// gated deployments.
type NewGraphOllamaClientParams struct {
	EmbeddingModel  string
	ExtractionModel string

	BaseURL string
	ApiKey  string

	MaxConcurrentRequests int64
	Timeout               time.Duration
}

type headerTransport struct {
	headers map[string]string
	rt      http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// clone so original request isn't modified
	r := req.Clone(req.Context())
	for k, v := range t.headers {
		// don't overwrite if already set
		if r.Header.Get(k) == "" {
			r.Header.Set(k, v)
		}
	}
	return t.rt.RoundTrip(r)
}

func NewGraphOllamaClient(params NewGraphOllamaClientParams) (*GraphOllamaClient, error) {
	var (
		u   *url.URL
		err error
	)

	if params.BaseURL != "" {
		u, err = url.Parse(params.BaseURL)
		if err != nil {
			return nil, err
		}
	}

	httpClient := http.DefaultClient
	if params.ApiKey != "" {
		httpClient = &http.Client{
			Transport: &headerTransport{
				headers: map[string]string{
					"Authorization": "Bearer " + params.ApiKey,
				},
				rt: http.DefaultTransport,
			},
		}
	}

	if params.MaxConcurrentRequests <= 0 {
		params.MaxConcurrentRequests = 1
	}
	if params.Timeout <= 0 {
		params.Timeout = 5 * time.Minute
	}

	return &GraphOllamaClient{
		embeddingModel:  params.EmbeddingModel,
		extractionModel: params.ExtractionModel,

		timeout: params.Timeout,
		reqLock: semaphore.NewWeighted(params.MaxConcurrentRequests),

		baseURL:    u,
		httpClient: httpClient,

		Client: api.NewClient(u, httpClient),
	}, nil
}

func (c *GraphOllamaClient) modifyMetrics(delta ai.ModelMetrics) {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()
	c.metrics.Add(delta)
}

func (c *GraphOllamaClient) GetMetrics() ai.ModelMetrics {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()
	return c.metrics
}

func (c *GraphOllamaClient) ResetMetrics() {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()
	c.metrics = ai.ModelMetrics{}
}
